package domain

import "context"

// OrderStatusConfirmed is the only order status eligible for waving
const OrderStatusConfirmed = "CONFIRMED"

// Order is the read model of an outbound order owned by the order service
type Order struct {
	OrderID      string      `json:"orderId"`
	WarehouseID  string      `json:"warehouseId"`
	Status       string      `json:"status"`
	Priority     int         `json:"priority"`
	Channel      string      `json:"channel,omitempty"`
	CustomerType string      `json:"customerType,omitempty"`
	Zone         string      `json:"zone,omitempty"`
	Items        []OrderItem `json:"items"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ItemID    string `json:"itemId"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// OrderFilter selects orders eligible for a wave
type OrderFilter struct {
	WarehouseID   string
	MinPriority   int
	MaxPriority   int
	Channels      []string
	CustomerTypes []string
	Zones         []string
	Limit         int
}

// Matches reports whether the order satisfies the filter
func (f OrderFilter) Matches(o Order) bool {
	if o.Status != OrderStatusConfirmed {
		return false
	}
	if f.WarehouseID != "" && o.WarehouseID != f.WarehouseID {
		return false
	}
	if f.MinPriority > 0 && o.Priority < f.MinPriority {
		return false
	}
	if f.MaxPriority > 0 && o.Priority > f.MaxPriority {
		return false
	}
	return matchesAny(f.Channels, o.Channel) &&
		matchesAny(f.CustomerTypes, o.CustomerType) &&
		matchesAny(f.Zones, o.Zone)
}

func matchesAny(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// OrderSource reads orders from the order service
type OrderSource interface {
	// FindEligible returns CONFIRMED orders matching the filter, at most filter.Limit
	FindEligible(ctx context.Context, filter OrderFilter) ([]Order, error)

	// GetOrder returns one order or ErrNotFound
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}
