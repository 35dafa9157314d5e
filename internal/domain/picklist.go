package domain

import (
	"fmt"
	"time"
)

// PicklistStatus represents the status of a picklist
type PicklistStatus string

const (
	PicklistStatusDraft      PicklistStatus = "DRAFT"
	PicklistStatusPending    PicklistStatus = "PENDING"
	PicklistStatusInProgress PicklistStatus = "IN_PROGRESS"
	PicklistStatusCompleted  PicklistStatus = "COMPLETED"
)

// PicklistItem is one line of a picklist
type PicklistItem struct {
	ItemID         string `bson:"itemId" json:"itemId"`
	ProductID      string `bson:"productId" json:"productId"`
	VariantID      string `bson:"variantId,omitempty" json:"variantId,omitempty"`
	Quantity       int    `bson:"quantity" json:"quantity"`
	PickedQuantity int    `bson:"pickedQuantity" json:"pickedQuantity"`
	Completed      bool   `bson:"completed" json:"completed"`
}

// Picklist is the pick document covering one order
type Picklist struct {
	PicklistID  string         `bson:"picklistId"`
	WarehouseID string         `bson:"warehouseId"`
	OrderID     string         `bson:"orderId"`
	Status      PicklistStatus `bson:"status"`
	Items       []PicklistItem `bson:"items"`
	CreatedAt   time.Time      `bson:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt"`
}

// NewPicklistForOrder builds a DRAFT picklist with one line per order item
func NewPicklistForOrder(picklistID string, order Order, now time.Time) *Picklist {
	items := make([]PicklistItem, 0, len(order.Items))
	for i, item := range order.Items {
		itemID := item.ItemID
		if itemID == "" {
			itemID = fmt.Sprintf("%s-%d", picklistID, i+1)
		}
		items = append(items, PicklistItem{
			ItemID:    itemID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}

	return &Picklist{
		PicklistID:  picklistID,
		WarehouseID: order.WarehouseID,
		OrderID:     order.OrderID,
		Status:      PicklistStatusDraft,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TotalQuantity returns the sum of all line quantities
func (p *Picklist) TotalQuantity() int {
	total := 0
	for _, item := range p.Items {
		total += item.Quantity
	}
	return total
}

// MarkPending moves a DRAFT picklist to PENDING when its wave is released
func (p *Picklist) MarkPending(now time.Time) {
	if p.Status == PicklistStatusDraft {
		p.Status = PicklistStatusPending
		p.UpdatedAt = now
	}
}

// RecordPick propagates a completed task into its picklist line. The
// picklist completes once every line is settled.
func (p *Picklist) RecordPick(itemID string, quantity int, now time.Time) error {
	for i := range p.Items {
		if p.Items[i].ItemID != itemID {
			continue
		}
		p.Items[i].PickedQuantity += quantity
		p.Items[i].Completed = true
		p.UpdatedAt = now

		if p.Status == PicklistStatusPending || p.Status == PicklistStatusDraft {
			p.Status = PicklistStatusInProgress
		}
		if p.allSettled() {
			p.Status = PicklistStatusCompleted
		}
		return nil
	}
	return fmt.Errorf("%w: picklist %s has no item %s", ErrNotFound, p.PicklistID, itemID)
}

func (p *Picklist) allSettled() bool {
	for _, item := range p.Items {
		if !item.Completed {
			return false
		}
	}
	return true
}
