package domain

import "context"

// ZoneType classifies a warehouse zone
type ZoneType string

const (
	ZoneTypePicking ZoneType = "PICKING"
	ZoneTypeStorage ZoneType = "STORAGE"
)

// Bin is a storage location from the warehouse directory
type Bin struct {
	Code         string   `bson:"code" json:"code"`
	WarehouseID  string   `bson:"warehouseId" json:"warehouseId"`
	ZoneID       string   `bson:"zoneId" json:"zoneId"`
	ZoneType     ZoneType `bson:"zoneType" json:"zoneType"`
	PickSequence int      `bson:"pickSequence" json:"pickSequence"`
	ProductID    string   `bson:"productId,omitempty" json:"productId,omitempty"`
	VariantID    string   `bson:"variantId,omitempty" json:"variantId,omitempty"`
}

// Directory is the warehouse, carrier and bin master data
type Directory interface {
	WarehouseExists(ctx context.Context, warehouseID string) (bool, error)
	CarrierExists(ctx context.Context, carrierID string) (bool, error)

	// ResolveBin returns the bin currently holding the product, or nil when
	// the product has no slot.
	ResolveBin(ctx context.Context, warehouseID, productID, variantID string) (*Bin, error)
}
