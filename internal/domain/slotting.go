package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// VelocityClass is the ABC(D) classification of a product
type VelocityClass string

const (
	VelocityClassA VelocityClass = "A"
	VelocityClassB VelocityClass = "B"
	VelocityClassC VelocityClass = "C"
	VelocityClassD VelocityClass = "D"
)

// ParseVelocityClass validates a class string
func ParseVelocityClass(s string) (VelocityClass, error) {
	switch c := VelocityClass(strings.ToUpper(strings.TrimSpace(s))); c {
	case VelocityClassA, VelocityClassB, VelocityClassC, VelocityClassD:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown velocity class %q", ErrInvalidArgument, s)
	}
}

// RelocationPriority ranks relocation recommendations
type RelocationPriority string

const (
	RelocationPriorityHigh   RelocationPriority = "HIGH"
	RelocationPriorityMedium RelocationPriority = "MEDIUM"
)

// RelocationAction is the recommended move
type RelocationAction string

const (
	RelocateToPickingZone RelocationAction = "RELOCATE_TO_PICKING_ZONE"
	RelocateToStorage     RelocationAction = "RELOCATE_TO_STORAGE"
)

// ABCThresholds are the cumulative pick fractions bounding classes A and B
type ABCThresholds struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// DefaultABCThresholds returns the 80/95 Pareto split
func DefaultABCThresholds() ABCThresholds {
	return ABCThresholds{A: 0.80, B: 0.95}
}

// Validate checks 0 < A < B <= 1
func (t ABCThresholds) Validate() error {
	if t.A <= 0 || t.B > 1 || t.A >= t.B {
		return fmt.Errorf("%w: thresholds must satisfy 0 < A < B <= 1, got A=%v B=%v", ErrInvalidArgument, t.A, t.B)
	}
	return nil
}

// SequenceLimits bound what counts as a far or near pick sequence
type SequenceLimits struct {
	High int `json:"high"`
	Low  int `json:"low"`
}

// ProductPicks aggregates completed picks of one product
type ProductPicks struct {
	ProductID string `bson:"productId" json:"productId"`
	VariantID string `bson:"variantId" json:"variantId,omitempty"`
	PickCount int    `bson:"pickCount" json:"pickCount"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// Classification is the velocity class assigned to one product
type Classification struct {
	ProductPicks
	Class              VelocityClass
	CumulativeFraction float64
	VelocityScore      float64
}

// ClassifyProducts sorts products by pick count descending and walks them
// with a running total. Products below minPickThreshold are class D
// regardless of rank; the rest are A while the cumulative fraction,
// including the product itself, is within thresholds.A, B within
// thresholds.B, else C.
func ClassifyProducts(picks []ProductPicks, minPickThreshold int, thresholds ABCThresholds) []Classification {
	sorted := make([]ProductPicks, len(picks))
	copy(sorted, picks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PickCount != sorted[j].PickCount {
			return sorted[i].PickCount > sorted[j].PickCount
		}
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].VariantID < sorted[j].VariantID
	})

	total := 0
	for _, p := range sorted {
		total += p.PickCount
	}

	var mean float64
	if len(sorted) > 0 {
		mean = float64(total) / float64(len(sorted))
	}

	result := make([]Classification, 0, len(sorted))
	running := 0
	for _, p := range sorted {
		running += p.PickCount

		var fraction float64
		if total > 0 {
			fraction = float64(running) / float64(total)
		}

		class := VelocityClassC
		switch {
		case p.PickCount < minPickThreshold:
			class = VelocityClassD
		case fraction <= thresholds.A:
			class = VelocityClassA
		case fraction <= thresholds.B:
			class = VelocityClassB
		}

		var score float64
		if mean > 0 {
			score = math.Min(100, float64(p.PickCount)/mean*100)
		}

		result = append(result, Classification{
			ProductPicks:       p,
			Class:              class,
			CumulativeFraction: fraction,
			VelocityScore:      score,
		})
	}
	return result
}

// Relocation is a recommendation to move a product
type Relocation struct {
	Priority RelocationPriority `bson:"priority" json:"priority"`
	Action   RelocationAction   `bson:"action" json:"action"`
	Reason   string             `bson:"reason" json:"reason"`
}

// EvaluateRelocation flags fast movers sitting outside the picking zone or
// far from packing, and slow movers occupying prime picking slots.
func EvaluateRelocation(class VelocityClass, bin *Bin, limits SequenceLimits) *Relocation {
	if bin == nil {
		return nil
	}

	switch class {
	case VelocityClassA:
		if bin.ZoneType != ZoneTypePicking {
			return &Relocation{
				Priority: RelocationPriorityHigh,
				Action:   RelocateToPickingZone,
				Reason:   fmt.Sprintf("class A product stored in %s zone %s", bin.ZoneType, bin.ZoneID),
			}
		}
		if bin.PickSequence > limits.High {
			return &Relocation{
				Priority: RelocationPriorityHigh,
				Action:   RelocateToPickingZone,
				Reason:   fmt.Sprintf("class A product at pick sequence %d beyond %d", bin.PickSequence, limits.High),
			}
		}
	case VelocityClassC, VelocityClassD:
		if bin.ZoneType == ZoneTypePicking && bin.PickSequence < limits.Low {
			return &Relocation{
				Priority: RelocationPriorityMedium,
				Action:   RelocateToStorage,
				Reason:   fmt.Sprintf("class %s product occupying pick sequence %d below %d", class, bin.PickSequence, limits.Low),
			}
		}
	case VelocityClassB:
	}
	return nil
}

// SlotScore is the velocity classification of a product in a warehouse
type SlotScore struct {
	WarehouseID     string        `bson:"warehouseId"`
	ProductID       string        `bson:"productId"`
	VariantID       string        `bson:"variantId"`
	Class           VelocityClass `bson:"class"`
	PickCount       int           `bson:"pickCount"`
	PickQuantity    int           `bson:"pickQuantity"`
	VelocityScore   float64       `bson:"velocityScore"`
	CurrentBin      string        `bson:"currentBin,omitempty"`
	NeedsRelocation bool          `bson:"needsRelocation"`
	Relocation      *Relocation   `bson:"relocation,omitempty"`
	WindowStart     time.Time     `bson:"windowStart"`
	WindowEnd       time.Time     `bson:"windowEnd"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

// NewSlotScore builds the score row for a classified product
func NewSlotScore(warehouseID string, c Classification, bin *Bin, relocation *Relocation, windowStart, windowEnd time.Time) *SlotScore {
	score := &SlotScore{
		WarehouseID:     warehouseID,
		ProductID:       c.ProductID,
		VariantID:       c.VariantID,
		Class:           c.Class,
		PickCount:       c.PickCount,
		PickQuantity:    c.Quantity,
		VelocityScore:   c.VelocityScore,
		NeedsRelocation: relocation != nil,
		Relocation:      relocation,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		UpdatedAt:       windowEnd,
	}
	if bin != nil {
		score.CurrentBin = bin.Code
	}
	return score
}
