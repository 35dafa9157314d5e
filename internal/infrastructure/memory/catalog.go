package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wms-platform/task-engine/internal/domain"
)

// Directory is an in-memory domain.Directory seeded by the caller
type Directory struct {
	mu         sync.RWMutex
	warehouses map[string]bool
	carriers   map[string]bool
	bins       map[string]domain.Bin
}

// NewDirectory creates an empty Directory
func NewDirectory() *Directory {
	return &Directory{
		warehouses: make(map[string]bool),
		carriers:   make(map[string]bool),
		bins:       make(map[string]domain.Bin),
	}
}

// AddWarehouse registers a warehouse
func (d *Directory) AddWarehouse(warehouseID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warehouses[warehouseID] = true
}

// AddCarrier registers a carrier
func (d *Directory) AddCarrier(carrierID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.carriers[carrierID] = true
}

// AddBin slots the bin's product into the bin
func (d *Directory) AddBin(bin domain.Bin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warehouses[bin.WarehouseID] = true
	d.bins[binKey(bin.WarehouseID, bin.ProductID, bin.VariantID)] = bin
}

// WarehouseExists implements domain.Directory
func (d *Directory) WarehouseExists(_ context.Context, warehouseID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.warehouses[warehouseID], nil
}

// CarrierExists implements domain.Directory
func (d *Directory) CarrierExists(_ context.Context, carrierID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.carriers[carrierID], nil
}

// ResolveBin implements domain.Directory. A variant without its own slot
// falls back to the product's slot.
func (d *Directory) ResolveBin(_ context.Context, warehouseID, productID, variantID string) (*domain.Bin, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if bin, ok := d.bins[binKey(warehouseID, productID, variantID)]; ok {
		return &bin, nil
	}
	if variantID != "" {
		if bin, ok := d.bins[binKey(warehouseID, productID, "")]; ok {
			return &bin, nil
		}
	}
	return nil, nil
}

func binKey(warehouseID, productID, variantID string) string {
	return warehouseID + "|" + productID + "|" + variantID
}

// OrderSource is an in-memory domain.OrderSource
type OrderSource struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	ids    []string
}

// NewOrderSource creates an empty OrderSource
func NewOrderSource() *OrderSource {
	return &OrderSource{orders: make(map[string]domain.Order)}
}

// Add stores or replaces orders
func (s *OrderSource) Add(orders ...domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		if _, ok := s.orders[o.OrderID]; !ok {
			s.ids = append(s.ids, o.OrderID)
		}
		s.orders[o.OrderID] = o
	}
}

// FindEligible implements domain.OrderSource. Orders come back in the order
// they were added.
func (s *OrderSource) FindEligible(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, id := range s.ids {
		o := s.orders[id]
		if !filter.Matches(o) {
			continue
		}
		out = append(out, cloneOrder(o))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// GetOrder implements domain.OrderSource
func (s *OrderSource) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	c := cloneOrder(o)
	return &c, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

// SlotScoreRepository is an in-memory domain.SlotScoreRepository
type SlotScoreRepository struct {
	mu     sync.RWMutex
	scores map[string]domain.SlotScore
}

// NewSlotScoreRepository creates a SlotScoreRepository
func NewSlotScoreRepository() *SlotScoreRepository {
	return &SlotScoreRepository{scores: make(map[string]domain.SlotScore)}
}

// Upsert implements domain.SlotScoreRepository
func (r *SlotScoreRepository) Upsert(_ context.Context, scores []*domain.SlotScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range scores {
		c := *s
		if s.Relocation != nil {
			rel := *s.Relocation
			c.Relocation = &rel
		}
		r.scores[binKey(s.WarehouseID, s.ProductID, s.VariantID)] = c
	}
	return nil
}

// Find implements domain.SlotScoreRepository
func (r *SlotScoreRepository) Find(_ context.Context, warehouseID string, class domain.VelocityClass) ([]*domain.SlotScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.SlotScore, 0)
	for _, s := range r.scores {
		if s.WarehouseID != warehouseID || (class != "" && s.Class != class) {
			continue
		}
		c := s
		if s.Relocation != nil {
			rel := *s.Relocation
			c.Relocation = &rel
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VelocityScore != out[j].VelocityScore {
			return out[i].VelocityScore > out[j].VelocityScore
		}
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariantID < out[j].VariantID
	})
	return out, nil
}

// WorkerLocationStore is an in-memory domain.WorkerLocationStore
type WorkerLocationStore struct {
	mu        sync.RWMutex
	locations map[string]domain.WorkerLocation
}

// NewWorkerLocationStore creates a WorkerLocationStore
func NewWorkerLocationStore() *WorkerLocationStore {
	return &WorkerLocationStore{locations: make(map[string]domain.WorkerLocation)}
}

// Get implements domain.WorkerLocationStore
func (s *WorkerLocationStore) Get(_ context.Context, workerID string) (*domain.WorkerLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[workerID]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

// Save implements domain.WorkerLocationStore
func (s *WorkerLocationStore) Save(_ context.Context, location *domain.WorkerLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[location.WorkerID] = *location
	return nil
}
