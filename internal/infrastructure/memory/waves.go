package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wms-platform/task-engine/internal/domain"
)

// WaveRepository is an in-memory domain.WaveRepository
type WaveRepository struct {
	mu    sync.RWMutex
	waves map[string]*domain.Wave
	sink  *eventSink
}

// NewWaveRepository creates a WaveRepository
func NewWaveRepository(sink *eventSink) *WaveRepository {
	return &WaveRepository{waves: make(map[string]*domain.Wave), sink: sink}
}

// Save implements domain.WaveRepository. The write only lands while the
// stored version still matches the caller's copy.
func (r *WaveRepository) Save(ctx context.Context, wave *domain.Wave) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current int64
	if stored, ok := r.waves[wave.WaveNumber]; ok {
		current = stored.Version
	}
	if current != wave.Version {
		return fmt.Errorf("%w: wave %s is at version %d, write was based on %d",
			domain.ErrConcurrentModification, wave.WaveNumber, current, wave.Version)
	}

	if err := r.sink.record(ctx, wave.GetDomainEvents()); err != nil {
		return err
	}
	wave.Version++
	r.waves[wave.WaveNumber] = cloneWave(wave)
	wave.ClearDomainEvents()
	return nil
}

// FindByNumber implements domain.WaveRepository
func (r *WaveRepository) FindByNumber(_ context.Context, waveNumber string) (*domain.Wave, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wave, ok := r.waves[waveNumber]
	if !ok {
		return nil, nil
	}
	return cloneWave(wave), nil
}

// Find implements domain.WaveRepository
func (r *WaveRepository) Find(_ context.Context, filter domain.WaveFilter) ([]*domain.Wave, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Wave, 0)
	for _, w := range r.waves {
		if filter.WarehouseID != "" && w.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, cloneWave(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].WaveNumber > out[j].WaveNumber
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func cloneWave(w *domain.Wave) *domain.Wave {
	c := *w
	c.CutoffAt = cloneTime(w.CutoffAt)
	c.ReleasedAt = cloneTime(w.ReleasedAt)
	c.StartedAt = cloneTime(w.StartedAt)
	c.CompletedAt = cloneTime(w.CompletedAt)
	c.CancelledAt = cloneTime(w.CancelledAt)
	c.AssignedWorkers = cloneStrings(w.AssignedWorkers)
	c.Filters.Zones = cloneStrings(w.Filters.Zones)
	c.Filters.Channels = cloneStrings(w.Filters.Channels)
	c.Filters.CustomerTypes = cloneStrings(w.Filters.CustomerTypes)
	c.DomainEvents = nil
	return &c
}

// WavePicklistRepository is an in-memory domain.WavePicklistRepository
type WavePicklistRepository struct {
	mu    sync.RWMutex
	links map[string][]domain.WavePicklist
}

// NewWavePicklistRepository creates a WavePicklistRepository
func NewWavePicklistRepository() *WavePicklistRepository {
	return &WavePicklistRepository{links: make(map[string][]domain.WavePicklist)}
}

// SaveAll implements domain.WavePicklistRepository
func (r *WavePicklistRepository) SaveAll(_ context.Context, links []*domain.WavePicklist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, link := range links {
		r.links[link.WaveNumber] = append(r.links[link.WaveNumber], *link)
	}
	return nil
}

// FindByWave implements domain.WavePicklistRepository
func (r *WavePicklistRepository) FindByWave(_ context.Context, waveNumber string) ([]*domain.WavePicklist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.links[waveNumber]
	out := make([]*domain.WavePicklist, 0, len(stored))
	for i := range stored {
		link := stored[i]
		out = append(out, &link)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// FindByOrder implements domain.WavePicklistRepository
func (r *WavePicklistRepository) FindByOrder(_ context.Context, orderID string) ([]*domain.WavePicklist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.WavePicklist, 0)
	for _, stored := range r.links {
		for i := range stored {
			if stored[i].OrderID != orderID {
				continue
			}
			link := stored[i]
			out = append(out, &link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WaveNumber < out[j].WaveNumber })
	return out, nil
}

// PicklistRepository is an in-memory domain.PicklistRepository
type PicklistRepository struct {
	mu        sync.RWMutex
	picklists map[string]*domain.Picklist
	byOrder   map[string]string
}

// NewPicklistRepository creates a PicklistRepository
func NewPicklistRepository() *PicklistRepository {
	return &PicklistRepository{
		picklists: make(map[string]*domain.Picklist),
		byOrder:   make(map[string]string),
	}
}

// Save implements domain.PicklistRepository
func (r *PicklistRepository) Save(_ context.Context, picklist *domain.Picklist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.picklists[picklist.PicklistID] = clonePicklist(picklist)
	r.byOrder[picklist.OrderID] = picklist.PicklistID
	return nil
}

// FindByID implements domain.PicklistRepository
func (r *PicklistRepository) FindByID(_ context.Context, picklistID string) (*domain.Picklist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	picklist, ok := r.picklists[picklistID]
	if !ok {
		return nil, nil
	}
	return clonePicklist(picklist), nil
}

// FindByOrderID implements domain.PicklistRepository
func (r *PicklistRepository) FindByOrderID(_ context.Context, orderID string) (*domain.Picklist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	return clonePicklist(r.picklists[id]), nil
}

func clonePicklist(p *domain.Picklist) *domain.Picklist {
	c := *p
	c.Items = append([]domain.PicklistItem(nil), p.Items...)
	return &c
}
