// Package memory holds in-process implementations of the engine's stores.
// They back the memory storage mode and the application tests. Every read
// returns a copy, so callers never alias stored state.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
)

// Store bundles every in-memory repository over one outbox
type Store struct {
	Tasks         *TaskRepository
	Waves         *WaveRepository
	WavePicklists *WavePicklistRepository
	Picklists     *PicklistRepository
	SlotScores    *SlotScoreRepository
	Sequences     *SequenceGenerator
	Directory     *Directory
	Orders        *OrderSource
	Locations     *WorkerLocationStore
	Outbox        *OutboxRepository
}

// NewStore creates an empty store. With a nil mapper domain events are
// dropped instead of written to the outbox.
func NewStore(mapper *eventing.Mapper) *Store {
	outbox := NewOutboxRepository()
	sink := &eventSink{mapper: mapper, outbox: outbox}

	return &Store{
		Tasks:         NewTaskRepository(sink),
		Waves:         NewWaveRepository(sink),
		WavePicklists: NewWavePicklistRepository(),
		Picklists:     NewPicklistRepository(),
		SlotScores:    NewSlotScoreRepository(),
		Sequences:     NewSequenceGenerator(),
		Directory:     NewDirectory(),
		Orders:        NewOrderSource(),
		Locations:     NewWorkerLocationStore(),
		Outbox:        outbox,
	}
}

// eventSink converts aggregate events into outbox rows
type eventSink struct {
	mapper *eventing.Mapper
	outbox *OutboxRepository
}

func (s *eventSink) record(ctx context.Context, events []domain.DomainEvent) error {
	if s == nil || s.mapper == nil || len(events) == 0 {
		return nil
	}
	rows, err := s.mapper.ToOutbox(ctx, events)
	if err != nil {
		return err
	}
	return s.outbox.SaveAll(ctx, rows)
}

// SequenceGenerator issues per-key counters
type SequenceGenerator struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewSequenceGenerator creates a SequenceGenerator
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{counters: make(map[string]int64)}
}

// Next implements domain.SequenceGenerator
func (g *SequenceGenerator) Next(_ context.Context, key string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[key]++
	return g.counters[key], nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
