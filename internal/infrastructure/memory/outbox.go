package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/pkg/outbox"
)

// OutboxRepository is an in-memory outbox.Repository
type OutboxRepository struct {
	mu     sync.RWMutex
	events map[string]*outbox.OutboxEvent
	order  []string
}

// NewOutboxRepository creates an OutboxRepository
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{events: make(map[string]*outbox.OutboxEvent)}
}

// SaveAll implements outbox.Repository
func (r *OutboxRepository) SaveAll(_ context.Context, events []*outbox.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		if _, ok := r.events[e.ID]; !ok {
			r.order = append(r.order, e.ID)
		}
		c := *e
		r.events[e.ID] = &c
	}
	return nil
}

// FindUnpublished implements outbox.Repository
func (r *OutboxRepository) FindUnpublished(_ context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*outbox.OutboxEvent, 0)
	for _, id := range r.order {
		e := r.events[id]
		if !e.ShouldRetry() {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished implements outbox.Repository
func (r *OutboxRepository) MarkPublished(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	now := time.Now().UTC()
	e.PublishedAt = &now
	return nil
}

// IncrementRetry implements outbox.Repository
func (r *OutboxRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	e.RetryCount++
	e.LastError = errorMsg
	return nil
}

// FindByAggregateID implements outbox.Repository
func (r *OutboxRepository) FindByAggregateID(_ context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*outbox.OutboxEvent, 0)
	for _, id := range r.order {
		if e := r.events[id]; e.AggregateID == aggregateID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Len returns the number of stored events
func (r *OutboxRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
