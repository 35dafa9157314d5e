package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
)

// TaskRepository is an in-memory domain.TaskRepository. Every write is a
// compare-and-swap on the stored version under the repository mutex.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	order map[string]int
	next  int
	sink  *eventSink
}

// NewTaskRepository creates a TaskRepository
func NewTaskRepository(sink *eventSink) *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string]*domain.Task),
		order: make(map[string]int),
		sink:  sink,
	}
}

// Save implements domain.TaskRepository
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkVersion(task); err != nil {
		return err
	}
	return r.put(ctx, task)
}

// SaveAll implements domain.TaskRepository. Nothing is written unless every
// task still carries its stored version.
func (r *TaskRepository) SaveAll(ctx context.Context, tasks []*domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range tasks {
		if err := r.checkVersion(task); err != nil {
			return err
		}
	}
	for _, task := range tasks {
		if err := r.put(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// Claim implements domain.TaskRepository
func (r *TaskRepository) Claim(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[task.TaskID]
	if !ok {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, task.TaskID)
	}
	if stored.Status != domain.TaskStatusPending ||
		(stored.AssignedTo != "" && stored.AssignedTo != task.AssignedTo) {
		return fmt.Errorf("%w: task %s is %s for %q", domain.ErrClaimConflict, task.TaskID, stored.Status, stored.AssignedTo)
	}
	if err := r.checkVersion(task); err != nil {
		return err
	}
	return r.put(ctx, task)
}

func (r *TaskRepository) checkVersion(task *domain.Task) error {
	var current int64
	if stored, ok := r.tasks[task.TaskID]; ok {
		current = stored.Version
	}
	if current != task.Version {
		return fmt.Errorf("%w: task %s is at version %d, write was based on %d",
			domain.ErrConcurrentModification, task.TaskID, current, task.Version)
	}
	return nil
}

// put stores the task at the next version. Callers check the version first.
func (r *TaskRepository) put(ctx context.Context, task *domain.Task) error {
	if err := r.sink.record(ctx, task.GetDomainEvents()); err != nil {
		return err
	}
	if _, ok := r.order[task.TaskID]; !ok {
		r.next++
		r.order[task.TaskID] = r.next
	}
	task.Version++
	r.tasks[task.TaskID] = cloneTask(task)
	task.ClearDomainEvents()
	return nil
}

// FindByID implements domain.TaskRepository
func (r *TaskRepository) FindByID(_ context.Context, taskID string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return cloneTask(task), nil
}

// Find implements domain.TaskRepository
func (r *TaskRepository) Find(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	return r.collect(filter.Limit, func(t *domain.Task) bool {
		return (filter.WarehouseID == "" || t.WarehouseID == filter.WarehouseID) &&
			(filter.WaveID == "" || t.WaveID == filter.WaveID) &&
			(filter.AssignedTo == "" || t.AssignedTo == filter.AssignedTo) &&
			hasStatus(filter.Statuses, t.Status) &&
			hasType(filter.Types, t.Type)
	}), nil
}

// FindCandidates implements domain.TaskRepository
func (r *TaskRepository) FindCandidates(_ context.Context, query domain.CandidateQuery) ([]*domain.Task, error) {
	return r.collect(query.Limit, func(t *domain.Task) bool {
		return t.Status == domain.TaskStatusPending &&
			(t.AssignedTo == "" || t.AssignedTo == query.WorkerID) &&
			(query.WarehouseID == "" || t.WarehouseID == query.WarehouseID) &&
			hasType(query.Types, t.Type) &&
			t.MatchesEquipment(query.Equipment)
	}), nil
}

// CountByWave implements domain.TaskRepository
func (r *TaskRepository) CountByWave(_ context.Context, waveID string, statuses []domain.TaskStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.tasks {
		if t.WaveID == waveID && hasStatus(statuses, t.Status) {
			n++
		}
	}
	return n, nil
}

// AggregateCompletedPicks implements domain.TaskRepository
func (r *TaskRepository) AggregateCompletedPicks(_ context.Context, warehouseID string, from, to time.Time) ([]domain.ProductPicks, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct{ product, variant string }
	groups := make(map[key]*domain.ProductPicks)
	for _, t := range r.tasks {
		if t.Type != domain.TaskTypePick || t.Status != domain.TaskStatusCompleted || t.WarehouseID != warehouseID {
			continue
		}
		if t.CompletedAt == nil || t.CompletedAt.Before(from) || !t.CompletedAt.Before(to) {
			continue
		}
		k := key{t.ProductID, t.VariantID}
		g, ok := groups[k]
		if !ok {
			g = &domain.ProductPicks{ProductID: t.ProductID, VariantID: t.VariantID}
			groups[k] = g
		}
		g.PickCount++
		g.Quantity += t.QuantityCompleted
	}

	out := make([]domain.ProductPicks, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].VariantID < out[j].VariantID
	})
	return out, nil
}

// collect returns matching tasks in creation order
func (r *TaskRepository) collect(limit int, match func(*domain.Task) bool) []*domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Task, 0)
	for _, t := range r.tasks {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return r.order[out[i].TaskID] < r.order[out[j].TaskID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i, t := range out {
		out[i] = cloneTask(t)
	}
	return out
}

func hasStatus(statuses []domain.TaskStatus, status domain.TaskStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func hasType(types []domain.TaskType, t domain.TaskType) bool {
	if len(types) == 0 {
		return true
	}
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.DueAt = cloneTime(t.DueAt)
	c.AssignedAt = cloneTime(t.AssignedAt)
	c.StartedAt = cloneTime(t.StartedAt)
	c.PausedAt = cloneTime(t.PausedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.CancelledAt = cloneTime(t.CancelledAt)
	if t.Equipment != nil {
		e := *t.Equipment
		c.Equipment = &e
	}
	if t.Metrics != nil {
		m := *t.Metrics
		c.Metrics = &m
	}
	c.History = append([]domain.Transition(nil), t.History...)
	c.DomainEvents = nil
	return &c
}
