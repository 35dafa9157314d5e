package domain

import (
	"context"
	"time"
)

// TaskFilter selects tasks for listing
type TaskFilter struct {
	WarehouseID string
	WaveID      string
	AssignedTo  string
	Statuses    []TaskStatus
	Types       []TaskType
	Limit       int
}

// CandidateQuery selects dispatch candidates: PENDING tasks that are
// unassigned or already earmarked for the worker.
type CandidateQuery struct {
	WorkerID    string
	WarehouseID string
	Types       []TaskType
	Equipment   string
	Limit       int
}

// TaskRepository defines the interface for task persistence
type TaskRepository interface {
	// Save persists a task (create or update) together with its domain events
	Save(ctx context.Context, task *Task) error

	// SaveAll persists a batch of tasks together with their domain events
	SaveAll(ctx context.Context, tasks []*Task) error

	// Claim persists a task that was just assigned, but only if the stored
	// copy is still PENDING and unassigned or assigned to the same worker.
	// A lost race yields ErrClaimConflict and leaves storage untouched.
	Claim(ctx context.Context, task *Task) error

	// FindByID returns nil without error when the task does not exist
	FindByID(ctx context.Context, taskID string) (*Task, error)

	// Find lists tasks ordered by creation time
	Find(ctx context.Context, filter TaskFilter) ([]*Task, error)

	// FindCandidates returns dispatch candidates ordered by creation time
	FindCandidates(ctx context.Context, query CandidateQuery) ([]*Task, error)

	// CountByWave counts a wave's tasks in the given statuses
	CountByWave(ctx context.Context, waveID string, statuses []TaskStatus) (int64, error)

	// AggregateCompletedPicks groups completed PICK tasks completed in
	// [from, to) by product and variant
	AggregateCompletedPicks(ctx context.Context, warehouseID string, from, to time.Time) ([]ProductPicks, error)
}

// WaveFilter selects waves for listing
type WaveFilter struct {
	WarehouseID string
	Status      WaveStatus
	Limit       int
}

// WaveRepository defines the interface for wave persistence
type WaveRepository interface {
	// Save persists a wave (create or update) together with its domain events
	Save(ctx context.Context, wave *Wave) error

	// FindByNumber returns nil without error when the wave does not exist
	FindByNumber(ctx context.Context, waveNumber string) (*Wave, error)

	// Find lists waves, newest first
	Find(ctx context.Context, filter WaveFilter) ([]*Wave, error)
}

// WavePicklistRepository persists wave to picklist links
type WavePicklistRepository interface {
	SaveAll(ctx context.Context, links []*WavePicklist) error

	// FindByWave returns the links of a wave ordered by sequence
	FindByWave(ctx context.Context, waveNumber string) ([]*WavePicklist, error)

	// FindByOrder returns every link of an order, across waves
	FindByOrder(ctx context.Context, orderID string) ([]*WavePicklist, error)
}

// PicklistRepository defines the interface for picklist persistence
type PicklistRepository interface {
	Save(ctx context.Context, picklist *Picklist) error

	// FindByID returns nil without error when the picklist does not exist
	FindByID(ctx context.Context, picklistID string) (*Picklist, error)

	// FindByOrderID returns nil without error when no picklist covers the order
	FindByOrderID(ctx context.Context, orderID string) (*Picklist, error)
}

// SlotScoreRepository persists slot scores keyed by warehouse, product and variant
type SlotScoreRepository interface {
	Upsert(ctx context.Context, scores []*SlotScore) error

	// Find lists a warehouse's scores; an empty class returns all classes
	Find(ctx context.Context, warehouseID string, class VelocityClass) ([]*SlotScore, error)
}

// SequenceGenerator issues monotonically increasing numbers per key
type SequenceGenerator interface {
	Next(ctx context.Context, key string) (int64, error)
}

// EventRecorder durably records domain events of aggregates that have no
// repository of their own
type EventRecorder interface {
	Record(ctx context.Context, aggregateID string, events []DomainEvent) error
}
