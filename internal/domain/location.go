package domain

import (
	"context"
	"time"
)

// WorkerLocation is the cached position and daily counters of a worker
type WorkerLocation struct {
	WorkerID            string    `json:"workerId"`
	WarehouseID         string    `json:"warehouseId,omitempty"`
	Zone                string    `json:"zone,omitempty"`
	Bin                 string    `json:"bin,omitempty"`
	CurrentTaskID       string    `json:"currentTaskId,omitempty"`
	TasksCompletedToday int       `json:"tasksCompletedToday"`
	ItemsCompletedToday int       `json:"itemsCompletedToday"`
	CounterDate         string    `json:"counterDate,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// NewWorkerLocation creates an empty location record for a worker
func NewWorkerLocation(workerID string) *WorkerLocation {
	return &WorkerLocation{WorkerID: workerID}
}

// MoveTo records a new position. Empty values keep the previous one.
func (l *WorkerLocation) MoveTo(warehouseID, zone, bin string, now time.Time) {
	if warehouseID != "" {
		l.WarehouseID = warehouseID
	}
	if zone != "" {
		l.Zone = zone
	}
	if bin != "" {
		l.Bin = bin
	}
	l.UpdatedAt = now
}

// AssignTask points the worker at a newly claimed task
func (l *WorkerLocation) AssignTask(taskID string, now time.Time) {
	l.CurrentTaskID = taskID
	l.UpdatedAt = now
}

// CompleteTask bumps the daily counters and clears the task pointer.
// Counters reset on the first completion of a new day.
func (l *WorkerLocation) CompleteTask(taskID string, items int, now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if l.CounterDate != day {
		l.CounterDate = day
		l.TasksCompletedToday = 0
		l.ItemsCompletedToday = 0
	}
	l.TasksCompletedToday++
	l.ItemsCompletedToday += items
	if l.CurrentTaskID == taskID {
		l.CurrentTaskID = ""
	}
	l.UpdatedAt = now
}

// ReleaseTask clears the task pointer if it still references taskID
func (l *WorkerLocation) ReleaseTask(taskID string, now time.Time) {
	if l.CurrentTaskID == taskID {
		l.CurrentTaskID = ""
		l.UpdatedAt = now
	}
}

// WorkerLocationStore caches worker locations
type WorkerLocationStore interface {
	// Get returns nil without error when the worker has no cached location
	Get(ctx context.Context, workerID string) (*WorkerLocation, error)
	Save(ctx context.Context, location *WorkerLocation) error
}
