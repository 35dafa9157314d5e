package domain

import (
	"time"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// WaveCreatedEvent is published when a wave is created
type WaveCreatedEvent struct {
	WaveNumber  string     `json:"waveNumber"`
	WarehouseID string     `json:"warehouseId"`
	CarrierID   string     `json:"carrierId,omitempty"`
	CutoffAt    *time.Time `json:"cutoffAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (e *WaveCreatedEvent) EventType() string     { return cloudevents.WaveCreated }
func (e *WaveCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// WaveReleasedEvent is published when a wave's picklists are exploded into tasks
type WaveReleasedEvent struct {
	WaveNumber       string    `json:"waveNumber"`
	WarehouseID      string    `json:"warehouseId"`
	PicklistsCreated int       `json:"picklistsCreated"`
	TasksCreated     int       `json:"tasksCreated"`
	PickersAssigned  int       `json:"pickersAssigned"`
	UnresolvedBins   int       `json:"unresolvedBins"`
	ReleasedAt       time.Time `json:"releasedAt"`
}

func (e *WaveReleasedEvent) EventType() string     { return cloudevents.WaveReleased }
func (e *WaveReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// WaveInProgressEvent is published when the first task of a wave starts
type WaveInProgressEvent struct {
	WaveNumber  string    `json:"waveNumber"`
	WarehouseID string    `json:"warehouseId"`
	StartedAt   time.Time `json:"startedAt"`
}

func (e *WaveInProgressEvent) EventType() string     { return cloudevents.WaveInProgress }
func (e *WaveInProgressEvent) OccurredAt() time.Time { return e.StartedAt }

// WaveCompletedEvent is published when a wave reaches COMPLETED
type WaveCompletedEvent struct {
	WaveNumber  string    `json:"waveNumber"`
	WarehouseID string    `json:"warehouseId"`
	TotalTasks  int       `json:"totalTasks"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *WaveCompletedEvent) EventType() string     { return cloudevents.WaveCompleted }
func (e *WaveCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// WaveCancelledEvent is published when a wave is cancelled
type WaveCancelledEvent struct {
	WaveNumber  string       `json:"waveNumber"`
	WarehouseID string       `json:"warehouseId"`
	Reason      string       `json:"reason"`
	Policy      CancelPolicy `json:"policy"`
	CancelledAt time.Time    `json:"cancelledAt"`
}

func (e *WaveCancelledEvent) EventType() string     { return cloudevents.WaveCancelled }
func (e *WaveCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// TaskCreatedEvent is published when a task is created
type TaskCreatedEvent struct {
	TaskID      string    `json:"taskId"`
	WaveID      string    `json:"waveId,omitempty"`
	WarehouseID string    `json:"warehouseId"`
	Type        TaskType  `json:"type"`
	ProductID   string    `json:"productId"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *TaskCreatedEvent) EventType() string     { return cloudevents.TaskCreated }
func (e *TaskCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// TaskAssignedEvent is published when a task is claimed by or assigned to a worker
type TaskAssignedEvent struct {
	TaskID     string    `json:"taskId"`
	WaveID     string    `json:"waveId,omitempty"`
	WorkerID   string    `json:"workerId"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e *TaskAssignedEvent) EventType() string     { return cloudevents.TaskAssigned }
func (e *TaskAssignedEvent) OccurredAt() time.Time { return e.AssignedAt }

// TaskStartedEvent is published when a worker starts a task
type TaskStartedEvent struct {
	TaskID      string     `json:"taskId"`
	WaveID      string     `json:"waveId,omitempty"`
	WarehouseID string     `json:"warehouseId"`
	WorkerID    string     `json:"workerId"`
	Equipment   *Equipment `json:"equipment,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
}

func (e *TaskStartedEvent) EventType() string     { return cloudevents.TaskStarted }
func (e *TaskStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// TaskPausedEvent is published when a task is paused
type TaskPausedEvent struct {
	TaskID   string    `json:"taskId"`
	WorkerID string    `json:"workerId"`
	Reason   string    `json:"reason"`
	PausedAt time.Time `json:"pausedAt"`
}

func (e *TaskPausedEvent) EventType() string     { return cloudevents.TaskPaused }
func (e *TaskPausedEvent) OccurredAt() time.Time { return e.PausedAt }

// TaskResumedEvent is published when a paused task is resumed
type TaskResumedEvent struct {
	TaskID    string    `json:"taskId"`
	WorkerID  string    `json:"workerId"`
	ResumedAt time.Time `json:"resumedAt"`
}

func (e *TaskResumedEvent) EventType() string     { return cloudevents.TaskResumed }
func (e *TaskResumedEvent) OccurredAt() time.Time { return e.ResumedAt }

// TaskCompletedEvent is published when a task is completed
type TaskCompletedEvent struct {
	TaskID            string      `json:"taskId"`
	WaveID            string      `json:"waveId,omitempty"`
	WorkerID          string      `json:"workerId"`
	Type              TaskType    `json:"type"`
	ProductID         string      `json:"productId"`
	QuantityCompleted int         `json:"quantityCompleted"`
	QuantityException int         `json:"quantityException"`
	Metrics           TaskMetrics `json:"metrics"`
	CompletedAt       time.Time   `json:"completedAt"`
}

func (e *TaskCompletedEvent) EventType() string     { return cloudevents.TaskCompleted }
func (e *TaskCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// TaskCancelledEvent is published when a task is cancelled
type TaskCancelledEvent struct {
	TaskID      string    `json:"taskId"`
	WaveID      string    `json:"waveId,omitempty"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

func (e *TaskCancelledEvent) EventType() string     { return cloudevents.TaskCancelled }
func (e *TaskCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }

// TaskSettledEvent is published whenever a task reaches a terminal status.
// Wave progress tracking consumes it to decide wave completion.
type TaskSettledEvent struct {
	TaskID      string     `json:"taskId"`
	WaveID      string     `json:"waveId,omitempty"`
	WarehouseID string     `json:"warehouseId"`
	Status      TaskStatus `json:"status"`
	SettledAt   time.Time  `json:"settledAt"`
}

func (e *TaskSettledEvent) EventType() string     { return cloudevents.TaskSettled }
func (e *TaskSettledEvent) OccurredAt() time.Time { return e.SettledAt }

// RelocationRecommendedEvent is published for every product flagged by slot optimization
type RelocationRecommendedEvent struct {
	WarehouseID   string             `json:"warehouseId"`
	ProductID     string             `json:"productId"`
	VariantID     string             `json:"variantId,omitempty"`
	Class         VelocityClass      `json:"class"`
	CurrentBin    string             `json:"currentBin"`
	Priority      RelocationPriority `json:"priority"`
	Action        RelocationAction   `json:"action"`
	Reason        string             `json:"reason"`
	RecommendedAt time.Time          `json:"recommendedAt"`
}

func (e *RelocationRecommendedEvent) EventType() string     { return cloudevents.RelocationRecommended }
func (e *RelocationRecommendedEvent) OccurredAt() time.Time { return e.RecommendedAt }

// SlotOptimizationCompletedEvent is published at the end of an optimization run
type SlotOptimizationCompletedEvent struct {
	WarehouseID      string                `json:"warehouseId"`
	ClassCounts      map[VelocityClass]int `json:"classCounts"`
	ProductsAnalyzed int                   `json:"productsAnalyzed"`
	FlaggedCount     int                   `json:"flaggedCount"`
	WindowStart      time.Time             `json:"windowStart"`
	WindowEnd        time.Time             `json:"windowEnd"`
}

func (e *SlotOptimizationCompletedEvent) EventType() string {
	return cloudevents.SlotOptimizationCompleted
}
func (e *SlotOptimizationCompletedEvent) OccurredAt() time.Time { return e.WindowEnd }
