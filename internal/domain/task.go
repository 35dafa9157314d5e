package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskType is the kind of warehouse work a task represents
type TaskType string

const (
	TaskTypePick      TaskType = "PICK"
	TaskTypePutaway   TaskType = "PUTAWAY"
	TaskTypeCount     TaskType = "COUNT"
	TaskTypeReplenish TaskType = "REPLENISH"
)

// ParseTaskType validates a task type string
func ParseTaskType(s string) (TaskType, error) {
	switch t := TaskType(strings.ToUpper(s)); t {
	case TaskTypePick, TaskTypePutaway, TaskTypeCount, TaskTypeReplenish:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown task type %q", ErrInvalidArgument, s)
	}
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusPaused     TaskStatus = "PAUSED"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// ParseTaskStatus validates a task status string
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(strings.ToUpper(s)); st {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusPaused, TaskStatusCompleted, TaskStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown task status %q", ErrInvalidArgument, s)
	}
}

// IsTerminal reports whether no further transitions are possible
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// HoldsAssignment reports whether a task in this status carries an assignee
func (s TaskStatus) HoldsAssignment() bool {
	switch s {
	case TaskStatusAssigned, TaskStatusInProgress, TaskStatusPaused:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the task state machine allows s -> next
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if next == TaskStatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusAssigned
	case TaskStatusAssigned:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusPaused || next == TaskStatusCompleted
	case TaskStatusPaused:
		return next == TaskStatusInProgress
	default:
		return false
	}
}

// OutstandingTaskStatuses are the statuses that keep a wave open
var OutstandingTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusAssigned,
	TaskStatusInProgress,
	TaskStatusPaused,
}

// TaskPriority is the business priority of a task
type TaskPriority string

const (
	TaskPriorityUrgent TaskPriority = "URGENT"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityNormal TaskPriority = "NORMAL"
	TaskPriorityLow    TaskPriority = "LOW"
)

// ParseTaskPriority validates a priority string; empty means NORMAL
func ParseTaskPriority(s string) (TaskPriority, error) {
	if s == "" {
		return TaskPriorityNormal, nil
	}
	switch p := TaskPriority(strings.ToUpper(s)); p {
	case TaskPriorityUrgent, TaskPriorityHigh, TaskPriorityNormal, TaskPriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown task priority %q", ErrInvalidArgument, s)
	}
}

// Equipment is the equipment a worker binds to a task when starting it
type Equipment struct {
	Type string `bson:"type" json:"type"`
	ID   string `bson:"id,omitempty" json:"id,omitempty"`
}

// TaskMetrics holds the derived performance figures of a completed task
type TaskMetrics struct {
	TravelSeconds    int64 `bson:"travelSeconds" json:"travelSeconds"`
	ExecutionSeconds int64 `bson:"executionSeconds" json:"executionSeconds"`
	TotalSeconds     int64 `bson:"totalSeconds" json:"totalSeconds"`
}

// Transition records one status change
type Transition struct {
	From TaskStatus `bson:"from" json:"from"`
	To   TaskStatus `bson:"to" json:"to"`
	At   time.Time  `bson:"at" json:"at"`
}

// Task is the aggregate root for a single unit of warehouse work.
// AssignedTo is set exactly while the status is ASSIGNED, IN_PROGRESS or PAUSED.
type Task struct {
	TaskID             string       `bson:"taskId"`
	WarehouseID        string       `bson:"warehouseId"`
	Type               TaskType     `bson:"type"`
	Status             TaskStatus   `bson:"status"`
	Priority           TaskPriority `bson:"priority"`
	Zone               string       `bson:"zone,omitempty"`
	SourceBin          string       `bson:"sourceBin,omitempty"`
	DestinationBin     string       `bson:"destinationBin,omitempty"`
	NeedsBinResolution bool         `bson:"needsBinResolution"`
	ProductID          string       `bson:"productId"`
	VariantID          string       `bson:"variantId,omitempty"`
	QuantityRequired   int          `bson:"quantityRequired"`
	QuantityCompleted  int          `bson:"quantityCompleted"`
	QuantityException  int          `bson:"quantityException"`
	RequiredEquipment  string       `bson:"requiredEquipment,omitempty"`
	Equipment          *Equipment   `bson:"equipment,omitempty"`
	DueAt              *time.Time   `bson:"dueAt,omitempty"`
	AssignedTo         string       `bson:"assignedTo,omitempty"`
	CompletedBy        string       `bson:"completedBy,omitempty"`
	AssignedAt         *time.Time   `bson:"assignedAt,omitempty"`
	StartedAt          *time.Time   `bson:"startedAt,omitempty"`
	PausedAt           *time.Time   `bson:"pausedAt,omitempty"`
	CompletedAt        *time.Time   `bson:"completedAt,omitempty"`
	CancelledAt        *time.Time   `bson:"cancelledAt,omitempty"`
	Metrics            *TaskMetrics `bson:"metrics,omitempty"`
	WaveID             string       `bson:"waveId,omitempty"`
	PicklistID         string       `bson:"picklistId,omitempty"`
	PicklistItemID     string       `bson:"picklistItemId,omitempty"`
	Notes              string       `bson:"notes,omitempty"`
	History            []Transition `bson:"history"`
	CreatedAt          time.Time    `bson:"createdAt"`
	UpdatedAt          time.Time    `bson:"updatedAt"`
	Version            int64        `bson:"version"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewTaskParams holds the inputs for creating a task
type NewTaskParams struct {
	TaskID            string
	WarehouseID       string
	Type              TaskType
	Priority          TaskPriority
	Zone              string
	SourceBin         string
	DestinationBin    string
	ProductID         string
	VariantID         string
	Quantity          int
	RequiredEquipment string
	DueAt             *time.Time
	WaveID            string
	PicklistID        string
	PicklistItemID    string
}

// CompletionResult is what a worker reports when finishing a task
type CompletionResult struct {
	QuantityCompleted int
	QuantityException int
	DestinationBin    string
	Notes             string
}

// NewTask creates a PENDING task. A task without a source bin is flagged for
// manual bin resolution.
func NewTask(p NewTaskParams, now time.Time) (*Task, error) {
	if p.TaskID == "" || p.WarehouseID == "" {
		return nil, fmt.Errorf("%w: task id and warehouse are required", ErrInvalidArgument)
	}
	if _, err := ParseTaskType(string(p.Type)); err != nil {
		return nil, err
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidQuantity)
	}
	priority := p.Priority
	if priority == "" {
		priority = TaskPriorityNormal
	}

	task := &Task{
		TaskID:             p.TaskID,
		WarehouseID:        p.WarehouseID,
		Type:               p.Type,
		Status:             TaskStatusPending,
		Priority:           priority,
		Zone:               p.Zone,
		SourceBin:          p.SourceBin,
		DestinationBin:     p.DestinationBin,
		NeedsBinResolution: p.SourceBin == "",
		ProductID:          p.ProductID,
		VariantID:          p.VariantID,
		QuantityRequired:   p.Quantity,
		RequiredEquipment:  p.RequiredEquipment,
		DueAt:              p.DueAt,
		WaveID:             p.WaveID,
		PicklistID:         p.PicklistID,
		PicklistItemID:     p.PicklistItemID,
		History:            make([]Transition, 0, 4),
		CreatedAt:          now,
		UpdatedAt:          now,
		DomainEvents:       make([]DomainEvent, 0),
	}

	task.AddDomainEvent(&TaskCreatedEvent{
		TaskID:      task.TaskID,
		WaveID:      task.WaveID,
		WarehouseID: task.WarehouseID,
		Type:        task.Type,
		ProductID:   task.ProductID,
		Quantity:    task.QuantityRequired,
		CreatedAt:   now,
	})

	return task, nil
}

// Assign assigns a PENDING task to a worker
func (t *Task) Assign(workerID string, now time.Time) error {
	if workerID == "" {
		return fmt.Errorf("%w: worker id is required", ErrInvalidArgument)
	}
	if t.AssignedTo != "" && t.AssignedTo != workerID {
		return t.ownershipError(workerID)
	}
	if err := t.transition(TaskStatusAssigned, now); err != nil {
		return err
	}

	t.AssignedTo = workerID
	t.AssignedAt = &now

	t.AddDomainEvent(&TaskAssignedEvent{
		TaskID:     t.TaskID,
		WaveID:     t.WaveID,
		WorkerID:   workerID,
		AssignedAt: now,
	})
	return nil
}

// Start moves the task to IN_PROGRESS for the given worker. An unassigned
// PENDING task is assigned to the worker first; a PAUSED task is resumed.
func (t *Task) Start(workerID string, equipment *Equipment, now time.Time) error {
	switch t.Status {
	case TaskStatusPending:
		if err := t.Assign(workerID, now); err != nil {
			return err
		}
	case TaskStatusPaused:
		return t.Resume(workerID, now)
	case TaskStatusAssigned:
		if t.AssignedTo != workerID {
			return t.ownershipError(workerID)
		}
	default:
		return t.transitionError(TaskStatusInProgress)
	}

	if err := t.transition(TaskStatusInProgress, now); err != nil {
		return err
	}
	t.StartedAt = &now
	if equipment != nil {
		t.Equipment = equipment
	}

	t.AddDomainEvent(&TaskStartedEvent{
		TaskID:      t.TaskID,
		WaveID:      t.WaveID,
		WarehouseID: t.WarehouseID,
		WorkerID:    workerID,
		Equipment:   t.Equipment,
		StartedAt:   now,
	})
	return nil
}

// Pause pauses an IN_PROGRESS task and appends the reason to the notes
func (t *Task) Pause(reason string, now time.Time) error {
	if err := t.transition(TaskStatusPaused, now); err != nil {
		return err
	}
	t.PausedAt = &now
	t.appendNote("Paused: " + reason)

	t.AddDomainEvent(&TaskPausedEvent{
		TaskID:   t.TaskID,
		WorkerID: t.AssignedTo,
		Reason:   reason,
		PausedAt: now,
	})
	return nil
}

// Resume moves a PAUSED task back to IN_PROGRESS for its assignee
func (t *Task) Resume(workerID string, now time.Time) error {
	if t.Status == TaskStatusPaused && t.AssignedTo != workerID {
		return t.ownershipError(workerID)
	}
	if t.Status != TaskStatusPaused {
		return t.transitionError(TaskStatusInProgress)
	}
	if err := t.transition(TaskStatusInProgress, now); err != nil {
		return err
	}

	t.AddDomainEvent(&TaskResumedEvent{
		TaskID:    t.TaskID,
		WorkerID:  workerID,
		ResumedAt: now,
	})
	return nil
}

// Complete records the outcome of an IN_PROGRESS task owned by workerID
func (t *Task) Complete(workerID string, result CompletionResult, now time.Time) error {
	if !t.Status.CanTransitionTo(TaskStatusCompleted) {
		return t.transitionError(TaskStatusCompleted)
	}
	if t.AssignedTo != workerID {
		return t.ownershipError(workerID)
	}
	if result.QuantityCompleted < 0 || result.QuantityException < 0 {
		return fmt.Errorf("%w: quantities must not be negative", ErrInvalidQuantity)
	}
	if result.QuantityCompleted+result.QuantityException > t.QuantityRequired {
		return fmt.Errorf("%w: reported %d of %d required",
			ErrCapacityExceeded, result.QuantityCompleted+result.QuantityException, t.QuantityRequired)
	}

	if err := t.transition(TaskStatusCompleted, now); err != nil {
		return err
	}
	t.QuantityCompleted = result.QuantityCompleted
	t.QuantityException = result.QuantityException
	if result.DestinationBin != "" {
		t.DestinationBin = result.DestinationBin
	}
	if result.Notes != "" {
		t.appendNote(result.Notes)
	}
	t.CompletedAt = &now
	t.CompletedBy = workerID
	t.AssignedTo = ""
	t.Metrics = computeMetrics(t.AssignedAt, t.StartedAt, now)

	t.AddDomainEvent(&TaskCompletedEvent{
		TaskID:            t.TaskID,
		WaveID:            t.WaveID,
		WorkerID:          workerID,
		Type:              t.Type,
		ProductID:         t.ProductID,
		QuantityCompleted: t.QuantityCompleted,
		QuantityException: t.QuantityException,
		Metrics:           *t.Metrics,
		CompletedAt:       now,
	})
	t.addSettledEvent(now)
	return nil
}

// Cancel cancels a non-terminal task
func (t *Task) Cancel(reason string, now time.Time) error {
	if err := t.transition(TaskStatusCancelled, now); err != nil {
		return err
	}
	t.CancelledAt = &now
	t.AssignedTo = ""
	if reason != "" {
		t.appendNote("Cancelled: " + reason)
	}

	t.AddDomainEvent(&TaskCancelledEvent{
		TaskID:      t.TaskID,
		WaveID:      t.WaveID,
		Reason:      reason,
		CancelledAt: now,
	})
	t.addSettledEvent(now)
	return nil
}

// MatchesEquipment reports whether a worker with the given equipment can take the task
func (t *Task) MatchesEquipment(equipment string) bool {
	return equipment == "" || t.RequiredEquipment == "" || strings.EqualFold(t.RequiredEquipment, equipment)
}

// AddDomainEvent adds a domain event
func (t *Task) AddDomainEvent(event DomainEvent) {
	t.DomainEvents = append(t.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (t *Task) ClearDomainEvents() {
	t.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (t *Task) GetDomainEvents() []DomainEvent {
	return t.DomainEvents
}

// LastTransition returns the most recent transition, if any
func (t *Task) LastTransition() (Transition, bool) {
	if len(t.History) == 0 {
		return Transition{}, false
	}
	return t.History[len(t.History)-1], true
}

func (t *Task) transition(next TaskStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return t.transitionError(next)
	}
	t.History = append(t.History, Transition{From: t.Status, To: next, At: now})
	t.Status = next
	t.UpdatedAt = now
	return nil
}

func (t *Task) transitionError(next TaskStatus) error {
	return fmt.Errorf("%w: task %s cannot move from %s to %s", ErrInvalidStateTransition, t.TaskID, t.Status, next)
}

func (t *Task) ownershipError(workerID string) error {
	return fmt.Errorf("%w: task %s is held by %q, not %q", ErrOwnershipMismatch, t.TaskID, t.AssignedTo, workerID)
}

func (t *Task) appendNote(note string) {
	if t.Notes == "" {
		t.Notes = note
		return
	}
	t.Notes += "\n" + note
}

func (t *Task) addSettledEvent(now time.Time) {
	t.AddDomainEvent(&TaskSettledEvent{
		TaskID:      t.TaskID,
		WaveID:      t.WaveID,
		WarehouseID: t.WarehouseID,
		Status:      t.Status,
		SettledAt:   now,
	})
}

// computeMetrics measures total time from start to completion. When the task
// was assigned before it started, the gap is travel time and the remainder is
// execution time. Travel longer than the work leaves execution negative.
func computeMetrics(assignedAt, startedAt *time.Time, completedAt time.Time) *TaskMetrics {
	metrics := &TaskMetrics{}
	if startedAt == nil {
		return metrics
	}

	metrics.TotalSeconds = int64(completedAt.Sub(*startedAt).Seconds())
	metrics.ExecutionSeconds = metrics.TotalSeconds

	if assignedAt != nil && startedAt.After(*assignedAt) {
		metrics.TravelSeconds = int64(startedAt.Sub(*assignedAt).Seconds())
		metrics.ExecutionSeconds = metrics.TotalSeconds - metrics.TravelSeconds
	}
	return metrics
}
