package domain

import (
	"fmt"
	"strings"
	"time"
)

// WaveStatus represents the status of a wave
type WaveStatus string

const (
	WaveStatusDraft      WaveStatus = "DRAFT"
	WaveStatusPlanned    WaveStatus = "PLANNED"
	WaveStatusReleased   WaveStatus = "RELEASED"
	WaveStatusInProgress WaveStatus = "IN_PROGRESS"
	WaveStatusCompleted  WaveStatus = "COMPLETED"
	WaveStatusCancelled  WaveStatus = "CANCELLED"
)

// ParseWaveStatus validates a wave status string
func ParseWaveStatus(s string) (WaveStatus, error) {
	switch st := WaveStatus(strings.ToUpper(s)); st {
	case WaveStatusDraft, WaveStatusPlanned, WaveStatusReleased,
		WaveStatusInProgress, WaveStatusCompleted, WaveStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown wave status %q", ErrInvalidArgument, s)
	}
}

// IsTerminal reports whether the wave can no longer change status
func (s WaveStatus) IsTerminal() bool {
	return s == WaveStatusCompleted || s == WaveStatusCancelled
}

// CanTransitionTo reports whether the wave state machine allows s -> next
func (s WaveStatus) CanTransitionTo(next WaveStatus) bool {
	if next == WaveStatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case WaveStatusDraft:
		return next == WaveStatusPlanned || next == WaveStatusReleased
	case WaveStatusPlanned:
		return next == WaveStatusReleased
	case WaveStatusReleased:
		return next == WaveStatusInProgress || next == WaveStatusCompleted
	case WaveStatusInProgress:
		return next == WaveStatusCompleted
	default:
		return false
	}
}

// CancelPolicy decides what happens to started tasks when a wave is cancelled
type CancelPolicy string

const (
	// CancelPolicyLetFinish cancels only PENDING and ASSIGNED tasks
	CancelPolicyLetFinish CancelPolicy = "let_finish"
	// CancelPolicyForceCancel also cancels IN_PROGRESS and PAUSED tasks
	CancelPolicyForceCancel CancelPolicy = "force_cancel"
)

// ParseCancelPolicy validates a policy string; empty yields the fallback
func ParseCancelPolicy(s string, fallback CancelPolicy) (CancelPolicy, error) {
	switch p := CancelPolicy(strings.ToLower(s)); p {
	case "":
		return fallback, nil
	case CancelPolicyLetFinish, CancelPolicyForceCancel:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown cancel policy %q", ErrInvalidArgument, s)
	}
}

// CancellableStatuses returns the task statuses a wave cancellation sweeps
func (p CancelPolicy) CancellableStatuses() []TaskStatus {
	if p == CancelPolicyForceCancel {
		return OutstandingTaskStatuses
	}
	return []TaskStatus{TaskStatusPending, TaskStatusAssigned}
}

// Sweeps reports whether a wave cancellation under p cancels a task in status
func (p CancelPolicy) Sweeps(status TaskStatus) bool {
	for _, s := range p.CancellableStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// WaveFilters restrict which orders are selected into a wave
type WaveFilters struct {
	Zones         []string `bson:"zones,omitempty" json:"zones,omitempty"`
	Channels      []string `bson:"channels,omitempty" json:"channels,omitempty"`
	CustomerTypes []string `bson:"customerTypes,omitempty" json:"customerTypes,omitempty"`
	MinPriority   int      `bson:"minPriority,omitempty" json:"minPriority,omitempty"`
	MaxPriority   int      `bson:"maxPriority,omitempty" json:"maxPriority,omitempty"`
}

// WaveOptimization holds the routing flags of a wave
type WaveOptimization struct {
	RouteOptimization bool    `bson:"routeOptimization" json:"routeOptimization"`
	ZoneGrouping      bool    `bson:"zoneGrouping" json:"zoneGrouping"`
	MaxPicksPerTrip   int     `bson:"maxPicksPerTrip,omitempty" json:"maxPicksPerTrip,omitempty"`
	MaxWeightPerTrip  float64 `bson:"maxWeightPerTrip,omitempty" json:"maxWeightPerTrip,omitempty"`
}

// WaveConfig is the input for creating a wave
type WaveConfig struct {
	WarehouseID  string
	CarrierID    string
	CutoffAt     *time.Time
	Filters      WaveFilters
	Optimization WaveOptimization
	CreatedBy    string
}

// Wave is the aggregate root for a batch of orders released together
type Wave struct {
	WaveNumber      string           `bson:"waveNumber"`
	WarehouseID     string           `bson:"warehouseId"`
	CarrierID       string           `bson:"carrierId,omitempty"`
	CutoffAt        *time.Time       `bson:"cutoffAt,omitempty"`
	Status          WaveStatus       `bson:"status"`
	Filters         WaveFilters      `bson:"filters"`
	Optimization    WaveOptimization `bson:"optimization"`
	TotalOrders     int              `bson:"totalOrders"`
	TotalPicklists  int              `bson:"totalPicklists"`
	TotalItems      int              `bson:"totalItems"`
	TotalTasks      int              `bson:"totalTasks"`
	AssignedWorkers []string         `bson:"assignedWorkers"`
	CancelReason    string           `bson:"cancelReason,omitempty"`
	CreatedBy       string           `bson:"createdBy,omitempty"`
	CreatedAt       time.Time        `bson:"createdAt"`
	UpdatedAt       time.Time        `bson:"updatedAt"`
	ReleasedAt      *time.Time       `bson:"releasedAt,omitempty"`
	StartedAt       *time.Time       `bson:"startedAt,omitempty"`
	CompletedAt     *time.Time       `bson:"completedAt,omitempty"`
	CancelledAt     *time.Time       `bson:"cancelledAt,omitempty"`
	Version         int64            `bson:"version"`

	DomainEvents []DomainEvent `bson:"-"`
}

// ReleaseSummary carries the outcome of exploding a wave into tasks
type ReleaseSummary struct {
	PicklistsCreated int
	TasksCreated     int
	Pickers          []string
	UnresolvedBins   int
}

// NewWave creates a DRAFT wave
func NewWave(waveNumber string, config WaveConfig, now time.Time) (*Wave, error) {
	if waveNumber == "" {
		return nil, fmt.Errorf("%w: wave number is required", ErrInvalidArgument)
	}
	if config.WarehouseID == "" {
		return nil, fmt.Errorf("%w: warehouse is required", ErrInvalidArgument)
	}
	filters := config.Filters
	if filters.MinPriority > 0 && filters.MaxPriority > 0 && filters.MinPriority > filters.MaxPriority {
		return nil, fmt.Errorf("%w: priority range %d..%d is empty", ErrInvalidArgument, filters.MinPriority, filters.MaxPriority)
	}

	wave := &Wave{
		WaveNumber:      waveNumber,
		WarehouseID:     config.WarehouseID,
		CarrierID:       config.CarrierID,
		CutoffAt:        config.CutoffAt,
		Status:          WaveStatusDraft,
		Filters:         filters,
		Optimization:    config.Optimization,
		AssignedWorkers: make([]string, 0),
		CreatedBy:       config.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
		DomainEvents:    make([]DomainEvent, 0),
	}

	wave.AddDomainEvent(&WaveCreatedEvent{
		WaveNumber:  waveNumber,
		WarehouseID: wave.WarehouseID,
		CarrierID:   wave.CarrierID,
		CutoffAt:    wave.CutoffAt,
		CreatedAt:   now,
	})

	return wave, nil
}

// RecordSelection stores the aggregate counts of the selected orders. A wave
// with at least one order becomes PLANNED.
func (w *Wave) RecordSelection(orders, picklists, items int, now time.Time) error {
	if w.Status != WaveStatusDraft && w.Status != WaveStatusPlanned {
		return w.transitionError(WaveStatusPlanned)
	}
	w.TotalOrders = orders
	w.TotalPicklists = picklists
	w.TotalItems = items
	w.UpdatedAt = now
	if orders > 0 {
		w.Status = WaveStatusPlanned
	}
	return nil
}

// CanRelease reports whether Release is legal
func (w *Wave) CanRelease() bool {
	return w.Status == WaveStatusDraft || w.Status == WaveStatusPlanned
}

// Release moves the wave to RELEASED
func (w *Wave) Release(summary ReleaseSummary, now time.Time) error {
	if !w.CanRelease() {
		return w.transitionError(WaveStatusReleased)
	}

	w.Status = WaveStatusReleased
	w.TotalTasks = summary.TasksCreated
	w.AssignedWorkers = append(make([]string, 0, len(summary.Pickers)), summary.Pickers...)
	w.ReleasedAt = &now
	w.UpdatedAt = now

	w.AddDomainEvent(&WaveReleasedEvent{
		WaveNumber:       w.WaveNumber,
		WarehouseID:      w.WarehouseID,
		PicklistsCreated: summary.PicklistsCreated,
		TasksCreated:     summary.TasksCreated,
		PickersAssigned:  len(summary.Pickers),
		UnresolvedBins:   summary.UnresolvedBins,
		ReleasedAt:       now,
	})
	return nil
}

// Start moves a RELEASED wave to IN_PROGRESS. It reports false without error
// when the wave is already past RELEASED.
func (w *Wave) Start(now time.Time) (bool, error) {
	switch w.Status {
	case WaveStatusReleased:
	case WaveStatusInProgress, WaveStatusCompleted, WaveStatusCancelled:
		return false, nil
	default:
		return false, w.transitionError(WaveStatusInProgress)
	}

	w.Status = WaveStatusInProgress
	w.StartedAt = &now
	w.UpdatedAt = now

	w.AddDomainEvent(&WaveInProgressEvent{
		WaveNumber:  w.WaveNumber,
		WarehouseID: w.WarehouseID,
		StartedAt:   now,
	})
	return true, nil
}

// Complete marks the wave COMPLETED. Completing an already COMPLETED wave is
// a no-op and reports false.
func (w *Wave) Complete(now time.Time) (bool, error) {
	if w.Status == WaveStatusCompleted {
		return false, nil
	}
	if !w.Status.CanTransitionTo(WaveStatusCompleted) {
		return false, w.transitionError(WaveStatusCompleted)
	}

	w.Status = WaveStatusCompleted
	w.CompletedAt = &now
	w.UpdatedAt = now

	w.AddDomainEvent(&WaveCompletedEvent{
		WaveNumber:  w.WaveNumber,
		WarehouseID: w.WarehouseID,
		TotalTasks:  w.TotalTasks,
		CompletedAt: now,
	})
	return true, nil
}

// Cancel cancels a non-terminal wave
func (w *Wave) Cancel(reason string, policy CancelPolicy, now time.Time) error {
	if !w.Status.CanTransitionTo(WaveStatusCancelled) {
		return w.transitionError(WaveStatusCancelled)
	}

	w.Status = WaveStatusCancelled
	w.CancelReason = reason
	w.CancelledAt = &now
	w.UpdatedAt = now

	w.AddDomainEvent(&WaveCancelledEvent{
		WaveNumber:  w.WaveNumber,
		WarehouseID: w.WarehouseID,
		Reason:      reason,
		Policy:      policy,
		CancelledAt: now,
	})
	return nil
}

// AddDomainEvent adds a domain event
func (w *Wave) AddDomainEvent(event DomainEvent) {
	w.DomainEvents = append(w.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (w *Wave) ClearDomainEvents() {
	w.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (w *Wave) GetDomainEvents() []DomainEvent {
	return w.DomainEvents
}

func (w *Wave) transitionError(next WaveStatus) error {
	return fmt.Errorf("%w: wave %s cannot move from %s to %s", ErrInvalidStateTransition, w.WaveNumber, w.Status, next)
}

// WavePicklist links a wave to a picklist with its pick sequence
type WavePicklist struct {
	WaveNumber string    `bson:"waveNumber"`
	PicklistID string    `bson:"picklistId"`
	OrderID    string    `bson:"orderId"`
	Sequence   int       `bson:"sequence"`
	CreatedAt  time.Time `bson:"createdAt"`
}

// FormatWaveNumber renders a date-scoped wave number, e.g. WV-20261017-0001
func FormatWaveNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("WV-%s-%04d", day.UTC().Format("20060102"), seq)
}

// WaveSequenceKey is the sequence name for wave numbers issued on day
func WaveSequenceKey(day time.Time) string {
	return "wave:" + day.UTC().Format("20060102")
}

// AssignRoundRobin returns the picker for the i-th task
func AssignRoundRobin(pickers []string, i int) string {
	if len(pickers) == 0 {
		return ""
	}
	return pickers[i%len(pickers)]
}
