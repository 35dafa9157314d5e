package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// NoTaskReason is returned when a worker has nothing to do
const NoTaskReason = "No task available"

// Dispatch outcomes recorded in metrics
const (
	dispatchAssigned  = "assigned"
	dispatchEmpty     = "empty"
	dispatchContended = "contended"
)

// DispatchSettings holds the tunables of the dispatcher
type DispatchSettings struct {
	// ScanLimit caps how many candidates are scored per request
	ScanLimit int `yaml:"scanLimit"`

	// MaxAlternatives caps the runner-up list returned with a task
	MaxAlternatives int `yaml:"maxAlternatives"`

	// MaxClaimAttempts bounds how many ranked candidates are tried when
	// claims are lost to concurrent dispatches
	MaxClaimAttempts int `yaml:"maxClaimAttempts"`
}

// DefaultDispatchSettings returns default dispatch settings
func DefaultDispatchSettings() DispatchSettings {
	return DispatchSettings{
		ScanLimit:        100,
		MaxAlternatives:  3,
		MaxClaimAttempts: 5,
	}
}

// DispatchService picks the next best task for a worker and claims it
type DispatchService struct {
	tasks     domain.TaskRepository
	locations domain.WorkerLocationStore
	events    *EventDispatcher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	settings  DispatchSettings
	now       func() time.Time
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(
	tasks domain.TaskRepository,
	locations domain.WorkerLocationStore,
	events *EventDispatcher,
	m *metrics.Metrics,
	logger *logging.Logger,
	settings DispatchSettings,
) *DispatchService {
	return &DispatchService{
		tasks:     tasks,
		locations: locations,
		events:    events,
		metrics:   m,
		logger:    logger,
		settings:  settings,
		now:       time.Now,
	}
}

// GetNextTask scores the worker's candidates and claims the best one.
// An empty pool is not an error: the result carries a nil task.
func (s *DispatchService) GetNextTask(ctx context.Context, cmd GetNextTaskCommand) (*NextTaskDTO, error) {
	started := time.Now()

	if cmd.WorkerID == "" {
		return nil, errors.ErrValidation("workerId is required")
	}
	types, err := parseTaskTypes(cmd.TaskTypes)
	if err != nil {
		return nil, toAppError(err)
	}

	location, err := s.locations.Get(ctx, cmd.WorkerID)
	if err != nil {
		s.logger.WithError(err).Warn("Worker location unavailable, dispatching without it", "workerId", cmd.WorkerID)
		location = nil
	}

	pos := domain.WorkerPosition{Zone: cmd.CurrentZone, Bin: cmd.CurrentBin}
	warehouseID := cmd.WarehouseID
	if location != nil {
		if pos.Zone == "" {
			pos.Zone = location.Zone
		}
		if pos.Bin == "" {
			pos.Bin = location.Bin
		}
		if warehouseID == "" {
			warehouseID = location.WarehouseID
		}
	}

	candidates, err := s.tasks.FindCandidates(ctx, domain.CandidateQuery{
		WorkerID:    cmd.WorkerID,
		WarehouseID: warehouseID,
		Types:       types,
		Equipment:   cmd.Equipment,
		Limit:       s.settings.ScanLimit,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to query dispatch candidates", "workerId", cmd.WorkerID)
		return nil, fmt.Errorf("failed to query dispatch candidates: %w", err)
	}
	if len(candidates) == 0 {
		s.metrics.RecordDispatch(dispatchEmpty, 0, time.Since(started))
		return emptyNextTask(), nil
	}

	now := s.now()
	ranked := domain.RankTasks(candidates, pos, now)

	chosen, events, err := s.claimBest(ctx, cmd.WorkerID, ranked, now)
	if err != nil {
		return nil, err
	}
	if chosen < 0 {
		s.metrics.RecordDispatch(dispatchContended, len(candidates), time.Since(started))
		return emptyNextTask(), nil
	}

	best := ranked[chosen]
	s.pointWorkerAt(ctx, location, cmd, warehouseID, best.Task.TaskID, now)
	s.events.Dispatch(ctx, events)

	s.metrics.RecordDispatch(dispatchAssigned, len(candidates), time.Since(started))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "task.claimed",
		EntityType: "task",
		EntityID:   best.Task.TaskID,
		Action:     "assigned",
		RelatedIDs: map[string]string{
			"workerId": cmd.WorkerID,
			"score":    strconv.FormatFloat(best.Score.Total, 'f', 1, 64),
		},
	})

	return &NextTaskDTO{
		Task:           ToTaskDTO(best.Task),
		Score:          best.Score.Total,
		Alternatives:   s.alternatives(ranked, chosen),
		TravelEstimate: ToTravelEstimateDTO(domain.EstimateTravel(domain.BinDistance(pos.Bin, best.Task.SourceBin))),
		Reason:         best.Score.Reason(best.Task, now),
	}, nil
}

// claimBest walks the ranking and claims the first candidate still free.
// It returns the claimed index, or -1 when every attempt lost its race.
func (s *DispatchService) claimBest(ctx context.Context, workerID string, ranked []domain.ScoredTask, now time.Time) (int, []domain.DomainEvent, error) {
	attempts := s.settings.MaxClaimAttempts
	if attempts <= 0 || attempts > len(ranked) {
		attempts = len(ranked)
	}

	for i := 0; i < attempts; i++ {
		task := ranked[i].Task
		if err := task.Assign(workerID, now); err != nil {
			s.logger.WithError(err).Warn("Skipping candidate that cannot be assigned", "taskId", task.TaskID)
			continue
		}
		events := pendingEvents(task.GetDomainEvents())

		err := s.tasks.Claim(ctx, task)
		if stderrors.Is(err, domain.ErrClaimConflict) || stderrors.Is(err, domain.ErrConcurrentModification) {
			s.metrics.RecordClaimConflict()
			s.logger.Debug("Claim lost to a concurrent dispatch", "taskId", task.TaskID, "workerId", workerID)
			continue
		}
		if err != nil {
			s.logger.WithError(err).Error("Failed to claim task", "taskId", task.TaskID)
			return -1, nil, fmt.Errorf("failed to claim task: %w", err)
		}
		return i, events, nil
	}
	return -1, nil, nil
}

func (s *DispatchService) alternatives(ranked []domain.ScoredTask, chosen int) []AlternativeTaskDTO {
	alts := make([]AlternativeTaskDTO, 0, s.settings.MaxAlternatives)
	for i := chosen + 1; i < len(ranked) && len(alts) < s.settings.MaxAlternatives; i++ {
		alts = append(alts, ToAlternativeTaskDTO(ranked[i]))
	}
	return alts
}

// pointWorkerAt updates the cached location after a claim. The claim has
// already committed, so cache failures are logged only.
func (s *DispatchService) pointWorkerAt(
	ctx context.Context,
	location *domain.WorkerLocation,
	cmd GetNextTaskCommand,
	warehouseID, taskID string,
	now time.Time,
) {
	if location == nil {
		location = domain.NewWorkerLocation(cmd.WorkerID)
	}
	location.MoveTo(warehouseID, cmd.CurrentZone, cmd.CurrentBin, now)
	location.AssignTask(taskID, now)

	if err := s.locations.Save(ctx, location); err != nil {
		s.logger.WithError(err).Warn("Failed to update worker location", "workerId", cmd.WorkerID, "taskId", taskID)
	}
}

func emptyNextTask() *NextTaskDTO {
	return &NextTaskDTO{
		Alternatives: []AlternativeTaskDTO{},
		Reason:       NoTaskReason,
	}
}

func parseTaskTypes(values []string) ([]domain.TaskType, error) {
	types := make([]domain.TaskType, 0, len(values))
	for _, v := range values {
		t, err := domain.ParseTaskType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func parseTaskStatuses(values []string) ([]domain.TaskStatus, error) {
	statuses := make([]domain.TaskStatus, 0, len(values))
	for _, v := range values {
		st, err := domain.ParseTaskStatus(v)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
