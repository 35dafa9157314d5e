package application

import (
	"context"
	"strconv"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// ExecutionService tracks task execution: start, pause, resume and complete
type ExecutionService struct {
	tasks     domain.TaskRepository
	picklists domain.PicklistRepository
	locations domain.WorkerLocationStore
	events    *EventDispatcher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewExecutionService creates a new ExecutionService
func NewExecutionService(
	tasks domain.TaskRepository,
	picklists domain.PicklistRepository,
	locations domain.WorkerLocationStore,
	events *EventDispatcher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ExecutionService {
	return &ExecutionService{
		tasks:     tasks,
		picklists: picklists,
		locations: locations,
		events:    events,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// StartTask moves a task to IN_PROGRESS for the worker. Starting an
// unclaimed PENDING task claims it in the same write.
func (s *ExecutionService) StartTask(ctx context.Context, cmd StartTaskCommand) (*TaskDTO, error) {
	if cmd.WorkerID == "" {
		return nil, errors.ErrValidation("workerId is required")
	}

	var equipment *domain.Equipment
	if cmd.EquipmentType != "" {
		equipment = &domain.Equipment{Type: cmd.EquipmentType, ID: cmd.EquipmentID}
	}

	now := s.now()
	task, events, err := s.writer().update(ctx, cmd.TaskID, func(t *domain.Task) error {
		return t.Start(cmd.WorkerID, equipment, now)
	})
	if err != nil {
		return nil, err
	}

	s.located().apply(ctx, cmd.WorkerID, func(l *domain.WorkerLocation) {
		l.MoveTo(task.WarehouseID, "", "", now)
		l.AssignTask(task.TaskID, now)
	})
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTaskTransition(string(task.Status))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "task.started",
		EntityType: "task",
		EntityID:   task.TaskID,
		Action:     "started",
		RelatedIDs: map[string]string{
			"workerId": cmd.WorkerID,
			"waveId":   task.WaveID,
		},
	})

	return ToTaskDTO(task), nil
}

// CompleteTask records the outcome of a task, propagates picks into the
// picklist and bumps the worker's daily counters. Only the completion whose
// write lands does the propagation.
func (s *ExecutionService) CompleteTask(ctx context.Context, cmd CompleteTaskCommand) (*TaskDTO, error) {
	if cmd.WorkerID == "" {
		return nil, errors.ErrValidation("workerId is required")
	}

	now := s.now()
	task, events, err := s.writer().update(ctx, cmd.TaskID, func(t *domain.Task) error {
		return t.Complete(cmd.WorkerID, domain.CompletionResult{
			QuantityCompleted: cmd.QuantityCompleted,
			QuantityException: cmd.QuantityException,
			DestinationBin:    cmd.DestinationBin,
			Notes:             cmd.Notes,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if task.Type == domain.TaskTypePick && task.PicklistID != "" {
		s.recordPick(ctx, task, now)
	}

	s.located().apply(ctx, cmd.WorkerID, func(l *domain.WorkerLocation) {
		l.MoveTo(task.WarehouseID, task.Zone, finalBin(task), now)
		l.CompleteTask(task.TaskID, task.QuantityCompleted, now)
	})
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTaskTransition(string(task.Status))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "task.completed",
		EntityType: "task",
		EntityID:   task.TaskID,
		Action:     "completed",
		RelatedIDs: map[string]string{
			"workerId":          cmd.WorkerID,
			"waveId":            task.WaveID,
			"quantityCompleted": strconv.Itoa(task.QuantityCompleted),
			"quantityException": strconv.Itoa(task.QuantityException),
		},
	})

	return ToTaskDTO(task), nil
}

// PauseTask pauses an IN_PROGRESS task
func (s *ExecutionService) PauseTask(ctx context.Context, cmd PauseTaskCommand) (*TaskDTO, error) {
	now := s.now()
	task, events, err := s.writer().update(ctx, cmd.TaskID, func(t *domain.Task) error {
		return t.Pause(cmd.Reason, now)
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTaskTransition(string(task.Status))
	s.logger.Info("Paused task", "taskId", task.TaskID, "reason", cmd.Reason)
	return ToTaskDTO(task), nil
}

// ResumeTask resumes a PAUSED task for its assignee
func (s *ExecutionService) ResumeTask(ctx context.Context, cmd ResumeTaskCommand) (*TaskDTO, error) {
	if cmd.WorkerID == "" {
		return nil, errors.ErrValidation("workerId is required")
	}

	now := s.now()
	task, events, err := s.writer().update(ctx, cmd.TaskID, func(t *domain.Task) error {
		return t.Resume(cmd.WorkerID, now)
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTaskTransition(string(task.Status))
	s.logger.Info("Resumed task", "taskId", task.TaskID, "workerId", cmd.WorkerID)
	return ToTaskDTO(task), nil
}

func (s *ExecutionService) writer() taskWriter {
	return taskWriter{tasks: s.tasks, logger: s.logger}
}

func (s *ExecutionService) located() locationUpdater {
	return locationUpdater{locations: s.locations, logger: s.logger}
}

// recordPick propagates a completed PICK task into its picklist line. The
// task write has committed, so failures are logged only.
func (s *ExecutionService) recordPick(ctx context.Context, task *domain.Task, now time.Time) {
	log := s.logger.WithFields(map[string]any{
		"taskId":     task.TaskID,
		"picklistId": task.PicklistID,
	})

	picklist, err := s.picklists.FindByID(ctx, task.PicklistID)
	if err != nil {
		log.WithError(err).Error("Failed to load picklist for pick propagation")
		return
	}
	if picklist == nil {
		log.Warn("Picklist of completed task no longer exists")
		return
	}
	if err := picklist.RecordPick(task.PicklistItemID, task.QuantityCompleted, now); err != nil {
		log.WithError(err).Warn("Picklist item not found for completed task")
		return
	}
	if err := s.picklists.Save(ctx, picklist); err != nil {
		log.WithError(err).Error("Failed to save picklist after pick")
	}
}

// finalBin is where the worker stands after finishing the task
func finalBin(task *domain.Task) string {
	switch task.Type {
	case domain.TaskTypePutaway, domain.TaskTypeReplenish:
		if task.DestinationBin != "" {
			return task.DestinationBin
		}
	}
	return task.SourceBin
}
