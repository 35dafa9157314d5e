package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// TaskService handles task store use cases outside of waves
type TaskService struct {
	tasks     domain.TaskRepository
	locations domain.WorkerLocationStore
	events    *EventDispatcher
	metrics   *metrics.Metrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tasks domain.TaskRepository,
	locations domain.WorkerLocationStore,
	events *EventDispatcher,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TaskService {
	return &TaskService{
		tasks:     tasks,
		locations: locations,
		events:    events,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateTask creates an ad hoc task
func (s *TaskService) CreateTask(ctx context.Context, cmd CreateTaskCommand) (*TaskDTO, error) {
	taskType, err := domain.ParseTaskType(cmd.Type)
	if err != nil {
		return nil, toAppError(err)
	}
	priority, err := domain.ParseTaskPriority(cmd.Priority)
	if err != nil {
		return nil, toAppError(err)
	}

	task, err := domain.NewTask(domain.NewTaskParams{
		TaskID:            newTaskID(),
		WarehouseID:       cmd.WarehouseID,
		Type:              taskType,
		Priority:          priority,
		Zone:              cmd.Zone,
		SourceBin:         cmd.SourceBin,
		DestinationBin:    cmd.DestinationBin,
		ProductID:         cmd.ProductID,
		VariantID:         cmd.VariantID,
		Quantity:          cmd.Quantity,
		RequiredEquipment: cmd.RequiredEquipment,
		DueAt:             cmd.DueAt,
	}, s.now())
	if err != nil {
		return nil, toAppError(err)
	}
	events := pendingEvents(task.GetDomainEvents())

	if err := s.tasks.Save(ctx, task); err != nil {
		s.logger.WithError(err).Error("Failed to create task", "taskId", task.TaskID)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTasksCreated(string(task.Type), 1)
	s.logger.Info("Created task", "taskId", task.TaskID, "type", task.Type, "warehouseId", task.WarehouseID)
	return ToTaskDTO(task), nil
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, query GetTaskQuery) (*TaskDTO, error) {
	task, err := s.tasks.FindByID(ctx, query.TaskID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get task", "taskId", query.TaskID)
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, errors.ErrNotFoundWithID("task", query.TaskID)
	}
	return ToTaskDTO(task), nil
}

// ListTasks lists tasks matching the query
func (s *TaskService) ListTasks(ctx context.Context, query ListTasksQuery) ([]TaskDTO, error) {
	statuses, err := parseTaskStatuses(query.Statuses)
	if err != nil {
		return nil, toAppError(err)
	}
	types, err := parseTaskTypes(query.Types)
	if err != nil {
		return nil, toAppError(err)
	}

	tasks, err := s.tasks.Find(ctx, domain.TaskFilter{
		WarehouseID: query.WarehouseID,
		WaveID:      query.WaveID,
		AssignedTo:  query.AssignedTo,
		Statuses:    statuses,
		Types:       types,
		Limit:       query.Limit,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list tasks", "warehouseId", query.WarehouseID)
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return ToTaskDTOs(tasks), nil
}

// CancelTask cancels a single non-terminal task
func (s *TaskService) CancelTask(ctx context.Context, cmd CancelTaskCommand) (*TaskDTO, error) {
	var holder string
	now := s.now()
	task, events, err := taskWriter{tasks: s.tasks, logger: s.logger}.update(ctx, cmd.TaskID, func(t *domain.Task) error {
		holder = t.AssignedTo
		return t.Cancel(cmd.Reason, now)
	})
	if err != nil {
		return nil, err
	}

	if holder != "" {
		locationUpdater{locations: s.locations, logger: s.logger}.release(ctx, holder, task.TaskID, now)
	}
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTaskTransition(string(task.Status))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "task.cancelled",
		EntityType: "task",
		EntityID:   task.TaskID,
		Action:     "cancelled",
		RelatedIDs: map[string]string{
			"waveId": task.WaveID,
		},
	})
	return ToTaskDTO(task), nil
}
