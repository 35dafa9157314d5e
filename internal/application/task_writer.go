package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// taskWriter runs read-modify-write cycles on single tasks. Every write is
// conditioned on the version the task was loaded at.
type taskWriter struct {
	tasks  domain.TaskRepository
	logger *logging.Logger
}

// update loads the task, applies change and writes it back. A write that
// loses its version check reloads the task and reapplies change, so a change
// that no longer fits the fresh copy fails with its own domain error. A
// PENDING task that change hands to a worker is written through Claim. The
// returned events are the ones the winning write persisted.
func (w taskWriter) update(ctx context.Context, taskID string, change func(*domain.Task) error) (*domain.Task, []domain.DomainEvent, error) {
	type written struct {
		task   *domain.Task
		events []domain.DomainEvent
	}

	out, err := retryOnConflict(ctx, func() (written, error) {
		task, err := w.find(ctx, taskID)
		if err != nil {
			return written{}, err
		}

		wasPending := task.Status == domain.TaskStatusPending
		if err := change(task); err != nil {
			return written{}, toAppError(err)
		}
		write := w.tasks.Save
		if wasPending && task.AssignedTo != "" {
			write = w.tasks.Claim
		}
		events := pendingEvents(task.GetDomainEvents())

		if err := write(ctx, task); err != nil {
			if stderrors.Is(err, domain.ErrConcurrentModification) {
				return written{}, err
			}
			if appErr := toAppError(err); errors.IsAppError(appErr) {
				return written{}, appErr
			}
			w.logger.WithError(err).Error("Failed to save task", "taskId", taskID)
			return written{}, fmt.Errorf("failed to save task: %w", err)
		}
		return written{task: task, events: events}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out.task, out.events, nil
}

func (w taskWriter) find(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := w.tasks.FindByID(ctx, taskID)
	if err != nil {
		w.logger.WithError(err).Error("Failed to get task", "taskId", taskID)
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return nil, errors.ErrNotFoundWithID("task", taskID)
	}
	return task, nil
}

// locationUpdater edits cached worker locations. Locations are a cache, so
// failures are logged only.
type locationUpdater struct {
	locations domain.WorkerLocationStore
	logger    *logging.Logger
}

// apply runs fn on the worker's location, creating it when absent
func (u locationUpdater) apply(ctx context.Context, workerID string, fn func(*domain.WorkerLocation)) {
	location, err := u.locations.Get(ctx, workerID)
	if err != nil {
		u.logger.WithError(err).Warn("Failed to read worker location", "workerId", workerID)
		return
	}
	if location == nil {
		location = domain.NewWorkerLocation(workerID)
	}
	fn(location)
	if err := u.locations.Save(ctx, location); err != nil {
		u.logger.WithError(err).Warn("Failed to update worker location", "workerId", workerID)
	}
}

// release clears the worker's task pointer if it still names taskID. A
// worker without a cached location is left alone.
func (u locationUpdater) release(ctx context.Context, workerID, taskID string, now time.Time) {
	location, err := u.locations.Get(ctx, workerID)
	if err != nil || location == nil {
		return
	}
	if location.CurrentTaskID != taskID {
		return
	}
	location.ReleaseTask(taskID, now)
	if err := u.locations.Save(ctx, location); err != nil {
		u.logger.WithError(err).Warn("Failed to clear worker task pointer", "workerId", workerID)
	}
}
