package application

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// TaskEventHandler reacts to task domain events once they are persisted
type TaskEventHandler interface {
	HandleTaskEvent(ctx context.Context, event domain.DomainEvent) error
}

// EventDispatcher forwards persisted domain events to in-process handlers.
// In kafka mode no handler is registered and events reach consumers through
// the outbox instead.
type EventDispatcher struct {
	handlers []TaskEventHandler
	logger   *logging.Logger
}

// NewEventDispatcher creates an EventDispatcher with the given handlers
func NewEventDispatcher(logger *logging.Logger, handlers ...TaskEventHandler) *EventDispatcher {
	return &EventDispatcher{handlers: handlers, logger: logger}
}

// Register adds a handler
func (d *EventDispatcher) Register(handler TaskEventHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch delivers events to every handler. The write that produced the
// events has already committed, so handler failures are logged only.
func (d *EventDispatcher) Dispatch(ctx context.Context, events []domain.DomainEvent) {
	if d == nil {
		return
	}
	for _, event := range events {
		for _, handler := range d.handlers {
			if err := handler.HandleTaskEvent(ctx, event); err != nil {
				d.logger.WithContext(ctx).WithError(err).Error("Task event handler failed",
					"eventType", event.EventType(),
				)
			}
		}
	}
}

// pendingEvents copies the aggregate's events before Save clears them
func pendingEvents(events []domain.DomainEvent) []domain.DomainEvent {
	out := make([]domain.DomainEvent, len(events))
	copy(out, events)
	return out
}

func newTaskID() string {
	return "TSK-" + strings.ToUpper(uuid.NewString())
}

func newPicklistID() string {
	return "PL-" + strings.ToUpper(uuid.NewString())
}
