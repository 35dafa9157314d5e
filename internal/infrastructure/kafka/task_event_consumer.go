// Package kafka feeds task events consumed from Kafka back into the engine
package kafka

import (
	"context"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// Subscriber is the subset of kafka.InstrumentedConsumer used for wiring
type Subscriber interface {
	Subscribe(topic string, eventType string, handler kafka.EventHandler)
}

// TaskEventConsumer hands task-started and task-settled events from the
// tasks topic to a TaskEventHandler, normally the wave progress watcher
type TaskEventConsumer struct {
	handler application.TaskEventHandler
	logger  *logging.Logger
}

// NewTaskEventConsumer creates a TaskEventConsumer
func NewTaskEventConsumer(handler application.TaskEventHandler, logger *logging.Logger) *TaskEventConsumer {
	return &TaskEventConsumer{handler: handler, logger: logger}
}

// Register subscribes the consumer to the event types it understands
func (c *TaskEventConsumer) Register(sub Subscriber) {
	sub.Subscribe(kafka.Topics.TasksEvents, cloudevents.TaskStarted, c.Handle)
	sub.Subscribe(kafka.Topics.TasksEvents, cloudevents.TaskSettled, c.Handle)
}

// Handle decodes one CloudEvent and forwards it. A returned error leaves
// the message uncommitted for redelivery.
func (c *TaskEventConsumer) Handle(ctx context.Context, ce *cloudevents.WMSCloudEvent) error {
	event, err := eventing.DecodeTaskEvent(ce)
	if err != nil {
		// Undecodable payloads never succeed; drop them so the partition moves on
		c.logger.WithContext(ctx).WithError(err).Warn("Dropping undecodable task event",
			"eventId", ce.ID,
			"eventType", ce.Type,
		)
		return nil
	}
	if event == nil {
		return nil
	}
	return c.handler.HandleTaskEvent(ctx, event)
}
