package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/logging"
)

type recordingHandler struct {
	events []domain.DomainEvent
	err    error
}

func (h *recordingHandler) HandleTaskEvent(_ context.Context, event domain.DomainEvent) error {
	h.events = append(h.events, event)
	return h.err
}

type recordingSubscriber struct {
	subscriptions map[string]kafka.EventHandler
}

func (s *recordingSubscriber) Subscribe(topic string, eventType string, handler kafka.EventHandler) {
	s.subscriptions[topic+"|"+eventType] = handler
}

// consumed round-trips an event through JSON like a message off the wire
func consumed(t *testing.T, eventType string, data interface{}) *cloudevents.WMSCloudEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceTaskEngine)
	ce := factory.CreateTaskEvent(context.Background(), eventType, "T1", "WAVE-1", "WH-1", data)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	var out cloudevents.WMSCloudEvent
	require.NoError(t, json.Unmarshal(raw, &out))
	return &out
}

func TestTaskEventConsumer_Register(t *testing.T) {
	sub := &recordingSubscriber{subscriptions: map[string]kafka.EventHandler{}}
	NewTaskEventConsumer(&recordingHandler{}, logging.NewNop()).Register(sub)

	assert.Len(t, sub.subscriptions, 2)
	assert.Contains(t, sub.subscriptions, kafka.Topics.TasksEvents+"|"+cloudevents.TaskStarted)
	assert.Contains(t, sub.subscriptions, kafka.Topics.TasksEvents+"|"+cloudevents.TaskSettled)
}

func TestTaskEventConsumer_Handle(t *testing.T) {
	settledAt := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		event     *cloudevents.WMSCloudEvent
		handled   int
		handleErr error
		wantErr   bool
	}{
		{
			name: "settled",
			event: consumed(t, cloudevents.TaskSettled, &domain.TaskSettledEvent{
				TaskID: "T1", WaveID: "WAVE-1", WarehouseID: "WH-1", Status: domain.TaskStatusCompleted, SettledAt: settledAt,
			}),
			handled: 1,
		},
		{
			name:    "started",
			event:   consumed(t, cloudevents.TaskStarted, &domain.TaskStartedEvent{TaskID: "T1", WaveID: "WAVE-1", WorkerID: "W1"}),
			handled: 1,
		},
		{
			name:  "other type is ignored",
			event: consumed(t, cloudevents.TaskPaused, &domain.TaskPausedEvent{TaskID: "T1"}),
		},
		{
			name:  "undecodable payload is dropped",
			event: consumed(t, cloudevents.TaskSettled, "not an object"),
		},
		{
			name:      "handler failure is returned for redelivery",
			event:     consumed(t, cloudevents.TaskSettled, &domain.TaskSettledEvent{TaskID: "T1", WaveID: "WAVE-1"}),
			handled:   1,
			handleErr: errors.New("mongo unavailable"),
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &recordingHandler{err: tt.handleErr}
			err := NewTaskEventConsumer(handler, logging.NewNop()).Handle(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, handler.events, tt.handled)
		})
	}

	handler := &recordingHandler{}
	event := consumed(t, cloudevents.TaskSettled, &domain.TaskSettledEvent{
		TaskID: "T1", WaveID: "WAVE-1", Status: domain.TaskStatusCancelled, SettledAt: settledAt,
	})
	require.NoError(t, NewTaskEventConsumer(handler, logging.NewNop()).Handle(context.Background(), event))
	require.Len(t, handler.events, 1)
	settled, ok := handler.events[0].(*domain.TaskSettledEvent)
	require.True(t, ok)
	assert.Equal(t, "WAVE-1", settled.WaveID)
	assert.Equal(t, domain.TaskStatusCancelled, settled.Status)
	assert.True(t, settledAt.Equal(settled.SettledAt))
}
