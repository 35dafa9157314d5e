package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/task-engine/pkg/logging"
)

// EventFactory creates CloudEvents for engine domain events
type EventFactory struct {
	source     string
	propagator propagation.TextMapPropagator
	now        func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{
		source:     source,
		propagator: propagation.TraceContext{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateEvent creates a new WMSCloudEvent. The correlation id and the W3C
// traceparent are taken from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	event := &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]interface{}),
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}

	carrier := propagation.MapCarrier{}
	f.propagator.Inject(ctx, carrier)
	event.TraceParent = carrier.Get("traceparent")

	return event
}

// CreateWaveEvent creates an event scoped to a wave
func (f *EventFactory) CreateWaveEvent(ctx context.Context, eventType, waveNumber, warehouseID string, data interface{}) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, "wave/"+waveNumber, data)
	event.WaveNumber = waveNumber
	event.WarehouseID = warehouseID
	return event
}

// CreateTaskEvent creates an event scoped to a task
func (f *EventFactory) CreateTaskEvent(ctx context.Context, eventType, taskID, waveNumber, warehouseID string, data interface{}) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, "task/"+taskID, data)
	event.WaveNumber = waveNumber
	event.WarehouseID = warehouseID
	return event
}
