package eventing

import (
	"context"
	"fmt"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/outbox"
)

// Aggregate types stored on outbox rows
const (
	AggregateWave      = "Wave"
	AggregateTask      = "Task"
	AggregateWarehouse = "Warehouse"
)

// Mapper converts domain events into CloudEvents and outbox rows
type Mapper struct {
	factory *cloudevents.EventFactory
}

// NewMapper creates a Mapper around an event factory
func NewMapper(factory *cloudevents.EventFactory) *Mapper {
	return &Mapper{factory: factory}
}

// ToCloudEvent converts one domain event. It returns the event, the topic it
// belongs on and its aggregate id and type.
func (m *Mapper) ToCloudEvent(ctx context.Context, event domain.DomainEvent) (*cloudevents.WMSCloudEvent, string, string, string, error) {
	switch e := event.(type) {
	case *domain.WaveCreatedEvent:
		return m.wave(ctx, e, e.WaveNumber, e.WarehouseID)
	case *domain.WaveReleasedEvent:
		return m.wave(ctx, e, e.WaveNumber, e.WarehouseID)
	case *domain.WaveInProgressEvent:
		return m.wave(ctx, e, e.WaveNumber, e.WarehouseID)
	case *domain.WaveCompletedEvent:
		return m.wave(ctx, e, e.WaveNumber, e.WarehouseID)
	case *domain.WaveCancelledEvent:
		return m.wave(ctx, e, e.WaveNumber, e.WarehouseID)
	case *domain.TaskCreatedEvent:
		return m.task(ctx, e, e.TaskID, e.WaveID, e.WarehouseID)
	case *domain.TaskAssignedEvent:
		return m.task(ctx, e, e.TaskID, e.WaveID, "")
	case *domain.TaskStartedEvent:
		return m.task(ctx, e, e.TaskID, e.WaveID, e.WarehouseID)
	case *domain.TaskPausedEvent:
		return m.task(ctx, e, e.TaskID, "", "")
	case *domain.TaskResumedEvent:
		return m.task(ctx, e, e.TaskID, "", "")
	case *domain.TaskCompletedEvent:
		return m.task(ctx, e, e.TaskID, e.WaveID, "")
	case *domain.TaskCancelledEvent:
		return m.task(ctx, e, e.TaskID, e.WaveID, "")
	case *domain.TaskSettledEvent:
		return m.task(ctx, e, e.TaskID, e.WaveID, e.WarehouseID)
	case *domain.RelocationRecommendedEvent:
		ce := m.factory.CreateEvent(ctx, e.EventType(), "product/"+e.ProductID, e)
		ce.WarehouseID = e.WarehouseID
		return ce, kafka.Topics.SlottingEvents, e.WarehouseID, AggregateWarehouse, nil
	case *domain.SlotOptimizationCompletedEvent:
		ce := m.factory.CreateEvent(ctx, e.EventType(), "warehouse/"+e.WarehouseID, e)
		ce.WarehouseID = e.WarehouseID
		return ce, kafka.Topics.SlottingEvents, e.WarehouseID, AggregateWarehouse, nil
	default:
		return nil, "", "", "", fmt.Errorf("unsupported domain event %T", event)
	}
}

// ToOutbox converts a batch of domain events into outbox rows
func (m *Mapper) ToOutbox(ctx context.Context, events []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	rows := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		ce, topic, aggregateID, aggregateType, err := m.ToCloudEvent(ctx, event)
		if err != nil {
			return nil, err
		}
		row, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic, ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *Mapper) wave(ctx context.Context, e domain.DomainEvent, waveNumber, warehouseID string) (*cloudevents.WMSCloudEvent, string, string, string, error) {
	ce := m.factory.CreateWaveEvent(ctx, e.EventType(), waveNumber, warehouseID, e)
	return ce, kafka.Topics.WavesEvents, waveNumber, AggregateWave, nil
}

func (m *Mapper) task(ctx context.Context, e domain.DomainEvent, taskID, waveNumber, warehouseID string) (*cloudevents.WMSCloudEvent, string, string, string, error) {
	ce := m.factory.CreateTaskEvent(ctx, e.EventType(), taskID, waveNumber, warehouseID, e)
	return ce, kafka.Topics.TasksEvents, taskID, AggregateTask, nil
}

// DecodeTaskEvent turns a consumed task CloudEvent back into the domain event
// the wave progress watcher understands. Other types yield nil.
func DecodeTaskEvent(ce *cloudevents.WMSCloudEvent) (domain.DomainEvent, error) {
	var event domain.DomainEvent
	switch ce.Type {
	case cloudevents.TaskStarted:
		event = &domain.TaskStartedEvent{}
	case cloudevents.TaskSettled:
		event = &domain.TaskSettledEvent{}
	default:
		return nil, nil
	}
	if err := ce.DecodeData(event); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ce.Type, err)
	}
	return event, nil
}

// Recorder writes domain events straight to an outbox repository. It serves
// aggregates without a repository of their own, such as slotting runs.
type Recorder struct {
	mapper *Mapper
	repo   outbox.Repository
}

// NewRecorder creates a Recorder
func NewRecorder(mapper *Mapper, repo outbox.Repository) *Recorder {
	return &Recorder{mapper: mapper, repo: repo}
}

// Record implements domain.EventRecorder
func (r *Recorder) Record(ctx context.Context, _ string, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows, err := r.mapper.ToOutbox(ctx, events)
	if err != nil {
		return err
	}
	return r.repo.SaveAll(ctx, rows)
}
