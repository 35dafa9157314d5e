package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/resilience"
)

// EventPublisher publishes CloudEvents to a topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error
}

func addEventAttributes(span trace.Span, event *cloudevents.WMSCloudEvent) {
	span.SetAttributes(
		attribute.String("messaging.kafka.event_type", event.Type),
		attribute.String("messaging.message_id", event.ID),
	)
	if event.CorrelationID != "" {
		span.SetAttributes(attribute.String("wms.correlation_id", event.CorrelationID))
	}
	if event.WaveNumber != "" {
		span.SetAttributes(attribute.String("wms.wave_number", event.WaveNumber))
	}
}

// InstrumentedProducer wraps a publisher with metrics and tracing
type InstrumentedProducer struct {
	producer EventPublisher
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer
func NewInstrumentedProducer(producer EventPublisher, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{
		producer: producer,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-producer"),
	}
}

// PublishEvent publishes a CloudEvent with metrics and tracing
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("kafka"),
			semconv.MessagingDestinationNameKey.String(topic),
			semconv.MessagingOperationKey.String("publish"),
		),
	)
	defer span.End()
	addEventAttributes(span, event)

	err := p.producer.PublishEvent(ctx, topic, event)
	duration := time.Since(start)
	success := err == nil

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, success, duration)
	}
	if p.logger != nil {
		p.logger.KafkaPublish(ctx, topic, event.Type, success, duration)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// CircuitBreakerProducer guards a publisher with a circuit breaker so an
// unavailable broker fails fast instead of stalling the outbox loop.
type CircuitBreakerProducer struct {
	producer       EventPublisher
	circuitBreaker *resilience.CircuitBreaker
}

// NewCircuitBreakerProducer creates a circuit breaker protected producer
func NewCircuitBreakerProducer(producer EventPublisher, m *metrics.Metrics, logger *slog.Logger) *CircuitBreakerProducer {
	config := resilience.DefaultCircuitBreakerConfig("kafka-producer")
	config.MaxRequests = 5
	if m != nil {
		config.OnStateChange = func(name string, state gobreaker.State) {
			m.SetCircuitBreakerState(name, int(state))
		}
	}

	return &CircuitBreakerProducer{
		producer:       producer,
		circuitBreaker: resilience.NewCircuitBreaker(config, logger),
	}
}

// PublishEvent publishes a CloudEvent with circuit breaker protection
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	_, err := p.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.PublishEvent(ctx, topic, event)
	})
	return err
}

// NewProductionProducer builds the producer chain used by the services:
// circuit breaker -> instrumentation -> kafka writer.
func NewProductionProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) (*CircuitBreakerProducer, *Producer) {
	raw := NewProducer(config)
	return NewCircuitBreakerProducer(NewInstrumentedProducer(raw, m, logger), m, logger.Logger), raw
}

// InstrumentedConsumer wraps a Consumer and instruments every handler
type InstrumentedConsumer struct {
	*Consumer
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewInstrumentedConsumer creates a new instrumented consumer
func NewInstrumentedConsumer(consumer *Consumer, m *metrics.Metrics, logger *logging.Logger) *InstrumentedConsumer {
	return &InstrumentedConsumer{
		Consumer:   consumer,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("kafka-consumer"),
		propagator: propagation.TraceContext{},
	}
}

// Subscribe registers an instrumented handler
func (c *InstrumentedConsumer) Subscribe(topic string, eventType string, handler EventHandler) {
	c.Consumer.Subscribe(topic, eventType, c.instrumentHandler(topic, handler))
}

func (c *InstrumentedConsumer) instrumentHandler(topic string, handler EventHandler) EventHandler {
	return func(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
		if event.TraceParent != "" {
			ctx = c.propagator.Extract(ctx, propagation.MapCarrier{"traceparent": event.TraceParent})
		}

		ctx, span := c.tracer.Start(ctx, "kafka.consume",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				semconv.MessagingSystemKey.String("kafka"),
				attribute.String("messaging.source.name", topic),
				semconv.MessagingOperationKey.String("process"),
			),
		)
		defer span.End()
		addEventAttributes(span, event)

		err := handler(ctx, event)
		success := err == nil

		if c.metrics != nil {
			c.metrics.RecordKafkaConsume(topic, event.Type, success)
		}
		if c.logger != nil {
			c.logger.KafkaConsume(ctx, topic, event.Type, 0, 0)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
