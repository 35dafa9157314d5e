package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all task engine metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending        prometheus.Gauge
	OutboxPublished      *prometheus.CounterVec
	OutboxRetries        *prometheus.CounterVec
	OutboxPublishLatency *prometheus.HistogramVec

	// Engine metrics
	DispatchRequests      *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec
	DispatchCandidates    prometheus.Histogram
	ClaimConflicts        prometheus.Counter
	TasksCreated          *prometheus.CounterVec
	TaskTransitions       *prometheus.CounterVec
	WaveTransitions       *prometheus.CounterVec
	SlotOptimizationRuns  *prometheus.CounterVec
	RelocationsFlagged    *prometheus.CounterVec
	UnresolvedBinsOnSetup prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_published_total",
			Help:      "Total number of Kafka events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_consumed_total",
			Help:      "Total number of Kafka events consumed",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_pending_events",
			Help:        "Unpublished outbox events seen by the last poll",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_events_published_total",
			Help:      "Outbox events relayed to Kafka",
		},
		[]string{"service", "event_type", "status"},
	)

	m.OutboxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_event_retries_total",
			Help:      "Outbox publish retries",
		},
		[]string{"service", "event_type"},
	)

	m.OutboxPublishLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "outbox_publish_duration_seconds",
			Help:      "Time to relay one outbox event",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "event_type"},
	)

	m.DispatchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "dispatch_requests_total",
			Help:      "GetNextTask calls by outcome (assigned, empty, error)",
		},
		[]string{"service", "outcome"},
	)

	m.DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "GetNextTask latency in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"service", "outcome"},
	)

	m.DispatchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "dispatch_candidates",
			Help:        "Candidate tasks scored per dispatch",
			Buckets:     []float64{0, 1, 5, 10, 25, 50, 100},
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.ClaimConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "dispatch_claim_conflicts_total",
			Help:        "Claims lost to a concurrent dispatcher",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.TasksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "tasks_created_total",
			Help:      "Tasks created by type",
		},
		[]string{"service", "task_type"},
	)

	m.TaskTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "task_transitions_total",
			Help:      "Task status transitions",
		},
		[]string{"service", "to"},
	)

	m.WaveTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "wave_transitions_total",
			Help:      "Wave status transitions",
		},
		[]string{"service", "to"},
	)

	m.SlotOptimizationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "slot_optimization_runs_total",
			Help:      "Slot optimization runs by status",
		},
		[]string{"service", "status"},
	)

	m.RelocationsFlagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "slot_relocations_flagged_total",
			Help:      "Relocation recommendations by priority",
		},
		[]string{"service", "priority"},
	)

	m.UnresolvedBinsOnSetup = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "wave_release_unresolved_bins_total",
			Help:        "Tasks created without a source bin during wave release",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.OutboxPublishLatency,
		m.DispatchRequests,
		m.DispatchDuration,
		m.DispatchCandidates,
		m.ClaimConflicts,
		m.TasksCreated,
		m.TaskTransitions,
		m.WaveTransitions,
		m.SlotOptimizationRuns,
		m.RelocationsFlagged,
		m.UnresolvedBinsOnSetup,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished events seen by the last poll
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records one relay attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
	m.OutboxPublishLatency.WithLabelValues(m.serviceName, eventType).Observe(duration.Seconds())
}

// RecordOutboxRetry records a scheduled retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// RecordDispatch records the outcome of one GetNextTask call
func (m *Metrics) RecordDispatch(outcome string, candidates int, duration time.Duration) {
	m.DispatchRequests.WithLabelValues(m.serviceName, outcome).Inc()
	m.DispatchDuration.WithLabelValues(m.serviceName, outcome).Observe(duration.Seconds())
	m.DispatchCandidates.Observe(float64(candidates))
}

// RecordClaimConflict records a claim lost to another dispatcher
func (m *Metrics) RecordClaimConflict() {
	m.ClaimConflicts.Inc()
}

// RecordTasksCreated records task creation
func (m *Metrics) RecordTasksCreated(taskType string, count int) {
	m.TasksCreated.WithLabelValues(m.serviceName, taskType).Add(float64(count))
}

// RecordTaskTransition records a task entering a status
func (m *Metrics) RecordTaskTransition(to string) {
	m.TaskTransitions.WithLabelValues(m.serviceName, to).Inc()
}

// RecordWaveTransition records a wave entering a status
func (m *Metrics) RecordWaveTransition(to string) {
	m.WaveTransitions.WithLabelValues(m.serviceName, to).Inc()
}

// RecordUnresolvedBins records tasks created without a source bin
func (m *Metrics) RecordUnresolvedBins(count int) {
	m.UnresolvedBinsOnSetup.Add(float64(count))
}

// RecordSlotOptimization records an optimization run and its flagged relocations
func (m *Metrics) RecordSlotOptimization(success bool, flaggedByPriority map[string]int) {
	m.SlotOptimizationRuns.WithLabelValues(m.serviceName, statusLabel(success)).Inc()
	for priority, n := range flaggedByPriority {
		m.RelocationsFlagged.WithLabelValues(m.serviceName, priority).Add(float64(n))
	}
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}
