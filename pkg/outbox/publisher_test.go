package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

type stubRepository struct {
	mu     sync.Mutex
	events map[string]*OutboxEvent
	order  []string
}

func newStubRepository() *stubRepository {
	return &stubRepository{events: make(map[string]*OutboxEvent)}
}

func (r *stubRepository) SaveAll(_ context.Context, events []*OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.events[e.ID] = e
		r.order = append(r.order, e.ID)
	}
	return nil
}

func (r *stubRepository) FindUnpublished(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutboxEvent
	for _, id := range r.order {
		if e := r.events[id]; e.ShouldRetry() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubRepository) MarkPublished(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.events[id].PublishedAt = &now
	return nil
}

func (r *stubRepository) IncrementRetry(_ context.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id].RetryCount++
	r.events[id].LastError = msg
	return nil
}

func (r *stubRepository) FindByAggregateID(_ context.Context, aggregateID string) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutboxEvent
	for _, id := range r.order {
		if r.events[id].AggregateID == aggregateID {
			out = append(out, r.events[id])
		}
	}
	return out, nil
}

type stubProducer struct {
	mu        sync.Mutex
	failTypes map[string]bool
	published []*cloudevents.WMSCloudEvent
}

func (p *stubProducer) PublishEvent(_ context.Context, _ string, event *cloudevents.WMSCloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTypes[event.Type] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func newOutboxEvent(t *testing.T, eventType string) *OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceTaskEngine)
	ce := factory.CreateWaveEvent(context.Background(), eventType, "WV-20261017-0001", "WH-1", map[string]string{"waveNumber": "WV-20261017-0001"})
	event, err := NewOutboxEventFromCloudEvent("WV-20261017-0001", "Wave", "wms.waves.events", ce)
	require.NoError(t, err)
	return event
}

func TestProcessOncePublishesAndRetries(t *testing.T) {
	repo := newStubRepository()
	ok := newOutboxEvent(t, cloudevents.WaveReleased)
	failing := newOutboxEvent(t, cloudevents.WaveCancelled)
	require.NoError(t, repo.SaveAll(context.Background(), []*OutboxEvent{ok, failing}))

	producer := &stubProducer{failTypes: map[string]bool{cloudevents.WaveCancelled: true}}
	publisher := NewPublisher(repo, producer, logging.NewNop(), metrics.New(metrics.DefaultConfig("task-engine")), nil)

	publisher.ProcessOnce(context.Background())

	assert.True(t, ok.IsPublished())
	assert.False(t, failing.IsPublished())
	assert.Equal(t, 1, failing.RetryCount)
	assert.Contains(t, failing.LastError, "broker unavailable")
	require.Len(t, producer.published, 1)
	assert.Equal(t, "WV-20261017-0001", producer.published[0].WaveNumber)
	assert.Equal(t, map[string]int{"published": 1, "failed": 1}, publisher.Stats())
}

func TestExhaustedEventsAreSkipped(t *testing.T) {
	repo := newStubRepository()
	event := newOutboxEvent(t, cloudevents.WaveReleased)
	event.RetryCount = event.MaxRetries
	require.NoError(t, repo.SaveAll(context.Background(), []*OutboxEvent{event}))

	producer := &stubProducer{}
	NewPublisher(repo, producer, logging.NewNop(), nil, nil).ProcessOnce(context.Background())

	assert.Empty(t, producer.published)
}

func TestStartStop(t *testing.T) {
	repo := newStubRepository()
	require.NoError(t, repo.SaveAll(context.Background(), []*OutboxEvent{newOutboxEvent(t, cloudevents.WaveCreated)}))

	producer := &stubProducer{}
	publisher := NewPublisher(repo, producer, logging.NewNop(), nil, &PublisherConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10})

	require.NoError(t, publisher.Start(context.Background()))
	assert.Error(t, publisher.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return publisher.Stats()["published"] == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, publisher.Stop())
	assert.False(t, publisher.IsRunning())
}
