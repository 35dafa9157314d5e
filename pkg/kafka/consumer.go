package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// EventHandler is a function that handles a CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// messageReader is the subset of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer handles consuming messages from Kafka topics
type Consumer struct {
	config    *Config
	readers   map[string]messageReader
	handlers  map[string]map[string]EventHandler // topic -> eventType -> handler
	logger    *slog.Logger
	newReader func(topic string) messageReader
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *Config, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		config:   config,
		readers:  make(map[string]messageReader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger,
	}
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        c.config.Brokers,
			GroupID:        c.config.ConsumerGroup,
			Topic:          topic,
			MinBytes:       c.config.MinBytes,
			MaxBytes:       c.config.MaxBytes,
			MaxWait:        c.config.MaxWait,
			CommitInterval: c.config.CommitTimeout,
		})
	}
	return c
}

// Subscribe registers a handler for an event type on a topic.
// Must be called before Start.
func (c *Consumer) Subscribe(topic string, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

// Start consumes all subscribed topics until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	for topic := range c.handlers {
		reader := c.newReader(topic)
		c.readers[topic] = reader
		go c.consumeTopic(ctx, topic, reader)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string, reader messageReader) {
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return
			}
			c.logger.Error("Error fetching message", "topic", topic, "error", err)
			continue
		}

		event, err := parseMessage(msg)
		if err != nil {
			// Poison message: commit so the partition is not blocked
			c.logger.Error("Error parsing message", "topic", topic, "offset", msg.Offset, "error", err)
			if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil {
				c.logger.Error("Error committing message", "topic", topic, "error", commitErr)
			}
			continue
		}

		if err := c.handleEvent(ctx, topic, event); err != nil {
			// Not committed; the group redelivers it after a rebalance or restart
			c.logger.Error("Error handling event",
				"topic", topic,
				"eventType", event.Type,
				"eventId", event.ID,
				"error", err,
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message", "topic", topic, "error", err)
		}
	}
}

func parseMessage(msg kafka.Message) (*cloudevents.WMSCloudEvent, error) {
	var event cloudevents.WMSCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	for _, header := range msg.Headers {
		event.ApplyHeader(header.Key, string(header.Value))
	}

	return &event, nil
}

func (c *Consumer) handleEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if handler, exists := handlers[event.Type]; exists {
		return handler(ctx, event)
	}
	if handler, exists := handlers["*"]; exists {
		return handler(ctx, event)
	}

	c.logger.Debug("No handler found for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
