package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "task-engine",
		ClientID:      "task-engine",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,

		MinBytes:      1,
		MaxBytes:      10e6,
		MaxWait:       500 * time.Millisecond,
		CommitTimeout: 5 * time.Second,
	}
}

// Topics contains the Kafka topics the engine publishes to
var Topics = struct {
	WavesEvents    string
	TasksEvents    string
	SlottingEvents string
}{
	WavesEvents:    "wms.waves.events",
	TasksEvents:    "wms.tasks.events",
	SlottingEvents: "wms.slotting.events",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for engine topics
func DefaultTopicConfigs() []TopicConfig {
	week := int64(7 * 24 * time.Hour / time.Millisecond)
	return []TopicConfig{
		{Name: Topics.WavesEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: week},
		// Tasks are keyed by task id; more partitions for dispatch volume
		{Name: Topics.TasksEvents, Partitions: 12, ReplicationFactor: 3, RetentionMs: week},
		{Name: Topics.SlottingEvents, Partitions: 3, ReplicationFactor: 3, RetentionMs: 4 * week},
	}
}
