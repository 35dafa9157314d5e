// Package config loads the engine configuration from the environment, an
// optional .env file and an optional YAML file of engine tunables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/clients"
	"github.com/wms-platform/task-engine/internal/infrastructure/mqtt"
	redisinfra "github.com/wms-platform/task-engine/internal/infrastructure/redis"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/mongodb"
	"github.com/wms-platform/task-engine/pkg/temporal"
	"github.com/wms-platform/task-engine/pkg/tracing"
)

// ServiceName identifies the engine in logs, metrics and traces
const ServiceName = "task-engine"

// Storage backends
const (
	StorageMongoDB = "mongodb"
	StorageMemory  = "memory"
)

// Wave event modes decide how task events reach the wave progress watcher
const (
	EventsInline = "inline"
	EventsKafka  = "kafka"
)

// Config holds application configuration
type Config struct {
	ServerAddr  string
	Environment string
	LogLevel    string

	Storage    string
	WaveEvents string

	// Directory entries preloaded in memory storage mode
	MemoryWarehouses []string
	MemoryCarriers   []string

	MongoDB  *mongodb.Config
	Kafka    *kafka.Config
	Temporal *temporal.Config
	Tracing  *tracing.Config

	KafkaEnabled      bool
	KafkaCreateTopics bool

	RedisEnabled bool
	Redis        redisinfra.Config

	MQTTEnabled bool
	MQTT        mqtt.Config

	// OrderService.BaseURL empty means orders come from the in-memory source
	OrderService clients.OrderServiceConfig

	Engine EngineConfig
}

// EngineConfig holds the tunables that may be overridden by ENGINE_CONFIG_FILE
type EngineConfig struct {
	Dispatch     application.DispatchSettings `yaml:"dispatch"`
	Slotting     application.SlottingSettings `yaml:"slotting"`
	Waves        application.WaveSettings     `yaml:"waves"`
	Optimization OptimizationSchedule         `yaml:"optimization"`
}

// OptimizationSchedule configures recurring slot optimization runs
type OptimizationSchedule struct {
	// Interval of zero disables the in-process scheduler
	Interval   time.Duration `yaml:"interval"`
	Warehouses []string      `yaml:"warehouses"`

	// WorkflowInterval paces the Temporal workflow started by cmd/worker
	WorkflowInterval time.Duration `yaml:"workflowInterval"`

	// CyclesPerRun bounds the workflow history before it continues as new
	CyclesPerRun int `yaml:"cyclesPerRun"`
}

// DefaultEngineConfig returns the built-in tunables
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Dispatch: application.DefaultDispatchSettings(),
		Slotting: application.DefaultSlottingSettings(),
		Waves:    application.DefaultWaveSettings(),
		Optimization: OptimizationSchedule{
			WorkflowInterval: 24 * time.Hour,
			CyclesPerRun:     24,
		},
	}
}

// Load reads .env (when present), the environment and ENGINE_CONFIG_FILE
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8010"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Storage:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageMongoDB)),
		WaveEvents:  strings.ToLower(getEnv("WAVE_EVENTS_MODE", EventsInline)),

		MemoryWarehouses: getEnvSlice("MEMORY_WAREHOUSES", nil),
		MemoryCarriers:   getEnvSlice("MEMORY_CARRIERS", nil),

		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "task_engine"),
			ConnectTimeout: getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:    uint64(getEnvInt("MONGODB_MAX_POOL_SIZE", 100)),
			MinPoolSize:    uint64(getEnvInt("MONGODB_MIN_POOL_SIZE", 10)),
			Username:       getEnv("MONGODB_USERNAME", ""),
			Password:       getEnv("MONGODB_PASSWORD", ""),
			AuthDB:         getEnv("MONGODB_AUTH_DB", "admin"),
			ReplicaSet:     getEnv("MONGODB_REPLICA_SET", ""),
		},
		Kafka: &kafka.Config{
			Brokers:       getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", ServiceName),
			ClientID:      ServiceName,
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
			MinBytes:      1,
			MaxBytes:      10e6,
			MaxWait:       500 * time.Millisecond,
			CommitTimeout: 5 * time.Second,
		},
		KafkaEnabled:      getEnvBool("KAFKA_ENABLED", true),
		KafkaCreateTopics: getEnvBool("KAFKA_CREATE_TOPICS", false),
		Temporal: &temporal.Config{
			HostPort:  getEnv("TEMPORAL_HOST", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			Identity:  ServiceName,
		},
		Tracing: &tracing.Config{
			ServiceName:    ServiceName,
			ServiceVersion: getEnv("VERSION", "1.0.0"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:     getEnvFloat("OTEL_SAMPLE_RATE", 1.0),
			Enabled:        getEnvBool("TRACING_ENABLED", true),
		},
		RedisEnabled: getEnvBool("REDIS_ENABLED", false),
		Redis: redisinfra.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("WORKER_LOCATION_TTL", redisinfra.DefaultTTL),
		},
		MQTTEnabled: getEnvBool("MQTT_ENABLED", false),
		MQTT: mqtt.Config{
			BrokerURL: getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:  getEnv("MQTT_CLIENT_ID", ServiceName),
			Username:  getEnv("MQTT_USERNAME", ""),
			Password:  getEnv("MQTT_PASSWORD", ""),
			QoS:       byte(getEnvInt("MQTT_QOS", 1)),
		},
		OrderService: clients.OrderServiceConfig{
			BaseURL: getEnv("ORDER_SERVICE_URL", ""),
			Timeout: getEnvDuration("ORDER_SERVICE_TIMEOUT", 10*time.Second),
		},
		Engine: DefaultEngineConfig(),
	}

	if path := getEnv("ENGINE_CONFIG_FILE", ""); path != "" {
		if err := cfg.Engine.LoadFile(path); err != nil {
			return nil, err
		}
	}

	// environment wins over the file for the scheduler
	cfg.Engine.Optimization.Interval = getEnvDuration("SLOT_OPTIMIZATION_INTERVAL", cfg.Engine.Optimization.Interval)
	cfg.Engine.Optimization.WorkflowInterval = getEnvDuration("SLOT_OPTIMIZATION_WORKFLOW_INTERVAL", cfg.Engine.Optimization.WorkflowInterval)
	cfg.Engine.Optimization.Warehouses = getEnvSlice("SLOT_OPTIMIZATION_WAREHOUSES", cfg.Engine.Optimization.Warehouses)
	if policy := getEnv("WAVE_CANCEL_POLICY", ""); policy != "" {
		cfg.Engine.Waves.CancelPolicy = domain.CancelPolicy(policy)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto the tunables. Keys absent
// from the file keep their current values.
func (e *EngineConfig) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read engine config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, e); err != nil {
		return fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	return nil
}

// Validate rejects combinations the engine cannot run with
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMongoDB, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}

	switch c.WaveEvents {
	case EventsInline:
	case EventsKafka:
		if !c.KafkaEnabled {
			return fmt.Errorf("wave events mode %q requires KAFKA_ENABLED", c.WaveEvents)
		}
	default:
		return fmt.Errorf("unknown wave events mode %q", c.WaveEvents)
	}

	return c.Engine.Validate()
}

// Validate checks the engine tunables
func (e *EngineConfig) Validate() error {
	if e.Dispatch.ScanLimit <= 0 {
		return fmt.Errorf("dispatch scan limit must be positive, got %d", e.Dispatch.ScanLimit)
	}
	if e.Dispatch.MaxClaimAttempts <= 0 {
		return fmt.Errorf("dispatch claim attempts must be positive, got %d", e.Dispatch.MaxClaimAttempts)
	}
	if e.Waves.MaxBatchSize <= 0 {
		return fmt.Errorf("wave max batch size must be positive, got %d", e.Waves.MaxBatchSize)
	}

	policy, err := domain.ParseCancelPolicy(string(e.Waves.CancelPolicy), domain.CancelPolicyLetFinish)
	if err != nil {
		return err
	}
	e.Waves.CancelPolicy = policy

	if err := e.Slotting.Thresholds.Validate(); err != nil {
		return err
	}
	if e.Slotting.WindowDays <= 0 {
		return fmt.Errorf("slotting window must be positive, got %d days", e.Slotting.WindowDays)
	}
	if e.Optimization.Interval < 0 || e.Optimization.WorkflowInterval < 0 {
		return fmt.Errorf("optimization interval must not be negative")
	}
	if e.Optimization.CyclesPerRun <= 0 {
		e.Optimization.CyclesPerRun = 1
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
