// Package redis caches worker locations in Redis
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/wms-platform/task-engine/internal/domain"
)

const (
	// DefaultKeyPrefix prefixes every location key
	DefaultKeyPrefix = "worker:location:"

	// DefaultTTL expires locations of workers that stopped reporting
	DefaultTTL = 24 * time.Hour
)

// Config holds the Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewClient creates a Redis client and pings it
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// WorkerLocationCache implements domain.WorkerLocationStore. Each worker is
// one JSON value under worker:location:{workerId}.
type WorkerLocationCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewWorkerLocationCache creates a cache; a zero ttl uses DefaultTTL
func NewWorkerLocationCache(client *goredis.Client, ttl time.Duration) *WorkerLocationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &WorkerLocationCache{client: client, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (c *WorkerLocationCache) key(workerID string) string {
	return c.prefix + workerID
}

// Get returns nil without error on a cache miss
func (c *WorkerLocationCache) Get(ctx context.Context, workerID string) (*domain.WorkerLocation, error) {
	raw, err := c.client.Get(ctx, c.key(workerID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read worker location: %w", err)
	}

	var location domain.WorkerLocation
	if err := json.Unmarshal(raw, &location); err != nil {
		return nil, fmt.Errorf("failed to decode worker location %s: %w", workerID, err)
	}
	return &location, nil
}

// Save writes the location and refreshes its TTL
func (c *WorkerLocationCache) Save(ctx context.Context, location *domain.WorkerLocation) error {
	raw, err := json.Marshal(location)
	if err != nil {
		return fmt.Errorf("failed to encode worker location: %w", err)
	}
	if err := c.client.Set(ctx, c.key(location.WorkerID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write worker location: %w", err)
	}
	return nil
}

// HealthCheck pings Redis
func (c *WorkerLocationCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
