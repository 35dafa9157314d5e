// Package bootstrap opens the engine's backing stores for the api and worker
// binaries
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/config"
	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/clients"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/internal/infrastructure/memory"
	mongoRepo "github.com/wms-platform/task-engine/internal/infrastructure/mongodb"
	redisinfra "github.com/wms-platform/task-engine/internal/infrastructure/redis"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/mongodb"
	"github.com/wms-platform/task-engine/pkg/outbox"
)

const closeTimeout = 5 * time.Second

// Stores holds the repositories behind the application services
type Stores struct {
	Waves      application.WaveRepositories
	Tasks      domain.TaskRepository
	SlotScores domain.SlotScoreRepository
	Directory  domain.Directory
	Outbox     outbox.Repository
	Locations  domain.WorkerLocationStore
	Orders     domain.OrderSource

	checks  []func(ctx context.Context) error
	closers []func(ctx context.Context) error
	logger  *logging.Logger
}

// OpenStores connects the storage backend named by cfg.Storage and the
// optional Redis location cache and order service client
func OpenStores(ctx context.Context, cfg *config.Config, mapper *eventing.Mapper, m *metrics.Metrics, logger *logging.Logger) (*Stores, error) {
	s := &Stores{logger: logger}

	var memoryOrders *memory.OrderSource
	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore(mapper)
		for _, warehouseID := range cfg.MemoryWarehouses {
			store.Directory.AddWarehouse(warehouseID)
		}
		for _, carrierID := range cfg.MemoryCarriers {
			store.Directory.AddCarrier(carrierID)
		}
		s.useMemory(store)
		memoryOrders = store.Orders
		logger.Warn("Using in-memory storage; state is lost on restart",
			"warehouses", cfg.MemoryWarehouses,
		)
	default:
		if err := s.openMongo(ctx, cfg.MongoDB, mapper, m, logger); err != nil {
			return nil, err
		}
		memoryOrders = memory.NewOrderSource()
	}

	if cfg.RedisEnabled {
		client, err := redisinfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			s.Close()
			return nil, err
		}
		cache := redisinfra.NewWorkerLocationCache(client, cfg.Redis.TTL)
		s.Locations = cache
		s.checks = append(s.checks, cache.HealthCheck)
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		logger.Info("Worker locations cached in Redis", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}
	s.Waves.Locations = s.Locations

	if cfg.OrderService.BaseURL != "" {
		s.Orders = clients.NewOrderServiceClient(cfg.OrderService, logger.Logger)
		logger.Info("Order service client initialized", "url", cfg.OrderService.BaseURL)
	} else {
		s.Orders = memoryOrders
		logger.Warn("ORDER_SERVICE_URL not set; waves are planned from the in-memory order source")
	}

	return s, nil
}

func (s *Stores) useMemory(store *memory.Store) {
	s.Waves = application.WaveRepositories{
		Waves:         store.Waves,
		WavePicklists: store.WavePicklists,
		Picklists:     store.Picklists,
		Tasks:         store.Tasks,
		Sequences:     store.Sequences,
	}
	s.Tasks = store.Tasks
	s.SlotScores = store.SlotScores
	s.Directory = store.Directory
	s.Outbox = store.Outbox
	s.Locations = store.Locations
}

func (s *Stores) openMongo(ctx context.Context, cfg *mongodb.Config, mapper *eventing.Mapper, m *metrics.Metrics, logger *logging.Logger) error {
	client, err := mongodb.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	instrumented := mongodb.NewInstrumentedClient(client, m, logger)
	s.closers = append(s.closers, instrumented.Close)
	s.checks = append(s.checks, instrumented.HealthCheck)
	logger.Info("Connected to MongoDB", "database", cfg.Database)

	store := mongoRepo.NewStore(instrumented, mapper)
	if err := store.EnsureIndexes(ctx); err != nil {
		s.Close()
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	s.Waves = application.WaveRepositories{
		Waves:         store.Waves,
		WavePicklists: store.WavePicklists,
		Picklists:     store.Picklists,
		Tasks:         store.Tasks,
		Sequences:     store.Sequences,
	}
	s.Tasks = store.Tasks
	s.SlotScores = store.SlotScores
	s.Directory = store.Directory
	s.Outbox = store.Outbox
	// locations stay process-local unless Redis is enabled
	s.Locations = memory.NewWorkerLocationStore()
	return nil
}

// Ready runs every dependency check and returns the first failure
func (s *Stores) Ready(ctx context.Context) error {
	for _, check := range s.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every connection opened by OpenStores
func (s *Stores) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.WithError(err).Error("Failed to close store connection")
		}
	}
	s.closers = nil
}
