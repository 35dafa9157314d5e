package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/config"
	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/clients"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/internal/infrastructure/memory"
	redisinfra "github.com/wms-platform/task-engine/internal/infrastructure/redis"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Storage:          config.StorageMemory,
		WaveEvents:       config.EventsInline,
		MemoryWarehouses: []string{"WH-1"},
		MemoryCarriers:   []string{"UPS"},
		Engine:           config.DefaultEngineConfig(),
	}
}

func openStores(t *testing.T, cfg *config.Config) *Stores {
	t.Helper()

	mapper := eventing.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceTaskEngine))
	m := metrics.New(metrics.DefaultConfig("task-engine-bootstrap-test"))
	stores, err := OpenStores(context.Background(), cfg, mapper, m, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(stores.Close)
	return stores
}

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	stores := openStores(t, memoryConfig())

	exists, err := stores.Directory.WarehouseExists(ctx, "WH-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = stores.Directory.CarrierExists(ctx, "UPS")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.IsType(t, &memory.OrderSource{}, stores.Orders)
	assert.IsType(t, &memory.WorkerLocationStore{}, stores.Locations)
	assert.Same(t, stores.Tasks, stores.Waves.Tasks)
	assert.NoError(t, stores.Ready(ctx))
}

func TestOpenStores_RedisLocations(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := memoryConfig()
	cfg.RedisEnabled = true
	cfg.Redis = redisinfra.Config{Addr: mr.Addr()}
	stores := openStores(t, cfg)

	require.IsType(t, &redisinfra.WorkerLocationCache{}, stores.Locations)
	require.NoError(t, stores.Locations.Save(ctx, domain.NewWorkerLocation("W1")))
	assert.True(t, mr.Exists(redisinfra.DefaultKeyPrefix+"W1"))
	assert.NoError(t, stores.Ready(ctx))

	mr.Close()
	assert.Error(t, stores.Ready(ctx))
}

func TestOpenStores_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := memoryConfig()
	cfg.RedisEnabled = true
	cfg.Redis = redisinfra.Config{Addr: addr}

	mapper := eventing.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceTaskEngine))
	m := metrics.New(metrics.DefaultConfig("task-engine-bootstrap-test"))
	_, err := OpenStores(context.Background(), cfg, mapper, m, logging.NewNop())
	assert.Error(t, err)
}

func TestOpenStores_OrderServiceClient(t *testing.T) {
	cfg := memoryConfig()
	cfg.OrderService = clients.OrderServiceConfig{BaseURL: "http://orders.local"}
	stores := openStores(t, cfg)

	assert.IsType(t, &clients.OrderServiceClient{}, stores.Orders)
}
