package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/internal/infrastructure/memory"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// engine wires every service over one in-memory store with inline events
type engine struct {
	store     *memory.Store
	waves     *WaveService
	dispatch  *DispatchService
	execution *ExecutionService
	tasks     *TaskService
	locations *WorkerLocationService
	slotting  *SlotOptimizationService
	watcher   *WaveProgressWatcher
	events    *EventDispatcher
	metrics   *metrics.Metrics
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	mapper := eventing.NewMapper(cloudevents.NewEventFactory("/task-engine"))
	store := memory.NewStore(mapper)
	store.Directory.AddWarehouse("WH-1")
	store.Directory.AddCarrier("UPS")

	m := metrics.New(metrics.DefaultConfig("task-engine-test"))
	logger := logging.NewNop()

	watcher := NewWaveProgressWatcher(store.Waves, store.Tasks, m, logger)
	watcher.now = fixedClock
	events := NewEventDispatcher(logger, watcher)

	e := &engine{
		store: store,
		waves: NewWaveService(WaveRepositories{
			Waves:         store.Waves,
			WavePicklists: store.WavePicklists,
			Picklists:     store.Picklists,
			Tasks:         store.Tasks,
			Sequences:     store.Sequences,
			Locations:     store.Locations,
		}, store.Orders, store.Directory, events, m, logger, DefaultWaveSettings()),
		dispatch:  NewDispatchService(store.Tasks, store.Locations, events, m, logger, DefaultDispatchSettings()),
		execution: NewExecutionService(store.Tasks, store.Picklists, store.Locations, events, m, logger),
		tasks:     NewTaskService(store.Tasks, store.Locations, events, m, logger),
		locations: NewWorkerLocationService(store.Locations, logger),
		slotting: NewSlotOptimizationService(store.Tasks, store.Directory, store.SlotScores,
			eventing.NewRecorder(mapper, store.Outbox), m, logger, DefaultSlottingSettings()),
		watcher: watcher,
		events:  events,
		metrics: m,
	}
	e.waves.now = fixedClock
	e.dispatch.now = fixedClock
	e.execution.now = fixedClock
	e.tasks.now = fixedClock
	e.locations.now = fixedClock
	e.slotting.now = fixedClock
	return e
}

// addOrders seeds n CONFIRMED orders with the given number of lines each and
// slots every product in a picking bin
func (e *engine) addOrders(n, lines int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		order := domain.Order{
			OrderID:     fmt.Sprintf("ORD-%03d", i),
			WarehouseID: "WH-1",
			Status:      domain.OrderStatusConfirmed,
			Priority:    1,
		}
		for j := 1; j <= lines; j++ {
			product := fmt.Sprintf("SKU-%03d-%d", i, j)
			order.Items = append(order.Items, domain.OrderItem{
				ItemID:    fmt.Sprintf("%s-L%d", order.OrderID, j),
				ProductID: product,
				Quantity:  j,
			})
			e.store.Directory.AddBin(domain.Bin{
				Code:         fmt.Sprintf("A%d-B%d", i, j),
				WarehouseID:  "WH-1",
				ZoneID:       "Z1",
				ZoneType:     domain.ZoneTypePicking,
				PickSequence: i*10 + j,
				ProductID:    product,
			})
		}
		e.store.Orders.Add(order)
		ids = append(ids, order.OrderID)
	}
	return ids
}

// seedTask stores a PENDING task directly
func (e *engine) seedTask(t *testing.T, params domain.NewTaskParams) *domain.Task {
	t.Helper()
	if params.WarehouseID == "" {
		params.WarehouseID = "WH-1"
	}
	if params.Type == "" {
		params.Type = domain.TaskTypePick
	}
	if params.Quantity == 0 {
		params.Quantity = 1
	}
	if params.ProductID == "" {
		params.ProductID = "SKU-1"
	}
	task, err := domain.NewTask(params, testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.store.Tasks.Save(context.Background(), task))
	return task
}

func (e *engine) storedTask(t *testing.T, taskID string) *domain.Task {
	t.Helper()
	task, err := e.store.Tasks.FindByID(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}
