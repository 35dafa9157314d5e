package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/kafka"
)

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newStore() *Store {
	return NewStore(eventing.NewMapper(cloudevents.NewEventFactory("/task-engine")))
}

func newTask(t *testing.T, id string, createdAt time.Time) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.NewTaskParams{
		TaskID:      id,
		WarehouseID: "WH-1",
		Type:        domain.TaskTypePick,
		SourceBin:   "A1-B1",
		ProductID:   "SKU-1",
		Quantity:    2,
		WaveID:      "WV-1",
	}, createdAt)
	require.NoError(t, err)
	return task
}

func TestTaskRepositorySaveWritesOutbox(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	task := newTask(t, "T1", testNow)
	require.NoError(t, store.Tasks.Save(ctx, task))

	assert.Empty(t, task.GetDomainEvents())
	rows, err := store.Outbox.FindByAggregateID(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, cloudevents.TaskCreated, rows[0].EventType)
	assert.Equal(t, kafka.Topics.TasksEvents, rows[0].Topic)
	assert.Equal(t, eventing.AggregateTask, rows[0].AggregateType)
}

func TestTaskRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Tasks.Save(ctx, newTask(t, "T1", testNow)))

	loaded, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)
	loaded.Status = domain.TaskStatusCancelled

	again, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, again.Status)

	missing, err := store.Tasks.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindCandidatesOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	require.NoError(t, store.Tasks.SaveAll(ctx, []*domain.Task{
		newTask(t, "T3", testNow.Add(time.Minute)),
		newTask(t, "T1", testNow),
		newTask(t, "T2", testNow),
	}))

	earmarked := newTask(t, "T4", testNow)
	require.NoError(t, earmarked.Assign("W2", testNow))
	require.NoError(t, store.Tasks.Save(ctx, earmarked))

	got, err := store.Tasks.FindCandidates(ctx, domain.CandidateQuery{WorkerID: "W1", WarehouseID: "WH-1"})
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, task := range got {
		ids = append(ids, task.TaskID)
	}
	assert.Equal(t, []string{"T1", "T2", "T3"}, ids)
}

func TestClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Tasks.Save(ctx, newTask(t, "T1", testNow)))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			task, err := store.Tasks.FindByID(ctx, "T1")
			if err != nil || task == nil {
				return
			}
			if task.Assign(worker, testNow) != nil {
				return
			}
			if err := store.Tasks.Claim(ctx, task); err == nil {
				atomic.AddInt32(&wins, 1)
			} else {
				assert.ErrorIs(t, err, domain.ErrClaimConflict)
			}
		}(string(rune('A' + i)))
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestTaskSaveRejectsStaleCopy(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	task := newTask(t, "T1", testNow)
	require.NoError(t, store.Tasks.Save(ctx, task))
	assert.Equal(t, int64(1), task.Version)

	first, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)
	second, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)

	require.NoError(t, first.Start("W1", nil, testNow))
	require.NoError(t, store.Tasks.Save(ctx, first))

	require.NoError(t, second.Cancel("wave cancelled", testNow))
	err = store.Tasks.Save(ctx, second)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	stored, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestTaskSaveAllWritesNothingWhenOneCopyIsStale(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Tasks.SaveAll(ctx, []*domain.Task{newTask(t, "T1", testNow), newTask(t, "T2", testNow)}))

	listed, err := store.Tasks.Find(ctx, domain.TaskFilter{WaveID: "WV-1"})
	require.NoError(t, err)
	require.Len(t, listed, 2)

	moved, err := store.Tasks.FindByID(ctx, "T2")
	require.NoError(t, err)
	require.NoError(t, moved.Start("W1", nil, testNow))
	require.NoError(t, store.Tasks.Save(ctx, moved))

	for _, task := range listed {
		require.NoError(t, task.Cancel("sweep", testNow))
	}
	err = store.Tasks.SaveAll(ctx, listed)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	untouched, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, untouched.Status)
}

func TestClaimOfStalePendingCopyIsConcurrentModification(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Tasks.Save(ctx, newTask(t, "T1", testNow)))

	stale, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)

	fresh, err := store.Tasks.FindByID(ctx, "T1")
	require.NoError(t, err)
	fresh.Priority = domain.TaskPriorityHigh
	require.NoError(t, store.Tasks.Save(ctx, fresh))

	require.NoError(t, stale.Assign("W1", testNow))
	err = store.Tasks.Claim(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestWaveSaveRejectsStaleCopy(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	wave, err := domain.NewWave("WV-20261017-0001", domain.WaveConfig{WarehouseID: "WH-1"}, testNow)
	require.NoError(t, err)
	require.NoError(t, store.Waves.Save(ctx, wave))

	stale, err := store.Waves.FindByNumber(ctx, wave.WaveNumber)
	require.NoError(t, err)

	require.NoError(t, wave.Cancel("no stock", domain.CancelPolicyLetFinish, testNow))
	require.NoError(t, store.Waves.Save(ctx, wave))

	stale.CreatedBy = "late writer"
	err = store.Waves.Save(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	stored, err := store.Waves.FindByNumber(ctx, wave.WaveNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.WaveStatusCancelled, stored.Status)
	assert.Empty(t, stored.CreatedBy)
}

func TestWavePicklistFindByOrder(t *testing.T) {
	ctx := context.Background()
	links := NewWavePicklistRepository()
	require.NoError(t, links.SaveAll(ctx, []*domain.WavePicklist{
		{WaveNumber: "WV-2", PicklistID: "PL-1", OrderID: "O1", Sequence: 1},
		{WaveNumber: "WV-2", PicklistID: "PL-2", OrderID: "O2", Sequence: 2},
	}))
	require.NoError(t, links.SaveAll(ctx, []*domain.WavePicklist{
		{WaveNumber: "WV-1", PicklistID: "PL-1", OrderID: "O1", Sequence: 1},
	}))

	got, err := links.FindByOrder(ctx, "O1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "WV-1", got[0].WaveNumber)
	assert.Equal(t, "WV-2", got[1].WaveNumber)

	none, err := links.FindByOrder(ctx, "O9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClaimMissingTask(t *testing.T) {
	store := newStore()
	task := newTask(t, "ghost", testNow)
	require.NoError(t, task.Assign("W1", testNow))

	err := store.Tasks.Claim(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAggregateCompletedPicks(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	complete := func(id, product string, at time.Time, qty int) {
		task, err := domain.NewTask(domain.NewTaskParams{
			TaskID: id, WarehouseID: "WH-1", Type: domain.TaskTypePick,
			SourceBin: "A1", ProductID: product, Quantity: qty,
		}, at.Add(-time.Hour))
		require.NoError(t, err)
		require.NoError(t, task.Assign("W1", at))
		require.NoError(t, task.Start("W1", nil, at))
		require.NoError(t, task.Complete("W1", domain.CompletionResult{QuantityCompleted: qty}, at))
		require.NoError(t, store.Tasks.Save(ctx, task))
	}

	complete("T1", "SKU-B", testNow.Add(-time.Hour), 2)
	complete("T2", "SKU-A", testNow.Add(-2*time.Hour), 3)
	complete("T3", "SKU-A", testNow.Add(-3*time.Hour), 1)
	complete("T4", "SKU-A", testNow.Add(time.Hour), 5)
	require.NoError(t, store.Tasks.Save(ctx, newTask(t, "T5", testNow)))

	picks, err := store.Tasks.AggregateCompletedPicks(ctx, "WH-1", testNow.Add(-24*time.Hour), testNow)
	require.NoError(t, err)

	assert.Equal(t, []domain.ProductPicks{
		{ProductID: "SKU-A", PickCount: 2, Quantity: 4},
		{ProductID: "SKU-B", PickCount: 1, Quantity: 2},
	}, picks)
}

func TestCountByWave(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	cancelled := newTask(t, "T2", testNow)
	require.NoError(t, cancelled.Cancel("gone", testNow))
	require.NoError(t, store.Tasks.SaveAll(ctx, []*domain.Task{newTask(t, "T1", testNow), cancelled}))

	n, err := store.Tasks.CountByWave(ctx, "WV-1", domain.OutstandingTaskStatuses)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWaveRepositoryFindNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	for i, day := range []time.Time{testNow, testNow.Add(time.Hour)} {
		wave, err := domain.NewWave(domain.FormatWaveNumber(day, int64(i+1)), domain.WaveConfig{WarehouseID: "WH-1"}, day)
		require.NoError(t, err)
		require.NoError(t, store.Waves.Save(ctx, wave))
	}

	waves, err := store.Waves.Find(ctx, domain.WaveFilter{WarehouseID: "WH-1"})
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, "WV-20261017-0002", waves[0].WaveNumber)

	limited, err := store.Waves.Find(ctx, domain.WaveFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDirectoryResolveBinFallsBackToProduct(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory()
	dir.AddBin(domain.Bin{Code: "A1-B1", WarehouseID: "WH-1", ProductID: "SKU-1", PickSequence: 10})
	dir.AddBin(domain.Bin{Code: "A9-B9", WarehouseID: "WH-1", ProductID: "SKU-1", VariantID: "RED"})

	bin, err := dir.ResolveBin(ctx, "WH-1", "SKU-1", "RED")
	require.NoError(t, err)
	assert.Equal(t, "A9-B9", bin.Code)

	bin, err = dir.ResolveBin(ctx, "WH-1", "SKU-1", "BLUE")
	require.NoError(t, err)
	assert.Equal(t, "A1-B1", bin.Code)

	bin, err = dir.ResolveBin(ctx, "WH-1", "SKU-2", "")
	require.NoError(t, err)
	assert.Nil(t, bin)

	ok, err := dir.WarehouseExists(ctx, "WH-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrderSource(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderSource()
	orders.Add(
		domain.Order{OrderID: "O1", WarehouseID: "WH-1", Status: domain.OrderStatusConfirmed, Priority: 1},
		domain.Order{OrderID: "O2", WarehouseID: "WH-1", Status: "DRAFT", Priority: 1},
		domain.Order{OrderID: "O3", WarehouseID: "WH-1", Status: domain.OrderStatusConfirmed, Priority: 5},
		domain.Order{OrderID: "O4", WarehouseID: "WH-1", Status: domain.OrderStatusConfirmed, Priority: 2},
	)

	got, err := orders.FindEligible(ctx, domain.OrderFilter{WarehouseID: "WH-1", MaxPriority: 3, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "O1", got[0].OrderID)
	assert.Equal(t, "O4", got[1].OrderID)

	_, err = orders.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOutboxRepository(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.Tasks.Save(ctx, newTask(t, "T1", testNow)))

	pending, err := store.Outbox.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.Outbox.IncrementRetry(ctx, pending[0].ID, "broker down"))
	require.NoError(t, store.Outbox.MarkPublished(ctx, pending[0].ID))

	pending, err = store.Outbox.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Error(t, store.Outbox.MarkPublished(ctx, "missing"))
}

func TestNilMapperDropsEvents(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Tasks.Save(context.Background(), newTask(t, "T1", testNow)))
	assert.Zero(t, store.Outbox.Len())
}
