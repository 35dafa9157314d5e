package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	apperrors "github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// seedPicks stores count completed PICK tasks of a product, completed
// a day before testNow
func (e *engine) seedPicks(t *testing.T, productID string, count int) {
	t.Helper()
	at := testNow.Add(-24 * time.Hour)
	tasks := make([]*domain.Task, 0, count)
	for i := 0; i < count; i++ {
		task, err := domain.NewTask(domain.NewTaskParams{
			TaskID:      fmt.Sprintf("%s-%04d", productID, i),
			WarehouseID: "WH-1",
			Type:        domain.TaskTypePick,
			SourceBin:   "A1-B1",
			ProductID:   productID,
			Quantity:    2,
		}, at.Add(-time.Hour))
		require.NoError(t, err)
		require.NoError(t, task.Start("W1", nil, at))
		require.NoError(t, task.Complete("W1", domain.CompletionResult{QuantityCompleted: 2}, at))
		tasks = append(tasks, task)
	}
	require.NoError(t, e.store.Tasks.SaveAll(context.Background(), tasks))
}

func TestSlotOptimizationService_ParetoClassification(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	// 100 products, 1000 picks: the top 10 carry 800 of them
	for i := 0; i < 10; i++ {
		e.seedPicks(t, fmt.Sprintf("A-%02d", i), 80)
	}
	for i := 0; i < 15; i++ {
		e.seedPicks(t, fmt.Sprintf("B-%02d", i), 7)
	}
	for i := 0; i < 20; i++ {
		e.seedPicks(t, fmt.Sprintf("D-%02d", i), 2)
	}
	for i := 0; i < 55; i++ {
		e.seedPicks(t, fmt.Sprintf("E-%02d", i), 1)
	}

	result, err := e.slotting.RunOptimization(ctx, RunSlotOptimizationCommand{WarehouseID: "WH-1"})
	require.NoError(t, err)
	assert.Equal(t, 100, result.ProductsAnalyzed)
	assert.Equal(t, map[string]int{"A": 10, "B": 15, "C": 0, "D": 75}, result.ClassCounts)
	assert.Equal(t, testNow, result.WindowEnd)
	assert.Equal(t, testNow.AddDate(0, 0, -30), result.WindowStart)

	scores, err := e.slotting.ListSlotScores(ctx, ListSlotScoresQuery{WarehouseID: "WH-1", Class: "a"})
	require.NoError(t, err)
	require.Len(t, scores, 10)
	for _, s := range scores {
		assert.Equal(t, 80, s.PickCount)
		assert.Equal(t, 160, s.PickQuantity)
	}

	dScores, err := e.slotting.ListSlotScores(ctx, ListSlotScoresQuery{WarehouseID: "WH-1", Class: "D"})
	require.NoError(t, err)
	assert.Len(t, dScores, 75)
}

func TestSlotOptimizationService_FlagsRelocations(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	e.seedPicks(t, "FAST", 40)
	e.seedPicks(t, "MID", 35)
	e.seedPicks(t, "SLOW", 1)
	e.store.Directory.AddBin(domain.Bin{Code: "S9-B1", WarehouseID: "WH-1", ZoneID: "BULK", ZoneType: domain.ZoneTypeStorage, PickSequence: 900, ProductID: "FAST"})
	e.store.Directory.AddBin(domain.Bin{Code: "A1-B1", WarehouseID: "WH-1", ZoneID: "Z1", ZoneType: domain.ZoneTypePicking, PickSequence: 3, ProductID: "SLOW"})

	result, err := e.slotting.RunOptimization(ctx, RunSlotOptimizationCommand{WarehouseID: "WH-1", ThresholdA: 0.6})
	require.NoError(t, err)
	require.Len(t, result.Relocations, 2)

	byProduct := map[string]RelocationDTO{}
	for _, r := range result.Relocations {
		byProduct[r.ProductID] = r
	}
	assert.Equal(t, string(domain.RelocationPriorityHigh), byProduct["FAST"].Priority)
	assert.Equal(t, "S9-B1", byProduct["FAST"].CurrentBin)
	assert.Equal(t, string(domain.RelocationPriorityMedium), byProduct["SLOW"].Priority)

	rows, err := e.store.Outbox.FindByAggregateID(ctx, "WH-1")
	require.NoError(t, err)
	types := map[string]int{}
	for _, row := range rows {
		types[row.EventType]++
	}
	assert.Equal(t, 2, types[cloudevents.RelocationRecommended])
	assert.Equal(t, 1, types[cloudevents.SlotOptimizationCompleted])
}

func TestSlotOptimizationService_Validation(t *testing.T) {
	e := newEngine(t)

	_, err := e.slotting.RunOptimization(context.Background(), RunSlotOptimizationCommand{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))

	_, err = e.slotting.RunOptimization(context.Background(), RunSlotOptimizationCommand{WarehouseID: "WH-1", ThresholdA: 0.97})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))

	_, err = e.slotting.ListSlotScores(context.Background(), ListSlotScoresQuery{WarehouseID: "WH-1", Class: "Z"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))
}

func TestSlotOptimizationService_ExplicitZeroPickThreshold(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.seedPicks(t, "RARE", 1)
	e.seedPicks(t, "OCCASIONAL", 4)

	defaulted, err := e.slotting.RunOptimization(ctx, RunSlotOptimizationCommand{WarehouseID: "WH-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, defaulted.ClassCounts["D"])

	zero := 0
	explicit, err := e.slotting.RunOptimization(ctx, RunSlotOptimizationCommand{WarehouseID: "WH-1", MinPickThreshold: &zero})
	require.NoError(t, err)
	assert.Zero(t, explicit.ClassCounts["D"])

	negative := -1
	_, err = e.slotting.RunOptimization(ctx, RunSlotOptimizationCommand{WarehouseID: "WH-1", MinPickThreshold: &negative})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))
}

func TestSlotOptimizationService_AggregateFailure(t *testing.T) {
	e := newEngine(t)
	boom := errors.New("aggregation timed out")
	e.slotting.tasks = &stubTaskRepo{
		AggregateCompletedPicksFn: func(context.Context, string, time.Time, time.Time) ([]domain.ProductPicks, error) {
			return nil, boom
		},
	}

	_, err := e.slotting.RunOptimization(context.Background(), RunSlotOptimizationCommand{WarehouseID: "WH-1"})
	assert.ErrorIs(t, err, boom)
}

func TestSlotOptimizationScheduler(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.seedPicks(t, "FAST", 10)

	scheduler := NewSlotOptimizationScheduler(e.slotting, []string{"WH-1", ""}, 10*time.Millisecond, logging.NewNop())
	require.NoError(t, scheduler.Start(ctx))
	assert.True(t, scheduler.IsRunning())
	assert.Error(t, scheduler.Start(ctx))

	assert.Eventually(t, func() bool {
		scores, err := e.store.SlotScores.Find(ctx, "WH-1", "")
		return err == nil && len(scores) == 1
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())
	scheduler.Stop()

	idle := NewSlotOptimizationScheduler(e.slotting, nil, 0, logging.NewNop())
	assert.Error(t, idle.Start(ctx))
}
