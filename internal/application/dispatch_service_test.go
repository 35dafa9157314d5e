package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	apperrors "github.com/wms-platform/task-engine/pkg/errors"
)

func TestDispatchService_PrefersUrgentOverdueTaskInZone(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	overdue := testNow.Add(-10 * time.Minute)
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-NORMAL", Zone: "Z2", SourceBin: "B1-R1"})
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-HIGH", Priority: domain.TaskPriorityHigh, Zone: "Z2", SourceBin: "B1-R2"})
	e.seedTask(t, domain.NewTaskParams{
		TaskID:    "T-URGENT",
		Priority:  domain.TaskPriorityUrgent,
		Zone:      "Z1",
		SourceBin: "A1-R1",
		DueAt:     &overdue,
	})

	next, err := e.dispatch.GetNextTask(ctx, GetNextTaskCommand{WorkerID: "W1", WarehouseID: "WH-1", CurrentZone: "Z1"})
	require.NoError(t, err)
	require.NotNil(t, next.Task)

	assert.Equal(t, "T-URGENT", next.Task.TaskID)
	assert.InDelta(t, 100.0, next.Score, 1e-9)
	assert.Equal(t, "Highest priority task (URGENT)", next.Reason)
	assert.Equal(t, string(domain.TaskStatusAssigned), next.Task.Status)
	assert.Equal(t, "W1", next.Task.AssignedTo)

	require.Len(t, next.Alternatives, 2)
	assert.Equal(t, "T-HIGH", next.Alternatives[0].TaskID)
	assert.Equal(t, "T-NORMAL", next.Alternatives[1].TaskID)

	stored := e.storedTask(t, "T-URGENT")
	assert.Equal(t, domain.TaskStatusAssigned, stored.Status)
	assert.Equal(t, "W1", stored.AssignedTo)

	location, err := e.locations.GetLocation(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, "T-URGENT", location.CurrentTaskID)
	assert.Equal(t, "Z1", location.Zone)
}

func TestDispatchService_TravelEstimateFromCurrentBin(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.seedTask(t, domain.NewTaskParams{TaskID: "T1", SourceBin: "C1-B4"})

	next, err := e.dispatch.GetNextTask(ctx, GetNextTaskCommand{WorkerID: "W1", WarehouseID: "WH-1", CurrentBin: "A1-B1"})
	require.NoError(t, err)
	require.NotNil(t, next.TravelEstimate)
	assert.Equal(t, 26, next.TravelEstimate.Distance)
	assert.Equal(t, 78, next.TravelEstimate.Seconds)
	assert.InDelta(t, 1.3, next.TravelEstimate.Minutes, 1e-9)
}

func TestDispatchService_UsesCachedLocation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-FAR", Zone: "Z9"})
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-NEAR", Zone: "Z3"})

	_, err := e.locations.UpdateLocation(ctx, UpdateWorkerLocationCommand{WorkerID: "W1", WarehouseID: "WH-1", Zone: "Z3"})
	require.NoError(t, err)

	next, err := e.dispatch.GetNextTask(ctx, GetNextTaskCommand{WorkerID: "W1"})
	require.NoError(t, err)
	require.NotNil(t, next.Task)
	assert.Equal(t, "T-NEAR", next.Task.TaskID)
	assert.Equal(t, "Closest task to current location", next.Reason)
}

func TestDispatchService_EmptyPool(t *testing.T) {
	e := newEngine(t)

	next, err := e.dispatch.GetNextTask(context.Background(), GetNextTaskCommand{WorkerID: "W1", WarehouseID: "WH-1"})
	require.NoError(t, err)
	assert.Nil(t, next.Task)
	assert.Equal(t, NoTaskReason, next.Reason)
	assert.Empty(t, next.Alternatives)
}

func TestDispatchService_FiltersByTypeAndEquipment(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-PICK", Priority: domain.TaskPriorityUrgent})
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-FORK", Type: domain.TaskTypePutaway, RequiredEquipment: "FORKLIFT"})
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-PUT", Type: domain.TaskTypePutaway})

	next, err := e.dispatch.GetNextTask(ctx, GetNextTaskCommand{
		WorkerID:    "W1",
		WarehouseID: "WH-1",
		TaskTypes:   []string{"putaway"},
		Equipment:   "CART",
	})
	require.NoError(t, err)
	require.NotNil(t, next.Task)
	assert.Equal(t, "T-PUT", next.Task.TaskID)
	assert.Empty(t, next.Alternatives)
}

func TestDispatchService_Validation(t *testing.T) {
	e := newEngine(t)

	_, err := e.dispatch.GetNextTask(context.Background(), GetNextTaskCommand{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))

	_, err = e.dispatch.GetNextTask(context.Background(), GetNextTaskCommand{WorkerID: "W1", TaskTypes: []string{"DANCE"}})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))
}

func TestDispatchService_SingleTaskTwoWorkers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.seedTask(t, domain.NewTaskParams{TaskID: "T-ONLY"})

	results := make([]*NextTaskDTO, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next, err := e.dispatch.GetNextTask(ctx, GetNextTaskCommand{WorkerID: fmt.Sprintf("W%d", i), WarehouseID: "WH-1"})
			assert.NoError(t, err)
			results[i] = next
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		require.NotNil(t, r)
		if r.Task != nil {
			winners++
			assert.Equal(t, "T-ONLY", r.Task.TaskID)
		} else {
			assert.Equal(t, NoTaskReason, r.Reason)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestDispatchService_ConcurrentWorkersNeverShareTasks(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	const tasks, workers = 20, 8
	for i := 0; i < tasks; i++ {
		e.seedTask(t, domain.NewTaskParams{TaskID: fmt.Sprintf("T-%02d", i), Zone: "Z1"})
	}

	var mu sync.Mutex
	claimedBy := make(map[string]string)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			for attempt := 0; attempt < tasks; attempt++ {
				next, err := e.dispatch.GetNextTask(ctx, GetNextTaskCommand{WorkerID: workerID, WarehouseID: "WH-1"})
				if !assert.NoError(t, err) || next.Task == nil {
					continue
				}
				mu.Lock()
				prev, dup := claimedBy[next.Task.TaskID]
				claimedBy[next.Task.TaskID] = workerID
				mu.Unlock()
				assert.False(t, dup, "task %s claimed by %s and %s", next.Task.TaskID, prev, workerID)
			}
		}(fmt.Sprintf("W%d", w))
	}
	wg.Wait()

	assert.Len(t, claimedBy, tasks)
	for taskID, workerID := range claimedBy {
		assert.Equal(t, workerID, e.storedTask(t, taskID).AssignedTo)
	}
}

func TestDispatchService_AllClaimsLost(t *testing.T) {
	e := newEngine(t)

	candidate, err := domain.NewTask(domain.NewTaskParams{TaskID: "T1", WarehouseID: "WH-1", Type: domain.TaskTypePick, Quantity: 1}, testNow)
	require.NoError(t, err)

	claims := 0
	e.dispatch.tasks = &stubTaskRepo{
		FindCandidatesFn: func(context.Context, domain.CandidateQuery) ([]*domain.Task, error) {
			c := *candidate
			return []*domain.Task{&c}, nil
		},
		ClaimFn: func(context.Context, *domain.Task) error {
			claims++
			return fmt.Errorf("%w: raced", domain.ErrClaimConflict)
		},
	}

	next, err := e.dispatch.GetNextTask(context.Background(), GetNextTaskCommand{WorkerID: "W1", WarehouseID: "WH-1"})
	require.NoError(t, err)
	assert.Nil(t, next.Task)
	assert.Equal(t, NoTaskReason, next.Reason)
	assert.Equal(t, 1, claims)
}

func TestDispatchService_ClaimStorageError(t *testing.T) {
	e := newEngine(t)
	boom := errors.New("write concern timeout")

	e.dispatch.tasks = &stubTaskRepo{
		FindCandidatesFn: func(context.Context, domain.CandidateQuery) ([]*domain.Task, error) {
			task, err := domain.NewTask(domain.NewTaskParams{TaskID: "T1", WarehouseID: "WH-1", Type: domain.TaskTypePick, Quantity: 1}, testNow)
			return []*domain.Task{task}, err
		},
		ClaimFn: func(context.Context, *domain.Task) error { return boom },
	}

	_, err := e.dispatch.GetNextTask(context.Background(), GetNextTaskCommand{WorkerID: "W1", WarehouseID: "WH-1"})
	assert.ErrorIs(t, err, boom)
}

func TestDispatchService_LocationCacheFailureIsTolerated(t *testing.T) {
	e := newEngine(t)
	e.seedTask(t, domain.NewTaskParams{TaskID: "T1"})
	e.dispatch.locations = &stubLocationStore{
		GetFn:  func(context.Context, string) (*domain.WorkerLocation, error) { return nil, errors.New("redis down") },
		SaveFn: func(context.Context, *domain.WorkerLocation) error { return errors.New("redis down") },
	}

	next, err := e.dispatch.GetNextTask(context.Background(), GetNextTaskCommand{WorkerID: "W1", WarehouseID: "WH-1"})
	require.NoError(t, err)
	require.NotNil(t, next.Task)
	assert.Equal(t, "T1", next.Task.TaskID)
}
