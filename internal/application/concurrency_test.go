package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/internal/domain"
	apperrors "github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// racingWaveRepo runs race once, right after its first read, so the caller
// carries on with a copy that is already stale
type racingWaveRepo struct {
	domain.WaveRepository
	once sync.Once
	race func()
}

func (r *racingWaveRepo) FindByNumber(ctx context.Context, waveNumber string) (*domain.Wave, error) {
	wave, err := r.WaveRepository.FindByNumber(ctx, waveNumber)
	r.once.Do(r.race)
	return wave, err
}

// racingTaskRepo does the same for task reads
type racingTaskRepo struct {
	domain.TaskRepository
	once sync.Once
	race func()
}

func (r *racingTaskRepo) FindByID(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := r.TaskRepository.FindByID(ctx, taskID)
	r.once.Do(r.race)
	return task, err
}

func (r *racingTaskRepo) Find(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	tasks, err := r.TaskRepository.Find(ctx, filter)
	r.once.Do(r.race)
	return tasks, err
}

// releasedWave creates and releases a wave over n single-line orders
func (e *engine) releasedWave(t *testing.T, n int, pickers ...string) string {
	t.Helper()
	e.addOrders(n, 1)
	created, err := e.waves.CreateWave(context.Background(), CreateWaveCommand{
		WarehouseID:      "WH-1",
		AutoSelectOrders: true,
		AutoRelease:      true,
		PickerIDs:        pickers,
	})
	require.NoError(t, err)
	require.Equal(t, string(domain.WaveStatusReleased), created.Wave.Status)
	return created.Wave.WaveNumber
}

func (e *engine) watcherOver(waves domain.WaveRepository) *WaveProgressWatcher {
	w := NewWaveProgressWatcher(waves, e.store.Tasks, e.metrics, logging.NewNop())
	w.now = fixedClock
	return w
}

func (e *engine) storedWave(t *testing.T, waveNumber string) *domain.Wave {
	t.Helper()
	wave, err := e.store.Waves.FindByNumber(context.Background(), waveNumber)
	require.NoError(t, err)
	require.NotNil(t, wave)
	return wave
}

func TestWaveProgressWatcher_CancelDuringStartStaysCancelled(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	waveNumber := e.releasedWave(t, 2)

	watcher := e.watcherOver(&racingWaveRepo{
		WaveRepository: e.store.Waves,
		race: func() {
			_, err := e.waves.CancelWave(ctx, CancelWaveCommand{WaveNumber: waveNumber, Reason: "carrier missed"})
			require.NoError(t, err)
		},
	})

	changed, err := watcher.MarkStarted(ctx, waveNumber)
	require.NoError(t, err)
	assert.False(t, changed)

	wave := e.storedWave(t, waveNumber)
	assert.Equal(t, domain.WaveStatusCancelled, wave.Status)
	assert.Equal(t, "carrier missed", wave.CancelReason)
	assert.Nil(t, wave.StartedAt)
}

func TestWaveProgressWatcher_CancelDuringCompletionCheckStaysCancelled(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	waveNumber := e.releasedWave(t, 2)

	// the cancel sweeps every pending task, so the stale check sees nothing
	// outstanding
	watcher := e.watcherOver(&racingWaveRepo{
		WaveRepository: e.store.Waves,
		race: func() {
			_, err := e.waves.CancelWave(ctx, CancelWaveCommand{WaveNumber: waveNumber, Reason: "carrier missed"})
			require.NoError(t, err)
		},
	})

	changed, err := watcher.CheckCompletion(ctx, waveNumber)
	require.NoError(t, err)
	assert.False(t, changed)

	wave := e.storedWave(t, waveNumber)
	assert.Equal(t, domain.WaveStatusCancelled, wave.Status)
	assert.Nil(t, wave.CompletedAt)
}

func TestWaveService_CancelLosesToConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	waveNumber := e.releasedWave(t, 1)

	racing := NewWaveService(WaveRepositories{
		Waves: &racingWaveRepo{
			WaveRepository: e.store.Waves,
			race: func() {
				_, err := e.waves.CompleteWave(ctx, CompleteWaveCommand{WaveNumber: waveNumber})
				require.NoError(t, err)
			},
		},
		WavePicklists: e.store.WavePicklists,
		Picklists:     e.store.Picklists,
		Tasks:         e.store.Tasks,
		Sequences:     e.store.Sequences,
		Locations:     e.store.Locations,
	}, e.store.Orders, e.store.Directory, e.events, e.metrics, logging.NewNop(), DefaultWaveSettings())
	racing.now = fixedClock

	_, err := racing.CancelWave(ctx, CancelWaveCommand{WaveNumber: waveNumber, Reason: "late"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition), "got %v", err)

	wave := e.storedWave(t, waveNumber)
	assert.Equal(t, domain.WaveStatusCompleted, wave.Status)
	assert.Empty(t, wave.CancelReason)
	assert.Equal(t, domain.TaskStatusPending, onlyTask(t, e, waveNumber).Status)
}

func TestWaveService_CancelLeavesTaskStartedDuringSweep(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	waveNumber := e.releasedWave(t, 4, "W1", "W2")

	tasks, err := e.store.Tasks.Find(ctx, domain.TaskFilter{WaveID: waveNumber})
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	started := tasks[0]
	require.NotEmpty(t, started.AssignedTo)

	racing := NewWaveService(WaveRepositories{
		Waves:         e.store.Waves,
		WavePicklists: e.store.WavePicklists,
		Picklists:     e.store.Picklists,
		Tasks: &racingTaskRepo{
			TaskRepository: e.store.Tasks,
			race: func() {
				_, err := e.execution.StartTask(ctx, StartTaskCommand{TaskID: started.TaskID, WorkerID: started.AssignedTo})
				require.NoError(t, err)
			},
		},
		Sequences: e.store.Sequences,
		Locations: e.store.Locations,
	}, e.store.Orders, e.store.Directory, e.events, e.metrics, logging.NewNop(), DefaultWaveSettings())
	racing.now = fixedClock

	wave, err := racing.CancelWave(ctx, CancelWaveCommand{WaveNumber: waveNumber, Reason: "carrier missed"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.WaveStatusCancelled), wave.Status)

	kept := e.storedTask(t, started.TaskID)
	assert.Equal(t, domain.TaskStatusInProgress, kept.Status)
	assert.Equal(t, started.AssignedTo, kept.AssignedTo)

	cancelled, err := e.tasks.ListTasks(ctx, ListTasksQuery{WaveID: waveNumber, Statuses: []string{"CANCELLED"}})
	require.NoError(t, err)
	assert.Len(t, cancelled, 3)

	location, err := e.store.Locations.Get(ctx, started.AssignedTo)
	require.NoError(t, err)
	require.NotNil(t, location)
	assert.Equal(t, started.TaskID, location.CurrentTaskID)
}

func TestExecutionService_ConcurrentCompletionCountsOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	waveNumber := e.releasedWave(t, 1, "W1")
	task := onlyTask(t, e, waveNumber)

	_, err := e.execution.StartTask(ctx, StartTaskCommand{TaskID: task.TaskID, WorkerID: "W1"})
	require.NoError(t, err)

	cmd := CompleteTaskCommand{TaskID: task.TaskID, WorkerID: "W1", QuantityCompleted: 1}
	racing := NewExecutionService(&racingTaskRepo{
		TaskRepository: e.store.Tasks,
		race: func() {
			_, err := e.execution.CompleteTask(ctx, cmd)
			require.NoError(t, err)
		},
	}, e.store.Picklists, e.store.Locations, e.events, e.metrics, logging.NewNop())
	racing.now = fixedClock

	_, err = racing.CompleteTask(ctx, cmd)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidStateTransition), "got %v", err)

	assert.Equal(t, domain.TaskStatusCompleted, e.storedTask(t, task.TaskID).Status)

	picklist, err := e.store.Picklists.FindByID(ctx, task.PicklistID)
	require.NoError(t, err)
	require.Len(t, picklist.Items, 1)
	assert.Equal(t, 1, picklist.Items[0].PickedQuantity)

	location, err := e.store.Locations.Get(ctx, "W1")
	require.NoError(t, err)
	require.NotNil(t, location)
	assert.Equal(t, 1, location.TasksCompletedToday)
	assert.Equal(t, 1, location.ItemsCompletedToday)
	assert.Empty(t, location.CurrentTaskID)
}

func onlyTask(t *testing.T, e *engine, waveNumber string) *domain.Task {
	t.Helper()
	tasks, err := e.store.Tasks.Find(context.Background(), domain.TaskFilter{WaveID: waveNumber})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return tasks[0]
}
