package application

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// WaveProgressWatcher moves waves forward as their tasks start and settle.
// A wave goes IN_PROGRESS on its first started task and COMPLETED once no
// task remains outstanding.
type WaveProgressWatcher struct {
	waves   domain.WaveRepository
	tasks   domain.TaskRepository
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewWaveProgressWatcher creates a new WaveProgressWatcher
func NewWaveProgressWatcher(
	waves domain.WaveRepository,
	tasks domain.TaskRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
) *WaveProgressWatcher {
	return &WaveProgressWatcher{
		waves:   waves,
		tasks:   tasks,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleTaskEvent implements TaskEventHandler
func (w *WaveProgressWatcher) HandleTaskEvent(ctx context.Context, event domain.DomainEvent) error {
	switch e := event.(type) {
	case *domain.TaskStartedEvent:
		if e.WaveID == "" {
			return nil
		}
		_, err := w.MarkStarted(ctx, e.WaveID)
		return err
	case *domain.TaskSettledEvent:
		if e.WaveID == "" {
			return nil
		}
		_, err := w.CheckCompletion(ctx, e.WaveID)
		return err
	default:
		return nil
	}
}

// MarkStarted moves a RELEASED wave to IN_PROGRESS. It reports whether the
// wave changed. A write that races another wave update is replayed against
// the fresh copy, so a wave cancelled meanwhile stays cancelled.
func (w *WaveProgressWatcher) MarkStarted(ctx context.Context, waveNumber string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed, err := retryOnConflict(ctx, func() (bool, error) {
		wave, err := w.waves.FindByNumber(ctx, waveNumber)
		if err != nil {
			return false, fmt.Errorf("failed to load wave %s: %w", waveNumber, err)
		}
		if wave == nil {
			return false, nil
		}

		changed, err := wave.Start(w.now())
		if err != nil || !changed {
			return false, err
		}
		if err := w.waves.Save(ctx, wave); err != nil {
			return false, fmt.Errorf("failed to save wave %s: %w", waveNumber, err)
		}
		return true, nil
	})
	if err != nil || !changed {
		return false, err
	}

	w.metrics.RecordWaveTransition(string(domain.WaveStatusInProgress))
	w.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "wave.in_progress",
		EntityType: "wave",
		EntityID:   waveNumber,
		Action:     "started",
	})
	return true, nil
}

// CheckCompletion completes the wave when none of its tasks is outstanding.
// Repeated calls on a completed or cancelled wave are no-ops.
func (w *WaveProgressWatcher) CheckCompletion(ctx context.Context, waveNumber string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var totalTasks int
	changed, err := retryOnConflict(ctx, func() (bool, error) {
		wave, err := w.waves.FindByNumber(ctx, waveNumber)
		if err != nil {
			return false, fmt.Errorf("failed to load wave %s: %w", waveNumber, err)
		}
		if wave == nil {
			return false, nil
		}
		if wave.Status != domain.WaveStatusReleased && wave.Status != domain.WaveStatusInProgress {
			return false, nil
		}

		outstanding, err := w.tasks.CountByWave(ctx, waveNumber, domain.OutstandingTaskStatuses)
		if err != nil {
			return false, fmt.Errorf("failed to count outstanding tasks of wave %s: %w", waveNumber, err)
		}
		if outstanding > 0 {
			return false, nil
		}

		changed, err := wave.Complete(w.now())
		if err != nil || !changed {
			return false, err
		}
		if err := w.waves.Save(ctx, wave); err != nil {
			return false, fmt.Errorf("failed to save wave %s: %w", waveNumber, err)
		}
		totalTasks = wave.TotalTasks
		return true, nil
	})
	if err != nil || !changed {
		return false, err
	}

	w.metrics.RecordWaveTransition(string(domain.WaveStatusCompleted))
	w.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "wave.completed",
		EntityType: "wave",
		EntityID:   waveNumber,
		Action:     "completed",
		RelatedIDs: map[string]string{
			"totalTasks": strconv.Itoa(totalTasks),
		},
	})
	return true, nil
}
