package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/pkg/logging"
)

// SlotOptimizationScheduler runs slot optimization for a set of warehouses
// on a fixed interval
type SlotOptimizationScheduler struct {
	service    *SlotOptimizationService
	warehouses []string
	interval   time.Duration
	logger     *logging.Logger
	mu         sync.RWMutex
	running    bool
	stopChan   chan struct{}
	done       chan struct{}
}

// NewSlotOptimizationScheduler creates a new SlotOptimizationScheduler
func NewSlotOptimizationScheduler(
	service *SlotOptimizationService,
	warehouses []string,
	interval time.Duration,
	logger *logging.Logger,
) *SlotOptimizationScheduler {
	return &SlotOptimizationScheduler{
		service:    service,
		warehouses: warehouses,
		interval:   interval,
		logger:     logger,
	}
}

// Start begins the optimization loop
func (s *SlotOptimizationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("slot optimization scheduler is already running")
	}
	if s.interval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("slot optimization interval must be positive, got %s", s.interval)
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop stops the loop and waits for an in-flight run to finish
func (s *SlotOptimizationScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
}

// IsRunning returns whether the scheduler is running
func (s *SlotOptimizationScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *SlotOptimizationScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce optimizes every configured warehouse. A failing warehouse does
// not stop the others.
func (s *SlotOptimizationScheduler) RunOnce(ctx context.Context) {
	for _, warehouseID := range s.warehouses {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.service.RunOptimization(ctx, RunSlotOptimizationCommand{WarehouseID: warehouseID}); err != nil {
			s.logger.WithError(err).Error("Scheduled slot optimization failed", "warehouseId", warehouseID)
		}
	}
}
