package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// WaveSettings holds the tunables of the wave lifecycle
type WaveSettings struct {
	// MaxBatchSize bounds how many orders a single wave may hold
	MaxBatchSize int `yaml:"maxBatchSize"`

	// CancelPolicy is applied when a cancel request names no policy
	CancelPolicy domain.CancelPolicy `yaml:"cancelPolicy"`
}

// DefaultWaveSettings returns default wave settings
func DefaultWaveSettings() WaveSettings {
	return WaveSettings{
		MaxBatchSize: 100,
		CancelPolicy: domain.CancelPolicyLetFinish,
	}
}

// WaveRepositories groups the stores the wave lifecycle writes to
type WaveRepositories struct {
	Waves         domain.WaveRepository
	WavePicklists domain.WavePicklistRepository
	Picklists     domain.PicklistRepository
	Tasks         domain.TaskRepository
	Sequences     domain.SequenceGenerator
	Locations     domain.WorkerLocationStore
}

// WaveService handles the wave lifecycle use cases
type WaveService struct {
	waves         domain.WaveRepository
	wavePicklists domain.WavePicklistRepository
	picklists     domain.PicklistRepository
	tasks         domain.TaskRepository
	sequences     domain.SequenceGenerator
	locations     domain.WorkerLocationStore
	orders        domain.OrderSource
	directory     domain.Directory
	events        *EventDispatcher
	metrics       *metrics.Metrics
	logger        *logging.Logger
	settings      WaveSettings
	now           func() time.Time

	// serializes selection, release and cancel so an order is never waved
	// twice and a wave is never exploded twice
	mu sync.Mutex
}

// NewWaveService creates a new WaveService
func NewWaveService(
	repos WaveRepositories,
	orders domain.OrderSource,
	directory domain.Directory,
	events *EventDispatcher,
	m *metrics.Metrics,
	logger *logging.Logger,
	settings WaveSettings,
) *WaveService {
	return &WaveService{
		waves:         repos.Waves,
		wavePicklists: repos.WavePicklists,
		picklists:     repos.Picklists,
		tasks:         repos.Tasks,
		sequences:     repos.Sequences,
		locations:     repos.Locations,
		orders:        orders,
		directory:     directory,
		events:        events,
		metrics:       m,
		logger:        logger,
		settings:      settings,
		now:           time.Now,
	}
}

// CreateWave creates a wave, selects its orders and links one picklist per
// order. With AutoRelease a wave holding at least one order is released
// straight away.
func (s *WaveService) CreateWave(ctx context.Context, cmd CreateWaveCommand) (*CreateWaveResultDTO, error) {
	if err := s.checkDirectory(ctx, cmd.WarehouseID, cmd.CarrierID); err != nil {
		return nil, err
	}

	now := s.now()
	seq, err := s.sequences.Next(ctx, domain.WaveSequenceKey(now))
	if err != nil {
		s.logger.WithError(err).Error("Failed to allocate wave number", "warehouseId", cmd.WarehouseID)
		return nil, fmt.Errorf("failed to allocate wave number: %w", err)
	}

	wave, err := domain.NewWave(domain.FormatWaveNumber(now, seq), domain.WaveConfig{
		WarehouseID: cmd.WarehouseID,
		CarrierID:   cmd.CarrierID,
		CutoffAt:    cmd.CutoffAt,
		Filters: domain.WaveFilters{
			Zones:         cmd.Zones,
			Channels:      cmd.Channels,
			CustomerTypes: cmd.CustomerTypes,
			MinPriority:   cmd.MinPriority,
			MaxPriority:   cmd.MaxPriority,
		},
		Optimization: domain.WaveOptimization{
			RouteOptimization: cmd.RouteOptimize,
			ZoneGrouping:      cmd.ZoneGrouping,
			MaxPicksPerTrip:   cmd.MaxPicksPerTrip,
			MaxWeightPerTrip:  cmd.MaxWeightPerTrip,
		},
		CreatedBy: cmd.CreatedBy,
	}, now)
	if err != nil {
		return nil, toAppError(err)
	}

	orders, err := s.planWave(ctx, wave, cmd, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordWaveTransition(string(wave.Status))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "wave.created",
		EntityType: "wave",
		EntityID:   wave.WaveNumber,
		Action:     "created",
		RelatedIDs: map[string]string{
			"warehouseId": wave.WarehouseID,
			"orders":      strconv.Itoa(len(orders)),
		},
	})

	result := &CreateWaveResultDTO{Wave: ToWaveDTO(wave)}
	if cmd.AutoRelease && wave.TotalOrders > 0 {
		release, err := s.release(ctx, wave, cmd.PickerIDs)
		if err != nil {
			return nil, err
		}
		result.Wave = ToWaveDTO(wave)
		result.Release = release
	}
	return result, nil
}

// ReleaseWave explodes every picklist line of the wave into one PICK task
func (s *WaveService) ReleaseWave(ctx context.Context, cmd ReleaseWaveCommand) (*ReleaseResultDTO, error) {
	wave, err := s.findWave(ctx, cmd.WaveNumber)
	if err != nil {
		return nil, err
	}
	return s.release(ctx, wave, cmd.PickerIDs)
}

// CancelWave cancels a wave and sweeps its tasks according to the policy
func (s *WaveService) CancelWave(ctx context.Context, cmd CancelWaveCommand) (*WaveDTO, error) {
	policy, err := domain.ParseCancelPolicy(cmd.Policy, s.settings.CancelPolicy)
	if err != nil {
		return nil, toAppError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wave, err := retryOnConflict(ctx, func() (*domain.Wave, error) {
		wave, err := s.findWave(ctx, cmd.WaveNumber)
		if err != nil {
			return nil, err
		}
		if err := wave.Cancel(cmd.Reason, policy, now); err != nil {
			return nil, toAppError(err)
		}
		if err := s.waves.Save(ctx, wave); err != nil {
			return nil, s.saveWaveError(wave.WaveNumber, err)
		}
		return wave, nil
	})
	if err != nil {
		return nil, err
	}

	cancelled, err := s.sweepTasks(ctx, wave.WaveNumber, cmd.Reason, policy, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordWaveTransition(string(domain.WaveStatusCancelled))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "wave.cancelled",
		EntityType: "wave",
		EntityID:   wave.WaveNumber,
		Action:     "cancelled",
		RelatedIDs: map[string]string{
			"policy":         string(policy),
			"tasksCancelled": strconv.Itoa(cancelled),
		},
	})

	return ToWaveDTO(wave), nil
}

// CompleteWave marks a wave COMPLETED. Completing a completed wave returns
// it unchanged.
func (s *WaveService) CompleteWave(ctx context.Context, cmd CompleteWaveCommand) (*WaveDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	wave, err := retryOnConflict(ctx, func() (*domain.Wave, error) {
		wave, err := s.findWave(ctx, cmd.WaveNumber)
		if err != nil {
			return nil, err
		}
		if changed, err = wave.Complete(s.now()); err != nil {
			return nil, toAppError(err)
		}
		if !changed {
			return wave, nil
		}
		if err := s.waves.Save(ctx, wave); err != nil {
			return nil, s.saveWaveError(wave.WaveNumber, err)
		}
		return wave, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return ToWaveDTO(wave), nil
	}

	s.metrics.RecordWaveTransition(string(domain.WaveStatusCompleted))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "wave.completed",
		EntityType: "wave",
		EntityID:   wave.WaveNumber,
		Action:     "completed",
	})
	return ToWaveDTO(wave), nil
}

// GetWave retrieves a wave by number
func (s *WaveService) GetWave(ctx context.Context, query GetWaveQuery) (*WaveDTO, error) {
	wave, err := s.findWave(ctx, query.WaveNumber)
	if err != nil {
		return nil, err
	}
	return ToWaveDTO(wave), nil
}

// ListWaves lists waves, newest first
func (s *WaveService) ListWaves(ctx context.Context, query ListWavesQuery) ([]WaveDTO, error) {
	filter := domain.WaveFilter{WarehouseID: query.WarehouseID, Limit: query.Limit}
	if query.Status != "" {
		status, err := domain.ParseWaveStatus(query.Status)
		if err != nil {
			return nil, toAppError(err)
		}
		filter.Status = status
	}

	waves, err := s.waves.Find(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list waves", "warehouseId", query.WarehouseID)
		return nil, fmt.Errorf("failed to list waves: %w", err)
	}
	return ToWaveDTOs(waves), nil
}

// ListWaveTasks lists the tasks of a wave
func (s *WaveService) ListWaveTasks(ctx context.Context, query GetWaveQuery) ([]TaskDTO, error) {
	if _, err := s.findWave(ctx, query.WaveNumber); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.Find(ctx, domain.TaskFilter{WaveID: query.WaveNumber})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list wave tasks", "waveNumber", query.WaveNumber)
		return nil, fmt.Errorf("failed to list wave tasks: %w", err)
	}
	return ToTaskDTOs(tasks), nil
}

func (s *WaveService) findWave(ctx context.Context, waveNumber string) (*domain.Wave, error) {
	wave, err := s.waves.FindByNumber(ctx, waveNumber)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get wave", "waveNumber", waveNumber)
		return nil, fmt.Errorf("failed to get wave: %w", err)
	}
	if wave == nil {
		return nil, errors.ErrNotFoundWithID("wave", waveNumber)
	}
	return wave, nil
}

// saveWaveError wraps a failed wave write. Lost version checks are expected
// under contention and are not logged.
func (s *WaveService) saveWaveError(waveNumber string, err error) error {
	if !stderrors.Is(err, domain.ErrConcurrentModification) {
		s.logger.WithError(err).Error("Failed to save wave", "waveNumber", waveNumber)
	}
	return fmt.Errorf("failed to save wave: %w", err)
}

// sweptTask is a task a wave cancellation cancelled
type sweptTask struct {
	holder string
	events []domain.DomainEvent
}

// sweepTasks cancels the wave's tasks the policy reaches and clears their
// holders' task pointers. It returns how many tasks it cancelled.
func (s *WaveService) sweepTasks(ctx context.Context, waveNumber, reason string, policy domain.CancelPolicy, now time.Time) (int, error) {
	listed, err := s.tasks.Find(ctx, domain.TaskFilter{
		WaveID:   waveNumber,
		Statuses: policy.CancellableStatuses(),
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to load wave tasks", "waveNumber", waveNumber)
		return 0, fmt.Errorf("failed to load wave tasks: %w", err)
	}

	located := locationUpdater{locations: s.locations, logger: s.logger}
	var events []domain.DomainEvent
	defer func() { s.events.Dispatch(ctx, events) }()

	cancelled := 0
	for _, task := range listed {
		swept, err := s.sweepTask(ctx, task, reason, policy, now)
		if err != nil {
			s.logger.WithError(err).Error("Failed to cancel wave task", "waveNumber", waveNumber, "taskId", task.TaskID)
			return cancelled, err
		}
		if swept == nil {
			continue
		}
		cancelled++
		events = append(events, swept.events...)
		if swept.holder != "" {
			located.release(ctx, swept.holder, task.TaskID, now)
		}
	}
	return cancelled, nil
}

// sweepTask cancels one listed task. The write is conditioned on the listed
// copy; a task that moved on meanwhile is reloaded and left alone unless the
// policy still reaches its new status. It returns nil for a task it left.
func (s *WaveService) sweepTask(ctx context.Context, listed *domain.Task, reason string, policy domain.CancelPolicy, now time.Time) (*sweptTask, error) {
	next := listed
	return retryOnConflict(ctx, func() (*sweptTask, error) {
		task := next
		next = nil
		if task == nil {
			var err error
			if task, err = s.tasks.FindByID(ctx, listed.TaskID); err != nil {
				return nil, fmt.Errorf("failed to reload task %s: %w", listed.TaskID, err)
			}
		}
		if task == nil || !policy.Sweeps(task.Status) {
			return nil, nil
		}

		holder := task.AssignedTo
		if err := task.Cancel(reason, now); err != nil {
			return nil, toAppError(err)
		}
		events := pendingEvents(task.GetDomainEvents())
		if err := s.tasks.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to cancel task %s: %w", task.TaskID, err)
		}
		return &sweptTask{holder: holder, events: events}, nil
	})
}

func (s *WaveService) checkDirectory(ctx context.Context, warehouseID, carrierID string) error {
	if warehouseID == "" {
		return errors.ErrValidation("warehouseId is required")
	}

	exists, err := s.directory.WarehouseExists(ctx, warehouseID)
	if err != nil {
		return fmt.Errorf("failed to look up warehouse: %w", err)
	}
	if !exists {
		return errors.ErrNotFoundWithID("warehouse", warehouseID)
	}

	if carrierID == "" {
		return nil
	}
	exists, err = s.directory.CarrierExists(ctx, carrierID)
	if err != nil {
		return fmt.Errorf("failed to look up carrier: %w", err)
	}
	if !exists {
		return errors.ErrNotFoundWithID("carrier", carrierID)
	}
	return nil
}

// planWave selects the orders of a new wave, stores the wave and links one
// picklist per order. It runs under the service lock so two waves never
// select the same order.
func (s *WaveService) planWave(ctx context.Context, wave *domain.Wave, cmd CreateWaveCommand, now time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.selectOrders(ctx, wave, cmd)
	if err != nil {
		return nil, err
	}

	if err := s.waves.Save(ctx, wave); err != nil {
		return nil, s.saveWaveError(wave.WaveNumber, err)
	}

	picklistCount, itemCount, err := s.linkPicklists(ctx, wave, orders, now)
	if err != nil {
		return nil, err
	}

	if err := wave.RecordSelection(len(orders), picklistCount, itemCount, now); err != nil {
		return nil, toAppError(err)
	}
	if err := s.waves.Save(ctx, wave); err != nil {
		return nil, s.saveWaveError(wave.WaveNumber, err)
	}
	return orders, nil
}

// selectOrders returns the orders of a new wave: eligible orders matching the
// wave filters, or the explicit id list. Orders held by a wave that was not
// cancelled are skipped when selecting and rejected when named.
func (s *WaveService) selectOrders(ctx context.Context, wave *domain.Wave, cmd CreateWaveCommand) ([]domain.Order, error) {
	if cmd.AutoSelectOrders {
		eligible, err := s.orders.FindEligible(ctx, domain.OrderFilter{
			WarehouseID:   wave.WarehouseID,
			MinPriority:   wave.Filters.MinPriority,
			MaxPriority:   wave.Filters.MaxPriority,
			Channels:      wave.Filters.Channels,
			CustomerTypes: wave.Filters.CustomerTypes,
			Zones:         wave.Filters.Zones,
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to query eligible orders", "warehouseId", wave.WarehouseID)
			return nil, fmt.Errorf("failed to query eligible orders: %w", err)
		}

		orders := make([]domain.Order, 0, len(eligible))
		for _, order := range eligible {
			if len(orders) >= s.settings.MaxBatchSize {
				break
			}
			holder, err := s.holdingWave(ctx, order.OrderID)
			if err != nil {
				return nil, err
			}
			if holder != "" {
				continue
			}
			orders = append(orders, order)
		}
		return orders, nil
	}

	ids := uniqueStrings(cmd.OrderIDs)
	if len(ids) > s.settings.MaxBatchSize {
		return nil, errors.ErrCapacityExceeded(
			fmt.Sprintf("wave can hold at most %d orders, got %d", s.settings.MaxBatchSize, len(ids)))
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.orders.GetOrder(ctx, id)
		if err != nil {
			return nil, toAppError(err)
		}
		if order.WarehouseID != wave.WarehouseID {
			return nil, errors.ErrValidation(
				fmt.Sprintf("order %s belongs to warehouse %s", id, order.WarehouseID))
		}
		if order.Status != domain.OrderStatusConfirmed {
			return nil, errors.ErrValidation(
				fmt.Sprintf("order %s is %s, only %s orders can be waved", id, order.Status, domain.OrderStatusConfirmed))
		}
		holder, err := s.holdingWave(ctx, id)
		if err != nil {
			return nil, err
		}
		if holder != "" {
			return nil, errors.ErrConflict(fmt.Sprintf("order %s is already in wave %s", id, holder))
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// holdingWave returns the number of a wave that still holds the order, or
// "" when every wave that held it was cancelled
func (s *WaveService) holdingWave(ctx context.Context, orderID string) (string, error) {
	links, err := s.wavePicklists.FindByOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to look up waves of order %s: %w", orderID, err)
	}
	for _, link := range links {
		wave, err := s.waves.FindByNumber(ctx, link.WaveNumber)
		if err != nil {
			return "", fmt.Errorf("failed to get wave %s: %w", link.WaveNumber, err)
		}
		if wave != nil && wave.Status != domain.WaveStatusCancelled {
			return wave.WaveNumber, nil
		}
	}
	return "", nil
}

// linkPicklists finds or creates the picklist of each order and links it to
// the wave in selection order.
func (s *WaveService) linkPicklists(ctx context.Context, wave *domain.Wave, orders []domain.Order, now time.Time) (int, int, error) {
	links := make([]*domain.WavePicklist, 0, len(orders))
	items := 0

	for i, order := range orders {
		picklist, err := s.picklists.FindByOrderID(ctx, order.OrderID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to look up picklist of order %s: %w", order.OrderID, err)
		}
		if picklist == nil {
			picklist = domain.NewPicklistForOrder(newPicklistID(), order, now)
			if err := s.picklists.Save(ctx, picklist); err != nil {
				return 0, 0, fmt.Errorf("failed to save picklist of order %s: %w", order.OrderID, err)
			}
		}

		items += picklist.TotalQuantity()
		links = append(links, &domain.WavePicklist{
			WaveNumber: wave.WaveNumber,
			PicklistID: picklist.PicklistID,
			OrderID:    order.OrderID,
			Sequence:   i + 1,
			CreatedAt:  now,
		})
	}

	if len(links) > 0 {
		if err := s.wavePicklists.SaveAll(ctx, links); err != nil {
			s.logger.WithError(err).Error("Failed to link picklists", "waveNumber", wave.WaveNumber)
			return 0, 0, fmt.Errorf("failed to link picklists: %w", err)
		}
	}
	return len(links), items, nil
}

func (s *WaveService) release(ctx context.Context, wave *domain.Wave, pickerIDs []string) (*ReleaseResultDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// reload under the lock so a concurrent release is observed
	current, err := s.findWave(ctx, wave.WaveNumber)
	if err != nil {
		return nil, err
	}
	*wave = *current

	if !wave.CanRelease() {
		return nil, errors.ErrInvalidStateTransition(
			fmt.Sprintf("wave %s cannot be released from %s", wave.WaveNumber, wave.Status))
	}

	links, err := s.wavePicklists.FindByWave(ctx, wave.WaveNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load wave picklists: %w", err)
	}

	now := s.now()
	pickers := uniqueStrings(pickerIDs)
	picklists := make([]*domain.Picklist, 0, len(links))
	tasks := make([]*domain.Task, 0)
	unresolved := 0

	for _, link := range links {
		picklist, err := s.picklists.FindByID(ctx, link.PicklistID)
		if err != nil {
			return nil, fmt.Errorf("failed to load picklist %s: %w", link.PicklistID, err)
		}
		if picklist == nil {
			return nil, errors.ErrNotFoundWithID("picklist", link.PicklistID)
		}
		picklists = append(picklists, picklist)

		for _, item := range picklist.Items {
			task, resolved, err := s.explodeItem(ctx, wave, picklist, item, now)
			if err != nil {
				return nil, err
			}
			if !resolved {
				unresolved++
			}
			if picker := domain.AssignRoundRobin(pickers, len(tasks)); picker != "" {
				if err := task.Assign(picker, now); err != nil {
					return nil, toAppError(err)
				}
			}
			tasks = append(tasks, task)
		}
	}

	var events []domain.DomainEvent
	for _, task := range tasks {
		events = append(events, task.GetDomainEvents()...)
	}
	if len(tasks) > 0 {
		if err := s.tasks.SaveAll(ctx, tasks); err != nil {
			s.logger.WithError(err).Error("Failed to save wave tasks", "waveNumber", wave.WaveNumber)
			return nil, fmt.Errorf("failed to save wave tasks: %w", err)
		}
	}
	s.pointPickers(ctx, tasks, now)

	for _, picklist := range picklists {
		picklist.MarkPending(now)
		if err := s.picklists.Save(ctx, picklist); err != nil {
			return nil, fmt.Errorf("failed to save picklist %s: %w", picklist.PicklistID, err)
		}
	}

	summary := domain.ReleaseSummary{
		PicklistsCreated: len(picklists),
		TasksCreated:     len(tasks),
		Pickers:          pickers,
		UnresolvedBins:   unresolved,
	}
	if err := wave.Release(summary, now); err != nil {
		return nil, toAppError(err)
	}
	if err := s.waves.Save(ctx, wave); err != nil {
		s.logger.WithError(err).Error("Failed to save wave", "waveNumber", wave.WaveNumber)
		return nil, fmt.Errorf("failed to save wave: %w", err)
	}
	s.events.Dispatch(ctx, events)

	s.metrics.RecordTasksCreated(string(domain.TaskTypePick), len(tasks))
	s.metrics.RecordUnresolvedBins(unresolved)
	s.metrics.RecordWaveTransition(string(domain.WaveStatusReleased))
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "wave.released",
		EntityType: "wave",
		EntityID:   wave.WaveNumber,
		Action:     "released",
		RelatedIDs: map[string]string{
			"tasksCreated":   strconv.Itoa(len(tasks)),
			"pickers":        strconv.Itoa(len(pickers)),
			"unresolvedBins": strconv.Itoa(unresolved),
		},
	})

	return &ReleaseResultDTO{
		WaveNumber:       wave.WaveNumber,
		PicklistsCreated: summary.PicklistsCreated,
		TasksCreated:     summary.TasksCreated,
		PickersAssigned:  len(pickers),
		UnresolvedBins:   unresolved,
		ReleasedAt:       now,
	}, nil
}

// pointPickers gives every picker without a current task a pointer to the
// first task the release assigned them
func (s *WaveService) pointPickers(ctx context.Context, tasks []*domain.Task, now time.Time) {
	located := locationUpdater{locations: s.locations, logger: s.logger}
	pointed := make(map[string]struct{})
	for _, task := range tasks {
		if task.AssignedTo == "" {
			continue
		}
		if _, ok := pointed[task.AssignedTo]; ok {
			continue
		}
		pointed[task.AssignedTo] = struct{}{}

		taskID := task.TaskID
		located.apply(ctx, task.AssignedTo, func(l *domain.WorkerLocation) {
			if l.CurrentTaskID == "" {
				l.AssignTask(taskID, now)
			}
		})
	}
}

// explodeItem builds the PICK task of one picklist line. It reports false
// when the product's bin could not be resolved.
func (s *WaveService) explodeItem(
	ctx context.Context,
	wave *domain.Wave,
	picklist *domain.Picklist,
	item domain.PicklistItem,
	now time.Time,
) (*domain.Task, bool, error) {
	bin, err := s.directory.ResolveBin(ctx, wave.WarehouseID, item.ProductID, item.VariantID)
	if err != nil {
		s.logger.WithError(err).Warn("Bin resolution failed, task flagged for manual resolution",
			"waveNumber", wave.WaveNumber,
			"productId", item.ProductID,
		)
		bin = nil
	}

	params := domain.NewTaskParams{
		TaskID:         newTaskID(),
		WarehouseID:    wave.WarehouseID,
		Type:           domain.TaskTypePick,
		Priority:       domain.TaskPriorityNormal,
		ProductID:      item.ProductID,
		VariantID:      item.VariantID,
		Quantity:       item.Quantity,
		DueAt:          wave.CutoffAt,
		WaveID:         wave.WaveNumber,
		PicklistID:     picklist.PicklistID,
		PicklistItemID: item.ItemID,
	}
	if bin != nil {
		params.Zone = bin.ZoneID
		params.SourceBin = bin.Code
	}

	task, err := domain.NewTask(params, now)
	if err != nil {
		return nil, false, toAppError(fmt.Errorf("picklist %s item %s: %w", picklist.PicklistID, item.ItemID, err))
	}
	return task, bin != nil, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
