package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// SlottingSettings holds the defaults of slot optimization runs
type SlottingSettings struct {
	WindowDays       int                   `yaml:"windowDays"`
	MinPickThreshold int                   `yaml:"minPickThreshold"`
	Thresholds       domain.ABCThresholds  `yaml:"thresholds"`
	SequenceLimits   domain.SequenceLimits `yaml:"sequenceLimits"`
}

// DefaultSlottingSettings returns default slotting settings
func DefaultSlottingSettings() SlottingSettings {
	return SlottingSettings{
		WindowDays:       30,
		MinPickThreshold: 5,
		Thresholds:       domain.DefaultABCThresholds(),
		SequenceLimits:   domain.SequenceLimits{High: 100, Low: 50},
	}
}

// SlotOptimizationService classifies product velocity and flags relocations
type SlotOptimizationService struct {
	tasks     domain.TaskRepository
	directory domain.Directory
	scores    domain.SlotScoreRepository
	recorder  domain.EventRecorder
	metrics   *metrics.Metrics
	logger    *logging.Logger
	settings  SlottingSettings
	now       func() time.Time
}

// NewSlotOptimizationService creates a new SlotOptimizationService
func NewSlotOptimizationService(
	tasks domain.TaskRepository,
	directory domain.Directory,
	scores domain.SlotScoreRepository,
	recorder domain.EventRecorder,
	m *metrics.Metrics,
	logger *logging.Logger,
	settings SlottingSettings,
) *SlotOptimizationService {
	return &SlotOptimizationService{
		tasks:     tasks,
		directory: directory,
		scores:    scores,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
		settings:  settings,
		now:       time.Now,
	}
}

// Settings returns the defaults applied to runs that omit parameters
func (s *SlotOptimizationService) Settings() SlottingSettings {
	return s.settings
}

// RunOptimization classifies every product picked in the analysis window,
// upserts its slot score and records a relocation event per flagged product.
// It never moves inventory.
func (s *SlotOptimizationService) RunOptimization(ctx context.Context, cmd RunSlotOptimizationCommand) (*SlotOptimizationResultDTO, error) {
	if cmd.WarehouseID == "" {
		return nil, errors.ErrValidation("warehouseId is required")
	}

	windowDays := cmd.AnalysisWindowDays
	if windowDays <= 0 {
		windowDays = s.settings.WindowDays
	}
	minPicks := s.settings.MinPickThreshold
	if cmd.MinPickThreshold != nil {
		if *cmd.MinPickThreshold < 0 {
			return nil, errors.ErrValidation("minPickThreshold must not be negative")
		}
		minPicks = *cmd.MinPickThreshold
	}
	thresholds := s.settings.Thresholds
	if cmd.ThresholdA > 0 {
		thresholds.A = cmd.ThresholdA
	}
	if cmd.ThresholdB > 0 {
		thresholds.B = cmd.ThresholdB
	}
	if err := thresholds.Validate(); err != nil {
		return nil, toAppError(err)
	}

	started := time.Now()
	windowEnd := s.now()
	windowStart := windowEnd.AddDate(0, 0, -windowDays)

	result, err := s.run(ctx, cmd.WarehouseID, minPicks, thresholds, windowStart, windowEnd)
	if err != nil {
		s.metrics.RecordSlotOptimization(false, nil)
		s.logger.WithError(err).Error("Slot optimization failed", "warehouseId", cmd.WarehouseID)
		return nil, err
	}

	flagged := make(map[string]int)
	for _, r := range result.Relocations {
		flagged[r.Priority]++
	}
	s.metrics.RecordSlotOptimization(true, flagged)
	s.logger.Performance(ctx, "slot_optimization", time.Since(started), true, map[string]any{
		"warehouseId": cmd.WarehouseID,
		"products":    result.ProductsAnalyzed,
	})
	s.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "slotting.optimized",
		EntityType: "warehouse",
		EntityID:   cmd.WarehouseID,
		Action:     "optimized",
		RelatedIDs: map[string]string{
			"productsAnalyzed": strconv.Itoa(result.ProductsAnalyzed),
			"flagged":          strconv.Itoa(len(result.Relocations)),
		},
	})
	return result, nil
}

func (s *SlotOptimizationService) run(
	ctx context.Context,
	warehouseID string,
	minPicks int,
	thresholds domain.ABCThresholds,
	windowStart, windowEnd time.Time,
) (*SlotOptimizationResultDTO, error) {
	picks, err := s.tasks.AggregateCompletedPicks(ctx, warehouseID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate completed picks: %w", err)
	}

	classes := domain.ClassifyProducts(picks, minPicks, thresholds)

	counts := map[domain.VelocityClass]int{
		domain.VelocityClassA: 0,
		domain.VelocityClassB: 0,
		domain.VelocityClassC: 0,
		domain.VelocityClassD: 0,
	}
	scores := make([]*domain.SlotScore, 0, len(classes))
	relocations := make([]RelocationDTO, 0)
	events := make([]domain.DomainEvent, 0)

	for _, c := range classes {
		counts[c.Class]++

		bin, err := s.directory.ResolveBin(ctx, warehouseID, c.ProductID, c.VariantID)
		if err != nil {
			s.logger.WithError(err).Warn("Bin lookup failed, relocation not evaluated",
				"warehouseId", warehouseID,
				"productId", c.ProductID,
			)
			bin = nil
		}

		relocation := domain.EvaluateRelocation(c.Class, bin, s.settings.SequenceLimits)
		score := domain.NewSlotScore(warehouseID, c, bin, relocation, windowStart, windowEnd)
		scores = append(scores, score)

		if relocation == nil {
			continue
		}
		relocations = append(relocations, *ToRelocationDTO(score))
		events = append(events, &domain.RelocationRecommendedEvent{
			WarehouseID:   warehouseID,
			ProductID:     c.ProductID,
			VariantID:     c.VariantID,
			Class:         c.Class,
			CurrentBin:    score.CurrentBin,
			Priority:      relocation.Priority,
			Action:        relocation.Action,
			Reason:        relocation.Reason,
			RecommendedAt: windowEnd,
		})
	}

	if len(scores) > 0 {
		if err := s.scores.Upsert(ctx, scores); err != nil {
			return nil, fmt.Errorf("failed to upsert slot scores: %w", err)
		}
	}

	events = append(events, &domain.SlotOptimizationCompletedEvent{
		WarehouseID:      warehouseID,
		ClassCounts:      counts,
		ProductsAnalyzed: len(classes),
		FlaggedCount:     len(relocations),
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
	})
	if err := s.recorder.Record(ctx, warehouseID, events); err != nil {
		return nil, fmt.Errorf("failed to record slotting events: %w", err)
	}

	classCounts := make(map[string]int, len(counts))
	for class, n := range counts {
		classCounts[string(class)] = n
	}

	return &SlotOptimizationResultDTO{
		WarehouseID:      warehouseID,
		ClassCounts:      classCounts,
		ProductsAnalyzed: len(classes),
		Relocations:      relocations,
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
	}, nil
}

// ListSlotScores lists the stored scores of a warehouse, optionally by class
func (s *SlotOptimizationService) ListSlotScores(ctx context.Context, query ListSlotScoresQuery) ([]SlotScoreDTO, error) {
	if query.WarehouseID == "" {
		return nil, errors.ErrValidation("warehouseId is required")
	}

	var class domain.VelocityClass
	if query.Class != "" {
		parsed, err := domain.ParseVelocityClass(query.Class)
		if err != nil {
			return nil, toAppError(err)
		}
		class = parsed
	}

	scores, err := s.scores.Find(ctx, query.WarehouseID, class)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list slot scores", "warehouseId", query.WarehouseID)
		return nil, fmt.Errorf("failed to list slot scores: %w", err)
	}

	dtos := make([]SlotScoreDTO, 0, len(scores))
	for _, score := range scores {
		dtos = append(dtos, ToSlotScoreDTO(score))
	}
	return dtos, nil
}
