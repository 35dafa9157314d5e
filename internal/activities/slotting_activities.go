// Package activities holds the Temporal activities run by the task engine worker
package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/workflows"
	apperrors "github.com/wms-platform/task-engine/pkg/errors"
)

// SlotOptimizer runs one slot optimization pass for a warehouse
type SlotOptimizer interface {
	RunOptimization(ctx context.Context, cmd application.RunSlotOptimizationCommand) (*application.SlotOptimizationResultDTO, error)
}

// SlottingActivities contains activities related to slot optimization
type SlottingActivities struct {
	optimizer SlotOptimizer
}

// NewSlottingActivities creates a new SlottingActivities instance
func NewSlottingActivities(optimizer SlotOptimizer) *SlottingActivities {
	return &SlottingActivities{optimizer: optimizer}
}

// RunSlotOptimization classifies the warehouse's products and records
// relocation recommendations. Validation failures are not retried.
func (a *SlottingActivities) RunSlotOptimization(ctx context.Context, input workflows.RunSlotOptimizationInput) (*workflows.RunSlotOptimizationResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running slot optimization",
		"warehouseId", input.WarehouseID,
		"analysisWindowDays", input.AnalysisWindowDays,
		"minPickThresholdSet", input.MinPickThreshold != nil,
	)

	result, err := a.optimizer.RunOptimization(ctx, application.RunSlotOptimizationCommand{
		WarehouseID:        input.WarehouseID,
		AnalysisWindowDays: input.AnalysisWindowDays,
		MinPickThreshold:   input.MinPickThreshold,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeValidationError) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), workflows.ValidationErrorType, err)
		}
		logger.Error("Slot optimization failed", "warehouseId", input.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to optimize slots for %s: %w", input.WarehouseID, err)
	}

	logger.Info("Slot optimization finished",
		"warehouseId", result.WarehouseID,
		"productsAnalyzed", result.ProductsAnalyzed,
		"flagged", len(result.Relocations),
	)

	return &workflows.RunSlotOptimizationResult{
		WarehouseID:        result.WarehouseID,
		ProductsAnalyzed:   result.ProductsAnalyzed,
		ClassCounts:        result.ClassCounts,
		FlaggedRelocations: len(result.Relocations),
	}, nil
}
