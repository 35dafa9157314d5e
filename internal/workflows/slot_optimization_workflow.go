// Package workflows holds the Temporal workflows run by the task engine worker
package workflows

import (
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/task-engine/pkg/temporal"
)

// Activity and signal names
const (
	RunSlotOptimizationActivity = "RunSlotOptimization"
	StopSlotOptimizationSignal  = "stop-slot-optimization"
)

// ValidationErrorType marks failures that retrying cannot fix
const ValidationErrorType = "ValidationError"

// SlotOptimizationWorkflowInput configures the recurring optimization loop
type SlotOptimizationWorkflowInput struct {
	Warehouses         []string `json:"warehouses"`
	Interval           string   `json:"interval"` // e.g. "1h", "24h"
	CyclesPerRun       int      `json:"cyclesPerRun"`
	AnalysisWindowDays int      `json:"analysisWindowDays,omitempty"`
	MinPickThreshold   *int     `json:"minPickThreshold,omitempty"`

	// Totals carried across continue-as-new
	CyclesCompleted int `json:"cyclesCompleted,omitempty"`
}

// SlotOptimizationWorkflowResult summarises the cycles run before stopping
type SlotOptimizationWorkflowResult struct {
	CyclesRun           int       `json:"cyclesRun"`
	WarehousesOptimized int       `json:"warehousesOptimized"`
	FailedRuns          int       `json:"failedRuns"`
	FlaggedRelocations  int       `json:"flaggedRelocations"`
	StartTime           time.Time `json:"startTime"`
	LastCycleTime       time.Time `json:"lastCycleTime"`
	StoppedBy           string    `json:"stoppedBy,omitempty"`
}

// RunSlotOptimizationInput is the activity input for one warehouse
type RunSlotOptimizationInput struct {
	WarehouseID        string `json:"warehouseId"`
	AnalysisWindowDays int    `json:"analysisWindowDays,omitempty"`
	MinPickThreshold   *int   `json:"minPickThreshold,omitempty"`
}

// RunSlotOptimizationResult is the activity output for one warehouse
type RunSlotOptimizationResult struct {
	WarehouseID        string         `json:"warehouseId"`
	ProductsAnalyzed   int            `json:"productsAnalyzed"`
	ClassCounts        map[string]int `json:"classCounts"`
	FlaggedRelocations int            `json:"flaggedRelocations"`
}

// SlotOptimizationWorkflow optimizes every configured warehouse, sleeps for
// the interval and repeats. After CyclesPerRun cycles it continues as new to
// keep the history bounded. A stop signal ends it after the current cycle.
func SlotOptimizationWorkflow(ctx workflow.Context, input SlotOptimizationWorkflowInput) (*SlotOptimizationWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting slot optimization workflow",
		"warehouses", input.Warehouses,
		"interval", input.Interval,
		"cyclesCompleted", input.CyclesCompleted,
	)

	if len(input.Warehouses) == 0 {
		return nil, sdktemporal.NewNonRetryableApplicationError("no warehouses configured", ValidationErrorType, nil)
	}
	interval, err := time.ParseDuration(input.Interval)
	if err != nil || interval <= 0 {
		return nil, sdktemporal.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid interval %q", input.Interval), ValidationErrorType, err)
	}
	if input.CyclesPerRun <= 0 {
		input.CyclesPerRun = 1
	}

	options := temporal.DefaultActivityOptions()
	options.RetryPolicy.NonRetryableErrorTypes = []string{ValidationErrorType}
	ctx = workflow.WithActivityOptions(ctx, options)

	var stopReason string
	stopChannel := workflow.GetSignalChannel(ctx, StopSlotOptimizationSignal)

	result := &SlotOptimizationWorkflowResult{StartTime: workflow.Now(ctx)}

	for cycle := 0; cycle < input.CyclesPerRun; cycle++ {
		runCycle(ctx, input, result)

		selector := workflow.NewSelector(ctx)
		selector.AddFuture(workflow.NewTimer(ctx, interval), func(workflow.Future) {})
		selector.AddReceive(stopChannel, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, &stopReason)
			if stopReason == "" {
				stopReason = "signal"
			}
		})
		selector.Select(ctx)

		if stopReason != "" {
			result.StoppedBy = stopReason
			logger.Info("Slot optimization workflow stopped",
				"reason", stopReason,
				"cyclesRun", result.CyclesRun,
			)
			return result, nil
		}
	}

	next := input
	next.CyclesCompleted += result.CyclesRun
	logger.Info("Continuing slot optimization workflow as new", "cyclesCompleted", next.CyclesCompleted)
	return nil, workflow.NewContinueAsNewError(ctx, SlotOptimizationWorkflow, next)
}

// runCycle optimizes each warehouse in turn. A failed warehouse is counted
// and does not stop the others.
func runCycle(ctx workflow.Context, input SlotOptimizationWorkflowInput, result *SlotOptimizationWorkflowResult) {
	logger := workflow.GetLogger(ctx)

	for _, warehouseID := range input.Warehouses {
		var out RunSlotOptimizationResult
		err := workflow.ExecuteActivity(ctx, RunSlotOptimizationActivity, RunSlotOptimizationInput{
			WarehouseID:        warehouseID,
			AnalysisWindowDays: input.AnalysisWindowDays,
			MinPickThreshold:   input.MinPickThreshold,
		}).Get(ctx, &out)
		if err != nil {
			result.FailedRuns++
			logger.Error("Slot optimization failed", "warehouseId", warehouseID, "error", err)
			continue
		}

		result.WarehousesOptimized++
		result.FlaggedRelocations += out.FlaggedRelocations
		logger.Info("Slot optimization completed",
			"warehouseId", warehouseID,
			"productsAnalyzed", out.ProductsAnalyzed,
			"flagged", out.FlaggedRelocations,
		)
	}

	result.CyclesRun++
	result.LastCycleTime = workflow.Now(ctx)
}
