package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/task-engine/internal/activities"
	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/bootstrap"
	"github.com/wms-platform/task-engine/internal/config"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	"github.com/wms-platform/task-engine/internal/workflows"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/temporal"
)

// slotOptimizationWorkflowID is fixed so restarts attach to the running loop
const slotOptimizationWorkflowID = "slot-optimization"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(config.ServiceName + "-worker")
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting task-engine worker")

	ctx := context.Background()
	m := metrics.New(metrics.DefaultConfig(config.ServiceName + "-worker"))

	if cfg.Storage == config.StorageMemory {
		logger.Warn("Worker is using in-memory storage; optimization results are not shared with the API")
	}
	mapper := eventing.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceTaskEngine))
	stores, err := bootstrap.OpenStores(ctx, cfg, mapper, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open stores")
		os.Exit(1)
	}
	defer stores.Close()

	slotting := application.NewSlotOptimizationService(stores.Tasks, stores.Directory, stores.SlotScores,
		eventing.NewRecorder(mapper, stores.Outbox), m, logger, cfg.Engine.Slotting)

	// Initialize Temporal client
	temporalClient, err := temporal.NewClient(cfg.Temporal, logger.Logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort)

	// Create activities
	slottingActivities := activities.NewSlottingActivities(slotting)

	// Create worker
	workerOpts := temporal.DefaultWorkerOptions(temporal.TaskQueues.TaskEngine)
	w := temporalClient.NewWorker(workerOpts)

	// Register workflow
	w.RegisterWorkflowWithOptions(workflows.SlotOptimizationWorkflow, workflow.RegisterOptions{
		Name: temporal.WorkflowNames.SlotOptimization,
	})
	logger.Info("Registered workflow", "workflow", temporal.WorkflowNames.SlotOptimization)

	// Register activities
	w.RegisterActivityWithOptions(slottingActivities.RunSlotOptimization, activity.RegisterOptions{
		Name: workflows.RunSlotOptimizationActivity,
	})
	logger.Info("Registered activities")

	// Start worker in background
	go func() {
		if err := w.Run(nil); err != nil {
			logger.WithError(err).Error("Worker failed")
			os.Exit(1)
		}
	}()
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.TaskEngine)

	schedule := cfg.Engine.Optimization
	if len(schedule.Warehouses) > 0 && schedule.WorkflowInterval > 0 {
		minPicks := cfg.Engine.Slotting.MinPickThreshold
		run, err := temporalClient.StartWorkflow(ctx, slotOptimizationWorkflowID,
			temporal.TaskQueues.TaskEngine, temporal.WorkflowNames.SlotOptimization,
			workflows.SlotOptimizationWorkflowInput{
				Warehouses:         schedule.Warehouses,
				Interval:           schedule.WorkflowInterval.String(),
				CyclesPerRun:       schedule.CyclesPerRun,
				AnalysisWindowDays: cfg.Engine.Slotting.WindowDays,
				MinPickThreshold:   &minPicks,
			})
		if err != nil {
			logger.WithError(err).Error("Failed to start slot optimization workflow")
		} else {
			logger.Info("Slot optimization workflow running",
				"workflowId", run.GetID(),
				"runId", run.GetRunID(),
				"interval", schedule.WorkflowInterval,
				"warehouses", schedule.Warehouses,
			)
		}
	} else {
		logger.Info("No warehouses configured; slot optimization workflow not started")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}
