package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

// activityCalls records warehouses passed to the mocked activity
type activityCalls struct {
	mu         sync.Mutex
	warehouses []string
}

func (c *activityCalls) record(warehouseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warehouses = append(c.warehouses, warehouseID)
}

func (c *activityCalls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warehouses...)
}

// newTestEnv registers a placeholder under the activity name so tests can
// mock it by name
func newTestEnv() *testsuite.TestWorkflowEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(
		func(context.Context, RunSlotOptimizationInput) (*RunSlotOptimizationResult, error) {
			return nil, errors.New("activity not mocked")
		},
		activity.RegisterOptions{Name: RunSlotOptimizationActivity},
	)
	return env
}

func TestSlotOptimizationWorkflow_ContinuesAsNewAfterCycles(t *testing.T) {
	env := newTestEnv()

	calls := &activityCalls{}
	env.OnActivity(RunSlotOptimizationActivity, mock.Anything, mock.Anything).Return(
		func(_ context.Context, input RunSlotOptimizationInput) (*RunSlotOptimizationResult, error) {
			calls.record(input.WarehouseID)
			return &RunSlotOptimizationResult{WarehouseID: input.WarehouseID, ProductsAnalyzed: 10, FlaggedRelocations: 1}, nil
		},
	)

	env.ExecuteWorkflow(SlotOptimizationWorkflow, SlotOptimizationWorkflowInput{
		Warehouses:   []string{"WH-1", "WH-2"},
		Interval:     "1h",
		CyclesPerRun: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	var continueAsNew *workflow.ContinueAsNewError
	require.True(t, errors.As(env.GetWorkflowError(), &continueAsNew))
	assert.Equal(t, "SlotOptimizationWorkflow", continueAsNew.WorkflowType.Name)
	assert.Equal(t, []string{"WH-1", "WH-2", "WH-1", "WH-2"}, calls.all())
}

func TestSlotOptimizationWorkflow_StopSignal(t *testing.T) {
	env := newTestEnv()

	env.OnActivity(RunSlotOptimizationActivity, mock.Anything, mock.Anything).Return(
		&RunSlotOptimizationResult{WarehouseID: "WH-1", FlaggedRelocations: 3}, nil,
	)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(StopSlotOptimizationSignal, "maintenance")
	}, 30*time.Minute)

	env.ExecuteWorkflow(SlotOptimizationWorkflow, SlotOptimizationWorkflowInput{
		Warehouses:   []string{"WH-1"},
		Interval:     "1h",
		CyclesPerRun: 5,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SlotOptimizationWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.CyclesRun)
	assert.Equal(t, 1, result.WarehousesOptimized)
	assert.Equal(t, 3, result.FlaggedRelocations)
	assert.Equal(t, "maintenance", result.StoppedBy)
}

func TestSlotOptimizationWorkflow_FailedWarehouseDoesNotStopOthers(t *testing.T) {
	env := newTestEnv()

	calls := &activityCalls{}
	env.OnActivity(RunSlotOptimizationActivity, mock.Anything, mock.Anything).Return(
		func(_ context.Context, input RunSlotOptimizationInput) (*RunSlotOptimizationResult, error) {
			calls.record(input.WarehouseID)
			if input.WarehouseID == "WH-BAD" {
				return nil, sdktemporal.NewNonRetryableApplicationError("unknown warehouse", ValidationErrorType, nil)
			}
			return &RunSlotOptimizationResult{WarehouseID: input.WarehouseID}, nil
		},
	)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(StopSlotOptimizationSignal, "")
	}, time.Minute)

	env.ExecuteWorkflow(SlotOptimizationWorkflow, SlotOptimizationWorkflowInput{
		Warehouses:   []string{"WH-BAD", "WH-1"},
		Interval:     "1h",
		CyclesPerRun: 3,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SlotOptimizationWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.FailedRuns)
	assert.Equal(t, 1, result.WarehousesOptimized)
	assert.Equal(t, "signal", result.StoppedBy)
	assert.Equal(t, []string{"WH-BAD", "WH-1"}, calls.all())
}

func TestSlotOptimizationWorkflow_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input SlotOptimizationWorkflowInput
	}{
		{name: "no warehouses", input: SlotOptimizationWorkflowInput{Interval: "1h"}},
		{name: "unparsable interval", input: SlotOptimizationWorkflowInput{Warehouses: []string{"WH-1"}, Interval: "hourly"}},
		{name: "zero interval", input: SlotOptimizationWorkflowInput{Warehouses: []string{"WH-1"}, Interval: "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()

			env.ExecuteWorkflow(SlotOptimizationWorkflow, tt.input)

			require.True(t, env.IsWorkflowCompleted())
			err := env.GetWorkflowError()
			require.Error(t, err)
			var appErr *sdktemporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, ValidationErrorType, appErr.Type())
		})
	}
}
