// Package http exposes the engine's use cases over a gin REST API
package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/middleware"
)

// WaveUseCases is the wave lifecycle surface
type WaveUseCases interface {
	CreateWave(ctx context.Context, cmd application.CreateWaveCommand) (*application.CreateWaveResultDTO, error)
	ReleaseWave(ctx context.Context, cmd application.ReleaseWaveCommand) (*application.ReleaseResultDTO, error)
	CancelWave(ctx context.Context, cmd application.CancelWaveCommand) (*application.WaveDTO, error)
	CompleteWave(ctx context.Context, cmd application.CompleteWaveCommand) (*application.WaveDTO, error)
	GetWave(ctx context.Context, query application.GetWaveQuery) (*application.WaveDTO, error)
	ListWaves(ctx context.Context, query application.ListWavesQuery) ([]application.WaveDTO, error)
	ListWaveTasks(ctx context.Context, query application.GetWaveQuery) ([]application.TaskDTO, error)
}

// DispatchUseCases is the task interleaving surface
type DispatchUseCases interface {
	GetNextTask(ctx context.Context, cmd application.GetNextTaskCommand) (*application.NextTaskDTO, error)
}

// ExecutionUseCases is the task execution surface
type ExecutionUseCases interface {
	StartTask(ctx context.Context, cmd application.StartTaskCommand) (*application.TaskDTO, error)
	CompleteTask(ctx context.Context, cmd application.CompleteTaskCommand) (*application.TaskDTO, error)
	PauseTask(ctx context.Context, cmd application.PauseTaskCommand) (*application.TaskDTO, error)
	ResumeTask(ctx context.Context, cmd application.ResumeTaskCommand) (*application.TaskDTO, error)
}

// TaskUseCases is the task store surface
type TaskUseCases interface {
	CreateTask(ctx context.Context, cmd application.CreateTaskCommand) (*application.TaskDTO, error)
	GetTask(ctx context.Context, query application.GetTaskQuery) (*application.TaskDTO, error)
	ListTasks(ctx context.Context, query application.ListTasksQuery) ([]application.TaskDTO, error)
	CancelTask(ctx context.Context, cmd application.CancelTaskCommand) (*application.TaskDTO, error)
}

// LocationUseCases is the worker location surface
type LocationUseCases interface {
	UpdateLocation(ctx context.Context, cmd application.UpdateWorkerLocationCommand) (*application.WorkerLocationDTO, error)
	GetLocation(ctx context.Context, workerID string) (*application.WorkerLocationDTO, error)
}

// SlottingUseCases is the slot optimization surface
type SlottingUseCases interface {
	RunOptimization(ctx context.Context, cmd application.RunSlotOptimizationCommand) (*application.SlotOptimizationResultDTO, error)
	ListSlotScores(ctx context.Context, query application.ListSlotScoresQuery) ([]application.SlotScoreDTO, error)
}

// SchedulerControl starts and stops recurring optimization
type SchedulerControl interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// Services groups the use cases served over HTTP. Scheduler may be nil.
type Services struct {
	Waves     WaveUseCases
	Dispatch  DispatchUseCases
	Execution ExecutionUseCases
	Tasks     TaskUseCases
	Locations LocationUseCases
	Slotting  SlottingUseCases
	Scheduler SchedulerControl
}

// Handlers contains the HTTP handlers of the engine
type Handlers struct {
	services Services
	logger   *logging.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(services Services, logger *logging.Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

func (h *Handlers) responder(c *gin.Context) *middleware.ErrorResponder {
	return middleware.NewErrorResponder(c, h.logger.Logger)
}

// bind decodes and validates a JSON body, answering 400 on failure
func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if appErr := middleware.BindAndValidate(c, req); appErr != nil {
		h.responder(c).RespondWithAppError(appErr)
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be omitted
func (h *Handlers) bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		if appErr := middleware.ValidateStruct(req); appErr != nil {
			h.responder(c).RespondWithAppError(appErr)
			return false
		}
		return true
	}
	return h.bind(c, req)
}

// fail renders err and records it on the request span
func (h *Handlers) fail(c *gin.Context, err error) {
	middleware.SetSpanError(c, err)
	h.responder(c).RespondWithError(err)
}

// queryList accepts repeated and comma separated values
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// queryLimit parses ?limit, answering 400 when it is not a positive integer
func (h *Handlers) queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.responder(c).RespondValidationError("invalid query parameters", map[string]string{
			"limit": "must be a positive integer",
		})
		return 0, false
	}
	return limit, true
}

func ok(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}
