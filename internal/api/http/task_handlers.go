package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/middleware"
)

type nextTaskRequest struct {
	WorkerID    string   `json:"workerId" binding:"required,safe_string"`
	WarehouseID string   `json:"warehouseId" binding:"omitempty,safe_string"`
	TaskTypes   []string `json:"taskTypes" binding:"omitempty,dive,task_type"`
	Equipment   string   `json:"equipment" binding:"omitempty,safe_string"`
	CurrentZone string   `json:"currentZone" binding:"omitempty,safe_string"`
	CurrentBin  string   `json:"currentBin" binding:"omitempty,bin_code"`
}

type createTaskRequest struct {
	WarehouseID       string     `json:"warehouseId" binding:"required,safe_string"`
	Type              string     `json:"type" binding:"required,task_type"`
	Priority          string     `json:"priority" binding:"omitempty,task_priority"`
	Zone              string     `json:"zone" binding:"omitempty,safe_string"`
	SourceBin         string     `json:"sourceBin" binding:"omitempty,bin_code"`
	DestinationBin    string     `json:"destinationBin" binding:"omitempty,bin_code"`
	ProductID         string     `json:"productId" binding:"required,safe_string"`
	VariantID         string     `json:"variantId" binding:"omitempty,safe_string"`
	Quantity          int        `json:"quantity" binding:"required,gt=0"`
	RequiredEquipment string     `json:"requiredEquipment" binding:"omitempty,safe_string"`
	DueAt             *time.Time `json:"dueAt"`
}

type startTaskRequest struct {
	WorkerID      string `json:"workerId" binding:"required,safe_string"`
	EquipmentType string `json:"equipmentType" binding:"omitempty,safe_string"`
	EquipmentID   string `json:"equipmentId" binding:"omitempty,safe_string"`
}

type completeTaskRequest struct {
	WorkerID          string `json:"workerId" binding:"required,safe_string"`
	QuantityCompleted int    `json:"quantityCompleted" binding:"gte=0"`
	QuantityException int    `json:"quantityException" binding:"gte=0"`
	DestinationBin    string `json:"destinationBin" binding:"omitempty,bin_code"`
	Notes             string `json:"notes" binding:"omitempty,safe_string,max=1000"`
}

type pauseTaskRequest struct {
	Reason string `json:"reason" binding:"required,safe_string,max=500"`
}

type resumeTaskRequest struct {
	WorkerID string `json:"workerId" binding:"required,safe_string"`
}

type cancelTaskRequest struct {
	Reason string `json:"reason" binding:"required,safe_string,max=500"`
}

// GetNextTask handles POST /api/v1/dispatch/next-task. An empty pool
// answers 200 with a null task.
func (h *Handlers) GetNextTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req nextTaskRequest
		if !h.bind(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"worker.id":    req.WorkerID,
			"warehouse.id": req.WarehouseID,
		})

		ctx := logging.ContextWithWorkerID(c.Request.Context(), req.WorkerID)
		result, err := h.services.Dispatch.GetNextTask(ctx, application.GetNextTaskCommand{
			WorkerID:    req.WorkerID,
			WarehouseID: req.WarehouseID,
			TaskTypes:   req.TaskTypes,
			Equipment:   req.Equipment,
			CurrentZone: req.CurrentZone,
			CurrentBin:  req.CurrentBin,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		if result.Task != nil {
			middleware.AddSpanAttributes(c, map[string]interface{}{
				"task.id":    result.Task.TaskID,
				"task.score": result.Score,
			})
		}
		ok(c, result)
	}
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTaskRequest
		if !h.bind(c, &req) {
			return
		}

		task, err := h.services.Tasks.CreateTask(c.Request.Context(), application.CreateTaskCommand{
			WarehouseID:       req.WarehouseID,
			Type:              req.Type,
			Priority:          req.Priority,
			Zone:              req.Zone,
			SourceBin:         req.SourceBin,
			DestinationBin:    req.DestinationBin,
			ProductID:         req.ProductID,
			VariantID:         req.VariantID,
			Quantity:          req.Quantity,
			RequiredEquipment: req.RequiredEquipment,
			DueAt:             req.DueAt,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, task)
	}
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, valid := h.queryLimit(c)
		if !valid {
			return
		}

		tasks, err := h.services.Tasks.ListTasks(c.Request.Context(), application.ListTasksQuery{
			WarehouseID: c.Query("warehouseId"),
			WaveID:      c.Query("waveId"),
			AssignedTo:  c.Query("assignedTo"),
			Statuses:    queryList(c, "status"),
			Types:       queryList(c, "type"),
			Limit:       limit,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, tasks)
	}
}

// GetTask handles GET /api/v1/tasks/:taskId
func (h *Handlers) GetTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := application.GetTaskQuery{TaskID: c.Param("taskId")}
		middleware.AddSpanAttributes(c, map[string]interface{}{"task.id": query.TaskID})

		task, err := h.services.Tasks.GetTask(c.Request.Context(), query)
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, task)
	}
}

// StartTask handles POST /api/v1/tasks/:taskId/start
func (h *Handlers) StartTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")

		var req startTaskRequest
		if !h.bind(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"task.id":   taskID,
			"worker.id": req.WorkerID,
		})

		task, err := h.services.Execution.StartTask(c.Request.Context(), application.StartTaskCommand{
			TaskID:        taskID,
			WorkerID:      req.WorkerID,
			EquipmentType: req.EquipmentType,
			EquipmentID:   req.EquipmentID,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, task)
	}
}

// CompleteTask handles POST /api/v1/tasks/:taskId/complete
func (h *Handlers) CompleteTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")

		var req completeTaskRequest
		if !h.bind(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"task.id":            taskID,
			"worker.id":          req.WorkerID,
			"task.quantityDone":  req.QuantityCompleted,
			"task.quantityShort": req.QuantityException,
		})

		task, err := h.services.Execution.CompleteTask(c.Request.Context(), application.CompleteTaskCommand{
			TaskID:            taskID,
			WorkerID:          req.WorkerID,
			QuantityCompleted: req.QuantityCompleted,
			QuantityException: req.QuantityException,
			DestinationBin:    req.DestinationBin,
			Notes:             req.Notes,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, task)
	}
}

// PauseTask handles POST /api/v1/tasks/:taskId/pause
func (h *Handlers) PauseTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")

		var req pauseTaskRequest
		if !h.bind(c, &req) {
			return
		}

		task, err := h.services.Execution.PauseTask(c.Request.Context(), application.PauseTaskCommand{
			TaskID: taskID,
			Reason: req.Reason,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, task)
	}
}

// ResumeTask handles POST /api/v1/tasks/:taskId/resume
func (h *Handlers) ResumeTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")

		var req resumeTaskRequest
		if !h.bind(c, &req) {
			return
		}

		task, err := h.services.Execution.ResumeTask(c.Request.Context(), application.ResumeTaskCommand{
			TaskID:   taskID,
			WorkerID: req.WorkerID,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, task)
	}
}

// CancelTask handles POST /api/v1/tasks/:taskId/cancel
func (h *Handlers) CancelTask() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")

		var req cancelTaskRequest
		if !h.bind(c, &req) {
			return
		}

		task, err := h.services.Tasks.CancelTask(c.Request.Context(), application.CancelTaskCommand{
			TaskID: taskID,
			Reason: req.Reason,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, task)
	}
}
