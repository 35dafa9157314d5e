package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/middleware"
)

type runOptimizationRequest struct {
	WarehouseID        string  `json:"warehouseId" binding:"required,safe_string"`
	AnalysisWindowDays int     `json:"analysisWindowDays" binding:"gte=0,lte=365"`
	MinPickThreshold   *int    `json:"minPickThreshold" binding:"omitempty,gte=0"`
	ThresholdA         float64 `json:"thresholdA" binding:"omitempty,abc_threshold"`
	ThresholdB         float64 `json:"thresholdB" binding:"omitempty,abc_threshold"`
}

// RunOptimization handles POST /api/v1/slotting/optimize
func (h *Handlers) RunOptimization() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runOptimizationRequest
		if !h.bind(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"warehouse.id":        req.WarehouseID,
			"slotting.windowDays": req.AnalysisWindowDays,
		})

		result, err := h.services.Slotting.RunOptimization(c.Request.Context(), application.RunSlotOptimizationCommand{
			WarehouseID:        req.WarehouseID,
			AnalysisWindowDays: req.AnalysisWindowDays,
			MinPickThreshold:   req.MinPickThreshold,
			ThresholdA:         req.ThresholdA,
			ThresholdB:         req.ThresholdB,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, result)
	}
}

// ListSlotScores handles GET /api/v1/slotting/scores
func (h *Handlers) ListSlotScores() gin.HandlerFunc {
	return func(c *gin.Context) {
		scores, err := h.services.Slotting.ListSlotScores(c.Request.Context(), application.ListSlotScoresQuery{
			WarehouseID: c.Query("warehouseId"),
			Class:       c.Query("class"),
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, scores)
	}
}

// SchedulerStatus handles GET /api/v1/slotting/scheduler
func (h *Handlers) SchedulerStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.services.Scheduler == nil {
			ok(c, gin.H{"enabled": false, "running": false})
			return
		}
		ok(c, gin.H{"enabled": true, "running": h.services.Scheduler.IsRunning()})
	}
}

// StartScheduler handles POST /api/v1/slotting/scheduler/start. The loop
// outlives the request, so it runs on a context detached from it.
func (h *Handlers) StartScheduler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.services.Scheduler == nil {
			h.responder(c).RespondBadRequest("slot optimization scheduler is not configured")
			return
		}
		if h.services.Scheduler.IsRunning() {
			ok(c, gin.H{"enabled": true, "running": true})
			return
		}
		if err := h.services.Scheduler.Start(context.WithoutCancel(c.Request.Context())); err != nil {
			h.fail(c, errors.ErrConflict(err.Error()).Wrap(err))
			return
		}
		h.logger.Info("Slot optimization scheduler started via API")
		ok(c, gin.H{"enabled": true, "running": true})
	}
}

// StopScheduler handles POST /api/v1/slotting/scheduler/stop
func (h *Handlers) StopScheduler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.services.Scheduler == nil {
			h.responder(c).RespondBadRequest("slot optimization scheduler is not configured")
			return
		}
		h.services.Scheduler.Stop()
		h.logger.Info("Slot optimization scheduler stopped via API")
		ok(c, gin.H{"enabled": true, "running": false})
	}
}
