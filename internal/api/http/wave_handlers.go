package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/pkg/middleware"
)

type createWaveRequest struct {
	WarehouseID       string     `json:"warehouseId" binding:"required,safe_string"`
	CarrierID         string     `json:"carrierId" binding:"omitempty,safe_string"`
	CutoffAt          *time.Time `json:"cutoffAt"`
	Zones             []string   `json:"zones" binding:"omitempty,dive,required"`
	Channels          []string   `json:"channels" binding:"omitempty,dive,required"`
	CustomerTypes     []string   `json:"customerTypes" binding:"omitempty,dive,required"`
	MinPriority       int        `json:"minPriority" binding:"gte=0"`
	MaxPriority       int        `json:"maxPriority" binding:"gte=0"`
	RouteOptimization bool       `json:"routeOptimization"`
	ZoneGrouping      bool       `json:"zoneGrouping"`
	MaxPicksPerTrip   int        `json:"maxPicksPerTrip" binding:"gte=0"`
	MaxWeightPerTrip  float64    `json:"maxWeightPerTrip" binding:"gte=0"`
	AutoSelectOrders  bool       `json:"autoSelectOrders"`
	OrderIDs          []string   `json:"orderIds" binding:"omitempty,dive,required"`
	AutoRelease       bool       `json:"autoRelease"`
	PickerIDs         []string   `json:"pickerIds" binding:"omitempty,dive,required"`
	CreatedBy         string     `json:"createdBy" binding:"omitempty,safe_string"`
}

type releaseWaveRequest struct {
	PickerIDs []string `json:"pickerIds" binding:"omitempty,dive,required"`
}

type cancelWaveRequest struct {
	Reason string `json:"reason" binding:"required,safe_string"`
	Policy string `json:"policy" binding:"omitempty,oneof=let_finish force_cancel"`
}

// CreateWave handles POST /api/v1/waves
func (h *Handlers) CreateWave() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWaveRequest
		if !h.bind(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"warehouse.id":      req.WarehouseID,
			"wave.autoSelect":   req.AutoSelectOrders,
			"wave.requestedIds": len(req.OrderIDs),
		})

		result, err := h.services.Waves.CreateWave(c.Request.Context(), application.CreateWaveCommand{
			WarehouseID:      req.WarehouseID,
			CarrierID:        req.CarrierID,
			CutoffAt:         req.CutoffAt,
			Zones:            req.Zones,
			Channels:         req.Channels,
			CustomerTypes:    req.CustomerTypes,
			MinPriority:      req.MinPriority,
			MaxPriority:      req.MaxPriority,
			RouteOptimize:    req.RouteOptimization,
			ZoneGrouping:     req.ZoneGrouping,
			MaxPicksPerTrip:  req.MaxPicksPerTrip,
			MaxWeightPerTrip: req.MaxWeightPerTrip,
			AutoSelectOrders: req.AutoSelectOrders,
			OrderIDs:         req.OrderIDs,
			AutoRelease:      req.AutoRelease,
			PickerIDs:        req.PickerIDs,
			CreatedBy:        req.CreatedBy,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

// ListWaves handles GET /api/v1/waves
func (h *Handlers) ListWaves() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, valid := h.queryLimit(c)
		if !valid {
			return
		}

		waves, err := h.services.Waves.ListWaves(c.Request.Context(), application.ListWavesQuery{
			WarehouseID: c.Query("warehouseId"),
			Status:      c.Query("status"),
			Limit:       limit,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, waves)
	}
}

// GetWave handles GET /api/v1/waves/:waveNumber
func (h *Handlers) GetWave() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := application.GetWaveQuery{WaveNumber: c.Param("waveNumber")}
		middleware.AddSpanAttributes(c, map[string]interface{}{"wave.number": query.WaveNumber})

		wave, err := h.services.Waves.GetWave(c.Request.Context(), query)
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, wave)
	}
}

// ListWaveTasks handles GET /api/v1/waves/:waveNumber/tasks
func (h *Handlers) ListWaveTasks() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := application.GetWaveQuery{WaveNumber: c.Param("waveNumber")}

		tasks, err := h.services.Waves.ListWaveTasks(c.Request.Context(), query)
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, tasks)
	}
}

// ReleaseWave handles POST /api/v1/waves/:waveNumber/release
func (h *Handlers) ReleaseWave() gin.HandlerFunc {
	return func(c *gin.Context) {
		waveNumber := c.Param("waveNumber")

		var req releaseWaveRequest
		if !h.bindOptional(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"wave.number":  waveNumber,
			"wave.pickers": len(req.PickerIDs),
		})

		result, err := h.services.Waves.ReleaseWave(c.Request.Context(), application.ReleaseWaveCommand{
			WaveNumber: waveNumber,
			PickerIDs:  req.PickerIDs,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, result)
	}
}

// CancelWave handles POST /api/v1/waves/:waveNumber/cancel
func (h *Handlers) CancelWave() gin.HandlerFunc {
	return func(c *gin.Context) {
		waveNumber := c.Param("waveNumber")

		var req cancelWaveRequest
		if !h.bind(c, &req) {
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"wave.number":       waveNumber,
			"wave.cancelReason": req.Reason,
		})

		wave, err := h.services.Waves.CancelWave(c.Request.Context(), application.CancelWaveCommand{
			WaveNumber: waveNumber,
			Reason:     req.Reason,
			Policy:     req.Policy,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, wave)
	}
}

// CompleteWave handles POST /api/v1/waves/:waveNumber/complete
func (h *Handlers) CompleteWave() gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd := application.CompleteWaveCommand{WaveNumber: c.Param("waveNumber")}
		middleware.AddSpanAttributes(c, map[string]interface{}{"wave.number": cmd.WaveNumber})

		wave, err := h.services.Waves.CompleteWave(c.Request.Context(), cmd)
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, wave)
	}
}
