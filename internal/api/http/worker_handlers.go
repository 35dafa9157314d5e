package http

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/internal/application"
)

type updateLocationRequest struct {
	WarehouseID string `json:"warehouseId" binding:"omitempty,safe_string"`
	Zone        string `json:"zone" binding:"omitempty,safe_string"`
	Bin         string `json:"bin" binding:"omitempty,bin_code"`
}

// UpdateWorkerLocation handles PUT /api/v1/workers/:workerId/location
func (h *Handlers) UpdateWorkerLocation() gin.HandlerFunc {
	return func(c *gin.Context) {
		workerID := c.Param("workerId")

		var req updateLocationRequest
		if !h.bind(c, &req) {
			return
		}

		location, err := h.services.Locations.UpdateLocation(c.Request.Context(), application.UpdateWorkerLocationCommand{
			WorkerID:    workerID,
			WarehouseID: req.WarehouseID,
			Zone:        req.Zone,
			Bin:         req.Bin,
		})
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, location)
	}
}

// GetWorkerLocation handles GET /api/v1/workers/:workerId/location
func (h *Handlers) GetWorkerLocation() gin.HandlerFunc {
	return func(c *gin.Context) {
		location, err := h.services.Locations.GetLocation(c.Request.Context(), c.Param("workerId"))
		if err != nil {
			h.fail(c, err)
			return
		}

		ok(c, location)
	}
}
