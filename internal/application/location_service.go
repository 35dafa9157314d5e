package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
)

// WorkerLocationService maintains the worker location cache
type WorkerLocationService struct {
	locations domain.WorkerLocationStore
	logger    *logging.Logger
	now       func() time.Time
}

// NewWorkerLocationService creates a new WorkerLocationService
func NewWorkerLocationService(locations domain.WorkerLocationStore, logger *logging.Logger) *WorkerLocationService {
	return &WorkerLocationService{
		locations: locations,
		logger:    logger,
		now:       time.Now,
	}
}

// UpdateLocation records a worker's reported position
func (s *WorkerLocationService) UpdateLocation(ctx context.Context, cmd UpdateWorkerLocationCommand) (*WorkerLocationDTO, error) {
	if cmd.WorkerID == "" {
		return nil, errors.ErrValidation("workerId is required")
	}
	if cmd.Zone == "" && cmd.Bin == "" {
		return nil, errors.ErrValidation("zone or bin is required")
	}

	location, err := s.locations.Get(ctx, cmd.WorkerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read worker location", "workerId", cmd.WorkerID)
		return nil, fmt.Errorf("failed to read worker location: %w", err)
	}
	if location == nil {
		location = domain.NewWorkerLocation(cmd.WorkerID)
	}

	location.MoveTo(cmd.WarehouseID, cmd.Zone, cmd.Bin, s.now())
	if err := s.locations.Save(ctx, location); err != nil {
		s.logger.WithError(err).Error("Failed to save worker location", "workerId", cmd.WorkerID)
		return nil, fmt.Errorf("failed to save worker location: %w", err)
	}

	s.logger.Debug("Worker location updated", "workerId", cmd.WorkerID, "zone", location.Zone, "bin", location.Bin)
	return ToWorkerLocationDTO(location), nil
}

// GetLocation returns a worker's cached location
func (s *WorkerLocationService) GetLocation(ctx context.Context, workerID string) (*WorkerLocationDTO, error) {
	location, err := s.locations.Get(ctx, workerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read worker location", "workerId", workerID)
		return nil, fmt.Errorf("failed to read worker location: %w", err)
	}
	if location == nil {
		return nil, errors.ErrNotFoundWithID("worker location", workerID)
	}
	return ToWorkerLocationDTO(location), nil
}
