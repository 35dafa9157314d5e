package application

import (
	"context"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
)

type stubWaveRepo struct {
	SaveFn         func(ctx context.Context, wave *domain.Wave) error
	FindByNumberFn func(ctx context.Context, waveNumber string) (*domain.Wave, error)
	FindFn         func(ctx context.Context, filter domain.WaveFilter) ([]*domain.Wave, error)
}

func (s *stubWaveRepo) Save(ctx context.Context, wave *domain.Wave) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, wave)
	}
	return nil
}

func (s *stubWaveRepo) FindByNumber(ctx context.Context, waveNumber string) (*domain.Wave, error) {
	if s.FindByNumberFn != nil {
		return s.FindByNumberFn(ctx, waveNumber)
	}
	return nil, nil
}

func (s *stubWaveRepo) Find(ctx context.Context, filter domain.WaveFilter) ([]*domain.Wave, error) {
	if s.FindFn != nil {
		return s.FindFn(ctx, filter)
	}
	return nil, nil
}

type stubTaskRepo struct {
	SaveFn                    func(ctx context.Context, task *domain.Task) error
	SaveAllFn                 func(ctx context.Context, tasks []*domain.Task) error
	ClaimFn                   func(ctx context.Context, task *domain.Task) error
	FindByIDFn                func(ctx context.Context, taskID string) (*domain.Task, error)
	FindFn                    func(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
	FindCandidatesFn          func(ctx context.Context, query domain.CandidateQuery) ([]*domain.Task, error)
	CountByWaveFn             func(ctx context.Context, waveID string, statuses []domain.TaskStatus) (int64, error)
	AggregateCompletedPicksFn func(ctx context.Context, warehouseID string, from, to time.Time) ([]domain.ProductPicks, error)
}

func (s *stubTaskRepo) Save(ctx context.Context, task *domain.Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}
	return nil
}

func (s *stubTaskRepo) SaveAll(ctx context.Context, tasks []*domain.Task) error {
	if s.SaveAllFn != nil {
		return s.SaveAllFn(ctx, tasks)
	}
	return nil
}

func (s *stubTaskRepo) Claim(ctx context.Context, task *domain.Task) error {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx, task)
	}
	return nil
}

func (s *stubTaskRepo) FindByID(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.FindByIDFn != nil {
		return s.FindByIDFn(ctx, taskID)
	}
	return nil, nil
}

func (s *stubTaskRepo) Find(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	if s.FindFn != nil {
		return s.FindFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubTaskRepo) FindCandidates(ctx context.Context, query domain.CandidateQuery) ([]*domain.Task, error) {
	if s.FindCandidatesFn != nil {
		return s.FindCandidatesFn(ctx, query)
	}
	return nil, nil
}

func (s *stubTaskRepo) CountByWave(ctx context.Context, waveID string, statuses []domain.TaskStatus) (int64, error) {
	if s.CountByWaveFn != nil {
		return s.CountByWaveFn(ctx, waveID, statuses)
	}
	return 0, nil
}

func (s *stubTaskRepo) AggregateCompletedPicks(ctx context.Context, warehouseID string, from, to time.Time) ([]domain.ProductPicks, error) {
	if s.AggregateCompletedPicksFn != nil {
		return s.AggregateCompletedPicksFn(ctx, warehouseID, from, to)
	}
	return nil, nil
}

type stubLocationStore struct {
	GetFn  func(ctx context.Context, workerID string) (*domain.WorkerLocation, error)
	SaveFn func(ctx context.Context, location *domain.WorkerLocation) error
}

func (s *stubLocationStore) Get(ctx context.Context, workerID string) (*domain.WorkerLocation, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, workerID)
	}
	return nil, nil
}

func (s *stubLocationStore) Save(ctx context.Context, location *domain.WorkerLocation) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, location)
	}
	return nil
}

type recordingHandler struct {
	events []domain.DomainEvent
	err    error
}

func (h *recordingHandler) HandleTaskEvent(_ context.Context, event domain.DomainEvent) error {
	h.events = append(h.events, event)
	return h.err
}
