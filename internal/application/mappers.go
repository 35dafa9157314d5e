package application

import "github.com/wms-platform/task-engine/internal/domain"

// ToWaveDTO converts a domain Wave to WaveDTO
func ToWaveDTO(wave *domain.Wave) *WaveDTO {
	if wave == nil {
		return nil
	}

	workers := make([]string, len(wave.AssignedWorkers))
	copy(workers, wave.AssignedWorkers)

	return &WaveDTO{
		WaveNumber:  wave.WaveNumber,
		WarehouseID: wave.WarehouseID,
		CarrierID:   wave.CarrierID,
		CutoffAt:    wave.CutoffAt,
		Status:      string(wave.Status),
		Filters: WaveFiltersDTO{
			Zones:         wave.Filters.Zones,
			Channels:      wave.Filters.Channels,
			CustomerTypes: wave.Filters.CustomerTypes,
			MinPriority:   wave.Filters.MinPriority,
			MaxPriority:   wave.Filters.MaxPriority,
		},
		Optimization: WaveOptimizationDTO{
			RouteOptimization: wave.Optimization.RouteOptimization,
			ZoneGrouping:      wave.Optimization.ZoneGrouping,
			MaxPicksPerTrip:   wave.Optimization.MaxPicksPerTrip,
			MaxWeightPerTrip:  wave.Optimization.MaxWeightPerTrip,
		},
		TotalOrders:     wave.TotalOrders,
		TotalPicklists:  wave.TotalPicklists,
		TotalItems:      wave.TotalItems,
		TotalTasks:      wave.TotalTasks,
		AssignedWorkers: workers,
		CancelReason:    wave.CancelReason,
		CreatedAt:       wave.CreatedAt,
		UpdatedAt:       wave.UpdatedAt,
		ReleasedAt:      wave.ReleasedAt,
		StartedAt:       wave.StartedAt,
		CompletedAt:     wave.CompletedAt,
		CancelledAt:     wave.CancelledAt,
	}
}

// ToWaveDTOs converts a slice of waves
func ToWaveDTOs(waves []*domain.Wave) []WaveDTO {
	dtos := make([]WaveDTO, 0, len(waves))
	for _, wave := range waves {
		dtos = append(dtos, *ToWaveDTO(wave))
	}
	return dtos
}

// ToTaskDTO converts a domain Task to TaskDTO
func ToTaskDTO(task *domain.Task) *TaskDTO {
	if task == nil {
		return nil
	}

	history := make([]TransitionDTO, 0, len(task.History))
	for _, t := range task.History {
		history = append(history, TransitionDTO{From: string(t.From), To: string(t.To), At: t.At})
	}

	dto := &TaskDTO{
		TaskID:             task.TaskID,
		WarehouseID:        task.WarehouseID,
		Type:               string(task.Type),
		Status:             string(task.Status),
		Priority:           string(task.Priority),
		Zone:               task.Zone,
		SourceBin:          task.SourceBin,
		DestinationBin:     task.DestinationBin,
		NeedsBinResolution: task.NeedsBinResolution,
		ProductID:          task.ProductID,
		VariantID:          task.VariantID,
		QuantityRequired:   task.QuantityRequired,
		QuantityCompleted:  task.QuantityCompleted,
		QuantityException:  task.QuantityException,
		RequiredEquipment:  task.RequiredEquipment,
		DueAt:              task.DueAt,
		AssignedTo:         task.AssignedTo,
		CompletedBy:        task.CompletedBy,
		AssignedAt:         task.AssignedAt,
		StartedAt:          task.StartedAt,
		PausedAt:           task.PausedAt,
		CompletedAt:        task.CompletedAt,
		CancelledAt:        task.CancelledAt,
		WaveID:             task.WaveID,
		PicklistID:         task.PicklistID,
		PicklistItemID:     task.PicklistItemID,
		Notes:              task.Notes,
		History:            history,
		CreatedAt:          task.CreatedAt,
		UpdatedAt:          task.UpdatedAt,
	}

	if task.Equipment != nil {
		dto.Equipment = &EquipmentDTO{Type: task.Equipment.Type, ID: task.Equipment.ID}
	}
	if task.Metrics != nil {
		dto.Metrics = &TaskMetricsDTO{
			TravelSeconds:    task.Metrics.TravelSeconds,
			ExecutionSeconds: task.Metrics.ExecutionSeconds,
			TotalSeconds:     task.Metrics.TotalSeconds,
		}
	}
	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []*domain.Task) []TaskDTO {
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, task := range tasks {
		dtos = append(dtos, *ToTaskDTO(task))
	}
	return dtos
}

// ToAlternativeTaskDTO converts a ranked runner-up
func ToAlternativeTaskDTO(scored domain.ScoredTask) AlternativeTaskDTO {
	return AlternativeTaskDTO{
		TaskID:    scored.Task.TaskID,
		Type:      string(scored.Task.Type),
		Priority:  string(scored.Task.Priority),
		SourceBin: scored.Task.SourceBin,
		Score:     scored.Score.Total,
	}
}

// ToTravelEstimateDTO converts a travel estimate
func ToTravelEstimateDTO(estimate domain.TravelEstimate) *TravelEstimateDTO {
	return &TravelEstimateDTO{
		Distance: estimate.Distance,
		Seconds:  estimate.Seconds,
		Minutes:  estimate.Minutes,
	}
}

// ToWorkerLocationDTO converts a worker location
func ToWorkerLocationDTO(location *domain.WorkerLocation) *WorkerLocationDTO {
	if location == nil {
		return nil
	}
	return &WorkerLocationDTO{
		WorkerID:            location.WorkerID,
		WarehouseID:         location.WarehouseID,
		Zone:                location.Zone,
		Bin:                 location.Bin,
		CurrentTaskID:       location.CurrentTaskID,
		TasksCompletedToday: location.TasksCompletedToday,
		ItemsCompletedToday: location.ItemsCompletedToday,
		UpdatedAt:           location.UpdatedAt,
	}
}

// ToRelocationDTO converts a flagged slot score into a relocation
func ToRelocationDTO(score *domain.SlotScore) *RelocationDTO {
	if score == nil || score.Relocation == nil {
		return nil
	}
	return &RelocationDTO{
		ProductID:  score.ProductID,
		VariantID:  score.VariantID,
		Class:      string(score.Class),
		CurrentBin: score.CurrentBin,
		Priority:   string(score.Relocation.Priority),
		Action:     string(score.Relocation.Action),
		Reason:     score.Relocation.Reason,
	}
}

// ToSlotScoreDTO converts a slot score
func ToSlotScoreDTO(score *domain.SlotScore) SlotScoreDTO {
	return SlotScoreDTO{
		WarehouseID:     score.WarehouseID,
		ProductID:       score.ProductID,
		VariantID:       score.VariantID,
		Class:           string(score.Class),
		PickCount:       score.PickCount,
		PickQuantity:    score.PickQuantity,
		VelocityScore:   score.VelocityScore,
		CurrentBin:      score.CurrentBin,
		NeedsRelocation: score.NeedsRelocation,
		Relocation:      ToRelocationDTO(score),
		WindowStart:     score.WindowStart,
		WindowEnd:       score.WindowEnd,
	}
}
