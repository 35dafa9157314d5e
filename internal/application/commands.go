package application

import "time"

// CreateWaveCommand represents the command to create a wave
type CreateWaveCommand struct {
	WarehouseID      string
	CarrierID        string
	CutoffAt         *time.Time
	Zones            []string
	Channels         []string
	CustomerTypes    []string
	MinPriority      int
	MaxPriority      int
	RouteOptimize    bool
	ZoneGrouping     bool
	MaxPicksPerTrip  int
	MaxWeightPerTrip float64
	AutoSelectOrders bool
	OrderIDs         []string
	AutoRelease      bool
	PickerIDs        []string
	CreatedBy        string
}

// ReleaseWaveCommand represents the command to release a wave into tasks
type ReleaseWaveCommand struct {
	WaveNumber string
	PickerIDs  []string
}

// CancelWaveCommand represents the command to cancel a wave
type CancelWaveCommand struct {
	WaveNumber string
	Reason     string
	Policy     string
}

// CompleteWaveCommand represents the command to mark a wave completed
type CompleteWaveCommand struct {
	WaveNumber string
}

// GetWaveQuery represents the query to get a wave by number
type GetWaveQuery struct {
	WaveNumber string
}

// ListWavesQuery represents the query to list waves
type ListWavesQuery struct {
	WarehouseID string
	Status      string
	Limit       int
}

// GetNextTaskCommand represents a worker asking for its next task
type GetNextTaskCommand struct {
	WorkerID    string
	WarehouseID string
	TaskTypes   []string
	Equipment   string
	CurrentZone string
	CurrentBin  string
}

// StartTaskCommand represents the command to start a task
type StartTaskCommand struct {
	TaskID        string
	WorkerID      string
	EquipmentType string
	EquipmentID   string
}

// CompleteTaskCommand represents the command to complete a task
type CompleteTaskCommand struct {
	TaskID            string
	WorkerID          string
	QuantityCompleted int
	QuantityException int
	DestinationBin    string
	Notes             string
}

// PauseTaskCommand represents the command to pause a task
type PauseTaskCommand struct {
	TaskID string
	Reason string
}

// ResumeTaskCommand represents the command to resume a paused task
type ResumeTaskCommand struct {
	TaskID   string
	WorkerID string
}

// CancelTaskCommand represents the command to cancel a single task
type CancelTaskCommand struct {
	TaskID string
	Reason string
}

// CreateTaskCommand represents the command to create an ad hoc task
type CreateTaskCommand struct {
	WarehouseID       string
	Type              string
	Priority          string
	Zone              string
	SourceBin         string
	DestinationBin    string
	ProductID         string
	VariantID         string
	Quantity          int
	RequiredEquipment string
	DueAt             *time.Time
}

// GetTaskQuery represents the query to get a task by ID
type GetTaskQuery struct {
	TaskID string
}

// ListTasksQuery represents the query to list tasks
type ListTasksQuery struct {
	WarehouseID string
	WaveID      string
	AssignedTo  string
	Statuses    []string
	Types       []string
	Limit       int
}

// UpdateWorkerLocationCommand records where a worker currently is
type UpdateWorkerLocationCommand struct {
	WorkerID    string
	WarehouseID string
	Zone        string
	Bin         string
}

// RunSlotOptimizationCommand represents a slot optimization run
type RunSlotOptimizationCommand struct {
	WarehouseID        string
	AnalysisWindowDays int
	MinPickThreshold   *int // nil applies the configured minimum
	ThresholdA         float64
	ThresholdB         float64
}

// ListSlotScoresQuery represents the query to list slot scores
type ListSlotScoresQuery struct {
	WarehouseID string
	Class       string
}
