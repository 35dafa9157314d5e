package application

import "time"

// WaveDTO represents a wave in responses
type WaveDTO struct {
	WaveNumber      string              `json:"waveNumber"`
	WarehouseID     string              `json:"warehouseId"`
	CarrierID       string              `json:"carrierId,omitempty"`
	CutoffAt        *time.Time          `json:"cutoffAt,omitempty"`
	Status          string              `json:"status"`
	Filters         WaveFiltersDTO      `json:"filters"`
	Optimization    WaveOptimizationDTO `json:"optimization"`
	TotalOrders     int                 `json:"totalOrders"`
	TotalPicklists  int                 `json:"totalPicklists"`
	TotalItems      int                 `json:"totalItems"`
	TotalTasks      int                 `json:"totalTasks"`
	AssignedWorkers []string            `json:"assignedWorkers"`
	CancelReason    string              `json:"cancelReason,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	ReleasedAt      *time.Time          `json:"releasedAt,omitempty"`
	StartedAt       *time.Time          `json:"startedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
}

// WaveFiltersDTO represents the order selection filters of a wave
type WaveFiltersDTO struct {
	Zones         []string `json:"zones,omitempty"`
	Channels      []string `json:"channels,omitempty"`
	CustomerTypes []string `json:"customerTypes,omitempty"`
	MinPriority   int      `json:"minPriority,omitempty"`
	MaxPriority   int      `json:"maxPriority,omitempty"`
}

// WaveOptimizationDTO represents the routing flags of a wave
type WaveOptimizationDTO struct {
	RouteOptimization bool    `json:"routeOptimization"`
	ZoneGrouping      bool    `json:"zoneGrouping"`
	MaxPicksPerTrip   int     `json:"maxPicksPerTrip,omitempty"`
	MaxWeightPerTrip  float64 `json:"maxWeightPerTrip,omitempty"`
}

// ReleaseResultDTO is the outcome of releasing a wave
type ReleaseResultDTO struct {
	WaveNumber       string    `json:"waveNumber"`
	PicklistsCreated int       `json:"picklistsCreated"`
	TasksCreated     int       `json:"tasksCreated"`
	PickersAssigned  int       `json:"pickersAssigned"`
	UnresolvedBins   int       `json:"unresolvedBins"`
	ReleasedAt       time.Time `json:"releasedAt"`
}

// CreateWaveResultDTO is the outcome of creating a wave
type CreateWaveResultDTO struct {
	Wave    *WaveDTO          `json:"wave"`
	Release *ReleaseResultDTO `json:"release,omitempty"`
}

// TaskDTO represents a task in responses
type TaskDTO struct {
	TaskID             string          `json:"taskId"`
	WarehouseID        string          `json:"warehouseId"`
	Type               string          `json:"type"`
	Status             string          `json:"status"`
	Priority           string          `json:"priority"`
	Zone               string          `json:"zone,omitempty"`
	SourceBin          string          `json:"sourceBin,omitempty"`
	DestinationBin     string          `json:"destinationBin,omitempty"`
	NeedsBinResolution bool            `json:"needsBinResolution"`
	ProductID          string          `json:"productId"`
	VariantID          string          `json:"variantId,omitempty"`
	QuantityRequired   int             `json:"quantityRequired"`
	QuantityCompleted  int             `json:"quantityCompleted"`
	QuantityException  int             `json:"quantityException"`
	RequiredEquipment  string          `json:"requiredEquipment,omitempty"`
	Equipment          *EquipmentDTO   `json:"equipment,omitempty"`
	DueAt              *time.Time      `json:"dueAt,omitempty"`
	AssignedTo         string          `json:"assignedTo,omitempty"`
	CompletedBy        string          `json:"completedBy,omitempty"`
	AssignedAt         *time.Time      `json:"assignedAt,omitempty"`
	StartedAt          *time.Time      `json:"startedAt,omitempty"`
	PausedAt           *time.Time      `json:"pausedAt,omitempty"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	Metrics            *TaskMetricsDTO `json:"metrics,omitempty"`
	WaveID             string          `json:"waveId,omitempty"`
	PicklistID         string          `json:"picklistId,omitempty"`
	PicklistItemID     string          `json:"picklistItemId,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	History            []TransitionDTO `json:"history"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// EquipmentDTO represents equipment bound to a task
type EquipmentDTO struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// TaskMetricsDTO represents the derived timings of a completed task
type TaskMetricsDTO struct {
	TravelSeconds    int64 `json:"travelSeconds"`
	ExecutionSeconds int64 `json:"executionSeconds"`
	TotalSeconds     int64 `json:"totalSeconds"`
}

// TransitionDTO represents one status change of a task
type TransitionDTO struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// AlternativeTaskDTO is a runner-up dispatch candidate
type AlternativeTaskDTO struct {
	TaskID    string  `json:"taskId"`
	Type      string  `json:"type"`
	Priority  string  `json:"priority"`
	SourceBin string  `json:"sourceBin,omitempty"`
	Score     float64 `json:"score"`
}

// TravelEstimateDTO is the advisory travel cost to a task
type TravelEstimateDTO struct {
	Distance int     `json:"distance"`
	Seconds  int     `json:"seconds"`
	Minutes  float64 `json:"minutes"`
}

// NextTaskDTO is the dispatch result. Task is nil when nothing is available.
type NextTaskDTO struct {
	Task           *TaskDTO             `json:"task"`
	Score          float64              `json:"score,omitempty"`
	Alternatives   []AlternativeTaskDTO `json:"alternatives"`
	TravelEstimate *TravelEstimateDTO   `json:"travelEstimate,omitempty"`
	Reason         string               `json:"reason"`
}

// WorkerLocationDTO represents a worker's cached location
type WorkerLocationDTO struct {
	WorkerID            string    `json:"workerId"`
	WarehouseID         string    `json:"warehouseId,omitempty"`
	Zone                string    `json:"zone,omitempty"`
	Bin                 string    `json:"bin,omitempty"`
	CurrentTaskID       string    `json:"currentTaskId,omitempty"`
	TasksCompletedToday int       `json:"tasksCompletedToday"`
	ItemsCompletedToday int       `json:"itemsCompletedToday"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RelocationDTO is a flagged relocation recommendation
type RelocationDTO struct {
	ProductID  string `json:"productId"`
	VariantID  string `json:"variantId,omitempty"`
	Class      string `json:"class"`
	CurrentBin string `json:"currentBin,omitempty"`
	Priority   string `json:"priority"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

// SlotOptimizationResultDTO is the outcome of an optimization run
type SlotOptimizationResultDTO struct {
	WarehouseID      string          `json:"warehouseId"`
	ClassCounts      map[string]int  `json:"classCounts"`
	ProductsAnalyzed int             `json:"productsAnalyzed"`
	Relocations      []RelocationDTO `json:"flaggedRelocations"`
	WindowStart      time.Time       `json:"windowStart"`
	WindowEnd        time.Time       `json:"windowEnd"`
}

// SlotScoreDTO represents a stored slot score
type SlotScoreDTO struct {
	WarehouseID     string         `json:"warehouseId"`
	ProductID       string         `json:"productId"`
	VariantID       string         `json:"variantId,omitempty"`
	Class           string         `json:"class"`
	PickCount       int            `json:"pickCount"`
	PickQuantity    int            `json:"pickQuantity"`
	VelocityScore   float64        `json:"velocityScore"`
	CurrentBin      string         `json:"currentBin,omitempty"`
	NeedsRelocation bool           `json:"needsRelocation"`
	Relocation      *RelocationDTO `json:"relocation,omitempty"`
	WindowStart     time.Time      `json:"windowStart"`
	WindowEnd       time.Time      `json:"windowEnd"`
}
