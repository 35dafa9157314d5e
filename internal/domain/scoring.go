package domain

import (
	"sort"
	"time"
)

// Scoring weights
const (
	PriorityWeight  = 0.4
	SLAWeight       = 0.3
	ProximityWeight = 0.3
)

// Component scores
const (
	sameZoneScore      = 100.0
	otherZoneScore     = 30.0
	unknownProximity   = 50.0
	defaultSLAScore    = 40.0
	overdueSLAScore    = 100.0
	withinHourSLAScore = 80.0
	withinTwoHoursSLA  = 60.0
)

// Score returns the priority component of the dispatch score
func (p TaskPriority) Score() float64 {
	switch p {
	case TaskPriorityUrgent:
		return 100
	case TaskPriorityHigh:
		return 75
	case TaskPriorityNormal:
		return 50
	case TaskPriorityLow:
		return 25
	default:
		return 50
	}
}

// SLAScore scores how close a task is to its deadline
func SLAScore(dueAt *time.Time, now time.Time) float64 {
	if dueAt == nil {
		return defaultSLAScore
	}
	remaining := dueAt.Sub(now)
	switch {
	case remaining < 0:
		return overdueSLAScore
	case remaining <= time.Hour:
		return withinHourSLAScore
	case remaining <= 2*time.Hour:
		return withinTwoHoursSLA
	default:
		return defaultSLAScore
	}
}

// WorkerPosition is where the dispatcher believes the worker is
type WorkerPosition struct {
	Zone string
	Bin  string
}

// ProximityScore scores how close a task is to the worker
func ProximityScore(task *Task, pos WorkerPosition) float64 {
	if pos.Zone != "" && task.Zone != "" {
		if pos.Zone == task.Zone {
			return sameZoneScore
		}
		return otherZoneScore
	}
	if pos.Bin != "" && task.SourceBin != "" {
		score := 100 - float64(BinDistance(pos.Bin, task.SourceBin))
		if score < 0 {
			return 0
		}
		return score
	}
	return unknownProximity
}

// TaskScore is the composite dispatch score of a candidate
type TaskScore struct {
	Total     float64 `json:"total"`
	Priority  float64 `json:"priority"`
	SLA       float64 `json:"sla"`
	Proximity float64 `json:"proximity"`
}

// ScoreTask computes 0.4*priority + 0.3*sla + 0.3*proximity
func ScoreTask(task *Task, pos WorkerPosition, now time.Time) TaskScore {
	s := TaskScore{
		Priority:  task.Priority.Score(),
		SLA:       SLAScore(task.DueAt, now),
		Proximity: ProximityScore(task, pos),
	}
	s.Total = PriorityWeight*s.Priority + SLAWeight*s.SLA + ProximityWeight*s.Proximity
	return s
}

// Reason names the weighted term contributing most to the score
func (s TaskScore) Reason(task *Task, now time.Time) string {
	priority := PriorityWeight * s.Priority
	sla := SLAWeight * s.SLA
	proximity := ProximityWeight * s.Proximity

	switch {
	case priority >= sla && priority >= proximity:
		return "Highest priority task (" + string(task.Priority) + ")"
	case sla >= proximity:
		if task.DueAt != nil && task.DueAt.Before(now) {
			return "Task is overdue"
		}
		return "Task due soon"
	default:
		return "Closest task to current location"
	}
}

// ScoredTask pairs a candidate with its score
type ScoredTask struct {
	Task  *Task
	Score TaskScore
}

// RankTasks scores candidates and sorts them best first. Equal scores keep
// the order the candidates were fetched in.
func RankTasks(candidates []*Task, pos WorkerPosition, now time.Time) []ScoredTask {
	ranked := make([]ScoredTask, 0, len(candidates))
	for _, task := range candidates {
		ranked = append(ranked, ScoredTask{Task: task, Score: ScoreTask(task, pos, now)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Total > ranked[j].Score.Total
	})
	return ranked
}
