package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestPriorityScore(t *testing.T) {
	assert.Equal(t, 100.0, TaskPriorityUrgent.Score())
	assert.Equal(t, 75.0, TaskPriorityHigh.Score())
	assert.Equal(t, 50.0, TaskPriorityNormal.Score())
	assert.Equal(t, 25.0, TaskPriorityLow.Score())
}

func TestSLAScore(t *testing.T) {
	tests := []struct {
		name     string
		dueAt    *time.Time
		expected float64
	}{
		{name: "no deadline", expected: 40},
		{name: "overdue", dueAt: timePtr(testNow.Add(-time.Minute)), expected: 100},
		{name: "due in 30m", dueAt: timePtr(testNow.Add(30 * time.Minute)), expected: 80},
		{name: "due in exactly 1h", dueAt: timePtr(testNow.Add(time.Hour)), expected: 80},
		{name: "due in 90m", dueAt: timePtr(testNow.Add(90 * time.Minute)), expected: 60},
		{name: "due in 5h", dueAt: timePtr(testNow.Add(5 * time.Hour)), expected: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SLAScore(tt.dueAt, testNow))
		})
	}
}

func TestProximityScore(t *testing.T) {
	tests := []struct {
		name     string
		task     *Task
		pos      WorkerPosition
		expected float64
	}{
		{name: "same zone", task: &Task{Zone: "Z1", SourceBin: "H9-R9"}, pos: WorkerPosition{Zone: "Z1"}, expected: 100},
		{name: "other zone", task: &Task{Zone: "Z2"}, pos: WorkerPosition{Zone: "Z1", Bin: "A1-B1"}, expected: 30},
		{name: "bin distance", task: &Task{SourceBin: "C1-B4"}, pos: WorkerPosition{Bin: "A1-B1"}, expected: 100 - 26},
		{name: "zone unknown on task falls back to bins", task: &Task{SourceBin: "A1-B1"}, pos: WorkerPosition{Zone: "Z1", Bin: "A1-B1"}, expected: 100},
		{name: "far bins clamp at zero", task: &Task{SourceBin: "Z1-B90"}, pos: WorkerPosition{Bin: "A1-B1"}, expected: 0},
		{name: "malformed bin uses default distance", task: &Task{SourceBin: "DOCK"}, pos: WorkerPosition{Bin: "A1-B1"}, expected: 50},
		{name: "nothing known", task: &Task{}, pos: WorkerPosition{}, expected: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProximityScore(tt.task, tt.pos))
		})
	}
}

func TestScoreTaskMaximum(t *testing.T) {
	task := &Task{TaskID: "T1", Priority: TaskPriorityUrgent, Zone: "Z1", DueAt: timePtr(testNow.Add(-time.Hour))}

	score := ScoreTask(task, WorkerPosition{Zone: "Z1"}, testNow)

	assert.InDelta(t, 100.0, score.Total, 1e-9)
	assert.Equal(t, TaskScore{Total: score.Total, Priority: 100, SLA: 100, Proximity: 100}, score)
}

func TestRankTasksPrefersUrgentOverdueSameZone(t *testing.T) {
	candidates := []*Task{
		{TaskID: "low-far", Priority: TaskPriorityLow, Zone: "Z9"},
		{TaskID: "high-other-zone", Priority: TaskPriorityHigh, Zone: "Z2", DueAt: timePtr(testNow.Add(30 * time.Minute))},
		{TaskID: "urgent", Priority: TaskPriorityUrgent, Zone: "Z1", DueAt: timePtr(testNow.Add(-time.Minute))},
		{TaskID: "normal-same-zone", Priority: TaskPriorityNormal, Zone: "Z1"},
	}

	ranked := RankTasks(candidates, WorkerPosition{Zone: "Z1"}, testNow)

	require.Len(t, ranked, 4)
	assert.Equal(t, "urgent", ranked[0].Task.TaskID)
	assert.InDelta(t, 100.0, ranked[0].Score.Total, 1e-9)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score.Total, ranked[i].Score.Total)
	}
}

func TestRankTasksIsStableOnTies(t *testing.T) {
	candidates := []*Task{
		{TaskID: "first", Priority: TaskPriorityNormal},
		{TaskID: "second", Priority: TaskPriorityNormal},
		{TaskID: "third", Priority: TaskPriorityNormal},
	}

	ranked := RankTasks(candidates, WorkerPosition{}, testNow)

	assert.Equal(t, "first", ranked[0].Task.TaskID)
	assert.Equal(t, "second", ranked[1].Task.TaskID)
	assert.Equal(t, "third", ranked[2].Task.TaskID)
}

func TestScoreReason(t *testing.T) {
	urgent := &Task{Priority: TaskPriorityUrgent}
	assert.Contains(t, ScoreTask(urgent, WorkerPosition{}, testNow).Reason(urgent, testNow), "priority")

	overdue := &Task{Priority: TaskPriorityLow, DueAt: timePtr(testNow.Add(-time.Minute))}
	assert.Equal(t, "Task is overdue", ScoreTask(overdue, WorkerPosition{}, testNow).Reason(overdue, testNow))

	near := &Task{Priority: TaskPriorityLow, Zone: "Z1"}
	assert.Equal(t, "Closest task to current location", ScoreTask(near, WorkerPosition{Zone: "Z1"}, testNow).Reason(near, testNow))
}
