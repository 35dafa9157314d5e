package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDispatch(t *testing.T) {
	m := New(DefaultConfig("task-engine"))

	m.RecordDispatch("assigned", 12, 3*time.Millisecond)
	m.RecordDispatch("assigned", 4, time.Millisecond)
	m.RecordDispatch("empty", 0, time.Millisecond)
	m.RecordClaimConflict()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchRequests.WithLabelValues("task-engine", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchRequests.WithLabelValues("task-engine", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimConflicts))
}

func TestRecordSlotOptimization(t *testing.T) {
	m := New(DefaultConfig("task-engine"))

	m.RecordSlotOptimization(true, map[string]int{"HIGH": 3, "MEDIUM": 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SlotOptimizationRuns.WithLabelValues("task-engine", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RelocationsFlagged.WithLabelValues("task-engine", "HIGH")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RelocationsFlagged.WithLabelValues("task-engine", "MEDIUM")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New(DefaultConfig("task-engine"))
	m.RecordTasksCreated("PICK", 6)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wms_tasks_created_total")
}
