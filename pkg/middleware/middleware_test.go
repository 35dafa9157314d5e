package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	router := gin.New()
	Setup(router, DefaultConfig("task-engine", logger))
	return router
}

func TestRequestAndCorrelationIDs(t *testing.T) {
	router := newTestRouter()

	var ctxCorrelation string
	router.GET("/ping", func(c *gin.Context) {
		ctxCorrelation = logging.CorrelationIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("propagates incoming headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		req.Header.Set(HeaderCorrelationID, "corr-1")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
		assert.Equal(t, "corr-1", rec.Header().Get(HeaderCorrelationID))
		assert.Equal(t, "corr-1", ctxCorrelation)
	})

	t.Run("generates missing ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
		assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
	})
}

func TestErrorResponderMapsAppErrors(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	router := newTestRouter()
	router.GET("/tasks/:id", func(c *gin.Context) {
		NewErrorResponder(c, logger).RespondWithError(errors.ErrOwnershipMismatch("task is assigned to another worker"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/T-1", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeOwnershipMismatch, body.Code)
	assert.Equal(t, "/tasks/T-1", body.Path)
	assert.NotEmpty(t, body.RequestID)
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	router := newTestRouter()
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), errors.CodeInternalError)
}

func TestContentTypeRejectsNonJSON(t *testing.T) {
	router := newTestRouter()
	router.POST("/waves", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/waves", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

type taskRequest struct {
	Type      string  `json:"type" binding:"required,task_type"`
	Priority  string  `json:"priority" binding:"omitempty,task_priority"`
	SourceBin string  `json:"sourceBin" binding:"omitempty,bin_code"`
	Threshold float64 `json:"threshold" binding:"omitempty,abc_threshold"`
}

func TestBindAndValidateCustomTags(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"valid", `{"type":"PUTAWAY","priority":"HIGH","sourceBin":"A1-B2-C3","threshold":0.8}`, http.StatusOK, ""},
		{"unknown task type", `{"type":"SHIP"}`, http.StatusBadRequest, "type"},
		{"unknown priority", `{"type":"PICK","priority":"ASAP"}`, http.StatusBadRequest, "priority"},
		{"malformed bin", `{"type":"PICK","sourceBin":"shelf 4"}`, http.StatusBadRequest, "sourceBin"},
		{"threshold above one", `{"type":"PICK","threshold":1.5}`, http.StatusBadRequest, "threshold"},
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	router := newTestRouter()
	router.POST("/tasks", func(c *gin.Context) {
		var req taskRequest
		if appErr := BindAndValidate(c, &req); appErr != nil {
			NewErrorResponder(c, logger).RespondWithAppError(appErr)
			return
		}
		c.Status(http.StatusOK)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantField != "" {
				var body APIErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Contains(t, body.Details, tt.wantField)
			}
		})
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig("task-engine"))
	router := gin.New()
	router.Use(MetricsMiddleware(m))
	router.GET("/api/v1/tasks/:taskId", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", MetricsEndpoint(m))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/tasks/T-1", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), `path="/api/v1/tasks/:taskId"`)
}
