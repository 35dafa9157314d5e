package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/api"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/middleware"
)

// RouterConfig holds what the router needs besides the handlers
type RouterConfig struct {
	ServiceName  string
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	AllowOrigins []string

	// Ready backs /ready; nil always reports ready
	Ready func() error
}

// NewRouter builds the gin engine with the standard middleware chain,
// operational endpoints and the API routes
func NewRouter(config RouterConfig, handlers *Handlers) *gin.Engine {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(config.ServiceName, config.Logger.Logger)
	if len(config.AllowOrigins) > 0 {
		middlewareConfig.AllowOrigins = config.AllowOrigins
	}
	middleware.Setup(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(config.Metrics))
	router.Use(middleware.SimpleTracingMiddleware(config.ServiceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())
	router.HandleMethodNotAllowed = true

	ready := config.Ready
	if ready == nil {
		ready = func() error { return nil }
	}
	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, ready))
	router.GET("/metrics", middleware.MetricsEndpoint(config.Metrics))
	router.GET("/api/openapi.yaml", contractDocument(api.OpenAPISpec))
	router.GET("/api/asyncapi.yaml", contractDocument(api.AsyncAPISpec))

	RegisterRoutes(router, handlers)
	return router
}

func contractDocument(doc []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", doc)
	}
}

// RegisterRoutes registers all engine routes
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	api := router.Group("/api/v1")

	waves := api.Group("/waves")
	{
		waves.POST("", handlers.CreateWave())
		waves.GET("", handlers.ListWaves())
		waves.GET("/:waveNumber", handlers.GetWave())
		waves.GET("/:waveNumber/tasks", handlers.ListWaveTasks())
		waves.POST("/:waveNumber/release", handlers.ReleaseWave())
		waves.POST("/:waveNumber/cancel", handlers.CancelWave())
		waves.POST("/:waveNumber/complete", handlers.CompleteWave())
	}

	api.POST("/dispatch/next-task", handlers.GetNextTask())

	tasks := api.Group("/tasks")
	{
		tasks.POST("", handlers.CreateTask())
		tasks.GET("", handlers.ListTasks())
		tasks.GET("/:taskId", handlers.GetTask())
		tasks.POST("/:taskId/start", handlers.StartTask())
		tasks.POST("/:taskId/complete", handlers.CompleteTask())
		tasks.POST("/:taskId/pause", handlers.PauseTask())
		tasks.POST("/:taskId/resume", handlers.ResumeTask())
		tasks.POST("/:taskId/cancel", handlers.CancelTask())
	}

	workers := api.Group("/workers")
	{
		workers.PUT("/:workerId/location", handlers.UpdateWorkerLocation())
		workers.GET("/:workerId/location", handlers.GetWorkerLocation())
	}

	slotting := api.Group("/slotting")
	{
		slotting.POST("/optimize", handlers.RunOptimization())
		slotting.GET("/scores", handlers.ListSlotScores())
		slotting.GET("/scheduler", handlers.SchedulerStatus())
		slotting.POST("/scheduler/start", handlers.StartScheduler())
		slotting.POST("/scheduler/stop", handlers.StopScheduler())
	}
}
