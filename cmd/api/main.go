package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/wms-platform/task-engine/internal/api/http"
	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/bootstrap"
	"github.com/wms-platform/task-engine/internal/config"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	kafkaAdapter "github.com/wms-platform/task-engine/internal/infrastructure/kafka"
	"github.com/wms-platform/task-engine/internal/infrastructure/mqtt"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/outbox"
	"github.com/wms-platform/task-engine/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup enhanced logger
	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting task-engine API",
		"storage", cfg.Storage,
		"waveEvents", cfg.WaveEvents,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(config.ServiceName))
	logger.Info("Metrics initialized")

	mapper := eventing.NewMapper(cloudevents.NewEventFactory(cloudevents.SourceTaskEngine))

	stores, err := bootstrap.OpenStores(ctx, cfg, mapper, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open stores")
		os.Exit(1)
	}
	defer stores.Close()

	// Task events reach the wave progress watcher in-process or through Kafka
	watcher := application.NewWaveProgressWatcher(stores.Waves.Waves, stores.Tasks, m, logger)
	events := application.NewEventDispatcher(logger)
	if cfg.WaveEvents == config.EventsInline {
		events.Register(watcher)
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaCreateTopics {
			if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, kafka.DefaultTopicConfigs()); err != nil {
				logger.WithError(err).Warn("Failed to ensure Kafka topics")
			}
		}

		producer, rawProducer := kafka.NewProductionProducer(cfg.Kafka, m, logger)
		defer rawProducer.Close()
		logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

		outboxPublisher := outbox.NewPublisher(stores.Outbox, producer, logger, m, outbox.DefaultPublisherConfig())
		if err := outboxPublisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer outboxPublisher.Stop()
		logger.Info("Outbox publisher started")

		if cfg.WaveEvents == config.EventsKafka {
			consumer := kafka.NewInstrumentedConsumer(kafka.NewConsumer(cfg.Kafka, logger.Logger), m, logger)
			kafkaAdapter.NewTaskEventConsumer(watcher, logger).Register(consumer)
			go func() {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.WithError(err).Error("Task event consumer stopped")
				}
			}()
			defer consumer.Close()
			logger.Info("Task event consumer started", "topic", kafka.Topics.TasksEvents)
		}
	} else {
		logger.Warn("Kafka disabled; outbox events stay unpublished")
	}

	settings := cfg.Engine
	locationService := application.NewWorkerLocationService(stores.Locations, logger)
	slotting := application.NewSlotOptimizationService(stores.Tasks, stores.Directory, stores.SlotScores,
		eventing.NewRecorder(mapper, stores.Outbox), m, logger, settings.Slotting)

	services := apihttp.Services{
		Waves:     application.NewWaveService(stores.Waves, stores.Orders, stores.Directory, events, m, logger, settings.Waves),
		Dispatch:  application.NewDispatchService(stores.Tasks, stores.Locations, events, m, logger, settings.Dispatch),
		Execution: application.NewExecutionService(stores.Tasks, stores.Waves.Picklists, stores.Locations, events, m, logger),
		Tasks:     application.NewTaskService(stores.Tasks, stores.Locations, events, m, logger),
		Locations: locationService,
		Slotting:  slotting,
	}

	// Initialize the in-process slot optimization scheduler
	var scheduler *application.SlotOptimizationScheduler
	if settings.Optimization.Interval > 0 {
		scheduler = application.NewSlotOptimizationScheduler(slotting, settings.Optimization.Warehouses,
			settings.Optimization.Interval, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start slot optimization scheduler")
		} else {
			logger.Info("Slot optimization scheduler started",
				"interval", settings.Optimization.Interval,
				"warehouses", settings.Optimization.Warehouses,
			)
		}
		services.Scheduler = scheduler
	} else {
		logger.Info("Slot optimization scheduler disabled")
	}

	// Handheld location feed
	if cfg.MQTTEnabled {
		subscriber := mqtt.NewLocationSubscriber(cfg.MQTT, locationService, logger)
		if err := subscriber.Start(); err != nil {
			logger.WithError(err).Error("Failed to start MQTT location subscriber")
		} else {
			defer subscriber.Stop()
			logger.Info("MQTT location subscriber started", "broker", cfg.MQTT.BrokerURL, "topic", mqtt.LocationTopic)
		}
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		ServiceName: config.ServiceName,
		Logger:      logger,
		Metrics:     m,
		Ready: func() error {
			readyCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return stores.Ready(readyCtx)
		},
	}, apihttp.NewHandlers(services, logger))

	// Start server
	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if scheduler != nil && scheduler.IsRunning() {
		scheduler.Stop()
		logger.Info("Slot optimization scheduler stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
