package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halcyonops/intel-console/internal/command"
	"github.com/halcyonops/intel-console/internal/config"
	"github.com/halcyonops/intel-console/internal/database"
	"github.com/halcyonops/intel-console/internal/event"
	"github.com/halcyonops/intel-console/internal/handlers"
	"github.com/halcyonops/intel-console/internal/kafka"
	"github.com/halcyonops/intel-console/internal/metrics"
	"github.com/halcyonops/intel-console/internal/notification"
	"github.com/halcyonops/intel-console/internal/realtime"
	"github.com/halcyonops/intel-console/internal/scheduler"
	"github.com/halcyonops/intel-console/internal/session"
)

const (
	serviceName = "intel-console"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)
	logger.Info("Starting Intel Console Alerting Service",
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment)

	// Database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", "error", err)
		}
	}()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	alertRepo := database.NewAlertRepository(db, logger)

	// Event bus and command dispatch
	bus := event.NewBus()
	dispatcher := command.NewDispatcher()
	if err := command.NewHandlers(alertRepo, bus, logger).Register(dispatcher); err != nil {
		logger.Error("Failed to register command handlers", "error", err)
		os.Exit(1)
	}

	// Sessions
	sessions := session.NewRedisStore(cfg.Redis, logger)
	defer sessions.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sessions.Ping(ctx); err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// Outbound event consumers
	collector := metrics.NewCollector(logger, alertRepo, 30*time.Second)
	bus.Subscribe(collector.HandleEvent)

	hub := realtime.NewHub(logger)
	bus.Subscribe(hub.HandleEvent)

	notifier := notification.NewWebhookNotifier(cfg.Notifications.Webhook, logger)
	bus.Subscribe(notifier.HandleEvent)

	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg, logger)
		bus.Subscribe(producer.HandleEvent)
		consumer = kafka.NewConsumer(cfg, logger, dispatcher)
	}

	// Scheduler
	var taskScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		taskScheduler, err = scheduler.NewScheduler(cfg, logger, dispatcher, alertRepo)
		if err != nil {
			logger.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
		}
	}

	// HTTP
	httpHandlers := handlers.NewHTTPHandler(cfg, logger, dispatcher, sessions, alertRepo)
	httpRouter := mux.NewRouter()
	httpHandlers.RegisterRoutes(httpRouter)
	httpRouter.HandleFunc("/ws", hub.HandleWebSocket)
	httpRouter.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := collector.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("Metrics collector failed", "error", err)
			cancel()
		}
	}()

	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("Kafka consumer failed", "error", err)
				cancel()
			}
		}()
	}

	if taskScheduler != nil {
		taskScheduler.Start()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting HTTP server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Shutting down services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}

	if taskScheduler != nil {
		taskScheduler.Stop()
	}
	if consumer != nil {
		consumer.Stop()
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("Failed to close Kafka producer", "error", err)
		}
	}

	wg.Wait()
	logger.Info("Service shutdown complete")
}

// setupLogging configures structured logging
func setupLogging(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: cfg.Debug,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOptions)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOptions)
	}

	logger := slog.New(handler)
	logger = logger.With(
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment,
	)

	slog.SetDefault(logger)
	return logger
}
