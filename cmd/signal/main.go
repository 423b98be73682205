package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"huddle/internal/core/ports"
	"huddle/internal/core/services"
	httphandlers "huddle/internal/handlers/http"
	infrabackup "huddle/internal/infrastructure/backup"
	"huddle/internal/infrastructure/middleware"
	"huddle/internal/infrastructure/monitoring"
	"huddle/internal/infrastructure/reliability"
	"huddle/internal/infrastructure/repositories"
	"huddle/internal/infrastructure/signal"
	"huddle/pkg/backup"
	"huddle/pkg/config"
	"huddle/pkg/logger"
	"huddle/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/huddle/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Repositories
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	// Conference store hardened with retries, a circuit breaker, and a
	// short-TTL read cache for the join path.
	conferenceStore := reliability.NewConferenceStoreWrapper(
		repoFactory.CreateConferenceRepository(),
		reliability.DefaultWrapperConfig(),
		log,
	)
	defer conferenceStore.Close()
	var conferenceRepo ports.ConferenceRepository = conferenceStore

	// Snapshot restore and scheduler
	var backupScheduler *infrabackup.Scheduler
	if cfg.Backup.Enabled {
		storage, err := backup.NewFileStorage(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to initialize snapshot storage", "error", err)
		}
		snapshots := backup.NewService(storage, version)

		restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 30*time.Second)
		restored, err := infrabackup.NewRestorer(snapshots, conferenceRepo, log).RestoreLatest(restoreCtx)
		cancelRestore()
		if err != nil {
			log.Errorw("failed to restore conference snapshot", "error", err)
		} else if restored > 0 {
			log.Infow("restored conferences from snapshot", "count", restored)
		}

		backupScheduler = infrabackup.NewScheduler(snapshots, conferenceRepo, infrabackup.Config{
			Interval:  cfg.Backup.Interval,
			Retention: cfg.Backup.Retention,
		}, log)
		go backupScheduler.Start(context.Background())
	}

	// Metrics
	var metrics ports.MetricsRecorder = ports.NopMetrics{}
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector(nil)
	}

	// Core services
	registry := services.NewRegistry(metrics)
	broadcaster := services.NewBroadcaster(signal.Encoders(), metrics, log)
	conferenceSync := services.NewConferenceSync(conferenceRepo, metrics, log)
	roomService := services.NewRoomService(registry, broadcaster, conferenceRepo, conferenceSync, metrics, log)

	var authService ports.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	}

	// Sweeper
	sweeper := services.NewSweeper(
		registry,
		roomService,
		broadcaster,
		conferenceSync,
		cfg.Rooms.SweepInterval,
		cfg.Rooms.RetentionWindow,
		metrics,
		log,
	)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sweeper.Start(sweepCtx)

	// Signaling transport
	relay := signal.NewRelay(registry, cfg.Signal.DropRelayCandidatesForMobile, metrics, log)
	wsServer := signal.NewServer(roomService, relay, authService, signal.ServerOptions{
		DesktopHeartbeatInterval: cfg.Signal.DesktopHeartbeatInterval,
		MobileHeartbeatInterval:  cfg.Signal.MobileHeartbeatInterval,
		WriteTimeout:             cfg.Signal.WriteTimeout,
		SendBufferSize:           cfg.Signal.SendBufferSize,
		MaxMessageSizeBytes:      cfg.Signal.MaxMessageSizeBytes,
		MessagesPerSecond:        cfg.RateLimiting.WebSocket.MessagesPerSecond,
		Burst:                    cfg.RateLimiting.WebSocket.Burst,
	}, metrics, log)

	// Health checks
	healthChecker := monitoring.NewHealthChecker(2 * time.Second)
	healthChecker.AddCheck("conference_store", repoFactory.HealthCheck)

	// HTTP API
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	api := router.Group("/api/v1")
	conferenceHandler := httphandlers.NewConferenceHandler(conferenceRepo, roomService)
	if authService != nil {
		httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL).SetupRoutes(api)
		secured := api.Group("", middleware.AuthMiddleware(authService))
		conferenceHandler.SetupRoutes(secured, middleware.AdminMiddleware())
	} else {
		conferenceHandler.SetupRoutes(api)
	}

	router.GET(cfg.Signal.Path, func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"rooms":     registry.Len(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting huddle signaling server",
			"address", cfg.Server.Address,
			"signal_path", cfg.Signal.Path,
			"auth_enabled", cfg.Auth.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down huddle signaling server...")

	// Stop the sweeper and notify every open connection before the listener
	// goes away, so peers can fail over cleanly.
	stopSweeper()
	if backupScheduler != nil {
		backupScheduler.Stop()
	}
	roomService.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("shutdown complete")
}
