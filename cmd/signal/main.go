package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/services"
	httphandlers "github.com/Suja2004/WebRTC/internal/handlers/http"
	"github.com/Suja2004/WebRTC/internal/infrastructure/middleware"
	"github.com/Suja2004/WebRTC/internal/infrastructure/monitoring"
	repositories "github.com/Suja2004/WebRTC/internal/infrastructure/repositories"
	"github.com/Suja2004/WebRTC/internal/infrastructure/signal"
	"github.com/Suja2004/WebRTC/pkg/config"
	"github.com/Suja2004/WebRTC/pkg/logger"
	"github.com/Suja2004/WebRTC/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/webrtc-signal/config.yaml",
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
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	// Tracing
	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			Enabled:     true,
			ServiceName: "webrtc-signal",
			JaegerURL:   cfg.Tracing.JaegerURL,
			Environment: cfg.Tracing.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			log.Warnw("failed to initialize tracing", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(ctx); err != nil {
					log.Errorw("failed to shut down tracer", "error", err)
				}
			}()
			log.Infow("tracing enabled", "jaeger_url", cfg.Tracing.JaegerURL)
		}
	}

	// Registry backend
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	registryService := services.NewRegistryService(repoFactory.CreateRegistryRepository())

	// Transport and relay. The connection table is the relay's sender;
	// both exist before the first connection is accepted.
	collector := monitoring.NewPrometheusCollector()
	connTable := signal.NewConnTable(cfg.Signal.WriteTimeout)
	relayService := services.NewRelayService(registryService, connTable, collector, log)

	var authService services.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		log.Info("guest token auth enabled")
	}

	wsOptions := signal.Options{
		PingInterval:   cfg.Signal.PingInterval,
		PongTimeout:    cfg.Signal.PongTimeout,
		WriteTimeout:   cfg.Signal.WriteTimeout,
		MaxMessageSize: cfg.Signal.MaxMessageSize,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		wsOptions.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		wsOptions.Burst = cfg.RateLimiting.WebSocket.Burst
	}

	wsServer := signal.NewWebSocketServer(
		relayService,
		registryService,
		connTable,
		authService,
		collector,
		wsOptions,
		log,
	)

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("registry", repoFactory.HealthCheck, 2*time.Second)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(logger.NewContextLogger(zapLogger)))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	if cfg.Auth.Enabled {
		tokenHandler := httphandlers.NewTokenHandler(authService, cfg.Auth.TokenTTL)
		tokenHandler.SetupRoutes(router, middleware.AuthMiddleware(authService))
	}

	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status.Status,
			"timestamp": status.Timestamp,
			"uptime":    time.Since(startTime).String(),
			"checks":    status.Checks,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"timestamp": time.Now(),
				"error":     err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Periodic room gauge refresh, on top of the per-event updates the
	// transport already does.
	statsDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Monitoring.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-statsDone:
				return
			case <-ticker.C:
				rooms, participants, err := registryService.Stats(context.Background())
				if err != nil {
					log.Warnw("failed to read registry stats", "error", err)
					continue
				}
				collector.RoomStats(rooms, participants)
			}
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting signaling server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down signaling server...")
	close(statsDone)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("Signaling server stopped")
}
