package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/parcelbrief/internal/app"
	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/database"
	"github.com/stwalsh4118/parcelbrief/internal/handlers"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/middleware"
)

const (
	shutdownTimeout = 30 * time.Second
	rateLimitWindow = time.Minute
	rateLimitPrefix = "parcelbrief:ratelimit:"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting parcelbrief API", map[string]interface{}{
		"version":         handlers.APIVersion,
		"environment":     cfg.Server.Env,
		"port":            cfg.Server.Port,
		"report_provider": cfg.Report.Provider,
		"history":         cfg.History.Enabled,
	})

	ctx := context.Background()
	components, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer components.Close()

	// Redis backs the rate limiter only; it is optional
	var counter middleware.Counter
	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", err, map[string]interface{}{
				"addr": cfg.Redis.Addr,
			})
		}
		defer closeRedis(rdb, log)

		counter = database.NewRedisCounter(rdb, rateLimitPrefix)
		log.Info("Redis connection established", map[string]interface{}{
			"addr":       cfg.Redis.Addr,
			"per_minute": cfg.RateLimit.PerMinute,
		})
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	var pinger handlers.Pinger
	if components.DB != nil {
		pinger = components.DB
	}
	healthHandler := handlers.NewHealthHandler(pinger, cfg.Server.Env, cfg.Report.Provider)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	analysisHandler := handlers.NewAnalysisHandler(components.Analysis, components.History)

	// Register API v1 routes; pipeline runs are tagged and rate limited
	v1 := router.Group("/api/v1")
	{
		limited := middleware.RateLimit(counter, cfg.RateLimit.PerMinute, rateLimitWindow, log)
		pipeline := middleware.Component("pipeline")

		v1.GET("/parcels/resolve", pipeline, limited, analysisHandler.Resolve)

		analyses := v1.Group("/analyses")
		{
			analyses.POST("", pipeline, limited, analysisHandler.Analyze)
			analyses.GET("/at-point", analysisHandler.AtPoint)
			analyses.GET("/nearby", analysisHandler.Nearby)
			analyses.GET("/:id", analysisHandler.Get)
			analyses.GET("/:id/facts.xlsx", analysisHandler.FactSheet)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

func closeRedis(rdb *redis.Client, log *logger.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn("Failed to close Redis client", map[string]interface{}{"error": err.Error()})
	}
}
