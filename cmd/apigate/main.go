package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"apigate/internal/admin"
	"apigate/internal/config"
	"apigate/internal/db"
	"apigate/internal/gateway"
	"apigate/internal/limiter"
	"apigate/internal/logger"
	"apigate/internal/metrics"
	"apigate/internal/proxy"
	"apigate/internal/recorder"
	"apigate/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, warning, err := config.LoadConfig("config.yaml")
	if err != nil {
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}

	database, err := db.NewService(cfg.Database)
	if err != nil {
		log.Error("Error initializing database", "error", err)
		os.Exit(1)
	}
	log.Info("Database initialized", "type", cfg.Database.Type)

	metrics.Register()

	// With a Redis address configured the quota check is an atomic
	// increment-and-compare; otherwise usage rows are counted per request.
	var lim limiter.Limiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lim = limiter.NewRedisLimiter(client)
		log.Info("Rate limiter initialized", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		lim = limiter.NewStoreLimiter(database)
		log.Info("Rate limiter initialized", "backend", "store")
	}

	rec := recorder.New(database, log)

	fwd, err := proxy.New(rec, cfg.Upstream.BaseURL, cfg.Upstream.ParsedTimeout, log)
	if err != nil {
		log.Error("Error creating forwarder", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(database, *cfg.Retention.Days, log)
	if err := sched.Start(); err != nil {
		log.Error("Error starting scheduler", "error", err)
		os.Exit(1)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gateway.Recovery(log), gateway.CORS())
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", metrics.Handler())

	admin.SetupRoutes(router, database, cfg)
	gateway.Register(router, database, lim, fwd, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Port, "upstream", cfg.Upstream.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched.Stop()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Flush any queued usage records after in-flight requests finished.
	rec.Close()

	log.Info("Server exiting")
}
