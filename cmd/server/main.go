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

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"spamcheck-backend/internal/config"
	"spamcheck-backend/internal/controller"
	"spamcheck-backend/internal/database"
	"spamcheck-backend/internal/handlers"
	"spamcheck-backend/internal/middleware"
	"spamcheck-backend/internal/models"
	"spamcheck-backend/internal/repository"
	"spamcheck-backend/internal/router"
	"spamcheck-backend/internal/services"
	"spamcheck-backend/internal/websocket"
	"spamcheck-backend/internal/worker"
)

type checkLog interface {
	controller.Recorder
	handlers.StatsReader
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	setupLogging(cfg)
	log.Info("Starting spam check backend...")
	log.WithFields(log.Fields{
		"profile":    cfg.Profile,
		"endpoint":   cfg.PredictEndpoint,
		"min_length": cfg.MinLength,
	}).Info("Form profile resolved")

	// ──── Step 2: Check Log (PostgreSQL when configured) ────
	var checks checkLog = repository.NewMemoryCheckLog()
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		checks = repository.NewCheckRepo(pool)
		log.Info("PostgreSQL check log enabled")
	}

	// ──── Step 3: Prediction Client ────
	client, err := services.NewPredictionClient(cfg.PredictEndpoint, cfg.PredictTimeout, cfg.PredictConcurrency)
	if err != nil {
		log.Fatalf("Prediction client initialization failed: %v", err)
	}
	var predictor services.Predictor = client

	// ──── Step 4: Redis (cache, queue, pub/sub) ────
	var (
		queue  worker.Queue = worker.NewMemoryQueue(256)
		pubsub *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer redisClients.Close()

		predictor = services.NewCachedPredictor(client, redisClients.Main, cfg.CacheTTL)
		queue = worker.NewRedisQueue(redisClients.Main)
		pubsub = redisClients.PubSub
		log.Info("Redis cache, queue and pub/sub enabled")
	}

	// ──── Step 5: Sessions and WebSocket Hub ────
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.SessionTTL)
	sessionAuth.Secure = cfg.IsProduction()

	var registry *controller.Registry
	snapshot := func(sessionID uuid.UUID) (models.View, bool) {
		ctrl, ok := registry.Lookup(sessionID)
		if !ok {
			return models.View{}, false
		}
		return ctrl.View(), true
	}

	wsHub := websocket.NewHub(pubsub, sessionAuth, snapshot)

	renderer := controller.NewRenderer()
	registry = controller.NewRegistry(func(sessionID uuid.UUID) *controller.Controller {
		ctrl := controller.New(controller.Options{
			SessionID: sessionID,
			Endpoint:  cfg.PredictEndpoint,
			MinLength: cfg.MinLength,
			Predictor: predictor,
			Recorder:  checks,
			Renderer:  renderer,
		})
		ctrl.Observe(wsHub.Observer(sessionID))
		return ctrl
	})
	registry.StartSweeper(time.Minute, cfg.SessionIdleTimeout)

	// ──── Step 6: Start Worker Pool ────
	workerPool := worker.NewPool(queue, registry, predictor, cfg.WorkerCount)
	workerPool.Start()

	// ──── Step 7: Start HTTP Server ────
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
	r := router.New(
		sessionAuth,
		router.Handlers{
			Page:     handlers.NewPageHandler(registry),
			Checks:   handlers.NewCheckHandler(registry, workerPool),
			Upstream: handlers.NewUpstreamHandler(client, checks),
			Session:  handlers.NewSessionHandler(sessionAuth),
		},
		wsHub,
		limiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PredictTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Spam check backend ready on http://localhost:%s", cfg.Port)
		log.Infof("  API: http://localhost:%s/api/v1", cfg.Port)
		log.Infof("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Graceful shutdown
	workerPool.Stop()
	registry.Stop()
	wsHub.Close()
	limiter.Stop()

	if err != nil {
		log.WithError(err).Error("Server error")
		os.Exit(1)
	}
}
