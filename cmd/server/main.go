package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/stemsi/handgame-backend/internal/client"
	"github.com/stemsi/handgame-backend/internal/config"
	"github.com/stemsi/handgame-backend/internal/database"
	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/handler"
	"github.com/stemsi/handgame-backend/internal/logger"
	"github.com/stemsi/handgame-backend/internal/metrics"
	"github.com/stemsi/handgame-backend/internal/repository"
	"github.com/stemsi/handgame-backend/internal/router"
	"github.com/stemsi/handgame-backend/internal/service"
	"github.com/stemsi/handgame-backend/internal/validator"
	"github.com/stemsi/handgame-backend/internal/worker"
)

// riddleBackend is what the session service needs from the riddle service.
type riddleBackend interface {
	game.RiddleSource
	service.VideoSource
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Handgame Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Metrics ───────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ─── Upstream Clients ──────────────────────────────────────────────
	riddles := newRiddleBackend(cfg, log)
	judge := client.NewJudgeClient(cfg.JudgeAPIURL, cfg.UpstreamTimeout, nil)

	// ─── Initialize Repositories ───────────────────────────────────────
	resultRepo := repository.NewGameResultRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	store := service.NewRedisSessionStore(rdb, cfg.SessionSnapshotTTL)
	sessionService := service.NewSessionService(riddles, riddles, judge, store, m, service.SessionOptions{
		Game: game.Options{
			TotalQuestion:     cfg.QuestionCount,
			CountdownDuration: cfg.CountdownDuration,
			CelebrationWindow: cfg.CelebrationWindow,
			RequestTimeout:    cfg.UpstreamTimeout,
		},
		FrameMaxAge: cfg.FrameMaxAge,
		IdleTimeout: cfg.SessionIdleTimeout,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService),
		Word:    handler.NewWordHandler(sessionService),
		Result:  handler.NewResultHandler(resultRepo, log),
		WS:      handler.NewWSHandler(sessionService, cfg.MaxFrameBytes, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(pool, rdb, sessionService, log),
		Metrics: m.Handler(),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
	wg.Add(2)
	go func() {
		defer wg.Done()
		resultWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		sessionService.Run(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked
	// WebSocket connections are not tracked by Shutdown; they end when
	// their sessions are shut down below.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop live sessions and the result worker, waiting for the queue to drain.
	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// newRiddleBackend serves riddles from the YAML fixture when one is
// configured, otherwise from the riddle service.
func newRiddleBackend(cfg *config.Config, log zerolog.Logger) riddleBackend {
	if cfg.RiddleFixturePath != "" {
		fixture, err := client.LoadFixtureSource(cfg.RiddleFixturePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.RiddleFixturePath).Msg("Failed to load riddle fixture")
		}
		log.Warn().Str("path", cfg.RiddleFixturePath).Msg("Serving riddles from fixture")
		return fixture
	}
	return client.NewRiddleClient(cfg.RiddleAPIURL, cfg.UpstreamTimeout, nil)
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
