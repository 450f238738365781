package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/database"
	"github.com/stemsi/exstem-ingest/internal/handler"
	"github.com/stemsi/exstem-ingest/internal/logger"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/profile"
	"github.com/stemsi/exstem-ingest/internal/repository"
	"github.com/stemsi/exstem-ingest/internal/router"
	"github.com/stemsi/exstem-ingest/internal/service"
	"github.com/stemsi/exstem-ingest/internal/validator"
	"github.com/stemsi/exstem-ingest/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Ingest")

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

	// ─── Load Exam Profile Files ───────────────────────────────────────
	var files map[string]model.ExamProfile
	if cfg.ProfileDir != "" {
		files, err = profile.LoadDir(cfg.ProfileDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.ProfileDir).Msg("Failed to load exam profiles")
		}
		log.Info().Int("count", len(files)).Str("dir", cfg.ProfileDir).Msg("Exam profiles loaded")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	classRepo := repository.NewClassRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	importRepo := repository.NewImportRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	commitQueue := worker.NewCommitQueue(rdb)
	profileService := service.NewProfileService(files, examRepo, service.NewRedisProfileCache(rdb, 24*time.Hour), log)
	rosterCache := service.NewRedisRosterCache(rdb, cfg.Import.RosterCacheTTL)
	importService, err := service.NewImportService(cfg.Import, profileService, studentRepo, commitQueue, importRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize import service")
	}
	importService.WithRosterCache(rosterCache)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Import:  handler.NewImportHandler(importService, cfg.MaxUploadBytes, log),
		Profile: handler.NewProfileHandler(profileService, importRepo),
		Roster:  handler.NewRosterHandler(classRepo, studentRepo, rosterCache, log),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	commitWorker := worker.NewCommitWorker(commitQueue, importRepo, log)
	go commitWorker.Start(workerCtx)
	go importService.StartJanitor(workerCtx, time.Minute)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load stored exam profiles into Redis before accepting uploads.
	if err := profileService.PrewarmAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and let the commit queue drain.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
