package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/audifyhq/audify/internal/api"
	"github.com/audifyhq/audify/internal/config"
	"github.com/audifyhq/audify/internal/database"
	"github.com/audifyhq/audify/internal/extract"
	"github.com/audifyhq/audify/internal/ledger"
	"github.com/audifyhq/audify/internal/pipeline"
	"github.com/audifyhq/audify/internal/queue"
	"github.com/audifyhq/audify/internal/queue/workers"
	"github.com/audifyhq/audify/internal/runs"
	"github.com/audifyhq/audify/internal/storage"
	"github.com/audifyhq/audify/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	store := storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)
	lg := ledger.NewPostgres(db)
	coordinator := pipeline.NewCoordinator(
		extract.NewPDFExtractor(),
		api.NewSynthesizer(cfg.TTS),
		store,
		lg,
		pipeline.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			BaseBackoff: time.Duration(cfg.Pipeline.BaseBackoffMs) * time.Millisecond,
		},
	)
	runStore := runs.NewStore(rdb)
	dispatcher := webhook.NewDispatcher(db)
	webhookSvc := webhook.NewService(db, dispatcher)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One batch per task; per-page concurrency is bounded
			// inside the coordinator, so a single worker slot per
			// batch keeps total fan-out predictable.
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	audioWorker := workers.NewAudioWorker(coordinator, runStore, lg, webhookSvc)
	mux := queue.NewMux(asynq.HandlerFunc(audioWorker.ProcessTask))

	slog.Info("starting worker", "pipeline_concurrency", cfg.Pipeline.Concurrency)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
