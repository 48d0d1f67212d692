package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/audifyhq/audify/internal/api/handlers"
	"github.com/audifyhq/audify/internal/api/middleware"
	"github.com/audifyhq/audify/internal/auth"
	"github.com/audifyhq/audify/internal/config"
	"github.com/audifyhq/audify/internal/extract"
	"github.com/audifyhq/audify/internal/ledger"
	"github.com/audifyhq/audify/internal/pipeline"
	"github.com/audifyhq/audify/internal/queue"
	"github.com/audifyhq/audify/internal/runs"
	"github.com/audifyhq/audify/internal/storage"
	"github.com/audifyhq/audify/internal/synth"
	"github.com/audifyhq/audify/internal/webhook"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Composition root: every external capability is constructed here
	// and injected, never reached through package globals.
	store := storage.NewSupabaseStore(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey, rt.cfg.Storage.Bucket)
	lg := ledger.NewPostgres(rt.db)
	coordinator := pipeline.NewCoordinator(
		extract.NewPDFExtractor(),
		NewSynthesizer(rt.cfg.TTS),
		store,
		lg,
		pipeline.Config{
			Concurrency: rt.cfg.Pipeline.Concurrency,
			MaxAttempts: rt.cfg.Pipeline.MaxAttempts,
			BaseBackoff: time.Duration(rt.cfg.Pipeline.BaseBackoffMs) * time.Millisecond,
		},
	)
	runStore := runs.NewStore(rt.redis)
	queueClient := queue.NewClient(rt.cfg.Redis)
	dispatcher := webhook.NewDispatcher(rt.db)
	webhookSvc := webhook.NewService(rt.db, dispatcher)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		docH := handlers.NewDocumentHandler(coordinator, lg, webhookSvc)
		audioH := handlers.NewAudioHandler(lg, runStore, queueClient)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Create)
			r.Get("/", docH.List)
			r.Delete("/{id}", docH.Delete)
			r.Post("/{id}/audio", audioH.Generate)
		})
		r.Get("/runs/{id}", audioH.RunStatus)

		webhookH := handlers.NewWebhookHandler(webhookSvc)
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", webhookH.Create)
			r.Get("/", webhookH.List)
			r.Delete("/{id}", webhookH.Delete)
		})
	})

	return r
}

// NewSynthesizer picks the speech backend from config.
func NewSynthesizer(cfg config.TTSConfig) synth.Synthesizer {
	if cfg.Backend == "local" {
		return synth.NewPiperSynthesizer(synth.PiperConfig{
			BinPath:   cfg.LocalBinPath,
			ModelPath: cfg.LocalModel,
		})
	}
	return synth.NewOpenAISynthesizer(synth.OpenAIConfig{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
}
