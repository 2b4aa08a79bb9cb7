package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/reflex/internal/api/handlers"
	mw "github.com/Harshitk-cp/reflex/internal/api/middleware"
	"github.com/Harshitk-cp/reflex/internal/buildconfig"
	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/embedding"
	"github.com/Harshitk-cp/reflex/internal/llm"
	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options carries the already-wired services the HTTP layer exposes.
type Options struct {
	Engine      *service.Engine
	Broadcaster *service.DeltaBroadcaster
	// Memory may be nil when no embedding provider is configured.
	Memory service.MemoryBackend

	APIToken       string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and request counters.
type App struct {
	Router       *chi.Mux
	engine       *service.Engine
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(opts Options, logger *zap.Logger) *App {
	thoughtHandler := handlers.NewThoughtHandler(opts.Engine)
	ruleHandler := handlers.NewRuleHandler(opts.Engine)
	engineHandler := handlers.NewEngineHandler(opts.Engine)
	memoryHandler := handlers.NewMemoryHandler(opts.Memory)
	streamHandler := handlers.NewStreamHandler(opts.Broadcaster, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		engine:    opts.Engine,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	if opts.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
	}

	// Unauthenticated
	r.Get("/health", app.healthHandler())
	r.Get("/stats", app.statsHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(opts.APIToken))

		r.Get("/stream", streamHandler.Serve)

		r.Route("/thoughts", func(r chi.Router) {
			r.Post("/", thoughtHandler.Create)
			r.Get("/", thoughtHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", thoughtHandler.GetByID)
				r.Delete("/", thoughtHandler.Delete)
				r.Get("/matches", thoughtHandler.Matches)
			})
		})

		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Post("/pause", engineHandler.PauseTask)
			r.Post("/resume", engineHandler.ResumeTask)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", ruleHandler.Create)
			r.Get("/", ruleHandler.List)
			r.Delete("/{id}", ruleHandler.Delete)
		})

		r.Route("/engine", func(r chi.Router) {
			r.Post("/start", engineHandler.Start)
			r.Post("/pause", engineHandler.Pause)
			r.Post("/step", engineHandler.Step)
			r.Get("/status", engineHandler.Status)
		})

		r.Post("/prompts/{id}/respond", engineHandler.Respond)

		r.Route("/memory", func(r chi.Router) {
			r.Post("/", memoryHandler.Create)
			r.Get("/search", memoryHandler.Search)
		})
	})

	return app
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"running": app.engine.Status().Running,
			"version": buildconfig.Version(),
		})
	}
}

func (app *App) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"engine":     app.engine.Status(),
			"go_version": runtime.Version(),
			"version":    buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.VectorStore     = (*store.VectorMemoryStore)(nil)
	_ domain.VectorStore     = (*store.InMemoryVectorStore)(nil)
	_ domain.SnapshotStore   = (*store.BadgerSnapshotStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
	_ domain.EmbeddingClient = (*embedding.CachedClient)(nil)
	_ domain.LLMClient       = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient       = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient       = (*llm.GeminiClient)(nil)
	_ domain.LLMClient       = (*llm.CerebrasClient)(nil)
	_ domain.LLMClient       = (*llm.MockClient)(nil)
	_ domain.LLMClient       = (*llm.Guarded)(nil)
	_ service.MemoryBackend  = (*service.MemoryService)(nil)
)
