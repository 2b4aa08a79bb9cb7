package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/reflex/internal/api"
	"github.com/Harshitk-cp/reflex/internal/config"
	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/embedding"
	"github.com/Harshitk-cp/reflex/internal/llm"
	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	thoughts := store.NewThoughtStore()
	rules := store.NewRuleStore()

	snapshotCfg := store.InMemoryBadgerConfig()
	if dir := config.SnapshotDir(); dir != "" {
		snapshotCfg = store.DefaultBadgerConfig(dir)
	}
	snapshotCfg.Logger = logger
	snapshots, err := store.OpenBadgerSnapshotStore(snapshotCfg)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}

	persister := service.NewPersister(thoughts, rules, snapshots, logger)
	nThoughts, nRules, err := persister.Load(ctx)
	if err != nil {
		logger.Fatal("failed to restore snapshot", zap.Error(err))
	}
	logger.Info("state restored", zap.Int("thoughts", nThoughts), zap.Int("rules", nRules))

	if added := service.InstallBootstrapRules(rules); added > 0 {
		logger.Info("bootstrap rules installed", zap.Int("count", added))
	}

	var llmClient domain.LLMClient
	llmClient, err = llm.NewClient(config.LLMProvider(), config.LLMAPIKey())
	if err != nil {
		logger.Fatal("failed to create llm client", zap.Error(err))
	}
	if config.LLMProvider() != llm.ProviderMock {
		llmClient = llm.NewGuarded(llmClient, llm.GuardConfig{
			RPS:        config.LLMRateLimit(),
			Burst:      config.EngineMaxConcurrent(),
			Timeout:    config.LLMTimeout(),
			MaxRetries: config.LLMMaxRetries(),
		})
	}

	var memory service.MemoryBackend
	memoryService, pool, err := newMemoryService(ctx, logger)
	if err != nil {
		logger.Warn("long-term memory disabled", zap.Error(err))
	} else {
		memory = memoryService
	}
	if pool != nil {
		defer pool.Close()
	}

	engine := service.NewEngine(service.EngineConfig{
		MaxConcurrent: config.EngineMaxConcurrent(),
		BatchSize:     config.EngineBatchSize(),
		MaxRetries:    config.EngineMaxRetries(),
		TickInterval:  config.EngineTickInterval(),
		AgentName:     config.AgentName(),
	}, thoughts, rules, llmClient, memory, logger)

	broadcaster := service.NewDeltaBroadcaster(thoughts, rules, logger)
	broadcaster.Start()

	var watcher *service.RuleFileWatcher
	if path := config.RulesFile(); path != "" {
		watcher = service.NewRuleFileWatcher(path, rules, logger)
		if err := watcher.Start(); err != nil {
			logger.Fatal("failed to watch rules file", zap.String("path", path), zap.Error(err))
		}
	}

	persister.SetDebounce(config.PersistDebounce())
	persister.Start()

	if config.EngineAutostart() {
		if err := engine.Start(); err != nil {
			logger.Fatal("failed to start engine", zap.Error(err))
		}
	}

	app := api.NewApp(api.Options{
		Engine:         engine,
		Broadcaster:    broadcaster,
		Memory:         memory,
		APIToken:       config.APIToken(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, logger)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	engine.Close()
	if watcher != nil {
		watcher.Stop()
	}
	broadcaster.Stop()
	if err := persister.Stop(); err != nil {
		logger.Error("final snapshot failed", zap.Error(err))
	}
	if err := snapshots.Close(); err != nil {
		logger.Error("failed to close snapshot store", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newMemoryService picks pgvector when DATABASE_URL is set and an in-process
// index otherwise. The returned pool is nil without a database.
func newMemoryService(ctx context.Context, logger *zap.Logger) (*service.MemoryService, *pgxpool.Pool, error) {
	var opts []embedding.Option
	if model := config.EmbeddingModel(); model != "" {
		opts = append(opts, embedding.WithModel(model))
	}
	if dims := config.EmbeddingDimensions(); dims > 0 {
		opts = append(opts, embedding.WithDimensions(dims))
	}
	embedder, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey(), opts...)
	if err != nil {
		return nil, nil, err
	}

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return service.NewMemoryService(embedder, store.NewInMemoryVectorStore(), logger), nil, nil
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, err
	}
	pgStore := store.NewVectorMemoryStore(pool)
	if err := pgStore.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := pgStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("connected to database")

	return service.NewMemoryService(embedder, pgStore, logger), pool, nil
}
