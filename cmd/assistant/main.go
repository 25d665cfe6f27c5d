package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/agent"
	"github.com/ncaco/2026-idea-mvp-01/internal/config"
	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/handler"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/cache"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/client"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/history"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/llm"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/observability"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/resilience"
	"github.com/ncaco/2026-idea-mvp-01/internal/jobs"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"
	"github.com/ncaco/2026-idea-mvp-01/internal/service"

	"go.uber.org/zap"
)

const (
	serviceName          = "ledger-assistant"
	categoryCacheEntries = 1024
)

func main() {
	// --- Config (.env is loaded first for local development) ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, serviceName)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ledger_api_url", cfg.LedgerAPIURL),
		zap.String("llm_base_url", cfg.LLMBaseURL),
		zap.String("llm_model", cfg.LLMModel),
		zap.Duration("llm_timeout", cfg.LLMTimeout),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Bool("redis_history", cfg.RedisURL != ""),
		zap.Bool("optimize_context", cfg.OptimizeContext),
		zap.Bool("collect_concurrently", cfg.CollectConcurrently),
		zap.String("timezone", cfg.Timezone),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, serviceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	interactions, err := observability.NewInteractionLogger(cfg.InteractionLogPath)
	if err != nil {
		logger.Fatal("failed to open interaction log", zap.Error(err))
	}
	defer interactions.Sync()

	// --- Cache ---
	var categoryCache port.Cache[[]domain.Category]
	switch cfg.CacheBackend {
	case "ristretto":
		rc, err := cache.NewRistretto[[]domain.Category](cfg.CacheTTL, categoryCacheEntries)
		if err != nil {
			logger.Fatal("failed to create ristretto cache", zap.Error(err))
		}
		defer rc.Close()
		categoryCache = rc
	default:
		mc := cache.New[[]domain.Category](cfg.CacheTTL)
		defer mc.Close()
		categoryCache = mc
	}

	// --- Clients ---
	ledgerClient := client.NewLedgerClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.LedgerAPIURL,
		cfg.LedgerHealthURL,
		cfg.LedgerAPIToken,
		resilience.NewCircuitBreaker("ledger"),
		resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
	)
	chatModel := llm.NewChatModel(
		&http.Client{Timeout: cfg.LLMTimeout},
		llm.Config{
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			APIKey:      cfg.LLMAPIKey,
			Temperature: cfg.LLMTemperature,
		},
		resilience.NewCircuitBreaker("llm"),
		resilience.Config{
			MaxRetries:     cfg.LLMMaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
	)
	checkers := []port.HealthChecker{ledgerClient, chatModel}

	// --- Conversation history ---
	var store port.ConversationStore
	if cfg.RedisURL != "" {
		rdb, err := history.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		redisStore := history.NewRedisStore(rdb, cfg.HistoryTTL, cfg.HistoryMaxMessages, logger)
		store = redisStore
		checkers = append(checkers, redisStore)
		logger.Info("using redis conversation history")
	} else {
		store = history.NewMemoryStore(cfg.HistoryTTL, cfg.HistoryMaxMessages)
		logger.Info("using in-memory conversation history")
	}

	// --- Agent pipeline ---
	loc := cfg.Location()
	facade := agent.NewFacade(ledgerClient, categoryCache, metrics, logger)

	var optimizer *agent.Optimizer
	if cfg.OptimizeContext {
		optimizer = agent.NewOptimizer(chatModel, metrics)
	}
	clock := func() time.Time { return time.Now().In(loc) }

	pipeline, err := agent.NewPipeline(context.Background(),
		agent.NewAnalyzer(chatModel, metrics, logger),
		agent.NewCollector(agent.NewLedgerTools(facade, logger), metrics, logger,
			agent.WithConcurrentCollection(cfg.CollectConcurrently)),
		agent.NewContextBuilder(cfg.MaxContextRunes, optimizer, metrics, logger),
		agent.NewResponder(chatModel, metrics, logger),
		metrics,
		logger,
		agent.WithClock(clock),
	)
	if err != nil {
		logger.Fatal("failed to build agent pipeline", zap.Error(err))
	}

	// --- Background jobs ---
	refresher, err := jobs.NewCatalogRefresher(cfg.CatalogRefreshSchedule, loc, facade, logger)
	if err != nil {
		logger.Fatal("failed to schedule catalog refresh", zap.Error(err))
	}
	go refresher.Run(context.Background())
	refresher.Start()

	// --- Services ---
	assistantSvc := service.NewAssistant(pipeline, store, interactions, cfg.LLMModel, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(assistantSvc, checkers, clock, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	refresher.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
