package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/searchhub/internal/ai"
	"github.com/baxromumarov/searchhub/internal/api"
	"github.com/baxromumarov/searchhub/internal/auth"
	"github.com/baxromumarov/searchhub/internal/cache"
	"github.com/baxromumarov/searchhub/internal/config"
	"github.com/baxromumarov/searchhub/internal/core"
	"github.com/baxromumarov/searchhub/internal/httpx"
	"github.com/baxromumarov/searchhub/internal/search"
	"github.com/baxromumarov/searchhub/internal/sources"
	"github.com/baxromumarov/searchhub/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg == nil {
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbStore, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	defer dbStore.Close()

	version, dirty, err := dbStore.RunMigrations()
	if err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "version", version, "dirty", dirty)

	var searchCache cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		searchCache = redisCache
	} else {
		logger.Warn("REDIS_URL not set, search caching disabled")
	}
	defer searchCache.Close()

	fetcher := httpx.NewCollyFetcher(cfg.UserAgent, httpx.WithTimeout(cfg.SourceTimeout), httpx.WithAttempts(cfg.FetchAttempts))
	client := httpx.NewPoliteClient(cfg.UserAgent, cfg.SourceTimeout)
	registry, err := sources.NewDefaultRegistry(fetcher, client)
	if err != nil {
		logger.Error("failed to load sources", "error", err)
		os.Exit(1)
	}
	for _, d := range registry.Describe() {
		logger.Debug("source registered", "name", d.Name, "vertical", d.Vertical, "kind", d.Kind)
	}

	searchService := search.NewService(registry, searchCache, dbStore, search.Options{
		CacheTTL:      cfg.CacheTTL,
		SourceTimeout: cfg.SourceTimeout,
		SearchTimeout: cfg.SearchTimeout,
		JobSimilarity: cfg.JobDedupSimilarity,
	}, logger)

	aiClient := ai.NewClient(cfg.AIProvider, cfg.GeminiAPIKey, logger)
	recommender := core.NewRecommenderService(aiClient, searchCache, logger)

	retention := core.NewRetentionService(dbStore, cfg.HistoryRetention, logger)
	retention.Start(ctx)

	var verifier auth.TokenVerifier = auth.Unconfigured{}
	if cfg.SupabaseURL != "" {
		verifier = auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey, searchCache, logger)
	} else {
		logger.Warn("SUPABASE_URL not set, authenticated routes will answer 503")
	}

	srv := api.NewServer(api.Deps{
		Search:      searchService,
		History:     dbStore,
		Recommender: recommender,
		Sources:     registry,
		Cache:       searchCache,
		Verifier:    verifier,
		IsAdmin:     cfg.IsAdmin,
		CORSOrigins: cfg.CORSOrigins,
		Version:     cfg.Version,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.SearchTimeout + 10*time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "version", cfg.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
