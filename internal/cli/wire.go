package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"alsrag/config"
	"alsrag/internal/adapter/cache"
	"alsrag/internal/adapter/chunker"
	"alsrag/internal/adapter/crawler"
	"alsrag/internal/adapter/embedding"
	"alsrag/internal/adapter/llm"
	"alsrag/internal/adapter/memstore"
	"alsrag/internal/adapter/pgstore"
	"alsrag/internal/adapter/resilience"
	"alsrag/internal/adapter/store"
	"alsrag/internal/port"
	"alsrag/internal/usecase"
)

// app holds everything a command needs, built once from the config.
type app struct {
	deps    usecase.Deps
	llm     port.LLM
	chat    *resilience.Guard
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("failed to close resource", zap.Error(err))
		}
	}
}

func (a *app) retriever() *usecase.RetrieveUseCase {
	return usecase.NewRetrieveUseCase(a.deps, cfg.Retrieve.TopK, cfg.Retrieve.Source)
}

func (a *app) ingester(progress usecase.ProgressFunc) *usecase.IngestUseCase {
	return usecase.NewIngestUseCase(a.deps, usecase.IngestOptions{
		ChunkConcurrency: cfg.Ingest.ChunkConcurrency,
		ReplaceExisting:  cfg.Ingest.ReplaceExisting,
		Source:           cfg.Retrieve.Source,
		Progress:         progress,
	})
}

func (a *app) responder() *usecase.RespondUseCase {
	return usecase.NewRespondUseCase(a.retriever(), a.llm, a.chat, usecase.RespondOptions{
		MaxChars:     cfg.Agent.MaxChars,
		HistoryLimit: cfg.Agent.HistoryLimit,
	}, logger)
}

// buildApp validates the config and wires stores, model clients and guards.
func buildApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := &app{}

	embedder, err := newEmbedder(ctx, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.llm, err = newLLM()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.chat = resilience.NewGuard(guardConfig("chat"), metric, logger)
	embedGuard := resilience.NewGuard(guardConfig("embedding"), metric, logger)

	enricher := usecase.NewEnricher(a.llm, embedder, a.chat, embedGuard, usecase.EnrichOptions{
		TitlePrefixChars: cfg.Enrich.TitlePrefixChars,
		EmbedPrefixChars: cfg.Enrich.EmbedPrefixChars,
		MaxTokens:        cfg.Enrich.MaxTokens,
		Dimension:        cfg.Embedding.Dimension,
	}, logger, metric)

	st, err := openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if admin, ok := st.(port.StoreAdmin); ok {
		a.closers = append(a.closers, admin.Close)
	}

	a.deps = usecase.Deps{
		Store:    st,
		Chunker:  chunker.NewTextChunker(cfg.Index.ChunkSize),
		Fetcher:  crawler.NewHTTPFetcher(crawler.NewHTTPClient(cfg.Crawl.FetchTimeout), cfg.Crawl.UserAgent),
		Enricher: enricher,
		Logger:   logger,
		Metrics:  metric,
	}
	return a, nil
}

func guardConfig(name string) resilience.GuardConfig {
	return resilience.GuardConfig{
		Name:            name,
		RateLimit:       cfg.Enrich.RateLimit,
		MaxRetries:      cfg.Enrich.MaxRetries,
		InitialBackoff:  cfg.Enrich.RetryBackoff,
		BreakerFailures: cfg.Enrich.BreakerFailures,
		BreakerTimeout:  cfg.Enrich.BreakerTimeout,
	}
}

func newEmbedder(ctx context.Context, a *app) (port.Embedder, error) {
	var embedder port.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(cfg.APIKey(), cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimension, cfg.Embedding.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	switch cfg.Cache.Backend {
	case "memory", "":
		return cache.NewCachedEmbedder(embedder, cache.NewMemoryCache(cfg.Cache.MaxSize, cfg.Cache.TTL), metric), nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.KeyPrefix, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		return cache.NewCachedEmbedder(embedder, rc, metric), nil
	default:
		return embedder, nil
	}
}

func newLLM() (port.LLM, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return llm.NewClient(cfg.LLM.BaseURL, cfg.LLMAPIKey(), cfg.LLM.Model, cfg.LLM.Timeout), nil
	case "mock":
		return &llm.Mock{}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

func openStore(ctx context.Context) (port.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memstore.NewMemoryStore(), nil
	case "postgres":
		st, err := pgstore.Open(ctx, cfg.PostgresDSN(), cfg.Store.Table, cfg.Embedding.Dimension, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
		return st, nil
	default:
		st, err := openBoltStore()
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func openBoltStore() (*store.BoltStore, error) {
	dbPath := cfg.Store.Path
	if dbPath == "" {
		if err := config.EnsureDataDir(rootDir); err != nil {
			return nil, fmt.Errorf("failed to create .alsrag directory: %w", err)
		}
		dbPath = config.StoreDBPath(rootDir)
	} else if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(rootDir, dbPath)
	}

	st, err := store.NewBoltStore(dbPath, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild {
		fmt.Printf("Store rebuild required: %s\n", migration.Reason)
		fmt.Println("Clearing existing store...")
		if err := st.Clear(); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to clear store: %w", err)
		}
	}
	if migration.NeedsRebuild || migration.NeedsMigration {
		if err := st.Migrate(cfg); err != nil {
			st.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return st, nil
}

// buildFrontier assembles the discovery strategies in priority order.
func buildFrontier() (*crawler.Frontier, error) {
	client := crawler.NewHTTPClient(cfg.Crawl.FetchTimeout)
	ua := cfg.Crawl.UserAgent

	links, err := crawler.NewLinkStrategy(client, ua, cfg.Crawl.MaxDepth, cfg.Crawl.SkipGlobs, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid crawl.skip_globs: %w", err)
	}

	return crawler.NewFrontier([]port.DiscoveryStrategy{
		crawler.NewSitemapStrategy(client, ua, cfg.Crawl.SitemapPaths, logger),
		crawler.NewRobotsStrategy(client, ua, logger),
		links,
		crawler.NewStaticStrategy(cfg.Crawl.StaticURLs),
	}, logger, metric), nil
}

func filterConfig(seed string) crawler.FilterConfig {
	return crawler.FilterConfig{
		PriorityKeywords: cfg.Crawl.PriorityKeys,
		ExcludePatterns:  cfg.Crawl.ExcludePatterns,
		MainPages:        crawler.MainPageURLs(seed, cfg.Crawl.MainPages),
		MinKept:          cfg.Crawl.MinKept,
		MaxURLs:          cfg.Crawl.MaxURLs,
	}
}
