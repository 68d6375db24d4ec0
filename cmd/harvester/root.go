package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/browser"
	"github.com/jobharvest/harvester/internal/config"
	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/extractor"
	"github.com/jobharvest/harvester/internal/monitoring"
	"github.com/jobharvest/harvester/internal/pipeline"
	"github.com/jobharvest/harvester/internal/proxy"
	"github.com/jobharvest/harvester/internal/relevance"
	"github.com/jobharvest/harvester/internal/sources"
	"github.com/jobharvest/harvester/internal/storage"
	"github.com/jobharvest/harvester/pkg/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "harvester",
	Short:        "Scrapes job boards and keeps the relevant postings",
	Long:         "harvester renders job board listings in headless Chrome, filters candidates by title and description relevance, and stores new postings in PostgreSQL.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: ./.env if present, then environment)")
}

// app bundles what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: log}, nil
}

// deps are the long-lived resources a scraping run uses.
type deps struct {
	pg           *storage.PostgresStore
	redis        *storage.RedisStore
	orchestrator *pipeline.Orchestrator
	sources      []domain.Source
}

func (d *deps) Close() {
	if d.pg != nil {
		d.pg.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

func (a *app) buildDeps(ctx context.Context, m *monitoring.Metrics) (*deps, error) {
	if err := a.cfg.ValidatePipeline(); err != nil {
		return nil, err
	}

	srcs, err := sources.Load(a.cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	pg, err := storage.NewPostgresStore(ctx, a.cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	d := &deps{
		pg:      pg,
		redis:   storage.NewRedisStore(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB),
		sources: srcs,
	}
	if err := d.redis.Ping(ctx); err != nil {
		a.logger.Warn("redis unreachable; embedding cache and run reports degrade", zap.Error(err))
	}

	profile := domain.NewKeywordProfile(a.cfg.JobTitles, a.cfg.Keywords)
	scorer := relevance.NewScorer(a.embedder(d.redis), profile)
	ext := extractor.New(extractor.DefaultRules, profile, a.cfg.MaxCandidates, a.logger)
	launcher := browser.NewChromeLauncher(browser.ChromeOptions{
		ExecPath:        a.cfg.ChromePath,
		Headless:        a.cfg.Headless,
		PageLoadTimeout: a.cfg.PageLoadTimeout,
	}, proxy.NewManager(a.cfg.Proxies, a.cfg.UserAgents), a.logger)

	d.orchestrator = pipeline.NewOrchestrator(pipeline.Options{
		Sources:     srcs,
		Concurrency: a.cfg.SourceConcurrency,
		Fetch: browser.FetchOptions{
			Backoff:   a.cfg.RetryBackoff,
			SettleMin: a.cfg.SettleMin,
			SettleMax: a.cfg.SettleMax,
		},
	}, launcher, ext, scorer, pg, m, a.logger)

	a.logger.Info("pipeline ready",
		zap.Int("sources", len(srcs)),
		zap.Strings("job_titles", profile.Titles),
		zap.Int("keywords", len(profile.Keywords)),
		zap.String("embedder", a.cfg.Embedder),
		zap.Int("concurrency", a.cfg.SourceConcurrency),
	)
	return d, nil
}

// embedder picks the configured backend. Remote embeddings are serialised and
// cached in Redis; the local hashing embedder is cheap enough to call directly.
func (a *app) embedder(cache relevance.EmbeddingCache) relevance.Embedder {
	if a.cfg.Embedder == "http" {
		httpClient := &http.Client{Timeout: 30 * time.Second}
		remote := relevance.NewSerialEmbedder(
			relevance.NewHTTPEmbedder(a.cfg.EmbeddingURL, a.cfg.EmbeddingAPIKey, a.cfg.EmbeddingModel, httpClient),
		)
		return relevance.NewCachedEmbedder(remote, cache, a.cfg.EmbeddingModel, a.cfg.EmbeddingCacheTTL, a.logger)
	}
	return relevance.NewHashingEmbedder(a.cfg.EmbeddingDim)
}
