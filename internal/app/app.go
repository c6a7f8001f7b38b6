// Package app wires configuration into a ready crawl service, including the
// optional Postgres export and Redis relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/browser"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/cache"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/config"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/database"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/ratelimit"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/retry"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/scraper"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

type App struct {
	Service *scraper.Service
	Metrics *scraper.Metrics
	Relay   *database.Relay

	db     *database.DB
	redis  *redis.Client
	logger *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	registry, err := category.Load(cfg.Scraper.CategoriesFile)
	if err != nil {
		return nil, err
	}

	results, err := storage.NewResultStore(cfg.Scraper.OutputDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		Metrics: scraper.NewMetrics(),
		logger:  logger,
	}

	var sink scraper.ProductSink
	if cfg.Database.Enabled {
		exporter, err := a.connect(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		sink = exporter
	}

	fetcher := scraper.NewDetailFetcher(
		cache.New(cfg.Scraper.CacheFile, logger),
		Policy(cfg.Scraper.DetailRetries, cfg.Scraper.DetailRetryBase, cfg.Scraper.RetryJitter),
		a.Metrics,
		logger,
	)

	crawler := scraper.NewCategoryCrawler(scraper.CrawlerOptions{
		Launcher:      browser.NewLauncher(BrowserOptions(cfg.Browser), logger),
		Fetcher:       fetcher,
		Results:       results,
		Pacer:         ratelimit.NewPacer(cfg.Scraper.RequestDelayMin, cfg.Scraper.RequestDelayMax),
		ListingPolicy: Policy(cfg.Scraper.ListingRetries, cfg.Scraper.ListingRetryBase, cfg.Scraper.RetryJitter),
		Sink:          sink,
		Metrics:       a.Metrics,
		Logger:        logger,
	})

	a.Service = scraper.NewService(registry, crawler, results, logger)
	return a, nil
}

func (a *App) connect(ctx context.Context, cfg *config.Config) (*database.Exporter, error) {
	db, err := database.New(ctx, database.Config{DSN: cfg.Database.DSN(), MaxConns: 4})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		a.Relay = database.NewRelay(database.NewOutboxRepository(db), a.redis, a.logger, database.RelayConfig{
			PollInterval: cfg.Redis.RelayInterval,
			BatchSize:    cfg.Redis.RelayBatch,
		})
	}

	a.logger.Info("product export enabled", "database", cfg.Database.DBName, "relay", a.Relay != nil)
	return database.NewExporter(db, cfg.Redis.Stream, a.logger), nil
}

// StartRelay runs the outbox relay in the background until ctx is done.
// It is a no-op when the relay is disabled.
func (a *App) StartRelay(ctx context.Context) {
	if a.Relay == nil {
		return
	}
	go func() {
		if err := a.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("relay stopped with error", "error", err)
		}
	}()
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func Policy(attempts int, base, jitter time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   base,
		MaxJitter:   jitter,
	}
}

func BrowserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.Timeout = cfg.Timeout
	opts.UserAgent = cfg.UserAgent
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.Locale = cfg.Locale
	opts.TimezoneID = cfg.TimezoneID
	return opts
}
