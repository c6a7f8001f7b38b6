package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/browser"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/cache"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/retry"
)

// DetailFetcher loads product detail records, from the cache when possible
// and otherwise from the live page. Only records that pass the category
// gate are cached.
type DetailFetcher struct {
	cache   DetailCache
	policy  retry.Policy
	metrics *Metrics
	logger  *slog.Logger
}

func NewDetailFetcher(c DetailCache, policy retry.Policy, metrics *Metrics, logger *slog.Logger) *DetailFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	policy.Logger = logger
	return &DetailFetcher{
		cache:   c,
		policy:  policy,
		metrics: metrics,
		logger:  logger.With("component", "detail_fetcher"),
	}
}

// Fetch returns the detail record for url. A record that fails the gate
// yields (nil, nil). Navigation and extraction failures are returned so the
// caller can retry.
func (f *DetailFetcher) Fetch(ctx context.Context, s browser.Session, ex PageExtractor, c *category.Category, url string) (*models.DetailRecord, error) {
	if detail, ok := f.cached(url); ok {
		return detail, nil
	}
	return f.fetchLive(ctx, s, ex, c, url)
}

// FetchWithRetry looks url up in the cache once and retries only the live
// fetch. When every attempt fails it returns ErrDetailUnavailable; context
// cancellation is returned as is.
func (f *DetailFetcher) FetchWithRetry(ctx context.Context, s browser.Session, ex PageExtractor, c *category.Category, url string) (*models.DetailRecord, error) {
	if detail, ok := f.cached(url); ok {
		return detail, nil
	}

	attempts := 0
	detail, err := retry.Do(ctx, f.policy, func(ctx context.Context) (*models.DetailRecord, error) {
		attempts++
		return f.fetchLive(ctx, s, ex, c, url)
	})
	f.metrics.AddRetries(attempts - 1)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrDetailUnavailable, url, attempts, err)
	}

	return detail, nil
}

func (f *DetailFetcher) cached(url string) (*models.DetailRecord, bool) {
	var detail models.DetailRecord
	if !f.cache.LoadURL(url, &detail) {
		f.metrics.IncCache(false)
		return nil, false
	}
	f.metrics.IncCache(true)
	f.logger.Debug("using cached detail", "url", url)
	return &detail, true
}

func (f *DetailFetcher) fetchLive(ctx context.Context, s browser.Session, ex PageExtractor, c *category.Category, url string) (*models.DetailRecord, error) {
	f.logger.Info("crawling detail", "category", c.Name, "url", url)

	err := s.Navigate(ctx, url, browser.NavigateOptions{
		WaitUntil: c.DetailWait,
		Timeout:   c.DetailTimeout,
		Settle:    c.DetailSettle,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	detail, err := ex.ExtractDetail(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	if detail == nil {
		return nil, nil
	}

	detail.NormalizeSpecs()

	if !c.Accepts(detail) {
		f.logger.Info("detail has no usable fields", "url", url)
		return nil, nil
	}

	if err := f.cache.Save(cache.Key(url), detail); err != nil {
		f.logger.Warn("failed to cache detail", "url", url, "error", err)
	}

	return detail, nil
}
