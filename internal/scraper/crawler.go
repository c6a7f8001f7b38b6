package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/browser"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/ratelimit"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/retry"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

const initialMessage = "crawling..."

type CrawlerOptions struct {
	Launcher      Launcher
	Extractors    ExtractorFactory
	Fetcher       *DetailFetcher
	Results       ResultWriter
	Pacer         ratelimit.RateLimiter
	ListingPolicy retry.Policy
	Sink          ProductSink
	Metrics       *Metrics
	Logger        *slog.Logger
}

// CategoryCrawler runs one category crawl at a time on a single browser
// session. After every accepted product the whole result document is
// rewritten, so the file on disk always holds a consistent prefix of the run.
type CategoryCrawler struct {
	launcher      Launcher
	extractors    ExtractorFactory
	fetcher       *DetailFetcher
	results       ResultWriter
	pacer         ratelimit.RateLimiter
	listingPolicy retry.Policy
	sink          ProductSink
	metrics       *Metrics
	now           func() time.Time
	logger        *slog.Logger
}

func NewCategoryCrawler(opts CrawlerOptions) *CategoryCrawler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Extractors == nil {
		opts.Extractors = DefaultExtractors
	}
	if opts.Pacer == nil {
		opts.Pacer = ratelimit.NewPacer(time.Second, 2*time.Second)
	}
	opts.ListingPolicy.Logger = opts.Logger

	return &CategoryCrawler{
		launcher:      opts.Launcher,
		extractors:    opts.Extractors,
		fetcher:       opts.Fetcher,
		results:       opts.Results,
		pacer:         opts.Pacer,
		listingPolicy: opts.ListingPolicy,
		sink:          opts.Sink,
		metrics:       opts.Metrics,
		now:           time.Now,
		logger:        opts.Logger.With("component", "crawler"),
	}
}

// Crawl runs the full pipeline for c and returns the final document. Once
// the initial document has been written, a failure leaves the last written
// version in place.
func (cc *CategoryCrawler) Crawl(ctx context.Context, c *category.Category) (*storage.Document, error) {
	start := cc.now()
	log := cc.logger.With("category", c.Name, "run_id", uuid.NewString())

	doc, err := cc.crawl(ctx, c, log)
	if err != nil {
		cc.metrics.ObserveRun(c.Name, "failed", time.Since(start))
		log.Error("crawl failed", "error", err)
		return nil, err
	}

	cc.metrics.ObserveRun(c.Name, "success", time.Since(start))
	log.Info("crawl finished", "products", doc.Data.Total, "duration", time.Since(start))
	return doc, nil
}

func (cc *CategoryCrawler) crawl(ctx context.Context, c *category.Category, log *slog.Logger) (*storage.Document, error) {
	ex, err := cc.extractors(c)
	if err != nil {
		return nil, err
	}

	log.Info("launching browser")
	session, err := cc.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close browser session", "error", err)
		}
	}()

	rows, err := cc.fetchListing(ctx, session, ex, c, log)
	if err != nil {
		return nil, err
	}
	log.Info("listing fetched", "rows", len(rows))

	doc := storage.NewDocument(initialMessage, cc.now())
	if err := cc.results.Save(c.OutputFile, doc); err != nil {
		return nil, err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl interrupted after %d/%d products: %w", i, len(rows), err)
		}

		log.Info("crawling product", "index", i+1, "of", len(rows), "name", row.Name.String())

		detail, err := cc.fetcher.FetchWithRetry(ctx, session, ex, c, row.Link)
		switch {
		case errors.Is(err, ErrDetailUnavailable):
			log.Warn("skipping product, detail fetch failed", "link", row.Link, "error", err)
			cc.metrics.IncSkipped(c.Name, "fetch_failed")
		case err != nil:
			return nil, fmt.Errorf("crawl interrupted after %d/%d products: %w", i, len(rows), err)
		case c.Accepts(detail):
			product := &models.EnrichedProduct{ListingRecord: row, Detail: detail}
			doc.Append(product)
			doc.Message = fmt.Sprintf("Crawled %d/%d products", i+1, len(rows))
			if err := cc.results.Save(c.OutputFile, doc); err != nil {
				return nil, err
			}
			cc.metrics.IncAccepted(c.Name)
			cc.export(ctx, c, product, log)
		default:
			log.Info("skipping product without valid detail", "link", row.Link)
			cc.metrics.IncSkipped(c.Name, "invalid")
		}

		if err := cc.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("crawl interrupted after %d/%d products: %w", i+1, len(rows), err)
		}
	}

	doc.Finalize(fmt.Sprintf("Crawled successfully %d products", doc.Data.Total), cc.now())
	if err := cc.results.Save(c.OutputFile, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func (cc *CategoryCrawler) fetchListing(ctx context.Context, s browser.Session, ex PageExtractor, c *category.Category, log *slog.Logger) ([]models.ListingRecord, error) {
	log.Info("opening listing page", "url", c.ListingURL)

	rows, err := retry.Do(ctx, cc.listingPolicy, func(ctx context.Context) ([]models.ListingRecord, error) {
		err := s.Navigate(ctx, c.ListingURL, browser.NavigateOptions{
			WaitUntil: c.ListingWait,
			Timeout:   c.ListingTimeout,
			Settle:    c.ListingSettle,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
		}
		rows, err := ex.ExtractListing(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingUnavailable, err)
	}

	for i := range rows {
		rows[i].Normalize()
	}
	return rows, nil
}

func (cc *CategoryCrawler) export(ctx context.Context, c *category.Category, p *models.EnrichedProduct, log *slog.Logger) {
	if cc.sink == nil {
		return
	}
	if err := cc.sink.Export(ctx, c.Name, p); err != nil {
		cc.metrics.IncSinkError()
		log.Warn("failed to export product", "link", p.Link, "error", err)
	}
}
