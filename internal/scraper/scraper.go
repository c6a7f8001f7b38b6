// Package scraper runs category crawls: it reads a listing page, fetches the
// detail page of every row through the cache, keeps the rows whose details
// pass the category gate and persists the result document as it grows.
package scraper

import (
	"context"
	"errors"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/browser"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/extract"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

var (
	ErrNavigation         = errors.New("navigation failed")
	ErrExtraction         = errors.New("extraction failed")
	ErrListingUnavailable = errors.New("listing page unavailable")
	ErrDetailUnavailable  = errors.New("product detail unavailable")
	ErrUnknownCategory    = category.ErrUnknownCategory
)

type Launcher interface {
	Launch(ctx context.Context) (browser.Session, error)
}

// PageExtractor reads structured records from the page currently loaded in
// a session.
type PageExtractor interface {
	ExtractListing(ctx context.Context, s browser.Session) ([]models.ListingRecord, error)
	ExtractDetail(ctx context.Context, s browser.Session) (*models.DetailRecord, error)
}

type ExtractorFactory func(c *category.Category) (PageExtractor, error)

// DefaultExtractors builds goquery extractors from category selectors.
func DefaultExtractors(c *category.Category) (PageExtractor, error) {
	return extract.New(c)
}

type DetailCache interface {
	LoadURL(url string, dst any) bool
	Save(key string, payload any) error
}

type ResultWriter interface {
	Save(file string, doc *storage.Document) error
}

type ResultReader interface {
	Load(file string) (*storage.Document, error)
}

// ProductSink receives every accepted product after it has been written to
// the result document.
type ProductSink interface {
	Export(ctx context.Context, category string, p *models.EnrichedProduct) error
}
