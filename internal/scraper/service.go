package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

// Crawler is what the service needs from CategoryCrawler.
type Crawler interface {
	Crawl(ctx context.Context, c *category.Category) (*storage.Document, error)
}

// Service is the entry point for callers. It runs at most one crawl at a
// time, since every run shares the cache file, and turns failures into
// failure documents.
type Service struct {
	mu       sync.Mutex
	registry *category.Registry
	crawler  Crawler
	results  ResultReader
	logger   *slog.Logger
}

func NewService(registry *category.Registry, crawler Crawler, results ResultReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		crawler:  crawler,
		results:  results,
		logger:   logger.With("component", "service"),
	}
}

// Crawl runs the named category. On failure it returns a failure document
// together with the error.
func (s *Service) Crawl(ctx context.Context, name string) (*storage.Document, error) {
	c, err := s.registry.Get(name)
	if err != nil {
		return storage.FailureDocument(fmt.Sprintf("Failed to crawl %s", name), err), err
	}

	if !s.mu.TryLock() {
		s.logger.Info("another crawl is running, waiting", "category", c.Name)
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	doc, err := s.crawler.Crawl(ctx, c)
	if err != nil {
		return storage.FailureDocument(fmt.Sprintf("Failed to crawl %s", c.Name), err), err
	}
	return doc, nil
}

// Results returns the last document written for the named category, which
// may belong to a crawl still in progress.
func (s *Service) Results(name string) (*storage.Document, error) {
	c, err := s.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return s.results.Load(c.OutputFile)
}

func (s *Service) Categories() []*category.Category {
	return s.registry.All()
}

func (s *Service) Category(name string) (*category.Category, error) {
	return s.registry.Get(name)
}
