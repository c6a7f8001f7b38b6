package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

const Version = "1.0.0"

// CrawlService is the part of scraper.Service the handlers use.
type CrawlService interface {
	Crawl(ctx context.Context, name string) (*storage.Document, error)
	Results(name string) (*storage.Document, error)
	Categories() []*category.Category
}

type Handlers struct {
	service CrawlService
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandlers(service CrawlService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service: service,
		logger:  logger.With("component", "api"),
		now:     time.Now,
	}
}

// IndexResponse describes the API and lists its endpoints.
type IndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"health":  "/health",
		"metrics": "/metrics",
		"results": "/results/{category}",
	}
	for _, c := range h.service.Categories() {
		endpoints[c.Name] = c.Route
	}

	h.respondJSON(w, http.StatusOK, IndexResponse{
		Message:   "Crawl Data Thegioididong API",
		Version:   Version,
		Status:    "running",
		Endpoints: endpoints,
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		Message:   "Server is running",
	})
}

// CrawlCategory returns a handler bound to one category, used for the
// fixed /crawl-<category> routes.
func (h *Handlers) CrawlCategory(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.crawl(w, r, name)
	}
}

// Crawl runs the category named in the URL.
func (h *Handlers) Crawl(w http.ResponseWriter, r *http.Request) {
	h.crawl(w, r, chi.URLParam(r, "category"))
}

func (h *Handlers) crawl(w http.ResponseWriter, r *http.Request, name string) {
	start := h.now()
	doc, err := h.service.Crawl(r.Context(), name)
	if err != nil {
		if errors.Is(err, category.ErrUnknownCategory) {
			h.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown category: %s", name))
			return
		}

		h.logger.Error("crawl failed", "category", name, "error", err)
		if doc == nil {
			doc = storage.FailureDocument(fmt.Sprintf("Failed to crawl %s", name), err)
		}
		h.respondJSON(w, http.StatusInternalServerError, doc)
		return
	}

	h.logger.Info("crawl finished",
		"category", name,
		"total", doc.Data.Total,
		"duration", h.now().Sub(start))
	h.respondJSON(w, http.StatusOK, doc)
}

// Results returns the last document written for a category.
func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "category")

	doc, err := h.service.Results(name)
	switch {
	case errors.Is(err, category.ErrUnknownCategory):
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown category: %s", name))
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("no results for %s yet", name))
	case err != nil:
		h.logger.Error("failed to load results", "category", name, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load results")
	default:
		h.respondJSON(w, http.StatusOK, doc)
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]any{"success": false, "error": message})
}
