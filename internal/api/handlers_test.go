package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

type MockCrawlService struct {
	mock.Mock
}

func (m *MockCrawlService) Crawl(ctx context.Context, name string) (*storage.Document, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Document), args.Error(1)
}

func (m *MockCrawlService) Results(name string) (*storage.Document, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Document), args.Error(1)
}

func (m *MockCrawlService) Categories() []*category.Category {
	registry, err := category.Default()
	if err != nil {
		panic(err)
	}
	return registry.All()
}

func newTestServer(t *testing.T, svc CrawlService, metrics http.Handler) *httptest.Server {
	t.Helper()
	h := NewHandlers(svc, slog.Default())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(NewRouter(h, RouterOptions{Metrics: metrics}))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, dst any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	return resp
}

func finishedDocument(n int) *storage.Document {
	doc := storage.NewDocument("crawling...", time.Now())
	for i := 0; i < n; i++ {
		doc.Append(&models.EnrichedProduct{
			ListingRecord: models.ListingRecord{Link: fmt.Sprintf("https://www.thegioididong.com/dtdd/p%d", i)},
			Detail:        &models.DetailRecord{Title: "P"},
		})
	}
	doc.Finalize(fmt.Sprintf("Crawled successfully %d products", n), time.Now())
	return doc
}

func TestHandlers_Index(t *testing.T) {
	srv := newTestServer(t, new(MockCrawlService), nil)

	var body IndexResponse
	resp := getJSON(t, srv.URL+"/", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body.Status)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, "/crawl-phones", body.Endpoints["phones"])
	assert.Equal(t, "/crawl-smartwatches", body.Endpoints["smartwatches"])
	assert.Equal(t, "/health", body.Endpoints["health"])
}

func TestHandlers_Health(t *testing.T) {
	srv := newTestServer(t, new(MockCrawlService), nil)

	var body HealthResponse
	resp := getJSON(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "2024-05-01T10:00:00Z", body.Timestamp)
}

func TestHandlers_Crawl(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		category   string
		doc        *storage.Document
		err        error
		wantStatus int
		wantTotal  int
	}{
		{
			name:       "fixed route success",
			path:       "/crawl-phones",
			category:   "phones",
			doc:        finishedDocument(2),
			wantStatus: http.StatusOK,
			wantTotal:  2,
		},
		{
			name:       "parameter route success",
			path:       "/crawl/laptops",
			category:   "laptops",
			doc:        finishedDocument(1),
			wantStatus: http.StatusOK,
			wantTotal:  1,
		},
		{
			name:       "crawl failure returns envelope",
			path:       "/crawl-tablets",
			category:   "tablets",
			doc:        storage.FailureDocument("Failed to crawl tablets", errors.New("browser crashed")),
			err:        errors.New("browser crashed"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown category",
			path:       "/crawl/cameras",
			category:   "cameras",
			err:        fmt.Errorf("%w: cameras", category.ErrUnknownCategory),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCrawlService)
			svc.On("Crawl", mock.Anything, tt.category).Return(tt.doc, tt.err)
			srv := newTestServer(t, svc, nil)

			var body map[string]any
			resp := getJSON(t, srv.URL+tt.path, &body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			svc.AssertExpectations(t)

			switch tt.wantStatus {
			case http.StatusOK:
				assert.Equal(t, true, body["success"])
				data := body["data"].(map[string]any)
				assert.EqualValues(t, tt.wantTotal, data["total"])
				assert.Len(t, data["products"], tt.wantTotal)
			case http.StatusInternalServerError:
				assert.Equal(t, false, body["success"])
				assert.Equal(t, "Failed to crawl tablets", body["message"])
				assert.Equal(t, "browser crashed", body["error"])
			case http.StatusNotFound:
				assert.Equal(t, false, body["success"])
				assert.Contains(t, body["error"], "unknown category")
			}
		})
	}
}

func TestHandlers_Results(t *testing.T) {
	t.Run("returns stored document", func(t *testing.T) {
		svc := new(MockCrawlService)
		svc.On("Results", "phones").Return(finishedDocument(3), nil)
		srv := newTestServer(t, svc, nil)

		var doc storage.Document
		resp := getJSON(t, srv.URL+"/results/phones", &doc)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 3, doc.Data.Total)
		assert.Len(t, doc.Data.Products, 3)
	})

	t.Run("not crawled yet", func(t *testing.T) {
		svc := new(MockCrawlService)
		svc.On("Results", "tablets").Return(nil, storage.ErrNotFound)
		srv := newTestServer(t, svc, nil)

		var body map[string]any
		resp := getJSON(t, srv.URL+"/results/tablets", &body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown category", func(t *testing.T) {
		svc := new(MockCrawlService)
		svc.On("Results", "tv").Return(nil, category.ErrUnknownCategory)
		srv := newTestServer(t, svc, nil)

		var body map[string]any
		resp := getJSON(t, srv.URL+"/results/tv", &body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("read failure", func(t *testing.T) {
		svc := new(MockCrawlService)
		svc.On("Results", "phones").Return(nil, errors.New("permission denied"))
		srv := newTestServer(t, svc, nil)

		var body map[string]any
		resp := getJSON(t, srv.URL+"/results/phones", &body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "failed to load results", body["error"])
	})
}

func TestRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("crawl_runs_total 1\n"))
	})

	t.Run("mounted when provided", func(t *testing.T) {
		srv := newTestServer(t, new(MockCrawlService), metrics)
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("absent otherwise", func(t *testing.T) {
		srv := newTestServer(t, new(MockCrawlService), nil)
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
