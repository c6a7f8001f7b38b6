// Package storage persists crawl result documents as JSON files.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
)

var ErrNotFound = errors.New("document not found")

// Document is the result file written for one category crawl.
type Document struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    DocumentData `json:"data"`
	Error   string       `json:"error,omitempty"`
}

type DocumentData struct {
	Total     int                       `json:"total"`
	Products  []*models.EnrichedProduct `json:"products"`
	CrawledAt time.Time                 `json:"crawledAt"`
}

// NewDocument starts an empty successful document stamped with at.
func NewDocument(message string, at time.Time) *Document {
	return &Document{
		Success: true,
		Message: message,
		Data: DocumentData{
			Products:  []*models.EnrichedProduct{},
			CrawledAt: at,
		},
	}
}

// Append adds an accepted product and keeps Total in step with Products.
func (d *Document) Append(p *models.EnrichedProduct) {
	d.Data.Products = append(d.Data.Products, p)
	d.Data.Total = len(d.Data.Products)
}

func (d *Document) Finalize(message string, at time.Time) {
	d.Message = message
	d.Data.CrawledAt = at
	d.Data.Total = len(d.Data.Products)
}

func (d *Document) Fail(message string, err error) {
	d.Success = false
	d.Message = message
	if err != nil {
		d.Error = err.Error()
	}
}

// FailureDocument is the envelope returned when a crawl aborts.
func FailureDocument(message string, err error) *Document {
	doc := NewDocument(message, time.Now())
	doc.Fail(message, err)
	return doc
}

// ResultStore writes one document per category file under a directory.
type ResultStore struct {
	mu  sync.Mutex
	dir string
}

func NewResultStore(dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &ResultStore{dir: dir}, nil
}

func (s *ResultStore) Path(file string) string {
	return filepath.Join(s.dir, file)
}

// Save replaces the file with the full document. It returns only after the
// new content is durable on disk.
func (s *ResultStore) Save(file string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteJSONAtomic(s.Path(file), doc); err != nil {
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	return nil
}

func (s *ResultStore) Load(file string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", file, err)
	}
	return &doc, nil
}

// WriteJSONAtomic writes v to filename through a synced temp file and a
// rename, so readers see either the old or the new content.
func WriteJSONAtomic(filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
