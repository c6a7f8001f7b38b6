// Package cache is a single-file JSON key-value store for detail payloads.
//
// The whole file is one JSON object mapping keys to entries. A missing,
// empty or unreadable file behaves as an empty cache; an unreadable file is
// removed on the next access so later writes start clean.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/storage"
)

type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Store struct {
	mu       sync.Mutex
	filename string
	now      func() time.Time
	logger   *slog.Logger
}

func New(filename string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		filename: filename,
		now:      time.Now,
		logger:   logger.With("component", "cache"),
	}
}

func (s *Store) Filename() string {
	return s.filename
}

// Key maps a URL to a fixed-width cache key. Distinct URLs only collide on a
// 64-bit hash collision.
func Key(url string) string {
	return fmt.Sprintf("p_%016x", xxhash.Sum64String(url))
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// LegacyKey is the key format of older cache files, where every
// non-alphanumeric character of the URL is replaced by an underscore.
func LegacyKey(url string) string {
	return nonAlnum.ReplaceAllString(url, "_")
}

// Load decodes the payload stored under key into dst. It reports false on
// any miss and never fails.
func (s *Store) Load(key string, dst any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.read()[key]
	if !ok || len(entry.Data) == 0 {
		return false
	}

	if err := json.Unmarshal(entry.Data, dst); err != nil {
		s.logger.Warn("cached payload does not decode", "key", key, "error", err)
		return false
	}

	s.logger.Debug("cache hit", "key", key)
	return true
}

// LoadURL looks up url under Key and then under LegacyKey.
func (s *Store) LoadURL(url string, dst any) bool {
	if s.Load(Key(url), dst) {
		return true
	}
	return s.Load(LegacyKey(url), dst)
}

// Save stores payload under key, replacing any previous entry, and rewrites
// the whole file atomically.
func (s *Store) Save(key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	doc[key] = Entry{Data: data, Timestamp: s.now()}

	if err := storage.WriteJSONAtomic(s.filename, doc); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	s.logger.Debug("cache saved", "key", key, "entries", len(doc))
	return nil
}

// Len returns the number of entries currently on disk.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.read())
}

func (s *Store) read() map[string]Entry {
	doc := make(map[string]Entry)

	data, err := os.ReadFile(s.filename)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read cache file", "file", s.filename, "error", err)
		}
		return doc
	}
	if len(data) == 0 {
		return doc
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("cache file is corrupt, removing", "file", s.filename, "error", err)
		if rmErr := os.Remove(s.filename); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Error("failed to remove corrupt cache file", "error", rmErr)
		}
		return make(map[string]Entry)
	}

	return doc
}
