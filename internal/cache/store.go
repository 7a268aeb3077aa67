// Package cache provides the persistent on-disk JSON stores that let a
// rerun of the same date cost zero upstream calls. Each store is a single
// file under data/cache/ owned by exactly one component; entries carry the
// cache date and timestamp used by the per-kind validity policies.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry wraps a cached blob with its write metadata.
type Entry struct {
	CacheDate string          `json:"cache_date"`
	CachedAt  time.Time       `json:"cached_at"`
	Data      json.RawMessage `json:"data"`
}

// Store is a keyed JSON cache persisted to one file. A read failure is
// logged and treated as a miss; writes replace the whole file.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger

	entries map[string]Entry
	loaded  bool
}

// NewStore opens (or lazily creates) the cache file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger, entries: make(map[string]Entry)}
}

func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cache read failed, treating as empty", "path", s.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(raw, &s.entries); err != nil {
		s.logger.Warn("cache file corrupt, treating as empty", "path", s.path, "error", err)
		s.entries = make(map[string]Entry)
	}
}

func (s *Store) flush() {
	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		s.logger.Warn("cache marshal failed", "path", s.path, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("cache dir create failed", "path", s.path, "error", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		s.logger.Warn("cache write failed", "path", s.path, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Warn("cache rename failed", "path", s.path, "error", err)
	}
}

// Get unmarshals the entry for key into v when the validity predicate
// accepts its metadata. Returns false on miss.
func (s *Store) Get(key string, v any, valid func(Entry) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	entry, ok := s.entries[key]
	if !ok || !valid(entry) {
		return false
	}
	if err := json.Unmarshal(entry.Data, v); err != nil {
		s.logger.Warn("cache entry unmarshal failed, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

// Put stores v under key tagged with cacheDate and persists immediately.
// Partial upstream data is cached too, so one failed batch does not
// re-punish the successful ones on the next run.
func (s *Store) Put(key, cacheDate string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	s.entries[key] = Entry{CacheDate: cacheDate, CachedAt: time.Now(), Data: raw}
	s.flush()
	return nil
}

// Validity policies.

// WithinTTL accepts entries younger than ttl wall-clock.
func WithinTTL(ttl time.Duration) func(Entry) bool {
	return func(e Entry) bool { return time.Since(e.CachedAt) < ttl }
}

// SameDate accepts entries written for exactly the target date.
func SameDate(date string) func(Entry) bool {
	return func(e Entry) bool { return e.CacheDate == date }
}

// SameDateWithinTTL requires both the date tag and a wall-clock bound.
func SameDateWithinTTL(date string, ttl time.Duration) func(Entry) bool {
	return func(e Entry) bool {
		return e.CacheDate == date && time.Since(e.CachedAt) < ttl
	}
}

// GameSetKey builds the md5 digest key for a research or model snapshot:
// sorted game ids plus the date.
func GameSetKey(gameIDs []string, date string) string {
	ids := append([]string(nil), gameIDs...)
	sort.Strings(ids)
	h := md5.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'|'})
	}
	h.Write([]byte(date))
	return hex.EncodeToString(h.Sum(nil))
}
