// Package seen keeps identifiers of processed feed items, persisted as a json file
package seen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/umputun/announcer/pkg/domain"
)

// Set is a monotonic set of seen item identifiers with first-seen time.
// Entries are never evicted, Clear drops all of them at once.
type Set struct {
	path string

	mu    sync.RWMutex
	items map[string]time.Time
}

// cacheFile is the on-disk format
type cacheFile struct {
	SeenItems   json.RawMessage `json:"seen_items"`
	LastUpdated string          `json:"last_updated"` // informational, older caches have it without zone
}

// New makes an empty set persisted to path
func New(path string) *Set {
	return &Set{path: path, items: map[string]time.Time{}}
}

// Contains checks if id was seen
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Mark adds id, first-seen time of a known id is kept
func (s *Set) Mark(id string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		s.items[id] = ts
	}
}

// Len returns number of seen ids
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes all ids, the file is rewritten on next Save
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[string]time.Time{}
}

// Load replaces the set with file content. Missing or broken file leaves the set empty
// and returns *domain.CacheLoadError, callers log it and go on.
func (s *Set) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = map[string]time.Time{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return &domain.CacheLoadError{Path: s.path, Err: err}
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return &domain.CacheLoadError{Path: s.path, Err: err}
	}
	if len(cf.SeenItems) == 0 || string(cf.SeenItems) == "null" {
		return nil
	}

	items := map[string]time.Time{}
	if err := json.Unmarshal(cf.SeenItems, &items); err == nil {
		s.items = items
		return nil
	}

	// older cache keeps a plain list of ids, first-seen time is unknown
	var ids []string
	if err := json.Unmarshal(cf.SeenItems, &ids); err != nil {
		return &domain.CacheLoadError{Path: s.path, Err: errors.New("unexpected seen_items format")}
	}
	now := time.Now()
	for _, id := range ids {
		items[id] = now
	}
	s.items = items
	return nil
}

// Save writes the set to a temp file in the same directory and renames it over the cache file
func (s *Set) Save() error {
	s.mu.RLock()
	items, err := json.Marshal(s.items)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal seen items: %w", err)
	}

	data, err := json.MarshalIndent(cacheFile{SeenItems: items, LastUpdated: time.Now().Format(time.RFC3339)}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("make cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}
