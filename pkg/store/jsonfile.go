package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

// JSONFileBackend keeps the whole store as one JSON document on disk and
// rewrites the file on every mutation. Suited to small hand-editable data
// sets, not high write rates.
type JSONFileBackend struct {
	mu   sync.RWMutex
	path string
	data map[string]model.Record
}

// OpenJSONFile loads (or initialises) a JSON document store at path.
func OpenJSONFile(path string) (*JSONFileBackend, error) {
	b := &JSONFileBackend{
		path: path,
		data: make(map[string]model.Record),
	}
	raw, err := os.ReadFile(path) //nolint:gosec // path from server config
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read json file: %w", err)
	}
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		return nil, fmt.Errorf("store: parse json file: %w", err)
	}
	return b, nil
}

// flush writes the whole document back to disk. Callers hold the write lock.
func (b *JSONFileBackend) flush() error {
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode json file: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("store: write json file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("store: replace json file: %w", err)
	}
	return nil
}

// Get retrieves a record by key.
func (b *JSONFileBackend) Get(key string) (model.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.data[key]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Set stores a record under key and rewrites the file.
func (b *JSONFileBackend) Set(key string, rec model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.data[key]
	b.data[key] = rec.Clone()
	if err := b.flush(); err != nil {
		// keep memory and disk consistent
		if had {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return err
	}
	return nil
}

// Edit merges partial into the stored record, rewrites the file, and
// returns the merged result.
func (b *JSONFileBackend) Edit(key string, partial model.Record) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.data[key]
	merged := prev.Clone()
	if merged == nil {
		merged = model.Record{}
	}
	merged.Merge(partial)
	b.data[key] = merged
	if err := b.flush(); err != nil {
		if had {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return nil, err
	}
	return merged.Clone(), nil
}

// Remove deletes the record under key and rewrites the file.
func (b *JSONFileBackend) Remove(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, had := b.data[key]
	if !had {
		return nil
	}
	delete(b.data, key)
	if err := b.flush(); err != nil {
		b.data[key] = prev
		return err
	}
	return nil
}

// Keys returns all stored keys in sorted order.
func (b *JSONFileBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op: every mutation is already flushed.
func (b *JSONFileBackend) Close() error {
	return nil
}

// Compile-time check: *JSONFileBackend implements Backend.
var _ Backend = (*JSONFileBackend)(nil)
