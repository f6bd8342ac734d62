package store

import (
	"sort"
	"sync"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

// MemoryBackend is a map-based Backend. It holds nothing across restarts
// and is the default for session state, which clients rebuild by
// re-validating.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]model.Record
}

// NewMemory creates an empty MemoryBackend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]model.Record)}
}

// Get retrieves a record by key.
func (b *MemoryBackend) Get(key string) (model.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.data[key]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Set stores a record under key, replacing any previous one.
func (b *MemoryBackend) Set(key string, rec model.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = rec.Clone()
	return nil
}

// Edit merges partial into the stored record and returns the result.
func (b *MemoryBackend) Edit(key string, partial model.Record) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := b.data[key].Clone()
	if merged == nil {
		merged = model.Record{}
	}
	merged.Merge(partial)
	b.data[key] = merged
	return merged.Clone(), nil
}

// Remove deletes the record under key.
func (b *MemoryBackend) Remove(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// Keys returns all stored keys in sorted order.
func (b *MemoryBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for MemoryBackend.
func (b *MemoryBackend) Close() error {
	return nil
}

// Compile-time check: *MemoryBackend implements Backend.
var _ Backend = (*MemoryBackend)(nil)
