// Package store provides keyed document persistence for Klaxon with
// interchangeable backends: in-memory, JSON file, bbolt, and SQLite.
package store

import (
	"fmt"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

// Backend is the uniform persistence contract. Each operation is atomic
// with respect to its key: callers never observe a half-written record.
//
// Get returns (nil, nil) when the key is absent. Edit merges a partial
// record into the stored one (creating it when absent) and returns the
// merged result. Remove of an absent key is a no-op.
type Backend interface {
	Get(key string) (model.Record, error)
	Set(key string, rec model.Record) error
	Edit(key string, partial model.Record) (model.Record, error)
	Remove(key string) error
	Keys() ([]string, error)
	Close() error
}

// Open selects a backend variant by type name. Source is the file path for
// the file-backed variants and is ignored for "memory".
func Open(typ, source string) (Backend, error) {
	switch typ {
	case "memory":
		return NewMemory(), nil
	case "json":
		return OpenJSONFile(source)
	case "bolt":
		return OpenBolt(source)
	case "sqlite":
		return OpenSQLite(source)
	default:
		return nil, fmt.Errorf("store: unknown backend type %q (valid: memory, json, bolt, sqlite)", typ)
	}
}
