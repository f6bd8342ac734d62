package repo

import (
	"fmt"
	"sort"

	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/store"
)

// Catalog holds the read-only reference data tables distributed to
// privileged clients (the alert catalog and friends). One backend key per
// table; the server always serves the authoritative current contents,
// caching is a client concern.
type Catalog struct {
	b store.Backend
}

// NewCatalog creates a reference-data catalog over the given backend.
func NewCatalog(b store.Backend) *Catalog {
	return &Catalog{b: b}
}

// Table returns every row of the named table, ordered by sort_index.
// Returns (nil, nil) for an unknown table.
func (c *Catalog) Table(name string) ([]model.Record, error) {
	rec, err := c.b.Get(name)
	if err != nil {
		return nil, fmt.Errorf("repo: read table %q: %w", name, err)
	}
	if rec == nil {
		return nil, nil
	}

	raw, _ := rec["rows"].([]any)
	rows := make([]model.Record, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case model.Record:
			rows = append(rows, v.Clone())
		case map[string]any:
			rows = append(rows, model.Record(v).Clone())
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := rows[i].Int("sort_index")
		b, _ := rows[j].Int("sort_index")
		return a < b
	})
	return rows, nil
}

// Replace swaps in the full contents of a table. Used by the YAML seeder
// at startup; tables are never mutated at runtime.
func (c *Catalog) Replace(name string, rows []model.Record) error {
	items := make([]any, len(rows))
	for i, row := range rows {
		items[i] = map[string]any(row)
	}
	if err := c.b.Set(name, model.Record{"rows": items}); err != nil {
		return fmt.Errorf("repo: replace table %q: %w", name, err)
	}
	return nil
}

// Tables returns the names of all stored tables.
func (c *Catalog) Tables() ([]string, error) {
	names, err := c.b.Keys()
	if err != nil {
		return nil, fmt.Errorf("repo: list tables: %w", err)
	}
	return names, nil
}
