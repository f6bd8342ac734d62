package store_test

import (
	"path/filepath"
	"testing"

	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/store"

	"github.com/google/go-cmp/cmp"
)

// backends lists every variant under test. File-backed variants get a fresh
// temp file per test. Numeric values in the fixtures use float64 so records
// survive the JSON round-trip of the file-backed variants unchanged.
func backends(t *testing.T) map[string]func(t *testing.T) store.Backend {
	t.Helper()
	open := func(typ, file string) func(t *testing.T) store.Backend {
		return func(t *testing.T) store.Backend {
			t.Helper()
			source := ""
			if file != "" {
				source = filepath.Join(t.TempDir(), file)
			}
			b, err := store.Open(typ, source)
			if err != nil {
				t.Fatalf("store.Open(%q): %v", typ, err)
			}
			t.Cleanup(func() {
				if err := b.Close(); err != nil {
					t.Errorf("Close: %v", err)
				}
			})
			return b
		}
	}
	return map[string]func(t *testing.T) store.Backend{
		"memory": open("memory", ""),
		"json":   open("json", "test.json"),
		"bolt":   open("bolt", "test.bolt"),
		"sqlite": open("sqlite", "test.db"),
	}
}

func TestBackendGetSetRemove(t *testing.T) {
	t.Parallel()

	for name, newBackend := range backends(t) {
		newBackend := newBackend
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b := newBackend(t)

			got, err := b.Get("missing")
			if err != nil {
				t.Fatalf("Get missing: %v", err)
			}
			if got != nil {
				t.Fatalf("Get missing = %v, want nil", got)
			}

			rec := model.Record{"username": "Alice", "role": float64(2)}
			if err := b.Set("alice", rec); err != nil {
				t.Fatalf("Set: %v", err)
			}

			got, err = b.Get("alice")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if diff := cmp.Diff(rec, got); diff != "" {
				t.Errorf("Get mismatch (-want +got):\n%s", diff)
			}

			// Set replaces the whole record
			if err := b.Set("alice", model.Record{"username": "Alice2"}); err != nil {
				t.Fatalf("Set replace: %v", err)
			}
			got, err = b.Get("alice")
			if err != nil {
				t.Fatalf("Get after replace: %v", err)
			}
			if diff := cmp.Diff(model.Record{"username": "Alice2"}, got); diff != "" {
				t.Errorf("replace mismatch (-want +got):\n%s", diff)
			}

			if err := b.Remove("alice"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			got, err = b.Get("alice")
			if err != nil {
				t.Fatalf("Get after remove: %v", err)
			}
			if got != nil {
				t.Errorf("Get after remove = %v, want nil", got)
			}

			// Removing an absent key is a no-op
			if err := b.Remove("alice"); err != nil {
				t.Errorf("Remove absent: %v", err)
			}
		})
	}
}

func TestBackendEdit(t *testing.T) {
	t.Parallel()

	for name, newBackend := range backends(t) {
		newBackend := newBackend
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b := newBackend(t)

			if err := b.Set("bob", model.Record{"username": "Bob", "color": "red", "role": float64(5)}); err != nil {
				t.Fatalf("Set: %v", err)
			}

			merged, err := b.Edit("bob", model.Record{"color": "blue", "icon": "bell"})
			if err != nil {
				t.Fatalf("Edit: %v", err)
			}
			want := model.Record{"username": "Bob", "color": "blue", "icon": "bell", "role": float64(5)}
			if diff := cmp.Diff(want, merged); diff != "" {
				t.Errorf("Edit result mismatch (-want +got):\n%s", diff)
			}

			got, err := b.Get("bob")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("stored record mismatch (-want +got):\n%s", diff)
			}

			// Edit of an absent key creates the record
			merged, err = b.Edit("carol", model.Record{"username": "Carol"})
			if err != nil {
				t.Fatalf("Edit absent: %v", err)
			}
			if diff := cmp.Diff(model.Record{"username": "Carol"}, merged); diff != "" {
				t.Errorf("Edit absent mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBackendKeys(t *testing.T) {
	t.Parallel()

	for name, newBackend := range backends(t) {
		newBackend := newBackend
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b := newBackend(t)

			for _, key := range []string{"charlie", "alice", "bob"} {
				if err := b.Set(key, model.Record{"username": key}); err != nil {
					t.Fatalf("Set %q: %v", key, err)
				}
			}

			keys, err := b.Keys()
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			if diff := cmp.Diff([]string{"alice", "bob", "charlie"}, keys); diff != "" {
				t.Errorf("Keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSONFileReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.json")
	b, err := store.OpenJSONFile(path)
	if err != nil {
		t.Fatalf("OpenJSONFile: %v", err)
	}
	if err := b.Set("alice", model.Record{"username": "Alice"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh backend over the same file sees the written record.
	reloaded, err := store.OpenJSONFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reloaded.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(model.Record{"username": "Alice"}, got); diff != "" {
		t.Errorf("reloaded record mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenUnknownType(t *testing.T) {
	t.Parallel()

	if _, err := store.Open("cassandra", ""); err == nil {
		t.Fatalf("Open with unknown type: expected error, got nil")
	}
}
