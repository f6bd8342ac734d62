package server

import (
	"testing"

	"github.com/NicolasHaas/klaxon/pkg/model"

	"github.com/google/go-cmp/cmp"
)

func TestPresenceTracker(t *testing.T) {
	t.Parallel()

	pt := NewPresenceTracker()

	pt.Bind("conn-1", model.Presence{UserID: "zoe", Role: 2, Name: "Zoe"})
	pt.Bind("conn-2", model.Presence{UserID: "adam", Role: 5, Name: "Adam"})

	if got := pt.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	want := []model.Presence{
		{UserID: "adam", Role: 5, Name: "Adam"},
		{UserID: "zoe", Role: 2, Name: "Zoe"},
	}
	if diff := cmp.Diff(want, pt.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}

	// Rebinding replaces, it does not duplicate.
	pt.Bind("conn-1", model.Presence{UserID: "zoe", Role: 2, Name: "Zoe R."})
	if got := pt.Count(); got != 2 {
		t.Fatalf("Count after rebind = %d, want 2", got)
	}
	if p, ok := pt.Get("conn-1"); !ok || p.Name != "Zoe R." {
		t.Errorf("Get after rebind = %+v/%t, want Zoe R.", p, ok)
	}

	p, ok := pt.Unbind("conn-1")
	if !ok || p.UserID != "zoe" {
		t.Fatalf("Unbind = %+v/%t, want zoe/true", p, ok)
	}
	if got := pt.Count(); got != 1 {
		t.Fatalf("Count after unbind = %d, want 1", got)
	}

	// Unbinding twice is a no-op.
	if _, ok := pt.Unbind("conn-1"); ok {
		t.Errorf("second Unbind reported a binding")
	}

	// Two connections for the same user produce two entries.
	pt.Bind("conn-3", model.Presence{UserID: "adam", Role: 5, Name: "Adam"})
	if got := len(pt.Snapshot()); got != 2 {
		t.Errorf("Snapshot entries = %d, want 2", got)
	}
}
