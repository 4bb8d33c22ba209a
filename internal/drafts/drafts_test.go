package drafts

import (
	"errors"
	"testing"
	"time"
)

func TestTenantIsolation(t *testing.T) {
	s := New[string](time.Minute, nil)
	id := s.Put("acme", "draft")
	if v, err := s.Get("acme", id); err != nil || v != "draft" {
		t.Fatalf("get: %q %v", v, err)
	}
	if _, err := s.Get("other", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant read: %v", err)
	}
	if _, ok := s.Delete("other", id); ok {
		t.Fatalf("cross-tenant delete")
	}
	if v, ok := s.Delete("acme", id); !ok || v != "draft" {
		t.Fatalf("delete: %q %v", v, ok)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestSweepEvictsIdleDrafts(t *testing.T) {
	var evicted []string
	s := New(time.Minute, func(v string) { evicted = append(evicted, v) })
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old := s.Put("acme", "old")
	fresh := s.Put("acme", "fresh")
	now = now.Add(50 * time.Second)
	if _, err := s.Get("acme", fresh); err != nil {
		t.Fatalf("touch: %v", err)
	}
	now = now.Add(30 * time.Second)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Fatalf("evicted: %v", evicted)
	}
	if _, err := s.Get("acme", old); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old draft still present")
	}
	if _, err := s.Get("acme", fresh); err != nil {
		t.Fatalf("fresh draft evicted: %v", err)
	}
}
