// Package drafts keeps the in-progress state of open dialogs and wizards
// between HTTP requests.
package drafts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown or expired draft.
var ErrNotFound = errors.New("draft not found")

type entry[T any] struct {
	tenant string
	value  T
	seen   time.Time
}

// Store holds drafts per tenant. Drafts untouched for longer than TTL are
// evicted by Sweep; OnEvict runs for each of them outside the lock.
type Store[T any] struct {
	TTL     time.Duration
	OnEvict func(T)

	mu  sync.Mutex
	m   map[string]*entry[T]
	now func() time.Time
}

// New returns a store evicting drafts idle for ttl.
func New[T any](ttl time.Duration, onEvict func(T)) *Store[T] {
	return &Store[T]{TTL: ttl, OnEvict: onEvict, m: map[string]*entry[T]{}, now: time.Now}
}

// Put stores v for tenant and returns its id.
func (s *Store[T]) Put(tenant string, v T) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = &entry[T]{tenant: tenant, value: v, seen: s.now()}
	return id
}

// Get returns the draft id of tenant and marks it as used.
func (s *Store[T]) Get(tenant, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok || e.tenant != tenant {
		var zero T
		return zero, ErrNotFound
	}
	e.seen = s.now()
	return e.value, nil
}

// Delete removes the draft and returns it. OnEvict is not called.
func (s *Store[T]) Delete(tenant, id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok || e.tenant != tenant {
		var zero T
		return zero, false
	}
	delete(s.m, id)
	return e.value, true
}

// Len returns the number of drafts held.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep evicts expired drafts and returns how many were removed.
func (s *Store[T]) Sweep() int {
	if s.TTL <= 0 {
		return 0
	}
	s.mu.Lock()
	cutoff := s.now().Add(-s.TTL)
	var expired []T
	for id, e := range s.m {
		if e.seen.Before(cutoff) {
			expired = append(expired, e.value)
			delete(s.m, id)
		}
	}
	s.mu.Unlock()
	if s.OnEvict != nil {
		for _, v := range expired {
			s.OnEvict(v)
		}
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
