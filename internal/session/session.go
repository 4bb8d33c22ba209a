// Package session keeps the signed-in user's context between requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when the session expired or was torn down.
var ErrNoSession = errors.New("session not found")

// Session is what the server knows about a signed-in user.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	TenantID   string    `json:"tenant_id"`
	Role       string    `json:"role"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// Admin reports whether the user may see every department.
func (s Session) Admin() bool { return s.Role == "admin" }

// Store persists sessions.
type Store interface {
	// Init loads a persisted session.
	Init(ctx context.Context, id string) (Session, error)
	// Create persists s and returns it with an id.
	Create(ctx context.Context, s Session) (Session, error)
	// Teardown removes the session. Unknown ids are not an error.
	Teardown(ctx context.Context, id string) error
}

func prepare(s Session) Session {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return s
}

// RedisStore keeps sessions in Redis with a sliding TTL.
type RedisStore struct {
	RDB    *redis.Client
	TTL    time.Duration
	Prefix string
}

func (r *RedisStore) key(id string) string {
	p := r.Prefix
	if p == "" {
		p = "insights:session:"
	}
	return p + id
}

func (r *RedisStore) ttl() time.Duration {
	if r.TTL <= 0 {
		return 12 * time.Hour
	}
	return r.TTL
}

func (r *RedisStore) Init(ctx context.Context, id string) (Session, error) {
	b, err := r.RDB.GetEx(ctx, r.key(id), r.ttl()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisStore) Create(ctx context.Context, s Session) (Session, error) {
	s = prepare(s)
	b, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	if err := r.RDB.Set(ctx, r.key(s.ID), b, r.ttl()).Err(); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisStore) Teardown(ctx context.Context, id string) error {
	return r.RDB.Del(ctx, r.key(id)).Err()
}

// MemoryStore is used when no Redis is configured. Sessions do not
// survive a restart.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{m: map[string]Session{}} }

func (m *MemoryStore) Init(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.m[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (m *MemoryStore) Create(_ context.Context, s Session) (Session, error) {
	s = prepare(s)
	m.mu.Lock()
	m.m[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryStore) Teardown(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.m, id)
	m.mu.Unlock()
	return nil
}

type ctxKey struct{}

// With stores s in ctx.
func With(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session stored in ctx.
func From(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
