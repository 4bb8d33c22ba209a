package preview

import (
	"context"
	"sync"
)

// Session runs previews for one open dialog. Only the most recently started
// run delivers a result; older runs are cancelled and get ErrStale.
type Session struct {
	q Querier

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	closed bool
}

// NewSession opens a session over q.
func NewSession(q Querier) *Session { return &Session{q: q} }

// Run executes query, superseding any run in flight.
func (s *Session) Run(ctx context.Context, query string) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	mine := s.seq
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	res, err := s.q.Run(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Result{}, ErrClosed
	}
	if mine != s.seq {
		return Result{}, ErrStale
	}
	return res, err
}

// Close cancels the run in flight and releases the session. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}
