// Package memory provides an in-process session store with idle expiry.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// CleanupInterval is how often expired sessions are swept.
const CleanupInterval = 5 * time.Minute

type entry struct {
	state   *models.SessionState
	touched time.Time
}

// Store keeps session states in a map. States are copied in and out so
// callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store whose sessions expire after ttl without access.
// A ttl of zero disables expiry.
func New(ttl time.Duration, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key string) (*models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	e, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.sessions, key)
		return nil, nil
	}
	e.touched = now
	return e.state.Clone(), nil
}

// Put implements store.Store.
func (s *Store) Put(_ context.Context, key string, state *models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.sessions[key] = &entry{state: state.Clone(), touched: s.now()}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	delete(s.sessions, key)
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartCleanup sweeps expired sessions every interval until Close.
func (s *Store) StartCleanup(interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("Expired sessions swept")
				}
			}
		}
	}()
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup loop and drops all sessions.
func (s *Store) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}
