// Package session serialises tracker updates per session key over a
// store.Store.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/internal/tracker"
	"github.com/DTPriya20/click-gait/pkg/models"
)

const (
	// SessionTimeout is how long a key's lock entry survives without use.
	SessionTimeout = 30 * time.Minute
	// CleanupInterval is how often idle lock entries are swept.
	CleanupInterval = 5 * time.Minute
)

// keyLock guards one session key. refs counts callers holding or waiting on
// mu so the sweeper never drops an entry in use.
type keyLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

// Manager runs load, compute and save for a session key while holding that
// key's lock. Different keys proceed in parallel.
type Manager struct {
	store store.Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the server clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager backed by st and starts the idle sweeper.
func NewManager(st store.Store, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:  st,
		now:    time.Now,
		locks:  make(map[string]*keyLock),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanupLoop()
	return m
}

// Record applies one classification to the session. A nil at uses the server
// clock, which never moves backwards relative to the session. A client
// supplied at that precedes the last event fails with tracker.ErrOutOfOrder.
func (m *Manager) Record(ctx context.Context, key string, result models.ClassificationResult, at *time.Time) (models.EventOutcome, error) {
	unlock := m.lock(key)
	defer unlock()

	state, err := m.store.Get(ctx, key)
	if err != nil {
		return models.EventOutcome{}, fmt.Errorf("load session: %w", err)
	}

	var now time.Time
	if at != nil {
		now = *at
	} else {
		now = m.now()
		if state != nil && now.Before(state.LastMovementTime) {
			now = state.LastMovementTime
		}
	}

	next, outcome, err := tracker.RecordEvent(state, result, now)
	if err != nil {
		return models.EventOutcome{}, err
	}
	if err := m.store.Put(ctx, key, next); err != nil {
		return models.EventOutcome{}, fmt.Errorf("save session: %w", err)
	}
	return outcome, nil
}

// Summary reports the session totals, creating the session if it is new. The
// pruned unknown window is written back.
func (m *Manager) Summary(ctx context.Context, key string) (models.Summary, error) {
	unlock := m.lock(key)
	defer unlock()

	state, err := m.store.Get(ctx, key)
	if err != nil {
		return models.Summary{}, fmt.Errorf("load session: %w", err)
	}
	now := m.now()
	if state != nil && now.Before(state.LastMovementTime) {
		now = state.LastMovementTime
	}

	next, summary := tracker.Summarize(state, now)
	if err := m.store.Put(ctx, key, next); err != nil {
		return models.Summary{}, fmt.Errorf("save session: %w", err)
	}
	return summary, nil
}

// Reset replaces the session with a fresh state starting now.
func (m *Manager) Reset(ctx context.Context, key string) error {
	unlock := m.lock(key)
	defer unlock()

	if err := m.store.Put(ctx, key, tracker.Reset(m.now())); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ActiveCount returns the number of keys with a live lock entry.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Shutdown stops the sweeper. It does not close the store.
func (m *Manager) Shutdown() {
	m.cancel()
}

func (m *Manager) lock(key string) func() {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		m.mu.Lock()
		kl.refs--
		kl.lastUsed = m.now()
		m.mu.Unlock()
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("Swept idle session locks")
			}
		}
	}
}

// sweep drops lock entries unused for SessionTimeout.
func (m *Manager) sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, kl := range m.locks {
		if kl.refs == 0 && now.Sub(kl.lastUsed) > SessionTimeout {
			delete(m.locks, key)
			removed++
		}
	}
	return removed
}
