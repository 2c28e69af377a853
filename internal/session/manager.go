package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

// Factory builds a fresh, unbound session for a device scope.
type Factory func(scope string) (*Session, error)

type ManagerOptions struct {
	IdleTTL     time.Duration
	Logger      *logger.Logger
	CartMetrics *metrics.CartMetrics
	Now         func() time.Time
}

// Manager keeps one live session per device.
type Manager struct {
	factory Factory
	idleTTL time.Duration
	logg    *logger.Logger
	cart    *metrics.CartMetrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(factory Factory, opts ManagerOptions) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("session factory required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		factory:  factory,
		idleTTL:  opts.IdleTTL,
		logg:     logg,
		cart:     opts.CartMetrics,
		now:      now,
		sessions: map[string]*Session{},
	}, nil
}

// Acquire returns the device's session bound to id, creating it on first use.
func (m *Manager) Acquire(ctx context.Context, scope string, id persistence.Identity) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[scope]
	if !ok {
		created, err := m.factory(scope)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		s = created
		m.sessions[scope] = s
		m.cart.SetSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if _, err := s.Bind(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL and returns how many were closed.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Session
	for scope, s := range m.sessions {
		if s.idleSince(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, scope)
		}
	}
	m.cart.SetSessions(len(m.sessions))
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Close shuts every session down.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.cart.SetSessions(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
