package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/internal/rewards"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

var ErrUnbound = errors.New("cart session has no identity yet")

type Options struct {
	Layer *persistence.Layer
	// Rewards is optional; without it reward sync is disabled.
	Rewards        rewards.Client
	RewardDebounce time.Duration
	Logger         *logger.Logger
	CartMetrics    *metrics.CartMetrics
	RewardMetrics  *metrics.RewardSyncMetrics
	Now            func() time.Time
}

// Session is the single writer for one device's cart. Every dispatch reduces,
// notifies the reward engine and mirrors the full snapshot while holding mu,
// so actions apply in dispatch order.
type Session struct {
	scope   string
	layer   *persistence.Layer
	engine  *rewards.Engine
	logg    *logger.Logger
	metrics *metrics.CartMetrics
	now     func() time.Time

	mu       sync.Mutex
	identity persistence.Identity
	bound    bool
	state    cart.State
	lastUsed time.Time
	closed   bool
}

func New(scope string, opts Options) (*Session, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("session scope required")
	}
	if opts.Layer == nil {
		return nil, errors.New("persistence layer required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		scope:    scope,
		layer:    opts.Layer,
		logg:     logg,
		metrics:  opts.CartMetrics,
		now:      now,
		state:    cart.Empty(),
		lastUsed: now(),
	}
	if opts.Rewards != nil {
		engine, err := rewards.NewEngine(opts.Rewards, s, rewards.Options{
			Debounce:    opts.RewardDebounce,
			BaseContext: logg.WithDeviceID(context.Background(), scope),
			Logger:      logg,
			Metrics:     opts.RewardMetrics,
		})
		if err != nil {
			return nil, err
		}
		s.engine = engine
	}
	return s, nil
}

func (s *Session) Scope() string {
	return s.scope
}

func (s *Session) Identity() (persistence.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.bound
}

// Bind resolves the cart owner. On the first bind, or when the identity changes,
// the stored cart for the new key replaces the in-memory one. Carts are never merged
// across identities. A storage failure leaves both identity and state untouched.
func (s *Session) Bind(ctx context.Context, id persistence.Identity) (cart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()

	if s.bound && s.identity == id {
		return s.state, nil
	}

	ctx = s.logg.WithDeviceID(ctx, s.scope)
	load, err := s.layer.Restore(ctx, s.scope, id)
	if err != nil {
		return s.state, err
	}

	switched := s.bound
	s.identity = id
	s.bound = true
	if s.engine != nil {
		s.engine.Reset()
	}
	if switched {
		s.logg.Info(s.logg.WithCartKey(ctx, s.layer.Key(id)), "cart identity changed, loaded stored cart")
	}
	return s.dispatchLocked(ctx, load)
}

// Dispatch applies action and returns the new state. The returned error reports a
// failed snapshot write; the in-memory state has been updated regardless.
func (s *Session) Dispatch(ctx context.Context, action cart.Action) (cart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()

	if !s.bound {
		return s.state, ErrUnbound
	}
	return s.dispatchLocked(ctx, action)
}

// DispatchIf commits action only if ctx is still live. Reward results use it so a
// request superseded by a newer cart change can never overwrite fresher rewards.
func (s *Session) DispatchIf(ctx context.Context, action cart.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.bound || ctx.Err() != nil {
		return false
	}
	// the commit is decided; the write must not be aborted by a later cancel
	if _, err := s.dispatchLocked(context.WithoutCancel(ctx), action); err != nil {
		s.logg.Error(ctx, "persisting reward sync failed", err)
	}
	return true
}

func (s *Session) dispatchLocked(ctx context.Context, action cart.Action) (cart.State, error) {
	s.state = cart.Reduce(s.state, action)
	s.metrics.IncAction(action.Name())

	if s.engine != nil {
		if follow := s.engine.Observe(s.state); follow != nil {
			s.state = cart.Reduce(s.state, follow)
			s.metrics.IncAction(follow.Name())
		}
	}

	if err := s.layer.Persist(ctx, s.scope, s.identity, s.state); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "action", action.Name()), "cart snapshot write failed", err)
		return s.state, err
	}
	return s.state, nil
}

func (s *Session) State() cart.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	return s.state
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed.Before(cutoff)
}

// Close stops reward sync and waits for in-flight syncs to drain. Dispatch keeps
// working afterwards so a request racing an eviction still persists its change.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.engine != nil {
		s.engine.Close()
		s.engine.Wait()
	}
}
