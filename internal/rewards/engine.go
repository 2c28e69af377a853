package rewards

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

type Options struct {
	// Debounce delays each request so a burst of edits issues one call.
	Debounce time.Duration
	// BaseContext parents every request and carries log fields. It must outlive the HTTP request.
	BaseContext context.Context
	Logger      *logger.Logger
	Metrics     *metrics.RewardSyncMetrics
}

// Engine keeps reward lines consistent with the shopper lines of one cart.
// At most one request is outstanding; a newer signature cancels the older one.
type Engine struct {
	client   Client
	target   Dispatcher
	debounce time.Duration
	logg     *logger.Logger
	metrics  *metrics.RewardSyncMetrics

	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	lastSig string
	hasSig  bool
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

func NewEngine(client Client, target Dispatcher, opts Options) (*Engine, error) {
	if client == nil {
		return nil, errors.New("reward client required")
	}
	if target == nil {
		return nil, errors.New("dispatcher required")
	}
	parent := opts.BaseContext
	if parent == nil {
		parent = context.Background()
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	base, stop := context.WithCancel(parent)
	return &Engine{
		client:   client,
		target:   target,
		debounce: opts.Debounce,
		logg:     logg,
		metrics:  opts.Metrics,
		base:     base,
		stop:     stop,
	}, nil
}

// Observe is called after every cart change, under the owner's lock. It never blocks on the
// network. When the shopper lines are gone it returns the clearing action for the caller
// to apply inline; otherwise it returns nil.
func (e *Engine) Observe(state cart.State) cart.Action {
	items := state.NonRewardItems()
	sig := Signature(items)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	changed := !e.hasSig || sig != e.lastSig
	e.lastSig, e.hasSig = sig, true

	if len(items) == 0 {
		e.cancelLocked()
		if changed || len(state.RewardItems()) > 0 || len(state.AppliedDeals) > 0 {
			e.metrics.Inc(metrics.OutcomeCleared)
			return cart.SyncRewards{}
		}
		return nil
	}
	if !changed {
		e.metrics.Inc(metrics.OutcomeSkipped)
		return nil
	}

	e.cancelLocked()
	ctx, cancel := context.WithCancel(e.base)
	e.cancel = cancel
	e.wg.Add(1)
	go e.sync(ctx, BuildRequest(items))
	return nil
}

func (e *Engine) sync(ctx context.Context, req Request) {
	defer e.wg.Done()

	if e.debounce > 0 {
		timer := time.NewTimer(e.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.metrics.Inc(metrics.OutcomeSuperseded)
			return
		case <-timer.C:
		}
	}

	start := time.Now()
	result, err := e.client.Evaluate(ctx, req)
	e.metrics.ObserveLatency(time.Since(start))

	if ctx.Err() != nil {
		e.metrics.Inc(metrics.OutcomeSuperseded)
		return
	}

	action := cart.SyncRewards{Rewards: result.Rewards, AppliedDeals: result.AppliedDeals}
	outcome := metrics.OutcomeApplied
	if err != nil {
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{"error": err.Error(), "items": len(req.Items)}), "reward sync failed, clearing rewards")
		action = cart.SyncRewards{}
		outcome = metrics.OutcomeFailed
	}

	if !e.target.DispatchIf(ctx, action) {
		outcome = metrics.OutcomeSuperseded
	}
	e.metrics.Inc(outcome)
}

func (e *Engine) cancelLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Reset forgets the last signature so the next Observe always syncs. Used after identity changes.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.hasSig = false
	e.lastSig = ""
}

// Close cancels outstanding work. It does not wait; call Wait outside any lock the
// dispatcher takes.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.cancelLocked()
	e.mu.Unlock()
	e.stop()
}

// Wait blocks until every sync goroutine has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}
