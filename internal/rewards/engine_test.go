package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
)

type stubClient struct {
	mu       sync.Mutex
	requests []Request
	evaluate func(ctx context.Context, req Request) (Result, error)
}

func (s *stubClient) Evaluate(ctx context.Context, req Request) (Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.evaluate
	s.mu.Unlock()
	if fn == nil {
		return Result{}, nil
	}
	return fn(ctx, req)
}

func (s *stubClient) calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

type recordingDispatcher struct {
	mu      sync.Mutex
	actions []cart.Action
}

func (r *recordingDispatcher) DispatchIf(ctx context.Context, action cart.Action) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	r.actions = append(r.actions, action)
	return true
}

func (r *recordingDispatcher) committed() []cart.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cart.Action(nil), r.actions...)
}

func cartWith(t *testing.T, qty int) cart.State {
	t.Helper()
	return cart.Reduce(cart.Empty(), cart.AddItem{Item: cart.LineItem{ID: "a", Name: "A", Price: 10, SKU: "SKU-A"}, Quantity: qty})
}

func newTestEngine(t *testing.T, client Client, target Dispatcher, debounce time.Duration) *Engine {
	t.Helper()
	engine, err := NewEngine(client, target, Options{Debounce: debounce})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		engine.Wait()
	})
	return engine
}

func TestObserveDedupesUnchangedSignature(t *testing.T) {
	client := &stubClient{}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 0)

	state := cartWith(t, 2)
	if follow := engine.Observe(state); follow != nil {
		t.Fatalf("expected no inline action, got %T", follow)
	}
	engine.Wait()

	// a gift card edit leaves the shopper lines untouched
	withCard := cart.Reduce(state, cart.ApplyGiftCard{Card: cart.GiftCard{Code: "GC", AmountApplied: 5}})
	engine.Observe(withCard)
	engine.Wait()

	if got := len(client.calls()); got != 1 {
		t.Fatalf("expected one request, got %d", got)
	}
	if got := len(target.committed()); got != 1 {
		t.Fatalf("expected one commit, got %d", got)
	}
}

func TestObserveEmptyCartClearsWithoutNetwork(t *testing.T) {
	client := &stubClient{}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 0)

	follow := engine.Observe(cart.Empty())
	if _, ok := follow.(cart.SyncRewards); !ok {
		t.Fatalf("expected inline SyncRewards, got %T", follow)
	}
	if follow := engine.Observe(cart.Empty()); follow != nil {
		t.Fatalf("expected repeat observe of empty cart to be a no-op, got %T", follow)
	}

	stale := cart.Empty()
	stale.AppliedDeals = []cart.Deal{{ID: "d"}}
	if _, ok := engine.Observe(stale).(cart.SyncRewards); !ok {
		t.Fatal("expected leftover deals to be cleared")
	}
	if len(client.calls()) != 0 {
		t.Fatal("expected no network call for an empty cart")
	}
}

func TestObserveBuildsRequestAndCommitsVerbatim(t *testing.T) {
	client := &stubClient{evaluate: func(context.Context, Request) (Result, error) {
		return Result{
			Rewards:      []cart.LineItem{{ID: "gift", IsReward: true, Quantity: 1, ParentProductID: "a"}},
			AppliedDeals: []cart.Deal{{ID: "d1", Description: "free gift"}},
		}, nil
	}}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 0)

	engine.Observe(cartWith(t, 3))
	engine.Wait()

	reqs := client.calls()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	req := reqs[0]
	if len(req.Items) != 1 || req.Items[0].CartItemID != "a" || req.Items[0].ProductID != "a" || req.Items[0].SKU != "SKU-A" || req.Items[0].Quantity != 3 {
		t.Fatalf("unexpected request items %+v", req.Items)
	}
	if req.Subtotal != 30 {
		t.Fatalf("expected subtotal 30, got %v", req.Subtotal)
	}

	committed := target.committed()
	if len(committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(committed))
	}
	synced, ok := committed[0].(cart.SyncRewards)
	if !ok || len(synced.Rewards) != 1 || synced.Rewards[0].ID != "gift" || len(synced.AppliedDeals) != 1 {
		t.Fatalf("unexpected commit %+v", committed[0])
	}
}

func TestObserveFailureClearsRewards(t *testing.T) {
	client := &stubClient{evaluate: func(context.Context, Request) (Result, error) {
		return Result{}, errors.New("503")
	}}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 0)

	engine.Observe(cartWith(t, 1))
	engine.Wait()

	committed := target.committed()
	if len(committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(committed))
	}
	if synced := committed[0].(cart.SyncRewards); len(synced.Rewards) != 0 || len(synced.AppliedDeals) != 0 {
		t.Fatalf("expected empty sync on failure, got %+v", synced)
	}
}

func TestNewerSignatureCancelsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	client := &stubClient{evaluate: func(ctx context.Context, req Request) (Result, error) {
		if req.Items[0].Quantity == 1 {
			close(started)
			<-ctx.Done()
			// a late answer from the stale request must never commit
			return Result{Rewards: []cart.LineItem{{ID: "stale", Quantity: 1}}}, nil
		}
		return Result{Rewards: []cart.LineItem{{ID: "fresh", Quantity: 1}}}, nil
	}}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 0)

	engine.Observe(cartWith(t, 1))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never started")
	}
	engine.Observe(cartWith(t, 2))
	engine.Wait()

	committed := target.committed()
	if len(committed) != 1 {
		t.Fatalf("expected only the fresh result to commit, got %d", len(committed))
	}
	if got := committed[0].(cart.SyncRewards).Rewards[0].ID; got != "fresh" {
		t.Fatalf("expected fresh rewards, got %s", got)
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	client := &stubClient{}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 50*time.Millisecond)

	for qty := 1; qty <= 3; qty++ {
		engine.Observe(cartWith(t, qty))
	}
	engine.Wait()

	reqs := client.calls()
	if len(reqs) != 1 || reqs[0].Items[0].Quantity != 3 {
		t.Fatalf("expected a single request for the last state, got %+v", reqs)
	}
}

func TestCloseStopsSyncing(t *testing.T) {
	client := &stubClient{}
	target := &recordingDispatcher{}
	engine := newTestEngine(t, client, target, 0)

	engine.Close()
	if follow := engine.Observe(cartWith(t, 1)); follow != nil {
		t.Fatalf("expected no action after close, got %T", follow)
	}
	engine.Wait()
	if len(client.calls()) != 0 {
		t.Fatal("expected no request after close")
	}
}

func TestResetForcesResync(t *testing.T) {
	client := &stubClient{}
	engine := newTestEngine(t, client, &recordingDispatcher{}, 0)

	state := cartWith(t, 1)
	engine.Observe(state)
	engine.Wait()
	engine.Reset()
	engine.Observe(state)
	engine.Wait()

	if got := len(client.calls()); got != 2 {
		t.Fatalf("expected reset to force a second request, got %d", got)
	}
}

func TestSignatureIsOrderSensitive(t *testing.T) {
	a := cart.LineItem{ID: "a", Quantity: 1, Price: 1}
	b := cart.LineItem{ID: "b", Quantity: 1, Price: 1}
	if Signature([]cart.LineItem{a, b}) == Signature([]cart.LineItem{b, a}) {
		t.Fatal("expected order to change the signature")
	}
	c := a
	c.Price = 2
	if Signature([]cart.LineItem{a}) == Signature([]cart.LineItem{c}) {
		t.Fatal("expected price to change the signature")
	}
	d := a
	d.Name = "renamed"
	if Signature([]cart.LineItem{a}) != Signature([]cart.LineItem{d}) {
		t.Fatal("expected display fields to be ignored")
	}
}
