package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: make(map[string]int64)}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(policy, caller string) string {
	return policy + ":" + caller
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksDeviceOverLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("cart-mutations", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, mutation("", `{}`))
		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		case i == 2 && rec.Code != http.StatusTooManyRequests:
			t.Fatalf("expected 429 once over limit, got %d", rec.Code)
		}
	}
	if store.counts["cart-mutations:device:device-1"] != 3 {
		t.Fatalf("expected device-scoped counter, got %v", store.counts)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("cart", time.Minute, 5), store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if store.counts["cart:ip:9.9.9.9"] != 1 {
		t.Fatalf("expected ip counter, got %v", store.counts)
	}
}

func TestRateLimitIgnoresReadsAndStoreFailures(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("cart", time.Minute, 1), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("reads must not be throttled, got %d", rec.Code)
		}
	}

	store.err = errors.New("redis down")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, mutation("", `{}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fail-open on store error, got %d", rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("cart", 0, 0), store, nil)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), mutation("", `{}`))
	if len(store.counts) != 0 {
		t.Fatal("disabled policy should not count")
	}
}
