package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeReplayStore struct {
	data map[string]string
	err  error
}

func newFakeReplayStore() *fakeReplayStore {
	return &fakeReplayStore{data: make(map[string]string)}
}

func (f *fakeReplayStore) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeReplayStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeReplayStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeReplayStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeReplayStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"data":{"call":%d}}`, n)
	})
}

func mutation(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req = req.WithContext(WithDeviceID(req.Context(), "device-1"))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyReplaysRecordedResponse(t *testing.T) {
	var calls int32
	handler := Idempotency(newFakeReplayStore(), time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, mutation("k-1", `{"quantity":1}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, mutation("k-1", `{"quantity":1}`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical replay, got %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	var calls int32
	handler := Idempotency(newFakeReplayStore(), time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), mutation("k-1", `{"quantity":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, mutation("k-1", `{"quantity":2}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestIdempotencyPassesThroughWithoutKey(t *testing.T) {
	var calls int32
	store := newFakeReplayStore()
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), mutation("", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), mutation("", `{}`))

	if calls != 2 || len(store.data) != 0 {
		t.Fatalf("expected plain pass-through, calls=%d stored=%d", calls, len(store.data))
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	var calls int32
	store := newFakeReplayStore()
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusServiceUnavailable))

	handler.ServeHTTP(httptest.NewRecorder(), mutation("k-1", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), mutation("k-1", `{}`))

	if calls != 2 {
		t.Fatalf("expected retry to reach the handler, calls=%d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("expected claim released, stored=%v", store.data)
	}
}

func TestIdempotencyConflictsWhileFirstRequestRuns(t *testing.T) {
	store := newFakeReplayStore()
	var inner http.Handler
	var retry *httptest.ResponseRecorder
	inner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if retry == nil {
			retry = httptest.NewRecorder()
			Idempotency(store, time.Hour, nil)(inner).ServeHTTP(retry, mutation("k-1", `{"quantity":1}`))
		}
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	Idempotency(store, time.Hour, nil)(inner).ServeHTTP(first, mutation("k-1", `{"quantity":1}`))

	if first.Code != http.StatusOK {
		t.Fatalf("expected first request served, got %d", first.Code)
	}
	if retry.Code != http.StatusConflict {
		t.Fatalf("expected concurrent retry rejected, got %d", retry.Code)
	}
}

func TestIdempotencyScopesKeysPerDevice(t *testing.T) {
	var calls int32
	handler := Idempotency(newFakeReplayStore(), time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), mutation("shared", `{}`))
	other := mutation("shared", `{}`)
	other = other.WithContext(WithDeviceID(other.Context(), "device-2"))
	handler.ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("expected devices to keep separate records, calls=%d", calls)
	}
}

func TestIdempotencyFailsOpenOnStoreError(t *testing.T) {
	var calls int32
	store := newFakeReplayStore()
	store.err = fmt.Errorf("connection refused")
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, mutation("k-1", `{}`))
	if rec.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("expected request served, code=%d calls=%d", rec.Code, calls)
	}
}
