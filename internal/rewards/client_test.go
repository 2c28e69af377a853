package rewards

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL+"/api/cart/rewards", time.Second, noop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestHTTPClientEvaluate(t *testing.T) {
	t.Parallel()

	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cart/rewards" {
			http.Error(w, "wrong route", http.StatusNotFound)
			return
		}
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"success": true,
			"rewards": [
				{"id":"gift","productId":"gift-p","sku":"G1","name":"Gift","brand":"Acme","image":"/g.png","quantity":1,"price":0,
				 "rewardSource":{"type":"product","sourceId":"promo-1","description":"Buy A get gift","parentProductId":"a"}},
				{"name":"no id"}
			],
			"appliedDeals": [{"id":"deal-1","description":"10% off"}]
		}`)
	})

	req := BuildRequest([]cart.LineItem{{ID: "a", ProductID: "a", SKU: "SKU-A", Quantity: 2, Price: 12.5}})
	result, err := client.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	sent := gjson.ParseBytes(body)
	if sent.Get("items.0.cartItemId").String() != "a" || sent.Get("items.0.quantity").Int() != 2 || sent.Get("subtotal").Float() != 25 {
		t.Fatalf("unexpected request body %s", body)
	}

	if len(result.Rewards) != 1 {
		t.Fatalf("expected one reward, got %+v", result.Rewards)
	}
	gift := result.Rewards[0]
	if !gift.IsReward || gift.RewardSource == nil || gift.RewardSource.ParentProductID != "a" || gift.Quantity != 1 {
		t.Fatalf("unexpected reward %+v", gift)
	}
	if len(result.AppliedDeals) != 1 || result.AppliedDeals[0].ID != "deal-1" {
		t.Fatalf("unexpected deals %+v", result.AppliedDeals)
	}
}

func TestHTTPClientFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"non-success flag": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"success":false,"rewards":[{"id":"x","quantity":1}]}`)
		},
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"invalid json": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"success":`)
		},
	}
	for name, handler := range cases {
		client := newTestClient(t, handler)
		if _, err := client.Evaluate(context.Background(), Request{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	client := newTestClient(t, cases["non-success flag"])
	if _, err := client.Evaluate(context.Background(), Request{}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestHTTPClientHonorsCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Evaluate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewHTTPClient("/api/cart/rewards", time.Second, nil); err == nil {
		t.Fatal("expected relative endpoint to be rejected")
	}
}
