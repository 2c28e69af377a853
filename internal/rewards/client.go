package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 1 << 20

// ErrRejected means the endpoint answered without success=true.
var ErrRejected = errors.New("reward service reported failure")

// HTTPClient calls the reward endpoint with one traced POST per evaluation.
type HTTPClient struct {
	endpoint *url.URL
	http     *http.Client
	tracer   trace.Tracer
	timeout  time.Duration
}

// NewHTTPClient leaves http.Client.Timeout unset; each call is bounded by its context and timeout.
func NewHTTPClient(endpoint string, timeout time.Duration, tracer trace.Tracer) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse reward endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("reward endpoint %q must be absolute", endpoint)
	}
	if tracer == nil {
		tracer = otel.Tracer("storefront-cart/rewards")
	}
	return &HTTPClient{
		endpoint: parsed,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer:  tracer,
		timeout: timeout,
	}, nil
}

func (c *HTTPClient) Evaluate(ctx context.Context, req Request) (Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "rewards.evaluate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", c.endpoint.String()),
		attribute.String("http.method", http.MethodPost),
		attribute.Int("cart.items", len(req.Items)),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, c.fail(span, fmt.Errorf("encode reward request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Result{}, c.fail(span, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, c.fail(span, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, c.fail(span, fmt.Errorf("read reward response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, c.fail(span, fmt.Errorf("reward service returned status %s", resp.Status))
	}

	result, err := DecodeResult(payload)
	if err != nil {
		return Result{}, c.fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("rewards.count", len(result.Rewards)),
		attribute.Int("rewards.deals", len(result.AppliedDeals)),
	)
	return result, nil
}

func (c *HTTPClient) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// DecodeResult reads `{success, rewards?, appliedDeals?}`.
func DecodeResult(payload []byte) (Result, error) {
	if !gjson.ValidBytes(payload) {
		return Result{}, fmt.Errorf("reward response is not valid json")
	}
	doc := gjson.ParseBytes(payload)
	if doc.Get("success").Type != gjson.True {
		return Result{}, ErrRejected
	}

	result := Result{Rewards: []cart.LineItem{}, AppliedDeals: []cart.Deal{}}
	doc.Get("rewards").ForEach(func(_, raw gjson.Result) bool {
		if reward, ok := decodeReward(raw); ok {
			result.Rewards = append(result.Rewards, reward)
		}
		return true
	})
	doc.Get("appliedDeals").ForEach(func(_, raw gjson.Result) bool {
		id := strings.TrimSpace(raw.Get("id").String())
		if id != "" {
			result.AppliedDeals = append(result.AppliedDeals, cart.Deal{ID: id, Description: raw.Get("description").String()})
		}
		return true
	})
	return result, nil
}

func decodeReward(raw gjson.Result) (cart.LineItem, bool) {
	id := strings.TrimSpace(raw.Get("id").String())
	if !raw.IsObject() || id == "" {
		return cart.LineItem{}, false
	}
	reward := cart.LineItem{
		ID:              id,
		ProductID:       raw.Get("productId").String(),
		SKU:             raw.Get("sku").String(),
		Name:            raw.Get("name").String(),
		Brand:           raw.Get("brand").String(),
		Image:           raw.Get("image").String(),
		Quantity:        int(raw.Get("quantity").Int()),
		Price:           raw.Get("price").Float(),
		ProductType:     raw.Get("productType").String(),
		ParentProductID: raw.Get("parentProductId").String(),
		IsReward:        true,
	}
	if src := raw.Get("rewardSource"); src.IsObject() {
		reward.RewardSource = &cart.RewardSource{
			Type:            cart.RewardKind(src.Get("type").String()),
			SourceID:        src.Get("sourceId").String(),
			Description:     src.Get("description").String(),
			ParentProductID: src.Get("parentProductId").String(),
		}
	}
	return reward, true
}
