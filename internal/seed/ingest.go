package seed

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/tidwall/gjson"
)

const (
	CookieName = "cart_seed"

	noticeItemNames = 3
)

var ErrMalformed = errors.New("malformed seed payload")

type Outcome string

const (
	OutcomeAbsent    Outcome = "absent"
	OutcomeMalformed Outcome = "malformed"
	OutcomeEmpty     Outcome = "empty"
	OutcomeIngested  Outcome = "ingested"
)

// Attribution labels where a seeded cart came from.
type Attribution struct {
	Source   string
	Medium   string
	Campaign string
}

// Dispatcher applies an action to the live cart.
type Dispatcher interface {
	Dispatch(ctx context.Context, action cart.Action) (cart.State, error)
}

type Options struct {
	CookieName string
	NoticeTTL  time.Duration
	Defaults   Attribution
	Logger     *logger.Logger
	Metrics    *metrics.CartMetrics
}

type Result struct {
	Outcome Outcome
	Added   int
	Notice  *Notice
}

// Ingestor absorbs the one-shot seed cookie into a cart.
type Ingestor struct {
	cookieName string
	notices    NoticeStore
	ttl        time.Duration
	defaults   Attribution
	logg       *logger.Logger
	metrics    *metrics.CartMetrics
}

func NewIngestor(notices NoticeStore, opts Options) (*Ingestor, error) {
	if notices == nil {
		return nil, errors.New("notice store required")
	}
	name := strings.TrimSpace(opts.CookieName)
	if name == "" {
		name = CookieName
	}
	defaults := opts.Defaults
	if defaults.Source == "" {
		defaults.Source = "content"
	}
	if defaults.Medium == "" {
		defaults.Medium = "cart_seed"
	}
	if defaults.Campaign == "" {
		defaults.Campaign = "direct"
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Ingestor{
		cookieName: name,
		notices:    notices,
		ttl:        opts.NoticeTTL,
		defaults:   defaults,
		logg:       logg,
		metrics:    opts.Metrics,
	}, nil
}

func (i *Ingestor) CookieName() string {
	return i.cookieName
}

// Ingest consumes the seed cookie at most once. The cookie is deleted on every path
// where it was present, whether or not any item survived validation.
func (i *Ingestor) Ingest(ctx context.Context, jar CookieJar, target Dispatcher, scope string) (Result, error) {
	value, ok := jar.Value(i.cookieName)
	if !ok {
		return Result{Outcome: OutcomeAbsent}, nil
	}
	defer jar.Delete(i.cookieName)

	payload, err := DecodePayload(value)
	if err != nil {
		i.logg.Warn(i.logg.WithField(ctx, "reason", err.Error()), "dropping seed cookie")
		i.metrics.IncSeed(string(OutcomeMalformed))
		return Result{Outcome: OutcomeMalformed}, nil
	}

	items := shopperItems(cart.ParseItems(payload.Get("items")))
	if len(items) == 0 {
		i.logg.Warn(ctx, "seed cookie carried no valid items")
		i.metrics.IncSeed(string(OutcomeEmpty))
		return Result{Outcome: OutcomeEmpty}, nil
	}

	if _, err := target.Dispatch(ctx, cart.AddItems{Items: items}); err != nil {
		// the items are in the live cart; only the snapshot write failed
		i.logg.Error(ctx, "persisting seeded cart failed", err)
	}

	notice := i.buildNotice(payload.Get("attribution"), items)
	if err := i.notices.Put(ctx, scope, notice, i.ttl); err != nil {
		i.logg.Error(ctx, "storing seed attribution notice failed", err)
	}

	i.metrics.IncSeed(string(OutcomeIngested))
	i.logg.Info(i.logg.WithFields(ctx, map[string]any{
		"items":    len(items),
		"source":   notice.Source,
		"campaign": notice.Campaign,
	}), "seed cart ingested")
	return Result{Outcome: OutcomeIngested, Added: len(items), Notice: &notice}, nil
}

// TakeNotice pops the pending attribution notice for scope.
func (i *Ingestor) TakeNotice(ctx context.Context, scope string) (Notice, bool, error) {
	return i.notices.Take(ctx, scope)
}

func (i *Ingestor) buildNotice(attr gjson.Result, items []cart.LineItem) Notice {
	notice := Notice{
		ItemCount: len(items),
		Source:    firstNonEmpty(attr.Get("source").String(), i.defaults.Source),
		Medium:    firstNonEmpty(attr.Get("medium").String(), i.defaults.Medium),
		Campaign:  firstNonEmpty(attr.Get("campaign").String(), i.defaults.Campaign),
		Items:     make([]string, 0, noticeItemNames),
	}
	for _, item := range items {
		if len(notice.Items) == noticeItemNames {
			break
		}
		notice.Items = append(notice.Items, item.Name)
	}
	return notice
}

// DecodePayload decodes a base64url (padded or raw) JSON seed document with a non-empty items array.
func DecodePayload(value string) (gjson.Result, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "%") {
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
	if err != nil {
		return gjson.Result{}, ErrMalformed
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, ErrMalformed
	}
	doc := gjson.ParseBytes(raw)
	items := doc.Get("items")
	if !doc.IsObject() || !items.IsArray() || len(items.Array()) == 0 {
		return gjson.Result{}, ErrMalformed
	}
	return doc, nil
}

// shopperItems drops reward-flagged entries; rewards only ever come from the reward service.
func shopperItems(items []cart.LineItem) []cart.LineItem {
	out := items[:0]
	for _, item := range items {
		if !item.IsReward {
			out = append(out, item)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
