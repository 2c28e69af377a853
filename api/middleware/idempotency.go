package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	redisclient "github.com/angelmondragon/storefront-cart/pkg/redis"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	replayedHeader        = "Idempotent-Replayed"
	maxIdempotencyKeyLen  = 128
	defaultIdempotencyTTL = 24 * time.Hour
	inFlightTTL           = 30 * time.Second
)

// ReplayStore keeps recorded responses keyed by caller and Idempotency-Key.
type ReplayStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

// replayEntry is either a claim (Done false) held while the first request runs,
// or the finished response.
type replayEntry struct {
	Fingerprint string `json:"fp"`
	Done        bool   `json:"done"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type replayer struct {
	store ReplayStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency makes cart mutations safe to retry. A request carrying Idempotency-Key
// claims the key, runs, and records its answer; a retry with the same key and body
// gets that answer back. The same key with another body, or while the first request is
// still running, is a conflict. 5xx and 429 answers drop the claim so the retry
// reaches the cart. When the store is unreachable requests run unprotected.
func Idempotency(store ReplayStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		p := &replayer{store: store, ttl: ttl, logg: logg}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if id == "" || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			p.serve(next, w, r, id)
		})
	}
}

func (p *replayer) serve(next http.Handler, w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	if len(id) > maxIdempotencyKeyLen {
		responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeTooLarge, "request body too large"))
			return
		}
		responses.WriteError(ctx, p.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := p.store.IdempotencyKey(replayScope(r), id)
	fingerprint := fingerprintBody(body)

	claim, _ := json.Marshal(replayEntry{Fingerprint: fingerprint})
	won, err := p.store.SetNX(ctx, key, string(claim), inFlightTTL)
	if err != nil {
		p.logError(ctx, "idempotency claim failed", err)
		next.ServeHTTP(w, r)
		return
	}
	if !won {
		p.answerRetry(w, r, key, fingerprint, next)
		return
	}

	rec := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(rec, r)
	p.settle(context.WithoutCancel(ctx), key, fingerprint, rec)
}

// answerRetry handles a key someone already claimed.
func (p *replayer) answerRetry(w http.ResponseWriter, r *http.Request, key, fingerprint string, next http.Handler) {
	ctx := r.Context()
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		if redisclient.IsMissing(err) {
			// claim expired or was dropped between SETNX and GET
			responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried, try again"))
			return
		}
		p.logError(ctx, "idempotency lookup failed", err)
		next.ServeHTTP(w, r)
		return
	}
	var entry replayEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		p.logError(ctx, "decode idempotency record", err)
		next.ServeHTTP(w, r)
		return
	}
	switch {
	case entry.Fingerprint != fingerprint:
		responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with a different request body"))
	case !entry.Done:
		responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if entry.ContentType != "" {
			w.Header().Set("Content-Type", entry.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	}
}

// settle records a final answer or releases the claim.
func (p *replayer) settle(ctx context.Context, key, fingerprint string, rec *responseCapture) {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		if err := p.store.Del(ctx, key); err != nil {
			p.logError(ctx, "release idempotency claim", err)
		}
		return
	}
	payload, err := json.Marshal(replayEntry{
		Fingerprint: fingerprint,
		Done:        true,
		Status:      status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	})
	if err == nil {
		err = p.store.Set(ctx, key, string(payload), p.ttl)
	}
	if err != nil {
		p.logError(ctx, "persist idempotency record", err)
	}
}

func (p *replayer) logError(ctx context.Context, msg string, err error) {
	if p.logg != nil {
		p.logg.Error(ctx, msg, err)
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// replayScope ties a key to the cart owner and the route so two devices never share records.
func replayScope(r *http.Request) string {
	shopper := ShopperFromContext(r.Context())
	route := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern() + "@" + r.URL.Path
	}
	return strings.Join([]string{shopper.DeviceID, shopper.UserID, r.Method, route}, "|")
}

func fingerprintBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
