package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

type Options struct {
	Namespace string
	// Timeout bounds each storage call; zero leaves the caller's deadline alone.
	Timeout time.Duration
	Logger  *logger.Logger
	Metrics *metrics.CartMetrics
}

// Layer binds cart state to durable storage by identity.
type Layer struct {
	store     Storage
	namespace string
	timeout   time.Duration
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
}

func NewLayer(store Storage, opts Options) (*Layer, error) {
	if store == nil {
		return nil, errors.New("storage required")
	}
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace == "" {
		return nil, errors.New("namespace required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Layer{
		store:     store,
		namespace: namespace,
		timeout:   opts.Timeout,
		logg:      logg,
		metrics:   opts.Metrics,
	}, nil
}

func (l *Layer) Key(id Identity) string {
	return StorageKey(l.namespace, id)
}

// Restore reads the snapshot for id and returns the action that replaces the in-memory cart.
// A missing snapshot loads an empty cart, a corrupt one clears it. Storage I/O failures
// are returned so the caller keeps its current state.
func (l *Layer) Restore(ctx context.Context, scope string, id Identity) (cart.Action, error) {
	key := l.Key(id)
	ctx = l.logg.WithCartKey(ctx, key)

	callCtx, cancel := l.callContext(ctx)
	defer cancel()

	raw, err := l.store.Load(callCtx, scope, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return cart.LoadState{}, nil
		}
		l.metrics.IncPersistFailure("load")
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load cart snapshot")
	}

	load, err := DecodeSnapshot(raw)
	if err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "bytes", len(raw)), "discarding unreadable cart snapshot")
		return cart.ClearCart{}, nil
	}
	return load, nil
}

// Persist writes the full snapshot of state under id's key.
func (l *Layer) Persist(ctx context.Context, scope string, id Identity, state cart.State) error {
	payload, err := EncodeSnapshot(state)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
	}

	callCtx, cancel := l.callContext(ctx)
	defer cancel()

	if err := l.store.Save(callCtx, scope, l.Key(id), payload); err != nil {
		l.metrics.IncPersistFailure("save")
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "save cart snapshot")
	}
	return nil
}

// Forget removes the snapshot stored for id.
func (l *Layer) Forget(ctx context.Context, scope string, id Identity) error {
	callCtx, cancel := l.callContext(ctx)
	defer cancel()

	if err := l.store.Delete(callCtx, scope, l.Key(id)); err != nil {
		l.metrics.IncPersistFailure("delete")
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete cart snapshot")
	}
	return nil
}

func (l *Layer) Ping(ctx context.Context) error {
	callCtx, cancel := l.callContext(ctx)
	defer cancel()
	return l.store.Ping(callCtx)
}

func (l *Layer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}
