package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	cartmodel "github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/internal/seed"
	"github.com/angelmondragon/storefront-cart/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const (
	maxItemParamLen = 1024
	maxCodeParamLen = 64
)

// Sessions hands out the device's live cart bound to the caller's identity.
type Sessions interface {
	Acquire(ctx context.Context, scope string, id persistence.Identity) (*session.Session, error)
}

// Seeder absorbs the seed cookie and serves the attribution notice it leaves behind.
type Seeder interface {
	Ingest(ctx context.Context, jar seed.CookieJar, target seed.Dispatcher, scope string) (seed.Result, error)
	TakeNotice(ctx context.Context, scope string) (seed.Notice, bool, error)
}

// CartFetch returns the caller's cart, absorbing a pending seed cookie first.
func CartFetch(sessions Sessions, seeder Seeder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, id, err := acquire(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var seeded *cartdto.SeedView
		if seeder != nil {
			result, err := seeder.Ingest(r.Context(), seed.NewHTTPCookieJar(w, r), sess, sess.Scope())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			seeded = newSeedView(result)
		}

		view := newCartView(sess.State(), id, true)
		view.Seed = seeded
		responses.WriteSuccess(w, view)
	}
}

// CartSeed ingests the seed cookie on demand and reports the outcome.
func CartSeed(sessions Sessions, seeder Seeder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if seeder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "seed ingestion unavailable"))
			return
		}
		sess, id, err := acquire(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := seeder.Ingest(r.Context(), seed.NewHTTPCookieJar(w, r), sess, sess.Scope())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := newCartView(sess.State(), id, true)
		view.Seed = &cartdto.SeedView{Outcome: string(result.Outcome), Added: result.Added}
		responses.WriteSuccess(w, view)
	}
}

// CartAttribution pops the one-shot seed notice. data is null when none is pending.
func CartAttribution(seeder Seeder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if seeder == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		scope := middleware.DeviceIDFromContext(r.Context())
		if scope == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "device context missing"))
			return
		}
		notice, ok, err := seeder.TakeNotice(r.Context(), scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read attribution notice"))
			return
		}
		if !ok {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, newNoticeView(notice))
	}
}

func CartAddItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := validators.ReadJSONBody(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := parseAddItem(doc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(w, r, sessions, logg, action, http.StatusCreated, 0)
	}
}

// CartAddItems adds a batch (reorder, shared cart). Invalid entries are skipped and counted.
func CartAddItems(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := validators.ReadJSONBody(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, rejected, err := parseAddItems(doc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(w, r, sessions, logg, action, http.StatusCreated, rejected)
	}
}

func CartUpdateQuantity(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.PathParam(chi.URLParam(r, "itemId"), "itemId", maxItemParamLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cartdto.UpdateQuantityRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(w, r, sessions, logg, cartmodel.UpdateQuantity{ID: itemID, Quantity: *payload.Quantity}, http.StatusOK, 0)
	}
}

func CartUpdateSubscription(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.PathParam(chi.URLParam(r, "itemId"), "itemId", maxItemParamLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cartdto.UpdateSubscriptionRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action := cartmodel.UpdateSubscription{ID: itemID, Subscription: toSubscription(payload.Subscription)}
		apply(w, r, sessions, logg, action, http.StatusOK, 0)
	}
}

func CartRemoveItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.PathParam(chi.URLParam(r, "itemId"), "itemId", maxItemParamLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(w, r, sessions, logg, cartmodel.RemoveItem{ID: itemID}, http.StatusOK, 0)
	}
}

func CartClear(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, logg, cartmodel.ClearCart{}, http.StatusOK, 0)
	}
}

func GiftCardApply(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartdto.ApplyGiftCardRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(w, r, sessions, logg, cartmodel.ApplyGiftCard{Card: toGiftCard(payload)}, http.StatusOK, 0)
	}
}

func GiftCardRemove(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := validators.PathParam(chi.URLParam(r, "code"), "code", maxCodeParamLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(w, r, sessions, logg, cartmodel.RemoveGiftCard{Code: code}, http.StatusOK, 0)
	}
}

func GiftCardsClear(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(w, r, sessions, logg, cartmodel.ClearGiftCards{}, http.StatusOK, 0)
	}
}

// apply dispatches action into the caller's session. A failed snapshot write is not a
// request failure: the change is live and the response says it was not persisted.
func apply(w http.ResponseWriter, r *http.Request, sessions Sessions, logg *logger.Logger, action cartmodel.Action, status int, rejected int) {
	sess, id, err := acquire(r, sessions)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	state, err := sess.Dispatch(r.Context(), action)
	if errors.Is(err, session.ErrUnbound) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cart session not ready"))
		return
	}

	view := newCartView(state, id, err == nil)
	view.Rejected = rejected
	responses.WriteSuccessStatus(w, status, view)
}

func acquire(r *http.Request, sessions Sessions) (*session.Session, persistence.Identity, error) {
	ctx := r.Context()
	shopper := middleware.ShopperFromContext(ctx)
	if shopper.DeviceID == "" {
		return nil, persistence.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "device context missing")
	}
	if sessions == nil {
		return nil, persistence.Identity{}, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable")
	}

	id := persistence.Anonymous()
	if shopper.SignedIn() {
		id = persistence.User(shopper.UserID)
	}

	sess, err := sessions.Acquire(ctx, shopper.DeviceID, id)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open cart session")
		}
		return nil, persistence.Identity{}, err
	}
	return sess, id, nil
}
