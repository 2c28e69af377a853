package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	pkgAuth "github.com/angelmondragon/storefront-cart/pkg/auth"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const deviceCookieMaxAge = 365 * 24 * time.Hour

type IdentityOptions struct {
	JWT          config.JWTConfig
	DeviceCookie string
	// SecureCookie marks the device cookie Secure; off for plain-http local development.
	SecureCookie bool
}

// Identity resolves who owns the cart. A bearer token is optional, but when one is
// sent it must verify. Every caller gets a device id, minted into a cookie on first visit.
func Identity(opts IdentityOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	cookieName := opts.DeviceCookie
	if cookieName == "" {
		cookieName = "sf_device"
	}
	verifier, verifierErr := pkgAuth.NewVerifier(opts.JWT)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var shopper Shopper

			if token, present := validators.BearerToken(r.Header.Get("Authorization")); present {
				if token == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				if verifierErr != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, verifierErr, "token verification unavailable"))
					return
				}
				claims, err := verifier.Verify(token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				shopper.UserID = claims.UserID
			}

			if c, err := r.Cookie(cookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					shopper.DeviceID = parsed.String()
				}
			}
			if shopper.DeviceID == "" {
				shopper.DeviceID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    shopper.DeviceID,
					Path:     "/",
					MaxAge:   int(deviceCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   opts.SecureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx = WithShopper(ctx, shopper)
			if logg != nil {
				ctx = logg.WithDeviceID(ctx, shopper.DeviceID)
				if shopper.SignedIn() {
					ctx = logg.WithUserID(ctx, shopper.UserID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
