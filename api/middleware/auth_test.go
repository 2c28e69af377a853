package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/storefront-cart/pkg/auth"
	"github.com/angelmondragon/storefront-cart/pkg/config"
)

func identityHandler(t *testing.T, seenDevice, seenUser *string) http.Handler {
	t.Helper()
	opts := IdentityOptions{
		JWT:          config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10},
		DeviceCookie: "sf_device",
	}
	return Identity(opts, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seenDevice = DeviceIDFromContext(r.Context())
		*seenUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestIdentityMintsDeviceCookie(t *testing.T) {
	var device, user string
	rec := httptest.NewRecorder()
	identityHandler(t, &device, &user).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if _, err := uuid.Parse(device); err != nil {
		t.Fatalf("expected minted uuid device, got %q", device)
	}
	if user != "" {
		t.Fatalf("expected anonymous caller, got %q", user)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != device || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
}

func TestIdentityReusesValidCookieAndReplacesGarbage(t *testing.T) {
	var device, user string
	handler := identityHandler(t, &device, &user)

	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sf_device", Value: existing})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if device != existing || len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected cookie reused, device=%q cookies=%d", device, len(rec.Result().Cookies()))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sf_device", Value: "not-a-uuid"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if device == "not-a-uuid" || len(rec.Result().Cookies()) != 1 {
		t.Fatalf("expected garbage cookie replaced, device=%q", device)
	}
}

func TestIdentityResolvesBearerUser(t *testing.T) {
	var device, user string
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), "user-7")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	identityHandler(t, &device, &user).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || user != "user-7" {
		t.Fatalf("expected user-7, got code=%d user=%q", rec.Code, user)
	}
}

func TestIdentityRejectsInvalidBearer(t *testing.T) {
	var device, user string
	for _, header := range []string{"Bearer nope", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		identityHandler(t, &device, &user).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401 got %d", header, rec.Code)
		}
	}
}

func TestRequestIDHonoursPrintableIDs(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "edge-123" {
		t.Fatalf("expected caller id kept, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\n")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected minted id for unprintable header, got %q", seen)
	}
}
