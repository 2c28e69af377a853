package middleware

import "context"

// Shopper is who a cart request acts for. DeviceID scopes the live session;
// UserID is set only when a valid bearer token was presented.
type Shopper struct {
	DeviceID string
	UserID   string
}

func (s Shopper) SignedIn() bool { return s.UserID != "" }

type shopperKey struct{}

// ShopperFromContext returns the zero Shopper when the identity middleware has not run.
func ShopperFromContext(ctx context.Context) Shopper {
	if ctx == nil {
		return Shopper{}
	}
	s, _ := ctx.Value(shopperKey{}).(Shopper)
	return s
}

func WithShopper(ctx context.Context, s Shopper) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, shopperKey{}, s)
}

// UserIDFromContext returns the authenticated shopper, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string { return ShopperFromContext(ctx).UserID }

func DeviceIDFromContext(ctx context.Context) string { return ShopperFromContext(ctx).DeviceID }

func WithUserID(ctx context.Context, userID string) context.Context {
	s := ShopperFromContext(ctx)
	s.UserID = userID
	return WithShopper(ctx, s)
}

// WithDeviceID sets the device scope while keeping any user already attached.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	s := ShopperFromContext(ctx)
	s.DeviceID = deviceID
	return WithShopper(ctx, s)
}
