package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
)

type pingReply struct {
	Scope      string `json:"scope"`
	Status     string `json:"status"`
	ServerTime string `json:"server_time"`
	DeviceID   string `json:"device_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Identity   string `json:"identity,omitempty"`
}

func newPing(scope string) pingReply {
	return pingReply{Scope: scope, Status: "ok", ServerTime: time.Now().UTC().Format(time.RFC3339)}
}

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, newPing("public"))
	}
}

// CartPing reports which shopper the identity middleware resolved, so clients can
// check their bearer token and device cookie before touching the cart.
func CartPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopper := middleware.ShopperFromContext(r.Context())
		reply := newPing("cart")
		reply.DeviceID = shopper.DeviceID
		reply.Identity = "anonymous"
		if shopper.SignedIn() {
			reply.UserID = shopper.UserID
			reply.Identity = "signed_in"
		}
		responses.WriteSuccess(w, reply)
	}
}
