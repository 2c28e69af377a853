package rewards

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/cart"
)

// Request is the payload sent to the reward evaluation endpoint.
type Request struct {
	Items    []RequestItem `json:"items"`
	Subtotal float64       `json:"subtotal"`
}

type RequestItem struct {
	CartItemID string  `json:"cartItemId"`
	ProductID  string  `json:"productId"`
	SKU        string  `json:"sku"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

// Result is the server's verdict. The client never prices or filters rewards itself.
type Result struct {
	Rewards      []cart.LineItem
	AppliedDeals []cart.Deal
}

// Client evaluates the rewards a cart qualifies for.
type Client interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// Dispatcher commits an action unless ctx was canceled first. The check and the
// commit happen under the same lock that cancellation is issued from.
type Dispatcher interface {
	DispatchIf(ctx context.Context, action cart.Action) bool
}

// BuildRequest turns the shopper lines into the evaluation payload.
func BuildRequest(items []cart.LineItem) Request {
	req := Request{Items: make([]RequestItem, 0, len(items))}
	for _, item := range items {
		req.Items = append(req.Items, RequestItem{
			CartItemID: item.Key(),
			ProductID:  cart.ResolveProductID(item.ProductID, item.ID),
			SKU:        item.SKU,
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
	}
	req.Subtotal = cart.Subtotal(items)
	return req
}
