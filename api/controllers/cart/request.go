package cart

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	cartmodel "github.com/angelmondragon/storefront-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
)

const maxBatchItems = 100

// parseAddItem reads {"item": {...}, "quantity": n}. The item goes through the same
// sanitizer as every other untrusted source; quantity defaults to the item's own.
func parseAddItem(doc gjson.Result) (cartmodel.AddItem, error) {
	raw := doc.Get("item")
	if !raw.IsObject() {
		return cartmodel.AddItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item is required").WithDetails(map[string]string{"item": "is required"})
	}
	item, ok := cartmodel.ParseItem(raw)
	if !ok {
		return cartmodel.AddItem{}, pkgerrors.New(pkgerrors.CodeValidation, "item rejected").WithDetails(map[string]string{"item": "needs id, name and a price between 0 and 100000"})
	}

	qty := item.Quantity
	if q := doc.Get("quantity"); q.Exists() {
		if q.Type != gjson.Number || math.IsNaN(q.Float()) || math.IsInf(q.Float(), 0) {
			return cartmodel.AddItem{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a number").WithDetails(map[string]string{"quantity": "is invalid"})
		}
		qty = int(math.Floor(math.Min(q.Float(), cartmodel.HardMaxQuantity)))
	}
	return cartmodel.AddItem{Item: item, Quantity: qty}, nil
}

// parseAddItems keeps every valid entry; rejected reports how many were dropped.
func parseAddItems(doc gjson.Result) (action cartmodel.AddItems, rejected int, err error) {
	raw := doc.Get("items")
	if !raw.IsArray() {
		return cartmodel.AddItems{}, 0, pkgerrors.New(pkgerrors.CodeValidation, "items must be an array").WithDetails(map[string]string{"items": "is required"})
	}
	entries := raw.Array()
	if len(entries) > maxBatchItems {
		return cartmodel.AddItems{}, 0, pkgerrors.New(pkgerrors.CodeValidation, "too many items").WithDetails(map[string]string{"items": "must hold at most 100 entries"})
	}
	items := cartmodel.ParseItems(raw)
	if len(items) == 0 {
		return cartmodel.AddItems{}, len(entries), pkgerrors.New(pkgerrors.CodeValidation, "no valid items").WithDetails(map[string]string{"items": "no entry passed validation"})
	}
	return cartmodel.AddItems{Items: items}, len(entries) - len(items), nil
}

func toSubscription(body *cartdto.SubscriptionBody) *cartmodel.Subscription {
	if body == nil {
		return nil
	}
	return &cartmodel.Subscription{Enabled: body.Enabled, IntervalMonths: body.IntervalMonths}
}

func toGiftCard(req cartdto.ApplyGiftCardRequest) cartmodel.GiftCard {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	return cartmodel.GiftCard{
		Code:             strings.TrimSpace(req.Code),
		AmountApplied:    req.AmountApplied,
		RemainingBalance: req.RemainingBalance,
		Currency:         currency,
		OriginalBalance:  req.OriginalBalance,
	}
}
