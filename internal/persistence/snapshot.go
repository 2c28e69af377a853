package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/tidwall/gjson"
)

// ErrCorruptSnapshot means the stored payload could not be read as either snapshot shape.
var ErrCorruptSnapshot = errors.New("corrupt cart snapshot")

// Snapshot is the stored cart shape. Derived totals are never persisted.
type Snapshot struct {
	Items            []cart.LineItem `json:"items"`
	AppliedGiftCards []cart.GiftCard `json:"appliedGiftCards"`
	AppliedDeals     []cart.Deal     `json:"appliedDeals"`
}

// EncodeSnapshot serializes the full cart. Writes are always whole snapshots.
func EncodeSnapshot(state cart.State) ([]byte, error) {
	snap := Snapshot{
		Items:            state.Items,
		AppliedGiftCards: state.AppliedGiftCards,
		AppliedDeals:     state.AppliedDeals,
	}
	if snap.Items == nil {
		snap.Items = []cart.LineItem{}
	}
	if snap.AppliedGiftCards == nil {
		snap.AppliedGiftCards = []cart.GiftCard{}
	}
	if snap.AppliedDeals == nil {
		snap.AppliedDeals = []cart.Deal{}
	}
	return json.Marshal(snap)
}

// DecodeSnapshot reads either the current object shape or the legacy bare item array.
// Every item is re-normalized, since stored carts may predate newer invariants.
func DecodeSnapshot(raw []byte) (cart.LoadState, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return cart.LoadState{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return cart.LoadState{}, ErrCorruptSnapshot
	}

	doc := gjson.ParseBytes(raw)
	switch {
	case doc.Type == gjson.Null:
		return cart.LoadState{}, nil
	case doc.IsArray():
		return cart.LoadState{Items: storedItems(doc)}, nil
	case doc.IsObject():
		return cart.LoadState{
			Items:            storedItems(doc.Get("items")),
			AppliedGiftCards: storedGiftCards(doc.Get("appliedGiftCards")),
			AppliedDeals:     storedDeals(doc.Get("appliedDeals")),
		}, nil
	default:
		return cart.LoadState{}, ErrCorruptSnapshot
	}
}

func storedItems(raw gjson.Result) []cart.LineItem {
	if !raw.IsArray() {
		return nil
	}
	var out []cart.LineItem
	raw.ForEach(func(_, value gjson.Result) bool {
		if item, ok := cart.ParseStoredItem(value); ok {
			out = append(out, item)
		}
		return true
	})
	return out
}

func storedGiftCards(raw gjson.Result) []cart.GiftCard {
	if !raw.IsArray() {
		return nil
	}
	var out []cart.GiftCard
	raw.ForEach(func(_, value gjson.Result) bool {
		code := strings.TrimSpace(value.Get("code").String())
		if !value.IsObject() || code == "" {
			return true
		}
		card := cart.GiftCard{
			Code:             code,
			AmountApplied:    numberOrZero(value.Get("amountApplied")),
			RemainingBalance: numberOrZero(value.Get("remainingBalance")),
			Currency:         strings.TrimSpace(value.Get("currency").String()),
		}
		if original := value.Get("originalBalance"); original.Type == gjson.Number {
			v := original.Float()
			card.OriginalBalance = &v
		}
		out = append(out, card)
		return true
	})
	return out
}

func storedDeals(raw gjson.Result) []cart.Deal {
	if !raw.IsArray() {
		return nil
	}
	var out []cart.Deal
	raw.ForEach(func(_, value gjson.Result) bool {
		id := strings.TrimSpace(value.Get("id").String())
		if id == "" {
			return true
		}
		out = append(out, cart.Deal{ID: id, Description: value.Get("description").String()})
		return true
	})
	return out
}

func numberOrZero(v gjson.Result) float64 {
	if v.Type != gjson.Number {
		return 0
	}
	return v.Float()
}
