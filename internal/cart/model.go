package cart

import (
	"sort"
	"strings"
)

const (
	// HardMaxQuantity caps every non-reward line regardless of the product ceiling.
	HardMaxQuantity = 999

	maxProductIDLen = 100
)

// RewardKind identifies what granted a reward line.
type RewardKind string

const (
	RewardKindProduct RewardKind = "product"
	RewardKindDeal    RewardKind = "deal"
)

// RetExclude flags a line as excluded from returns and/or exchanges.
type RetExclude string

const (
	RetExcludeNone      RetExclude = "none"
	RetExcludeReturns   RetExclude = "returns"
	RetExcludeExchanges RetExclude = "exchanges"
	RetExcludeAll       RetExclude = "all"
)

func (r RetExclude) IsValid() bool {
	switch r {
	case RetExcludeNone, RetExcludeReturns, RetExcludeExchanges, RetExcludeAll:
		return true
	}
	return false
}

// Subscription captures the shopper's intent to receive the item on a schedule.
type Subscription struct {
	Enabled        bool `json:"enabled"`
	IntervalMonths int  `json:"intervalMonths"`
}

// RewardSource describes the promotion that produced a reward line.
type RewardSource struct {
	Type            RewardKind `json:"type"`
	SourceID        string     `json:"sourceId"`
	Description     string     `json:"description"`
	ParentProductID string     `json:"parentProductId,omitempty"`
}

// LineItem is one distinct purchasable unit in the cart.
type LineItem struct {
	ID              string            `json:"id"`
	ProductID       string            `json:"productId"`
	Name            string            `json:"name"`
	Brand           string            `json:"brand,omitempty"`
	SKU             string            `json:"sku,omitempty"`
	Price           float64           `json:"price"`
	Image           string            `json:"image,omitempty"`
	URL             string            `json:"url,omitempty"`
	Quantity        int               `json:"quantity"`
	ProductType     string            `json:"productType,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
	Subscription    *Subscription     `json:"subscription,omitempty"`
	MaxCartQty      *int              `json:"maxCartQty"`
	RetExclude      RetExclude        `json:"retExclude,omitempty"`
	IsReward        bool              `json:"isReward,omitempty"`
	RewardSource    *RewardSource     `json:"rewardSource,omitempty"`
	ParentProductID string            `json:"parentProductId,omitempty"`
}

// Key identifies the cart line: the item id plus its canonical option set.
func (li LineItem) Key() string {
	if li.IsReward || len(li.Options) == 0 {
		return li.ID
	}
	return li.ID + "::" + canonicalOptions(li.Options)
}

// QuantityCeiling returns min(maxCartQty, HardMaxQuantity).
func (li LineItem) QuantityCeiling() int {
	if li.MaxCartQty != nil && *li.MaxCartQty > 0 && *li.MaxCartQty < HardMaxQuantity {
		return *li.MaxCartQty
	}
	return HardMaxQuantity
}

// GiftCard is a gift card currently applied to the cart.
type GiftCard struct {
	Code             string   `json:"code"`
	AmountApplied    float64  `json:"amountApplied"`
	RemainingBalance float64  `json:"remainingBalance"`
	Currency         string   `json:"currency"`
	OriginalBalance  *float64 `json:"originalBalance,omitempty"`
}

// Deal is a cart-level promotion reported by the reward service.
type Deal struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// State is the cart aggregate. Total and ItemCount are derived.
type State struct {
	Items            []LineItem `json:"items"`
	AppliedGiftCards []GiftCard `json:"appliedGiftCards"`
	AppliedDeals     []Deal     `json:"appliedDeals"`
	Total            float64    `json:"total"`
	ItemCount        int        `json:"itemCount"`
}

// Empty returns the zero cart with non-nil collections.
func Empty() State {
	return State{
		Items:            []LineItem{},
		AppliedGiftCards: []GiftCard{},
		AppliedDeals:     []Deal{},
	}
}

// NonRewardItems returns the shopper-controlled lines in cart order.
func (s State) NonRewardItems() []LineItem {
	out := make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if !item.IsReward {
			out = append(out, item)
		}
	}
	return out
}

// RewardItems returns the promotion-granted lines in cart order.
func (s State) RewardItems() []LineItem {
	out := make([]LineItem, 0)
	for _, item := range s.Items {
		if item.IsReward {
			out = append(out, item)
		}
	}
	return out
}

// ResolveProductID normalizes the owning-product identifier, falling back to the item id.
func ResolveProductID(productID, id string) string {
	resolved := strings.TrimSpace(productID)
	if resolved == "" {
		resolved = strings.TrimSpace(id)
	}
	return truncate(resolved, maxProductIDLen)
}

func canonicalOptions(opts map[string]string) string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+opts[k])
	}
	return strings.Join(parts, "&")
}

func sameOptions(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if other, ok := b[k]; !ok || other != v {
			return false
		}
	}
	return true
}
