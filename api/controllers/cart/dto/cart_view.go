package cartdto

import cartmodel "github.com/angelmondragon/storefront-cart/internal/cart"

// CartView is the cart as returned to the storefront.
type CartView struct {
	Items            []cartmodel.LineItem `json:"items"`
	AppliedGiftCards []cartmodel.GiftCard `json:"appliedGiftCards"`
	AppliedDeals     []cartmodel.Deal     `json:"appliedDeals"`
	Total            float64              `json:"total"`
	ItemCount        int                  `json:"itemCount"`
	Authenticated    bool                 `json:"authenticated"`
	// Persisted is false when the change is live but the snapshot write failed.
	Persisted bool      `json:"persisted"`
	Rejected  int       `json:"rejected,omitempty"`
	Seed      *SeedView `json:"seed,omitempty"`
}

type SeedView struct {
	Outcome string `json:"outcome"`
	Added   int    `json:"added"`
}

type NoticeView struct {
	ItemCount int      `json:"itemCount"`
	Source    string   `json:"source"`
	Medium    string   `json:"medium"`
	Campaign  string   `json:"campaign"`
	Items     []string `json:"items"`
}
