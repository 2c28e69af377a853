package cart

import (
	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	cartmodel "github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/internal/seed"
)

func newCartView(state cartmodel.State, id persistence.Identity, persisted bool) cartdto.CartView {
	view := cartdto.CartView{
		Items:            state.Items,
		AppliedGiftCards: state.AppliedGiftCards,
		AppliedDeals:     state.AppliedDeals,
		Total:            state.Total,
		ItemCount:        state.ItemCount,
		Authenticated:    id.IsAuthenticated(),
		Persisted:        persisted,
	}
	if view.Items == nil {
		view.Items = []cartmodel.LineItem{}
	}
	if view.AppliedGiftCards == nil {
		view.AppliedGiftCards = []cartmodel.GiftCard{}
	}
	if view.AppliedDeals == nil {
		view.AppliedDeals = []cartmodel.Deal{}
	}
	return view
}

func newSeedView(result seed.Result) *cartdto.SeedView {
	if result.Outcome == seed.OutcomeAbsent {
		return nil
	}
	return &cartdto.SeedView{Outcome: string(result.Outcome), Added: result.Added}
}

func newNoticeView(notice seed.Notice) cartdto.NoticeView {
	items := notice.Items
	if items == nil {
		items = []string{}
	}
	return cartdto.NoticeView{
		ItemCount: notice.ItemCount,
		Source:    notice.Source,
		Medium:    notice.Medium,
		Campaign:  notice.Campaign,
		Items:     items,
	}
}
