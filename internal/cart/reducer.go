package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Reduce applies a single action to the cart and returns the next state.
//
// Reduce never mutates its input and never fails: malformed payloads are normalized
// or ignored. Orphaned rewards are pruned and totals recomputed after every action.
func Reduce(state State, a Action) State {
	next := cloneState(state)

	switch act := a.(type) {
	case AddItem:
		next.Items = addItem(next.Items, act.Item, act.Quantity)
	case AddItems:
		for _, item := range act.Items {
			if item.IsReward {
				continue
			}
			next.Items = addItem(next.Items, item, item.Quantity)
		}
	case RemoveItem:
		next.Items = removeItem(next.Items, act.ID)
	case UpdateQuantity:
		next.Items = updateQuantity(next.Items, act.ID, act.Quantity)
	case UpdateSubscription:
		next.Items = updateSubscription(next.Items, act.ID, act.Subscription)
	case ClearCart:
		next = Empty()
	case LoadState:
		next = Empty()
		for _, item := range act.Items {
			normalized := NormalizeItem(item)
			if normalized.Quantity <= 0 {
				continue
			}
			next.Items = append(next.Items, normalized)
		}
		for _, card := range act.AppliedGiftCards {
			next.AppliedGiftCards = applyGiftCard(next.AppliedGiftCards, card)
		}
		next.AppliedDeals = append(next.AppliedDeals, act.AppliedDeals...)
	case ApplyGiftCard:
		next.AppliedGiftCards = applyGiftCard(next.AppliedGiftCards, act.Card)
	case RemoveGiftCard:
		next.AppliedGiftCards = removeGiftCard(next.AppliedGiftCards, act.Code)
	case ClearGiftCards:
		next.AppliedGiftCards = []GiftCard{}
	case SyncRewards:
		next.Items = replaceRewards(next.Items, act.Rewards)
		next.AppliedDeals = append([]Deal{}, act.AppliedDeals...)
	default:
		return state
	}

	next.Items = pruneOrphanRewards(next.Items)
	return withTotals(next)
}

func cloneState(s State) State {
	return State{
		Items:            append([]LineItem{}, s.Items...),
		AppliedGiftCards: append([]GiftCard{}, s.AppliedGiftCards...),
		AppliedDeals:     append([]Deal{}, s.AppliedDeals...),
	}
}

func addItem(items []LineItem, item LineItem, qty int) []LineItem {
	item = NormalizeItem(item)
	if item.ID == "" {
		return items
	}
	item.IsReward = false
	item.RewardSource = nil
	item.ParentProductID = ""
	if qty < 1 {
		qty = 1
	}

	for i, existing := range items {
		if existing.IsReward || existing.ID != item.ID || !sameOptions(existing.Options, item.Options) {
			continue
		}
		merged := existing
		if item.MaxCartQty != nil {
			merged.MaxCartQty = item.MaxCartQty
		}
		merged.Quantity = clampQuantity(existing.Quantity+qty, merged.QuantityCeiling())
		items[i] = merged
		return items
	}

	item.Quantity = clampQuantity(qty, item.QuantityCeiling())
	return append(items, item)
}

// matchLines returns the indexes addressed by id: exact line keys first, then bare item ids.
func matchLines(items []LineItem, id string) []int {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	var byKey, byID []int
	for i, item := range items {
		if item.Key() == id {
			byKey = append(byKey, i)
		} else if item.ID == id {
			byID = append(byID, i)
		}
	}
	if len(byKey) > 0 {
		return byKey
	}
	return byID
}

// removeItem drops the addressed lines. Their rewards are left to the orphan prune that runs
// after every action, so a reward survives while another variant of its parent remains.
func removeItem(items []LineItem, id string) []LineItem {
	matched := matchLines(items, id)
	if len(matched) == 0 {
		return items
	}
	drop := make(map[int]struct{}, len(matched))
	for _, idx := range matched {
		drop[idx] = struct{}{}
	}
	out := make([]LineItem, 0, len(items)-len(drop))
	for i, item := range items {
		if _, ok := drop[i]; !ok {
			out = append(out, item)
		}
	}
	return out
}

func updateQuantity(items []LineItem, id string, qty int) []LineItem {
	matched := matchLines(items, id)
	if len(matched) == 0 {
		return items
	}
	drop := map[int]struct{}{}
	for _, idx := range matched {
		item := items[idx]
		if item.IsReward {
			continue
		}
		if qty <= 0 {
			drop[idx] = struct{}{}
			continue
		}
		item.Quantity = clampQuantity(qty, item.QuantityCeiling())
		items[idx] = item
	}
	if len(drop) == 0 {
		return items
	}
	out := make([]LineItem, 0, len(items))
	for i, item := range items {
		if _, ok := drop[i]; !ok {
			out = append(out, item)
		}
	}
	return out
}

func updateSubscription(items []LineItem, id string, sub *Subscription) []LineItem {
	for _, idx := range matchLines(items, id) {
		item := items[idx]
		if item.IsReward {
			continue
		}
		item.Subscription = normalizeSubscription(sub)
		items[idx] = item
	}
	return items
}

func replaceRewards(items []LineItem, rewards []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items)+len(rewards))
	for _, item := range items {
		if !item.IsReward {
			out = append(out, item)
		}
	}
	for _, reward := range rewards {
		if reward.Quantity <= 0 {
			continue
		}
		reward.IsReward = true
		reward.ProductID = ResolveProductID(reward.ProductID, reward.ID)
		parent := strings.TrimSpace(reward.ParentProductID)
		if parent == "" && reward.RewardSource != nil {
			parent = strings.TrimSpace(reward.RewardSource.ParentProductID)
		}
		reward.ParentProductID = parent
		out = append(out, reward)
	}
	return out
}

// pruneOrphanRewards drops rewards whose parent is no longer an active non-reward line.
// A reward with no parent pointer has nothing to follow and is dropped too.
func pruneOrphanRewards(items []LineItem) []LineItem {
	active := map[string]struct{}{}
	for _, item := range items {
		if item.IsReward || item.Quantity <= 0 {
			continue
		}
		active[item.ID] = struct{}{}
		active[ResolveProductID(item.ProductID, item.ID)] = struct{}{}
	}

	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if item.IsReward {
			if _, ok := active[item.ParentProductID]; !ok || item.ParentProductID == "" {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

func applyGiftCard(cards []GiftCard, card GiftCard) []GiftCard {
	card.Code = strings.TrimSpace(card.Code)
	if card.Code == "" {
		return cards
	}
	for i, existing := range cards {
		if strings.EqualFold(existing.Code, card.Code) {
			cards[i] = card
			return cards
		}
	}
	return append(cards, card)
}

func removeGiftCard(cards []GiftCard, code string) []GiftCard {
	code = strings.TrimSpace(code)
	out := make([]GiftCard, 0, len(cards))
	for _, card := range cards {
		if !strings.EqualFold(card.Code, code) {
			out = append(out, card)
		}
	}
	return out
}

func withTotals(s State) State {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	s.Total = Subtotal(s.Items)
	s.ItemCount = count
	return s
}

// Subtotal sums price x quantity over the given lines, rounded to cents.
func Subtotal(items []LineItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2).InexactFloat64()
}

func clampQuantity(qty, ceiling int) int {
	if qty < 1 {
		return 1
	}
	if qty > ceiling {
		return ceiling
	}
	return qty
}
