package cart

// Action is the closed set of cart mutations accepted by Reduce.
type Action interface {
	action()
	// Name is the stable identifier used in logs and metrics.
	Name() string
}

// AddItem adds Quantity units of Item, merging into a matching line when present.
type AddItem struct {
	Item     LineItem
	Quantity int
}

// AddItems applies AddItem for each element, dropping reward-flagged input.
type AddItems struct {
	Items []LineItem
}

// RemoveItem deletes a line and any reward it earned.
type RemoveItem struct {
	ID string
}

// UpdateQuantity sets the quantity of a non-reward line; zero or less removes it.
type UpdateQuantity struct {
	ID       string
	Quantity int
}

// UpdateSubscription sets or clears (nil) the subscription intent of a non-reward line.
type UpdateSubscription struct {
	ID           string
	Subscription *Subscription
}

// ClearCart resets the aggregate.
type ClearCart struct{}

// LoadState replaces the cart with a persisted snapshot.
type LoadState struct {
	Items            []LineItem
	AppliedGiftCards []GiftCard
	AppliedDeals     []Deal
}

// ApplyGiftCard upserts a gift card by case-insensitive code.
type ApplyGiftCard struct {
	Card GiftCard
}

// RemoveGiftCard drops the gift card with the given code.
type RemoveGiftCard struct {
	Code string
}

// ClearGiftCards drops every applied gift card.
type ClearGiftCards struct{}

// SyncRewards replaces every reward line and the applied deals.
type SyncRewards struct {
	Rewards      []LineItem
	AppliedDeals []Deal
}

func (AddItem) action()            {}
func (AddItems) action()           {}
func (RemoveItem) action()         {}
func (UpdateQuantity) action()     {}
func (UpdateSubscription) action() {}
func (ClearCart) action()          {}
func (LoadState) action()          {}
func (ApplyGiftCard) action()      {}
func (RemoveGiftCard) action()     {}
func (ClearGiftCards) action()     {}
func (SyncRewards) action()        {}

func (AddItem) Name() string            { return "add_item" }
func (AddItems) Name() string           { return "add_items" }
func (RemoveItem) Name() string         { return "remove_item" }
func (UpdateQuantity) Name() string     { return "update_quantity" }
func (UpdateSubscription) Name() string { return "update_subscription" }
func (ClearCart) Name() string          { return "clear_cart" }
func (LoadState) Name() string          { return "load_state" }
func (ApplyGiftCard) Name() string      { return "apply_gift_card" }
func (RemoveGiftCard) Name() string     { return "remove_gift_card" }
func (ClearGiftCards) Name() string     { return "clear_gift_cards" }
func (SyncRewards) Name() string        { return "sync_rewards" }
