package cartdto

type UpdateQuantityRequest struct {
	// Zero or less removes the line.
	Quantity *int `json:"quantity" validate:"required"`
}

type SubscriptionBody struct {
	Enabled        bool `json:"enabled"`
	IntervalMonths int  `json:"intervalMonths" validate:"gte=0,lte=12"`
}

// UpdateSubscriptionRequest clears the subscription when Subscription is null.
type UpdateSubscriptionRequest struct {
	Subscription *SubscriptionBody `json:"subscription"`
}

type ApplyGiftCardRequest struct {
	Code             string   `json:"code" validate:"required,max=64"`
	AmountApplied    float64  `json:"amountApplied" validate:"gte=0"`
	RemainingBalance float64  `json:"remainingBalance" validate:"gte=0"`
	Currency         string   `json:"currency" validate:"omitempty,len=3"`
	OriginalBalance  *float64 `json:"originalBalance" validate:"omitempty,gte=0"`
}
