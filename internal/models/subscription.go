package models

import "time"

// Subscription mirrors the Stripe state for one user. It is written by the
// billing webhook and only ever read by the request path. An empty PriceID
// means the user has never completed checkout (or the record was cleared on
// cancellation) and is the canonical "not subscribed" state.
type Subscription struct {
	UserID           string     `json:"user_id" db:"user_id"`
	CustomerID       string     `json:"stripe_customer_id" db:"stripe_customer_id"`
	SubscriptionID   string     `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	PriceID          string     `json:"stripe_price_id" db:"stripe_price_id"`
	CurrentPeriodEnd *time.Time `json:"stripe_current_period_end" db:"stripe_current_period_end"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}
