// Package subscription resolves whether a user holds an active paid plan.
package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/ismafavesco/Esifi/internal/cache"
	"github.com/ismafavesco/Esifi/internal/store"
)

const cacheTTL = 60 * time.Second

// Resolver decides whether a user's Stripe subscription is currently active.
// The grace window absorbs billing-provider clock and settlement skew: a plan
// counts as active until CurrentPeriodEnd + grace. This is the single place
// that boundary is computed.
type Resolver struct {
	store store.SubscriptionStore
	cache *cache.Cache // optional
	grace time.Duration
	now   func() time.Time
}

func NewResolver(s store.SubscriptionStore, c *cache.Cache, grace time.Duration) *Resolver {
	return &Resolver{
		store: s,
		cache: c,
		grace: grace,
		now:   time.Now,
	}
}

// IsActive reports whether the user holds an active paid entitlement. It fails
// open to false: no identity, no record, no price ID, or a store error all
// resolve to "not subscribed" rather than an error, so billing trouble never
// blocks a request outright — the caller just gets free-tier treatment.
func (r *Resolver) IsActive(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}

	if r.cache != nil {
		var active bool
		if err := r.cache.Get(ctx, cacheKey(userID), &active); err == nil {
			return active
		}
	}

	active := r.resolve(ctx, userID)

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey(userID), active, cacheTTL); err != nil {
			slog.Debug("subscription cache set failed", "user_id", userID, "error", err)
		}
	}

	return active
}

func (r *Resolver) resolve(ctx context.Context, userID string) bool {
	sub, err := r.store.Get(ctx, userID)
	if err != nil {
		slog.Warn("subscription lookup failed, treating as free tier", "user_id", userID, "error", err)
		return false
	}
	if sub == nil || sub.PriceID == "" || sub.CurrentPeriodEnd == nil {
		return false
	}
	return sub.CurrentPeriodEnd.Add(r.grace).After(r.now())
}

// Invalidate drops the cached status so the next check hits the store. The
// billing webhook calls this after rewriting a subscription record.
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	if r.cache == nil || userID == "" {
		return
	}
	if err := r.cache.Delete(ctx, cacheKey(userID)); err != nil {
		slog.Debug("subscription cache invalidate failed", "user_id", userID, "error", err)
	}
}

func cacheKey(userID string) string {
	return "sub:active:" + userID
}
