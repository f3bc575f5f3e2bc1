// Package quota gates metered endpoints behind the free-tier limit and the
// paid subscription check.
package quota

import (
	"context"
	"errors"
	"fmt"
)

// ErrExceeded is returned by Check when a free-tier user has spent their
// allowance. Handlers map it to 403.
var ErrExceeded = errors.New("free tier limit exceeded")

// Counter is the slice of the usage ledger the gate needs.
type Counter interface {
	Count(ctx context.Context, userID string) (int, error)
	Increment(ctx context.Context, userID string) error
}

// Entitlements reports whether a user holds an active paid plan.
type Entitlements interface {
	IsActive(ctx context.Context, userID string) bool
}

// Decision is the per-request outcome of the pre-check. Handlers carry it from
// Check to Consume so the subscription is resolved exactly once per request.
type Decision struct {
	Allowed bool `json:"allowed"`
	Pro     bool `json:"is_pro"`
}

// Gate composes the usage ledger and the subscription resolver into the
// allow/consume pair every metered handler runs.
//
// Check runs before the provider call; Consume runs only after it succeeds,
// so a failed upstream call never burns quota.
type Gate struct {
	ledger       Counter
	entitlements Entitlements
	freeLimit    int
}

func NewGate(ledger Counter, entitlements Entitlements, freeLimit int) *Gate {
	return &Gate{
		ledger:       ledger,
		entitlements: entitlements,
		freeLimit:    freeLimit,
	}
}

// Check decides whether the request may proceed. Pro users always pass and
// never consume the free ledger; free users pass while count < freeLimit.
// A denied free user gets ErrExceeded.
func (g *Gate) Check(ctx context.Context, userID string) (Decision, error) {
	if g.entitlements.IsActive(ctx, userID) {
		return Decision{Allowed: true, Pro: true}, nil
	}

	count, err := g.ledger.Count(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("read usage count: %w", err)
	}
	if count >= g.freeLimit {
		return Decision{Allowed: false, Pro: false}, ErrExceeded
	}
	return Decision{Allowed: true, Pro: false}, nil
}

// Consume records one metered call for a free-tier user. It is a no-op for Pro
// users: their ledger is frozen, never reset or decremented.
func (g *Gate) Consume(ctx context.Context, userID string, d Decision) error {
	if d.Pro {
		return nil
	}
	return g.ledger.Increment(ctx, userID)
}

// Remaining returns the free calls left, floored at zero. Pro users report the
// full limit since they never draw from it.
type Remaining struct {
	Count     int  `json:"count"`
	Limit     int  `json:"limit"`
	Pro       bool `json:"is_pro"`
	Remaining int  `json:"remaining"`
}

func (g *Gate) Usage(ctx context.Context, userID string) (Remaining, error) {
	pro := g.entitlements.IsActive(ctx, userID)
	count, err := g.ledger.Count(ctx, userID)
	if err != nil {
		return Remaining{}, fmt.Errorf("read usage count: %w", err)
	}
	left := g.freeLimit - count
	if left < 0 {
		left = 0
	}
	return Remaining{Count: count, Limit: g.freeLimit, Pro: pro, Remaining: left}, nil
}
