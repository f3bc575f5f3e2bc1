// Package usage meters free-tier AI calls per user.
package usage

import (
	"context"
	"fmt"

	"github.com/ismafavesco/Esifi/internal/store"
)

// Ledger tracks how many metered calls each user has consumed. Records are
// created lazily on the first increment and never deleted or reset here.
type Ledger struct {
	store store.UsageStore
}

func NewLedger(s store.UsageStore) *Ledger {
	return &Ledger{store: s}
}

// Count returns the consumed call count for the user, 0 when the user has no
// record yet or no identity was supplied.
func (l *Ledger) Count(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return l.store.GetCount(ctx, userID)
}

// Increment adds one metered call to the user's record, creating it with
// count=1 when absent. A missing identity is nothing to meter, not an error.
func (l *Ledger) Increment(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if _, err := l.store.Increment(ctx, userID); err != nil {
		return fmt.Errorf("increment usage for %s: %w", userID, err)
	}
	return nil
}
