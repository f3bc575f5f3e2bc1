package store

import (
	"context"

	"github.com/ismafavesco/Esifi/internal/models"
)

// UsageStore persists per-user metered call counts.
type UsageStore interface {
	// GetCount returns the stored count for the user, 0 when no record exists.
	GetCount(ctx context.Context, userID string) (int, error)
	// Increment creates the record with count=1 or atomically adds 1 to it,
	// returning the new count. The operation must be a single upsert so two
	// racing requests from the same user never lose an update.
	Increment(ctx context.Context, userID string) (int, error)
}

// SubscriptionStore persists Stripe subscription state per user.
type SubscriptionStore interface {
	// Get returns (nil, nil) when the user has no subscription record.
	Get(ctx context.Context, userID string) (*models.Subscription, error)
	GetByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	Upsert(ctx context.Context, sub models.Subscription) error
}

// ConversationStore archives chat transcripts.
type ConversationStore interface {
	Save(ctx context.Context, conv models.Conversation) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
}

// Store bundles the three record stores behind one backing database.
type Store interface {
	UsageStore
	SubscriptionStore
	ConversationStore
}
