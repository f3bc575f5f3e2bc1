package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ismafavesco/Esifi/internal/models"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count FROM user_api_limits WHERE user_id = $1`, userID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query usage count: %w", err)
	}
	return count, nil
}

func (s *Postgres) Increment(ctx context.Context, userID string) (int, error) {
	// Single upsert so concurrent increments for the same user serialize at
	// the row level instead of racing through a read-modify-write.
	var count int
	err := s.db.QueryRow(ctx,
		`INSERT INTO user_api_limits (user_id, count)
		 VALUES ($1, 1)
		 ON CONFLICT (user_id)
		 DO UPDATE SET count = user_api_limits.count + 1, updated_at = now()
		 RETURNING count`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment usage count: %w", err)
	}
	return count, nil
}

func (s *Postgres) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.getSubscription(ctx, `WHERE user_id = $1`, userID)
}

func (s *Postgres) GetByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	return s.getSubscription(ctx, `WHERE stripe_customer_id = $1`, customerID)
}

func (s *Postgres) getSubscription(ctx context.Context, where, arg string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.QueryRow(ctx,
		`SELECT user_id, COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		        COALESCE(stripe_price_id, ''), stripe_current_period_end, updated_at
		 FROM user_subscriptions `+where,
		arg,
	).Scan(&sub.UserID, &sub.CustomerID, &sub.SubscriptionID, &sub.PriceID, &sub.CurrentPeriodEnd, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return &sub, nil
}

func (s *Postgres) Upsert(ctx context.Context, sub models.Subscription) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_subscriptions
		   (user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id, stripe_current_period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id)
		 DO UPDATE SET stripe_customer_id = $2, stripe_subscription_id = $3,
		               stripe_price_id = $4, stripe_current_period_end = $5, updated_at = now()`,
		sub.UserID, sub.CustomerID, sub.SubscriptionID, sub.PriceID, sub.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *Postgres) Save(ctx context.Context, conv models.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO conversations (id, user_id, messages) VALUES ($1, $2, $3)`,
		conv.ID, conv.UserID, messages,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *Postgres) ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, messages, created_at
		 FROM conversations WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var (
			c   models.Conversation
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.UserID, &raw, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal(raw, &c.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
