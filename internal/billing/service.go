// Package billing wires Stripe checkout and webhook events into the
// subscription records the quota gate reads. The billing engine itself stays
// on Stripe's side; this only keeps the local mirror current.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	stripesub "github.com/stripe/stripe-go/v79/subscription"

	"github.com/ismafavesco/Esifi/internal/config"
	"github.com/ismafavesco/Esifi/internal/models"
	"github.com/ismafavesco/Esifi/internal/store"
	"github.com/ismafavesco/Esifi/internal/subscription"
)

const userIDMetadataKey = "user_id"

type Service struct {
	store    store.SubscriptionStore
	resolver *subscription.Resolver
	cfg      config.BillingConfig
}

func NewService(s store.SubscriptionStore, r *subscription.Resolver, cfg config.BillingConfig) *Service {
	stripe.Key = cfg.StripeSecretKey
	return &Service{store: s, resolver: r, cfg: cfg}
}

// CreateCheckoutSession starts a subscription Checkout Session for the user
// and returns the hosted payment page URL. The user ID rides along as
// metadata so the webhook can key the record back to our identity space.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string) (string, error) {
	if s.cfg.ProMonthlyPrice == "" {
		return "", fmt.Errorf("billing not configured: missing price id")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.ProMonthlyPrice),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{userIDMetadataKey: userID},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{userIDMetadataKey: userID},
		},
		SuccessURL: stripe.String(s.cfg.FrontendURL + "/dashboard?billing=success"),
		CancelURL:  stripe.String(s.cfg.FrontendURL + "/dashboard?billing=cancel"),
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleEvent applies a verified Stripe event to the local subscription
// table. Unhandled event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("unmarshal checkout session: %w", err)
		}
		userID := sess.Metadata[userIDMetadataKey]
		if userID == "" || sess.Subscription == nil {
			return fmt.Errorf("checkout session missing user metadata or subscription")
		}
		return s.syncSubscription(ctx, userID, sess.Subscription.ID)

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("unmarshal invoice: %w", err)
		}
		if inv.Subscription == nil {
			return nil
		}
		// Renewals carry no checkout metadata; the user ID was stamped on the
		// subscription at checkout time.
		return s.syncSubscription(ctx, "", inv.Subscription.ID)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		return s.clearSubscription(ctx, &sub)

	default:
		slog.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

func (s *Service) syncSubscription(ctx context.Context, userID, subscriptionID string) error {
	sub, err := stripesub.Get(subscriptionID, nil)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}

	if userID == "" {
		userID = sub.Metadata[userIDMetadataKey]
	}
	if userID == "" {
		return fmt.Errorf("subscription %s has no user metadata", subscriptionID)
	}

	record := recordFromStripe(userID, sub)
	if err := s.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("store subscription for %s: %w", userID, err)
	}

	s.resolver.Invalidate(ctx, userID)
	slog.Info("subscription updated", "user_id", userID, "period_end", record.CurrentPeriodEnd)
	return nil
}

func (s *Service) clearSubscription(ctx context.Context, sub *stripe.Subscription) error {
	userID := sub.Metadata[userIDMetadataKey]
	if userID == "" {
		existing, err := s.store.GetByCustomer(ctx, customerID(sub))
		if err != nil || existing == nil {
			return fmt.Errorf("cannot map deleted subscription %s to a user", sub.ID)
		}
		userID = existing.UserID
	}

	// Clearing the price ID is the canonical "not subscribed" state.
	record := models.Subscription{
		UserID:         userID,
		CustomerID:     customerID(sub),
		SubscriptionID: sub.ID,
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("clear subscription for %s: %w", userID, err)
	}

	s.resolver.Invalidate(ctx, userID)
	slog.Info("subscription canceled", "user_id", userID)
	return nil
}

// recordFromStripe maps a Stripe subscription onto the local record shape.
func recordFromStripe(userID string, sub *stripe.Subscription) models.Subscription {
	record := models.Subscription{
		UserID:         userID,
		CustomerID:     customerID(sub),
		SubscriptionID: sub.ID,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		record.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		record.CurrentPeriodEnd = &end
	}
	return record
}

func customerID(sub *stripe.Subscription) string {
	if sub.Customer != nil {
		return sub.Customer.ID
	}
	return ""
}
