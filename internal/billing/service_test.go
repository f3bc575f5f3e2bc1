package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/ismafavesco/Esifi/internal/config"
	"github.com/ismafavesco/Esifi/internal/store"
	"github.com/ismafavesco/Esifi/internal/subscription"
)

func newTestService(mem *store.Memory) *Service {
	resolver := subscription.NewResolver(mem, nil, 24*time.Hour)
	return NewService(mem, resolver, config.BillingConfig{})
}

func TestRecordFromStripeMapsPriceAndPeriodEnd(t *testing.T) {
	periodEnd := time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC)
	sub := &stripe.Subscription{
		ID:               "sub_123",
		Customer:         &stripe.Customer{ID: "cus_456"},
		CurrentPeriodEnd: periodEnd.Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_pro_monthly"}},
			},
		},
	}

	record := recordFromStripe("u1", sub)

	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, "cus_456", record.CustomerID)
	assert.Equal(t, "sub_123", record.SubscriptionID)
	assert.Equal(t, "price_pro_monthly", record.PriceID)
	require.NotNil(t, record.CurrentPeriodEnd)
	assert.True(t, record.CurrentPeriodEnd.Equal(periodEnd))
}

func TestRecordFromStripeToleratesMissingFields(t *testing.T) {
	record := recordFromStripe("u1", &stripe.Subscription{ID: "sub_123"})

	assert.Empty(t, record.PriceID)
	assert.Empty(t, record.CustomerID)
	assert.Nil(t, record.CurrentPeriodEnd)
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	svc := newTestService(store.NewMemory())

	err := svc.HandleEvent(context.Background(), stripe.Event{Type: "charge.refunded"})
	assert.NoError(t, err)
}

func TestSubscriptionDeletedClearsPriceID(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	end := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, mem.Upsert(context.Background(), recordFromStripe("u1", &stripe.Subscription{
		ID:               "sub_123",
		Customer:         &stripe.Customer{ID: "cus_456"},
		CurrentPeriodEnd: end.Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_pro_monthly"}}},
		},
	})))

	raw, err := json.Marshal(map[string]interface{}{
		"id":       "sub_123",
		"customer": map[string]string{"id": "cus_456"},
		"metadata": map[string]string{"user_id": "u1"},
	})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), stripe.Event{
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)

	record, err := mem.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Empty(t, record.PriceID, "clearing the price id marks the plan inactive")
	assert.Equal(t, "sub_123", record.SubscriptionID)
}

func TestSubscriptionDeletedFallsBackToCustomerLookup(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	end := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, mem.Upsert(context.Background(), recordFromStripe("u1", &stripe.Subscription{
		ID:               "sub_123",
		Customer:         &stripe.Customer{ID: "cus_456"},
		CurrentPeriodEnd: end.Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_pro_monthly"}}},
		},
	})))

	// No user metadata on the deleted subscription; the customer ID maps it back.
	raw, err := json.Marshal(map[string]interface{}{
		"id":       "sub_123",
		"customer": map[string]string{"id": "cus_456"},
	})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), stripe.Event{
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)

	record, err := mem.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Empty(t, record.PriceID)
}
