package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ismafavesco/Esifi/internal/models"
)

// Memory is an in-process Store used by tests and when no DATABASE_URL is
// configured. Increment holds the mutex for the whole upsert, giving the same
// lost-update protection the SQL upsert provides.
type Memory struct {
	mu            sync.Mutex
	counts        map[string]int
	subscriptions map[string]models.Subscription
	conversations []models.Conversation
}

func NewMemory() *Memory {
	return &Memory{
		counts:        make(map[string]int),
		subscriptions: make(map[string]models.Subscription),
	}
}

func (s *Memory) GetCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID], nil
}

func (s *Memory) Increment(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[userID]++
	return s.counts[userID], nil
}

func (s *Memory) Get(_ context.Context, userID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (s *Memory) GetByCustomer(_ context.Context, customerID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.CustomerID == customerID {
			return &sub, nil
		}
	}
	return nil, nil
}

func (s *Memory) Upsert(_ context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.UpdatedAt = time.Now()
	s.subscriptions[sub.UserID] = sub
	return nil
}

func (s *Memory) Save(_ context.Context, conv models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	s.conversations = append(s.conversations, conv)
	return nil
}

func (s *Memory) ListByUser(_ context.Context, userID string, limit int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var convs []models.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.After(convs[j].CreatedAt) })
	if len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}
