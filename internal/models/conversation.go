package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a single role-tagged message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Conversation is an archived chat transcript.
type Conversation struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	UserID    string        `json:"user_id" db:"user_id"`
	Messages  []ChatMessage `json:"messages" db:"messages"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
