package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ismafavesco/Esifi/internal/models"
	"github.com/ismafavesco/Esifi/internal/queue"
	"github.com/ismafavesco/Esifi/internal/store"
)

// ConversationWorker archives chat transcripts off the request path.
type ConversationWorker struct {
	store store.ConversationStore
}

func NewConversationWorker(s store.ConversationStore) *ConversationWorker {
	return &ConversationWorker{store: s}
}

func (w *ConversationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ConversationArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal archive payload: %w", err)
	}

	var messages []models.ChatMessage
	if err := json.Unmarshal([]byte(payload.Messages), &messages); err != nil {
		return fmt.Errorf("unmarshal messages: %w", err)
	}

	conv := models.Conversation{
		ID:       uuid.New(),
		UserID:   payload.UserID,
		Messages: messages,
	}
	if err := w.store.Save(ctx, conv); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	slog.Info("conversation archived", "user_id", payload.UserID, "messages", len(messages))
	return nil
}
