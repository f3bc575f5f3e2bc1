package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ismafavesco/Esifi/internal/identity"
	"github.com/ismafavesco/Esifi/internal/llm"
	"github.com/ismafavesco/Esifi/internal/models"
	"github.com/ismafavesco/Esifi/internal/quota"
	"github.com/ismafavesco/Esifi/internal/queue"
	"github.com/ismafavesco/Esifi/internal/store"
)

const (
	conversationModel     = "gpt-4o"
	maxConversationChars  = 32000
	conversationPrePrompt = "You are Esifi, an advanced chatbot created by Favesco. " +
		"Your purpose is to engage in conversation and assist users to the best of " +
		"your abilities while being as human-like as possible."
)

// Archiver enqueues a transcript for background archival.
type Archiver interface {
	EnqueueConversationArchive(payload queue.ConversationArchivePayload) error
}

type ConversationHandler struct {
	gateway  llm.Gateway
	gate     *quota.Gate
	archiver Archiver // optional; nil falls back to synchronous saves
	convs    store.ConversationStore
}

func NewConversationHandler(gw llm.Gateway, gate *quota.Gate, archiver Archiver, convs store.ConversationStore) *ConversationHandler {
	return &ConversationHandler{gateway: gw, gate: gate, archiver: archiver, convs: convs}
}

type conversationRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

// Chat runs one metered chat-completion exchange.
func (h *ConversationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := validateMessages(req.Messages); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	decision, err := h.gate.Check(r.Context(), userID)
	if err != nil {
		if errors.Is(err, quota.ErrExceeded) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Free trial has expired. Please upgrade to pro."})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check usage"})
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{Role: "system", Content: conversationPrePrompt})
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := h.gateway.Chat(r.Context(), llm.ChatRequest{
		Model:    conversationModel,
		Messages: messages,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "chat provider failed"})
		return
	}

	if err := h.gate.Consume(r.Context(), userID, decision); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record usage"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": models.ChatMessage{Role: "assistant", Content: resp.Content},
	})
}

// Save archives a transcript. It is not metered; failed saves cost nothing.
func (h *ConversationHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages required"})
		return
	}

	if h.archiver != nil {
		raw, err := json.Marshal(req.Messages)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save conversation"})
			return
		}
		err = h.archiver.EnqueueConversationArchive(queue.ConversationArchivePayload{
			UserID:   userID,
			Messages: string(raw),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save conversation"})
			return
		}
	} else {
		conv := models.Conversation{ID: uuid.New(), UserID: userID, Messages: req.Messages}
		if err := h.convs.Save(r.Context(), conv); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save conversation"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation saved successfully"})
}

// List returns the caller's archived conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	convs, err := h.convs.ListByUser(r.Context(), userID, 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load conversations"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs, "count": len(convs)})
}

func validateMessages(messages []models.ChatMessage) string {
	if len(messages) == 0 {
		return "messages required"
	}
	total := 0
	for _, m := range messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return "message role must be system, user or assistant"
		}
		if m.Content == "" {
			return "message content must not be empty"
		}
		total += len(m.Content)
	}
	if total > maxConversationChars {
		return "conversation too long"
	}
	return ""
}
