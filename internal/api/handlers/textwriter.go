package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ismafavesco/Esifi/internal/humanizer"
	"github.com/ismafavesco/Esifi/internal/identity"
	"github.com/ismafavesco/Esifi/internal/llm"
	"github.com/ismafavesco/Esifi/internal/quota"
)

const (
	textWriterModel       = "gpt-4"
	maxContentChars       = 20000
	maxWordsCeiling       = 2000
	textWriterInstruction = "You are an AI text writer. Generate humanized text based on the " +
		"provided prompt. Make the text engaging and creative."
)

var (
	readabilityLevels = stringSet("High School", "University", "Doctorate", "Journalist", "Marketing")
	writingPurposes   = stringSet("General Writing", "Essay", "Article", "Marketing Material",
		"Story", "Cover Letter", "Report", "Business Material", "Legal Material")
	humanizeStrengths = stringSet("Quality", "Balanced", "More Human")
)

// Humanizer runs the external submit/poll rewrite exchange.
type Humanizer interface {
	Humanize(ctx context.Context, req humanizer.Request) (string, error)
}

type TextWriterHandler struct {
	gateway   llm.Gateway
	humanizer Humanizer
	gate      *quota.Gate
}

func NewTextWriterHandler(gw llm.Gateway, h Humanizer, gate *quota.Gate) *TextWriterHandler {
	return &TextWriterHandler{gateway: gw, humanizer: h, gate: gate}
}

type textWriterRequest struct {
	Content     string `json:"content"`
	Readability string `json:"readability"`
	Purpose     string `json:"purpose"`
	Strength    string `json:"strength"`
	MaxWords    int    `json:"maxWords"`
}

// Write drafts text with the chat model, truncates it to the word budget, and
// runs it through the humanization job before returning.
func (h *TextWriterHandler) Write(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req textWriterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
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

	resp, err := h.gateway.Chat(r.Context(), llm.ChatRequest{
		Model: textWriterModel,
		Messages: []llm.Message{
			{Role: "system", Content: textWriterInstruction},
			{Role: "user", Content: fmt.Sprintf("%s\n\nMaximum words: %d", req.Content, req.MaxWords)},
		},
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "chat provider failed"})
		return
	}

	draft := truncateWords(resp.Content, req.MaxWords)

	text, err := h.humanizer.Humanize(r.Context(), humanizer.Request{
		Content:     draft,
		Readability: req.Readability,
		Purpose:     req.Purpose,
		Strength:    req.Strength,
	})
	if err != nil {
		// Surface the upstream status verbatim, like the speech handler does.
		status := http.StatusInternalServerError
		var pe *humanizer.ProviderError
		if errors.Is(err, humanizer.ErrPollTimeout) {
			status = http.StatusGatewayTimeout
		} else if errors.As(err, &pe) && pe.StatusCode >= 400 {
			status = pe.StatusCode
		}
		writeJSON(w, status, map[string]string{"error": "humanization failed"})
		return
	}

	if err := h.gate.Consume(r.Context(), userID, decision); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record usage"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (req *textWriterRequest) validate() string {
	if req.Content == "" {
		return "content is required"
	}
	if len(req.Content) > maxContentChars {
		return "content too long"
	}
	if req.Readability == "" {
		req.Readability = "High School"
	} else if !readabilityLevels[req.Readability] {
		return "unknown readability level"
	}
	if req.Purpose == "" {
		req.Purpose = "General Writing"
	} else if !writingPurposes[req.Purpose] {
		return "unknown purpose"
	}
	if req.Strength == "" {
		req.Strength = "Balanced"
	} else if !humanizeStrengths[req.Strength] {
		return "unknown strength"
	}
	if req.MaxWords <= 0 || req.MaxWords > maxWordsCeiling {
		return fmt.Sprintf("maxWords must be between 1 and %d", maxWordsCeiling)
	}
	return ""
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}

func stringSet(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
