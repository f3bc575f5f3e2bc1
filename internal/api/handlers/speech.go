package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ismafavesco/Esifi/internal/identity"
	"github.com/ismafavesco/Esifi/internal/quota"
	"github.com/ismafavesco/Esifi/internal/speech"
)

const (
	maxSpeechTextChars = 5000
	maxAudioUploadSize = 10 << 20 // 10 MiB
)

// Synthesizer generates audio from text or re-voices uploaded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, voice, text string) (*speech.Audio, error)
	Convert(ctx context.Context, voice string, audio []byte) (*speech.Audio, error)
}

type SpeechHandler struct {
	speech Synthesizer
	gate   *quota.Gate
}

func NewSpeechHandler(s Synthesizer, gate *quota.Gate) *SpeechHandler {
	return &SpeechHandler{speech: s, gate: gate}
}

// speechInput is the resolved request shape: exactly one of Text or Audio is
// set once validation passes.
type speechInput struct {
	Voice string
	Text  string
	Audio []byte
}

// Generate handles both JSON text-to-speech and multipart speech-to-speech
// requests. The input shape is resolved once at the boundary; anything not
// matching a known shape is rejected before quota is touched.
func (h *SpeechHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	input, errMsg := resolveSpeechInput(r)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
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

	var audio *speech.Audio
	if input.Text != "" {
		audio, err = h.speech.Synthesize(r.Context(), input.Voice, input.Text)
	} else {
		audio, err = h.speech.Convert(r.Context(), input.Voice, input.Audio)
	}
	if err != nil {
		var pe *speech.ProviderError
		if errors.As(err, &pe) {
			// Surface the upstream status verbatim.
			writeJSON(w, pe.StatusCode, map[string]string{"error": "speech provider failed"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "speech provider failed"})
		return
	}

	if err := h.gate.Consume(r.Context(), userID, decision); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record usage"})
		return
	}

	w.Header().Set("Content-Type", audio.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(audio.Bytes)
}

func resolveSpeechInput(r *http.Request) (speechInput, string) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		return resolveMultipartInput(r)
	}

	var body struct {
		Message string `json:"message"`
		Text    string `json:"text"`
		Voice   string `json:"voice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return speechInput{}, "invalid request body"
	}

	text := body.Message
	if text == "" {
		text = body.Text
	}
	input := speechInput{Voice: body.Voice, Text: text}
	return input, validateSpeechInput(input)
}

func resolveMultipartInput(r *http.Request) (speechInput, string) {
	if err := r.ParseMultipartForm(maxAudioUploadSize); err != nil {
		return speechInput{}, "invalid multipart body"
	}

	input := speechInput{
		Voice: r.FormValue("voice"),
		Text:  r.FormValue("text"),
	}

	if file, _, err := r.FormFile("audio"); err == nil {
		defer file.Close()
		audio, err := io.ReadAll(io.LimitReader(file, maxAudioUploadSize))
		if err != nil {
			return speechInput{}, "failed to read audio upload"
		}
		input.Audio = audio
	}

	return input, validateSpeechInput(input)
}

func validateSpeechInput(input speechInput) string {
	if !speech.KnownVoice(input.Voice) {
		return "unknown voice"
	}
	hasText := input.Text != ""
	hasAudio := len(input.Audio) > 0
	if hasText == hasAudio {
		return "exactly one of text or audio is required"
	}
	if hasText && len(input.Text) > maxSpeechTextChars {
		return "text too long"
	}
	return ""
}
