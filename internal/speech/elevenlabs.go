// Package speech wraps the ElevenLabs text-to-speech and speech-to-speech
// endpoints.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// voiceIDs maps the voice names the forms expose to ElevenLabs voice IDs.
var voiceIDs = map[string]string{
	"Rachel": "21m00Tcm4TlvDq8ikWAM",
	"Alice":  "Xb7hH8MSUJpSbSDYk0k2",
	"Chris":  "iP95p4xoKVk53GoZ742B",
	"Adam":   "pNInz6obpgDQGcFmaJgB",
	"Ethan":  "g5CIjZEefAph4nQFvHAz",
	"James":  "ZQe5CZNOzWyzPSCn5a3c",
}

// KnownVoice reports whether the given voice name is one the service offers.
func KnownVoice(name string) bool {
	_, ok := voiceIDs[name]
	return ok
}

// ProviderError is a non-success response from the ElevenLabs API. The
// upstream status code is surfaced to the caller verbatim.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("speech provider error (status %d): %s", e.StatusCode, e.Message)
}

// Audio is generated speech plus its MIME type.
type Audio struct {
	Bytes       []byte
	ContentType string // "audio/mpeg"
}

// Config holds the ElevenLabs client settings.
type Config struct {
	APIKey  string
	BaseURL string // default: "https://api.elevenlabs.io/v1"
	ModelID string // default: "eleven_multilingual_v2"
}

// Client calls the ElevenLabs API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Synthesize converts text to speech with the named voice.
func (c *Client) Synthesize(ctx context.Context, voice, text string) (*Audio, error) {
	voiceID, ok := voiceIDs[voice]
	if !ok {
		return nil, fmt.Errorf("unknown voice %q", voice)
	}

	body := map[string]any{
		"text":     text,
		"model_id": c.cfg.ModelID,
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.5,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/text-to-speech/"+voiceID, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)

	return c.doAudio(httpReq)
}

// Convert re-voices recorded speech with the named voice via the
// speech-to-speech endpoint. The upload uses a proper multipart body.
func (c *Client) Convert(ctx context.Context, voice string, audio []byte) (*Audio, error) {
	voiceID, ok := voiceIDs[voice]
	if !ok {
		return nil, fmt.Errorf("unknown voice %q", voice)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("audio", "input.mp3")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	_ = mw.WriteField("model_id", "eleven_multilingual_sts_v2")

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/speech-to-speech/"+voiceID, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)

	return c.doAudio(httpReq)
}

func (c *Client) doAudio(req *http.Request) (*Audio, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &Audio{
		Bytes:       audio,
		ContentType: "audio/mpeg",
	}, nil
}
