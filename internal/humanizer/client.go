// Package humanizer drives the submit/poll protocol of the external text
// humanization service.
package humanizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Job statuses reported by the provider. Anything other than a terminal
// status keeps the poll loop going.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
	StatusError  = "error"
)

// ErrPollTimeout is returned when a job does not reach a terminal status
// within the configured attempt budget. Handlers map it to 504.
var ErrPollTimeout = errors.New("humanization job did not finish in time")

// ProviderError is a non-success response from the humanization API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("humanizer provider error (status %d): %s", e.StatusCode, e.Message)
}

// Request holds the humanization parameters forwarded verbatim to the API.
type Request struct {
	Content     string `json:"content"`
	Readability string `json:"readability"`
	Purpose     string `json:"purpose"`
	Strength    string `json:"strength"`
}

// Document is the job state returned by the poll endpoint.
type Document struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Config holds the client construction knobs.
type Config struct {
	APIKey          string
	BaseURL         string // default: "https://api.undetectable.ai"
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Client submits documents for humanization and polls them to completion.
// Each call runs its own loop; clients share no mutable state.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.undetectable.ai"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 60
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit registers a document for humanization and returns its job ID.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/submit", req, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &ProviderError{StatusCode: http.StatusBadGateway, Message: "submit response missing document id"}
	}
	return result.ID, nil
}

// Poll fetches the current state of a submitted job.
func (c *Client) Poll(ctx context.Context, jobID string) (*Document, error) {
	var doc Document
	if err := c.post(ctx, "/document", map[string]string{"id": jobID}, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Humanize runs the whole submit-then-poll exchange. The loop waits one
// PollInterval between status queries and gives up after MaxPollAttempts,
// returning ErrPollTimeout. A terminal failure status from the provider stops
// the loop immediately, and a canceled context stops it between waits so an
// aborted request never leaves the loop running.
func (c *Client) Humanize(ctx context.Context, req Request) (string, error) {
	jobID, err := c.Submit(ctx, req)
	if err != nil {
		return "", fmt.Errorf("submit document: %w", err)
	}

	for attempt := 0; attempt < c.cfg.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		doc, err := c.Poll(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("poll document %s: %w", jobID, err)
		}

		switch doc.Status {
		case StatusDone:
			return doc.Output, nil
		case StatusFailed, StatusError:
			msg := doc.Error
			if msg == "" {
				msg = "job reported status " + doc.Status
			}
			return "", &ProviderError{StatusCode: http.StatusBadGateway, Message: msg}
		}
	}

	return "", fmt.Errorf("job %s after %d attempts: %w", jobID, c.cfg.MaxPollAttempts, ErrPollTimeout)
}

func (c *Client) post(ctx context.Context, path string, payload, dest any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("humanizer request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
