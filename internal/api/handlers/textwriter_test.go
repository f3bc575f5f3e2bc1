package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismafavesco/Esifi/internal/api/handlers"
	"github.com/ismafavesco/Esifi/internal/humanizer"
	"github.com/ismafavesco/Esifi/internal/store"
)

func writerBody(t *testing.T, overrides map[string]interface{}) []byte {
	t.Helper()
	req := map[string]interface{}{
		"content":     "a short story about a lighthouse",
		"readability": "University",
		"purpose":     "Story",
		"strength":    "Balanced",
		"maxWords":    100,
	}
	for k, v := range overrides {
		req[k] = v
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestWriteRejectsMissingIdentity(t *testing.T) {
	mem := store.NewMemory()
	h := handlers.NewTextWriterHandler(&fakeGateway{reply: "x"}, &fakeHumanizer{output: "x"}, newTestGate(mem))

	w := httptest.NewRecorder()
	h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", writerBody(t, nil), ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWriteValidation(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"missing content", map[string]interface{}{"content": ""}},
		{"unknown readability", map[string]interface{}{"readability": "Toddler"}},
		{"unknown purpose", map[string]interface{}{"purpose": "Ransom Note"}},
		{"unknown strength", map[string]interface{}{"strength": "Maximum"}},
		{"zero maxWords", map[string]interface{}{"maxWords": 0}},
		{"excessive maxWords", map[string]interface{}{"maxWords": 5000}},
	}

	mem := store.NewMemory()
	gw := &fakeGateway{reply: "x"}
	h := handlers.NewTextWriterHandler(gw, &fakeHumanizer{output: "x"}, newTestGate(mem))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", writerBody(t, tt.overrides), "u1"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Zero(t, gw.calls, "invalid requests must not reach the provider")
}

func TestWriteAppliesDefaultsForOmittedOptions(t *testing.T) {
	mem := store.NewMemory()
	hum := &fakeHumanizer{output: "done"}
	h := handlers.NewTextWriterHandler(&fakeGateway{reply: "draft"}, hum, newTestGate(mem))

	body := writerBody(t, map[string]interface{}{"readability": "", "purpose": "", "strength": ""})
	w := httptest.NewRecorder()
	h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", body, "u1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "High School", hum.last.Readability)
	assert.Equal(t, "General Writing", hum.last.Purpose)
	assert.Equal(t, "Balanced", hum.last.Strength)
}

func TestWriteTruncatesDraftToWordBudget(t *testing.T) {
	mem := store.NewMemory()
	hum := &fakeHumanizer{output: "rewritten"}
	h := handlers.NewTextWriterHandler(&fakeGateway{reply: "one two three four five"}, hum, newTestGate(mem))

	body := writerBody(t, map[string]interface{}{"maxWords": 3})
	w := httptest.NewRecorder()
	h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", body, "u1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "one two three", hum.last.Content)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rewritten", resp["text"])
}

func TestWritePollTimeoutReturnsGatewayTimeout(t *testing.T) {
	mem := store.NewMemory()
	hum := &fakeHumanizer{err: humanizer.ErrPollTimeout}
	h := handlers.NewTextWriterHandler(&fakeGateway{reply: "draft"}, hum, newTestGate(mem))

	w := httptest.NewRecorder()
	h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", writerBody(t, nil), "u1"))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	count, err := mem.GetCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, count, "timed-out request must not consume quota")
}

func TestWriteSurfacesHumanizerStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"upstream auth rejection", &humanizer.ProviderError{StatusCode: 401, Message: "bad key"}, http.StatusUnauthorized},
		{"upstream rate limit", &humanizer.ProviderError{StatusCode: 429, Message: "slow down"}, http.StatusTooManyRequests},
		{"upstream server error", &humanizer.ProviderError{StatusCode: 502, Message: "bad gateway"}, http.StatusBadGateway},
		{"plain error", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			hum := &fakeHumanizer{err: tt.err}
			h := handlers.NewTextWriterHandler(&fakeGateway{reply: "draft"}, hum, newTestGate(mem))

			w := httptest.NewRecorder()
			h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", writerBody(t, nil), "u1"))

			assert.Equal(t, tt.status, w.Code)

			count, err := mem.GetCount(context.Background(), "u1")
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestWriteConsumesQuotaOnSuccessOnly(t *testing.T) {
	mem := store.NewMemory()
	h := handlers.NewTextWriterHandler(&fakeGateway{reply: "draft"}, &fakeHumanizer{output: "ok"}, newTestGate(mem))

	w := httptest.NewRecorder()
	h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", writerBody(t, nil), "u1"))
	require.Equal(t, http.StatusOK, w.Code)

	count, err := mem.GetCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWriteHonorsQuotaExhaustion(t *testing.T) {
	mem := store.NewMemory()
	for i := 0; i < 5; i++ {
		_, err := mem.Increment(context.Background(), "u1")
		require.NoError(t, err)
	}
	gw := &fakeGateway{reply: "draft"}
	h := handlers.NewTextWriterHandler(gw, &fakeHumanizer{output: "ok"}, newTestGate(mem))

	w := httptest.NewRecorder()
	h.Write(w, authedRequest(http.MethodPost, "/api/v1/text-writer", writerBody(t, nil), "u1"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, gw.calls)
}
