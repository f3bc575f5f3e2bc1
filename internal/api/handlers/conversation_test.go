package handlers_test

import (
	"bytes"
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
	"github.com/ismafavesco/Esifi/internal/identity"
	"github.com/ismafavesco/Esifi/internal/llm"
	"github.com/ismafavesco/Esifi/internal/quota"
	"github.com/ismafavesco/Esifi/internal/speech"
	"github.com/ismafavesco/Esifi/internal/store"
	"github.com/ismafavesco/Esifi/internal/usage"
)

// fakeGateway scripts the chat provider.
type fakeGateway struct {
	reply  string
	err    error
	calls  int
	last   llm.ChatRequest
	models []llm.ModelInfo
}

func (f *fakeGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Provider: "fake", Model: req.Model, Content: f.reply}, nil
}

func (f *fakeGateway) Provider(string) (llm.Provider, error) { return nil, errors.New("not configured") }

func (f *fakeGateway) ListModels() []llm.ModelInfo { return f.models }

// fakeHumanizer scripts the submit/poll exchange.
type fakeHumanizer struct {
	output string
	err    error
	last   humanizer.Request
	calls  int
}

func (f *fakeHumanizer) Humanize(_ context.Context, req humanizer.Request) (string, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// fakeSynthesizer scripts the speech provider.
type fakeSynthesizer struct {
	audio     []byte
	err       error
	converted bool
}

func (f *fakeSynthesizer) Synthesize(context.Context, string, string) (*speech.Audio, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &speech.Audio{Bytes: f.audio, ContentType: "audio/mpeg"}, nil
}

func (f *fakeSynthesizer) Convert(context.Context, string, []byte) (*speech.Audio, error) {
	f.converted = true
	if f.err != nil {
		return nil, f.err
	}
	return &speech.Audio{Bytes: f.audio, ContentType: "audio/mpeg"}, nil
}

type fakeEntitlements struct {
	active map[string]bool
}

func (f *fakeEntitlements) IsActive(_ context.Context, userID string) bool {
	return f.active[userID]
}

func newTestGate(mem *store.Memory, pro ...string) *quota.Gate {
	active := make(map[string]bool)
	for _, id := range pro {
		active[id] = true
	}
	return quota.NewGate(usage.NewLedger(mem), &fakeEntitlements{active: active}, 5)
}

func authedRequest(method, path string, body []byte, userID string) *http.Request {
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if userID != "" {
		r = r.WithContext(identity.WithUserID(r.Context(), userID))
	}
	return r
}

func chatBody(t *testing.T, contents ...string) []byte {
	t.Helper()
	var msgs []map[string]string
	for _, c := range contents {
		msgs = append(msgs, map[string]string{"role": "user", "content": c})
	}
	body, err := json.Marshal(map[string]interface{}{"messages": msgs})
	require.NoError(t, err)
	return body
}

func TestChatRejectsMissingIdentity(t *testing.T) {
	mem := store.NewMemory()
	h := handlers.NewConversationHandler(&fakeGateway{reply: "hi"}, newTestGate(mem), nil, mem)

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", chatBody(t, "hello"), ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatRejectsMalformedBody(t *testing.T) {
	mem := store.NewMemory()
	gw := &fakeGateway{reply: "hi"}
	h := handlers.NewConversationHandler(gw, newTestGate(mem), nil, mem)

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", []byte("{not json"), "u1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, gw.calls)
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	mem := store.NewMemory()
	h := handlers.NewConversationHandler(&fakeGateway{reply: "hi"}, newTestGate(mem), nil, mem)

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", []byte(`{"messages":[]}`), "u1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatPrependsPersonaPrePrompt(t *testing.T) {
	mem := store.NewMemory()
	gw := &fakeGateway{reply: "hello"}
	h := handlers.NewConversationHandler(gw, newTestGate(mem), nil, mem)

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", chatBody(t, "hi"), "u1"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gw.last.Messages, 2)
	assert.Equal(t, "system", gw.last.Messages[0].Role)
	assert.Contains(t, gw.last.Messages[0].Content, "Esifi")
}

func TestChatFreeTierFiveRequestsThenForbidden(t *testing.T) {
	mem := store.NewMemory()
	gw := &fakeGateway{reply: "sure"}
	h := handlers.NewConversationHandler(gw, newTestGate(mem), nil, mem)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", chatBody(t, "hello"), "u1"))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", chatBody(t, "hello"), "u1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 5, gw.calls, "denied request must not reach the provider")

	count, err := mem.GetCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestChatProviderFailureLeavesLedgerUntouched(t *testing.T) {
	mem := store.NewMemory()
	gw := &fakeGateway{err: errors.New("upstream down")}
	h := handlers.NewConversationHandler(gw, newTestGate(mem), nil, mem)

	w := httptest.NewRecorder()
	h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", chatBody(t, "hello"), "u1"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	count, err := mem.GetCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChatProUserNeverConsumesLedger(t *testing.T) {
	mem := store.NewMemory()
	gw := &fakeGateway{reply: "sure"}
	h := handlers.NewConversationHandler(gw, newTestGate(mem, "pro-user"), nil, mem)

	for i := 0; i < 8; i++ {
		w := httptest.NewRecorder()
		h.Chat(w, authedRequest(http.MethodPost, "/api/v1/conversation", chatBody(t, "hello"), "pro-user"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	count, err := mem.GetCount(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSaveAndListConversations(t *testing.T) {
	mem := store.NewMemory()
	h := handlers.NewConversationHandler(&fakeGateway{reply: "x"}, newTestGate(mem), nil, mem)

	w := httptest.NewRecorder()
	h.Save(w, authedRequest(http.MethodPost, "/api/v1/conversation/save", chatBody(t, "hello", "again"), "u1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.List(w, authedRequest(http.MethodGet, "/api/v1/conversations", nil, "u1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}
