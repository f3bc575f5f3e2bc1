package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismafavesco/Esifi/internal/api/handlers"
	"github.com/ismafavesco/Esifi/internal/llm"
)

func TestListModelsReturnsCatalog(t *testing.T) {
	gw := &fakeGateway{models: []llm.ModelInfo{
		{Provider: "openai", Model: "gpt-4o"},
		{Provider: "openai", Model: "gpt-4"},
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
	}}
	h := handlers.NewModelsHandler(gw)

	w := httptest.NewRecorder()
	h.List(w, authedRequest(http.MethodGet, "/api/v1/models", nil, "u1"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Models []llm.ModelInfo `json:"models"`
		Count  int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, gw.models, resp.Models)
}

func TestListModelsEmptyCatalog(t *testing.T) {
	h := handlers.NewModelsHandler(&fakeGateway{})

	w := httptest.NewRecorder()
	h.List(w, authedRequest(http.MethodGet, "/api/v1/models", nil, "u1"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}
