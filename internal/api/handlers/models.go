package handlers

import (
	"net/http"

	"github.com/ismafavesco/Esifi/internal/llm"
)

// ModelsHandler exposes the chat model catalog for the frontend pickers.
// Listing is a catalog read, not an AI call, so it is never metered.
type ModelsHandler struct {
	gateway llm.Gateway
}

func NewModelsHandler(gw llm.Gateway) *ModelsHandler {
	return &ModelsHandler{gateway: gw}
}

func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models := h.gateway.ListModels()
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models, "count": len(models)})
}
