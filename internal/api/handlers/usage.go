package handlers

import (
	"net/http"

	"github.com/ismafavesco/Esifi/internal/identity"
	"github.com/ismafavesco/Esifi/internal/quota"
)

type UsageHandler struct {
	gate *quota.Gate
}

func NewUsageHandler(gate *quota.Gate) *UsageHandler {
	return &UsageHandler{gate: gate}
}

// Get returns the caller's free-tier counter for the dashboard.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	usage, err := h.gate.Usage(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load usage"})
		return
	}

	writeJSON(w, http.StatusOK, usage)
}
