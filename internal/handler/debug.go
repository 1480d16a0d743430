package handler

import (
	"net/http"

	"github.com/clinicdesk/whatsapp-server-go/internal/debug"
)

type DebugHandler struct {
	ring *debug.Ring
}

func NewDebugHandler(ring *debug.Ring) *DebugHandler {
	return &DebugHandler{ring: ring}
}

// GET /v1/debug/webhooks
// Last received webhook payloads, oldest first. Admin-only; wired behind
// RequireAdmin in the router.
func (h *DebugHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	entries := h.ring.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"deliveries": entries,
		"total":      len(entries),
	})
}
