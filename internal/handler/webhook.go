package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/config"
	"github.com/clinicdesk/whatsapp-server-go/internal/debug"
)

type deliveryProcessor interface {
	ProcessDelivery(ctx context.Context, body []byte) error
}

type WebhookHandler struct {
	ingest      deliveryProcessor
	verifyToken string
	ring        *debug.Ring
}

func NewWebhookHandler(ingest deliveryProcessor, verifyToken string, ring *debug.Ring) *WebhookHandler {
	return &WebhookHandler{
		ingest:      ingest,
		verifyToken: verifyToken,
		ring:        ring,
	}
}

// GET /whatsapp/webhook
// Meta's subscription handshake: echo hub.challenge when the verify token
// matches.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		log.Warn().Str("mode", mode).Msg("webhook verification rejected")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Verification failed"})
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// POST /whatsapp/webhook
// Acknowledges immediately; processing happens off the request goroutine so
// a slow database never makes the provider retry or disable the endpoint.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("webhook body read failed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if h.ring != nil {
		h.ring.Add(body)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.WebhookProcessTimeout)
		defer cancel()

		if err := h.ingest.ProcessDelivery(ctx, body); err != nil {
			log.Error().Err(err).Msg("webhook delivery processing failed")
		}
	}()
}
