package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/middleware"
	"github.com/clinicdesk/whatsapp-server-go/internal/sse"
)

type EventsHandler struct {
	broker *sse.Broker
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// GET /v1/events
// Tenant-scoped event stream for the operator UI: new messages, assignment
// changes, status changes.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(operator.TenantID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("tenantId", operator.TenantID).
		Str("operatorId", operator.ID).
		Msg("sse connection established")

	connected, _ := json.Marshal(map[string]string{"operatorId": operator.ID})
	if err := h.sendRawEvent(w, flusher, sse.Event{Type: "connected", Data: connected}); err != nil {
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("operatorId", operator.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("operatorId", operator.ID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("operatorId", operator.ID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
