package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/middleware"
	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/service"
)

type ConversationsHandler struct {
	convService *service.ConversationService
	visibility  *service.VisibilityService
	dispatch    *service.DispatchService
	auth        *middleware.AuthMiddleware
}

func NewConversationsHandler(
	convService *service.ConversationService,
	visibility *service.VisibilityService,
	dispatch *service.DispatchService,
	auth *middleware.AuthMiddleware,
) *ConversationsHandler {
	return &ConversationsHandler{
		convService: convService,
		visibility:  visibility,
		dispatch:    dispatch,
		auth:        auth,
	}
}

func (h *ConversationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}/messages", h.ListMessages)
	r.Post("/{id}/messages", h.SendMessage)
	r.Post("/{id}/template", h.SendTemplate)
	r.Post("/{id}/claim", h.Claim)
	r.Post("/{id}/assign", h.Assign)
	r.Post("/{id}/read", h.MarkRead)
	r.Post("/{id}/close", h.Close)

	r.With(h.auth.RequireAdmin).Delete("/{id}", h.Erase)

	return r
}

// GET /v1/conversations
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	summaries, err := h.visibility.ListVisible(r.Context(), operator)
	if err != nil {
		log.Error().Err(err).Str("operatorId", operator.ID).Msg("failed to list conversations")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": summaries,
		"total":         len(summaries),
	})
}

// GET /v1/conversations/{id}/messages
func (h *ConversationsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	page := ParsePagination(r)
	messages, err := h.visibility.ListMessages(r.Context(), operator, chi.URLParam(r, "id"), page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    len(messages),
	})
}

// POST /v1/conversations/{id}/messages
// Free-form send; rejected with 422 outside the messaging window.
func (h *ConversationsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	conv, err := h.convService.Find(r.Context(), operator.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.dispatch.SendFreeformAs(r.Context(), conv, operator.ID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// POST /v1/conversations/{id}/template
// Template send; legal outside the messaging window.
func (h *ConversationsHandler) SendTemplate(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		Name     string   `json:"name"`
		Language string   `json:"language"`
		Params   []string `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	conv, err := h.convService.Find(r.Context(), operator.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.dispatch.SendTemplate(r.Context(), conv, req.Name, req.Language, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// POST /v1/conversations/{id}/claim
func (h *ConversationsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	conv, err := h.convService.Claim(r.Context(), operator.TenantID, chi.URLParam(r, "id"), operator.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("operatorId", operator.ID).
		Msg("conversation claimed")

	writeJSON(w, http.StatusOK, conv)
}

// POST /v1/conversations/{id}/assign
func (h *ConversationsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		OperatorID string `json:"operatorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OperatorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operatorId is required"})
		return
	}

	conv, err := h.convService.Assign(r.Context(), operator.TenantID, chi.URLParam(r, "id"), req.OperatorID, operator.ID, operator.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("operatorId", req.OperatorID).
		Str("assignedBy", operator.ID).
		Msg("conversation assigned")

	writeJSON(w, http.StatusOK, conv)
}

// POST /v1/conversations/{id}/read
func (h *ConversationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := h.visibility.MarkViewed(r.Context(), operator, chi.URLParam(r, "id"), time.Now()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /v1/conversations/{id}/close
func (h *ConversationsHandler) Close(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	conv, err := h.convService.Close(r.Context(), operator.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// DELETE /v1/conversations/{id}
// Admin-only erasure: soft-deletes the conversation and removes its stored
// media. A later inbound message from the same number starts fresh.
func (h *ConversationsHandler) Erase(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil || operator.Role != model.RoleAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.convService.Erase(r.Context(), operator.TenantID, id); err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("conversationId", id).
		Str("operatorId", operator.ID).
		Msg("conversation erased")

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
