// Package handler implements HTTP request handlers
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/services"
)

// SendHandler exposes the outbound send operations to external callers.
// Both operations are synchronous: they return once the send attempt,
// including persistence, completes.
type SendHandler struct {
	outbound *services.Outbound
}

// NewSendHandler creates a new send handler
func NewSendHandler(outbound *services.Outbound) *SendHandler {
	return &SendHandler{
		outbound: outbound,
	}
}

// sendResult is the success payload of both send endpoints.
type sendResult struct {
	ID        int64   `json:"id"`
	MessageID *string `json:"message_id"`
	Status    string  `json:"status"`
}

// HandleSendMessage sends a manual text/media/reaction message.
// POST /api/messages
func (h *SendHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req services.ManualSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.To == "" || req.ContentType == "" {
		WriteError(w, http.StatusBadRequest, "to and content_type are required")
		return
	}

	msg, err := h.outbound.SendManual(r.Context(), req)
	h.writeSendResponse(w, msg, err)
}

// HandleSendTemplate sends a stored template or custom JSON payload.
// POST /api/messages/template
func (h *SendHandler) HandleSendTemplate(w http.ResponseWriter, r *http.Request) {
	var req services.TemplateSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.To == "" {
		WriteError(w, http.StatusBadRequest, "to is required")
		return
	}

	msg, err := h.outbound.SendTemplateOrCustom(r.Context(), req)
	h.writeSendResponse(w, msg, err)
}

func (h *SendHandler) writeSendResponse(w http.ResponseWriter, msg *domain.Message, err error) {
	if err != nil {
		if services.IsInputError(err) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		var apiErr *services.SendAPIError
		if errors.As(err, &apiErr) {
			slog.Warn("Outbound send rejected by platform",
				"title", apiErr.Title,
				"message", apiErr.Message,
			)
			WriteError(w, http.StatusBadGateway, apiErr.Error())
			return
		}

		slog.Error("Outbound send failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	WriteJSON(w, http.StatusOK, "Success", sendResult{
		ID:        msg.ID,
		MessageID: msg.MessageID,
		Status:    msg.Status,
	})
}
