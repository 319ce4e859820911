// Package handler implements HTTP request handlers
// Following Hexagonal Architecture: Adapters translate HTTP to domain logic
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"whatsapp-gateway/internal/core/services"
)

// WebhookHandler handles the platform's webhook verification handshake and
// event deliveries.
type WebhookHandler struct {
	dispatcher *services.Dispatcher
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(dispatcher *services.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
	}
}

// HandleVerify handles the GET verification challenge.
// The platform sends hub.mode, hub.verify_token and hub.challenge; the
// token is matched against a known account's configured verify token and
// the challenge echoed back on success.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if h.dispatcher.VerifyChallenge(r.Context(), token) {
		slog.Info("Webhook verification successful", "mode", mode)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	slog.Warn("Webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleEvent handles the POST event delivery. The platform needs nothing
// beyond a 200 acknowledgment, and surfacing errors only triggers delivery
// retries that amplify duplicate processing, so the response is written
// immediately and the payload processed in the background.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("PANIC in webhook processing goroutine", "panic", rec)
			}
		}()

		// The request context dies with the response; processing uses its
		// own background context.
		h.dispatcher.ProcessWebhook(context.Background(), body)
	}()

	slog.Info("Webhook received and queued for processing",
		"content_length", len(body),
	)
}
