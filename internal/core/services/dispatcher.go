// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"whatsapp-gateway/internal/adapters/dto"
	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// Dispatcher is the top-level webhook entry point. It audit-logs the raw
// payload, parses the envelope, resolves the receiving account and routes
// each message to the classifier or the change to the status reconciler.
// Errors are contained aggressively: the platform retries on failure, and
// retries only amplify duplicate processing.
type Dispatcher struct {
	accounts   ports.AccountRepository
	logs       ports.NotificationLogRepository
	classifier *Classifier
	reconciler *Reconciler
}

// NewDispatcher creates a new dispatcher instance with dependencies injected
func NewDispatcher(
	accounts ports.AccountRepository,
	logs ports.NotificationLogRepository,
	classifier *Classifier,
	reconciler *Reconciler,
) *Dispatcher {
	return &Dispatcher{
		accounts:   accounts,
		logs:       logs,
		classifier: classifier,
		reconciler: reconciler,
	}
}

// VerifyChallenge resolves an account by the verify token value itself
// (the handshake carries no routing key) and reports whether the token
// matches a known registration.
func (d *Dispatcher) VerifyChallenge(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	account, err := d.accounts.GetByVerifyToken(ctx, token)
	if err != nil {
		slog.Error("Verify token lookup failed", "error", err)
		return false
	}

	return account != nil && account.VerifyToken == token
}

// ProcessWebhook processes one POST webhook delivery.
func (d *Dispatcher) ProcessWebhook(ctx context.Context, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in ProcessWebhook", "panic", r)
		}
	}()

	// Audit log first, best-effort: a failed log write must not abort
	// message processing.
	if err := d.logs.Append(ctx, &domain.NotificationLog{
		Template: domain.LogSourceWebhook,
		MetaData: string(payload),
	}); err != nil {
		slog.Error("Failed to audit-log webhook payload", "error", err)
	}

	var envelope dto.WebhookPayload
	if err := json.Unmarshal(payload, &envelope); err != nil {
		slog.Error("Failed to parse webhook JSON", "error", err)
		return
	}

	// A missing or empty entry/changes array means a payload with no
	// messages; that is not an error.
	value, hasChange := envelope.FirstValue()
	messages := value.Messages
	phoneNumberID := value.Metadata.PhoneNumberID
	profileName := envelope.SenderProfileName()

	var account *domain.Account
	if phoneNumberID != "" {
		var err error
		account, err = d.accounts.GetByPhoneNumberID(ctx, phoneNumberID)
		if err != nil {
			slog.Error("Account lookup failed", "error", err, "phone_number_id", phoneNumberID)
			return
		}
	}

	if account == nil {
		// Status-only payloads may lack routing context entirely; attempt
		// reconciliation anyway rather than failing the whole call.
		if len(messages) == 0 && hasChange {
			if change, ok := envelope.FirstChange(); ok {
				d.reconciler.Reconcile(ctx, change)
			}
		}
		return
	}

	if len(messages) == 0 {
		if change, ok := envelope.FirstChange(); ok {
			d.reconciler.Reconcile(ctx, change)
		}
		return
	}

	processed := 0
	for i := range messages {
		if err := d.classifyIsolated(ctx, &messages[i], account, profileName); err != nil {
			slog.Error("Failed to process message",
				"error", err,
				"message_id", messages[i].ID,
				"type", messages[i].Type,
			)
			// One message's failure must not prevent processing of
			// subsequent messages in the same batch.
			continue
		}
		processed++
	}

	slog.Info("Webhook processing completed",
		"received", len(messages),
		"processed", processed,
	)
}

// classifyIsolated wraps one classification in its own panic boundary.
func (d *Dispatcher) classifyIsolated(ctx context.Context, raw *dto.RawMessage, account *domain.Account, profileName string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in message classification",
				"panic", r,
				"message_id", raw.ID,
			)
		}
	}()

	return d.classifier.Classify(ctx, raw, account, profileName)
}
