// Package services contains core business logic
package services

import (
	"context"
	"log/slog"
	"time"

	"whatsapp-gateway/internal/adapters/dto"
	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// Webhook change fields carrying status events
const (
	fieldMessages             = "messages"
	fieldTemplateStatusUpdate = "message_template_status_update"
)

// Reconciler applies asynchronous delivery/read/template-status events to
// previously stored records. Out-of-order and duplicate callbacks are
// expected: a later event carrying an earlier lifecycle state is ignored,
// and events referencing unknown ids are silent no-ops (receipts can arrive
// for messages sent from a different integration).
type Reconciler struct {
	messages  ports.MessageRepository
	templates ports.TemplateRepository
}

// NewReconciler creates a new status reconciler
func NewReconciler(messages ports.MessageRepository, templates ports.TemplateRepository) *Reconciler {
	return &Reconciler{
		messages:  messages,
		templates: templates,
	}
}

// Reconcile dispatches one change entry on its field.
func (r *Reconciler) Reconcile(ctx context.Context, change dto.Change) {
	switch change.Field {
	case fieldTemplateStatusUpdate:
		r.reconcileTemplateStatus(ctx, change.Value)
	case fieldMessages:
		r.reconcileMessageStatus(ctx, change.Value)
	default:
		slog.Debug("Ignoring status change with unknown field", "field", change.Field)
	}
}

// reconcileTemplateStatus updates a template's status column by platform
// template id. No existence check: a no-op update is acceptable.
func (r *Reconciler) reconcileTemplateStatus(ctx context.Context, value dto.ChangeValue) {
	if value.MessageTemplateID == "" || value.Event == "" {
		return
	}

	if err := r.templates.UpdateStatusByTemplateID(ctx, value.MessageTemplateID.String(), value.Event); err != nil {
		slog.Error("Template status reconciliation failed",
			"error", err,
			"template_id", value.MessageTemplateID,
			"event", value.Event,
		)
	}
}

// reconcileMessageStatus processes the first status entry (the platform
// sends exactly one per event), looking the message up by external id.
func (r *Reconciler) reconcileMessageStatus(ctx context.Context, value dto.ChangeValue) {
	if len(value.Statuses) == 0 {
		return
	}
	event := value.Statuses[0]

	msg, err := r.messages.GetByMessageID(ctx, event.ID)
	if err != nil {
		slog.Error("Status reconciliation lookup failed",
			"error", err,
			"message_id", event.ID,
		)
		return
	}
	if msg == nil {
		// Receipt for a message this system never observed.
		slog.Debug("Status event references unknown message", "message_id", event.ID)
		return
	}

	if !domain.StatusAdvances(msg.Status, event.Status) {
		slog.Debug("Ignoring non-advancing status event",
			"message_id", event.ID,
			"current", msg.Status,
			"event", event.Status,
		)
		return
	}

	msg.Status = event.Status

	eventTime := statusEventTime(event)
	switch event.Status {
	case domain.StatusDelivered:
		if msg.DeliveredAt == nil && eventTime != nil {
			msg.DeliveredAt = eventTime
		}
	case domain.StatusRead:
		if msg.ReadAt == nil && eventTime != nil {
			msg.ReadAt = eventTime
		}
	}

	if event.Conversation != nil && event.Conversation.ID != "" {
		conversationID := event.Conversation.ID
		msg.ConversationID = &conversationID
	}

	if err := r.messages.Update(ctx, msg); err != nil {
		slog.Error("Status reconciliation update failed",
			"error", err,
			"message_id", event.ID,
			"status", event.Status,
		)
		return
	}

	slog.Info("Message status reconciled",
		"message_id", event.ID,
		"status", event.Status,
	)
}

// statusEventTime converts the event's millisecond epoch timestamp to the
// local persisted representation. Nil when absent or malformed.
func statusEventTime(event dto.StatusEvent) *time.Time {
	if event.Timestamp == "" {
		return nil
	}
	millis, err := event.Timestamp.Int64()
	if err != nil {
		return nil
	}
	t := time.UnixMilli(millis).Local()
	return &t
}
