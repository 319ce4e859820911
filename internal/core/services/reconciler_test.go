package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"whatsapp-gateway/internal/adapters/dto"
	"whatsapp-gateway/internal/core/domain"
)

func createTestReconciler() (*Reconciler, *MockMessageRepository, *MockTemplateRepository) {
	messageRepo := new(MockMessageRepository)
	templateRepo := new(MockTemplateRepository)
	return NewReconciler(messageRepo, templateRepo), messageRepo, templateRepo
}

func statusChange(event dto.StatusEvent) dto.Change {
	return dto.Change{
		Field: "messages",
		Value: dto.ChangeValue{Statuses: []dto.StatusEvent{event}},
	}
}

func storedMessage(status string) *domain.Message {
	id := "wamid.sent1"
	return &domain.Message{
		ID:        42,
		MessageID: &id,
		Type:      domain.DirectionOutgoing,
		Status:    status,
	}
}

func TestReconcile_DeliveredAdvancesFromSent(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.sent1").Return(storedMessage("sent"), nil)
	messageRepo.On("Update", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		if msg.Status != "delivered" || msg.DeliveredAt == nil {
			return false
		}
		// Millisecond epoch 1721310000000 = 2024-07-18T13:40:00Z
		return msg.DeliveredAt.Equal(time.UnixMilli(1721310000000))
	})).Return(nil)

	reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
		ID:        "wamid.sent1",
		Status:    "delivered",
		Timestamp: "1721310000000",
	}))

	messageRepo.AssertExpectations(t)
}

func TestReconcile_ReadSetsReadAtAndConversation(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.sent1").Return(storedMessage("delivered"), nil)
	messageRepo.On("Update", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Status == "read" &&
			msg.ReadAt != nil &&
			msg.ConversationID != nil &&
			*msg.ConversationID == "conv-123"
	})).Return(nil)

	reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
		ID:           "wamid.sent1",
		Status:       "read",
		Timestamp:    "1721310060000",
		Conversation: &dto.Conversation{ID: "conv-123"},
	}))

	messageRepo.AssertExpectations(t)
}

// Receipts arrive out of order; a later event carrying an earlier lifecycle
// state must never revert the stored one.
func TestReconcile_NonAdvancingEventIgnored(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.sent1").Return(storedMessage("read"), nil)

	reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
		ID:     "wamid.sent1",
		Status: "delivered",
	}))

	messageRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// Re-delivery of the same receipt is a no-op: equal rank does not advance.
func TestReconcile_DuplicateEventIdempotent(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.sent1").Return(storedMessage("delivered"), nil)

	reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
		ID:     "wamid.sent1",
		Status: "delivered",
	}))

	messageRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// Receipts can reference messages sent from a different integration sharing
// the same number; these are silent no-ops, not errors.
func TestReconcile_UnknownMessageIDNoOp(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.foreign").Return(nil, nil)

	assert.NotPanics(t, func() {
		reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
			ID:     "wamid.foreign",
			Status: "delivered",
		}))
	})

	messageRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestReconcile_LookupErrorContained(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.sent1").Return(nil, errors.New("database error"))

	assert.NotPanics(t, func() {
		reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
			ID:     "wamid.sent1",
			Status: "delivered",
		}))
	})
}

func TestReconcile_MissingTimestampStillAdvances(t *testing.T) {
	reconciler, messageRepo, _ := createTestReconciler()
	ctx := context.Background()

	messageRepo.On("GetByMessageID", ctx, "wamid.sent1").Return(storedMessage("sent"), nil)
	messageRepo.On("Update", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Status == "delivered" && msg.DeliveredAt == nil
	})).Return(nil)

	reconciler.Reconcile(ctx, statusChange(dto.StatusEvent{
		ID:     "wamid.sent1",
		Status: "delivered",
	}))

	messageRepo.AssertExpectations(t)
}

func TestReconcile_TemplateStatusUpdate(t *testing.T) {
	reconciler, _, templateRepo := createTestReconciler()
	ctx := context.Background()

	templateRepo.On("UpdateStatusByTemplateID", ctx, "1099400war1", "APPROVED").Return(nil)

	reconciler.Reconcile(ctx, dto.Change{
		Field: "message_template_status_update",
		Value: dto.ChangeValue{
			Event:             "APPROVED",
			MessageTemplateID: "1099400war1",
		},
	})

	templateRepo.AssertExpectations(t)
}

func TestReconcile_TemplateStatusUpdateMissingFields(t *testing.T) {
	reconciler, _, templateRepo := createTestReconciler()
	ctx := context.Background()

	reconciler.Reconcile(ctx, dto.Change{
		Field: "message_template_status_update",
		Value: dto.ChangeValue{Event: "APPROVED"},
	})

	templateRepo.AssertNotCalled(t, "UpdateStatusByTemplateID", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_UnknownFieldIgnored(t *testing.T) {
	reconciler, messageRepo, templateRepo := createTestReconciler()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		reconciler.Reconcile(ctx, dto.Change{Field: "account_update"})
	})

	messageRepo.AssertNotCalled(t, "GetByMessageID", mock.Anything, mock.Anything)
	templateRepo.AssertNotCalled(t, "UpdateStatusByTemplateID", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusAdvances(t *testing.T) {
	tests := []struct {
		current string
		next    string
		want    bool
	}{
		{"Pending", "Success", true},
		{"Pending", "Failed", true},
		{"Success", "sent", true},
		{"sent", "delivered", true},
		{"delivered", "read", true},
		{"Success", "read", true},
		{"read", "delivered", false},
		{"delivered", "delivered", false},
		{"delivered", "sent", false},
		{"Success", "Failed", false},
		{"sent", "bogus", false},
		{"", "delivered", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.StatusAdvances(tt.current, tt.next),
			"%s -> %s", tt.current, tt.next)
	}
}
