package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
	"whatsapp-gateway/internal/core/services"
)

// stubMessages keeps created records in memory.
type stubMessages struct {
	created []*domain.Message
}

func (s *stubMessages) Create(ctx context.Context, msg *domain.Message) (int64, error) {
	msg.ID = int64(len(s.created) + 1)
	s.created = append(s.created, msg)
	return msg.ID, nil
}

func (s *stubMessages) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	return nil, nil
}

func (s *stubMessages) Update(ctx context.Context, msg *domain.Message) error {
	return nil
}

type stubTemplates struct{}

func (stubTemplates) GetTemplateByName(ctx context.Context, name string) (*domain.Template, error) {
	return nil, nil
}

func (stubTemplates) UpdateStatusByTemplateID(ctx context.Context, templateID, status string) error {
	return nil
}

type stubLogSink struct{}

func (stubLogSink) Append(ctx context.Context, log *domain.NotificationLog) error { return nil }

type stubDocs struct{}

func (stubDocs) FieldValues(ctx context.Context, doctype, name string, fields []string) (map[string]string, error) {
	return nil, nil
}

// stubGateway returns a canned send result.
type stubGateway struct {
	messageID string
	detail    *ports.SendErrorDetail
	err       error
}

func (s *stubGateway) SendMessage(ctx context.Context, account *domain.Account, payload map[string]any) (string, *ports.SendErrorDetail, error) {
	return s.messageID, s.detail, s.err
}

func (s *stubGateway) MediaMetadata(ctx context.Context, account *domain.Account, mediaID string) (string, string, error) {
	return "", "", nil
}

func (s *stubGateway) DownloadMedia(ctx context.Context, account *domain.Account, url string) ([]byte, error) {
	return nil, nil
}

func newTestSendHandler(gw *stubGateway) (*SendHandler, *stubMessages) {
	accounts := &stubAccounts{account: &domain.Account{
		Name:          "Main Line",
		PhoneNumberID: "106540352242922",
		PhoneID:       "106540352242922",
		URL:           "https://graph.facebook.com",
		Version:       "v23.0",
	}}
	messages := &stubMessages{}

	outbound := services.NewOutbound(
		accounts, messages, stubTemplates{}, stubLogSink{}, stubDocs{}, gw,
		"https://gateway.example",
	)

	return NewSendHandler(outbound), messages
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleSendMessage_Success(t *testing.T) {
	handler, messages := newTestSendHandler(&stubGateway{messageID: "wamid.out1"})

	body := `{"to":"15551234567","message":"hello","content_type":"text","account":"Main Line"}`
	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleSendMessage(rec, req)

	assert.Equal(t, 200, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "Success", resp.Message)

	require.Len(t, messages.created, 1)
	assert.Equal(t, domain.StatusSuccess, messages.created[0].Status)
	require.NotNil(t, messages.created[0].MessageID)
	assert.Equal(t, "wamid.out1", *messages.created[0].MessageID)
}

func TestHandleSendMessage_MissingRequiredFields(t *testing.T) {
	handler, messages := newTestSendHandler(&stubGateway{})

	body := `{"message":"hello","account":"Main Line"}`
	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleSendMessage(rec, req)

	assert.Equal(t, 400, rec.Code)
	assert.Empty(t, messages.created)
}

func TestHandleSendMessage_InvalidBody(t *testing.T) {
	handler, _ := newTestSendHandler(&stubGateway{})

	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(`{"to":`))
	rec := httptest.NewRecorder()

	handler.HandleSendMessage(rec, req)

	assert.Equal(t, 400, rec.Code)
}

// Platform rejections map to 502: the request was valid, the upstream said no.
func TestHandleSendMessage_UpstreamRejection(t *testing.T) {
	handler, messages := newTestSendHandler(&stubGateway{
		detail: &ports.SendErrorDetail{
			Message:   "Recipient phone number not in allowed list",
			UserTitle: "Recipient Not Allowed",
		},
		err: errors.New("send api error (code 131030)"),
	})

	body := `{"to":"15551234567","message":"hello","content_type":"text","account":"Main Line"}`
	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleSendMessage(rec, req)

	assert.Equal(t, 502, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Contains(t, resp.Message, "Recipient Not Allowed")

	// The failed attempt is still recorded
	require.Len(t, messages.created, 1)
	assert.Equal(t, domain.StatusFailed, messages.created[0].Status)
}

func TestHandleSendTemplate_ExclusiveArgumentsRejected(t *testing.T) {
	handler, messages := newTestSendHandler(&stubGateway{})

	body := `{"to":"15551234567","account":"Main Line","template":"promo","template_json":"{}"}`
	req := httptest.NewRequest("POST", "/api/messages/template", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleSendTemplate(rec, req)

	assert.Equal(t, 400, rec.Code)
	assert.Empty(t, messages.created)
}

func TestHandleSendTemplate_MissingTo(t *testing.T) {
	handler, _ := newTestSendHandler(&stubGateway{})

	body := `{"account":"Main Line","template":"promo"}`
	req := httptest.NewRequest("POST", "/api/messages/template", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleSendTemplate(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestHandleSendTemplate_CustomJSONSuccess(t *testing.T) {
	handler, messages := newTestSendHandler(&stubGateway{messageID: "wamid.custom1"})

	body := `{"to":"15551234567","account":"Main Line","template_json":"{\"type\":\"text\",\"text\":{\"body\":\"hi\"}}"}`
	req := httptest.NewRequest("POST", "/api/messages/template", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleSendTemplate(rec, req)

	assert.Equal(t, 200, rec.Code)
	require.Len(t, messages.created, 1)
	assert.Equal(t, domain.MessageKindManual, messages.created[0].MessageType)
	assert.Equal(t, "hi", messages.created[0].Body)
}
