// Package services contains core business logic
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// ManualSendRequest is a caller request to send a text/media/reaction
// message.
type ManualSendRequest struct {
	To               string `json:"to"`
	Body             string `json:"message"`
	ContentType      string `json:"content_type"`
	Account          string `json:"account"`
	ReferenceDoctype string `json:"reference_doctype,omitempty"`
	ReferenceName    string `json:"reference_name,omitempty"`
	Attach           string `json:"attach,omitempty"`
	ReplyToMessageID string `json:"reply_to_message_id,omitempty"`
}

// TemplateSendRequest is a caller request to send a stored template (by
// name) or a fully custom JSON payload. Exactly one of Template and
// TemplateJSON must be supplied.
type TemplateSendRequest struct {
	To               string            `json:"to"`
	Account          string            `json:"account"`
	ReferenceDoctype string            `json:"reference_doctype,omitempty"`
	ReferenceName    string            `json:"reference_name,omitempty"`
	Template         string            `json:"template,omitempty"`
	TemplateJSON     string            `json:"template_json,omitempty"`
	Values           map[string]string `json:"values,omitempty"` // Explicit parameter values, overrides the reference document
}

// Outbound constructs platform send payloads for manual, template and
// custom-JSON messages and dispatches them through the Cloud API,
// persisting one record per attempt regardless of outcome.
type Outbound struct {
	accounts      ports.AccountRepository
	messages      ports.MessageRepository
	templates     ports.TemplateRepository
	logs          ports.NotificationLogRepository
	docs          ports.DocumentReader
	gateway       ports.CloudGateway
	publicBaseURL string
}

// NewOutbound creates a new outbound send service
func NewOutbound(
	accounts ports.AccountRepository,
	messages ports.MessageRepository,
	templates ports.TemplateRepository,
	logs ports.NotificationLogRepository,
	docs ports.DocumentReader,
	gateway ports.CloudGateway,
	publicBaseURL string,
) *Outbound {
	return &Outbound{
		accounts:      accounts,
		messages:      messages,
		templates:     templates,
		logs:          logs,
		docs:          docs,
		gateway:       gateway,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// SendManual sends a manual text/media/reaction message. Returns the
// persisted record with external message id and status populated.
func (s *Outbound) SendManual(ctx context.Context, req ManualSendRequest) (*domain.Message, error) {
	account, err := s.resolveAccount(ctx, req.Account)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Type:             domain.DirectionOutgoing,
		MessageType:      domain.MessageKindManual,
		To:               req.To,
		Body:             req.Body,
		ContentType:      req.ContentType,
		Attach:           req.Attach,
		Account:          account.Name,
		ReferenceDoctype: req.ReferenceDoctype,
		ReferenceName:    req.ReferenceName,
		Status:           domain.StatusPending,
		CreatedAt:        time.Now(),
	}
	if req.ReplyToMessageID != "" {
		target := req.ReplyToMessageID
		msg.ReplyToMessageID = &target
		msg.IsReply = true
	}

	payload := BuildManualPayload(msg, s.publicBaseURL)

	return s.dispatch(ctx, account, msg, payload)
}

// SendTemplateOrCustom sends a stored template or a caller-supplied custom
// JSON payload. The custom path is the only way interactive, location and
// contacts outbound messages are constructed.
func (s *Outbound) SendTemplateOrCustom(ctx context.Context, req TemplateSendRequest) (*domain.Message, error) {
	if req.Template == "" && req.TemplateJSON == "" {
		return nil, NewInputError("either a template name or template_json must be provided")
	}
	if req.Template != "" && req.TemplateJSON != "" {
		return nil, NewInputError("cannot provide both a template name and template_json; use one or the other")
	}

	account, err := s.resolveAccount(ctx, req.Account)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		Type:             domain.DirectionOutgoing,
		MessageType:      domain.MessageKindTemplate,
		To:               req.To,
		ContentType:      domain.ContentTypeText,
		Account:          account.Name,
		ReferenceDoctype: req.ReferenceDoctype,
		ReferenceName:    req.ReferenceName,
		Template:         req.Template,
		Status:           domain.StatusPending,
		CreatedAt:        time.Now(),
	}

	var payload map[string]any
	if req.Template != "" {
		payload, err = s.buildTemplatePayload(ctx, req, msg)
	} else {
		payload, err = s.buildCustomPayload(req, msg)
	}
	if err != nil {
		return nil, err
	}

	return s.dispatch(ctx, account, msg, payload)
}

func (s *Outbound) resolveAccount(ctx context.Context, name string) (*domain.Account, error) {
	if name == "" {
		return nil, NewInputError("account is required")
	}
	account, err := s.accounts.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	if account == nil {
		return nil, NewInputError("unknown account %q", name)
	}
	return account, nil
}

// BuildManualPayload constructs the send payload for a manual message.
// The shape is driven by content_type; attachment links that are not
// already absolute are rewritten against the instance's public base URL.
func BuildManualPayload(msg *domain.Message, publicBaseURL string) map[string]any {
	link := msg.Attach
	if link != "" && !strings.HasPrefix(link, "http") {
		link = strings.TrimRight(publicBaseURL, "/") + "/" + strings.TrimLeft(link, "/")
	}

	data := map[string]any{
		"messaging_product": "whatsapp",
		"to":                domain.FormatNumber(msg.To),
		"type":              msg.ContentType,
	}

	if msg.IsReply && msg.ReplyToMessageID != nil {
		data["context"] = map[string]any{"message_id": *msg.ReplyToMessageID}
	}

	switch msg.ContentType {
	case domain.ContentTypeDocument, domain.ContentTypeImage, domain.ContentTypeVideo:
		data[msg.ContentType] = map[string]any{
			"link":    link,
			"caption": msg.Body,
		}
	case domain.ContentTypeReaction:
		reaction := map[string]any{"emoji": msg.Body}
		if msg.ReplyToMessageID != nil {
			reaction["message_id"] = *msg.ReplyToMessageID
		}
		data["reaction"] = reaction
	case domain.ContentTypeAudio:
		data["audio"] = map[string]any{"link": link}
	case domain.ContentTypeText:
		data["text"] = map[string]any{
			"preview_url": true,
			"body":        msg.Body,
		}
	}

	return data
}

// buildTemplatePayload resolves the stored template and substitutes its
// ordered parameter list from the explicit value map or the referenced
// business document. Substituted values are persisted back onto the record
// for audit.
func (s *Outbound) buildTemplatePayload(ctx context.Context, req TemplateSendRequest, msg *domain.Message) (map[string]any, error) {
	tmpl, err := s.templates.GetTemplateByName(ctx, req.Template)
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}
	if tmpl == nil {
		return nil, NewInputError("unknown template %q", req.Template)
	}

	name := tmpl.ActualName
	if name == "" {
		name = tmpl.TemplateName
	}

	components := []map[string]any{}

	fields := tmpl.ParameterFields()
	if len(fields) > 0 {
		values, err := s.resolveParameterValues(ctx, req, fields)
		if err != nil {
			return nil, err
		}

		parameters := make([]map[string]any, 0, len(fields))
		ordered := make([]string, 0, len(fields))
		for _, field := range fields {
			value := values[field]
			parameters = append(parameters, map[string]any{
				"type": "text",
				"text": value,
			})
			ordered = append(ordered, value)
		}

		audit, _ := json.Marshal(ordered)
		msg.TemplateParameters = string(audit)

		components = append(components, map[string]any{
			"type":       "body",
			"parameters": parameters,
		})
	}

	if tmpl.HeaderType == "IMAGE" && tmpl.Sample != "" {
		url := tmpl.Sample
		if !strings.HasPrefix(url, "http") {
			url = s.publicBaseURL + "/" + strings.TrimLeft(url, "/")
		}
		components = append(components, map[string]any{
			"type": "header",
			"parameters": []map[string]any{{
				"type":  "image",
				"image": map[string]any{"link": url},
			}},
		})
	}

	return map[string]any{
		"messaging_product": "whatsapp",
		"to":                domain.FormatNumber(req.To),
		"type":              "template",
		"template": map[string]any{
			"name":       name,
			"language":   map[string]any{"code": tmpl.LanguageCode},
			"components": components,
		},
	}, nil
}

// resolveParameterValues picks the explicit value map when supplied,
// otherwise reads display-formatted fields off the referenced document.
func (s *Outbound) resolveParameterValues(ctx context.Context, req TemplateSendRequest, fields []string) (map[string]string, error) {
	if req.Values != nil {
		return req.Values, nil
	}

	if req.ReferenceDoctype == "" || req.ReferenceName == "" {
		return nil, NewInputError("template %q requires parameter values or a reference document", req.Template)
	}

	values, err := s.docs.FieldValues(ctx, req.ReferenceDoctype, req.ReferenceName, fields)
	if err != nil {
		return nil, fmt.Errorf("resolve template parameters: %w", err)
	}
	return values, nil
}

// buildCustomPayload passes a caller-supplied JSON object through
// verbatim, filling messaging_product and to only when absent. A custom
// payload whose type is text, location or contacts reclassifies the
// record as a manual send so it is not double-submitted as a template.
func (s *Outbound) buildCustomPayload(req TemplateSendRequest, msg *domain.Message) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(req.TemplateJSON), &data); err != nil {
		return nil, NewInputError("invalid JSON provided in template_json: %v", err)
	}

	if _, ok := data["messaging_product"]; !ok {
		data["messaging_product"] = "whatsapp"
	}
	if _, ok := data["to"]; !ok {
		data["to"] = domain.FormatNumber(req.To)
	}

	payloadType, _ := data["type"].(string)
	switch payloadType {
	case domain.ContentTypeText, domain.ContentTypeLocation, domain.ContentTypeContacts:
		msg.MessageType = domain.MessageKindManual
		msg.ContentType = payloadType
		if body, ok := data["text"].(map[string]any); ok {
			if text, ok := body["body"].(string); ok {
				msg.Body = text
			}
		}
	case "":
		// Custom payloads must declare their own type (e.g. interactive).
	default:
		msg.ContentType = payloadType
	}

	return data, nil
}

// dispatch persists the Pending record, performs the authenticated POST
// and patches the outcome back. The record is always persisted regardless
// of the send result.
func (s *Outbound) dispatch(ctx context.Context, account *domain.Account, msg *domain.Message, payload map[string]any) (*domain.Message, error) {
	if _, err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist outbound message: %w", err)
	}

	externalID, detail, err := s.gateway.SendMessage(ctx, account, payload)
	if err != nil {
		msg.Status = domain.StatusFailed
		if updateErr := s.messages.Update(ctx, msg); updateErr != nil {
			slog.Error("Failed to persist send failure", "error", updateErr, "id", msg.ID)
		}
		return msg, s.sendError(ctx, detail, err)
	}

	msg.MessageID = &externalID
	msg.Status = domain.StatusSuccess
	if err := s.messages.Update(ctx, msg); err != nil {
		slog.Error("Failed to persist send result", "error", err, "id", msg.ID)
	}

	return msg, nil
}

// sendError audit-logs the platform's error envelope when available and
// wraps it into a user-facing error.
func (s *Outbound) sendError(ctx context.Context, detail *ports.SendErrorDetail, err error) error {
	if detail == nil {
		return &SendAPIError{
			Title:   "API Request Failed",
			Message: fmt.Sprintf("WhatsApp API Error: %v", err),
			Err:     err,
		}
	}

	if logErr := s.logs.Append(ctx, &domain.NotificationLog{
		Template: domain.LogSourceSend,
		MetaData: detail.Raw,
	}); logErr != nil {
		slog.Error("Failed to audit-log send error envelope", "error", logErr)
	}

	title := detail.UserTitle
	if title == "" {
		title = "WhatsApp API Error"
	}
	message := detail.Message
	if message == "" {
		message = "Unknown API Error"
	}

	return &SendAPIError{
		Title:   title,
		Message: message,
		Err:     err,
	}
}
