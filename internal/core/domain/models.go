// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"strings"
	"time"
)

// Message is the canonical conversation record. One row per inbound webhook
// message and one row per outbound send attempt.
type Message struct {
	ID                 int64      `json:"id" db:"id"`
	MessageID          *string    `json:"message_id,omitempty" db:"message_id"` // Platform-assigned external id
	Type               string     `json:"type" db:"type"`                       // "Incoming", "Outgoing"
	From               string     `json:"from,omitempty" db:"from_number"`
	To                 string     `json:"to,omitempty" db:"to_number"`
	ContentType        string     `json:"content_type" db:"content_type"`
	MessageType        string     `json:"message_type,omitempty" db:"message_type"` // "Manual", "Template" (outgoing only)
	Body               string     `json:"message" db:"message"`
	Attach             string     `json:"attach,omitempty" db:"attach"` // Retrievable blob URL
	IsReply            bool       `json:"is_reply" db:"is_reply"`
	ReplyToMessageID   *string    `json:"reply_to_message_id,omitempty" db:"reply_to_message_id"`
	Status             string     `json:"status" db:"status"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	ReadAt             *time.Time `json:"read_at,omitempty" db:"read_at"`
	ConversationID     *string    `json:"conversation_id,omitempty" db:"conversation_id"`
	Account            string     `json:"account" db:"account"`
	ProfileName        string     `json:"profile_name,omitempty" db:"profile_name"`
	ReferenceDoctype   string     `json:"reference_doctype,omitempty" db:"reference_doctype"`
	ReferenceName      string     `json:"reference_name,omitempty" db:"reference_name"`
	Template           string     `json:"template,omitempty" db:"template"`
	TemplateParameters string     `json:"template_parameters,omitempty" db:"template_parameters"` // JSON array, audit trail
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// Message direction constants
const (
	DirectionIncoming = "Incoming"
	DirectionOutgoing = "Outgoing"
)

// Outgoing message kind constants
const (
	MessageKindManual   = "Manual"
	MessageKindTemplate = "Template"
)

// Content type constants. Inbound types mirror the platform's raw "type"
// field; unknown platform types are stored verbatim.
const (
	ContentTypeText        = "text"
	ContentTypeImage       = "image"
	ContentTypeVideo       = "video"
	ContentTypeAudio       = "audio"
	ContentTypeDocument    = "document"
	ContentTypeSticker     = "sticker"
	ContentTypeReaction    = "reaction"
	ContentTypeLocation    = "location"
	ContentTypeContacts    = "contacts"
	ContentTypeButtonReply = "button_reply"
	ContentTypeListReply   = "list_reply"
	ContentTypeFlowReply   = "flow_reply"
	ContentTypeButton      = "button"
)

// Lifecycle status constants, unified across the outbound send result and
// inbound delivery receipts.
const (
	StatusPending   = "Pending"
	StatusSuccess   = "Success"
	StatusFailed    = "Failed"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// statusRank orders the lifecycle states. Transitions are monotonic: an
// event carrying a state of equal or lower rank than the stored one is
// ignored, never reverted.
var statusRank = map[string]int{
	StatusPending:   0,
	StatusSuccess:   1,
	StatusFailed:    1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
}

// StatusAdvances reports whether moving from current to next is a forward
// transition in the lifecycle partial order.
func StatusAdvances(current, next string) bool {
	cr, ok := statusRank[current]
	if !ok {
		cr = -1
	}
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	return nr > cr
}

// IsMediaType reports whether a raw inbound type carries a downloadable
// media object.
func IsMediaType(t string) bool {
	switch t {
	case ContentTypeImage, ContentTypeVideo, ContentTypeAudio, ContentTypeDocument, ContentTypeSticker:
		return true
	}
	return false
}

// Account is one WhatsApp Business registration. Created by an
// administrator; read-only to this service.
type Account struct {
	Name          string `json:"name" db:"name"`
	PhoneNumberID string `json:"phone_number_id" db:"phone_number_id"` // Routing key, unique
	PhoneID       string `json:"phone_id" db:"phone_id"`               // Send endpoint path segment
	URL           string `json:"url" db:"url"`                         // e.g. https://graph.facebook.com
	Version       string `json:"version" db:"version"`                 // e.g. v23.0
	Token         string `json:"-" db:"token"`                         // Never expose in JSON
	VerifyToken   string `json:"-" db:"webhook_verify_token"`
}

// Template is a reusable, pre-approved outbound message definition.
// Immutable at send time; a read-only snapshot is used to build payloads.
type Template struct {
	Name         string `json:"name" db:"name"`
	ActualName   string `json:"actual_name,omitempty" db:"actual_name"` // Name registered with the platform
	TemplateName string `json:"template_name" db:"template_name"`
	LanguageCode string `json:"language_code" db:"language_code"`
	FieldNames   string `json:"field_names,omitempty" db:"field_names"` // Comma-separated parameter source fields
	SampleValues string `json:"sample_values,omitempty" db:"sample_values"`
	HeaderType   string `json:"header_type,omitempty" db:"header_type"` // "IMAGE" when a header component exists
	Sample       string `json:"sample,omitempty" db:"sample"`           // Header image URL or relative path
	ID           string `json:"template_id,omitempty" db:"template_id"` // Platform template id
	Status       string `json:"status,omitempty" db:"status"`
}

// ParameterFields returns the ordered parameter source field names,
// falling back to sample values when no field names are declared.
func (t *Template) ParameterFields() []string {
	src := t.FieldNames
	if src == "" {
		src = t.SampleValues
	}
	if src == "" {
		return nil
	}
	parts := strings.Split(src, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		fields = append(fields, strings.TrimSpace(p))
	}
	return fields
}

// Profile is a denormalized cache of a sender's display name keyed by
// phone number. Purely a convenience cache, never authoritative.
type Profile struct {
	Number      string    `json:"number"`
	ProfileName string    `json:"profile_name"`
	Account     string    `json:"account"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NotificationLog is an append-only audit record of a raw inbound webhook
// payload or a send API error envelope. Write-once.
type NotificationLog struct {
	ID        int64     `json:"id" db:"id"`
	Template  string    `json:"template" db:"template"` // "Webhook" or "Text Message"
	MetaData  string    `json:"meta_data" db:"meta_data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NotificationLog source constants
const (
	LogSourceWebhook = "Webhook"
	LogSourceSend    = "Text Message"
)

// FormatNumber normalizes a phone number to the canonical digits-only
// E.164 form the send API expects.
func FormatNumber(number string) string {
	replacer := strings.NewReplacer("+", "", " ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(number)
}
