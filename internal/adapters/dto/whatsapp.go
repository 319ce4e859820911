// Package dto contains data transfer objects for external APIs
// Separating DTOs from handlers prevents import cycles
package dto

import "encoding/json"

// WebhookPayload is the top-level webhook envelope from the platform.
// Ref: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks/payload-examples
type WebhookPayload struct {
	Object string  `json:"object"` // Always "whatsapp_business_account"
	Entry  []Entry `json:"entry"`
}

// Entry represents a single business-account entry. Both the entry and
// changes arrays may legitimately be empty; callers treat missing layers
// as "no messages".
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries either a message batch or a status event, discriminated
// by Field ("messages" vs "message_template_status_update").
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue is the nested value object. It is a union of the message
// delivery shape (metadata/contacts/messages/statuses) and the template
// status-update shape (event/message_template_id); unused halves are zero.
type ChangeValue struct {
	MessagingProduct string        `json:"messaging_product,omitempty"`
	Metadata         Metadata      `json:"metadata,omitempty"`
	Contacts         []Contact     `json:"contacts,omitempty"`
	Messages         []RawMessage  `json:"messages,omitempty"`
	Statuses         []StatusEvent `json:"statuses,omitempty"`

	// Template status update fields
	Event             string      `json:"event,omitempty"`
	MessageTemplateID json.Number `json:"message_template_id,omitempty"`
}

// Metadata identifies the receiving phone number registration.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
}

// Contact carries the sender's profile as seen by the platform.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

// RawMessage is one inbound message object. The platform populates exactly
// one of the type-specific sub-objects, keyed by Type; everything else is
// nil. Unknown future types decode with all sub-objects nil.
type RawMessage struct {
	From      string   `json:"from"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Context   *Context `json:"context,omitempty"`

	Text        *TextBody     `json:"text,omitempty"`
	Reaction    *Reaction     `json:"reaction,omitempty"`
	Interactive *Interactive  `json:"interactive,omitempty"`
	Location    *Location     `json:"location,omitempty"`
	Contacts    []ContactCard `json:"contacts,omitempty"`
	Button      *Button       `json:"button,omitempty"`
	Image       *Media        `json:"image,omitempty"`
	Video       *Media        `json:"video,omitempty"`
	Audio       *Media        `json:"audio,omitempty"`
	Document    *Media        `json:"document,omitempty"`
	Sticker     *Media        `json:"sticker,omitempty"`
}

// Context is present when the message quotes an earlier one.
type Context struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

// Reaction carries its own target message id; this is the reply target,
// not the outer Context.
type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Interactive is the user's response to a previously sent interactive
// message. Exactly one of the reply sub-objects is populated.
type Interactive struct {
	Type        string       `json:"type,omitempty"`
	ButtonReply *TitledReply `json:"button_reply,omitempty"`
	ListReply   *TitledReply `json:"list_reply,omitempty"`
	NfmReply    *NfmReply    `json:"nfm_reply,omitempty"`
}

type TitledReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NfmReply is a flow completion; ResponseJSON holds the flow's output.
type NfmReply struct {
	Name         string `json:"name,omitempty"`
	Body         string `json:"body,omitempty"`
	ResponseJSON string `json:"response_json"`
}

// Location coordinates are pointers: the platform can omit them, and the
// classifier substitutes a placeholder when it does.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Name      string   `json:"name,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// ContactCard is one shared contact in a contacts message.
type ContactCard struct {
	Name   ContactName    `json:"name"`
	Phones []ContactPhone `json:"phones,omitempty"`
}

type ContactName struct {
	FormattedName string `json:"formatted_name"`
}

type ContactPhone struct {
	Phone string `json:"phone,omitempty"`
	WaID  string `json:"wa_id,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Button is a quick-reply button press on a template message.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
}

// Media is the common shape of image/video/audio/document/sticker objects.
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

// StatusEvent is one delivery/read/sent receipt for a previously sent
// message.
type StatusEvent struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Timestamp    json.Number   `json:"timestamp,omitempty"` // Millisecond epoch
	RecipientID  string        `json:"recipient_id,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
}

type Conversation struct {
	ID                  string `json:"id"`
	ExpirationTimestamp string `json:"expiration_timestamp,omitempty"`
}

// MediaObject returns the type-specific media sub-object for the message's
// declared type, or nil when the type carries no media.
func (m *RawMessage) MediaObject() *Media {
	switch m.Type {
	case "image":
		return m.Image
	case "video":
		return m.Video
	case "audio":
		return m.Audio
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	}
	return nil
}

// ReplyTarget extracts the default reply linkage: a message is a reply iff
// it carries a non-empty context id. Variant-specific overrides (reaction)
// are applied by the classifier.
func (m *RawMessage) ReplyTarget() (bool, string) {
	if m.Context != nil && m.Context.ID != "" {
		return true, m.Context.ID
	}
	return false, ""
}

// FirstValue returns the first change value of the first entry, tolerating
// missing or empty entry/changes arrays. ok is false when no change exists.
func (p *WebhookPayload) FirstValue() (ChangeValue, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return ChangeValue{}, false
	}
	return p.Entry[0].Changes[0].Value, true
}

// FirstChange returns the first change entry of the first entry.
func (p *WebhookPayload) FirstChange() (Change, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return Change{}, false
	}
	return p.Entry[0].Changes[0], true
}

// SenderProfileName scans every entry/change for the first contact that
// carries a profile display name.
func (p *WebhookPayload) SenderProfileName() string {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, contact := range change.Value.Contacts {
				if contact.Profile.Name != "" {
					return contact.Profile.Name
				}
			}
		}
	}
	return ""
}
