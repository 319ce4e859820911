// Package services contains core business logic
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"whatsapp-gateway/internal/adapters/dto"
	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// Body placeholders for degraded classifications
const (
	locationMissingCoords = "Location received, but coordinates are missing."
	contactNoWaID         = "No WA ID"
)

// Classifier normalizes one raw inbound message object into a canonical
// record. Every successful classification creates exactly one record; the
// inbound path never updates an existing record and never deduplicates,
// since the platform delivers at-least-once.
type Classifier struct {
	messages ports.MessageRepository
	media    *MediaFetcher
	profiles ports.ProfileCache
}

// NewClassifier creates a new classifier instance
func NewClassifier(messages ports.MessageRepository, media *MediaFetcher, profiles ports.ProfileCache) *Classifier {
	return &Classifier{
		messages: messages,
		media:    media,
		profiles: profiles,
	}
}

// Classify processes one inbound message. Unknown top-level types never
// raise; they produce a record with an explicit marker body. The only path
// that creates no record is an interactive message with no recognized
// reply sub-type.
func (c *Classifier) Classify(ctx context.Context, raw *dto.RawMessage, account *domain.Account, profileName string) error {
	isReply, replyTo := raw.ReplyTarget()

	msg := &domain.Message{
		Type:        domain.DirectionIncoming,
		From:        raw.From,
		ContentType: raw.Type,
		IsReply:     isReply,
		Account:     account.Name,
		ProfileName: profileName,
		CreatedAt:   time.Now(),
	}
	if raw.ID != "" {
		id := raw.ID
		msg.MessageID = &id
	}
	if replyTo != "" {
		target := replyTo
		msg.ReplyToMessageID = &target
	}

	switch raw.Type {
	case domain.ContentTypeText:
		if raw.Text != nil {
			msg.Body = raw.Text.Body
		}

	case domain.ContentTypeReaction:
		if raw.Reaction == nil {
			msg.Body = unhandledBody(raw.Type)
			break
		}
		// The reply target is the reaction's own message id, never the
		// outer context id.
		msg.Body = raw.Reaction.Emoji
		target := raw.Reaction.MessageID
		msg.ReplyToMessageID = &target
		msg.IsReply = true

	case "interactive":
		contentType, body, ok := classifyInteractive(raw.Interactive)
		if !ok {
			slog.Warn("Dropping interactive message with unrecognized sub-type",
				"message_id", raw.ID,
				"from", raw.From,
			)
			return nil
		}
		msg.ContentType = contentType
		msg.Body = body
		msg.IsReply = true

	case domain.ContentTypeLocation:
		msg.Body = locationBody(raw.Location)

	case domain.ContentTypeContacts:
		msg.Body = contactsBody(raw.Contacts)

	case domain.ContentTypeButton:
		if raw.Button != nil {
			msg.Body = raw.Button.Text
		}

	case domain.ContentTypeImage, domain.ContentTypeVideo, domain.ContentTypeAudio,
		domain.ContentTypeDocument, domain.ContentTypeSticker:
		// Media kinds take the two-hop fetch path, which creates the
		// record itself and patches the blob URL in afterwards.
		if err := c.media.HandleMediaMessage(ctx, raw, account, msg); err != nil {
			return err
		}
		c.cacheSenderProfile(ctx, raw.From, profileName, account.Name)
		return nil

	default:
		// Forward-compatibility arm: system, unsupported and future
		// platform types are expected and must degrade gracefully.
		msg.Body = unhandledBody(raw.Type)
	}

	if _, err := c.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("classify %s message: %w", raw.Type, err)
	}

	slog.Info("Inbound message classified",
		"message_id", raw.ID,
		"content_type", msg.ContentType,
		"is_reply", msg.IsReply,
	)

	c.cacheSenderProfile(ctx, raw.From, profileName, account.Name)
	return nil
}

// classifyInteractive sub-dispatches on the reply keys in priority order:
// button_reply, then list_reply, then nfm_reply. ok is false when none of
// the three is present.
func classifyInteractive(in *dto.Interactive) (contentType, body string, ok bool) {
	if in == nil {
		return "", "", false
	}
	switch {
	case in.ButtonReply != nil:
		return domain.ContentTypeButtonReply, in.ButtonReply.Title, true
	case in.ListReply != nil:
		return domain.ContentTypeListReply, in.ListReply.Title, true
	case in.NfmReply != nil:
		return domain.ContentTypeFlowReply, in.NfmReply.ResponseJSON, true
	}
	return "", "", false
}

// locationBody renders a location as a structured JSON body. Coordinates
// are mandatory; when absent, a literal placeholder is substituted instead
// of failing.
func locationBody(loc *dto.Location) string {
	if loc == nil || loc.Latitude == nil || loc.Longitude == nil {
		return locationMissingCoords
	}

	body := map[string]any{
		"latitude":  *loc.Latitude,
		"longitude": *loc.Longitude,
	}
	if loc.Name != "" {
		body["name"] = loc.Name
	}
	if loc.Address != "" {
		body["address"] = loc.Address
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return locationMissingCoords
	}
	return string(encoded)
}

// contactsBody renders shared contacts as pipe-joined "Name (wa_id)"
// entries. A contact without a wa_id renders with a literal sentinel.
func contactsBody(cards []dto.ContactCard) string {
	entries := make([]string, 0, len(cards))
	for _, card := range cards {
		name := card.Name.FormattedName
		if name == "" {
			name = "Unknown Name"
		}

		waID := contactNoWaID
		for _, phone := range card.Phones {
			if phone.WaID != "" {
				waID = phone.WaID
				break
			}
		}

		entries = append(entries, fmt.Sprintf("%s (%s)", name, waID))
	}
	return strings.Join(entries, " | ")
}

func unhandledBody(rawType string) string {
	return fmt.Sprintf("Unhandled type: %s", rawType)
}

// cacheSenderProfile refreshes the display-name cache. Best-effort: a
// cache failure is logged and never blocks ingestion.
func (c *Classifier) cacheSenderProfile(ctx context.Context, from, profileName, account string) {
	if profileName == "" || from == "" {
		return
	}

	number := domain.FormatNumber(from)

	cached, err := c.profiles.Get(ctx, number)
	if err != nil {
		slog.Warn("Profile cache read failed", "error", err, "number", number)
		return
	}
	if cached != nil && cached.ProfileName == profileName {
		return
	}

	err = c.profiles.Upsert(ctx, &domain.Profile{
		Number:      number,
		ProfileName: profileName,
		Account:     account,
	})
	if err != nil {
		slog.Warn("Profile cache write failed", "error", err, "number", number)
	}
}
