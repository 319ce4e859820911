// Package services contains core business logic
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"whatsapp-gateway/internal/adapters/dto"
	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// MediaFetcher performs the two-hop authenticated retrieval of binary
// media referenced by an inbound message: metadata GET, content GET, blob
// write. The record is created with a placeholder body before any network
// call, so a failure at any step never leaves a half-populated record.
// The message simply stays in its placeholder-text state.
type MediaFetcher struct {
	gateway  ports.CloudGateway
	blobs    ports.BlobStore
	messages ports.MessageRepository
}

// NewMediaFetcher creates a new media fetch pipeline
func NewMediaFetcher(gateway ports.CloudGateway, blobs ports.BlobStore, messages ports.MessageRepository) *MediaFetcher {
	return &MediaFetcher{
		gateway:  gateway,
		blobs:    blobs,
		messages: messages,
	}
}

// HandleMediaMessage classifies one media message. Fetch and storage
// failures are logged with the message-type context and swallowed: a
// failed media fetch must not abort processing of sibling messages in the
// same webhook batch. Only the record insert itself can return an error.
func (f *MediaFetcher) HandleMediaMessage(ctx context.Context, raw *dto.RawMessage, account *domain.Account, msg *domain.Message) error {
	media := raw.MediaObject()
	if media == nil {
		msg.Body = unhandledBody(raw.Type)
		if _, err := f.messages.Create(ctx, msg); err != nil {
			return fmt.Errorf("classify %s message: %w", raw.Type, err)
		}
		return nil
	}

	// Caption does not exist for stickers; the slug placeholder covers it.
	slug := shortID()
	if media.Caption != "" {
		msg.Body = media.Caption
	} else {
		msg.Body = "/files/" + slug
	}

	if _, err := f.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("classify %s message: %w", raw.Type, err)
	}

	metaURL, mimeType, err := f.gateway.MediaMetadata(ctx, account, media.ID)
	if err != nil {
		slog.Error("Media fetch failed",
			"error", fmt.Errorf("%w: %v", ErrMediaMetadata, err),
			"content_type", raw.Type,
			"media_id", media.ID,
		)
		return nil
	}

	content, err := f.gateway.DownloadMedia(ctx, account, metaURL)
	if err != nil {
		slog.Error("Media fetch failed",
			"error", fmt.Errorf("%w: %v", ErrMediaContent, err),
			"content_type", raw.Type,
			"media_id", media.ID,
		)
		return nil
	}

	fileName := slug + "." + extensionFromMime(mimeType)

	blobURL, err := f.blobs.Put(ctx, fileName, mimeType, content)
	if err != nil {
		slog.Error("Media blob write failed",
			"error", err,
			"content_type", raw.Type,
			"file_name", fileName,
		)
		return nil
	}

	// Read-modify-write on the record we just created; classification and
	// URL patch run sequentially within this one flow.
	msg.Attach = blobURL
	if err := f.messages.Update(ctx, msg); err != nil {
		slog.Error("Media URL patch failed",
			"error", err,
			"id", msg.ID,
			"file_name", fileName,
		)
		return nil
	}

	slog.Info("Inbound media stored",
		"message_id", raw.ID,
		"content_type", raw.Type,
		"file_name", fileName,
		"size", len(content),
	)

	return nil
}

// extensionFromMime derives a file extension from the MIME subtype,
// e.g. image/jpeg -> jpeg. Defaults to a generic extension.
func extensionFromMime(mimeType string) string {
	if idx := strings.Index(mimeType, "/"); idx >= 0 && idx+1 < len(mimeType) {
		subtype := mimeType[idx+1:]
		// Subtypes like "ogg; codecs=opus" carry parameters.
		if semi := strings.Index(subtype, ";"); semi >= 0 {
			subtype = subtype[:semi]
		}
		if subtype = strings.TrimSpace(subtype); subtype != "" {
			return subtype
		}
	}
	return "dat"
}

// shortID generates a short random, collision-resistant file name stem.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
