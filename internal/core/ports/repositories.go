// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"io"

	"whatsapp-gateway/internal/core/domain"
)

// AccountRepository resolves WhatsApp account registrations.
type AccountRepository interface {
	// GetByPhoneNumberID looks an account up by the platform-assigned
	// routing key. Returns (nil, nil) on zero matches: callers treat a
	// missing account as "likely a status-only payload" and continue.
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*domain.Account, error)

	// GetByVerifyToken looks an account up by its configured webhook
	// verify token. Used by the GET handshake, which carries no routing
	// key. Returns (nil, nil) on zero matches.
	GetByVerifyToken(ctx context.Context, token string) (*domain.Account, error)

	// GetByName looks an account up by its administrative name, as
	// supplied by outbound send callers. Returns (nil, nil) on zero
	// matches.
	GetByName(ctx context.Context, name string) (*domain.Account, error)
}

// MessageRepository handles persistence of conversation records.
type MessageRepository interface {
	// Create inserts a new message record and returns its internal id.
	Create(ctx context.Context, msg *domain.Message) (int64, error)

	// GetByMessageID retrieves a message by its external platform id.
	// Returns (nil, nil) when no record matches.
	GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error)

	// Update persists changes to an existing record, keyed by internal id.
	Update(ctx context.Context, msg *domain.Message) error
}

// TemplateRepository provides read-only template snapshots plus the status
// column updated by template-approval webhook events.
type TemplateRepository interface {
	// GetTemplateByName returns (nil, nil) when no template matches.
	GetTemplateByName(ctx context.Context, name string) (*domain.Template, error)

	// UpdateStatusByTemplateID sets the status column for the template
	// carrying the given platform template id. A no-op update when the id
	// matches no row is acceptable.
	UpdateStatusByTemplateID(ctx context.Context, templateID, status string) error
}

// ProfileCache is the denormalized display-name cache. All operations are
// best-effort: a cache failure must never block message ingestion.
type ProfileCache interface {
	Get(ctx context.Context, number string) (*domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
}

// NotificationLogRepository is the append-only audit sink.
type NotificationLogRepository interface {
	Append(ctx context.Context, log *domain.NotificationLog) error
}

// BlobStore accepts bytes and returns a retrievable URL.
type BlobStore interface {
	// Put stores the content under fileName and returns the public URL
	// from which it can be fetched back.
	Put(ctx context.Context, fileName, mimeType string, content []byte) (string, error)

	// Open streams a stored blob by file name. The caller closes the reader.
	Open(ctx context.Context, fileName string) (io.ReadCloser, string, int64, error)
}

// DocumentReader reads display-formatted field values off an arbitrary
// business document referenced by an outbound message.
type DocumentReader interface {
	FieldValues(ctx context.Context, doctype, name string, fields []string) (map[string]string, error)
}

// SendErrorDetail is the structured error envelope returned by the send API.
type SendErrorDetail struct {
	Message   string `json:"message"`
	UserTitle string `json:"error_user_title"`
	Raw       string `json:"-"` // Full envelope body for audit logging
}

// CloudGateway is the outbound WhatsApp Cloud API collaborator.
type CloudGateway interface {
	// SendMessage POSTs a built payload to the account's messages endpoint
	// and returns the platform-assigned message id. When the API answers
	// with a structured error envelope, detail is non-nil alongside err.
	SendMessage(ctx context.Context, account *domain.Account, payload map[string]any) (string, *SendErrorDetail, error)

	// MediaMetadata performs the first hop of a media fetch and returns
	// the short-lived download URL and MIME type for a media id.
	MediaMetadata(ctx context.Context, account *domain.Account, mediaID string) (url, mimeType string, err error)

	// DownloadMedia performs the second hop: an authenticated GET of the
	// URL returned by MediaMetadata.
	DownloadMedia(ctx context.Context, account *domain.Account, url string) ([]byte, error)
}
