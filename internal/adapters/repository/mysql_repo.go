// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// Ensure MySQLRepository implements the required interfaces
var (
	_ ports.AccountRepository         = (*MySQLRepository)(nil)
	_ ports.MessageRepository         = (*MySQLRepository)(nil)
	_ ports.TemplateRepository        = (*MySQLRepository)(nil)
	_ ports.NotificationLogRepository = (*MySQLRepository)(nil)
	_ ports.DocumentReader            = (*MySQLRepository)(nil)
)

// MySQLRepository implements the record store on MySQL. Concurrent writes
// are serialized at the storage layer; no in-process locking is needed.
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository creates a new MySQL repository instance
func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{
		db: db,
	}
}

// ============================================================================
// AccountRepository Implementation
// ============================================================================

const accountColumns = `name, phone_number_id, phone_id, url, version, token, webhook_verify_token`

// GetByPhoneNumberID looks an account up by the platform routing key.
// Zero matches is not an error: status-only payloads lack routing context.
func (r *MySQLRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone_number_id = ? LIMIT 1`
	return r.scanAccount(ctx, query, phoneNumberID)
}

// GetByVerifyToken looks an account up by its webhook verify token.
func (r *MySQLRepository) GetByVerifyToken(ctx context.Context, token string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE webhook_verify_token = ? LIMIT 1`
	return r.scanAccount(ctx, query, token)
}

// GetByName looks an account up by its administrative name.
func (r *MySQLRepository) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE name = ? LIMIT 1`
	return r.scanAccount(ctx, query, name)
}

func (r *MySQLRepository) scanAccount(ctx context.Context, query string, arg string) (*domain.Account, error) {
	var acc domain.Account
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&acc.Name,
		&acc.PhoneNumberID,
		&acc.PhoneID,
		&acc.URL,
		&acc.Version,
		&acc.Token,
		&acc.VerifyToken,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		slog.Error("Failed to query account", "error", err)
		return nil, fmt.Errorf("query account: %w", err)
	}

	return &acc, nil
}

// ============================================================================
// MessageRepository Implementation
// ============================================================================

const messageColumns = `id, message_id, type, from_number, to_number, content_type,
	message_type, message, attach, is_reply, reply_to_message_id, status,
	delivered_at, read_at, conversation_id, account, profile_name,
	reference_doctype, reference_name, template, template_parameters, created_at`

// Create inserts a new message record and returns its internal id.
func (r *MySQLRepository) Create(ctx context.Context, msg *domain.Message) (int64, error) {
	query := `
		INSERT INTO messages (
			message_id, type, from_number, to_number, content_type,
			message_type, message, attach, is_reply, reply_to_message_id,
			status, delivered_at, read_at, conversation_id, account,
			profile_name, reference_doctype, reference_name, template,
			template_parameters, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, query,
		msg.MessageID,
		msg.Type,
		msg.From,
		msg.To,
		msg.ContentType,
		msg.MessageType,
		msg.Body,
		msg.Attach,
		msg.IsReply,
		msg.ReplyToMessageID,
		msg.Status,
		msg.DeliveredAt,
		msg.ReadAt,
		msg.ConversationID,
		msg.Account,
		msg.ProfileName,
		msg.ReferenceDoctype,
		msg.ReferenceName,
		msg.Template,
		msg.TemplateParameters,
		msg.CreatedAt,
	)

	if err != nil {
		slog.Error("Failed to save message",
			"error", err,
			"content_type", msg.ContentType,
			"account", msg.Account,
		)
		return 0, fmt.Errorf("save message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return id, nil
}

// GetByMessageID retrieves a message by its external platform id.
func (r *MySQLRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE message_id = ? LIMIT 1`

	var msg domain.Message
	err := r.db.QueryRowContext(ctx, query, messageID).Scan(
		&msg.ID,
		&msg.MessageID,
		&msg.Type,
		&msg.From,
		&msg.To,
		&msg.ContentType,
		&msg.MessageType,
		&msg.Body,
		&msg.Attach,
		&msg.IsReply,
		&msg.ReplyToMessageID,
		&msg.Status,
		&msg.DeliveredAt,
		&msg.ReadAt,
		&msg.ConversationID,
		&msg.Account,
		&msg.ProfileName,
		&msg.ReferenceDoctype,
		&msg.ReferenceName,
		&msg.Template,
		&msg.TemplateParameters,
		&msg.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		slog.Error("Failed to get message by external id",
			"error", err,
			"message_id", messageID,
		)
		return nil, fmt.Errorf("get message by message_id: %w", err)
	}

	return &msg, nil
}

// Update persists changes to an existing record, keyed by internal id.
// message_id is written too: the column is nullable until the first
// successful send and immutable afterwards (unique index enforces it).
func (r *MySQLRepository) Update(ctx context.Context, msg *domain.Message) error {
	query := `
		UPDATE messages
		SET message_id = ?, message = ?, attach = ?, status = ?,
			delivered_at = ?, read_at = ?, conversation_id = ?,
			template_parameters = ?, profile_name = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.MessageID,
		msg.Body,
		msg.Attach,
		msg.Status,
		msg.DeliveredAt,
		msg.ReadAt,
		msg.ConversationID,
		msg.TemplateParameters,
		msg.ProfileName,
		msg.ID,
	)

	if err != nil {
		slog.Error("Failed to update message",
			"error", err,
			"id", msg.ID,
		)
		return fmt.Errorf("update message: %w", err)
	}

	return nil
}

// ============================================================================
// TemplateRepository Implementation
// ============================================================================

// GetTemplateByName returns a read-only template snapshot, (nil, nil) on no match.
func (r *MySQLRepository) GetTemplateByName(ctx context.Context, name string) (*domain.Template, error) {
	query := `
		SELECT name, actual_name, template_name, language_code, field_names,
			   sample_values, header_type, sample, template_id, status
		FROM templates
		WHERE name = ?
		LIMIT 1
	`

	var tmpl domain.Template
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&tmpl.Name,
		&tmpl.ActualName,
		&tmpl.TemplateName,
		&tmpl.LanguageCode,
		&tmpl.FieldNames,
		&tmpl.SampleValues,
		&tmpl.HeaderType,
		&tmpl.Sample,
		&tmpl.ID,
		&tmpl.Status,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		slog.Error("Failed to get template", "error", err, "template", name)
		return nil, fmt.Errorf("get template: %w", err)
	}

	return &tmpl, nil
}

// UpdateStatusByTemplateID sets the status column by platform template id.
// Matching no row is acceptable; template-status events for templates this
// system never stored are ignored.
func (r *MySQLRepository) UpdateStatusByTemplateID(ctx context.Context, templateID, status string) error {
	query := `UPDATE templates SET status = ? WHERE template_id = ?`

	result, err := r.db.ExecContext(ctx, query, status, templateID)
	if err != nil {
		slog.Error("Failed to update template status",
			"error", err,
			"template_id", templateID,
			"status", status,
		)
		return fmt.Errorf("update template status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		slog.Debug("Template status event matched no template",
			"template_id", templateID,
		)
	}

	return nil
}

// ============================================================================
// NotificationLogRepository Implementation
// ============================================================================

// Append writes one audit row. Rows are never updated or deleted here;
// only the retention purger removes aged entries.
func (r *MySQLRepository) Append(ctx context.Context, log *domain.NotificationLog) error {
	query := `INSERT INTO notification_logs (template, meta_data, created_at) VALUES (?, ?, ?)`

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query, log.Template, log.MetaData, log.CreatedAt)
	if err != nil {
		slog.Error("Failed to append notification log",
			"error", err,
			"template", log.Template,
		)
		return fmt.Errorf("append notification log: %w", err)
	}

	return nil
}

// ============================================================================
// DocumentReader Implementation
// ============================================================================

// FieldValues reads named fields off a referenced business document and
// returns display-formatted strings for template parameter substitution.
// Documents live in a generic doctype/name keyed table with a JSON payload.
func (r *MySQLRepository) FieldValues(ctx context.Context, doctype, name string, fields []string) (map[string]string, error) {
	query := `SELECT payload FROM reference_documents WHERE doctype = ? AND name = ? LIMIT 1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, doctype, name).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reference document %s/%s not found", doctype, name)
	}

	if err != nil {
		slog.Error("Failed to read reference document",
			"error", err,
			"doctype", doctype,
			"name", name,
		)
		return nil, fmt.Errorf("read reference document: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode reference document %s/%s: %w", doctype, name, err)
	}

	values := make(map[string]string, len(fields))
	for _, field := range fields {
		values[field] = formatFieldValue(doc[field])
	}

	return values, nil
}

// formatFieldValue renders a document field for display inside a template
// parameter. Timestamps get the canonical date format; numbers drop the
// float artifacts json decoding introduces.
func formatFieldValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if ts, err := time.Parse(time.RFC3339, val); err == nil {
			return ts.Format("02-01-2006")
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		encoded, _ := json.Marshal(val)
		return string(encoded)
	}
}
