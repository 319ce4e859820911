// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// CloudClient handles communication with the WhatsApp Cloud (Graph) API.
// Endpoints and credentials come from the Account resolved per call, so a
// single client serves every registration. All calls carry a bounded
// timeout; the platform retries on its side, this client does not.
type CloudClient struct {
	httpClient *http.Client
}

var _ ports.CloudGateway = (*CloudClient)(nil)

// NewCloudClient creates a new Cloud API client
func NewCloudClient() *CloudClient {
	return &CloudClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// sendResponse is the success envelope of the messages endpoint.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// errorEnvelope is the failure envelope of the messages endpoint.
type errorEnvelope struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type,omitempty"`
		Code           int    `json:"code,omitempty"`
		ErrorUserTitle string `json:"error_user_title,omitempty"`
	} `json:"error"`
}

// mediaMetadata is the first-hop response of a media fetch.
type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	ID       string `json:"id,omitempty"`
}

// SendMessage POSTs a built payload to {base}/{version}/{phone_id}/messages
// and returns the platform-assigned message id. When the API answers with a
// structured error envelope, the detail is surfaced alongside the error so
// the caller can audit-log it and raise a user-facing message.
func (c *CloudClient) SendMessage(ctx context.Context, account *domain.Account, payload map[string]any) (string, *ports.SendErrorDetail, error) {
	url := fmt.Sprintf("%s/%s/%s/messages", account.URL, account.Version, account.PhoneID)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", nil, fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+account.Token)
	req.Header.Set("Content-Type", "application/json")

	slog.Info("Sending message to WhatsApp Cloud API",
		"account", account.Name,
		"payload_type", payload["type"],
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("send api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read send response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
			slog.Error("Send API error (unparseable envelope)",
				"status_code", resp.StatusCode,
				"body", string(body),
			)
			return "", nil, fmt.Errorf("send api error %d: %s", resp.StatusCode, string(body))
		}

		slog.Error("Send API error",
			"status_code", resp.StatusCode,
			"error_code", envelope.Error.Code,
			"error_message", envelope.Error.Message,
			"error_user_title", envelope.Error.ErrorUserTitle,
		)

		detail := &ports.SendErrorDetail{
			Message:   envelope.Error.Message,
			UserTitle: envelope.Error.ErrorUserTitle,
			Raw:       string(body),
		}
		return "", detail, fmt.Errorf("send api error (code %d): %s", envelope.Error.Code, envelope.Error.Message)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(body, &sendResp); err != nil {
		return "", nil, fmt.Errorf("decode send response: %w body=%q", err, string(body))
	}
	if len(sendResp.Messages) == 0 || sendResp.Messages[0].ID == "" {
		return "", nil, fmt.Errorf("send response carries no message id: body=%q", string(body))
	}

	slog.Info("Message sent successfully",
		"account", account.Name,
		"message_id", sendResp.Messages[0].ID,
	)

	return sendResp.Messages[0].ID, nil, nil
}

// MediaMetadata GETs {base}/{version}/{media_id}/ with bearer auth and
// returns the short-lived download URL plus MIME type.
func (c *CloudClient) MediaMetadata(ctx context.Context, account *domain.Account, mediaID string) (string, string, error) {
	url := fmt.Sprintf("%s/%s/%s/", account.URL, account.Version, mediaID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("create metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+account.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("media metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("media metadata status %d: %s", resp.StatusCode, string(body))
	}

	var meta mediaMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", "", fmt.Errorf("decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return "", "", fmt.Errorf("media metadata carries no url for media %s", mediaID)
	}

	return meta.URL, meta.MimeType, nil
}

// DownloadMedia GETs the URL returned by MediaMetadata with the same bearer
// credential and returns the raw bytes.
func (c *CloudClient) DownloadMedia(ctx context.Context, account *domain.Account, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create media download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+account.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("media download status %d: %s", resp.StatusCode, string(body))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media content: %w", err)
	}

	return content, nil
}
