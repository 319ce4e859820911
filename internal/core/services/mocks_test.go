package services

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// ============================================================================
// Mock Repositories
// ============================================================================

// MockAccountRepository mocks AccountRepository interface
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*domain.Account, error) {
	args := m.Called(ctx, phoneNumberID)
	if result := args.Get(0); result != nil {
		return result.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) GetByVerifyToken(ctx context.Context, token string) (*domain.Account, error) {
	args := m.Called(ctx, token)
	if result := args.Get(0); result != nil {
		return result.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	args := m.Called(ctx, name)
	if result := args.Get(0); result != nil {
		return result.(*domain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository mocks MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) (int64, error) {
	args := m.Called(ctx, msg)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	// Safely handle nil return
	if result := args.Get(0); result != nil {
		return result.(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) Update(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockTemplateRepository mocks TemplateRepository interface
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetTemplateByName(ctx context.Context, name string) (*domain.Template, error) {
	args := m.Called(ctx, name)
	if result := args.Get(0); result != nil {
		return result.(*domain.Template), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTemplateRepository) UpdateStatusByTemplateID(ctx context.Context, templateID, status string) error {
	args := m.Called(ctx, templateID, status)
	return args.Error(0)
}

// MockProfileCache mocks ProfileCache interface
type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) Get(ctx context.Context, number string) (*domain.Profile, error) {
	args := m.Called(ctx, number)
	if result := args.Get(0); result != nil {
		return result.(*domain.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileCache) Upsert(ctx context.Context, profile *domain.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// MockNotificationLogRepository mocks NotificationLogRepository interface
type MockNotificationLogRepository struct {
	mock.Mock
}

func (m *MockNotificationLogRepository) Append(ctx context.Context, log *domain.NotificationLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// MockBlobStore mocks BlobStore interface
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, fileName, mimeType string, content []byte) (string, error) {
	args := m.Called(ctx, fileName, mimeType, content)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Open(ctx context.Context, fileName string) (io.ReadCloser, string, int64, error) {
	args := m.Called(ctx, fileName)
	if result := args.Get(0); result != nil {
		return result.(io.ReadCloser), args.String(1), int64(args.Int(2)), args.Error(3)
	}
	return nil, args.String(1), int64(args.Int(2)), args.Error(3)
}

// MockDocumentReader mocks DocumentReader interface
type MockDocumentReader struct {
	mock.Mock
}

func (m *MockDocumentReader) FieldValues(ctx context.Context, doctype, name string, fields []string) (map[string]string, error) {
	args := m.Called(ctx, doctype, name, fields)
	if result := args.Get(0); result != nil {
		return result.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCloudGateway mocks the CloudGateway interface
type MockCloudGateway struct {
	mock.Mock
}

func (m *MockCloudGateway) SendMessage(ctx context.Context, account *domain.Account, payload map[string]any) (string, *ports.SendErrorDetail, error) {
	args := m.Called(ctx, account, payload)
	var detail *ports.SendErrorDetail
	if result := args.Get(1); result != nil {
		detail = result.(*ports.SendErrorDetail)
	}
	return args.String(0), detail, args.Error(2)
}

func (m *MockCloudGateway) MediaMetadata(ctx context.Context, account *domain.Account, mediaID string) (string, string, error) {
	args := m.Called(ctx, account, mediaID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockCloudGateway) DownloadMedia(ctx context.Context, account *domain.Account, url string) ([]byte, error) {
	args := m.Called(ctx, account, url)
	if result := args.Get(0); result != nil {
		return result.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// ============================================================================
// Test Helper Functions
// ============================================================================

// testAccount returns a fully populated account registration for tests
func testAccount() *domain.Account {
	return &domain.Account{
		Name:          "Main Line",
		PhoneNumberID: "106540352242922",
		PhoneID:       "106540352242922",
		URL:           "https://graph.facebook.com",
		Version:       "v23.0",
		Token:         "test-token",
		VerifyToken:   "verify-secret",
	}
}
