package services

import (
	"context"
	"time"

	"chainvoice/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetByCreatorAndNumber(ctx context.Context, creatorWallet string, invoiceNumber int64) (*models.Invoice, error) {
	args := m.Called(ctx, creatorWallet, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, creatorWallet, status string, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, creatorWallet, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, creatorWallet string, id uuid.UUID) error {
	args := m.Called(ctx, creatorWallet, id)
	return args.Error(0)
}

func (m *MockInvoiceRepository) OrphanChildren(ctx context.Context, parentID uuid.UUID) error {
	args := m.Called(ctx, parentID)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Invoice, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetPaidRecurring(ctx context.Context, creatorWallet *string) ([]*models.Invoice, error) {
	args := m.Called(ctx, creatorWallet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListDueUnsettled(ctx context.Context, now time.Time, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, now, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) TxnHashExists(ctx context.Context, txnHash string) (bool, error) {
	args := m.Called(ctx, txnHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) NextInvoiceNumber(ctx context.Context, creatorWallet string) (int64, error) {
	args := m.Called(ctx, creatorWallet)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuditLogsRepository struct {
	mock.Mock
}

func (m *MockAuditLogsRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogsRepository) ListByInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, creatorWallet, invoiceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditLogsRepository) ListByCreator(ctx context.Context, creatorWallet string, startDate, endDate time.Time, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, creatorWallet, startDate, endDate, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockCacheService) SetInvoice(ctx context.Context, invoice *models.Invoice, ttl time.Duration) error {
	args := m.Called(ctx, invoice, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *MockCacheService) GetChain(ctx context.Context, rootID uuid.UUID) ([]*models.Invoice, error) {
	args := m.Called(ctx, rootID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockCacheService) SetChain(ctx context.Context, rootID uuid.UUID, chain []*models.Invoice, ttl time.Duration) error {
	args := m.Called(ctx, rootID, chain, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteChain(ctx context.Context, rootID uuid.UUID) error {
	args := m.Called(ctx, rootID)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	args := m.Called(ctx, key, window)
	return args.Error(0)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockRecurringGenerator struct {
	mock.Mock
}

func (m *MockRecurringGenerator) GenerateNext(ctx context.Context, paidInvoice *models.Invoice) (*models.Invoice, error) {
	args := m.Called(ctx, paidInvoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
