package services

import (
	"context"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/repositories"

	"github.com/google/uuid"
)

// AuditLogsService exposes the read side of the audit trail
type AuditLogsService interface {
	ListByInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
	ListByCreator(ctx context.Context, creatorWallet string, startDate, endDate time.Time, limit, offset int) ([]*models.AuditLog, error)
}

type auditLogsService struct {
	auditRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{auditRepo: auditRepo}
}

func (s *auditLogsService) ListByInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	entries, err := s.auditRepo.ListByInvoice(ctx, creatorWallet, invoiceID, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list audit logs", err)
	}
	return entries, nil
}

func (s *auditLogsService) ListByCreator(ctx context.Context, creatorWallet string, startDate, endDate time.Time, limit, offset int) ([]*models.AuditLog, error) {
	if err := common.ValidateDateRange(startDate, endDate); err != nil {
		return nil, common.NewValidationError("date_range", err.Error())
	}
	entries, err := s.auditRepo.ListByCreator(ctx, creatorWallet, startDate, endDate, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list audit logs", err)
	}
	return entries, nil
}
