package services

import (
	"context"
	"log"
	"time"

	"chainvoice/internal/caching"
	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/recurrence"
	"chainvoice/internal/repositories"

	"github.com/google/uuid"
)

const invoiceCacheTTL = 10 * time.Minute

// maxInvoiceAmount bounds monetary inputs to catch fat-finger values
const maxInvoiceAmount = 1000000000.00

type InvoiceServiceInterface interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	GetInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, creatorWallet, status string, limit, offset int) ([]*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	RejectInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, reason string) (*models.Invoice, error)
	DeleteInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID) error
}

type invoiceService struct {
	invoiceRepo repositories.InvoiceRepository
	auditRepo   repositories.AuditLogsRepository
	cacheSvc    caching.CacheService
	ledgerSvc   LedgerService
}

// NewInvoiceService creates the invoice CRUD service. Overdue status is
// refreshed through the ledger service on every read.
func NewInvoiceService(invoiceRepo repositories.InvoiceRepository, auditRepo repositories.AuditLogsRepository,
	cacheSvc caching.CacheService, ledgerSvc LedgerService) InvoiceServiceInterface {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		cacheSvc:    cacheSvc,
		ledgerSvc:   ledgerSvc,
	}
}

func validateInvoiceInput(invoice *models.Invoice) error {
	if err := common.ValidateWalletAddress(invoice.CreatorWallet, "creator_wallet"); err != nil {
		return common.NewValidationError("creator_wallet", err.Error())
	}
	if err := common.ValidateRequiredString(invoice.Client.Name, "client.name"); err != nil {
		return common.NewValidationError("client.name", err.Error())
	}
	if err := common.ValidateRequiredString(invoice.Client.Email, "client.email"); err != nil {
		return common.NewValidationError("client.email", err.Error())
	}
	if err := common.ValidatePaymentMethod(invoice.PaymentMethod); err != nil {
		return common.NewValidationError("payment_method", err.Error())
	}
	if invoice.PaymentMethod == models.PaymentMethodBank {
		if invoice.PaymentDetails == nil {
			return common.NewValidationError("payment_details", "required for bank payment method")
		}
		if err := common.ValidateRequiredString(invoice.PaymentDetails.BankName, "payment_details.bank_name"); err != nil {
			return common.NewValidationError("payment_details.bank_name", err.Error())
		}
		if err := common.ValidateRequiredString(invoice.PaymentDetails.AccountNumber, "payment_details.account_number"); err != nil {
			return common.NewValidationError("payment_details.account_number", err.Error())
		}
	}
	if len(invoice.Items) == 0 {
		return common.NewValidationError("items", "at least one line item is required")
	}
	for _, item := range invoice.Items {
		if item.Quantity <= 0 {
			return common.NewValidationError("items", "line item quantity must be positive")
		}
		if item.UnitPrice <= 0 {
			return common.NewValidationError("items", "line item unit price must be positive")
		}
		if item.DiscountPercent < 0 || item.DiscountPercent > 100 {
			return common.NewValidationError("items", "line item discount must be between 0 and 100")
		}
	}
	if err := common.ValidatePositiveFloat(invoice.GrandTotal, "grand_total", maxInvoiceAmount); err != nil {
		return common.NewValidationError("grand_total", err.Error())
	}
	if invoice.VATPercent < 0 || invoice.VATPercent > 100 {
		return common.NewValidationError("vat_percent", "must be between 0 and 100")
	}
	if err := recurrence.ValidateConfig(invoice.Recurring); err != nil {
		return common.NewValidationError("recurring", err.Error())
	}
	return nil
}

// CreateInvoice validates and persists a new root invoice, allocating the
// next per-creator invoice number when none was supplied.
func (s *invoiceService) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if err := validateInvoiceInput(invoice); err != nil {
		return err
	}

	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if invoice.IssueDate.IsZero() {
		invoice.IssueDate = time.Now()
	}
	if invoice.DueDate.IsZero() {
		invoice.DueDate = invoice.IssueDate.AddDate(0, 0, 30)
	}
	if invoice.DueDate.Before(invoice.IssueDate) {
		return common.NewValidationError("due_date", "cannot be before issue date")
	}

	if invoice.InvoiceNumber == 0 {
		number, err := s.invoiceRepo.NextInvoiceNumber(ctx, invoice.CreatorWallet)
		if err != nil {
			return common.SecureErrorMessage("allocate invoice number", err)
		}
		invoice.InvoiceNumber = number
	} else {
		// Caller-supplied numbers must not collide with an existing one
		if existing, err := s.invoiceRepo.GetByCreatorAndNumber(ctx, invoice.CreatorWallet, invoice.InvoiceNumber); err == nil && existing != nil {
			return common.NewConflictError("invoice_number", "invoice number already in use for this creator")
		} else if err != nil && !common.IsNotFound(err) {
			return common.SecureErrorMessage("check invoice number uniqueness", err)
		}
	}

	if invoice.Recurring.IsRecurring && invoice.Recurring.CurrentCount == 0 {
		invoice.Recurring.CurrentCount = 1
	}
	if invoice.Recurring.IsRecurring && invoice.Recurring.StartDate == nil {
		start := invoice.IssueDate
		invoice.Recurring.StartDate = &start
	}

	invoice.TotalAmountReceived = 0
	invoice.RemainingAmount = invoice.GrandTotal
	invoice.PaymentRecords = []models.PaymentRecord{}
	invoice.Status = models.StatusAwaitingPayment
	invoice.Version = 0

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return common.SecureErrorMessage("create invoice", err)
	}

	return nil
}

// GetInvoice fetches an invoice, refreshing the overdue flag on the way out
func (s *invoiceService) GetInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID) (*models.Invoice, error) {
	if s.cacheSvc != nil {
		if cached, err := s.cacheSvc.GetInvoice(ctx, invoiceID); err == nil && cached != nil {
			if cached.CreatorWallet != creatorWallet {
				return nil, common.NewNotFoundError("invoice")
			}
			if !MarkOverdue(cached, time.Now()) {
				return cached, nil
			}
			// Overdue transition invalidates the cached copy; fall
			// through to the authoritative read below
		}
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.CreatorWallet != creatorWallet {
		return nil, common.NewNotFoundError("invoice")
	}

	if err := s.ledgerSvc.RefreshOverdueStatus(ctx, invoice, time.Now()); err != nil {
		log.Printf("Failed to refresh overdue status for invoice %s: %v", invoice.ID, err)
	}

	if s.cacheSvc != nil {
		if err := s.cacheSvc.SetInvoice(ctx, invoice, invoiceCacheTTL); err != nil {
			log.Printf("Failed to cache invoice %s: %v", invoice.ID, err)
		}
	}

	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, creatorWallet, status string, limit, offset int) ([]*models.Invoice, error) {
	if status != "" {
		if err := common.ValidateInvoiceStatus(status); err != nil {
			return nil, common.NewValidationError("status", err.Error())
		}
	}

	invoices, err := s.invoiceRepo.List(ctx, creatorWallet, status, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list invoices", err)
	}

	now := time.Now()
	for _, invoice := range invoices {
		if err := s.ledgerSvc.RefreshOverdueStatus(ctx, invoice, now); err != nil {
			log.Printf("Failed to refresh overdue status for invoice %s: %v", invoice.ID, err)
		}
	}

	return invoices, nil
}

// UpdateInvoice persists edits to an unpaid invoice's billing fields. The
// ledger, status and recurrence counters are owned by their own operations.
func (s *invoiceService) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	existing, err := s.invoiceRepo.GetByID(ctx, invoice.ID)
	if err != nil {
		return err
	}
	if existing.CreatorWallet != invoice.CreatorWallet {
		return common.NewNotFoundError("invoice")
	}
	if len(existing.PaymentRecords) > 0 {
		return common.NewInvalidOperationError("update invoice", "invoice already has recorded payments")
	}

	if err := validateInvoiceInput(invoice); err != nil {
		return err
	}

	// Carry over server-owned fields
	invoice.InvoiceNumber = existing.InvoiceNumber
	invoice.TotalAmountReceived = existing.TotalAmountReceived
	invoice.RemainingAmount = invoice.GrandTotal
	invoice.PaymentRecords = existing.PaymentRecords
	invoice.Status = existing.Status
	invoice.ParentInvoiceID = existing.ParentInvoiceID
	invoice.Version = existing.Version

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return err
	}

	if s.cacheSvc != nil {
		if err := s.cacheSvc.DeleteInvoice(ctx, invoice.ID); err != nil {
			log.Printf("Failed to invalidate invoice cache for %s: %v", invoice.ID, err)
		}
	}

	return nil
}

// RejectInvoice marks an invoice Rejected with a reason. Paid invoices
// cannot be rejected.
func (s *invoiceService) RejectInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, reason string) (*models.Invoice, error) {
	if err := common.ValidateRequiredString(reason, "reject_reason"); err != nil {
		return nil, common.NewValidationError("reject_reason", err.Error())
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.CreatorWallet != creatorWallet {
		return nil, common.NewNotFoundError("invoice")
	}
	if invoice.Status == models.StatusPaid {
		return nil, common.NewInvalidOperationError("reject invoice", "invoice is already paid")
	}
	if invoice.Status == models.StatusRejected {
		return nil, common.NewInvalidOperationError("reject invoice", "invoice is already rejected")
	}

	invoice.Status = models.StatusRejected
	invoice.RejectReason = &reason

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}

	s.audit(ctx, invoice, models.AuditActionInvoiceRejected, models.JSONB{"reason": reason})
	if s.cacheSvc != nil {
		if err := s.cacheSvc.DeleteInvoice(ctx, invoice.ID); err != nil {
			log.Printf("Failed to invalidate invoice cache for %s: %v", invoice.ID, err)
		}
	}

	return invoice, nil
}

// DeleteInvoice removes an invoice. Children of the deleted invoice are
// orphaned (parent link cleared); the chain walker treats them as roots.
func (s *invoiceService) DeleteInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.CreatorWallet != creatorWallet {
		return common.NewNotFoundError("invoice")
	}

	if err := s.invoiceRepo.OrphanChildren(ctx, invoiceID); err != nil {
		return common.SecureErrorMessage("orphan child invoices", err)
	}
	if err := s.invoiceRepo.Delete(ctx, creatorWallet, invoiceID); err != nil {
		return err
	}

	s.audit(ctx, invoice, models.AuditActionInvoiceDeleted, models.JSONB{
		"invoice_number": invoice.InvoiceNumber,
	})
	if s.cacheSvc != nil {
		if err := s.cacheSvc.DeleteInvoice(ctx, invoiceID); err != nil {
			log.Printf("Failed to invalidate invoice cache for %s: %v", invoiceID, err)
		}
	}

	return nil
}

func (s *invoiceService) audit(ctx context.Context, invoice *models.Invoice, action string, details models.JSONB) {
	entry := &models.AuditLog{
		ID:            uuid.New(),
		CreatorWallet: invoice.CreatorWallet,
		InvoiceID:     invoice.ID,
		Action:        action,
		Details:       details,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Printf("Failed to write audit log for invoice %s: %v", invoice.ID, err)
	}
}
