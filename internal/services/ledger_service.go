package services

import (
	"context"
	"log"
	"math"
	"time"

	"chainvoice/internal/caching"
	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/repositories"

	"github.com/google/uuid"
)

// Bank verification decisions accepted by VerifyBankPayment
const (
	DecisionVerified = models.BankVerificationVerified
	DecisionRejected = models.BankVerificationRejected
)

// ApplyPayment applies an accepted payment amount to the invoice ledger and
// recomputes status. Crypto payments settle immediately; bank payments move
// the invoice into pending verification while the ledger total is updated
// optimistically.
func ApplyPayment(invoice *models.Invoice, amount float64, paymentType string) error {
	if amount <= 0 {
		return common.NewValidationError("amount_paid", "must be positive")
	}

	invoice.TotalAmountReceived += amount
	invoice.RemainingAmount = math.Max(invoice.RemainingAmount-amount, 0)

	switch {
	case invoice.RemainingAmount == 0:
		invoice.Status = models.StatusPaid
	case paymentType == models.PaymentMethodCrypto:
		invoice.Status = models.StatusPartiallyPaid
	default:
		invoice.Status = models.StatusPaymentPendingVerification
	}

	return nil
}

// ApplyBankVerification settles a pending bank payment record. A rejection
// reverses the optimistic ledger update exactly; the record itself is kept
// with its rejected status for audit.
func ApplyBankVerification(invoice *models.Invoice, record *models.PaymentRecord, decision string, note *string) error {
	if !record.IsBank() {
		return common.NewInvalidOperationError("verify bank payment", "payment record is not a bank transfer")
	}
	if !record.IsPendingVerification() {
		return common.NewInvalidOperationError("verify bank payment", "payment record has already been decided")
	}

	switch decision {
	case DecisionVerified:
		record.BankVerificationStatus = common.StringPtr(models.BankVerificationVerified)
		if invoice.RemainingAmount == 0 {
			invoice.Status = models.StatusPaid
		} else {
			invoice.Status = models.StatusPartiallyPaid
		}
	case DecisionRejected:
		record.BankVerificationStatus = common.StringPtr(models.BankVerificationRejected)
		invoice.TotalAmountReceived -= record.AmountPaid
		invoice.RemainingAmount += record.AmountPaid
		if invoice.TotalAmountReceived == 0 {
			invoice.Status = models.StatusAwaitingPayment
		} else {
			invoice.Status = models.StatusPartiallyPaid
		}
	default:
		return common.NewValidationError("decision", "must be 'verified' or 'rejected'")
	}

	if note != nil {
		record.BankVerificationNote = note
	}

	return nil
}

// MarkOverdue flips an unsettled invoice past its due date to Overdue.
// Idempotent; safe to call on every read.
func MarkOverdue(invoice *models.Invoice, now time.Time) bool {
	if models.IsSettledStatus(invoice.Status) {
		return false
	}
	if invoice.Status == models.StatusOverdue {
		return false
	}
	if invoice.DueDate.Before(now) {
		invoice.Status = models.StatusOverdue
		return true
	}
	return false
}

// RecurringGenerator is the slice of the recurring service the ledger needs:
// when a payment settles an invoice in full, the next invoice in the chain is
// generated directly as a side effect.
type RecurringGenerator interface {
	GenerateNext(ctx context.Context, paidInvoice *models.Invoice) (*models.Invoice, error)
}

type LedgerService interface {
	RecordPayment(ctx context.Context, invoiceID uuid.UUID, record *models.PaymentRecord) (*models.Invoice, error)
	VerifyBankPayment(ctx context.Context, creatorWallet string, invoiceID, recordID uuid.UUID, decision string, note *string) (*models.Invoice, error)
	RefreshOverdueStatus(ctx context.Context, invoice *models.Invoice, now time.Time) error
}

type ledgerService struct {
	invoiceRepo repositories.InvoiceRepository
	auditRepo   repositories.AuditLogsRepository
	cacheSvc    caching.CacheService
	notifier    NotificationService
	generator   RecurringGenerator
}

// NewLedgerService creates the payment ledger service. generator may be nil
// in contexts that never settle invoices (e.g. read-only jobs).
func NewLedgerService(invoiceRepo repositories.InvoiceRepository, auditRepo repositories.AuditLogsRepository,
	cacheSvc caching.CacheService, notifier NotificationService, generator RecurringGenerator) LedgerService {
	return &ledgerService{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		cacheSvc:    cacheSvc,
		notifier:    notifier,
		generator:   generator,
	}
}

func (s *ledgerService) validatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error {
	if record.AmountPaid <= 0 {
		return common.NewValidationError("amount_paid", "must be positive")
	}

	switch record.PaymentType {
	case models.PaymentMethodCrypto:
		if err := common.ValidateWalletAddress(common.SafeString(record.PayerWallet), "payer_wallet"); err != nil {
			return common.NewValidationError("payer_wallet", err.Error())
		}
		txnHash := common.SafeString(record.TxnHash)
		if err := common.ValidateTxnHash(txnHash, "txn_hash"); err != nil {
			return common.NewValidationError("txn_hash", err.Error())
		}
		if err := common.ValidateCryptoToken(common.SafeString(record.CryptoToken)); err != nil {
			return common.NewValidationError("crypto_token", err.Error())
		}

		// Global replay guard: a txn hash may appear on at most one
		// payment record system-wide.
		exists, err := s.invoiceRepo.TxnHashExists(ctx, txnHash)
		if err != nil {
			return common.SecureErrorMessage("check transaction hash uniqueness", err)
		}
		if exists {
			return common.NewConflictError("txn_hash", "transaction hash already recorded")
		}
	case models.PaymentMethodBank:
		if record.PayerWallet != nil && *record.PayerWallet != "" {
			if err := common.ValidateWalletAddress(*record.PayerWallet, "payer_wallet"); err != nil {
				return common.NewValidationError("payer_wallet", err.Error())
			}
		}
	default:
		return common.NewValidationError("payment_type", "must be 'crypto' or 'bank'")
	}

	return nil
}

// RecordPayment validates and appends a payment record to the invoice ledger,
// updates totals/status, and, when the payment settles the invoice in full,
// triggers generation of the next recurring invoice.
func (s *ledgerService) RecordPayment(ctx context.Context, invoiceID uuid.UUID, record *models.PaymentRecord) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.Status == models.StatusPaid || invoice.Status == models.StatusRejected {
		return nil, common.NewInvalidOperationError("record payment", "invoice is already "+invoice.Status)
	}

	// All validation happens before any mutation
	if err := s.validatePaymentRecord(ctx, record); err != nil {
		return nil, err
	}

	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	if record.PaymentDate.IsZero() {
		record.PaymentDate = record.CreatedAt
	}
	if record.PaymentType == models.PaymentMethodBank {
		record.BankVerificationStatus = common.StringPtr(models.BankVerificationPending)
	}

	invoice.PaymentRecords = append(invoice.PaymentRecords, *record)
	if err := ApplyPayment(invoice, record.AmountPaid, record.PaymentType); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}

	s.audit(ctx, invoice, models.AuditActionPaymentRecorded, models.JSONB{
		"payment_record_id": record.ID.String(),
		"payment_type":      record.PaymentType,
		"amount_paid":       record.AmountPaid,
		"status_after":      invoice.Status,
	}, record.PayerWallet)
	s.invalidateCache(ctx, invoice)
	s.notifyAsync(invoice, models.EventPaymentRecorded)

	if invoice.Status == models.StatusPaid && invoice.Recurring.IsRecurring && s.generator != nil {
		if _, err := s.generator.GenerateNext(ctx, invoice); err != nil {
			// Generation problems never fail the payment itself;
			// the batch sweep will retry due invoices.
			if !common.IsInvalidOperation(err) {
				log.Printf("Failed to generate next recurring invoice for %s: %v", invoice.ID, err)
			}
		}
	}

	return invoice, nil
}

// VerifyBankPayment applies an accept/reject decision to a pending bank
// payment record. Only the invoice creator may decide.
func (s *ledgerService) VerifyBankPayment(ctx context.Context, creatorWallet string, invoiceID, recordID uuid.UUID, decision string, note *string) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.CreatorWallet != creatorWallet {
		return nil, common.NewNotFoundError("invoice")
	}

	var record *models.PaymentRecord
	for i := range invoice.PaymentRecords {
		if invoice.PaymentRecords[i].ID == recordID {
			record = &invoice.PaymentRecords[i]
			break
		}
	}
	if record == nil {
		return nil, common.NewNotFoundError("payment record")
	}

	if err := ApplyBankVerification(invoice, record, decision, note); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}

	action := models.AuditActionBankVerified
	if decision == DecisionRejected {
		action = models.AuditActionBankRejected
	}
	s.audit(ctx, invoice, action, models.JSONB{
		"payment_record_id": record.ID.String(),
		"amount_paid":       record.AmountPaid,
		"status_after":      invoice.Status,
	}, &creatorWallet)
	s.invalidateCache(ctx, invoice)
	s.notifyAsync(invoice, models.EventBankDecided)

	if decision == DecisionVerified && invoice.Status == models.StatusPaid && invoice.Recurring.IsRecurring && s.generator != nil {
		if _, err := s.generator.GenerateNext(ctx, invoice); err != nil {
			if !common.IsInvalidOperation(err) {
				log.Printf("Failed to generate next recurring invoice for %s: %v", invoice.ID, err)
			}
		}
	}

	return invoice, nil
}

// RefreshOverdueStatus recomputes the overdue flag and persists it when it
// changed. Concurrent refreshes write the same value, so races are harmless.
func (s *ledgerService) RefreshOverdueStatus(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	if !MarkOverdue(invoice, now) {
		return nil
	}
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		// A concurrent refresh already wrote the same status
		if common.IsConflict(err) {
			return nil
		}
		return err
	}
	s.invalidateCache(ctx, invoice)
	s.notifyAsync(invoice, models.EventInvoiceOverdue)
	return nil
}

func (s *ledgerService) audit(ctx context.Context, invoice *models.Invoice, action string, details models.JSONB, actor *string) {
	entry := &models.AuditLog{
		ID:            uuid.New(),
		CreatorWallet: invoice.CreatorWallet,
		InvoiceID:     invoice.ID,
		Action:        action,
		Details:       details,
		ActorWallet:   actor,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Printf("Failed to write audit log for invoice %s: %v", invoice.ID, err)
	}
}

func (s *ledgerService) invalidateCache(ctx context.Context, invoice *models.Invoice) {
	if s.cacheSvc == nil {
		return
	}
	if err := s.cacheSvc.DeleteInvoice(ctx, invoice.ID); err != nil {
		log.Printf("Failed to invalidate invoice cache for %s: %v", invoice.ID, err)
	}
}

// notifyAsync hands the event to the notifier without blocking or failing
// the ledger operation.
func (s *ledgerService) notifyAsync(invoice *models.Invoice, eventType string) {
	if s.notifier == nil {
		return
	}
	inv := *invoice
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Panic in ledger notification: %v", r)
			}
		}()
		if err := s.notifier.NotifyInvoiceEvent(context.Background(), &inv, eventType); err != nil {
			log.Printf("Failed to send %s notification for invoice %s: %v", eventType, inv.ID, err)
		}
	}()
}
