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

// Generation sweep outcome statuses
const (
	OutcomeGenerated = "generated"
	OutcomeNotYetDue = "not_yet_due"
	OutcomeFailed    = "failed"
)

// maxChainDepth caps chain traversal; chains cannot cycle by construction
// but a runaway walk should still terminate.
const maxChainDepth = 1000

// GenerationOutcome is the per-invoice result of a generation sweep
type GenerationOutcome struct {
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	CreatorWallet string     `json:"creator_wallet"`
	Status        string     `json:"status"`
	NewInvoiceID  *uuid.UUID `json:"new_invoice_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

type RecurringService interface {
	GenerateNext(ctx context.Context, paidInvoice *models.Invoice) (*models.Invoice, error)
	GenerateDueRecurring(ctx context.Context, creatorWallet *string, now time.Time) ([]GenerationOutcome, error)
	StopRecurring(ctx context.Context, creatorWallet string, invoiceID uuid.UUID) (*models.Invoice, error)
	ResolveChain(ctx context.Context, invoiceID uuid.UUID) ([]*models.Invoice, error)
}

type recurringService struct {
	invoiceRepo repositories.InvoiceRepository
	auditRepo   repositories.AuditLogsRepository
	cacheSvc    caching.CacheService
	notifier    NotificationService
}

func NewRecurringService(invoiceRepo repositories.InvoiceRepository, auditRepo repositories.AuditLogsRepository,
	cacheSvc caching.CacheService, notifier NotificationService) RecurringService {
	return &recurringService{
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		cacheSvc:    cacheSvc,
		notifier:    notifier,
	}
}

// GenerateNext creates the next invoice in a recurring chain from a fully
// paid parent. The parent is never mutated: the child carries the
// incremented CurrentCount and a parent link. Returns (nil, nil) when the
// series is stopped or exhausted or the parent already has a successor
// (generation is a no-op, not an error).
func (s *recurringService) GenerateNext(ctx context.Context, paidInvoice *models.Invoice) (*models.Invoice, error) {
	rec := paidInvoice.Recurring
	if !rec.IsRecurring {
		return nil, common.NewInvalidOperationError("generate recurring invoice", "invoice is not recurring")
	}
	if paidInvoice.Status != models.StatusPaid {
		return nil, common.NewInvalidOperationError("generate recurring invoice", "parent invoice is not fully paid")
	}
	if rec.StoppedAt != nil {
		return nil, nil
	}
	// Callers filter on IsDue, but the end condition is re-checked here so
	// a direct invocation can never overrun the series.
	if recurrence.IsExhausted(rec, time.Now()) {
		return nil, nil
	}
	// A parent generates exactly one successor: re-submission (sweep
	// retry, bank verification after an optimistic settle) is a no-op.
	children, err := s.invoiceRepo.GetChildren(ctx, paidInvoice.ID)
	if err != nil {
		return nil, common.SecureErrorMessage("check existing recurring children", err)
	}
	if len(children) > 0 {
		return nil, nil
	}

	nextIssueDate := recurrence.NextOccurrence(paidInvoice.IssueDate, rec.Frequency)
	nextDueDate := nextIssueDate.Add(recurrence.DueDateGap(paidInvoice))

	nextNumber, err := s.invoiceRepo.NextInvoiceNumber(ctx, paidInvoice.CreatorWallet)
	if err != nil {
		return nil, common.SecureErrorMessage("allocate invoice number", err)
	}

	childRecurring := rec
	childRecurring.CurrentCount = rec.CurrentCount + 1

	child := &models.Invoice{
		ID:                     uuid.New(),
		CreatorWallet:          paidInvoice.CreatorWallet,
		InvoiceNumber:          nextNumber,
		Client:                 paidInvoice.Client,
		Items:                  append([]models.InvoiceItem(nil), paidInvoice.Items...),
		PaymentMethod:          paidInvoice.PaymentMethod,
		PaymentDetails:         paidInvoice.PaymentDetails,
		Currency:               paidInvoice.Currency,
		SubTotalBeforeDiscount: paidInvoice.SubTotalBeforeDiscount,
		TotalDiscountValue:     paidInvoice.TotalDiscountValue,
		VATPercent:             paidInvoice.VATPercent,
		VATValue:               paidInvoice.VATValue,
		GrandTotal:             paidInvoice.GrandTotal,
		Notes:                  paidInvoice.Notes,
		IssueDate:              nextIssueDate,
		DueDate:                nextDueDate,
		TotalAmountReceived:    0,
		RemainingAmount:        paidInvoice.GrandTotal,
		PaymentRecords:         []models.PaymentRecord{},
		Status:                 models.StatusAwaitingPayment,
		Recurring:              childRecurring,
		ParentInvoiceID:        &paidInvoice.ID,
	}

	if err := s.invoiceRepo.Create(ctx, child); err != nil {
		return nil, common.SecureErrorMessage("create recurring invoice", err)
	}

	s.audit(ctx, child, models.AuditActionRecurringGenerated, models.JSONB{
		"parent_invoice_id": paidInvoice.ID.String(),
		"invoice_number":    child.InvoiceNumber,
		"current_count":     child.Recurring.CurrentCount,
	})
	s.invalidateChainCache(ctx, paidInvoice)

	// Client notification is strictly best effort; a delivery failure must
	// never roll back the created invoice.
	if s.notifier != nil {
		childCopy := *child
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Panic in recurring notification: %v", r)
				}
			}()
			if err := s.notifier.NotifyInvoiceEvent(context.Background(), &childCopy, models.EventRecurringGenerated); err != nil {
				log.Printf("Failed to notify client of recurring invoice %s: %v", childCopy.ID, err)
			}
		}()
	}

	return child, nil
}

// GenerateDueRecurring runs the generation sweep over all paid, still-live
// recurring invoices, optionally scoped to one creator. Failures are
// isolated per invoice so one bad series never aborts the batch.
func (s *recurringService) GenerateDueRecurring(ctx context.Context, creatorWallet *string, now time.Time) ([]GenerationOutcome, error) {
	candidates, err := s.invoiceRepo.GetPaidRecurring(ctx, creatorWallet)
	if err != nil {
		return nil, common.SecureErrorMessage("list recurring invoices", err)
	}

	outcomes := make([]GenerationOutcome, 0, len(candidates))
	for _, invoice := range candidates {
		outcome := GenerationOutcome{
			InvoiceID:     invoice.ID,
			CreatorWallet: invoice.CreatorWallet,
		}

		if !recurrence.IsDue(invoice, now) {
			outcome.Status = OutcomeNotYetDue
			outcomes = append(outcomes, outcome)
			continue
		}

		child, err := s.GenerateNext(ctx, invoice)
		switch {
		case err != nil:
			outcome.Status = OutcomeFailed
			outcome.Reason = err.Error()
		case child == nil:
			outcome.Status = OutcomeNotYetDue
			outcome.Reason = "series exhausted or successor already generated"
		default:
			outcome.Status = OutcomeGenerated
			outcome.NewInvoiceID = &child.ID
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// StopRecurring permanently ends a recurring series. Terminal: stopping an
// already-stopped series is rejected, and generation afterwards is a no-op
// even for invoices that would otherwise be due.
func (s *recurringService) StopRecurring(ctx context.Context, creatorWallet string, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.CreatorWallet != creatorWallet {
		return nil, common.NewNotFoundError("invoice")
	}

	if !invoice.Recurring.IsRecurring {
		return nil, common.NewInvalidOperationError("stop recurring", "invoice is not recurring")
	}
	if invoice.Recurring.StoppedAt != nil {
		return nil, common.NewInvalidOperationError("stop recurring", "recurring series is already stopped")
	}

	now := time.Now()
	invoice.Recurring.IsRecurring = false
	invoice.Recurring.StoppedAt = &now

	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		return nil, err
	}

	s.audit(ctx, invoice, models.AuditActionRecurringStopped, models.JSONB{
		"stopped_at": now,
	})
	s.invalidateChainCache(ctx, invoice)

	return invoice, nil
}

// ResolveChain reconstructs the full lineage of a recurring series from any
// node in it: parents are walked up to the root (an unresolvable parent makes
// the current node the effective root), then descendants are collected
// depth-first in creation order. Output is root first.
func (s *recurringService) ResolveChain(ctx context.Context, invoiceID uuid.UUID) ([]*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	root := invoice
	for depth := 0; root.ParentInvoiceID != nil && depth < maxChainDepth; depth++ {
		parent, err := s.invoiceRepo.GetByID(ctx, *root.ParentInvoiceID)
		if err != nil {
			if common.IsNotFound(err) {
				// Parent was deleted; this node is the effective root
				break
			}
			return nil, err
		}
		root = parent
	}

	if s.cacheSvc != nil {
		if chain, err := s.cacheSvc.GetChain(ctx, root.ID); err == nil && chain != nil {
			return chain, nil
		}
	}

	var chain []*models.Invoice
	if err := s.collectDescendants(ctx, root, &chain, 0); err != nil {
		return nil, err
	}

	if s.cacheSvc != nil {
		if err := s.cacheSvc.SetChain(ctx, root.ID, chain, 5*time.Minute); err != nil {
			log.Printf("Failed to cache invoice chain %s: %v", root.ID, err)
		}
	}

	return chain, nil
}

func (s *recurringService) collectDescendants(ctx context.Context, node *models.Invoice, chain *[]*models.Invoice, depth int) error {
	if depth >= maxChainDepth {
		return nil
	}
	*chain = append(*chain, node)

	children, err := s.invoiceRepo.GetChildren(ctx, node.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.collectDescendants(ctx, child, chain, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *recurringService) audit(ctx context.Context, invoice *models.Invoice, action string, details models.JSONB) {
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

func (s *recurringService) invalidateChainCache(ctx context.Context, invoice *models.Invoice) {
	if s.cacheSvc == nil {
		return
	}
	// The chain cache is keyed by the true root, so walk all the way up
	// before deleting. An unresolvable parent makes the current node the
	// effective root, mirroring ResolveChain.
	root := invoice
	for depth := 0; root.ParentInvoiceID != nil && depth < maxChainDepth; depth++ {
		parent, err := s.invoiceRepo.GetByID(ctx, *root.ParentInvoiceID)
		if err != nil {
			break
		}
		root = parent
	}
	if err := s.cacheSvc.DeleteChain(ctx, root.ID); err != nil {
		log.Printf("Failed to invalidate chain cache for %s: %v", root.ID, err)
	}
	if err := s.cacheSvc.DeleteInvoice(ctx, invoice.ID); err != nil {
		log.Printf("Failed to invalidate invoice cache for %s: %v", invoice.ID, err)
	}
}
