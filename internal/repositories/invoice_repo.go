package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, creator_wallet, invoice_number, client, items, payment_method, payment_details, currency, sub_total_before_discount, total_discount_value, vat_percent, vat_value, grand_total, notes, issue_date, due_date, total_amount_received, remaining_amount, payment_records, status, reject_reason, recurring, parent_invoice_id, version, created_at, updated_at`

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByCreatorAndNumber(ctx context.Context, creatorWallet string, invoiceNumber int64) (*models.Invoice, error)
	List(ctx context.Context, creatorWallet string, status string, limit, offset int) ([]*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, creatorWallet string, id uuid.UUID) error
	OrphanChildren(ctx context.Context, parentID uuid.UUID) error
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Invoice, error)
	GetPaidRecurring(ctx context.Context, creatorWallet *string) ([]*models.Invoice, error)
	ListDueUnsettled(ctx context.Context, now time.Time, limit, offset int) ([]*models.Invoice, error)
	TxnHashExists(ctx context.Context, txnHash string) (bool, error)
	NextInvoiceNumber(ctx context.Context, creatorWallet string) (int64, error)
}

type invoiceRepo struct {
	db Database
}

func NewInvoiceRepository(db Database) InvoiceRepository {
	return &invoiceRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	var clientJSON, itemsJSON, recordsJSON, recurringJSON []byte
	var detailsJSON []byte

	err := row.Scan(
		&invoice.ID, &invoice.CreatorWallet, &invoice.InvoiceNumber,
		&clientJSON, &itemsJSON, &invoice.PaymentMethod, &detailsJSON,
		&invoice.Currency, &invoice.SubTotalBeforeDiscount, &invoice.TotalDiscountValue,
		&invoice.VATPercent, &invoice.VATValue, &invoice.GrandTotal, &invoice.Notes,
		&invoice.IssueDate, &invoice.DueDate,
		&invoice.TotalAmountReceived, &invoice.RemainingAmount, &recordsJSON,
		&invoice.Status, &invoice.RejectReason, &recurringJSON,
		&invoice.ParentInvoiceID, &invoice.Version, &invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(clientJSON, &invoice.Client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &invoice.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &invoice.PaymentDetails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment details: %w", err)
		}
	}
	if err := json.Unmarshal(recordsJSON, &invoice.PaymentRecords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment records: %w", err)
	}
	if err := json.Unmarshal(recurringJSON, &invoice.Recurring); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recurring config: %w", err)
	}

	return invoice, nil
}

func marshalInvoiceDocs(invoice *models.Invoice) (client, items, details, records, recurring []byte, err error) {
	if client, err = json.Marshal(invoice.Client); err != nil {
		return
	}
	if invoice.Items == nil {
		invoice.Items = []models.InvoiceItem{}
	}
	if items, err = json.Marshal(invoice.Items); err != nil {
		return
	}
	if invoice.PaymentDetails != nil {
		if details, err = json.Marshal(invoice.PaymentDetails); err != nil {
			return
		}
	}
	if invoice.PaymentRecords == nil {
		invoice.PaymentRecords = []models.PaymentRecord{}
	}
	if records, err = json.Marshal(invoice.PaymentRecords); err != nil {
		return
	}
	recurring, err = json.Marshal(invoice.Recurring)
	return
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	client, items, details, records, recurring, err := marshalInvoiceDocs(invoice)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice documents: %w", err)
	}

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query,
		invoice.ID, invoice.CreatorWallet, invoice.InvoiceNumber,
		client, items, invoice.PaymentMethod, details,
		invoice.Currency, invoice.SubTotalBeforeDiscount, invoice.TotalDiscountValue,
		invoice.VATPercent, invoice.VATValue, invoice.GrandTotal, invoice.Notes,
		invoice.IssueDate, invoice.DueDate,
		invoice.TotalAmountReceived, invoice.RemainingAmount, records,
		invoice.Status, invoice.RejectReason, recurring,
		invoice.ParentInvoiceID, invoice.Version,
	)
	return err
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("invoice")
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) GetByCreatorAndNumber(ctx context.Context, creatorWallet string, invoiceNumber int64) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE creator_wallet = $1 AND invoice_number = $2`
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, creatorWallet, invoiceNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("invoice")
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) List(ctx context.Context, creatorWallet string, status string, limit, offset int) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE creator_wallet = $1 AND ($2 = '' OR status = $2)
		ORDER BY issue_date DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, creatorWallet, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// Update persists the full invoice document with an optimistic-concurrency
// check on the version column. A zero-row update means the document changed
// underneath the caller and surfaces as a ConflictError.
func (r *invoiceRepo) Update(ctx context.Context, invoice *models.Invoice) error {
	client, items, details, records, recurring, err := marshalInvoiceDocs(invoice)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice documents: %w", err)
	}

	query := `
		UPDATE invoices
		SET client = $1, items = $2, payment_method = $3, payment_details = $4, currency = $5,
			sub_total_before_discount = $6, total_discount_value = $7, vat_percent = $8, vat_value = $9,
			grand_total = $10, notes = $11, issue_date = $12, due_date = $13,
			total_amount_received = $14, remaining_amount = $15, payment_records = $16,
			status = $17, reject_reason = $18, recurring = $19,
			version = version + 1, updated_at = NOW()
		WHERE id = $20 AND version = $21
	`
	tag, err := r.db.Exec(ctx, query,
		client, items, invoice.PaymentMethod, details, invoice.Currency,
		invoice.SubTotalBeforeDiscount, invoice.TotalDiscountValue, invoice.VATPercent, invoice.VATValue,
		invoice.GrandTotal, invoice.Notes, invoice.IssueDate, invoice.DueDate,
		invoice.TotalAmountReceived, invoice.RemainingAmount, records,
		invoice.Status, invoice.RejectReason, recurring,
		invoice.ID, invoice.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewConflictError("invoice", "document was modified concurrently")
	}
	invoice.Version++
	return nil
}

func (r *invoiceRepo) Delete(ctx context.Context, creatorWallet string, id uuid.UUID) error {
	query := `DELETE FROM invoices WHERE creator_wallet = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, creatorWallet, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("invoice")
	}
	return nil
}

// OrphanChildren clears the parent link of every child of a deleted invoice.
// The chain walker treats an unresolvable parent as an effective root.
func (r *invoiceRepo) OrphanChildren(ctx context.Context, parentID uuid.UUID) error {
	query := `UPDATE invoices SET parent_invoice_id = NULL, updated_at = NOW() WHERE parent_invoice_id = $1`
	_, err := r.db.Exec(ctx, query, parentID)
	return err
}

func (r *invoiceRepo) GetChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE parent_invoice_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// GetPaidRecurring returns paid invoices with a live recurring config that
// have not generated a successor yet, the candidate set for the generation
// sweep. Parents with a child are excluded so a sweep never re-generates a
// link of the chain. Optionally scoped to one creator.
func (r *invoiceRepo) GetPaidRecurring(ctx context.Context, creatorWallet *string) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status = $1
			AND (recurring->>'is_recurring')::boolean = true
			AND recurring->>'stopped_at' IS NULL
			AND ($2::text IS NULL OR creator_wallet = $2)
			AND NOT EXISTS (
				SELECT 1 FROM invoices c WHERE c.parent_invoice_id = invoices.id
			)
		ORDER BY issue_date ASC
	`
	rows, err := r.db.Query(ctx, query, models.StatusPaid, creatorWallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// ListDueUnsettled returns invoices past their due date that are still in a
// status eligible for the overdue transition, across all creators. Feeds the
// background overdue sweep.
func (r *invoiceRepo) ListDueUnsettled(ctx context.Context, now time.Time, limit, offset int) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE due_date < $1 AND status IN ($2, $3, $4)
		ORDER BY due_date ASC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.db.Query(ctx, query, now,
		models.StatusAwaitingPayment, models.StatusPartiallyPaid, models.StatusPaymentPendingVerification,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// TxnHashExists reports whether any invoice's ledger already carries the
// given transaction hash (system-wide replay guard).
func (r *invoiceRepo) TxnHashExists(ctx context.Context, txnHash string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM invoices, jsonb_array_elements(payment_records) AS record
			WHERE record->>'txn_hash' = $1
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, txnHash).Scan(&exists)
	return exists, err
}

// NextInvoiceNumber atomically allocates the next sequence number for a
// creator through an upsert on invoice_sequences, serializing concurrent
// generations on the sequence row.
func (r *invoiceRepo) NextInvoiceNumber(ctx context.Context, creatorWallet string) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (creator_wallet, last_number, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (creator_wallet)
		DO UPDATE SET
			last_number = invoice_sequences.last_number + 1,
			updated_at = NOW()
		RETURNING last_number
	`
	var next int64
	if err := r.db.QueryRow(ctx, query, creatorWallet).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	return next, nil
}
