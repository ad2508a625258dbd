package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chainvoice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AuditLogsRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
	ListByCreator(ctx context.Context, creatorWallet string, startDate, endDate time.Time, limit, offset int) ([]*models.AuditLog, error)
}

type auditLogsRepo struct {
	db Database
}

func NewAuditLogsRepository(db Database) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, creator_wallet, invoice_id, action, details, actor_wallet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err = r.db.Exec(ctx, query, entry.ID, entry.CreatorWallet, entry.InvoiceID, entry.Action, details, entry.ActorWallet)
	return err
}

func (r *auditLogsRepo) ListByInvoice(ctx context.Context, creatorWallet string, invoiceID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, creator_wallet, invoice_id, action, details, actor_wallet, created_at
		FROM audit_logs
		WHERE creator_wallet = $1 AND invoice_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, creatorWallet, invoiceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditLogs(rows)
}

func (r *auditLogsRepo) ListByCreator(ctx context.Context, creatorWallet string, startDate, endDate time.Time, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, creator_wallet, invoice_id, action, details, actor_wallet, created_at
		FROM audit_logs
		WHERE creator_wallet = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.db.Query(ctx, query, creatorWallet, startDate, endDate, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditLogs(rows)
}

func collectAuditLogs(rows pgx.Rows) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	for rows.Next() {
		entry := &models.AuditLog{}
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.CreatorWallet, &entry.InvoiceID, &entry.Action, &details, &entry.ActorWallet, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
