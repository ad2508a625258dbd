package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB is a free-form document column
type JSONB map[string]interface{}

// AuditLog records a ledger mutation (payment recorded, verification decided,
// recurrence generated/stopped) for traceability.
type AuditLog struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	CreatorWallet string     `json:"creator_wallet" db:"creator_wallet"`
	InvoiceID     uuid.UUID  `json:"invoice_id" db:"invoice_id"`
	Action        string     `json:"action" db:"action"`
	Details       JSONB      `json:"details" db:"details"`
	ActorWallet   *string    `json:"actor_wallet,omitempty" db:"actor_wallet"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Audit actions
const (
	AuditActionPaymentRecorded     = "PAYMENT_RECORDED"
	AuditActionBankVerified        = "BANK_VERIFIED"
	AuditActionBankRejected        = "BANK_REJECTED"
	AuditActionRecurringGenerated  = "RECURRING_GENERATED"
	AuditActionRecurringStopped    = "RECURRING_STOPPED"
	AuditActionInvoiceRejected     = "INVOICE_REJECTED"
	AuditActionInvoiceDeleted      = "INVOICE_DELETED"
)
