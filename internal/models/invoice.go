package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice status values as exposed over the API
const (
	StatusAwaitingPayment            = "Awaiting Payment"
	StatusPartiallyPaid              = "Partially Paid"
	StatusPaid                       = "Paid"
	StatusOverdue                    = "Overdue"
	StatusRejected                   = "Rejected"
	StatusPaymentPendingVerification = "Payment Pending Verification"
)

// Payment methods
const (
	PaymentMethodCrypto = "crypto"
	PaymentMethodBank   = "bank"
)

// Recurrence frequency types
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
	FrequencyCustom  = "custom"
)

// Recurrence end-condition types
const (
	EndConditionInvoiceCount = "invoiceCount"
	EndConditionEndDate      = "endDate"
	EndConditionNever        = "never"
)

// ClientInfo is the billed party snapshot carried on every invoice
type ClientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// InvoiceItem is a single billed line item
type InvoiceItem struct {
	Name                 string  `json:"name"`
	Quantity             int     `json:"quantity"`
	UnitPrice            float64 `json:"unit_price"`
	DiscountPercent      float64 `json:"discount_percent"`
	AmountBeforeDiscount float64 `json:"amount_before_discount"`
	AmountAfterDiscount  float64 `json:"amount_after_discount"`
}

// PaymentDetails carries bank transfer destination fields; required when the
// invoice payment method is bank
type PaymentDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// Frequency describes how often a recurring invoice repeats
type Frequency struct {
	Type       string `json:"type"`
	CustomDays int    `json:"custom_days,omitempty"`
}

// EndCondition describes when a recurring series stops generating.
// Exactly one of Count/EndDate is meaningful, dispatched by Type.
type EndCondition struct {
	Type    string     `json:"type"`
	Count   int        `json:"count,omitempty"`
	EndDate *time.Time `json:"end_date,omitempty"`
}

// Recurring is the recurrence configuration block of an invoice. CurrentCount
// is carried forward (incremented) onto each generated child; the parent is
// never mutated by generation.
type Recurring struct {
	IsRecurring  bool         `json:"is_recurring"`
	Frequency    Frequency    `json:"frequency"`
	StartDate    *time.Time   `json:"start_date,omitempty"`
	EndCondition EndCondition `json:"end_condition"`
	CurrentCount int          `json:"current_count"`
	StoppedAt    *time.Time   `json:"stopped_at,omitempty"`
}

// Invoice is the central aggregate. The ledger fields (TotalAmountReceived,
// RemainingAmount, PaymentRecords) are derived exclusively from accepted
// payments; TotalAmountReceived + RemainingAmount == GrandTotal at all times.
// Version backs optimistic concurrency on ledger mutations.
type Invoice struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	CreatorWallet          string          `json:"creator_wallet" db:"creator_wallet"`
	InvoiceNumber          int64           `json:"invoice_number" db:"invoice_number"`
	Client                 ClientInfo      `json:"client" db:"client"`
	Items                  []InvoiceItem   `json:"items" db:"items"`
	PaymentMethod          string          `json:"payment_method" db:"payment_method"`
	PaymentDetails         *PaymentDetails `json:"payment_details,omitempty" db:"payment_details"`
	Currency               string          `json:"currency" db:"currency"`
	SubTotalBeforeDiscount float64         `json:"sub_total_before_discount" db:"sub_total_before_discount"`
	TotalDiscountValue     float64         `json:"total_discount_value" db:"total_discount_value"`
	VATPercent             float64         `json:"vat_percent" db:"vat_percent"`
	VATValue               float64         `json:"vat_value" db:"vat_value"`
	GrandTotal             float64         `json:"grand_total" db:"grand_total"`
	Notes                  *string         `json:"notes,omitempty" db:"notes"`
	IssueDate              time.Time       `json:"issue_date" db:"issue_date"`
	DueDate                time.Time       `json:"due_date" db:"due_date"`
	TotalAmountReceived    float64         `json:"total_amount_received" db:"total_amount_received"`
	RemainingAmount        float64         `json:"remaining_amount" db:"remaining_amount"`
	PaymentRecords         []PaymentRecord `json:"payment_records" db:"payment_records"`
	Status                 string          `json:"status" db:"status"`
	RejectReason           *string         `json:"reject_reason,omitempty" db:"reject_reason"`
	Recurring              Recurring       `json:"recurring" db:"recurring"`
	ParentInvoiceID        *uuid.UUID      `json:"parent_invoice_id,omitempty" db:"parent_invoice_id"`
	Version                int64           `json:"version" db:"version"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// IsSettledStatus reports whether a status is terminal for overdue marking
func IsSettledStatus(status string) bool {
	return status == StatusPaid || status == StatusRejected
}
