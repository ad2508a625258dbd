package models

import (
	"time"
)

// NotificationType represents the delivery channel of a notification
type NotificationType string

const (
	NotificationTypeEmail   NotificationType = "email"
	NotificationTypeWebhook NotificationType = "webhook"
)

// Notification event types emitted by the invoicing core
const (
	EventRecurringGenerated = "recurring_invoice_generated"
	EventInvoiceOverdue     = "invoice_overdue"
	EventPaymentRecorded    = "payment_recorded"
	EventBankDecided        = "bank_payment_decided"
)

// Notification is a single outbound message
type Notification struct {
	Type      NotificationType `json:"type"`
	EventType string           `json:"event_type"`
	EventID   string           `json:"event_id"`
	Recipient string           `json:"recipient"`
	Subject   *string          `json:"subject,omitempty"`
	Body      string           `json:"body"`
}

// NotificationTemplate is a configurable per-creator message template
type NotificationTemplate struct {
	ID            string    `json:"id"`
	CreatorWallet string    `json:"creator_wallet"`
	Type          string    `json:"type"`
	EventType     string    `json:"event_type"`
	Subject       *string   `json:"subject,omitempty"`
	BodyTemplate  string    `json:"body_template"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WebhookSubscription is an outbound webhook registration for a creator
type WebhookSubscription struct {
	ID            string     `json:"id"`
	CreatorWallet string     `json:"creator_wallet"`
	URL           string     `json:"url"`
	EventTypes    []string   `json:"event_types"`
	IsActive      bool       `json:"is_active"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
