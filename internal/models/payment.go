package models

import (
	"time"

	"github.com/google/uuid"
)

// Supported settlement tokens for crypto payments
const (
	CryptoTokenUSDC = "USDC"
	CryptoTokenUSDT = "USDT"
)

// Bank payment verification sub-states
const (
	BankVerificationPending  = "pending"
	BankVerificationVerified = "verified"
	BankVerificationRejected = "rejected"
)

// PaymentRecord is one entry in an invoice's append-only ledger. Crypto
// payments carry TxnHash (globally unique across all invoices) and
// CryptoToken; bank payments carry the verification sub-state and optionally
// a proof object stored in object storage. Rejected bank records are retained
// for audit, never deleted.
type PaymentRecord struct {
	ID                     uuid.UUID `json:"id"`
	PaymentType            string    `json:"payment_type"`
	AmountPaid             float64   `json:"amount_paid"`
	PaymentDate            time.Time `json:"payment_date"`
	Note                   *string   `json:"note,omitempty"`
	PayerWallet            *string   `json:"payer_wallet,omitempty"`
	TxnHash                *string   `json:"txn_hash,omitempty"`
	CryptoToken            *string   `json:"crypto_token,omitempty"`
	NFTReceiptID           *string   `json:"nft_receipt_id,omitempty"`
	BankVerificationStatus *string   `json:"bank_verification_status,omitempty"`
	BankVerificationNote   *string   `json:"bank_verification_note,omitempty"`
	ProofObjectKey         *string   `json:"proof_object_key,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// IsBank reports whether the record is a bank transfer payment
func (p *PaymentRecord) IsBank() bool {
	return p.PaymentType == PaymentMethodBank
}

// IsPendingVerification reports whether a bank record still awaits a decision
func (p *PaymentRecord) IsPendingVerification() bool {
	return p.IsBank() && p.BankVerificationStatus != nil && *p.BankVerificationStatus == BankVerificationPending
}
