package models

import (
	"time"

	"github.com/google/uuid"
)

// Worker is a saved payee contact owned by a creator wallet. Wallet address
// is unique per owner.
type Worker struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OwnerWallet   string    `json:"owner_wallet" db:"owner_wallet"`
	FullName      string    `json:"full_name" db:"full_name"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	Email         string    `json:"email" db:"email"`
	Label         *string   `json:"label,omitempty" db:"label"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
