package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferenceType string

const (
	ReferenceTypeWithdrawal ReferenceType = "withdrawal"
	ReferenceTypeRefund     ReferenceType = "refund"
	ReferenceTypeDeposit    ReferenceType = "deposit"
)

// LedgerEntry is the immutable record of one balance mutation.
// Amount is signed: negative for a debit, positive for a credit.
// Replaying a user's entries in creation order over the initial balance
// must reproduce the current balance exactly.
type LedgerEntry struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	ReferenceID   string          `json:"reference_id" db:"reference_id"`
	ReferenceType ReferenceType   `json:"reference_type" db:"reference_type"`
	Description   string          `json:"description" db:"description"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
