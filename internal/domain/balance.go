package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance represents the authoritative monetary balance of a user.
// RealBalance doubles as the optimistic-lock token: every conditional
// write compares against the value observed at read time.
type Balance struct {
	UserID       int64           `json:"user_id" db:"user_id"`
	RealBalance  decimal.Decimal `json:"real_balance" db:"real_balance"`
	BonusBalance decimal.Decimal `json:"bonus_balance" db:"bonus_balance"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

const EventBalanceUpdated = "balance_updated"

// BalanceEvent is published to subscribers on every committed balance mutation.
type BalanceEvent struct {
	Event            string          `json:"event"`
	EventID          string          `json:"event_id"`
	UserID           int64           `json:"user_id"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	WithdrawalID     string          `json:"withdrawal_id,omitempty"`
	WithdrawalAmount decimal.Decimal `json:"withdrawal_amount"`
	Timestamp        time.Time       `json:"timestamp"`
}
