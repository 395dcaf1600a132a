package domain

import (
	"time"

	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusReviewing  WithdrawalStatus = "reviewing"
	WithdrawalStatusApproved   WithdrawalStatus = "approved"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusPaid       WithdrawalStatus = "paid"
)

// IsTerminal reports whether no further transition is permitted.
func (s WithdrawalStatus) IsTerminal() bool {
	switch s {
	case WithdrawalStatusRejected, WithdrawalStatusFailed, WithdrawalStatusPaid, WithdrawalStatusCompleted:
		return true
	}
	return false
}

// SettleAction is an admin/automation intent against a withdrawal.
type SettleAction string

const (
	SettleActionApprove SettleAction = "approve"
	SettleActionReject  SettleAction = "reject"
	SettleActionPaid    SettleAction = "paid"
)

func ParseSettleAction(s string) (SettleAction, error) {
	switch SettleAction(s) {
	case SettleActionApprove, SettleActionReject, SettleActionPaid:
		return SettleAction(s), nil
	}
	return "", xerrors.ErrInvalidAction
}

type Withdrawal struct {
	ID                    string           `json:"id" db:"id"`
	UserID                int64            `json:"user_id" db:"user_id"`
	Amount                decimal.Decimal  `json:"amount" db:"amount"`
	Fee                   decimal.Decimal  `json:"fee" db:"fee"`
	NetAmount             decimal.Decimal  `json:"net_amount" db:"net_amount"`
	Destination           string           `json:"destination" db:"destination"`
	Status                WithdrawalStatus `json:"status" db:"status"`
	RiskScore             int              `json:"risk_score" db:"risk_score"`
	RiskFlags             []string         `json:"risk_flags" db:"risk_flags"`
	RequiresKYC           bool             `json:"requires_kyc" db:"requires_kyc"`
	RequiresManualReview  bool             `json:"requires_manual_review" db:"requires_manual_review"`
	ReviewerID            *string          `json:"reviewer_id,omitempty" db:"reviewer_id"`
	Note                  *string          `json:"note,omitempty" db:"note"`
	ProviderReference     *string          `json:"provider_reference,omitempty" db:"provider_reference"`
	TxHash                *string          `json:"tx_hash,omitempty" db:"tx_hash"`
	RequestedAt           time.Time        `json:"requested_at" db:"requested_at"`
	ReviewedAt            *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ProcessedAt           *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}

func (w *Withdrawal) Validate() error {
	if w.UserID <= 0 {
		return xerrors.ErrInvalidInput
	}
	if !w.Amount.IsPositive() {
		return xerrors.ErrInvalidAmount
	}
	if w.NetAmount.GreaterThan(w.Amount) {
		return xerrors.ErrInvalidAmount
	}
	if w.RiskScore < 0 || w.RiskScore > 100 {
		return xerrors.ErrInvalidInput
	}
	return nil
}

// WithdrawalPatch carries the optional fields a status transition may set.
// Nil fields are left untouched.
type WithdrawalPatch struct {
	ReviewerID        *string
	Note              *string
	ProviderReference *string
	TxHash            *string
	ReviewedAt        *time.Time
	ProcessedAt       *time.Time
	CompletedAt       *time.Time
}

type CreateWithdrawalRequest struct {
	UserID      int64
	Amount      decimal.Decimal
	Destination string
	Risk        *RiskProfile
}

type WithdrawalFilter struct {
	Status *WithdrawalStatus
	UserID *int64
	Limit  int
	Offset int
}
