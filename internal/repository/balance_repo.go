package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type BalanceRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*domain.Balance, error)
	Create(ctx context.Context, userID int64, real, bonus decimal.Decimal) (*domain.Balance, error)

	// CompareAndSwapReal conditionally writes the real balance: the update
	// succeeds only if the stored value still equals expected. A lost race
	// returns xerrors.ErrConcurrentModification; the caller must re-read
	// before retrying, never reuse the stale expected value.
	CompareAndSwapReal(ctx context.Context, userID int64, expected, next decimal.Decimal) error
}

type balanceRepo struct {
	db DBTX
}

func NewBalanceRepo(db DBTX) BalanceRepository {
	return &balanceRepo{db: db}
}

// GetByUserID fetches the balance for a user (read-only, no lock)
func (r *balanceRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Balance, error) {
	query := `
		SELECT user_id, real_balance, bonus_balance, updated_at
		FROM balances
		WHERE user_id = $1
	`

	var b domain.Balance
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&b.UserID,
		&b.RealBalance,
		&b.BonusBalance,
		&b.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &b, nil
}

func (r *balanceRepo) Create(ctx context.Context, userID int64, real, bonus decimal.Decimal) (*domain.Balance, error) {
	if real.IsNegative() || bonus.IsNegative() {
		return nil, xerrors.ErrInvalidAmount
	}

	query := `
		INSERT INTO balances (user_id, real_balance, bonus_balance, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id, real_balance, bonus_balance, updated_at
	`

	var b domain.Balance
	err := r.db.QueryRow(ctx, query, userID, real, bonus, time.Now()).Scan(
		&b.UserID,
		&b.RealBalance,
		&b.BonusBalance,
		&b.UpdatedAt,
	)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return nil, xerrors.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}

	return &b, nil
}

// CompareAndSwapReal performs the conditional balance write. The stored
// real_balance itself is the optimistic-lock token.
func (r *balanceRepo) CompareAndSwapReal(ctx context.Context, userID int64, expected, next decimal.Decimal) error {
	if next.IsNegative() {
		return xerrors.ErrInsufficientFunds
	}

	query := `
		UPDATE balances
		SET real_balance = $1, updated_at = $2
		WHERE user_id = $3 AND real_balance = $4
	`

	cmdTag, err := r.db.Exec(ctx, query, next, time.Now(), userID, expected)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		if checkErr := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM balances WHERE user_id = $1)`, userID,
		).Scan(&exists); checkErr != nil {
			return fmt.Errorf("failed to verify balance row: %w", checkErr)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrConcurrentModification
	}

	return nil
}
