package repository

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
)

type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.Withdrawal) error
	GetByID(ctx context.Context, id string) (*domain.Withdrawal, error)
	List(ctx context.Context, filter *domain.WithdrawalFilter) ([]*domain.Withdrawal, int64, error)

	// Transition conditionally moves a withdrawal from one of the allowed
	// statuses to the target status, applying the patch atomically with the
	// status flip. Zero rows affected means the current status is not in
	// from: xerrors.ErrAlreadyProcessed (or ErrNotFound if the row is gone).
	Transition(ctx context.Context, id string, from []domain.WithdrawalStatus, to domain.WithdrawalStatus, patch *domain.WithdrawalPatch) error
}

type withdrawalRepo struct {
	db DBTX
}

func NewWithdrawalRepo(db DBTX) WithdrawalRepository {
	return &withdrawalRepo{db: db}
}

const withdrawalColumns = `
	id, user_id, amount, fee, net_amount, destination, status,
	risk_score, risk_flags, requires_kyc, requires_manual_review,
	reviewer_id, note, provider_reference, tx_hash,
	requested_at, reviewed_at, processed_at, completed_at
`

func (r *withdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (
			id, user_id, amount, fee, net_amount, destination, status,
			risk_score, risk_flags, requires_kyc, requires_manual_review, requested_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`

	_, err := r.db.Exec(ctx, query,
		w.ID,
		w.UserID,
		w.Amount,
		w.Fee,
		w.NetAmount,
		w.Destination,
		w.Status,
		w.RiskScore,
		w.RiskFlags,
		w.RequiresKYC,
		w.RequiresManualReview,
		w.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}

	return nil
}

func (r *withdrawalRepo) GetByID(ctx context.Context, id string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}

	return w, nil
}

func (r *withdrawalRepo) List(ctx context.Context, filter *domain.WithdrawalFilter) ([]*domain.Withdrawal, int64, error) {
	baseQuery := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM withdrawals WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		countQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.UserID != nil {
		baseQuery += fmt.Sprintf(" AND user_id = $%d", argIndex)
		countQuery += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	baseQuery += fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var withdrawals []*domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}

	return withdrawals, total, nil
}

func (r *withdrawalRepo) Transition(
	ctx context.Context,
	id string,
	from []domain.WithdrawalStatus,
	to domain.WithdrawalStatus,
	patch *domain.WithdrawalPatch,
) error {
	if patch == nil {
		patch = &domain.WithdrawalPatch{}
	}

	query := `
		UPDATE withdrawals
		SET
			status = $1,
			reviewer_id = COALESCE($2, reviewer_id),
			note = COALESCE($3, note),
			provider_reference = COALESCE($4, provider_reference),
			tx_hash = COALESCE($5, tx_hash),
			reviewed_at = COALESCE($6, reviewed_at),
			processed_at = COALESCE($7, processed_at),
			completed_at = COALESCE($8, completed_at)
		WHERE id = $9 AND status = ANY($10)
	`

	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}

	cmdTag, err := r.db.Exec(ctx, query,
		to,
		patch.ReviewerID,
		patch.Note,
		patch.ProviderReference,
		patch.TxHash,
		patch.ReviewedAt,
		patch.ProcessedAt,
		patch.CompletedAt,
		id,
		fromStr,
	)
	if err != nil {
		return fmt.Errorf("failed to transition withdrawal: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if checkErr := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM withdrawals WHERE id = $1)`, id,
		).Scan(&exists); checkErr != nil {
			return fmt.Errorf("failed to verify withdrawal row: %w", checkErr)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrAlreadyProcessed
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWithdrawal(row rowScanner) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&w.Fee,
		&w.NetAmount,
		&w.Destination,
		&w.Status,
		&w.RiskScore,
		&w.RiskFlags,
		&w.RequiresKYC,
		&w.RequiresManualReview,
		&w.ReviewerID,
		&w.Note,
		&w.ProviderReference,
		&w.TxHash,
		&w.RequestedAt,
		&w.ReviewedAt,
		&w.ProcessedAt,
		&w.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
