package repository

import (
	"context"
	"fmt"

	"wallet-service/internal/domain"
)

type LedgerRepository interface {
	// Append inserts an entry. Entries are never updated or deleted.
	Append(ctx context.Context, e *domain.LedgerEntry) error

	// ListByUser returns entries in creation order, for replay and audit.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LedgerEntry, error)
}

type ledgerRepo struct {
	db DBTX
}

func NewLedgerRepo(db DBTX) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			user_id, amount, balance_before, balance_after,
			reference_id, reference_type, description
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		e.UserID,
		e.Amount,
		e.BalanceBefore,
		e.BalanceAfter,
		e.ReferenceID,
		e.ReferenceType,
		e.Description,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, user_id, amount, balance_before, balance_after,
		       reference_id, reference_type, description, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Amount,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&e.ReferenceID,
			&e.ReferenceType,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}

	return entries, nil
}
