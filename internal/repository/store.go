package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so the
// same repository code runs against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the money-path repositories behind one transactional
// boundary. A settlement's status claim, balance write, verification read
// and ledger append must commit or roll back together.
type Store interface {
	Balances() BalanceRepository
	Withdrawals() WithdrawalRepository
	Ledger() LedgerRepository

	// WithinTx runs fn against a store bound to a single transaction.
	// A non-nil error from fn rolls everything back. Calling WithinTx on
	// an already transaction-bound store joins the open transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	pool *pgxpool.Pool // nil when bound to a transaction
	db   DBTX
}

func NewStore(pool *pgxpool.Pool) Store {
	return &sqlStore{pool: pool, db: pool}
}

func (s *sqlStore) Balances() BalanceRepository {
	return NewBalanceRepo(s.db)
}

func (s *sqlStore) Withdrawals() WithdrawalRepository {
	return NewWithdrawalRepo(s.db)
}

func (s *sqlStore) Ledger() LedgerRepository {
	return NewLedgerRepo(s.db)
}

func (s *sqlStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqlStore{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
