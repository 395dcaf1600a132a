package memory

import (
	"context"
	"sync"

	"wallet-service/internal/repository"
)

// Store is the in-memory counterpart of the postgres store. Transactions
// are serialized by a single lock and rolled back by restoring a snapshot
// taken at entry, mirroring the commit-or-nothing semantics the pgx store
// gets from a real transaction.
type Store struct {
	BalancesRepo    *BalanceRepository
	WithdrawalsRepo *WithdrawalRepository
	LedgerRepo      *LedgerRepository

	mu   sync.Mutex
	inTx bool
}

func NewStore() *Store {
	return &Store{
		BalancesRepo:    NewBalanceRepository(),
		WithdrawalsRepo: NewWithdrawalRepository(),
		LedgerRepo:      NewLedgerRepository(),
	}
}

func (s *Store) Balances() repository.BalanceRepository {
	return s.BalancesRepo
}

func (s *Store) Withdrawals() repository.WithdrawalRepository {
	return s.WithdrawalsRepo
}

func (s *Store) Ledger() repository.LedgerRepository {
	return s.LedgerRepo
}

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balances := s.BalancesRepo.snapshot()
	withdrawals := s.WithdrawalsRepo.snapshot()
	entries := s.LedgerRepo.snapshot()

	tx := &Store{
		BalancesRepo:    s.BalancesRepo,
		WithdrawalsRepo: s.WithdrawalsRepo,
		LedgerRepo:      s.LedgerRepo,
		inTx:            true,
	}
	if err := fn(tx); err != nil {
		s.BalancesRepo.restore(balances)
		s.WithdrawalsRepo.restore(withdrawals)
		s.LedgerRepo.restore(entries)
		return err
	}
	return nil
}
