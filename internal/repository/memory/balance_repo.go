package memory

import (
	"context"
	"sync"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
)

// BalanceRepository is an in-memory implementation used by tests. It
// mirrors the conditional-write semantics of the postgres repository,
// including the lost-race sentinel, so concurrency behavior can be
// exercised without a database.
type BalanceRepository struct {
	mu       sync.Mutex
	balances map[int64]*domain.Balance

	// CorruptSwaps makes every conditional write land a value off by one
	// cent, for exercising the post-write verification path.
	CorruptSwaps bool

	// BeforeGet, when set, runs ahead of each read. Lets tests coordinate
	// with an in-flight transaction.
	BeforeGet func(userID int64)
}

func NewBalanceRepository() *BalanceRepository {
	return &BalanceRepository{
		balances: make(map[int64]*domain.Balance),
	}
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Balance, error) {
	if r.BeforeGet != nil {
		r.BeforeGet(userID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, exists := r.balances[userID]
	if !exists {
		return nil, xerrors.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *BalanceRepository) Create(ctx context.Context, userID int64, real, bonus decimal.Decimal) (*domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if real.IsNegative() || bonus.IsNegative() {
		return nil, xerrors.ErrInvalidAmount
	}
	if _, exists := r.balances[userID]; exists {
		return nil, xerrors.ErrUserAlreadyExists
	}

	b := &domain.Balance{
		UserID:       userID,
		RealBalance:  real,
		BonusBalance: bonus,
		UpdatedAt:    time.Now(),
	}
	r.balances[userID] = b

	copied := *b
	return &copied, nil
}

func (r *BalanceRepository) CompareAndSwapReal(ctx context.Context, userID int64, expected, next decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if next.IsNegative() {
		return xerrors.ErrInsufficientFunds
	}

	b, exists := r.balances[userID]
	if !exists {
		return xerrors.ErrNotFound
	}
	if !b.RealBalance.Equal(expected) {
		return xerrors.ErrConcurrentModification
	}

	stored := next
	if r.CorruptSwaps {
		stored = next.Add(decimal.New(1, -2))
	}
	b.RealBalance = stored
	b.UpdatedAt = time.Now()
	return nil
}

func (r *BalanceRepository) snapshot() map[int64]domain.Balance {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(map[int64]domain.Balance, len(r.balances))
	for id, b := range r.balances {
		snap[id] = *b
	}
	return snap
}

func (r *BalanceRepository) restore(snap map[int64]domain.Balance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.balances = make(map[int64]*domain.Balance, len(snap))
	for id, b := range snap {
		copied := b
		r.balances[id] = &copied
	}
}
