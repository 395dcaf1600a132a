package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/pkg/metrics"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceNotifier publishes balance-change events. Implementations are
// best-effort; the ledger path only logs their failures.
type BalanceNotifier interface {
	PublishBalanceUpdated(ctx context.Context, userID int64, newBalance decimal.Decimal, withdrawalID string, withdrawalAmount decimal.Decimal) error
}

// casAttempts bounds the fresh-read retry loop on a lost compare-and-swap
// race before the conflict is surfaced to the caller as retryable.
const casAttempts = 3

// LedgerWriter is the only component permitted to mutate balances.
// Every mutation follows the same discipline, inside one transaction:
// read, check, conditional write against the observed value, re-read and
// verify, append the ledger entry. Notification happens after commit.
type LedgerWriter struct {
	store     repository.Store
	notifier  BalanceNotifier
	collector *metrics.Collector
	logger    *zap.Logger
}

func NewLedgerWriter(
	store repository.Store,
	notifier BalanceNotifier,
	collector *metrics.Collector,
	logger *zap.Logger,
) *LedgerWriter {
	return &LedgerWriter{
		store:     store,
		notifier:  notifier,
		collector: collector,
		logger:    logger,
	}
}

// Balance returns the current balance for a user.
func (w *LedgerWriter) Balance(ctx context.Context, userID int64) (*domain.Balance, error) {
	return w.store.Balances().GetByUserID(ctx, userID)
}

// Entries returns the user's ledger entries in creation order.
func (w *LedgerWriter) Entries(ctx context.Context, userID int64, limit, offset int) ([]*domain.LedgerEntry, error) {
	return w.store.Ledger().ListByUser(ctx, userID, limit, offset)
}

// CreateBalance seeds a balance row for a new user.
func (w *LedgerWriter) CreateBalance(ctx context.Context, userID int64, real, bonus decimal.Decimal) (*domain.Balance, error) {
	return w.store.Balances().Create(ctx, userID, real, bonus)
}

// Debit withdraws amount from the user's real balance.
func (w *LedgerWriter) Debit(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	referenceID string,
	referenceType domain.ReferenceType,
	description string,
) (*domain.Balance, error) {
	if !amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}
	return w.apply(ctx, userID, amount.Neg(), referenceID, referenceType, description)
}

// Credit adds amount to the user's real balance (refunds, deposits).
func (w *LedgerWriter) Credit(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	referenceID string,
	referenceType domain.ReferenceType,
	description string,
) (*domain.Balance, error) {
	if !amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}
	return w.apply(ctx, userID, amount, referenceID, referenceType, description)
}

// apply opens a transaction around the mutation and notifies once it has
// committed.
func (w *LedgerWriter) apply(
	ctx context.Context,
	userID int64,
	delta decimal.Decimal,
	referenceID string,
	referenceType domain.ReferenceType,
	description string,
) (*domain.Balance, error) {
	var out *domain.Balance
	err := w.store.WithinTx(ctx, func(s repository.Store) error {
		b, err := w.mutate(ctx, s, userID, delta, referenceID, referenceType, description)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.committed(userID, out.RealBalance, referenceID, delta)
	return out, nil
}

// mutate applies a signed delta under the check-write-verify discipline.
// It must run against a transaction-bound store: the verification read
// then observes the transaction's own write, and concurrent writers
// serialize on the row, so a mismatch can only mean the stored value was
// mangled between write and read. The caller notifies after commit.
func (w *LedgerWriter) mutate(
	ctx context.Context,
	s repository.Store,
	userID int64,
	delta decimal.Decimal,
	referenceID string,
	referenceType domain.ReferenceType,
	description string,
) (*domain.Balance, error) {
	balances := s.Balances()
	var lastErr error

	for attempt := 1; attempt <= casAttempts; attempt++ {
		b0, err := balances.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}

		if delta.IsNegative() {
			debit := delta.Neg()
			// Two independent non-negativity checks. This is money.
			if debit.GreaterThan(b0.RealBalance) {
				return nil, xerrors.ErrInsufficientFunds
			}
			if b0.RealBalance.Sub(debit).IsNegative() {
				return nil, xerrors.ErrInsufficientFunds
			}
		}

		newBalance := b0.RealBalance.Add(delta)

		err = balances.CompareAndSwapReal(ctx, userID, b0.RealBalance, newBalance)
		if err != nil {
			if errors.Is(err, xerrors.ErrConcurrentModification) {
				if w.collector != nil {
					w.collector.RecordCASConflict()
				}
				w.logger.Warn("balance write lost a race, retrying from fresh read",
					zap.Int64("user_id", userID),
					zap.Int("attempt", attempt),
				)
				lastErr = err
				continue
			}
			return nil, err
		}

		// Post-write verification: re-read and assert the stored value is
		// exactly what was written. A mismatch is a data-integrity
		// incident; returning the error rolls the whole mutation back.
		b1, err := balances.GetByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to read back balance: %w", err)
		}
		if !b1.RealBalance.Equal(newBalance) {
			if w.collector != nil {
				w.collector.RecordVerificationFailure()
			}
			w.logger.Error("balance verification failed after conditional write",
				zap.Int64("user_id", userID),
				zap.String("expected", newBalance.String()),
				zap.String("actual", b1.RealBalance.String()),
				zap.String("reference_id", referenceID),
			)
			return nil, xerrors.ErrVerificationFailed
		}

		entry := &domain.LedgerEntry{
			UserID:        userID,
			Amount:        delta,
			BalanceBefore: b0.RealBalance,
			BalanceAfter:  newBalance,
			ReferenceID:   referenceID,
			ReferenceType: referenceType,
			Description:   description,
		}
		if err := s.Ledger().Append(ctx, entry); err != nil {
			// Rolls back the balance write with it; no committed mutation
			// may exist without its ledger entry.
			return nil, fmt.Errorf("failed to record ledger entry: %w", err)
		}

		b1.RealBalance = newBalance
		return b1, nil
	}

	return nil, lastErr
}

// committed fires the post-commit side effects of a mutation.
func (w *LedgerWriter) committed(userID int64, newBalance decimal.Decimal, referenceID string, delta decimal.Decimal) {
	if w.collector != nil {
		bal, _ := newBalance.Float64()
		w.collector.SetBalance(fmt.Sprintf("%d", userID), bal)
	}
	w.publish(userID, newBalance, referenceID, delta)
}

// publish fires the balance event without blocking the settlement path.
func (w *LedgerWriter) publish(userID int64, newBalance decimal.Decimal, referenceID string, delta decimal.Decimal) {
	if w.notifier == nil {
		return
	}

	amount := delta.Abs()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := w.notifier.PublishBalanceUpdated(ctx, userID, newBalance, referenceID, amount); err != nil {
			w.logger.Warn("failed to publish balance event",
				zap.Int64("user_id", userID),
				zap.String("reference_id", referenceID),
				zap.Error(err),
			)
		}
	}()
}
