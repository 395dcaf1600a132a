package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository/memory"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []int64
	ch     chan struct{}
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{ch: make(chan struct{}, 16)}
}

func (n *capturingNotifier) PublishBalanceUpdated(_ context.Context, userID int64, _ decimal.Decimal, _ string, _ decimal.Decimal) error {
	n.mu.Lock()
	n.events = append(n.events, userID)
	n.mu.Unlock()
	n.ch <- struct{}{}
	return nil
}

func newLedgerFixture(t *testing.T) (*LedgerWriter, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	lw := NewLedgerWriter(st, nil, nil, zap.NewNop())
	return lw, st
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestLedgerWriterDebit(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "100.00"), decimal.Zero)
	require.NoError(t, err)

	bal, err := lw.Debit(ctx, 1, mustDecimal(t, "30.00"), "wd_1", domain.ReferenceTypeWithdrawal, "test debit")
	require.NoError(t, err)
	assert.True(t, bal.RealBalance.Equal(mustDecimal(t, "70.00")), "got %s", bal.RealBalance)

	got, err := lw.Entries(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(mustDecimal(t, "-30.00")))
	assert.True(t, got[0].BalanceBefore.Equal(mustDecimal(t, "100.00")))
	assert.True(t, got[0].BalanceAfter.Equal(mustDecimal(t, "70.00")))
	assert.Equal(t, "wd_1", got[0].ReferenceID)
	assert.Equal(t, domain.ReferenceTypeWithdrawal, got[0].ReferenceType)
}

func TestLedgerWriterDebitExactBalance(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "100.00"), decimal.Zero)
	require.NoError(t, err)

	bal, err := lw.Debit(ctx, 1, mustDecimal(t, "100.00"), "wd_1", domain.ReferenceTypeWithdrawal, "drain")
	require.NoError(t, err)
	assert.True(t, bal.RealBalance.IsZero())
}

func TestLedgerWriterDebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "50.00"), decimal.Zero)
	require.NoError(t, err)

	_, err = lw.Debit(ctx, 1, mustDecimal(t, "50.01"), "wd_1", domain.ReferenceTypeWithdrawal, "too much")
	require.ErrorIs(t, err, xerrors.ErrInsufficientFunds)

	bal, err := lw.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, bal.RealBalance.Equal(mustDecimal(t, "50.00")), "balance must be untouched")

	got, err := lw.Entries(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "a rejected debit must leave no trail")
}

func TestLedgerWriterRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "10.00"), decimal.Zero)
	require.NoError(t, err)

	_, err = lw.Debit(ctx, 1, decimal.Zero, "wd_1", domain.ReferenceTypeWithdrawal, "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidAmount)

	_, err = lw.Debit(ctx, 1, mustDecimal(t, "-5.00"), "wd_1", domain.ReferenceTypeWithdrawal, "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidAmount)

	_, err = lw.Credit(ctx, 1, decimal.Zero, "wd_1", domain.ReferenceTypeRefund, "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidAmount)
}

func TestLedgerWriterUnknownUser(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)

	_, err := lw.Debit(ctx, 404, mustDecimal(t, "1.00"), "wd_1", domain.ReferenceTypeWithdrawal, "")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestLedgerWriterCredit(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "20.00"), decimal.Zero)
	require.NoError(t, err)

	bal, err := lw.Credit(ctx, 1, mustDecimal(t, "15.50"), "wd_9", domain.ReferenceTypeRefund, "refund")
	require.NoError(t, err)
	assert.True(t, bal.RealBalance.Equal(mustDecimal(t, "35.50")))

	got, err := lw.Entries(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(mustDecimal(t, "15.50")), "credits are recorded positive")
}

func TestLedgerReplayReconstructsBalance(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 7, mustDecimal(t, "100.00"), decimal.Zero)
	require.NoError(t, err)

	_, err = lw.Debit(ctx, 7, mustDecimal(t, "30.00"), "wd_1", domain.ReferenceTypeWithdrawal, "")
	require.NoError(t, err)
	_, err = lw.Credit(ctx, 7, mustDecimal(t, "5.25"), "wd_1", domain.ReferenceTypeRefund, "")
	require.NoError(t, err)
	_, err = lw.Debit(ctx, 7, mustDecimal(t, "20.75"), "wd_2", domain.ReferenceTypeWithdrawal, "")
	require.NoError(t, err)

	entries, err := lw.Entries(ctx, 7, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	replayed := entries[0].BalanceBefore
	for _, e := range entries {
		require.True(t, replayed.Equal(e.BalanceBefore), "entry %d does not chain", e.ID)
		replayed = replayed.Add(e.Amount)
		require.True(t, replayed.Equal(e.BalanceAfter), "entry %d after-balance mismatch", e.ID)
	}

	bal, err := lw.Balance(ctx, 7)
	require.NoError(t, err)
	assert.True(t, replayed.Equal(bal.RealBalance), "replay %s vs stored %s", replayed, bal.RealBalance)
}

// A write that does not land exactly as issued must surface as a
// verification failure and roll the whole mutation back: no ledger entry,
// nothing reported as committed.
func TestLedgerWriterVerificationFailure(t *testing.T) {
	ctx := context.Background()
	lw, st := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "100.00"), decimal.Zero)
	require.NoError(t, err)

	st.BalancesRepo.CorruptSwaps = true

	_, err = lw.Debit(ctx, 1, mustDecimal(t, "30.00"), "wd_1", domain.ReferenceTypeWithdrawal, "")
	require.ErrorIs(t, err, xerrors.ErrVerificationFailed)

	st.BalancesRepo.CorruptSwaps = false

	bal, err := lw.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, bal.RealBalance.Equal(mustDecimal(t, "100.00")),
		"failed mutation must roll back, balance is %s", bal.RealBalance)

	entries, err := lw.Entries(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "no entry may describe a rolled-back write")
}

func TestLedgerWriterConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	lw, _ := newLedgerFixture(t)
	_, err := lw.CreateBalance(ctx, 1, mustDecimal(t, "100.00"), decimal.Zero)
	require.NoError(t, err)

	const workers = 30
	amount := mustDecimal(t, "10.00")

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lw.Debit(ctx, 1, amount, "wd_race", domain.ReferenceTypeWithdrawal, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !assert.True(t,
			err == xerrors.ErrInsufficientFunds ||
				err == xerrors.ErrConcurrentModification, "unexpected error %v", err) {
			t.FailNow()
		}
	}

	bal, err := lw.Balance(ctx, 1)
	require.NoError(t, err)
	assert.False(t, bal.RealBalance.IsNegative(), "balance went negative: %s", bal.RealBalance)

	expected := mustDecimal(t, "100.00").Sub(amount.Mul(decimal.NewFromInt(int64(succeeded))))
	assert.True(t, bal.RealBalance.Equal(expected),
		"%d debits succeeded but balance is %s", succeeded, bal.RealBalance)

	entries, err := lw.Entries(ctx, 1, 0, 0)
	require.NoError(t, err)
	assert.Len(t, entries, succeeded, "one ledger entry per committed debit")
}

func TestLedgerWriterPublishesBalanceEvent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	notifier := newCapturingNotifier()
	lw := NewLedgerWriter(st, notifier, nil, zap.NewNop())

	_, err := lw.CreateBalance(ctx, 3, mustDecimal(t, "40.00"), decimal.Zero)
	require.NoError(t, err)

	_, err = lw.Debit(ctx, 3, mustDecimal(t, "10.00"), "wd_1", domain.ReferenceTypeWithdrawal, "")
	require.NoError(t, err)

	select {
	case <-notifier.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no balance event published")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.events, 1)
	assert.Equal(t, int64(3), notifier.events[0])
}
