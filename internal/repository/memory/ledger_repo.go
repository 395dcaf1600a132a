package memory

import (
	"context"
	"sync"
	"time"

	"wallet-service/internal/domain"
)

type LedgerRepository struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
	nextID  int64
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{nextID: 1}
}

func (r *LedgerRepository) Append(ctx context.Context, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now()

	copied := *e
	r.entries = append(r.entries, &copied)
	return nil
}

type ledgerSnapshot struct {
	entries []*domain.LedgerEntry
	nextID  int64
}

func (r *LedgerRepository) snapshot() ledgerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := ledgerSnapshot{nextID: r.nextID}
	for _, e := range r.entries {
		copied := *e
		snap.entries = append(snap.entries, &copied)
	}
	return snap
}

func (r *LedgerRepository) restore(snap ledgerSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = snap.entries
	r.nextID = snap.nextID
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	var result []*domain.LedgerEntry
	skipped := 0
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(result) >= limit {
			break
		}
		copied := *e
		result = append(result, &copied)
	}

	return result, nil
}
