package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"
)

type WithdrawalRepository struct {
	mu          sync.Mutex
	withdrawals map[string]*domain.Withdrawal
	order       []string
}

func NewWithdrawalRepository() *WithdrawalRepository {
	return &WithdrawalRepository{
		withdrawals: make(map[string]*domain.Withdrawal),
	}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.withdrawals[w.ID]; exists {
		return xerrors.ErrInvalidInput
	}

	copied := *w
	r.withdrawals[w.ID] = &copied
	r.order = append(r.order, w.ID)
	return nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*domain.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.withdrawals[id]
	if !exists {
		return nil, xerrors.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *WithdrawalRepository) List(ctx context.Context, filter *domain.WithdrawalFilter) ([]*domain.Withdrawal, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Withdrawal
	for _, id := range r.order {
		w := r.withdrawals[id]
		if filter.Status != nil && w.Status != *filter.Status {
			continue
		}
		if filter.UserID != nil && w.UserID != *filter.UserID {
			continue
		}
		copied := *w
		matched = append(matched, &copied)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RequestedAt.After(matched[j].RequestedAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

func (r *WithdrawalRepository) Transition(
	ctx context.Context,
	id string,
	from []domain.WithdrawalStatus,
	to domain.WithdrawalStatus,
	patch *domain.WithdrawalPatch,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.withdrawals[id]
	if !exists {
		return xerrors.ErrNotFound
	}

	allowed := false
	for _, s := range from {
		if w.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return xerrors.ErrAlreadyProcessed
	}

	w.Status = to
	applyPatch(w, patch)

	return nil
}

type withdrawalSnapshot struct {
	withdrawals map[string]domain.Withdrawal
	order       []string
}

func (r *WithdrawalRepository) snapshot() withdrawalSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := withdrawalSnapshot{
		withdrawals: make(map[string]domain.Withdrawal, len(r.withdrawals)),
		order:       append([]string(nil), r.order...),
	}
	for id, w := range r.withdrawals {
		snap.withdrawals[id] = *w
	}
	return snap
}

func (r *WithdrawalRepository) restore(snap withdrawalSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.withdrawals = make(map[string]*domain.Withdrawal, len(snap.withdrawals))
	for id, w := range snap.withdrawals {
		copied := w
		r.withdrawals[id] = &copied
	}
	r.order = snap.order
}

func applyPatch(w *domain.Withdrawal, patch *domain.WithdrawalPatch) {
	if patch != nil {
		if patch.ReviewerID != nil {
			w.ReviewerID = patch.ReviewerID
		}
		if patch.Note != nil {
			w.Note = patch.Note
		}
		if patch.ProviderReference != nil {
			w.ProviderReference = patch.ProviderReference
		}
		if patch.TxHash != nil {
			w.TxHash = patch.TxHash
		}
		if patch.ReviewedAt != nil {
			w.ReviewedAt = patch.ReviewedAt
		}
		if patch.ProcessedAt != nil {
			w.ProcessedAt = patch.ProcessedAt
		}
		if patch.CompletedAt != nil {
			w.CompletedAt = patch.CompletedAt
		}
	}
}
