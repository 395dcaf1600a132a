package memory

import (
	"context"
	"sync"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"
)

type ReviewerRepository struct {
	mu        sync.Mutex
	reviewers map[string]*domain.Reviewer
}

func NewReviewerRepository() *ReviewerRepository {
	return &ReviewerRepository{
		reviewers: make(map[string]*domain.Reviewer),
	}
}

func (r *ReviewerRepository) Save(rev *domain.Reviewer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rev
	r.reviewers[rev.ID] = &copied
}

func (r *ReviewerRepository) GetByID(ctx context.Context, id string) (*domain.Reviewer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rev, exists := r.reviewers[id]
	if !exists {
		return nil, xerrors.ErrNotFound
	}
	copied := *rev
	return &copied, nil
}
