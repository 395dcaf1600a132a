package repository

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/domain"
	"wallet-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
)

type ReviewerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Reviewer, error)
}

type reviewerRepo struct {
	db DBTX
}

func NewReviewerRepo(db DBTX) ReviewerRepository {
	return &reviewerRepo{db: db}
}

func (r *reviewerRepo) GetByID(ctx context.Context, id string) (*domain.Reviewer, error) {
	query := `
		SELECT id, display_name, is_active, created_at
		FROM reviewers
		WHERE id = $1
	`

	var rev domain.Reviewer
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rev.ID,
		&rev.DisplayName,
		&rev.IsActive,
		&rev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}

	return &rev, nil
}
