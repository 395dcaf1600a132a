package memory

import (
	"context"
	"sync"
	"time"

	"wallet-service/internal/domain"
)

type AuditRepository struct {
	mu      sync.Mutex
	records []*domain.AuditRecord

	// FailAppends makes every Append return an error, for exercising the
	// recorder's never-mask-the-outcome contract.
	FailAppends bool
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(ctx context.Context, rec *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAppends {
		return context.DeadlineExceeded
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	copied := *rec
	r.records = append(r.records, &copied)
	return nil
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*domain.AuditRecord
	for _, rec := range r.records {
		if rec.EntityType == entityType && rec.EntityID == entityID {
			copied := *rec
			result = append(result, &copied)
		}
	}
	return result, nil
}
