package usecase

import (
	"context"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/pkg/utils"

	"go.uber.org/zap"
)

// AuditStream mirrors audit records to an external sink (Kafka).
type AuditStream interface {
	Publish(ctx context.Context, rec *domain.AuditRecord) error
}

// AuditRecorder appends one record per state-transition decision, attempts
// included. Recording is best-effort and never fails the operation that
// triggered it; failures are logged for operator follow-up.
type AuditRecorder struct {
	repo   repository.AuditRepository
	stream AuditStream
	idgen  *utils.IDGenerator
	logger *zap.Logger
}

func NewAuditRecorder(repo repository.AuditRepository, stream AuditStream, idgen *utils.IDGenerator, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{
		repo:   repo,
		stream: stream,
		idgen:  idgen,
		logger: logger,
	}
}

func (a *AuditRecorder) Record(
	ctx context.Context,
	actorType domain.ActorType,
	actorID string,
	action string,
	entityType string,
	entityID string,
	meta map[string]interface{},
) {
	rec := &domain.AuditRecord{
		ID:         a.idgen.AuditID(),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       meta,
		CreatedAt:  time.Now().UTC(),
	}

	if err := a.repo.Append(ctx, rec); err != nil {
		a.logger.Warn("failed to append audit record",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}

	if a.stream == nil {
		return
	}
	go func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.stream.Publish(sctx, rec); err != nil {
			a.logger.Warn("failed to mirror audit record",
				zap.String("action", action),
				zap.String("entity_id", entityID),
				zap.Error(err),
			)
		}
	}()
}

// ListByEntity returns persisted audit records for one entity.
func (a *AuditRecorder) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error) {
	return a.repo.ListByEntity(ctx, entityType, entityID)
}
