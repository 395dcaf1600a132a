package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-service/internal/domain"
)

type AuditRepository interface {
	Append(ctx context.Context, rec *domain.AuditRecord) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error)
}

type auditRepo struct {
	db DBTX
}

func NewAuditRepo(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, rec *domain.AuditRecord) error {
	var meta []byte
	if rec.Meta != nil {
		var err error
		meta, err = json.Marshal(rec.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal audit meta: %w", err)
		}
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_log (id, actor_type, actor_id, action, entity_type, entity_id, meta, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.ActorType,
		rec.ActorID,
		rec.Action,
		rec.EntityType,
		rec.EntityID,
		meta,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, actor_type, actor_id, action, entity_type, entity_id, meta, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var meta []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.ActorType,
			&rec.ActorID,
			&rec.Action,
			&rec.EntityType,
			&rec.EntityID,
			&meta,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &rec.Meta)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return records, nil
}
