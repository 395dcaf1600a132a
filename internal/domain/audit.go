package domain

import (
	"time"
)

type ActorType string

const (
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeSystem ActorType = "system"
)

// AuditRecord is an append-only record of one state-transition decision,
// written on every settlement attempt including failures.
type AuditRecord struct {
	ID         string                 `json:"id" db:"id"`
	ActorType  ActorType              `json:"actor_type" db:"actor_type"`
	ActorID    string                 `json:"actor_id" db:"actor_id"`
	Action     string                 `json:"action" db:"action"`
	EntityType string                 `json:"entity_type" db:"entity_type"`
	EntityID   string                 `json:"entity_id" db:"entity_id"`
	Meta       map[string]interface{} `json:"meta,omitempty" db:"meta"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
