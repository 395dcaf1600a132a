package domain

import "time"

// Reviewer is an admin identity authorized to settle withdrawals.
// Identity is asserted by a signed access token; the stored record is the
// source of truth for whether the reviewer is still active.
type Reviewer struct {
	ID          string    `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
