package utils

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces prefixed, lexicographically sortable identifiers
// for withdrawals, audit records and ledger references.
// Example: wd_01ARZ3NDEKTSV4RRFFQ69G5FAV
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *IDGenerator) Generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

// WithdrawalID generates a withdrawal identifier.
// Format: wd_{ULID}
func (g *IDGenerator) WithdrawalID() string {
	return g.Generate("wd")
}

// AuditID generates an audit record identifier.
// Format: aud_{ULID}
func (g *IDGenerator) AuditID() string {
	return g.Generate("aud")
}

// ValidateID checks a prefixed identifier against its expected prefix.
func ValidateID(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return false
	}
	if len(rest) != 26 {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
