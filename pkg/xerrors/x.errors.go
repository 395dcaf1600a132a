package xerrors

import "errors"
import "github.com/jackc/pgx/v5/pgconn"

func ParsePGErrorCode(err error) string {
	if pgErr, ok := err.(*pgconn.PgError); ok {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Settlement / ledger
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAlreadyProcessed       = errors.New("withdrawal already processed")
	ErrConcurrentModification = errors.New("concurrent balance modification")
	ErrVerificationFailed     = errors.New("balance verification failed")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidAction          = errors.New("invalid settlement action")
)

// Accounts / reviewers
var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrReviewerInactive  = errors.New("reviewer is not active")
)

// Token
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)
