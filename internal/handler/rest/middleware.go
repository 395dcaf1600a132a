package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/pkg/jwtutil"
	"wallet-service/pkg/response"
	"wallet-service/pkg/xerrors"

	"go.uber.org/zap"
)

type contextKey string

const reviewerContextKey contextKey = "reviewer"

// ReviewerFromContext returns the authenticated reviewer set by ReviewerAuth.
func ReviewerFromContext(ctx context.Context) (*domain.Reviewer, bool) {
	rev, ok := ctx.Value(reviewerContextKey).(*domain.Reviewer)
	return rev, ok
}

// ReviewerAuth authenticates settlement endpoints. The bearer token asserts
// identity; the reviewer row asserts the identity is still allowed to act.
func ReviewerAuth(verifier *jwtutil.Verifier, reviewers repository.ReviewerRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				response.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.ParseAndValidate(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			rev, err := reviewers.GetByID(r.Context(), claims.ReviewerID)
			if err != nil {
				if errors.Is(err, xerrors.ErrNotFound) {
					response.Error(w, http.StatusUnauthorized, "unknown reviewer")
					return
				}
				logger.Error("reviewer lookup failed", zap.String("reviewer_id", claims.ReviewerID), zap.Error(err))
				response.Error(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !rev.IsActive {
				response.Error(w, http.StatusUnauthorized, xerrors.ErrReviewerInactive.Error())
				return
			}

			ctx := context.WithValue(r.Context(), reviewerContextKey, rev)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
