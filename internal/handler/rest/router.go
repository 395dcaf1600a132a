package rest

import (
	"net/http"
	"time"

	"wallet-service/internal/repository"
	"wallet-service/pkg/jwtutil"
	"wallet-service/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter assembles the HTTP surface. Settlement routes sit behind
// reviewer authentication; the provider callback and read endpoints do not.
func NewRouter(
	h *WalletHandler,
	verifier *jwtutil.Verifier,
	reviewers repository.ReviewerRepository,
	collector *metrics.Collector,
	wsHandler http.Handler,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if collector != nil {
		r.Handle("/metrics", collector.Handler())
	}
	if wsHandler != nil {
		r.Handle("/ws/balance", wsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.CreateUser)
		r.Get("/users/{userID}/balance", h.GetBalance)
		r.Get("/users/{userID}/ledger", h.GetLedger)

		r.Post("/withdrawals", h.CreateWithdrawal)
		r.Get("/withdrawals", h.ListWithdrawals)
		r.Get("/withdrawals/{id}", h.GetWithdrawal)
		r.Post("/withdrawals/{id}/provider-result", h.ProviderResult)

		r.Group(func(r chi.Router) {
			r.Use(ReviewerAuth(verifier, reviewers, logger))
			r.Post("/withdrawals/settle", h.Settle)
			r.Post("/withdrawals/{id}/claim", h.Claim)
			r.Post("/withdrawals/{id}/dispatch", h.Dispatch)
		})
	})

	return r
}
