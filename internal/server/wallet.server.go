package server

import (
	"context"
	"net/http"
	"time"

	"wallet-service/internal/config"
	"wallet-service/internal/handler/rest"
	"wallet-service/internal/handler/ws"
	"wallet-service/internal/pub"
	"wallet-service/internal/repository"
	"wallet-service/internal/risk"
	"wallet-service/internal/usecase"
	"wallet-service/pkg/jwtutil"
	"wallet-service/pkg/metrics"
	"wallet-service/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Run wires the service together and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) error {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(logger)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	idgen := utils.NewIDGenerator()

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer rdb.Close()

	// --- Repositories ---
	store := repository.NewStore(dbpool)
	auditRepo := repository.NewAuditRepo(dbpool)
	reviewerRepo := repository.NewReviewerRepo(dbpool)

	// --- Messaging ---
	notifier := pub.NewBalanceEventPublisher(rdb, logger)
	auditProducer := pub.NewAuditProducer(cfg.KafkaBrokers, logger)
	defer auditProducer.Close()

	collector := metrics.NewCollector()

	// --- Risk policy ---
	autoApprove, err := decimal.NewFromString(cfg.AutoApproveCeiling)
	if err != nil {
		return err
	}
	kycCeiling, err := decimal.NewFromString(cfg.KycCeiling)
	if err != nil {
		return err
	}
	feePercent, err := decimal.NewFromString(cfg.WithdrawalFeePercent)
	if err != nil {
		return err
	}
	gate := risk.NewGate(autoApprove, kycCeiling, cfg.RiskScoreThreshold)

	// --- Usecases ---
	ledgerUC := usecase.NewLedgerWriter(store, notifier, collector, logger)
	auditUC := usecase.NewAuditRecorder(auditRepo, auditProducer, idgen, logger)
	settlementUC := usecase.NewSettlementUsecase(store, ledgerUC, auditUC, gate, idgen, collector, logger, feePercent)

	// --- WebSocket hub ---
	hub := ws.NewHub(rdb, logger)
	go hub.Run(ctx)

	// --- HTTP ---
	verifier := jwtutil.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	handler := rest.NewWalletHandler(settlementUC, ledgerUC, logger)
	router := rest.NewRouter(handler, verifier, reviewerRepo, collector, hub, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wallet HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
