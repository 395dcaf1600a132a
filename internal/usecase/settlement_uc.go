package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/internal/risk"
	"wallet-service/pkg/metrics"
	"wallet-service/pkg/utils"
	"wallet-service/pkg/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const entityTypeWithdrawal = "withdrawal"

// SettleRequest is one settlement decision against a pending withdrawal.
type SettleRequest struct {
	WithdrawalID string
	Action       domain.SettleAction
	ActorType    domain.ActorType
	ActorID      string
	Note         *string
	ProviderRef  *string
	TxHash       *string
}

// ProviderResult is the payout provider's terminal verdict for a
// dispatched withdrawal.
type ProviderResult struct {
	WithdrawalID string
	Settled      bool
	ProviderRef  *string
	TxHash       *string
	Reason       *string
}

// SettlementUsecase owns the withdrawal state machine. All funds movement
// goes through the LedgerWriter; the usecase only decides when to move,
// and couples each status flip to its balance mutation in one transaction.
type SettlementUsecase struct {
	store      repository.Store
	ledger     *LedgerWriter
	audit      *AuditRecorder
	gate       *risk.Gate
	idgen      *utils.IDGenerator
	collector  *metrics.Collector
	logger     *zap.Logger
	feePercent decimal.Decimal
}

func NewSettlementUsecase(
	store repository.Store,
	ledger *LedgerWriter,
	audit *AuditRecorder,
	gate *risk.Gate,
	idgen *utils.IDGenerator,
	collector *metrics.Collector,
	logger *zap.Logger,
	feePercent decimal.Decimal,
) *SettlementUsecase {
	return &SettlementUsecase{
		store:      store,
		ledger:     ledger,
		audit:      audit,
		gate:       gate,
		idgen:      idgen,
		collector:  collector,
		logger:     logger,
		feePercent: feePercent,
	}
}

// RequestWithdrawal accepts a new withdrawal, runs it through the risk
// gate, and parks it in pending. No funds move here; the balance check is
// advisory only and the authoritative check happens at approval.
func (s *SettlementUsecase) RequestWithdrawal(ctx context.Context, req *domain.CreateWithdrawalRequest) (*domain.Withdrawal, error) {
	if req.UserID <= 0 || req.Destination == "" {
		return nil, xerrors.ErrInvalidInput
	}
	if !req.Amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}

	bal, err := s.ledger.Balance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(bal.RealBalance) {
		return nil, xerrors.ErrInsufficientFunds
	}

	fee := req.Amount.Mul(s.feePercent).Div(decimal.NewFromInt(100)).Round(2)
	assessment := s.gate.Assess(req.Amount, req.Risk)

	w := &domain.Withdrawal{
		ID:                   s.idgen.WithdrawalID(),
		UserID:               req.UserID,
		Amount:               req.Amount,
		Fee:                  fee,
		NetAmount:            req.Amount.Sub(fee),
		Destination:          req.Destination,
		Status:               domain.WithdrawalStatusPending,
		RequiresKYC:          assessment.RequiresKYC,
		RequiresManualReview: assessment.RequiresManualReview,
		RequestedAt:          time.Now().UTC(),
	}
	if req.Risk != nil {
		w.RiskScore = req.Risk.Score
		for _, f := range req.Risk.Flags {
			w.RiskFlags = append(w.RiskFlags, string(f))
		}
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Withdrawals().Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordRiskScore(w.RiskScore)
	}
	s.audit.Record(ctx, domain.ActorTypeSystem, "risk-gate", "withdrawal_requested", entityTypeWithdrawal, w.ID, map[string]interface{}{
		"user_id":                w.UserID,
		"amount":                 w.Amount.String(),
		"risk_score":             w.RiskScore,
		"requires_manual_review": w.RequiresManualReview,
		"requires_kyc":           w.RequiresKYC,
		"auto_approve":           assessment.AutoApprove,
	})

	s.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", w.ID),
		zap.Int64("user_id", w.UserID),
		zap.String("amount", w.Amount.String()),
		zap.Int("risk_score", w.RiskScore),
	)
	return w, nil
}

// Settle applies one reviewer decision: approve, reject, or paid.
// Exactly one balance mutation happens per approved withdrawal no matter
// how many times the same decision is submitted.
func (s *SettlementUsecase) Settle(ctx context.Context, req *SettleRequest) (*domain.Withdrawal, error) {
	start := time.Now()

	var err error
	switch req.Action {
	case domain.SettleActionApprove:
		err = s.approve(ctx, req)
	case domain.SettleActionReject:
		err = s.reject(ctx, req)
	case domain.SettleActionPaid:
		err = s.markPaid(ctx, req)
	default:
		err = xerrors.ErrInvalidAction
	}

	if s.collector != nil {
		s.collector.RecordSettlement(string(req.Action), time.Since(start), err, reason(err))
	}
	if err != nil {
		return nil, err
	}
	return s.store.Withdrawals().GetByID(ctx, req.WithdrawalID)
}

func (s *SettlementUsecase) approve(ctx context.Context, req *SettleRequest) error {
	w, err := s.store.Withdrawals().GetByID(ctx, req.WithdrawalID)
	if err != nil {
		return err
	}
	if w.Status != domain.WithdrawalStatusPending && w.Status != domain.WithdrawalStatusReviewing {
		s.auditDecision(ctx, req, "approve_rejected_duplicate", map[string]interface{}{
			"current_status": string(w.Status),
		})
		return xerrors.ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	patch := &domain.WithdrawalPatch{
		ReviewerID: &req.ActorID,
		Note:       req.Note,
		ReviewedAt: &now,
	}

	// Status claim and debit commit or roll back together. A concurrent
	// approval of the same withdrawal loses on the claim, and a failed
	// debit leaves the withdrawal exactly as it was.
	var bal *domain.Balance
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Withdrawals().Transition(ctx, w.ID,
			[]domain.WithdrawalStatus{domain.WithdrawalStatusPending, domain.WithdrawalStatusReviewing},
			domain.WithdrawalStatusApproved, patch); err != nil {
			return err
		}

		// Debit the gross amount; the fee stays with the platform and
		// the user receives the net from the provider.
		b, err := s.ledger.mutate(ctx, tx, w.UserID, w.Amount.Neg(), w.ID, domain.ReferenceTypeWithdrawal,
			fmt.Sprintf("withdrawal %s approved", w.ID))
		if err != nil {
			return err
		}
		bal = b
		return nil
	})
	if err != nil {
		if errors.Is(err, xerrors.ErrAlreadyProcessed) {
			s.auditDecision(ctx, req, "approve_lost_race", nil)
		} else {
			s.auditDecision(ctx, req, "approve_debit_failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return err
	}

	s.ledger.committed(w.UserID, bal.RealBalance, w.ID, w.Amount.Neg())
	s.auditDecision(ctx, req, "approved", map[string]interface{}{
		"user_id": w.UserID,
		"amount":  w.Amount.String(),
		"fee":     w.Fee.String(),
	})
	s.logger.Info("withdrawal approved",
		zap.String("withdrawal_id", w.ID),
		zap.Int64("user_id", w.UserID),
		zap.String("amount", w.Amount.String()),
		zap.String("reviewer_id", req.ActorID),
	)
	return nil
}

func (s *SettlementUsecase) reject(ctx context.Context, req *SettleRequest) error {
	now := time.Now().UTC()
	err := s.transition(ctx, req.WithdrawalID,
		[]domain.WithdrawalStatus{domain.WithdrawalStatusPending, domain.WithdrawalStatusReviewing},
		domain.WithdrawalStatusRejected,
		&domain.WithdrawalPatch{
			ReviewerID: &req.ActorID,
			Note:       req.Note,
			ReviewedAt: &now,
		})
	if err != nil {
		if errors.Is(err, xerrors.ErrAlreadyProcessed) {
			s.auditDecision(ctx, req, "reject_rejected_duplicate", nil)
		}
		return err
	}

	s.auditDecision(ctx, req, "rejected", map[string]interface{}{
		"note": stringOrEmpty(req.Note),
	})
	return nil
}

// markPaid records out-of-band payout confirmation from a reviewer. The
// funds were already debited at approval; this is bookkeeping only.
func (s *SettlementUsecase) markPaid(ctx context.Context, req *SettleRequest) error {
	now := time.Now().UTC()
	err := s.transition(ctx, req.WithdrawalID,
		[]domain.WithdrawalStatus{domain.WithdrawalStatusApproved, domain.WithdrawalStatusProcessing},
		domain.WithdrawalStatusPaid,
		&domain.WithdrawalPatch{
			ReviewerID:        &req.ActorID,
			Note:              req.Note,
			ProviderReference: req.ProviderRef,
			TxHash:            req.TxHash,
			CompletedAt:       &now,
		})
	if err != nil {
		if errors.Is(err, xerrors.ErrAlreadyProcessed) {
			s.auditDecision(ctx, req, "paid_rejected_duplicate", nil)
		}
		return err
	}

	s.auditDecision(ctx, req, "paid", map[string]interface{}{
		"provider_reference": stringOrEmpty(req.ProviderRef),
		"tx_hash":            stringOrEmpty(req.TxHash),
	})
	return nil
}

// ClaimForReview parks a pending withdrawal with a reviewer so two admins
// do not work the same case.
func (s *SettlementUsecase) ClaimForReview(ctx context.Context, withdrawalID string, actorID string) (*domain.Withdrawal, error) {
	err := s.transition(ctx, withdrawalID,
		[]domain.WithdrawalStatus{domain.WithdrawalStatusPending},
		domain.WithdrawalStatusReviewing,
		&domain.WithdrawalPatch{ReviewerID: &actorID})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.ActorTypeAdmin, actorID, "claimed_for_review", entityTypeWithdrawal, withdrawalID, nil)
	return s.store.Withdrawals().GetByID(ctx, withdrawalID)
}

// Dispatch hands an approved withdrawal to the payout pipeline.
func (s *SettlementUsecase) Dispatch(ctx context.Context, withdrawalID string, actorType domain.ActorType, actorID string) (*domain.Withdrawal, error) {
	now := time.Now().UTC()
	err := s.transition(ctx, withdrawalID,
		[]domain.WithdrawalStatus{domain.WithdrawalStatusApproved},
		domain.WithdrawalStatusProcessing,
		&domain.WithdrawalPatch{ProcessedAt: &now})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorType, actorID, "dispatched", entityTypeWithdrawal, withdrawalID, nil)
	return s.store.Withdrawals().GetByID(ctx, withdrawalID)
}

// ApplyProviderResult settles a processing withdrawal from the payout
// provider callback. A failed payout refunds the gross amount atomically
// with the status flip.
func (s *SettlementUsecase) ApplyProviderResult(ctx context.Context, res *ProviderResult) (*domain.Withdrawal, error) {
	w, err := s.store.Withdrawals().GetByID(ctx, res.WithdrawalID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if res.Settled {
		err = s.transition(ctx, w.ID,
			[]domain.WithdrawalStatus{domain.WithdrawalStatusProcessing},
			domain.WithdrawalStatusCompleted,
			&domain.WithdrawalPatch{
				ProviderReference: res.ProviderRef,
				TxHash:            res.TxHash,
				CompletedAt:       &now,
			})
		if err != nil {
			return nil, err
		}
		s.audit.Record(ctx, domain.ActorTypeSystem, "payout-provider", "completed", entityTypeWithdrawal, w.ID, map[string]interface{}{
			"provider_reference": stringOrEmpty(res.ProviderRef),
		})
		return s.store.Withdrawals().GetByID(ctx, w.ID)
	}

	var bal *domain.Balance
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Withdrawals().Transition(ctx, w.ID,
			[]domain.WithdrawalStatus{domain.WithdrawalStatusProcessing},
			domain.WithdrawalStatusFailed,
			&domain.WithdrawalPatch{
				ProviderReference: res.ProviderRef,
				Note:              res.Reason,
				CompletedAt:       &now,
			}); err != nil {
			return err
		}

		// Refund the gross amount the approval debited. If the credit
		// cannot land the flip rolls back and the callback stays
		// retryable.
		b, err := s.ledger.mutate(ctx, tx, w.UserID, w.Amount, w.ID, domain.ReferenceTypeRefund,
			fmt.Sprintf("withdrawal %s failed at provider", w.ID))
		if err != nil {
			return err
		}
		bal = b
		return nil
	})
	if err != nil {
		if !errors.Is(err, xerrors.ErrAlreadyProcessed) {
			s.logger.Error("refund credit failed for failed withdrawal",
				zap.String("withdrawal_id", w.ID),
				zap.Int64("user_id", w.UserID),
				zap.String("amount", w.Amount.String()),
				zap.Error(err),
			)
			s.audit.Record(ctx, domain.ActorTypeSystem, "payout-provider", "refund_failed", entityTypeWithdrawal, w.ID, map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, err
	}

	s.ledger.committed(w.UserID, bal.RealBalance, w.ID, w.Amount)
	s.audit.Record(ctx, domain.ActorTypeSystem, "payout-provider", "failed_refunded", entityTypeWithdrawal, w.ID, map[string]interface{}{
		"user_id": w.UserID,
		"amount":  w.Amount.String(),
		"reason":  stringOrEmpty(res.Reason),
	})
	return s.store.Withdrawals().GetByID(ctx, w.ID)
}

// GetWithdrawal returns a single withdrawal.
func (s *SettlementUsecase) GetWithdrawal(ctx context.Context, id string) (*domain.Withdrawal, error) {
	return s.store.Withdrawals().GetByID(ctx, id)
}

// ListWithdrawals returns withdrawals matching the filter plus the total.
func (s *SettlementUsecase) ListWithdrawals(ctx context.Context, filter *domain.WithdrawalFilter) ([]*domain.Withdrawal, int64, error) {
	return s.store.Withdrawals().List(ctx, filter)
}

// transition runs a lone status flip in its own transaction so it
// serializes against any settlement transaction touching the same row.
func (s *SettlementUsecase) transition(ctx context.Context, id string, from []domain.WithdrawalStatus, to domain.WithdrawalStatus, patch *domain.WithdrawalPatch) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		return tx.Withdrawals().Transition(ctx, id, from, to, patch)
	})
}

func (s *SettlementUsecase) auditDecision(ctx context.Context, req *SettleRequest, action string, meta map[string]interface{}) {
	s.audit.Record(ctx, req.ActorType, req.ActorID, action, entityTypeWithdrawal, req.WithdrawalID, meta)
}

func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, xerrors.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, xerrors.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, xerrors.ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, xerrors.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
