package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"wallet-service/internal/domain"
	"wallet-service/internal/usecase"
	"wallet-service/pkg/response"
	"wallet-service/pkg/utils"
	"wallet-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	settlement *usecase.SettlementUsecase
	ledger     *usecase.LedgerWriter
	logger     *zap.Logger
}

func NewWalletHandler(settlement *usecase.SettlementUsecase, ledger *usecase.LedgerWriter, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		settlement: settlement,
		ledger:     ledger,
		logger:     logger,
	}
}

type createUserRequest struct {
	UserID       int64           `json:"user_id"`
	RealBalance  decimal.Decimal `json:"real_balance"`
	BonusBalance decimal.Decimal `json:"bonus_balance"`
}

func (h *WalletHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.RealBalance.IsNegative() || req.BonusBalance.IsNegative() {
		response.Error(w, http.StatusBadRequest, "invalid input provided")
		return
	}

	bal, err := h.ledger.CreateBalance(r.Context(), req.UserID, req.RealBalance, req.BonusBalance)
	if err != nil {
		if errors.Is(err, xerrors.ErrUserAlreadyExists) || xerrors.IsUniqueViolation(err) {
			response.Error(w, http.StatusConflict, "user already exists")
			return
		}
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, bal)
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	bal, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, bal)
}

func (h *WalletHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.ledger.Entries(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"entries": entries,
	})
}

type createWithdrawalRequest struct {
	UserID      int64               `json:"user_id"`
	Amount      decimal.Decimal     `json:"amount"`
	Destination string              `json:"destination"`
	Risk        *domain.RiskProfile `json:"risk"`
}

func (h *WalletHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req createWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, err := h.settlement.RequestWithdrawal(r.Context(), &domain.CreateWithdrawalRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Destination: req.Destination,
		Risk:        req.Risk,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, wd)
}

type settleRequest struct {
	WithdrawalID string  `json:"withdrawal_id"`
	Action       string  `json:"action"`
	Note         *string `json:"note,omitempty"`
	ProviderRef  *string `json:"provider_reference,omitempty"`
	TxHash       *string `json:"tx_hash,omitempty"`
}

func (h *WalletHandler) Settle(w http.ResponseWriter, r *http.Request) {
	rev, ok := ReviewerFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, err := domain.ParseSettleAction(req.Action)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid settlement action")
		return
	}
	if !utils.ValidateID(req.WithdrawalID, "wd") {
		response.Error(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}

	wd, err := h.settlement.Settle(r.Context(), &usecase.SettleRequest{
		WithdrawalID: req.WithdrawalID,
		Action:       action,
		ActorType:    domain.ActorTypeAdmin,
		ActorID:      rev.ID,
		Note:         req.Note,
		ProviderRef:  req.ProviderRef,
		TxHash:       req.TxHash,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, wd)
}

func (h *WalletHandler) Claim(w http.ResponseWriter, r *http.Request) {
	rev, ok := ReviewerFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	wd, err := h.settlement.ClaimForReview(r.Context(), chi.URLParam(r, "id"), rev.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, wd)
}

func (h *WalletHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	rev, ok := ReviewerFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	wd, err := h.settlement.Dispatch(r.Context(), chi.URLParam(r, "id"), domain.ActorTypeAdmin, rev.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, wd)
}

type providerResultRequest struct {
	Settled     bool    `json:"settled"`
	ProviderRef *string `json:"provider_reference,omitempty"`
	TxHash      *string `json:"tx_hash,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

func (h *WalletHandler) ProviderResult(w http.ResponseWriter, r *http.Request) {
	var req providerResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, err := h.settlement.ApplyProviderResult(r.Context(), &usecase.ProviderResult{
		WithdrawalID: chi.URLParam(r, "id"),
		Settled:      req.Settled,
		ProviderRef:  req.ProviderRef,
		TxHash:       req.TxHash,
		Reason:       req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, wd)
}

func (h *WalletHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	wd, err := h.settlement.GetWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, wd)
}

func (h *WalletHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	filter := &domain.WithdrawalFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.WithdrawalStatus(s)
		filter.Status = &st
	}
	if u := r.URL.Query().Get("user_id"); u != "" {
		userID, err := strconv.ParseInt(u, 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid user id")
			return
		}
		filter.UserID = &userID
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	items, total, err := h.settlement.ListWithdrawals(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"withdrawals": items,
		"total":       total,
	})
}

// writeError maps domain errors onto HTTP statuses. Verification failures
// surface as 500 and are logged at error level; they mean stored money
// state disagrees with what was written.
func (h *WalletHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, xerrors.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidAmount),
		errors.Is(err, xerrors.ErrInvalidAction),
		errors.Is(err, xerrors.ErrInsufficientFunds):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, xerrors.ErrAlreadyProcessed), errors.Is(err, xerrors.ErrConcurrentModification):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrVerificationFailed):
		h.logger.Error("verification failure surfaced to client", zap.String("path", r.URL.Path), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "balance verification failed")
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
