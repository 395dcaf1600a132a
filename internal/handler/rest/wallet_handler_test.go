package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository/memory"
	"wallet-service/internal/risk"
	"wallet-service/internal/usecase"
	"wallet-service/pkg/jwtutil"
	"wallet-service/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "wallet-service"
	testAudience = "admin-panel"
)

type apiFixture struct {
	server    *httptest.Server
	reviewers *memory.ReviewerRepository
	ledger    *usecase.LedgerWriter
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st := memory.NewStore()
	audits := memory.NewAuditRepository()
	reviewers := memory.NewReviewerRepository()

	logger := zap.NewNop()
	idgen := utils.NewIDGenerator()
	ledgerUC := usecase.NewLedgerWriter(st, nil, nil, logger)
	auditUC := usecase.NewAuditRecorder(audits, nil, idgen, logger)
	gate := risk.NewGate(decimal.NewFromInt(1000), decimal.NewFromInt(2000), 60)
	settlementUC := usecase.NewSettlementUsecase(st, ledgerUC, auditUC, gate, idgen, nil, logger, decimal.NewFromInt(2))

	verifier := jwtutil.NewVerifier([]byte(testSecret), testIssuer, testAudience)
	handler := NewWalletHandler(settlementUC, ledgerUC, logger)
	router := NewRouter(handler, verifier, reviewers, nil, nil, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, reviewers: reviewers, ledger: ledgerUC}
}

func (f *apiFixture) seedReviewer(t *testing.T, id string, active bool) string {
	t.Helper()
	f.reviewers.Save(&domain.Reviewer{ID: id, DisplayName: "Test Reviewer", IsActive: active})
	token, err := jwtutil.Mint([]byte(testSecret), testIssuer, testAudience, id, "reviewer", time.Hour)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) seedUser(t *testing.T, userID int64, balance string) {
	t.Helper()
	d, err := decimal.NewFromString(balance)
	require.NoError(t, err)
	_, err = f.ledger.CreateBalance(context.Background(), userID, d, decimal.Zero)
	require.NoError(t, err)
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

func (f *apiFixture) createWithdrawal(t *testing.T, userID int64, amount string) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/v1/withdrawals", "", map[string]interface{}{
		"user_id":     userID,
		"amount":      amount,
		"destination": "mpesa:254700000000",
		"risk":        map[string]interface{}{"score": 10},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var wd domain.Withdrawal
	decodeData(t, resp, &wd)
	return wd.ID
}

func TestCreateUserAndGetBalance(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/users", "", map[string]interface{}{
		"user_id":      1,
		"real_balance": "250.00",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate user conflicts.
	resp = f.do(t, http.MethodPost, "/v1/users", "", map[string]interface{}{
		"user_id":      1,
		"real_balance": "10.00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/users/1/balance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var bal domain.Balance
	decodeData(t, resp, &bal)
	assert.Equal(t, int64(1), bal.UserID)
	assert.True(t, bal.RealBalance.Equal(decimal.NewFromFloat(250)))
}

func TestGetBalanceUnknownUser(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/users/99/balance", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateWithdrawalValidation(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "100.00")

	resp := f.do(t, http.MethodPost, "/v1/withdrawals", "", map[string]interface{}{
		"user_id":     1,
		"amount":      "-5",
		"destination": "bank:1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/withdrawals", "", map[string]interface{}{
		"user_id":     1,
		"amount":      "500.00",
		"destination": "bank:1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "insufficient funds at request time")
}

func TestSettleRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "500.00")
	id := f.createWithdrawal(t, 1, "100.00")

	body := map[string]interface{}{"withdrawal_id": id, "action": "approve"}

	resp := f.do(t, http.MethodPost, "/v1/withdrawals/settle", "", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "no token")

	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", "not-a-jwt", body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "garbage token")

	// Token signed with the wrong secret.
	badToken, err := jwtutil.Mint([]byte("other-secret"), testIssuer, testAudience, "rev_1", "reviewer", time.Hour)
	require.NoError(t, err)
	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", badToken, body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "wrong signature")

	// Valid token but no reviewer row.
	ghostToken, err := jwtutil.Mint([]byte(testSecret), testIssuer, testAudience, "rev_ghost", "reviewer", time.Hour)
	require.NoError(t, err)
	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", ghostToken, body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "unknown reviewer")

	// Valid token, deactivated reviewer.
	inactiveToken := f.seedReviewer(t, "rev_inactive", false)
	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", inactiveToken, body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "inactive reviewer")
}

func TestSettleApproveFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "500.00")
	id := f.createWithdrawal(t, 1, "100.00")
	token := f.seedReviewer(t, "rev_1", true)

	resp := f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": id,
		"action":        "approve",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wd domain.Withdrawal
	decodeData(t, resp, &wd)
	assert.Equal(t, domain.WithdrawalStatusApproved, wd.Status)
	require.NotNil(t, wd.ReviewerID)
	assert.Equal(t, "rev_1", *wd.ReviewerID)

	// Replaying the same decision conflicts.
	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": id,
		"action":        "approve",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/users/1/balance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal domain.Balance
	decodeData(t, resp, &bal)
	assert.True(t, bal.RealBalance.Equal(decimal.NewFromInt(400)))
}

func TestSettleRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)
	token := f.seedReviewer(t, "rev_1", true)

	resp := f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": "wd_x",
		"action":        "exfiltrate",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"action": "approve",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": "wd_not-a-ulid",
		"action":        "approve",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "malformed withdrawal id")

	// Well-formed ID that does not exist.
	resp = f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": utils.NewIDGenerator().WithdrawalID(),
		"action":        "approve",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClaimEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "500.00")
	id := f.createWithdrawal(t, 1, "100.00")
	token := f.seedReviewer(t, "rev_1", true)

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/v1/withdrawals/%s/claim", id), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "claim requires a reviewer token")

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/v1/withdrawals/%s/claim", id), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wd domain.Withdrawal
	decodeData(t, resp, &wd)
	assert.Equal(t, domain.WithdrawalStatusReviewing, wd.Status)
	require.NotNil(t, wd.ReviewerID)
	assert.Equal(t, "rev_1", *wd.ReviewerID)

	other := f.seedReviewer(t, "rev_2", true)
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/v1/withdrawals/%s/claim", id), other, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "a claimed case cannot be claimed again")
}

func TestDispatchAndProviderResult(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "500.00")
	id := f.createWithdrawal(t, 1, "100.00")
	token := f.seedReviewer(t, "rev_1", true)

	resp := f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": id,
		"action":        "approve",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/v1/withdrawals/%s/dispatch", id), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/v1/withdrawals/%s/provider-result", id), "", map[string]interface{}{
		"settled": false,
		"reason":  "account closed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wd domain.Withdrawal
	decodeData(t, resp, &wd)
	assert.Equal(t, domain.WithdrawalStatusFailed, wd.Status)

	// Refund landed.
	resp = f.do(t, http.MethodGet, "/v1/users/1/balance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal domain.Balance
	decodeData(t, resp, &bal)
	assert.True(t, bal.RealBalance.Equal(decimal.NewFromInt(500)))
}

func TestLedgerEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "500.00")
	id := f.createWithdrawal(t, 1, "100.00")
	token := f.seedReviewer(t, "rev_1", true)

	resp := f.do(t, http.MethodPost, "/v1/withdrawals/settle", token, map[string]interface{}{
		"withdrawal_id": id,
		"action":        "approve",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/users/1/ledger", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		UserID  int64                 `json:"user_id"`
		Entries []*domain.LedgerEntry `json:"entries"`
	}
	decodeData(t, resp, &payload)
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, id, payload.Entries[0].ReferenceID)
	assert.True(t, payload.Entries[0].Amount.Equal(decimal.NewFromInt(-100)))
}

func TestListWithdrawalsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser(t, 1, "500.00")
	f.createWithdrawal(t, 1, "100.00")
	f.createWithdrawal(t, 1, "50.00")

	resp := f.do(t, http.MethodGet, "/v1/withdrawals?status=pending&user_id=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Withdrawals []*domain.Withdrawal `json:"withdrawals"`
		Total       int64                `json:"total"`
	}
	decodeData(t, resp, &payload)
	assert.Equal(t, int64(2), payload.Total)
	assert.Len(t, payload.Withdrawals, 2)
}
