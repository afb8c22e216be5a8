package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fincore/ledger-engine/internal/accounts"
	"github.com/fincore/ledger-engine/internal/engine"
	"github.com/fincore/ledger-engine/internal/ledger"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/storage/memory"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) (*fiber.App, *accounts.Service) {
	t.Helper()
	accountSvc := accounts.NewService(memory.NewAccountStore(), zap.NewNop())
	ledgerSvc := ledger.NewService(memory.NewLedgerStore(), zap.NewNop())
	eng := engine.New(accountSvc, ledgerSvc, memory.NewScheduleStore(), nil, engine.Config{}, zap.NewNop())

	app := fiber.New()
	NewHandler(eng, accountSvc, ledgerSvc, zap.NewNop()).Register(app)
	return app, accountSvc
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestCreateAccountAndDeposit(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJSON(t, app, "/v1/accounts", map[string]any{
		"actor_id": "alice",
		"type":     "checking",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	accountID := created["id"].(string)
	require.NotEmpty(t, accountID)

	resp = postJSON(t, app, "/v1/operations", map[string]any{
		"operation":  "deposit",
		"actor_id":   "alice",
		"account_id": accountID,
		"amount":     "25.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode(t, resp)
	assert.Equal(t, "completed", result["status"])

	accountsOut := result["accounts"].([]any)
	require.Len(t, accountsOut, 1)
	assert.Equal(t, "25.00", accountsOut[0].(map[string]any)["balance"])
}

func TestOperationFailureShape(t *testing.T) {
	app, accountSvc := newTestApp(t)

	account, err := accountSvc.Create(context.Background(), "alice", models.AccountChecking, "")
	require.NoError(t, err)

	resp := postJSON(t, app, "/v1/operations", map[string]any{
		"operation":  "withdraw",
		"actor_id":   "alice",
		"account_id": account.ID,
		"amount":     "10.00",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "insufficient_funds", body["error_kind"])
	assert.Equal(t, false, body["retryable"])
	assert.NotEmpty(t, body["message"])
	// no partial state leaks on failure
	assert.NotContains(t, body, "accounts")
}

func TestOperationValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// unknown operation fails the payload validator
	resp := postJSON(t, app, "/v1/operations", map[string]any{
		"operation": "mint",
		"actor_id":  "alice",
		"amount":    "1.00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// amounts beyond two fraction digits are rejected
	resp = postJSON(t, app, "/v1/operations", map[string]any{
		"operation":  "deposit",
		"actor_id":   "alice",
		"account_id": "whatever",
		"amount":     "1.005",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decode(t, resp)["error_kind"])
}

func TestTransferAndHistory(t *testing.T) {
	app, accountSvc := newTestApp(t)
	ctx := context.Background()

	a, err := accountSvc.Create(ctx, "alice", models.AccountChecking, "")
	require.NoError(t, err)
	b, err := accountSvc.Create(ctx, "bob", models.AccountChecking, "")
	require.NoError(t, err)

	resp := postJSON(t, app, "/v1/operations", map[string]any{
		"operation":  "deposit",
		"actor_id":   "alice",
		"account_id": a.ID,
		"amount":     "100.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/v1/operations", map[string]any{
		"operation": "transfer",
		"actor_id":  "alice",
		"source_id": a.ID,
		"dest_id":   b.ID,
		"amount":    "40.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode(t, resp)
	assert.Len(t, result["ledger_entries"].([]any), 2)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/accounts/%s/entries?type=transfer_out", a.ID), nil)
	histResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, histResp.StatusCode)
	entries := decode(t, histResp)["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "40.00", entries[0].(map[string]any)["amount"])
}

func TestOwnerHistoryMergesAccounts(t *testing.T) {
	app, accountSvc := newTestApp(t)
	ctx := context.Background()

	checking, err := accountSvc.Create(ctx, "alice", models.AccountChecking, "")
	require.NoError(t, err)
	savings, err := accountSvc.Create(ctx, "alice", models.AccountSavings, "")
	require.NoError(t, err)

	for _, id := range []string{checking.ID, savings.ID} {
		resp := postJSON(t, app, "/v1/operations", map[string]any{
			"operation":  "deposit",
			"actor_id":   "alice",
			"account_id": id,
			"amount":     "10.00",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/entries?owner_id=alice", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode(t, resp)["entries"].([]any)
	require.Len(t, entries, 2)

	// merged history stays timestamp-ascending across accounts
	first, err := time.Parse(time.RFC3339Nano, entries[0].(map[string]any)["created_at"].(string))
	require.NoError(t, err)
	second, err := time.Parse(time.RFC3339Nano, entries[1].(map[string]any)["created_at"].(string))
	require.NoError(t, err)
	assert.False(t, second.Before(first))

	// owner_id is mandatory
	req = httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAccountNotFound(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
