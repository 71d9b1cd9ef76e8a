package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rps-ledger/internal/api"
	"github.com/mcoot/rps-ledger/internal/api/apierr"
	"github.com/mcoot/rps-ledger/internal/api/middleware"
	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/factory"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
	"github.com/mcoot/rps-ledger/internal/testutil"
)

const (
	contractHex = "0x00000000000000000000000000000000000000c1"
	aliceHex    = "0x00000000000000000000000000000000000000a1"
	bobHex      = "0x00000000000000000000000000000000000000b2"
)

type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestAppWithConfig(chain.Config{Stake: 5, TimeoutWindow: 10 * time.Minute})
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:     testutil.NopLogger(),
		Chain:      app.Chain,
		HubManager: app.HubManager,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, account string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(middleware.AccountHeader, account)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) deploy(t *testing.T) {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/contracts", map[string]any{"address": contractHex}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func (ts *testServer) submit(method ledger.Method, args ledger.Args, value uint64, account string) *httptest.ResponseRecorder {
	body := map[string]any{"method": method, "args": args, "value": value}
	return ts.request(http.MethodPost, "/api/v1/contracts/"+contractHex+"/submit", body, account)
}

func (ts *testServer) query(method ledger.Method, args ledger.Args) *httptest.ResponseRecorder {
	body := map[string]any{"method": method, "args": args}
	return ts.request(http.MethodPost, "/api/v1/contracts/"+contractHex+"/query", body, "")
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[response.Health](t, rr).Status)
}

func TestDeployContract(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{"address": contractHex, "stake": 7, "timeout_window_seconds": 30}
	rr := ts.request(http.MethodPost, "/api/v1/contracts", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	c := decode[response.Contract](t, rr)
	assert.Equal(t, contractHex, c.Address)
	assert.Equal(t, uint64(7), c.Stake)
	assert.Equal(t, int64(30), c.TimeoutWindowSeconds)
	assert.Equal(t, uint64(1), c.Round)
}

func TestDeployContractDefaults(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueString("00000000000000000000000000000000000000d4")

	rr := ts.request(http.MethodPost, "/api/v1/contracts", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	c := decode[response.Contract](t, rr)
	assert.Equal(t, "0x00000000000000000000000000000000000000d4", c.Address)
	assert.Equal(t, uint64(5), c.Stake)
	assert.Equal(t, int64(600), c.TimeoutWindowSeconds)
}

func TestDeployContractErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.request(http.MethodPost, "/api/v1/contracts", map[string]any{"address": contractHex}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidArgument, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/contracts", map[string]any{"address": "0x1234"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidAddress, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/contracts", map[string]any{"timeout_window_seconds": -1}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestListAndGetContracts(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.request(http.MethodGet, "/api/v1/contracts", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[response.ContractList](t, rr)
	require.Len(t, list.Contracts, 1)
	assert.Equal(t, contractHex, list.Contracts[0].Address)

	rr = ts.request(http.MethodGet, "/api/v1/contracts/"+contractHex, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint64(1), decode[response.Contract](t, rr).Version)

	rr = ts.request(http.MethodGet, "/api/v1/contracts/"+bobHex, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeContractNotFound, errorCode(t, rr))
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.query(ledger.MethodGetStake, ledger.Args{})
	require.Equal(t, http.StatusOK, rr.Code)
	result := decode[response.QueryResult](t, rr)
	assert.Equal(t, ledger.MethodGetStake, result.Method)
	assert.JSONEq(t, "5", string(result.Result))

	rr = ts.query(ledger.MethodHasLocked, ledger.Args{Slot: model.Slot1})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "false", string(decode[response.QueryResult](t, rr).Result))
}

func TestQueryErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.query("selfDestruct", ledger.Args{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeUnknownMethod, errorCode(t, rr))

	rr = ts.query(ledger.MethodGetAddress, ledger.Args{Slot: 3})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidSlot, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/contracts/"+contractHex+"/query", "not an object", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestSubmitRequiresAccount(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.submit(ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot1}, 5, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))

	rr = ts.submit(ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot1}, 5, "nonsense")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidAddress, errorCode(t, rr))
}

func TestSubmitRegister(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.submit(ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot1}, 5, aliceHex)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	conf := decode[response.Confirmation](t, rr)
	assert.NotEmpty(t, conf.TxID)
	assert.Equal(t, string(ledger.MethodRegisterPlayer), conf.Method)
	assert.Equal(t, uint64(2), conf.Version)

	rr = ts.query(ledger.MethodGetAddress, ledger.Args{Slot: model.Slot1})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `"`+aliceHex+`"`, string(decode[response.QueryResult](t, rr).Result))
}

func TestSubmitRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	rr := ts.submit(ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot1}, 4, aliceHex)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeTransactionRejected, errorCode(t, rr))

	rr = ts.submit(ledger.MethodGetStake, ledger.Args{}, 0, aliceHex)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeUnknownMethod, errorCode(t, rr))
}

func TestFullRoundAndBalance(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	steps := []struct {
		method  ledger.Method
		args    ledger.Args
		value   uint64
		account string
	}{
		{ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot1}, 5, aliceHex},
		{ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot2}, 5, bobHex},
		{ledger.MethodLockShape, ledger.Args{Slot: model.Slot1, Shape: model.ShapeRock, Secret: "a"}, 0, aliceHex},
		{ledger.MethodLockShape, ledger.Args{Slot: model.Slot2, Shape: model.ShapePaper, Secret: "b"}, 0, bobHex},
		{ledger.MethodRevealShape, ledger.Args{Slot: model.Slot1, Shape: model.ShapeRock, Secret: "a"}, 0, aliceHex},
		{ledger.MethodRevealShape, ledger.Args{Slot: model.Slot2, Shape: model.ShapePaper, Secret: "b"}, 0, bobHex},
		{ledger.MethodSettle, ledger.Args{}, 0, aliceHex},
	}
	for _, step := range steps {
		rr := ts.submit(step.method, step.args, step.value, step.account)
		require.Equal(t, http.StatusOK, rr.Code, "%s: %s", step.method, rr.Body.String())
	}

	rr := ts.query(ledger.MethodGetOutcome, ledger.Args{})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `"`+model.OutcomePlayer2Wins.String()+`"`, string(decode[response.QueryResult](t, rr).Result))

	rr = ts.request(http.MethodGet, "/api/v1/accounts/"+bobHex+"/balance", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	bal := decode[response.Balance](t, rr)
	assert.Equal(t, bobHex, bal.Account)
	assert.Equal(t, uint64(10), bal.Balance)

	rr = ts.request(http.MethodGet, "/api/v1/accounts/"+aliceHex+"/balance", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, uint64(0), decode[response.Balance](t, rr).Balance)
}

func TestEventsUnknownContract(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/contracts/"+contractHex+"/events", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeContractNotFound, errorCode(t, rr))
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)
	ts.deploy(t)

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet,
		srv.URL+"/api/v1/contracts/"+contractHex+"/events?types=player_registered", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(prefix string) string {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before %q", prefix)
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	waitFor("event: connected")
	require.Eventually(t, func() bool {
		hub := ts.app.HubManager.GetHub(model.MustParseAddress(contractHex))
		return hub != nil && hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	rr := ts.submit(ledger.MethodRegisterPlayer, ledger.Args{Slot: model.Slot2}, 5, bobHex)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "event: player_registered", waitFor("event: "))
	data := strings.TrimPrefix(waitFor("data: "), "data: ")

	var event model.LedgerEvent
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, model.Slot2, event.Slot)
	assert.Equal(t, uint64(2), event.Version)
}
