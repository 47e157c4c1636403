package marketd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/native/market"
	"moneymarket/storage"
)

var (
	alice = testAddress(0x10).String()
	bob   = testAddress(0x11).String()
)

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.MarketPrefix, raw)
}

func newTestServer(t *testing.T, limiter *RateLimiter) (*httptest.Server, *core.Host) {
	t.Helper()
	host, err := core.NewHost(storage.NewMemDB(), core.HostConfig{
		Market: market.Config{
			StableDenom:  "uusd",
			ReceiptToken: testAddress(0x02),
			Contract:     testAddress(0x01),
		},
		Genesis: []core.GenesisBalance{{
			Address: crypto.HumanAddress(alice),
			Coin:    types.NewCoin("uusd", uint256.NewInt(5_000)),
		}},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(host, limiter, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, host
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func get(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestDepositAndRedeemOverHTTP(t *testing.T) {
	srv, host := newTestServer(t, nil)

	resp, out := post(t, srv.URL+"/v1/market/blocks", `{"height": 12}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(12), out["height"])

	resp, out = post(t, srv.URL+"/v1/market/deposit", fmt.Sprintf(`{"sender":%q,"coins":[{"denom":"uusd","amount":"1000"}]}`, alice))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))
	require.Equal(t, resp.Header.Get(requestIDHeader), out["request_id"])
	commands := out["commands"].([]any)
	require.Len(t, commands, 1)
	mint := commands[0].(map[string]any)
	require.Equal(t, "mint", mint["type"])
	require.Equal(t, "1000", mint["amount"])

	resp, out = get(t, srv.URL+"/v1/market/shares/"+alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1000", out["amount"])

	resp, out = get(t, srv.URL+"/v1/market/epoch")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", out["exchange_rate"])
	require.Equal(t, "1000", out["receipt_supply"])

	resp, out = post(t, srv.URL+"/v1/market/redeem", fmt.Sprintf(`{"sender":%q,"amount":"400"}`, alice))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	commands = out["commands"].([]any)
	require.Equal(t, "burn", commands[0].(map[string]any)["type"])
	require.Equal(t, "transfer", commands[1].(map[string]any)["type"])

	resp, out = get(t, srv.URL+"/v1/market/balance/"+alice+"/uusd")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "4400", out["amount"])

	resp, out = get(t, srv.URL+"/v1/market/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "600", out["prev_receipt_supply"])
	require.Equal(t, float64(12), out["last_interest_updated"])

	resp, out = get(t, srv.URL+"/v1/market/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, string(host.Contract()), out["contract"])
}

func TestRequestValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := map[string]struct {
		path string
		body string
	}{
		"malformed json":  {"/v1/market/deposit", `{"sender":`},
		"unknown field":   {"/v1/market/deposit", fmt.Sprintf(`{"sender":%q,"extra":1}`, alice)},
		"negative amount": {"/v1/market/redeem", fmt.Sprintf(`{"sender":%q,"amount":"-1"}`, alice)},
		"zero deposit":    {"/v1/market/deposit", fmt.Sprintf(`{"sender":%q,"coins":[]}`, alice)},
		"repeated denom":  {"/v1/market/deposit", fmt.Sprintf(`{"sender":%q,"coins":[{"denom":"uusd","amount":"100"},{"denom":"uusd","amount":"100"}]}`, alice)},
		"no funds":        {"/v1/market/deposit", fmt.Sprintf(`{"sender":%q,"coins":[{"denom":"uusd","amount":"10"}]}`, bob)},
		"no shares":       {"/v1/market/redeem", fmt.Sprintf(`{"sender":%q,"amount":"10"}`, bob)},
		"bad depositor":   {"/v1/market/deposit", `{"sender":"mm1alice","coins":[{"denom":"uusd","amount":"10"}]}`},
		"bad redeemer":    {"/v1/market/redeem", `{"sender":"not an address!","amount":"10"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := post(t, srv.URL+tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NotEmpty(t, out["error"])
		})
	}

	resp, _ := post(t, srv.URL+"/v1/market/blocks", `{"height": 5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = post(t, srv.URL+"/v1/market/blocks", `{"height": 4}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := get(t, srv.URL+"/v1/market/shares/mm1alice")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, out["error"], "address resolution failed")
	resp, _ = get(t, srv.URL+"/v1/market/balance/nobody/uusd")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusForErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: zero", market.ErrInvalidInput), http.StatusBadRequest},
		{market.ErrAddressResolution, http.StatusBadRequest},
		{fmt.Errorf("%w: short", market.ErrInsufficientLiquidity), http.StatusConflict},
		{fmt.Errorf("%w: down", market.ErrUpstreamQuery), http.StatusBadGateway},
		{market.ErrNotInitialised, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.status, statusFor(tc.err), tc.err.Error())
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	srv, _ := newTestServer(t, NewRateLimiter(RateLimit{RequestsPerSecond: 0.001, Burst: 1}))

	resp, _ := get(t, srv.URL+"/v1/market/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, srv.URL+"/v1/market/state")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDIsPropagated(t *testing.T) {
	handler := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestIDFrom(r.Context())))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Body.String())
	require.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
