package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/tokens"
)

var (
	mon  = tokens.MonadTestnet[0]
	usdc = tokens.MonadTestnet[2]
)

type fakeQuoter struct {
	last quote.Request
	err  error
}

func (q *fakeQuoter) Quote(_ context.Context, req quote.Request) (*quote.Result, error) {
	q.last = req
	if q.err != nil {
		return nil, q.err
	}
	return &quote.Result{
		AmountOut:      req.Amount.Mul(decimal.RequireFromString("1.996")),
		PriceImpact:    decimal.RequireFromString("0.3"),
		HasPriceImpact: true,
		Tx:             quote.Transaction{To: "0x00000000000000000000000000000000000000aa", Data: "0x01"},
	}, nil
}

type fakePricer struct{}

func (fakePricer) UnitPrice(_ context.Context, token common.Address) (decimal.Decimal, error) {
	if token == usdc.Address {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, notify.Wrap(notify.KindUnknownPrice, amount.ErrUnknownPrice)
}

func (fakePricer) NativeUSDPrice(context.Context) (decimal.Decimal, bool) {
	return decimal.NewFromInt(1), true
}

type fakeBalances struct{}

func (fakeBalances) Fetch(context.Context, common.Address) []tokens.Token {
	return []tokens.Token{mon.WithBalance(decimal.NewFromInt(10))}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeQuoter, *db.Store) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "monswap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	q := &fakeQuoter{}
	srv := New(Options{
		Tokens:      tokens.MonadTestnet,
		Quoter:      q,
		Pricer:      fakePricer{},
		Balances:    fakeBalances{},
		History:     store,
		SlippageBps: 50,
		MaxHops:     3,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, q, store
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuote(t *testing.T) {
	ts, q, _ := newTestServer(t)

	var body quoteResponse
	status := getJSON(t, ts.URL+"/api/quote?from=MON&to=usdc&amount=5&slippage_bps=100", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "9.98", body.Display)
	assert.Equal(t, "1 MON = 1.996 USDC", body.Rate)
	assert.Equal(t, "0.30%", body.PriceImpact)
	require.NotNil(t, body.Tx)

	assert.Equal(t, 100, q.last.SlippageBps)
	assert.Equal(t, 3, q.last.MaxHops)
	assert.Equal(t, uint8(6), q.last.OutDecimals)
}

func TestQuoteErrors(t *testing.T) {
	ts, q, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/quote?from=MON&to=MON&amount=5", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/quote?from=MON&to=USDC&amount=0", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/quote?from=MON&to=USDC&amount=1&slippage_bps=9000", &body))

	q.err = notify.Wrap(notify.KindQuoteLiquidity, errors.New("no route"))
	body = nil
	assert.Equal(t, http.StatusBadGateway, getJSON(t, ts.URL+"/api/quote?from=MON&to=USDC&amount=1", &body))
	assert.Equal(t, string(notify.KindQuoteLiquidity), body["kind"])
	assert.Equal(t, notify.Hint(notify.KindQuoteLiquidity), body["hint"])
}

func TestPrice(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var body map[string]interface{}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/price/"+usdc.Address.Hex(), &body))
	assert.Equal(t, "1", body["usd_price"])

	body = nil
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/price/native", &body))
	assert.Equal(t, true, body["placeholder"])

	body = nil
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/price/WETH", &body))
	assert.Equal(t, string(notify.KindUnknownPrice), body["kind"])
}

func TestBalancesAndTokens(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var list []tokens.Token
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/balances/0x9858EfFD232B4033E47d90003D41EC34EcaEda94", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "10", list[0].Balance.Decimal.String())

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/balances/nope", &errBody))

	list = nil
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/tokens", &list))
	assert.Len(t, list, len(tokens.MonadTestnet))
}

func TestSwaps(t *testing.T) {
	ts, _, store := newTestServer(t)
	wallet := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")

	require.NoError(t, store.CreateSwap(context.Background(), db.CreateSwapParams{
		ID: "a", Wallet: wallet.Hex(), FromSymbol: "MON", ToSymbol: "USDC", AmountIn: "5", Status: db.SwapPending,
	}))
	require.NoError(t, store.CreateSwap(context.Background(), db.CreateSwapParams{
		ID: "b", Wallet: "0x0000000000000000000000000000000000000001", FromSymbol: "USDC", ToSymbol: "MON", AmountIn: "1", Status: db.SwapPending,
	}))

	var all []swapView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/swaps", &all))
	assert.Len(t, all, 2)

	var mine []swapView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/swaps?wallet="+common.Bytes2Hex(wallet.Bytes()), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].ID)
}

func TestShare(t *testing.T) {
	ts, _, _ := newTestServer(t)

	var body map[string]interface{}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/share?from=MON&to=USDC&amount=5&side=output&mode=usd", &body))
	assert.Equal(t, "output", body["side"])
	assert.Equal(t, "usd", body["mode"])
	assert.Contains(t, body["query"], "amount=5")

	body = nil
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/share?from=MON&to=MON", &body))
}
