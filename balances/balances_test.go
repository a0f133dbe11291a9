package balances

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/monswap/chain"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/tokens"
)

var (
	wallet = common.HexToAddress("0x1111111111111111111111111111111111111111")
	usdc   = tokens.MonadTestnet[2]
)

func find(t *testing.T, list []tokens.Token, symbol string) tokens.Token {
	t.Helper()
	for _, tok := range list {
		if tok.Symbol == symbol {
			return tok
		}
	}
	t.Fatalf("token %s not found", symbol)
	return tokens.Token{}
}

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array", `[{"address":"native","symbol":"MON","balance":"10"},{"tokenAddress":"0xf817257fed379853cDe0fa4F97AB987181B1E5Ea","balanceFormatted":"2.5"}]`},
		{"tokens", `{"tokens":[{"symbol":"MON","balance":10},{"contractAddress":"0xf817257fed379853cDe0fa4F97AB987181B1E5Ea","rawBalance":"2500000"}]}`},
		{"balances", `{"balances":[{"token":{"symbol":"MON"},"balance":"10"},{"token":{"address":"0xf817257fed379853cDe0fa4F97AB987181B1E5Ea","decimals":6},"balance":"2.5"}]}`},
		{"data.items", `{"data":{"items":[{"contract_address":"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee","contract_ticker_symbol":"MON","contract_decimals":18,"balance":"10000000000000000000"},{"contract_address":"0xf817257fed379853cDe0fa4F97AB987181B1E5Ea","contract_decimals":6,"balance":"2500000","quote_rate":1.0}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Normalize([]byte(tt.body), tokens.MonadTestnet)
			require.NoError(t, err)
			require.Len(t, list, 2)

			mon := find(t, list, "MON")
			assert.True(t, mon.IsNative())
			assert.Equal(t, "10", mon.Balance.Decimal.String())

			got := find(t, list, "USDC")
			assert.Equal(t, usdc.Address, got.Address)
			assert.Equal(t, uint8(6), got.Decimals)
			assert.Equal(t, "2.5", got.Balance.Decimal.String())
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	list, err := Normalize([]byte(`{"result":[{"address":"0x000000000000000000000000000000000000abcd","symbol":"NEW"}]}`), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)

	tok := list[0]
	assert.Equal(t, uint8(18), tok.Decimals)
	assert.Equal(t, "NEW", tok.Name)
	assert.True(t, tok.Balance.Valid)
	assert.True(t, tok.Balance.Decimal.IsZero())
	assert.False(t, tok.HasPrice())
}

func TestNormalizeRejectsUnknownShape(t *testing.T) {
	_, err := Normalize([]byte(`{"foo":1}`), nil)
	assert.Error(t, err)
	_, err = Normalize([]byte(`nope`), nil)
	assert.Error(t, err)
}

type fakeChain struct {
	native  *big.Int
	failERC bool
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.native, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.failERC {
		return nil, errors.New("execution reverted")
	}
	if hexutil.Encode(msg.Data[:4]) != chain.SelectorBalanceOf {
		return nil, fmt.Errorf("unexpected call")
	}
	return common.LeftPadBytes(big.NewInt(2_500_000).Bytes(), 32), nil
}

func TestOnChainBalances(t *testing.T) {
	native, _ := new(big.Int).SetString("10000000000000000000", 10)
	src := NewOnChain(&fakeChain{native: native}, tokens.List{tokens.MonadTestnet[0], usdc})

	list, err := src.Balances(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "10", list[0].Balance.Decimal.String())
	assert.Equal(t, "2.5", list[1].Balance.Decimal.String())

	src = NewOnChain(&fakeChain{native: native, failERC: true}, tokens.List{tokens.MonadTestnet[0], usdc})
	list, err = src.Balances(context.Background(), wallet)
	require.NoError(t, err)
	assert.Len(t, list, 1, "failing ERC-20 reads are skipped")
}

type staticSource struct {
	calls atomic.Int32
	list  []tokens.Token
	err   error
}

func (s *staticSource) Balances(context.Context, common.Address) ([]tokens.Token, error) {
	s.calls.Add(1)
	return s.list, s.err
}

func TestServiceFallsBackAndCaches(t *testing.T) {
	clk := clock.NewMock()
	primary := &staticSource{err: errors.New("503")}
	fallback := &staticSource{list: []tokens.Token{usdc}}
	rec := notify.NewRecorder(0)
	svc := NewService([]Source{primary, fallback}, nil, clk, rec, nil)
	ctx := context.Background()

	list := svc.Fetch(ctx, wallet)
	require.Len(t, list, 1)
	list = svc.Fetch(ctx, wallet)
	require.Len(t, list, 1)
	assert.Equal(t, int32(1), fallback.calls.Load(), "second fetch served from cache")

	clk.Add(DefaultTTL)
	svc.Fetch(ctx, wallet)
	assert.Equal(t, int32(2), fallback.calls.Load())
	assert.Zero(t, rec.Len())
}

func TestServiceTotalFailureReturnsEmpty(t *testing.T) {
	rec := notify.NewRecorder(0)
	svc := NewService([]Source{&staticSource{err: errors.New("down")}}, nil, nil, rec, nil)

	list := svc.Fetch(context.Background(), wallet)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Equal(t, []notify.Kind{notify.KindBalancesUnavailable}, rec.Kinds())
}

func TestClientNormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balances/"+wallet.Hex(), r.URL.Path)
		fmt.Fprint(w, `{"tokens":[{"symbol":"MON","balance":"1.5"}]}`)
	}))
	defer srv.Close()

	svc := NewService([]Source{NewClient(srv.URL+"/balances", srv.Client(), tokens.MonadTestnet)}, nil, nil, nil, nil)
	list, err := svc.Refresh(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1.5", list[0].Balance.Decimal.String())

	cached := svc.Fetch(context.Background(), wallet)
	assert.Equal(t, list[0].Address, cached[0].Address)

}
