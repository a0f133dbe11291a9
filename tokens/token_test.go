package tokens

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallestUnitConversion(t *testing.T) {
	raw := ToSmallestUnit(decimal.RequireFromString("1.5"), 6)
	assert.Equal(t, big.NewInt(1_500_000), raw)

	// below one smallest unit is truncated
	raw = ToSmallestUnit(decimal.RequireFromString("0.0000001"), 6)
	assert.Equal(t, int64(0), raw.Int64())

	qty := FromSmallestUnit(big.NewInt(2_500_000), 6)
	assert.True(t, qty.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, FromSmallestUnit(nil, 18).IsZero())
}

func TestWithPriceReplacesRecord(t *testing.T) {
	mon, ok := MonadTestnet.BySymbol("mon")
	require.True(t, ok)
	require.True(t, mon.IsNative())
	require.False(t, mon.HasPrice())

	priced := mon.WithPrice(decimal.NewFromInt(2))
	assert.True(t, priced.HasPrice())
	assert.False(t, mon.HasPrice(), "original record is untouched")

	assert.False(t, mon.WithPrice(decimal.NewFromInt(-1)).HasPrice())
	assert.False(t, mon.WithPrice(decimal.Zero).HasPrice())
}

func TestLookup(t *testing.T) {
	usdc, err := MonadTestnet.Lookup("USDC")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), usdc.Decimals)

	byAddr, err := MonadTestnet.Lookup(usdc.Address.Hex())
	require.NoError(t, err)
	assert.Equal(t, "USDC", byAddr.Symbol)

	native, err := MonadTestnet.Lookup("native")
	require.NoError(t, err)
	assert.Equal(t, "MON", native.Symbol)

	_, err = MonadTestnet.Lookup("DOGE")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	custom := Token{Address: common.HexToAddress("0x0000000000000000000000000000000000000abc"), Symbol: "ABC", Decimals: 9}
	renamed := MonadTestnet[2]
	renamed.Name = "Circle USD"

	merged := MonadTestnet.Merge(List{custom, renamed})
	assert.Len(t, merged, len(MonadTestnet)+1)

	got, ok := merged.BySymbol("USDC")
	require.True(t, ok)
	assert.Equal(t, "Circle USD", got.Name)
	assert.Equal(t, "USD Coin", MonadTestnet[2].Name)
}
