package tokens

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeAddress is the reserved identifier of the chain's native asset.
var NativeAddress = common.Address{}

// Token is a tradeable asset. Balance and USDPrice are refreshed by replacing
// the record through WithBalance and WithPrice.
type Token struct {
	Address  common.Address      `json:"address"`
	Symbol   string              `json:"symbol"`
	Name     string              `json:"name"`
	Decimals uint8               `json:"decimals"`
	Balance  decimal.NullDecimal `json:"balance"`

	// USDPrice is zero when the price is unknown.
	USDPrice decimal.Decimal `json:"usd_price"`
}

func (t Token) IsNative() bool {
	return t.Address == NativeAddress
}

// ID is the cache and URL key for the token.
func (t Token) ID() string {
	return strings.ToLower(t.Address.Hex())
}

// HasPrice reports whether a usable (positive) USD unit price is known.
func (t Token) HasPrice() bool {
	return t.USDPrice.IsPositive()
}

func (t Token) WithBalance(balance decimal.Decimal) Token {
	t.Balance = decimal.NewNullDecimal(balance)
	return t
}

func (t Token) WithPrice(price decimal.Decimal) Token {
	if price.IsNegative() {
		price = decimal.Zero
	}
	t.USDPrice = price
	return t
}

func (t Token) String() string {
	return fmt.Sprintf("%s (%s)", t.Symbol, t.Address.Hex())
}

// ToSmallestUnit converts a token-unit quantity to its integer on-chain
// representation. Fractions below one smallest unit are truncated.
func ToSmallestUnit(qty decimal.Decimal, decimals uint8) *big.Int {
	return qty.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromSmallestUnit converts an integer on-chain amount to token units.
func FromSmallestUnit(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// ParseAddress accepts a hex address or one of the native aliases.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "native", "0x0", "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee":
		return NativeAddress, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid token address %q", s)
	}
	return common.HexToAddress(s), nil
}
