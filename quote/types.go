package quote

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Request asks for a route selling Amount of TokenIn. Amount is expressed in
// token units, never in smallest units or USD.
type Request struct {
	TokenIn     common.Address
	TokenOut    common.Address
	Amount      decimal.Decimal
	OutDecimals uint8
	Sender      common.Address
	SlippageBps int
	Deadline    time.Duration
	MaxHops     int
}

// Transaction is the executable payload returned with a quote.
type Transaction struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

func (t Transaction) Empty() bool {
	return t.To == "" && t.Data == ""
}

func (t Transaction) Target() (common.Address, error) {
	if !common.IsHexAddress(t.To) {
		return common.Address{}, fmt.Errorf("invalid tx target %q", t.To)
	}
	return common.HexToAddress(t.To), nil
}

func (t Transaction) DataBytes() ([]byte, error) {
	if t.Data == "" || t.Data == "0x" {
		return nil, nil
	}
	return hexutil.Decode(t.Data)
}

// ValueWei parses the native value, given either as 0x-hex or as a decimal
// integer string.
func (t Transaction) ValueWei() (*big.Int, error) {
	v := strings.TrimSpace(t.Value)
	if v == "" || v == "0x" {
		return big.NewInt(0), nil
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return hexutil.DecodeBig(v)
	}
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("invalid tx value %q", t.Value)
	}
	return n, nil
}

// Result is a normalized quote.
type Result struct {
	TokenIn   common.Address  `json:"token_in"`
	TokenOut  common.Address  `json:"token_out"`
	AmountIn  decimal.Decimal `json:"amount_in"`
	AmountOut decimal.Decimal `json:"amount_out"`

	// PriceImpact is a percentage; HasPriceImpact is false when the service
	// did not report one.
	PriceImpact    decimal.Decimal `json:"price_impact"`
	HasPriceImpact bool            `json:"has_price_impact"`

	Tx Transaction `json:"tx"`
}
