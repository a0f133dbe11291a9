// Package chain packs and decodes the ERC-20 calls used for balances and
// allowances.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Function selectors of the ERC-20 calls.
const (
	SelectorBalanceOf = "0x70a08231"
	SelectorAllowance = "0xdd62ed3e"
	SelectorApprove   = "0x095ea7b3"
)

const erc20JSON = `[
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(erc20JSON))
	if err != nil {
		panic(err)
	}
}

func PackBalanceOf(account common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", account)
}

func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return erc20ABI.Pack("allowance", owner, spender)
}

// PackApprove encodes an allowance for exactly amount.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid approval amount %v", amount)
	}
	return erc20ABI.Pack("approve", spender, amount)
}

// DecodeUint256 reads a single uint256 return value. Empty output decodes to
// zero, as returned by calls to accounts without code.
func DecodeUint256(output []byte) (*big.Int, error) {
	if len(output) == 0 {
		return big.NewInt(0), nil
	}
	if len(output) < 32 {
		return nil, fmt.Errorf("short uint256 output: %d bytes", len(output))
	}
	return new(big.Int).SetBytes(output[:32]), nil
}

type dataError interface {
	ErrorData() interface{}
}

// RevertReason extracts the Error(string) reason carried by an RPC error, if
// any.
func RevertReason(err error) string {
	var de dataError
	if !errors.As(err, &de) {
		return ""
	}
	hexData, ok := de.ErrorData().(string)
	if !ok {
		return ""
	}
	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return ""
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return ""
	}
	return reason
}
