package balances

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/monswap/chain"
	"github.com/RaghavSood/monswap/tokens"
)

// Multicall3Address is the canonical Multicall3 deployment.
var Multicall3Address = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

const multicallJSON = `[
	{"inputs":[{"components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}],"name":"calls","type":"tuple[]"}],"name":"aggregate3","outputs":[{"components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}],"name":"returnData","type":"tuple[]"}],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"addr","type":"address"}],"name":"getEthBalance","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var multicallABI abi.ABI

func init() {
	var err error
	multicallABI, err = abi.JSON(strings.NewReader(multicallJSON))
	if err != nil {
		panic(err)
	}
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type call3Result struct {
	Success    bool
	ReturnData []byte
}

// Multicall reads every listed balance in a single aggregate3 eth_call.
type Multicall struct {
	rpc     ChainReader
	list    tokens.List
	address common.Address
}

func NewMulticall(rpc ChainReader, list tokens.List) *Multicall {
	return &Multicall{rpc: rpc, list: list, address: Multicall3Address}
}

// Balances returns the listed tokens with balances. Tokens whose sub-call
// failed are left out.
func (m *Multicall) Balances(ctx context.Context, wallet common.Address) ([]tokens.Token, error) {
	if len(m.list) == 0 {
		return nil, nil
	}

	calls := make([]call3, 0, len(m.list))
	for _, t := range m.list {
		var (
			data []byte
			err  error
		)
		target := t.Address
		if t.IsNative() {
			target = m.address
			data, err = multicallABI.Pack("getEthBalance", wallet)
		} else {
			data, err = chain.PackBalanceOf(wallet)
		}
		if err != nil {
			return nil, fmt.Errorf("packing %s balance call: %w", t.Symbol, err)
		}
		calls = append(calls, call3{Target: target, AllowFailure: true, CallData: data})
	}

	callData, err := multicallABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("packing aggregate3: %w", err)
	}

	// Executed as eth_call; aggregate3 is payable but read-only here.
	output, err := m.rpc.CallContract(ctx, ethereum.CallMsg{To: &m.address, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling aggregate3: %w", err)
	}

	decoded, err := multicallABI.Unpack("aggregate3", output)
	if err != nil {
		return nil, fmt.Errorf("unpacking aggregate3: %w", err)
	}
	results := *abi.ConvertType(decoded[0], new([]call3Result)).(*[]call3Result)
	if len(results) != len(m.list) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(m.list))
	}

	out := make([]tokens.Token, 0, len(m.list))
	for i, t := range m.list {
		r := results[i]
		if !r.Success || len(r.ReturnData) < 32 {
			continue
		}
		raw := new(big.Int).SetBytes(r.ReturnData[:32])
		out = append(out, t.WithBalance(tokens.FromSmallestUnit(raw, t.Decimals)))
	}
	return out, nil
}
