package balances

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/monswap/chain"
	"github.com/RaghavSood/monswap/tokens"
)

// Source returns the balances held by a wallet.
type Source interface {
	Balances(ctx context.Context, wallet common.Address) ([]tokens.Token, error)
}

// ChainReader is the RPC surface used for on-chain balances. *ethclient.Client
// satisfies it.
type ChainReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// OnChain reads balances of a fixed token list directly from the chain.
type OnChain struct {
	rpc  ChainReader
	list tokens.List
}

func NewOnChain(rpc ChainReader, list tokens.List) *OnChain {
	return &OnChain{rpc: rpc, list: list}
}

// Balances returns every listed token with its balance. A token whose
// balanceOf call fails is skipped; a native balance failure fails the call.
func (o *OnChain) Balances(ctx context.Context, wallet common.Address) ([]tokens.Token, error) {
	out := make([]tokens.Token, 0, len(o.list))
	var lastErr error

	for _, t := range o.list {
		raw, err := o.balance(ctx, t, wallet)
		if err != nil {
			if t.IsNative() {
				return nil, fmt.Errorf("fetching native balance: %w", err)
			}
			lastErr = err
			continue
		}
		out = append(out, t.WithBalance(tokens.FromSmallestUnit(raw, t.Decimals)))
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (o *OnChain) balance(ctx context.Context, t tokens.Token, wallet common.Address) (*big.Int, error) {
	if t.IsNative() {
		return o.rpc.BalanceAt(ctx, wallet, nil)
	}

	data, err := chain.PackBalanceOf(wallet)
	if err != nil {
		return nil, err
	}
	output, err := o.rpc.CallContract(ctx, ethereum.CallMsg{To: &t.Address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", t.Symbol, err)
	}
	return chain.DecodeUint256(output)
}

// WalletKey is the cache key for a wallet.
func WalletKey(wallet common.Address) string {
	return strings.ToLower(wallet.Hex())
}
