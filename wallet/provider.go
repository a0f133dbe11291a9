package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrRejected is returned when the account holder declines a signature.
var ErrRejected = errors.New("user rejected the request")

// TxRequest is an unsigned call the provider signs and broadcasts. A zero Gas
// lets the provider estimate.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	Gas   uint64
}

// Provider is the connected wallet as seen by the swap flow.
type Provider interface {
	Address() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// Backend is the RPC surface a KeyedProvider needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// KeyedProvider signs with a local private key. It is meant for testnet and
// development use.
type KeyedProvider struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address

	mu      sync.Mutex
	chainID *big.Int
}

func NewKeyedProvider(backend Backend, key *ecdsa.PrivateKey) *KeyedProvider {
	return &KeyedProvider{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// FromMnemonic derives the key at m/44'/60'/0'/0/{index}.
func FromMnemonic(backend Backend, mnemonic string, index uint32) (*KeyedProvider, error) {
	key, err := DeriveKey(mnemonic, index)
	if err != nil {
		return nil, err
	}
	return NewKeyedProvider(backend, key), nil
}

// FromHex loads a hex-encoded private key, with or without 0x.
func FromHex(backend Backend, hexKey string) (*KeyedProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return NewKeyedProvider(backend, key), nil
}

func (p *KeyedProvider) Address() common.Address {
	return p.address
}

func (p *KeyedProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainID != nil {
		return p.chainID, nil
	}
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting chain id: %w", err)
	}
	p.chainID = id
	return id, nil
}

func (p *KeyedProvider) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if msg.From == (common.Address{}) {
		msg.From = p.address
	}
	return p.backend.CallContract(ctx, msg, nil)
}

func (p *KeyedProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if msg.From == (common.Address{}) {
		msg.From = p.address
	}
	return p.backend.EstimateGas(ctx, msg)
}

func (p *KeyedProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	chainID, err := p.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gas := req.Gas
	if gas == 0 {
		gas, err = p.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  p.address,
			To:    &req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
		}
	}

	nonce, err := p.backend.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting nonce: %w", err)
	}

	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, req.To, value, gas, gasPrice, req.Data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing tx: %w", err)
	}

	if err := p.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("sending tx: %w", err)
	}
	return signedTx.Hash(), nil
}

func (p *KeyedProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.backend.TransactionReceipt(ctx, hash)
}

func (p *KeyedProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.backend.BalanceAt(ctx, account, nil)
}
