package swapflow

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/monswap/chain"
	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/tokens"
	"github.com/RaghavSood/monswap/wallet"
)

var (
	owner  = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	router = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	mon    = tokens.MonadTestnet[0]
	usdc   = tokens.MonadTestnet[2]
)

type fakeProvider struct {
	mu sync.Mutex

	allowance *big.Int
	calls     int
	sends     []wallet.TxRequest

	estimate      uint64
	estimateErr   error
	estimateBlock chan struct{}
	sendErr       func(n int, tx wallet.TxRequest) error

	// receiptAfter is the number of NotFound lookups before a receipt
	// appears; negative never produces one.
	receiptAfter  int
	lookups       int
	swapStatus    uint64
	approveStatus uint64
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		allowance:     big.NewInt(0),
		estimate:      100_000,
		receiptAfter:  1,
		swapStatus:    types.ReceiptStatusSuccessful,
		approveStatus: types.ReceiptStatusSuccessful,
	}
}

func (p *fakeProvider) Address() common.Address { return owner }

func (p *fakeProvider) ChainID(context.Context) (*big.Int, error) { return big.NewInt(10143), nil }

func (p *fakeProvider) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return common.LeftPadBytes(p.allowance.Bytes(), 32), nil
}

func (p *fakeProvider) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if p.estimateBlock != nil {
		<-p.estimateBlock
	}
	return p.estimate, p.estimateErr
}

func (p *fakeProvider) SendTransaction(_ context.Context, tx wallet.TxRequest) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		if err := p.sendErr(len(p.sends), tx); err != nil {
			return common.Hash{}, err
		}
	}
	p.sends = append(p.sends, tx)
	p.lookups = 0
	return common.BigToHash(big.NewInt(int64(len(p.sends)))), nil
}

func (p *fakeProvider) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	if p.receiptAfter < 0 || p.lookups <= p.receiptAfter {
		return nil, ethereum.NotFound
	}

	tx := p.sends[hash.Big().Int64()-1]
	status := p.swapStatus
	if tx.To == usdc.Address {
		status = p.approveStatus
		if status == types.ReceiptStatusSuccessful {
			p.allowance = new(big.Int).SetBytes(tx.Data[36:68])
		}
	}
	return &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(42)}, nil
}

func (p *fakeProvider) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (p *fakeProvider) sent() []wallet.TxRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]wallet.TxRequest(nil), p.sends...)
}

type fakeQuoter struct {
	calls atomic.Int32
	err   error
}

func (q *fakeQuoter) Quote(_ context.Context, req quote.Request) (*quote.Result, error) {
	q.calls.Add(1)
	if q.err != nil {
		return nil, q.err
	}
	return &quote.Result{
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		AmountIn:  req.Amount,
		AmountOut: req.Amount.Mul(decimal.RequireFromString("1.996")),
		Tx:        quote.Transaction{To: router.Hex(), Data: "0x12345678", Value: "0x0"},
	}, nil
}

type fakeBalances struct {
	calls atomic.Int32
	fails int32
}

func (b *fakeBalances) Refresh(context.Context, common.Address) ([]tokens.Token, error) {
	if b.calls.Add(1) <= b.fails {
		return nil, errors.New("balance api down")
	}
	return []tokens.Token{mon.WithBalance(decimal.NewFromInt(5))}, nil
}

type harness struct {
	flow     *Flow
	provider *fakeProvider
	quoter   *fakeQuoter
	balances *fakeBalances
	store    *db.Store
	rec      *notify.Recorder

	mu      sync.Mutex
	updated []tokens.Token
}

func newHarness(t *testing.T, mod func(*harness, *Config)) *harness {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "monswap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		provider: newFakeProvider(),
		quoter:   &fakeQuoter{},
		balances: &fakeBalances{},
		store:    store,
		rec:      notify.NewRecorder(0),
	}
	cfg := Config{Spender: router, SlippageBps: 50, PollInterval: time.Millisecond, PollAttempts: 5}
	if mod != nil {
		mod(h, &cfg)
	}

	h.flow, err = New(cfg, Options{
		Provider: h.provider,
		Quoter:   h.quoter,
		History:  store,
		Balances: h.balances,
		Notifier: h.rec,
		OnBalances: func(list []tokens.Token) {
			h.mu.Lock()
			h.updated = list
			h.mu.Unlock()
		},
	})
	require.NoError(t, err)
	h.flow.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return h
}

func (h *harness) swap(t *testing.T, from, to tokens.Token, amt string) *Outcome {
	t.Helper()
	out, _ := h.flow.Submit(context.Background(), Params{From: from, To: to, AmountIn: decimal.RequireFromString(amt)})
	require.NotNil(t, out)
	return out
}

func TestNativeSwapSkipsApproval(t *testing.T) {
	h := newHarness(t, nil)

	out := h.swap(t, mon, usdc, "5")
	require.NoError(t, out.Err)
	assert.Equal(t, []State{Idle, EstimatingGas, AwaitingSignature, Submitted, PollingReceipt, Success}, out.Path)
	assert.Equal(t, 0, h.provider.calls)
	assert.Equal(t, "9.98", out.AmountOut.String())

	sent := h.provider.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, router, sent[0].To)
	assert.Equal(t, uint64(120_000), sent[0].Gas)

	swap, err := h.store.GetSwap(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SwapSuccess, swap.Status)
	assert.Equal(t, out.TxHash.Hex(), swap.TxHash.String)
	assert.Equal(t, "9.98", swap.ExpectedOut)
	assert.False(t, swap.FailureKind.Valid)

	assert.Equal(t, []notify.Kind{notify.KindSwapConfirmed}, h.rec.Kinds())
	assert.Equal(t, out.TxHash.Hex(), h.rec.All()[0].TxHash)
}

func TestERC20ApprovesExactAmountAndResumes(t *testing.T) {
	h := newHarness(t, nil)

	out := h.swap(t, usdc, mon, "5")
	require.NoError(t, out.Err)
	assert.Equal(t, []State{
		Idle, CheckingApproval, ApprovalNeeded, Approving, WaitingApprovalReceipt,
		Idle, CheckingApproval, EstimatingGas, AwaitingSignature, Submitted, PollingReceipt, Success,
	}, out.Path)

	sent := h.provider.sent()
	require.Len(t, sent, 2)
	approval := sent[0]
	assert.Equal(t, usdc.Address, approval.To)
	assert.Equal(t, chain.SelectorApprove, hexutil.Encode(approval.Data[:4]))
	assert.Equal(t, router, common.BytesToAddress(approval.Data[4:36]))
	assert.Equal(t, big.NewInt(5_000_000), new(big.Int).SetBytes(approval.Data[36:68]))
	assert.Equal(t, router, sent[1].To)

	assert.NotEqual(t, common.Hash{}, out.ApproveTxHash)
	assert.Equal(t, []notify.Kind{notify.KindApprovalConfirmed, notify.KindSwapConfirmed}, h.rec.Kinds())

	swap, err := h.store.GetSwap(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, out.ApproveTxHash.Hex(), swap.ApproveTxHash.String)
}

func TestERC20WithAllowanceSkipsApprove(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Config) {
		h.provider.allowance = big.NewInt(10_000_000)
	})

	out := h.swap(t, usdc, mon, "5")
	require.NoError(t, out.Err)
	assert.Equal(t, []State{Idle, CheckingApproval, EstimatingGas, AwaitingSignature, Submitted, PollingReceipt, Success}, out.Path)
	assert.Len(t, h.provider.sent(), 1)
}

func TestSpenderFromQuoteTarget(t *testing.T) {
	h := newHarness(t, func(_ *harness, cfg *Config) { cfg.Spender = common.Address{} })

	out := h.swap(t, usdc, mon, "1")
	require.NoError(t, out.Err)
	sent := h.provider.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, router, common.BytesToAddress(sent[0].Data[4:36]))
}

func TestGasPreflightFailureNeverSigns(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Config) {
		h.provider.estimateErr = errors.New("execution reverted: Too little received")
	})

	out := h.swap(t, mon, usdc, "5")
	require.Error(t, out.Err)
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, notify.KindSubmitSlippage, out.FailureKind)
	assert.NotContains(t, out.Path, AwaitingSignature)
	assert.Empty(t, h.provider.sent())

	swap, err := h.store.GetSwap(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SwapFailed, swap.Status)
	assert.Equal(t, string(notify.KindSubmitSlippage), swap.FailureKind.String)
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name    string
		from    tokens.Token
		to      tokens.Token
		setup   func(*harness)
		want    notify.Kind
		wantErr error
	}{
		{
			name: "signature rejected",
			from: mon, to: usdc,
			setup: func(h *harness) {
				h.provider.sendErr = func(int, wallet.TxRequest) error { return wallet.ErrRejected }
			},
			want:    notify.KindSubmitRejected,
			wantErr: wallet.ErrRejected,
		},
		{
			name: "approval rejected",
			from: usdc, to: mon,
			setup: func(h *harness) {
				h.provider.sendErr = func(int, wallet.TxRequest) error { return wallet.ErrRejected }
			},
			want: notify.KindApprovalRejected,
		},
		{
			name: "approval reverted",
			from: usdc, to: mon,
			setup: func(h *harness) { h.provider.approveStatus = types.ReceiptStatusFailed },
			want:  notify.KindApprovalReverted,
		},
		{
			name: "swap reverted",
			from: mon, to: usdc,
			setup: func(h *harness) { h.provider.swapStatus = types.ReceiptStatusFailed },
			want:  notify.KindSubmitReverted,
		},
		{
			name: "insufficient funds",
			from: mon, to: usdc,
			setup: func(h *harness) {
				h.provider.sendErr = func(int, wallet.TxRequest) error {
					return errors.New("insufficient funds for gas * price + value")
				}
			},
			want: notify.KindSubmitFunds,
		},
		{
			name: "quote unavailable",
			from: mon, to: usdc,
			setup: func(h *harness) {
				h.quoter.err = notify.Wrap(notify.KindQuoteLiquidity, errors.New("no route"))
			},
			want: notify.KindQuoteLiquidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(h *harness, _ *Config) { tt.setup(h) })

			out := h.swap(t, tt.from, tt.to, "5")
			require.Error(t, out.Err)
			assert.Equal(t, Failed, out.State)
			assert.Equal(t, tt.want, out.FailureKind)
			kind, ok := notify.KindOf(out.Err)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.Err, tt.wantErr)
			}

			kinds := h.rec.Kinds()
			require.NotEmpty(t, kinds)
			assert.Equal(t, tt.want, kinds[len(kinds)-1])
			assert.False(t, h.flow.Busy())
		})
	}
}

func TestReceiptPollingTimesOut(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Config) { h.provider.receiptAfter = -1 })

	out := h.swap(t, mon, usdc, "5")
	require.Error(t, out.Err)
	assert.Equal(t, Failed, out.State)
	assert.Equal(t, notify.KindConfirmTimeout, out.FailureKind)
	assert.Equal(t, 5, h.provider.lookups)
	assert.NotEqual(t, common.Hash{}, out.TxHash)

	swap, err := h.store.GetSwap(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, db.SwapTimeout, swap.Status)

	unresolved, err := h.store.ListUnresolvedSwaps(context.Background())
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, out.ID, unresolved[0].ID)

	n := h.rec.All()[0]
	assert.Equal(t, out.TxHash.Hex(), n.TxHash)
	assert.Contains(t, n.Hint, "explorer")
}

func TestNothingToSwap(t *testing.T) {
	h := newHarness(t, nil)

	out := h.swap(t, mon, usdc, "0")
	assert.Equal(t, notify.KindSubmitFailed, out.FailureKind)
	assert.Equal(t, []State{Idle, Failed}, out.Path)
	assert.Zero(t, h.quoter.calls.Load())
}

func TestSecondSubmitWhileBusy(t *testing.T) {
	block := make(chan struct{})
	h := newHarness(t, func(h *harness, _ *Config) { h.provider.estimateBlock = block })

	done := make(chan *Outcome)
	go func() {
		out, _ := h.flow.Submit(context.Background(), Params{From: mon, To: usdc, AmountIn: decimal.NewFromInt(1)})
		done <- out
	}()

	require.Eventually(t, h.flow.Busy, time.Second, time.Millisecond)
	out, err := h.flow.Submit(context.Background(), Params{From: mon, To: usdc, AmountIn: decimal.NewFromInt(1)})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrBusy)

	close(block)
	first := <-done
	require.NoError(t, first.Err)
	assert.False(t, h.flow.Busy())
}

func TestBalancesRefreshedAfterSuccess(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Config) { h.balances.fails = 1 })

	out := h.swap(t, mon, usdc, "5")
	require.NoError(t, out.Err)
	h.flow.Wait()

	assert.Equal(t, int32(2), h.balances.calls.Load())
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.updated, 1)
	assert.Equal(t, "5", h.updated[0].Balance.Decimal.String())
}

func TestBalanceRefreshFailureKeepsSuccess(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *Config) { h.balances.fails = 100 })

	out := h.swap(t, mon, usdc, "5")
	assert.Equal(t, Success, out.State)
	h.flow.Wait()
	assert.Equal(t, Success, out.State)
	assert.Equal(t, []notify.Kind{notify.KindSwapConfirmed}, h.rec.Kinds())
}
