// Package swapflow executes a quoted swap: exact-amount approval when the
// input is an ERC-20 token, a gas pre-flight, signature, and bounded receipt
// polling.
package swapflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/chain"
	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/metrics"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/tokens"
	"github.com/RaghavSood/monswap/wallet"
)

type State string

const (
	Idle                   State = "idle"
	CheckingApproval       State = "checking_approval"
	ApprovalNeeded         State = "approval_needed"
	Approving              State = "approving"
	WaitingApprovalReceipt State = "waiting_approval_receipt"
	EstimatingGas          State = "estimating_gas"
	AwaitingSignature      State = "awaiting_signature"
	Submitted              State = "submitted"
	PollingReceipt         State = "polling_receipt"
	Success                State = "success"
	Failed                 State = "failed"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultPollAttempts     = 30
	DefaultGasBufferPercent = 20
)

// ErrBusy is returned when a swap is started while another is in flight.
var ErrBusy = errors.New("a swap is already in progress")

var errReceiptTimeout = errors.New("receipt not found before polling limit")

type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Result, error)
}

// History records swaps. *db.Store satisfies it.
type History interface {
	CreateSwap(ctx context.Context, arg db.CreateSwapParams) error
	UpdateSwapApproval(ctx context.Context, arg db.UpdateSwapApprovalParams) error
	UpdateSwapTx(ctx context.Context, arg db.UpdateSwapTxParams) error
	UpdateSwapStatus(ctx context.Context, arg db.UpdateSwapStatusParams) error
}

// BalanceRefresher reloads wallet balances. *balances.Service satisfies it.
type BalanceRefresher interface {
	Refresh(ctx context.Context, wallet common.Address) ([]tokens.Token, error)
}

type Config struct {
	// Spender is approved for ERC-20 inputs. When zero, the quoted
	// transaction target is used.
	Spender          common.Address
	SlippageBps      int
	Deadline         time.Duration
	MaxHops          int
	PollInterval     time.Duration
	PollAttempts     int
	GasBufferPercent int
}

type Options struct {
	Provider wallet.Provider
	Quoter   Quoter
	History  History
	Balances BalanceRefresher
	Notifier notify.Notifier
	Logger   *zap.Logger
	Clock    clock.Clock

	// OnState is called on every transition.
	OnState func(State)
	// OnBalances receives balances refreshed after a successful swap.
	OnBalances func([]tokens.Token)
}

// Params describes the trade to execute.
type Params struct {
	From        tokens.Token
	To          tokens.Token
	AmountIn    decimal.Decimal
	SlippageBps int
}

// Outcome is the terminal result of one Submit call.
type Outcome struct {
	ID            string
	State         State
	Path          []State
	TxHash        common.Hash
	ApproveTxHash common.Hash
	Receipt       *types.Receipt
	AmountOut     decimal.Decimal
	FailureKind   notify.Kind
	Err           error
}

type Flow struct {
	cfg        Config
	provider   wallet.Provider
	quoter     Quoter
	history    History
	balances   BalanceRefresher
	notifier   notify.Notifier
	logger     *zap.Logger
	clock      clock.Clock
	onState    func(State)
	onBalances func([]tokens.Token)

	newBackOff func() backoff.BackOff

	busy atomic.Bool
	// refreshes tracks background balance refreshes so Wait can drain them.
	refreshes sync.WaitGroup
}

func New(cfg Config, opts Options) (*Flow, error) {
	if opts.Provider == nil {
		return nil, errors.New("swapflow: wallet provider is required")
	}
	if opts.Quoter == nil {
		return nil, errors.New("swapflow: quoter is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.GasBufferPercent <= 0 {
		cfg.GasBufferPercent = DefaultGasBufferPercent
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Flow{
		cfg:        cfg,
		provider:   opts.Provider,
		quoter:     opts.Quoter,
		history:    opts.History,
		balances:   opts.Balances,
		notifier:   opts.Notifier,
		logger:     opts.Logger.Named("swapflow"),
		clock:      opts.Clock,
		onState:    opts.OnState,
		onBalances: opts.OnBalances,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}, nil
}

// Busy reports whether a swap is in flight.
func (f *Flow) Busy() bool {
	return f.busy.Load()
}

// Wait blocks until background balance refreshes have finished.
func (f *Flow) Wait() {
	f.refreshes.Wait()
}

// run is the state of one Submit call.
type run struct {
	f      *Flow
	p      Params
	out    *Outcome
	raw    *big.Int
	logger *zap.Logger

	recorded bool
}

// Submit runs the swap to a terminal state. The returned error is ErrBusy
// when another swap is in flight, or the failure recorded in the Outcome.
func (f *Flow) Submit(ctx context.Context, p Params) (*Outcome, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	if p.SlippageBps == 0 {
		p.SlippageBps = f.cfg.SlippageBps
	}

	out := &Outcome{ID: uuid.NewString()}
	r := &run{
		f:      f,
		p:      p,
		out:    out,
		raw:    tokens.ToSmallestUnit(p.AmountIn, p.From.Decimals),
		logger: f.logger.With(zap.String("swap", out.ID), zap.String("from", p.From.Symbol), zap.String("to", p.To.Symbol)),
	}
	r.transition(Idle)

	if r.raw.Sign() <= 0 || p.From.Address == p.To.Address {
		return r.fail(ctx, notify.KindSubmitFailed, fmt.Errorf("nothing to swap: %s %s to %s", p.AmountIn, p.From.Symbol, p.To.Symbol))
	}

	r.record(ctx)
	r.execute(ctx)
	return out, out.Err
}

func (r *run) execute(ctx context.Context) {
	if !r.p.From.IsNative() {
		if !r.ensureAllowance(ctx) {
			return
		}
	}

	r.transition(EstimatingGas)
	res, err := r.f.quoter.Quote(ctx, r.quoteRequest())
	if err != nil {
		r.fail(ctx, notify.KindQuoteFailed, err)
		return
	}
	if res.Tx.Empty() {
		r.fail(ctx, notify.KindSubmitFailed, errors.New("quote did not include a transaction"))
		return
	}
	r.out.AmountOut = res.AmountOut

	target, err := res.Tx.Target()
	if err != nil {
		r.fail(ctx, notify.KindSubmitFailed, err)
		return
	}
	data, err := res.Tx.DataBytes()
	if err != nil {
		r.fail(ctx, notify.KindSubmitFailed, err)
		return
	}
	value, err := res.Tx.ValueWei()
	if err != nil {
		r.fail(ctx, notify.KindSubmitFailed, err)
		return
	}

	estimate, err := r.f.provider.EstimateGas(ctx, ethereum.CallMsg{
		From:  r.f.provider.Address(),
		To:    &target,
		Data:  data,
		Value: value,
	})
	if err != nil {
		// Pre-flight: a transaction known to revert is never signed.
		r.fail(ctx, ClassifySubmit(err), fmt.Errorf("estimating gas: %w", err))
		return
	}
	gas := estimate + estimate*uint64(r.f.cfg.GasBufferPercent)/100

	r.transition(AwaitingSignature)
	hash, err := r.f.provider.SendTransaction(ctx, wallet.TxRequest{To: target, Data: data, Value: value, Gas: gas})
	if err != nil {
		r.fail(ctx, ClassifySubmit(err), fmt.Errorf("sending swap: %w", err))
		return
	}
	r.out.TxHash = hash
	r.transition(Submitted)
	r.logger.Info("swap submitted", zap.String("tx", hash.Hex()), zap.Uint64("gas", gas))
	if r.f.history != nil {
		if err := r.f.history.UpdateSwapTx(ctx, db.UpdateSwapTxParams{
			TxHash:      db.NullString(hash.Hex()),
			ExpectedOut: res.AmountOut.String(),
			Status:      db.SwapSubmitted,
			ID:          r.out.ID,
		}); err != nil {
			r.logger.Warn("recording swap tx failed", zap.Error(err))
		}
	}

	r.transition(PollingReceipt)
	receipt, err := r.f.waitReceipt(ctx, hash)
	if err != nil {
		r.fail(ctx, notify.KindConfirmTimeout, err)
		return
	}
	r.out.Receipt = receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		r.fail(ctx, notify.KindSubmitReverted, fmt.Errorf("swap %s reverted in block %s", hash.Hex(), receipt.BlockNumber))
		return
	}

	r.succeed(ctx)
}

// ensureAllowance approves exactly the swap amount when the current allowance
// is short. It reports false once the run has failed.
func (r *run) ensureAllowance(ctx context.Context) bool {
	spender := r.f.cfg.Spender
	if spender == (common.Address{}) {
		res, err := r.f.quoter.Quote(ctx, r.quoteRequest())
		if err != nil {
			r.fail(ctx, notify.KindQuoteFailed, err)
			return false
		}
		if spender, err = res.Tx.Target(); err != nil {
			r.fail(ctx, notify.KindApprovalFailed, err)
			return false
		}
	}

	approved := false
	for {
		r.transition(CheckingApproval)
		allowance, err := r.allowance(ctx, spender)
		if err != nil {
			r.fail(ctx, notify.KindApprovalFailed, fmt.Errorf("checking allowance: %w", err))
			return false
		}
		if allowance.Cmp(r.raw) >= 0 {
			return true
		}
		if approved {
			r.fail(ctx, notify.KindApprovalFailed, fmt.Errorf("allowance %s still below %s after approval", allowance, r.raw))
			return false
		}

		r.transition(ApprovalNeeded)
		if !r.approve(ctx, spender) {
			return false
		}
		approved = true
		r.transition(Idle)
	}
}

func (r *run) allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	data, err := chain.PackAllowance(r.f.provider.Address(), spender)
	if err != nil {
		return nil, err
	}
	token := r.p.From.Address
	output, err := r.f.provider.Call(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, err
	}
	return chain.DecodeUint256(output)
}

func (r *run) approve(ctx context.Context, spender common.Address) bool {
	r.transition(Approving)
	data, err := chain.PackApprove(spender, r.raw)
	if err != nil {
		r.fail(ctx, notify.KindApprovalFailed, err)
		return false
	}
	hash, err := r.f.provider.SendTransaction(ctx, wallet.TxRequest{To: r.p.From.Address, Data: data})
	if err != nil {
		r.fail(ctx, ClassifyApproval(err), fmt.Errorf("sending approval: %w", err))
		return false
	}
	r.out.ApproveTxHash = hash
	r.logger.Info("approval submitted", zap.String("tx", hash.Hex()), zap.String("amount", r.raw.String()))
	if r.f.history != nil {
		if err := r.f.history.UpdateSwapApproval(ctx, db.UpdateSwapApprovalParams{
			ApproveTxHash: db.NullString(hash.Hex()),
			ID:            r.out.ID,
		}); err != nil {
			r.logger.Warn("recording approval failed", zap.Error(err))
		}
	}

	r.transition(WaitingApprovalReceipt)
	receipt, err := r.f.waitReceipt(ctx, hash)
	if err != nil {
		r.fail(ctx, notify.KindConfirmTimeout, fmt.Errorf("approval: %w", err))
		return false
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		r.fail(ctx, notify.KindApprovalReverted, fmt.Errorf("approval %s reverted", hash.Hex()))
		return false
	}

	n := notify.New(notify.KindApprovalConfirmed, nil)
	n.TxHash = hash.Hex()
	r.f.notifier.Notify(ctx, n)
	return true
}

func (r *run) quoteRequest() quote.Request {
	return quote.Request{
		TokenIn:     r.p.From.Address,
		TokenOut:    r.p.To.Address,
		Amount:      r.p.AmountIn,
		OutDecimals: r.p.To.Decimals,
		Sender:      r.f.provider.Address(),
		SlippageBps: r.p.SlippageBps,
		Deadline:    r.f.cfg.Deadline,
		MaxHops:     r.f.cfg.MaxHops,
	}
}

// waitReceipt polls for a receipt at the configured interval and gives up
// after the configured number of attempts.
func (f *Flow) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for attempt := 1; attempt <= f.cfg.PollAttempts; attempt++ {
		receipt, err := f.provider.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			f.logger.Debug("receipt lookup failed", zap.String("tx", hash.Hex()), zap.Int("attempt", attempt), zap.Error(err))
		}
		if attempt == f.cfg.PollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.clock.After(f.cfg.PollInterval):
		}
	}
	return nil, fmt.Errorf("%s: %w", hash.Hex(), errReceiptTimeout)
}

func (r *run) transition(s State) {
	r.out.State = s
	r.out.Path = append(r.out.Path, s)
	r.logger.Debug("swap state", zap.String("state", string(s)))
	if r.f.onState != nil {
		r.f.onState(s)
	}
}

func (r *run) record(ctx context.Context) {
	if r.f.history == nil {
		return
	}
	err := r.f.history.CreateSwap(ctx, db.CreateSwapParams{
		ID:         r.out.ID,
		Wallet:     r.f.provider.Address().Hex(),
		FromToken:  r.p.From.ID(),
		ToToken:    r.p.To.ID(),
		FromSymbol: r.p.From.Symbol,
		ToSymbol:   r.p.To.Symbol,
		AmountIn:   r.p.AmountIn.String(),
		Status:     db.SwapPending,
	})
	if err != nil {
		r.logger.Warn("recording swap failed", zap.Error(err))
		return
	}
	r.recorded = true
}

func (r *run) finish(ctx context.Context, status string, kind notify.Kind) {
	if r.f.history == nil || !r.recorded {
		return
	}
	failure := ""
	if kind != "" {
		failure = string(kind)
	}
	if err := r.f.history.UpdateSwapStatus(ctx, db.UpdateSwapStatusParams{
		Status:      status,
		FailureKind: db.NullString(failure),
		ID:          r.out.ID,
	}); err != nil {
		r.logger.Warn("recording swap status failed", zap.Error(err))
	}
}

func (r *run) fail(ctx context.Context, fallback notify.Kind, err error) (*Outcome, error) {
	kind, ok := notify.KindOf(err)
	if !ok {
		kind = fallback
	}
	r.out.FailureKind = kind
	r.out.Err = notify.Wrap(kind, err)
	r.transition(Failed)
	metrics.Swaps.WithLabelValues(string(Failed), string(kind)).Inc()
	r.logger.Warn("swap failed", zap.String("kind", string(kind)), zap.Error(err))

	status := db.SwapFailed
	if kind == notify.KindConfirmTimeout {
		status = db.SwapTimeout
	}
	r.finish(ctx, status, kind)

	n := notify.New(kind, err)
	if r.out.TxHash != (common.Hash{}) {
		n.TxHash = r.out.TxHash.Hex()
	}
	r.f.notifier.Notify(ctx, n)
	return r.out, r.out.Err
}

func (r *run) succeed(ctx context.Context) {
	r.transition(Success)
	metrics.Swaps.WithLabelValues(string(Success), "").Inc()
	r.logger.Info("swap confirmed", zap.String("tx", r.out.TxHash.Hex()))
	r.finish(ctx, db.SwapSuccess, "")

	n := notify.New(notify.KindSwapConfirmed, nil)
	n.TxHash = r.out.TxHash.Hex()
	n.Message = fmt.Sprintf("Swapped %s %s for %s %s", r.p.AmountIn, r.p.From.Symbol, r.out.AmountOut, r.p.To.Symbol)
	r.f.notifier.Notify(ctx, n)

	r.f.refreshBalances(context.WithoutCancel(ctx))
}

// refreshBalances reloads balances in the background. Failures are logged
// and never change the swap outcome.
func (f *Flow) refreshBalances(ctx context.Context) {
	if f.balances == nil {
		return
	}
	owner := f.provider.Address()

	f.refreshes.Add(1)
	go func() {
		defer f.refreshes.Done()

		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		policy := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), 4), ctx)
		var list []tokens.Token
		err := backoff.Retry(func() error {
			var err error
			list, err = f.balances.Refresh(ctx, owner)
			return err
		}, policy)
		if err != nil {
			f.logger.Warn("refreshing balances after swap failed", zap.Error(err))
			return
		}
		if f.onBalances != nil {
			f.onBalances(list)
		}
	}()
}
