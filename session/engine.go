// Package session keeps the two sides of a swap form consistent while the
// user edits either side and quotes arrive asynchronously.
//
// Each side holds a token quantity and a display string in token or USD
// units. Edits are debounced into quote requests; a response is applied only
// if it answers the newest request for its side and that side still has the
// edit focus, so the value the user is typing is never overwritten.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/metrics"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/tokens"
)

const (
	DefaultDebounce       = 200 * time.Millisecond
	DefaultRefreshSeconds = 15
	DefaultSlippageBps    = 50
)

var (
	ErrNoBalance       = errors.New("input token balance unknown")
	ErrInvalidSlippage = errors.New("slippage must be between 1 and 5000 bps")
	ErrInvalidPercent  = errors.New("percent must be between 1 and 100")
)

type Options struct {
	Quoter   Quoter
	Pricer   Pricer
	Notifier notify.Notifier
	Logger   *zap.Logger
	Clock    clock.Clock

	Sender      common.Address
	SlippageBps int
	Deadline    time.Duration
	MaxHops     int

	Debounce       time.Duration
	RefreshSeconds int

	// OnChange receives a snapshot after every state change, without the
	// engine lock held.
	OnChange func(Snapshot)

	// Dispatch runs quote fetches; the default starts a goroutine.
	Dispatch func(func())
}

// Engine owns the state of one swap session.
type Engine struct {
	quoter   Quoter
	pricer   Pricer
	notifier notify.Notifier
	logger   *zap.Logger
	clock    clock.Clock
	onChange func(Snapshot)
	dispatch func(func())

	sender       common.Address
	deadline     time.Duration
	maxHops      int
	debounceWait time.Duration
	refreshTicks int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	pairs     [2]pair
	focus     Side
	latest    *quoteState
	seq       uint64
	pending   [2]uint64
	gen       uint64
	debounce  *clock.Timer
	ticker    *clock.Ticker
	countdown int
	slippage  int
	closed    bool
}

func New(from, to tokens.Token, opts Options) (*Engine, error) {
	if opts.Quoter == nil {
		return nil, errors.New("session: quoter is required")
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
	if opts.Dispatch == nil {
		opts.Dispatch = func(f func()) { go f() }
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RefreshSeconds == 0 {
		opts.RefreshSeconds = DefaultRefreshSeconds
	}
	if opts.SlippageBps == 0 {
		opts.SlippageBps = DefaultSlippageBps
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		quoter:       opts.Quoter,
		pricer:       opts.Pricer,
		notifier:     opts.Notifier,
		logger:       opts.Logger.Named("session"),
		clock:        opts.Clock,
		onChange:     opts.OnChange,
		dispatch:     opts.Dispatch,
		sender:       opts.Sender,
		deadline:     opts.Deadline,
		maxHops:      opts.MaxHops,
		debounceWait: opts.Debounce,
		refreshTicks: opts.RefreshSeconds,
		ctx:          ctx,
		cancel:       cancel,
		countdown:    opts.RefreshSeconds,
		slippage:     opts.SlippageBps,
	}
	e.pairs[Input] = pair{token: from, mode: ModeToken}
	e.pairs[Output] = pair{token: to, mode: ModeToken}
	return e, nil
}

// Edit records user input on side and schedules a debounced quote. Text that
// does not parse is kept for display but requests nothing. An empty or
// non-positive amount discards the current quote; the other side is left as
// it was.
func (e *Engine) Edit(side Side, raw string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.focus = side
	p := &e.pairs[side]
	p.display = amount.Clean(raw)
	p.parseDisplay()
	if !p.hasQty || !p.qty.IsPositive() {
		e.latest = nil
	}
	e.pending[side] = 0
	e.scheduleLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}

func (e *Engine) scheduleLocked() {
	e.gen++
	gen := e.gen
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = e.clock.AfterFunc(e.debounceWait, func() { e.fire(gen) })
}

// fire issues the quote for the focused side unless a later edit superseded
// the debounce generation.
func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	job := e.requestLocked(e.focus)
	e.mu.Unlock()

	if job != nil {
		e.dispatch(job)
	}
}

// requestLocked registers a new request for side and returns the fetch to
// run, or nil when side has no positive amount.
func (e *Engine) requestLocked(side Side) func() {
	req, ok := e.buildRequestLocked(side)
	if !ok {
		return nil
	}

	e.seq++
	id := e.seq
	e.pending[side] = id
	ctx := e.ctx

	return func() {
		res, err := e.quoter.Quote(ctx, req)
		e.resolve(id, side, res, err)
	}
}

// buildRequestLocked quotes from side to the other side. Output-side edits
// therefore produce a reverse-direction quote.
func (e *Engine) buildRequestLocked(side Side) (quote.Request, bool) {
	p := e.pairs[side]
	other := e.pairs[side.Other()]

	if !p.hasQty {
		if p.mode == ModeUSD && p.display != "" && !p.token.HasPrice() {
			e.logger.Debug("usd amount without price, skipping quote", zap.String("token", p.token.Symbol))
		}
		return quote.Request{}, false
	}
	if !p.qty.IsPositive() || p.token.Address == other.token.Address {
		return quote.Request{}, false
	}

	return quote.Request{
		TokenIn:     p.token.Address,
		TokenOut:    other.token.Address,
		Amount:      p.qty,
		OutDecimals: other.token.Decimals,
		Sender:      e.sender,
		SlippageBps: e.slippage,
		Deadline:    e.deadline,
		MaxHops:     e.maxHops,
	}, true
}

// resolve applies a quote response for request id issued from side.
func (e *Engine) resolve(id uint64, side Side, res *quote.Result, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.pending[side] != id || e.focus != side {
		e.mu.Unlock()
		metrics.StaleQuotes.Inc()
		e.logger.Debug("dropping stale quote", zap.Uint64("request", id), zap.Stringer("side", side))
		return
	}
	e.pending[side] = 0

	if err != nil {
		e.mu.Unlock()
		e.notifier.Notify(e.ctx, notify.FromError(err, notify.KindQuoteFailed))
		return
	}

	op := &e.pairs[side.Other()]
	op.qty, op.hasQty = res.AmountOut, true
	display, ok := op.render()
	if !ok {
		e.logger.Debug("cannot render usd value, price unknown", zap.String("token", op.token.Symbol))
	}
	op.display = display

	in, out := e.pairs[Input], e.pairs[Output]
	qs := &quoteState{
		in:   in.qty,
		out:  out.qty,
		rate: quote.ExchangeRate(in.qty, out.qty, in.token.Symbol, out.token.Symbol),
	}
	if res.HasPriceImpact {
		qs.impact, qs.hasImpact = res.PriceImpact, true
	} else {
		qs.impact, qs.hasImpact = quote.DerivePriceImpact(in.qty, in.token.USDPrice, out.qty, out.token.USDPrice)
	}
	e.latest = qs
	e.countdown = e.refreshTicks

	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	e.refreshPricesAsync()
}

// ToggleMode flips side between token and USD display. The stored quantity
// is re-rendered inline and no quote is requested. Switching to USD without a
// known price is refused.
func (e *Engine) ToggleMode(side Side) error {
	e.mu.Lock()
	p := &e.pairs[side]
	target := p.mode.toggled()
	if p.hasQty && target == ModeUSD && !p.token.HasPrice() {
		e.mu.Unlock()
		return notify.Wrap(notify.KindUnknownPrice, fmt.Errorf("%s: %w", p.token.Symbol, amount.ErrUnknownPrice))
	}

	p.mode = target
	if p.hasQty {
		p.display, _ = p.render()
	} else {
		p.clear()
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	return nil
}

// SwapSides exchanges tokens and displayed values verbatim. Focus follows the
// value the user typed. Outstanding requests and the current quote are
// discarded.
func (e *Engine) SwapSides() {
	e.mu.Lock()
	e.pairs[Input], e.pairs[Output] = e.pairs[Output], e.pairs[Input]
	e.focus = e.focus.Other()
	e.invalidateLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}

func (e *Engine) invalidateLocked() {
	e.pending = [2]uint64{}
	e.gen++
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.latest = nil
}

// tick advances the refresh countdown and re-requests the focused side's
// quote when it reaches zero.
func (e *Engine) tick() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.countdown--
	var job func()
	reset := e.countdown <= 0
	if reset {
		e.countdown = e.refreshTicks
		job = e.requestLocked(e.focus)
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	if job != nil {
		e.dispatch(job)
	}
}

func (e *Engine) refreshPricesAsync() {
	if e.pricer == nil {
		return
	}
	e.dispatch(func() { e.RefreshPrices(e.ctx) })
}

// SetToken selects the token on side. Picking the other side's token swaps
// the sides instead.
func (e *Engine) SetToken(side Side, t tokens.Token) {
	e.mu.Lock()
	if t.Address == e.pairs[side.Other()].token.Address {
		e.mu.Unlock()
		e.SwapSides()
		return
	}
	if t.Address == e.pairs[side].token.Address {
		e.pairs[side].token = t
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.emit(snap)
		return
	}

	e.pairs[side].token = t
	e.invalidateLocked()
	if side == e.focus {
		e.pairs[side].parseDisplay()
		e.pairs[side.Other()].clear()
	} else {
		e.pairs[side].clear()
	}
	e.scheduleLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	e.refreshPricesAsync()
}

// UseBalance fills the input with percent of the input token's balance,
// subject to the same debounce as typing.
func (e *Engine) UseBalance(percent int) error {
	if percent < 1 || percent > 100 {
		return ErrInvalidPercent
	}

	e.mu.Lock()
	p := e.pairs[Input]
	if !p.token.Balance.Valid {
		e.mu.Unlock()
		return ErrNoBalance
	}
	p.qty = p.token.Balance.Decimal.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100))
	p.hasQty = true
	display, ok := p.render()
	if !ok {
		e.mu.Unlock()
		return notify.Wrap(notify.KindUnknownPrice, amount.ErrUnknownPrice)
	}
	p.display = display
	e.pairs[Input] = p
	e.focus = Input
	e.pending[Input] = 0
	e.scheduleLocked()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	return nil
}

// SetSlippage applies to the next quote request.
func (e *Engine) SetSlippage(bps int) error {
	if bps < 1 || bps > 5000 {
		return ErrInvalidSlippage
	}
	e.mu.Lock()
	e.slippage = bps
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
	return nil
}

// RefreshPrices replaces both token records with freshly priced ones. A
// missing price is an expected transient state and is only logged.
func (e *Engine) RefreshPrices(ctx context.Context) {
	if e.pricer == nil {
		return
	}

	e.mu.Lock()
	toks := [2]tokens.Token{e.pairs[Input].token, e.pairs[Output].token}
	e.mu.Unlock()

	var (
		prices [2]decimal.Decimal
		priced [2]bool
	)
	for i, t := range toks {
		price, err := e.pricer.UnitPrice(ctx, t.Address)
		if err != nil {
			e.logger.Debug("token not priced yet", zap.String("token", t.Symbol), zap.Error(err))
			continue
		}
		prices[i], priced[i] = price, true
	}

	e.mu.Lock()
	requote := false
	for i := range e.pairs {
		p := &e.pairs[i]
		// A failed fetch keeps the last known price.
		if p.token.Address != toks[i].Address || !priced[i] {
			continue
		}
		p.token = p.token.WithPrice(prices[i])
		if p.mode != ModeUSD {
			continue
		}
		if Side(i) == e.focus {
			before, had := p.qty, p.hasQty
			p.parseDisplay()
			requote = requote || had != p.hasQty || !before.Equal(p.qty)
		} else if p.hasQty {
			p.display, _ = p.render()
		}
	}
	if requote {
		e.pending[e.focus] = 0
		e.scheduleLocked()
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}

// SetBalances copies balances from list onto the matching session tokens.
func (e *Engine) SetBalances(list []tokens.Token) {
	e.mu.Lock()
	for i := range e.pairs {
		for _, t := range list {
			if t.Address == e.pairs[i].token.Address && t.Balance.Valid {
				e.pairs[i].token = e.pairs[i].token.WithBalance(t.Balance.Decimal)
			}
		}
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	view := func(p pair) PairView {
		v := PairView{Token: p.token, Mode: p.mode, Value: p.display}
		if p.hasQty {
			v.Quantity = p.qty.String()
		}
		return v
	}

	snap := Snapshot{
		Input:       view(e.pairs[Input]),
		Output:      view(e.pairs[Output]),
		Focus:       e.focus.String(),
		Countdown:   e.countdown,
		SlippageBps: e.slippage,
	}
	if e.latest != nil {
		snap.HasQuote = true
		snap.Rate = e.latest.rate
		if e.latest.hasImpact {
			snap.PriceImpact = quote.FormatImpact(e.latest.impact)
		}
	}
	return snap
}

// Trade returns the current quote as an executable trade.
func (e *Engine) Trade() (Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in, out := e.pairs[Input], e.pairs[Output]
	if e.latest == nil || !in.hasQty || !in.qty.IsPositive() || !out.hasQty || !out.qty.IsPositive() {
		return Trade{}, false
	}
	return Trade{
		From:        in.token,
		To:          out.token,
		AmountIn:    in.qty,
		ExpectedOut: out.qty,
		SlippageBps: e.slippage,
	}, true
}

// Start refreshes prices and runs the one-second refresh countdown until
// Close.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.closed || e.ticker != nil {
		e.mu.Unlock()
		return
	}
	e.ticker = e.clock.Ticker(time.Second)
	ticker := e.ticker
	e.mu.Unlock()

	e.refreshPricesAsync()

	go func() {
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

// Close stops every timer and cancels in-flight quotes. Late responses are
// discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
	if e.ticker != nil {
		e.ticker.Stop()
	}
	if e.debounce != nil {
		e.debounce.Stop()
	}
}

func (e *Engine) emit(snap Snapshot) {
	if e.onChange != nil {
		e.onChange(snap)
	}
}
