package session

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/tokens"
)

// Side is one half of the swap form.
type Side int

const (
	Input Side = iota
	Output
)

func (s Side) Other() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == Output {
		return "output"
	}
	return "input"
}

// Mode is the unit a side's value is displayed in.
type Mode string

const (
	ModeToken Mode = "token"
	ModeUSD   Mode = "usd"
)

func (m Mode) toggled() Mode {
	if m == ModeUSD {
		return ModeToken
	}
	return ModeUSD
}

// Quoter fetches quotes. *quote.Client satisfies it.
type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Result, error)
}

// Pricer resolves USD unit prices. *pricing.Client satisfies it.
type Pricer interface {
	UnitPrice(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

// pair is one side of the form. qty is the token-unit quantity behind
// display and is kept at full precision so mode toggles never drift.
type pair struct {
	token   tokens.Token
	mode    Mode
	display string
	qty     decimal.Decimal
	hasQty  bool
}

// render formats qty in the pair's mode. ok is false when the USD price is
// unknown.
func (p *pair) render() (string, bool) {
	if !p.hasQty {
		return "", true
	}
	if p.mode == ModeToken {
		return amount.Format(p.qty), true
	}
	usd, err := amount.ToUSD(p.qty, p.token.USDPrice)
	if err != nil {
		return "", false
	}
	return amount.Format(usd), true
}

// parseDisplay derives qty from the displayed text.
func (p *pair) parseDisplay() {
	p.qty, p.hasQty = decimal.Zero, false

	v, err := amount.Parse(p.display)
	if err != nil {
		return
	}
	if p.mode == ModeUSD {
		v, err = amount.FromUSD(v, p.token.USDPrice)
		if err != nil {
			return
		}
	}
	p.qty, p.hasQty = v, true
}

func (p *pair) clear() {
	p.display = ""
	p.qty, p.hasQty = decimal.Zero, false
}

// quoteState is the last applied quote, oriented input to output.
type quoteState struct {
	in, out   decimal.Decimal
	rate      string
	impact    decimal.Decimal
	hasImpact bool
}

// PairView is the rendered state of one side.
type PairView struct {
	Token    tokens.Token `json:"token"`
	Mode     Mode         `json:"mode"`
	Value    string       `json:"value"`
	Quantity string       `json:"quantity,omitempty"`
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	Input       PairView `json:"input"`
	Output      PairView `json:"output"`
	Focus       string   `json:"focus"`
	HasQuote    bool     `json:"has_quote"`
	Rate        string   `json:"rate,omitempty"`
	PriceImpact string   `json:"price_impact,omitempty"`
	Countdown   int      `json:"countdown"`
	SlippageBps int      `json:"slippage_bps"`
}

// Trade is what the swap flow needs to execute the current quote.
type Trade struct {
	From        tokens.Token
	To          tokens.Token
	AmountIn    decimal.Decimal
	ExpectedOut decimal.Decimal
	SlippageBps int
}
