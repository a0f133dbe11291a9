package session

import (
	"fmt"
	"net/url"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/tokens"
)

// ShareState is a session restored from a shared link.
type ShareState struct {
	From   tokens.Token
	To     tokens.Token
	Amount string
	Side   Side
	Mode   Mode
}

// ShareQuery encodes the pair and the focused value so a link can reopen the
// same form.
func (e *Engine) ShareQuery() url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := url.Values{}
	v.Set("from", e.pairs[Input].token.ID())
	v.Set("to", e.pairs[Output].token.ID())
	p := e.pairs[e.focus]
	if p.display != "" {
		v.Set("amount", p.display)
		v.Set("side", e.focus.String())
		v.Set("mode", string(p.mode))
	}
	return v
}

// ParseShareQuery resolves a shared link against the known token list.
// Tokens may be given by address or symbol.
func ParseShareQuery(v url.Values, list tokens.List) (ShareState, error) {
	var st ShareState
	if v.Get("from") == "" || v.Get("to") == "" {
		return st, fmt.Errorf("share link needs both tokens")
	}

	from, err := list.Lookup(v.Get("from"))
	if err != nil {
		return st, err
	}
	to, err := list.Lookup(v.Get("to"))
	if err != nil {
		return st, err
	}
	if from.Address == to.Address {
		return st, fmt.Errorf("cannot swap %s for itself", from.Symbol)
	}
	st.From, st.To = from, to

	switch v.Get("side") {
	case "", "input":
		st.Side = Input
	case "output":
		st.Side = Output
	default:
		return st, fmt.Errorf("invalid side %q", v.Get("side"))
	}

	switch Mode(v.Get("mode")) {
	case "", ModeToken:
		st.Mode = ModeToken
	case ModeUSD:
		st.Mode = ModeUSD
	default:
		return st, fmt.Errorf("invalid mode %q", v.Get("mode"))
	}

	if raw := v.Get("amount"); raw != "" {
		if _, err := amount.Parse(raw); err != nil {
			return st, fmt.Errorf("amount %q: %w", raw, err)
		}
		st.Amount = amount.Clean(raw)
	}
	return st, nil
}

// ApplyShare loads a shared state into the engine and schedules a quote for
// the shared amount.
func (e *Engine) ApplyShare(st ShareState) {
	e.mu.Lock()
	e.invalidateLocked()
	e.pairs[Input] = pair{token: st.From, mode: ModeToken}
	e.pairs[Output] = pair{token: st.To, mode: ModeToken}
	e.pairs[st.Side].mode = st.Mode
	e.focus = st.Side
	if st.Amount != "" {
		p := &e.pairs[st.Side]
		p.display = st.Amount
		p.parseDisplay()
		e.scheduleLocked()
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.emit(snap)
}
