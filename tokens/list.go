package tokens

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// List is an ordered token registry.
type List []Token

// MonadTestnet is the default token list for the Monad testnet.
var MonadTestnet = List{
	{Address: NativeAddress, Symbol: "MON", Name: "Monad", Decimals: 18},
	{Address: common.HexToAddress("0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701"), Symbol: "WMON", Name: "Wrapped Monad", Decimals: 18},
	{Address: common.HexToAddress("0xf817257fed379853cDe0fa4F97AB987181B1E5Ea"), Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	{Address: common.HexToAddress("0x88b8E2161DEDC77EF4ab7585569D2415a1C1055D"), Symbol: "USDT", Name: "Tether USD", Decimals: 6},
	{Address: common.HexToAddress("0xB5a30b0FDc5EA94A52fDc42e3E9760Cb8449Fb37"), Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
}

func (l List) ByAddress(addr common.Address) (Token, bool) {
	for _, t := range l {
		if t.Address == addr {
			return t, true
		}
	}
	return Token{}, false
}

func (l List) BySymbol(symbol string) (Token, bool) {
	for _, t := range l {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Token{}, false
}

// Lookup resolves a symbol or an address.
func (l List) Lookup(ref string) (Token, error) {
	if t, ok := l.BySymbol(ref); ok {
		return t, nil
	}
	addr, err := ParseAddress(ref)
	if err != nil {
		return Token{}, fmt.Errorf("unknown token %q", ref)
	}
	if t, ok := l.ByAddress(addr); ok {
		return t, nil
	}
	return Token{}, fmt.Errorf("unknown token %q", ref)
}

// Merge returns a copy of l with extra appended; entries of extra replace
// entries of l with the same address.
func (l List) Merge(extra List) List {
	out := make(List, 0, len(l)+len(extra))
	out = append(out, l...)
	for _, t := range extra {
		replaced := false
		for i := range out {
			if out[i].Address == t.Address {
				out[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, t)
		}
	}
	return out
}
