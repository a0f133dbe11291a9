package balances

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/tokens"
)

const defaultDecimals = 18

var (
	addressKeys   = []string{"address", "tokenAddress", "token_address", "contractAddress", "contract_address", "token.address"}
	symbolKeys    = []string{"symbol", "tokenSymbol", "contract_ticker_symbol", "token.symbol"}
	nameKeys      = []string{"name", "tokenName", "contract_name", "token.name"}
	decimalsKeys  = []string{"decimals", "tokenDecimals", "contract_decimals", "token.decimals"}
	formattedKeys = []string{"balanceFormatted", "formattedBalance", "formatted_balance", "uiAmount"}
	rawKeys       = []string{"rawBalance", "balanceRaw", "raw_balance", "balance_raw"}
	priceKeys     = []string{"usdPrice", "priceUsd", "price_usd", "quote_rate", "price"}
)

// Normalize converts any tolerated balance response into the canonical token
// list. Accepted shapes are a top-level array, or an object holding the array
// under tokens, balances, result, data or data.items.
//
// Per item: a missing address is the native asset, missing decimals default
// to 18 and a missing or unparsable balance is 0. A plain "balance" field is
// in token units except in the data.items shape, where it is in smallest
// units. known fills in symbol, name and decimals the response omits.
func Normalize(body []byte, known tokens.List) ([]tokens.Token, error) {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing balances: %w", err)
	}

	items, rawByDefault, err := locateItems(doc)
	if err != nil {
		return nil, err
	}

	out := make([]tokens.Token, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, normalizeItem(m, known, rawByDefault))
	}
	return out, nil
}

func locateItems(doc interface{}) (items []interface{}, rawByDefault bool, err error) {
	switch v := doc.(type) {
	case []interface{}:
		return v, false, nil
	case map[string]interface{}:
		for _, key := range []string{"tokens", "balances", "result"} {
			if arr, ok := v[key].([]interface{}); ok {
				return arr, false, nil
			}
		}
		switch data := v["data"].(type) {
		case []interface{}:
			return data, false, nil
		case map[string]interface{}:
			if arr, ok := data["items"].([]interface{}); ok {
				return arr, true, nil
			}
			for _, key := range []string{"tokens", "balances"} {
				if arr, ok := data[key].([]interface{}); ok {
					return arr, false, nil
				}
			}
		}
	}
	return nil, false, errors.New("unrecognised balances response shape")
}

func normalizeItem(m map[string]interface{}, known tokens.List, rawByDefault bool) tokens.Token {
	t := tokens.Token{Address: tokens.NativeAddress}

	if s, ok := stringField(m, addressKeys...); ok {
		if addr, err := tokens.ParseAddress(s); err == nil {
			t.Address = addr
		}
	}
	if ref, ok := known.ByAddress(t.Address); ok {
		t.Symbol, t.Name, t.Decimals = ref.Symbol, ref.Name, ref.Decimals
	} else {
		t.Decimals = defaultDecimals
	}

	if s, ok := stringField(m, symbolKeys...); ok {
		t.Symbol = s
	}
	if s, ok := stringField(m, nameKeys...); ok {
		t.Name = s
	}
	if t.Name == "" {
		t.Name = t.Symbol
	}
	if v, ok := field(m, decimalsKeys...); ok {
		if d, ok := amount.FromJSON(v); ok && d.IsInteger() && !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(77)) {
			t.Decimals = uint8(d.IntPart())
		}
	}

	t = t.WithBalance(balanceOf(m, t.Decimals, rawByDefault))

	if v, ok := field(m, priceKeys...); ok {
		if p, ok := amount.FromJSON(v); ok {
			t = t.WithPrice(p)
		}
	}
	return t
}

func balanceOf(m map[string]interface{}, decimals uint8, rawByDefault bool) decimal.Decimal {
	if v, ok := field(m, formattedKeys...); ok {
		if d, ok := amount.FromJSON(v); ok && !d.IsNegative() {
			return d
		}
	}
	if v, ok := field(m, rawKeys...); ok {
		return fromRaw(v, decimals)
	}
	if v, ok := field(m, "balance"); ok {
		if rawByDefault {
			return fromRaw(v, decimals)
		}
		if d, ok := amount.FromJSON(v); ok && !d.IsNegative() {
			return d
		}
	}
	return decimal.Zero
}

func fromRaw(v interface{}, decimals uint8) decimal.Decimal {
	n, ok := new(big.Int).SetString(strings.TrimSpace(fmt.Sprint(v)), 10)
	if !ok || n.Sign() < 0 {
		return decimal.Zero
	}
	return tokens.FromSmallestUnit(n, decimals)
}

func field(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		var cur interface{} = m
		found := true
		for _, part := range strings.Split(key, ".") {
			obj, ok := cur.(map[string]interface{})
			if !ok {
				found = false
				break
			}
			cur, ok = obj[part]
			if !ok || cur == nil {
				found = false
				break
			}
		}
		if found {
			return cur, true
		}
	}
	return nil, false
}

func stringField(m map[string]interface{}, keys ...string) (string, bool) {
	v, ok := field(m, keys...)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return strings.TrimSpace(s), true
	case json.Number:
		return s.String(), true
	}
	return "", false
}
