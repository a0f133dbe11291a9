package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/cache"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/tokens"
)

const (
	DefaultPriceTTL  = 5 * time.Minute
	DefaultNativeTTL = 30 * time.Second
)

// ErrPlaceholderPrice reports that only the 1.0 native placeholder is
// available, so no USD price can be derived.
var ErrPlaceholderPrice = errors.New("native USD price is a placeholder")

// Config configures a Client. PriceURL serves per-token ratios against the
// native asset at {PriceURL}/{address}; FiatURL serves the native USD price
// at {FiatURL}?symbol={NativeSymbol}{FiatSymbol}.
type Config struct {
	PriceURL     string
	FiatURL      string
	NativeSymbol string
	FiatSymbol   string

	HTTPClient *http.Client
	Store      cache.Store
	Clock      clock.Clock
	Logger     *zap.Logger

	PriceTTL  time.Duration
	NativeTTL time.Duration
}

// Client resolves USD unit prices. Token prices are native ratios multiplied
// by the native USD price.
type Client struct {
	priceURL string
	fiatURL  string
	pair     string

	httpClient *http.Client
	ratios     *cache.Cache[decimal.Decimal]
	native     *cache.Cache[decimal.Decimal]
	logger     *zap.Logger

	mu         sync.Mutex
	lastNative decimal.Decimal
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.PriceTTL == 0 {
		cfg.PriceTTL = DefaultPriceTTL
	}
	if cfg.NativeTTL == 0 {
		cfg.NativeTTL = DefaultNativeTTL
	}
	if cfg.FiatSymbol == "" {
		cfg.FiatSymbol = "USDT"
	}
	logger := cfg.Logger.Named("pricing")

	return &Client{
		priceURL:   strings.TrimRight(cfg.PriceURL, "/"),
		fiatURL:    cfg.FiatURL,
		pair:       strings.ToUpper(cfg.NativeSymbol + cfg.FiatSymbol),
		httpClient: cfg.HTTPClient,
		ratios: cache.New[decimal.Decimal]("price", cfg.PriceTTL,
			cache.WithStore[decimal.Decimal](cfg.Store),
			cache.WithClock[decimal.Decimal](cfg.Clock),
			cache.WithLogger[decimal.Decimal](logger)),
		native: cache.New[decimal.Decimal]("native_price", cfg.NativeTTL,
			cache.WithStore[decimal.Decimal](cfg.Store),
			cache.WithClock[decimal.Decimal](cfg.Clock),
			cache.WithLogger[decimal.Decimal](logger)),
		logger: logger,
	}
}

// UnitPrice returns the USD price of one unit of the token. Unknown prices
// (including an upstream price of exactly zero) are returned as an error of
// kind notify.KindUnknownPrice and are never cached. While the native price
// is the placeholder, every token is unknown.
func (c *Client) UnitPrice(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	native, placeholder := c.NativeUSDPrice(ctx)
	if placeholder {
		return decimal.Zero, notify.Wrap(notify.KindUnknownPrice, fmt.Errorf("%w: %w", amount.ErrUnknownPrice, ErrPlaceholderPrice))
	}
	if token == tokens.NativeAddress {
		return native, nil
	}

	key := strings.ToLower(token.Hex())
	ratio, err := c.ratios.GetOrFetch(ctx, key, func(ctx context.Context) (decimal.Decimal, error) {
		return c.fetchRatio(ctx, token)
	})
	if err != nil {
		return decimal.Zero, notify.Wrap(notify.KindUnknownPrice, err)
	}
	return ratio.Mul(native), nil
}

// NativeUSDPrice returns the native asset's USD price. When the fiat endpoint
// fails it falls back to the last known price, then to a 1.0 placeholder;
// placeholder reports the latter case.
func (c *Client) NativeUSDPrice(ctx context.Context) (price decimal.Decimal, placeholder bool) {
	price, err := c.native.GetOrFetch(ctx, c.pair, c.fetchNative)
	if err == nil {
		c.mu.Lock()
		c.lastNative = price
		c.mu.Unlock()
		return price, false
	}

	c.logger.Debug("native price unavailable", zap.String("pair", c.pair), zap.Error(err))

	c.mu.Lock()
	last := c.lastNative
	c.mu.Unlock()
	if last.IsPositive() {
		return last, false
	}
	return decimal.NewFromInt(1), true
}

// PriceList returns a copy of list with USD prices filled in. Tokens whose
// price is unknown keep a zero price.
func (c *Client) PriceList(ctx context.Context, list tokens.List) tokens.List {
	out := make(tokens.List, len(list))
	for i, t := range list {
		price, err := c.UnitPrice(ctx, t.Address)
		if err != nil {
			c.logger.Debug("token not priced", zap.String("token", t.Symbol), zap.Error(err))
			price = decimal.Zero
		}
		out[i] = t.WithPrice(price)
	}
	return out
}

func (c *Client) fetchRatio(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	if c.priceURL == "" {
		return decimal.Zero, fmt.Errorf("price API not configured")
	}
	body, err := c.get(ctx, c.priceURL+"/"+token.Hex())
	if err != nil {
		return decimal.Zero, err
	}
	ratio, err := parsePrice(body, "price", "priceInNative", "ratio", "data.price")
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing price for %s: %w", token.Hex(), err)
	}
	return ratio, nil
}

func (c *Client) fetchNative(ctx context.Context) (decimal.Decimal, error) {
	if c.fiatURL == "" {
		return decimal.Zero, fmt.Errorf("fiat API not configured")
	}
	params := url.Values{}
	params.Set("symbol", c.pair)
	body, err := c.get(ctx, c.fiatURL+"?"+params.Encode())
	if err != nil {
		return decimal.Zero, err
	}
	price, err := parsePrice(body, "price", "data.price")
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s price: %w", c.pair, err)
	}
	return price, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// parsePrice reads the first present field of keys. Dotted keys descend into
// nested objects. Zero and negative prices are unknown.
func parsePrice(body []byte, keys ...string) (decimal.Decimal, error) {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return decimal.Zero, err
	}

	for _, key := range keys {
		v, ok := lookup(doc, key)
		if !ok {
			continue
		}
		price, ok := amount.FromJSON(v)
		if !ok {
			return decimal.Zero, fmt.Errorf("field %s is not a number", key)
		}
		if !price.IsPositive() {
			return decimal.Zero, amount.ErrUnknownPrice
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("no price field in response")
}

func lookup(doc map[string]interface{}, dotted string) (interface{}, bool) {
	parts := strings.Split(dotted, ".")
	var cur interface{} = doc
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}
