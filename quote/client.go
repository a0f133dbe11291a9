package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/metrics"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/tokens"
)

type response struct {
	AmountOut          interface{}  `json:"amountOut"`
	AmountOutFormatted interface{}  `json:"amountOutFormatted"`
	OutputAmount       interface{}  `json:"outputAmount"`
	PriceImpact        interface{}  `json:"priceImpact"`
	Tx                 *Transaction `json:"tx"`
	Transaction        *Transaction `json:"transaction"`
	Error              string       `json:"error"`
	Message            string       `json:"message"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient returns a routing API client allowing rps requests per second.
func NewClient(baseURL, apiKey string, httpClient *http.Client, rps float64, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.Named("quote"),
	}
}

// Quote fetches a route. Failures are *notify.Error values carrying one of
// the quote failure kinds.
func (c *Client) Quote(ctx context.Context, req Request) (*Result, error) {
	res, err := c.quote(ctx, req)
	if err != nil {
		kind, _ := notify.KindOf(err)
		metrics.QuoteFailures.WithLabelValues(string(kind)).Inc()
		c.logger.Debug("quote failed",
			zap.String("in", req.TokenIn.Hex()),
			zap.String("out", req.TokenOut.Hex()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (c *Client) quote(ctx context.Context, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, notify.Wrap(notify.KindQuoteFailed, amount.ErrInvalid)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, notify.Wrap(notify.KindQuoteNetwork, err)
	}

	params := url.Values{}
	params.Set("tokenIn", req.TokenIn.Hex())
	params.Set("tokenOut", req.TokenOut.Hex())
	params.Set("amount", req.Amount.String())
	if req.Sender != (common.Address{}) {
		params.Set("sender", req.Sender.Hex())
	}
	if req.SlippageBps > 0 {
		params.Set("slippage", decimal.New(int64(req.SlippageBps), -2).String())
	}
	if req.Deadline > 0 {
		params.Set("deadline", strconv.FormatInt(time.Now().Add(req.Deadline).Unix(), 10))
	}
	if req.MaxHops > 0 {
		params.Set("maxHops", strconv.Itoa(req.MaxHops))
	}

	reqURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, notify.Wrap(notify.KindQuoteFailed, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, notify.Wrap(Classify(0, "", err), fmt.Errorf("requesting quote: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, notify.Wrap(notify.KindQuoteNetwork, fmt.Errorf("reading response: %w", err))
	}

	var parsed response
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	decodeErr := dec.Decode(&parsed)

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if decodeErr == nil && parsed.message() != "" {
			msg = parsed.message()
		}
		return nil, notify.Wrap(Classify(resp.StatusCode, msg, nil),
			fmt.Errorf("quote API returned %d: %s", resp.StatusCode, msg))
	}
	if decodeErr != nil {
		return nil, notify.Wrap(notify.KindQuoteFailed, fmt.Errorf("parsing quote: %w", decodeErr))
	}
	if msg := parsed.message(); msg != "" && parsed.AmountOut == nil && parsed.AmountOutFormatted == nil && parsed.OutputAmount == nil {
		return nil, notify.Wrap(Classify(resp.StatusCode, msg, nil), errors.New(msg))
	}

	out, err := parsed.amountOut(req.OutDecimals)
	if err != nil {
		return nil, notify.Wrap(notify.KindQuoteFailed, err)
	}
	if !out.IsPositive() {
		return nil, notify.Wrap(notify.KindQuoteLiquidity, errors.New("quote returned no output"))
	}

	result := &Result{
		TokenIn:   req.TokenIn,
		TokenOut:  req.TokenOut,
		AmountIn:  req.Amount,
		AmountOut: out,
	}
	if impact, ok := amount.FromJSON(parsed.PriceImpact); ok {
		result.PriceImpact = impact.Abs()
		result.HasPriceImpact = true
	}
	switch {
	case parsed.Tx != nil:
		result.Tx = *parsed.Tx
	case parsed.Transaction != nil:
		result.Tx = *parsed.Transaction
	}
	return result, nil
}

func (r response) message() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// amountOut prefers the formatted fields. A raw integer amountOut is in
// smallest units; one containing a decimal point is already formatted.
func (r response) amountOut(decimals uint8) (decimal.Decimal, error) {
	for _, v := range []interface{}{r.AmountOutFormatted, r.OutputAmount} {
		if v == nil {
			continue
		}
		d, ok := amount.FromJSON(v)
		if !ok {
			return decimal.Zero, fmt.Errorf("invalid output amount %v", v)
		}
		return d, nil
	}

	if r.AmountOut == nil {
		return decimal.Zero, errors.New("quote has no output amount")
	}
	raw := strings.TrimSpace(fmt.Sprint(r.AmountOut))
	if strings.ContainsAny(raw, ".eE") {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid output amount %q", raw)
		}
		return d, nil
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid output amount %q", raw)
	}
	return tokens.FromSmallestUnit(n, decimals), nil
}
