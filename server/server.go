// Package server exposes the swap core over HTTP: token metadata, prices,
// balances, quotes and swap history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/amount"
	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/metrics"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/session"
	"github.com/RaghavSood/monswap/tokens"
)

type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Result, error)
}

type Pricer interface {
	UnitPrice(ctx context.Context, token common.Address) (decimal.Decimal, error)
	NativeUSDPrice(ctx context.Context) (decimal.Decimal, bool)
}

type Balances interface {
	Fetch(ctx context.Context, wallet common.Address) []tokens.Token
}

type History interface {
	RecentSwaps(ctx context.Context, wallet string, limit int64) ([]db.Swap, error)
}

type Options struct {
	Tokens      tokens.List
	Quoter      Quoter
	Pricer      Pricer
	Balances    Balances
	History     History
	Logger      *zap.Logger
	SlippageBps int
	Deadline    time.Duration
	MaxHops     int
}

type Server struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{opts: opts, logger: opts.Logger.Named("server")}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tokens", s.handleTokens)
		r.Get("/price/{token}", s.handlePrice)
		r.Get("/balances/{wallet}", s.handleBalances)
		r.Get("/quote", s.handleQuote)
		r.Get("/swaps", s.handleSwaps)
		r.Get("/share", s.handleShare)
	})
	return r
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// --- API handlers ---

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Tokens)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	token, err := s.opts.Tokens.Lookup(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]interface{}{
		"token":  token.ID(),
		"symbol": token.Symbol,
	}
	if token.IsNative() {
		price, placeholder := s.opts.Pricer.NativeUSDPrice(r.Context())
		resp["usd_price"] = price.String()
		resp["placeholder"] = placeholder
		writeJSON(w, http.StatusOK, resp)
		return
	}

	price, err := s.opts.Pricer.UnitPrice(r.Context(), token.Address)
	if err != nil {
		writeNotification(w, http.StatusNotFound, notify.FromError(err, notify.KindUnknownPrice))
		return
	}
	resp["usd_price"] = price.String()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "wallet")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid wallet %q", raw))
		return
	}
	list := s.opts.Balances.Fetch(r.Context(), common.HexToAddress(raw))
	if list == nil {
		list = []tokens.Token{}
	}
	writeJSON(w, http.StatusOK, list)
}

type quoteResponse struct {
	From        string             `json:"from"`
	To          string             `json:"to"`
	AmountIn    string             `json:"amount_in"`
	AmountOut   string             `json:"amount_out"`
	Display     string             `json:"display"`
	Rate        string             `json:"rate"`
	PriceImpact string             `json:"price_impact,omitempty"`
	Tx          *quote.Transaction `json:"tx,omitempty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := s.opts.Tokens.Lookup(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := s.opts.Tokens.Lookup(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if from.Address == to.Address {
		writeError(w, http.StatusBadRequest, errors.New("from and to must differ"))
		return
	}
	amt, err := amount.Parse(q.Get("amount"))
	if err != nil || !amt.IsPositive() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid amount %q", q.Get("amount")))
		return
	}

	req := quote.Request{
		TokenIn:     from.Address,
		TokenOut:    to.Address,
		Amount:      amt,
		OutDecimals: to.Decimals,
		SlippageBps: s.opts.SlippageBps,
		Deadline:    s.opts.Deadline,
		MaxHops:     s.opts.MaxHops,
	}
	if sender := q.Get("sender"); sender != "" {
		if !common.IsHexAddress(sender) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sender %q", sender))
			return
		}
		req.Sender = common.HexToAddress(sender)
	}
	if bps := q.Get("slippage_bps"); bps != "" {
		n, err := strconv.Atoi(bps)
		if err != nil || n < 1 || n > 5000 {
			writeError(w, http.StatusBadRequest, session.ErrInvalidSlippage)
			return
		}
		req.SlippageBps = n
	}

	res, err := s.opts.Quoter.Quote(r.Context(), req)
	if err != nil {
		writeNotification(w, http.StatusBadGateway, notify.FromError(err, notify.KindQuoteFailed))
		return
	}

	resp := quoteResponse{
		From:      from.Symbol,
		To:        to.Symbol,
		AmountIn:  amt.String(),
		AmountOut: res.AmountOut.String(),
		Display:   amount.Format(res.AmountOut),
		Rate:      quote.ExchangeRate(amt, res.AmountOut, from.Symbol, to.Symbol),
	}
	if res.HasPriceImpact {
		resp.PriceImpact = quote.FormatImpact(res.PriceImpact)
	}
	if !res.Tx.Empty() {
		tx := res.Tx
		resp.Tx = &tx
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSwaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	wallet := q.Get("wallet")
	if wallet != "" {
		if !common.IsHexAddress(wallet) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid wallet %q", wallet))
			return
		}
		wallet = common.HexToAddress(wallet).Hex()
	}

	swaps, err := s.opts.History.RecentSwaps(r.Context(), wallet, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toSwapViews(swaps))
}

// handleShare validates a shared form link and returns the resolved state.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	st, err := session.ParseShareQuery(r.URL.Query(), s.opts.Tokens)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	canonical := url.Values{}
	canonical.Set("from", st.From.ID())
	canonical.Set("to", st.To.ID())
	if st.Amount != "" {
		canonical.Set("amount", st.Amount)
		canonical.Set("side", st.Side.String())
		canonical.Set("mode", string(st.Mode))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":   st.From,
		"to":     st.To,
		"amount": st.Amount,
		"side":   st.Side.String(),
		"mode":   st.Mode,
		"query":  canonical.Encode(),
	})
}

type swapView struct {
	ID            string    `json:"id"`
	Wallet        string    `json:"wallet"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	AmountIn      string    `json:"amount_in"`
	ExpectedOut   string    `json:"expected_out,omitempty"`
	ApproveTxHash string    `json:"approve_tx_hash,omitempty"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Status        string    `json:"status"`
	FailureKind   string    `json:"failure_kind,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toSwapViews(swaps []db.Swap) []swapView {
	out := make([]swapView, 0, len(swaps))
	for _, s := range swaps {
		out = append(out, swapView{
			ID:            s.ID,
			Wallet:        s.Wallet,
			From:          s.FromSymbol,
			To:            s.ToSymbol,
			AmountIn:      s.AmountIn,
			ExpectedOut:   s.ExpectedOut,
			ApproveTxHash: s.ApproveTxHash.String,
			TxHash:        s.TxHash.String,
			Status:        s.Status,
			FailureKind:   s.FailureKind.String,
			CreatedAt:     s.CreatedAt,
			UpdatedAt:     s.UpdatedAt,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeNotification(w http.ResponseWriter, status int, n notify.Notification) {
	writeJSON(w, status, map[string]string{
		"error": n.Message,
		"kind":  string(n.Kind),
		"title": n.Title,
		"hint":  n.Hint,
	})
}
