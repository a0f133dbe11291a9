package apilog

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/metrics"
)

const maxBodySize = 64 * 1024 // 64KB

// secretHeaders are written to the log as "[redacted]".
var secretHeaders = []string{"Authorization", "X-Api-Key"}

// Recorder persists upstream requests.
type Recorder interface {
	InsertAPIRequest(ctx context.Context, arg db.InsertAPIRequestParams) error
}

// Transport is an http.RoundTripper that records every request and response.
// With a nil recorder it only observes latency.
type Transport struct {
	inner    http.RoundTripper
	provider string
	recorder Recorder
	logger   *zap.Logger
}

// NewHTTPClient returns a client for provider whose requests are logged to
// recorder. recorder may be nil.
func NewHTTPClient(provider string, recorder Recorder, logger *zap.Logger) *http.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &Transport{
			inner:    http.DefaultTransport,
			provider: provider,
			recorder: recorder,
			logger:   logger.Named("apilog"),
		},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	start := time.Now()
	resp, err := t.inner.RoundTrip(req)
	elapsed := time.Since(start)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.UpstreamDuration.WithLabelValues(t.provider, status).Observe(elapsed.Seconds())

	if t.recorder == nil {
		return resp, err
	}

	params := db.InsertAPIRequestParams{
		Provider:       t.provider,
		Method:         req.Method,
		Url:            req.URL.String(),
		RequestHeaders: db.NullString(headerString(req.Header)),
		RequestBody:    db.NullString(truncate(string(reqBody))),
		DurationMs:     sql.NullInt64{Int64: elapsed.Milliseconds(), Valid: true},
	}

	if err != nil {
		params.Error = db.NullString(err.Error())
	} else {
		var respBody []byte
		if resp.Body != nil {
			respBody, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(respBody))
		}
		params.ResponseStatus = sql.NullInt64{Int64: int64(resp.StatusCode), Valid: true}
		params.ResponseHeaders = db.NullString(headerString(resp.Header))
		params.ResponseBody = db.NullString(truncate(string(respBody)))
	}

	// Insert asynchronously so we don't slow down the request
	go func() {
		if dbErr := t.recorder.InsertAPIRequest(context.Background(), params); dbErr != nil {
			t.logger.Warn("failed to log request", zap.String("method", params.Method), zap.String("url", params.Url), zap.Error(dbErr))
		}
	}()

	return resp, err
}

func headerString(h http.Header) string {
	h = h.Clone()
	for _, name := range secretHeaders {
		if h.Get(name) != "" {
			h.Set(name, "[redacted]")
		}
	}
	var buf bytes.Buffer
	h.Write(&buf)
	return buf.String()
}

func truncate(s string) string {
	if len(s) > maxBodySize {
		return s[:maxBodySize] + "...[truncated]"
	}
	return s
}
