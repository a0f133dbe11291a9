// Package metrics registers the prometheus collectors shared by the quote,
// price, balance and swap components.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "monswap"

var (
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of upstream API requests segmented by provider and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "status"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups segmented by cache name and result.",
	}, []string{"cache", "result"})

	QuoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "failures_total",
		Help:      "Failed quote requests segmented by failure kind.",
	}, []string{"kind"})

	StaleQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "stale_responses_total",
		Help:      "Quote responses dropped because a newer request or edit superseded them.",
	})

	Swaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "outcomes_total",
		Help:      "Terminal swap submissions segmented by state and failure kind.",
	}, []string{"state", "kind"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
