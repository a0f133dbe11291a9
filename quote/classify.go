package quote

import (
	"net/http"
	"strings"

	"github.com/RaghavSood/monswap/notify"
)

var liquidityMarkers = []string{
	"liquidity",
	"no route",
	"route not found",
	"no path",
	"insufficient output",
}

// Classify maps a failed quote request onto the quote failure kinds.
// transportErr is set when no response was received.
func Classify(status int, message string, transportErr error) notify.Kind {
	if transportErr != nil {
		return notify.KindQuoteNetwork
	}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return notify.KindQuoteNetwork
	}

	msg := strings.ToLower(message)
	for _, marker := range liquidityMarkers {
		if strings.Contains(msg, marker) {
			return notify.KindQuoteLiquidity
		}
	}
	return notify.KindQuoteFailed
}
