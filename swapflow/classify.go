package swapflow

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/RaghavSood/monswap/chain"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/wallet"
)

var (
	rejectedMarkers = []string{"user rejected", "user denied", "rejected the request", "action_rejected"}
	fundsMarkers    = []string{"insufficient funds", "insufficient balance"}
	gasMarkers      = []string{"gas required exceeds", "out of gas", "intrinsic gas", "exceeds block gas limit", "gas limit"}
	slippageMarkers = []string{"too little received", "insufficient_output_amount", "insufficient output amount", "slippage", "price impact too high"}
	nonceMarkers    = []string{"nonce too low", "nonce too high", "replacement transaction underpriced", "already known", "invalid nonce"}
	networkMarkers  = []string{"connection refused", "connection reset", "no such host", "timeout", "eof", "network"}
)

func errorText(err error) string {
	text := err.Error()
	if reason := chain.RevertReason(err); reason != "" {
		text += " " + reason
	}
	return strings.ToLower(text)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func rejected(err error, text string) bool {
	return errors.Is(err, wallet.ErrRejected) || containsAny(text, rejectedMarkers)
}

func networkFailure(err error, text string) bool {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return containsAny(text, networkMarkers)
}

// ClassifySubmit maps a gas estimation or submission error to its
// notification kind.
func ClassifySubmit(err error) notify.Kind {
	if err == nil {
		return ""
	}
	if kind, ok := notify.KindOf(err); ok {
		return kind
	}

	text := errorText(err)
	switch {
	case rejected(err, text):
		return notify.KindSubmitRejected
	case containsAny(text, fundsMarkers):
		return notify.KindSubmitFunds
	case containsAny(text, slippageMarkers):
		return notify.KindSubmitSlippage
	case containsAny(text, gasMarkers):
		return notify.KindSubmitGasLimit
	case containsAny(text, nonceMarkers):
		return notify.KindSubmitNonce
	case networkFailure(err, text):
		return notify.KindSubmitNetwork
	}
	return notify.KindSubmitFailed
}

// ClassifyApproval maps an approval error to its notification kind.
func ClassifyApproval(err error) notify.Kind {
	if err == nil {
		return ""
	}
	if kind, ok := notify.KindOf(err); ok {
		return kind
	}

	text := errorText(err)
	switch {
	case rejected(err, text):
		return notify.KindApprovalRejected
	case containsAny(text, fundsMarkers), containsAny(text, gasMarkers):
		return notify.KindApprovalGas
	case strings.Contains(text, "revert"):
		return notify.KindApprovalReverted
	}
	return notify.KindApprovalFailed
}
