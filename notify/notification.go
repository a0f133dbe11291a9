package notify

import (
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a message shown to the user.
type Notification struct {
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Hint     string    `json:"hint,omitempty"`
	TxHash   string    `json:"tx_hash,omitempty"`
	At       time.Time `json:"at"`
}

type entry struct {
	severity Severity
	title    string
	hint     string
}

var catalog = map[Kind]entry{
	KindUnknownPrice: {SeverityWarning, "Price unavailable",
		"USD values are hidden until a price is available. Enter the amount in token units."},

	KindQuoteLiquidity: {SeverityWarning, "Insufficient liquidity",
		"There is not enough liquidity for this pair. Try a smaller amount or a different token."},
	KindQuoteNetwork: {SeverityError, "Quote service unreachable",
		"Check your connection and refresh the quote."},
	KindQuoteFailed: {SeverityError, "Could not fetch a quote",
		"Refresh the quote to try again."},

	KindApprovalRejected: {SeverityWarning, "Approval rejected",
		"You rejected the approval request. Approve the token to continue."},
	KindApprovalReverted: {SeverityError, "Approval reverted",
		"The approval transaction reverted on-chain. Try again."},
	KindApprovalGas: {SeverityError, "Not enough gas for approval",
		"Top up the native balance to pay for the approval transaction."},
	KindApprovalFailed: {SeverityError, "Approval failed",
		"Try approving again."},

	KindSubmitRejected: {SeverityWarning, "Transaction rejected",
		"You rejected the swap in your wallet. Your amounts are kept so you can retry."},
	KindSubmitFunds: {SeverityError, "Insufficient funds",
		"Your balance does not cover the amount plus gas. Reduce the amount."},
	KindSubmitGasLimit: {SeverityError, "Gas limit exceeded",
		"The transaction needs more gas than allowed. Try a smaller amount."},
	KindSubmitSlippage: {SeverityError, "Price moved beyond slippage",
		"Increase the slippage tolerance or refresh the quote."},
	KindSubmitNonce: {SeverityError, "Nonce conflict",
		"Another transaction is pending from this wallet. Wait for it to confirm and retry."},
	KindSubmitNetwork: {SeverityError, "Network error",
		"The RPC endpoint did not respond. Check your connection and retry."},
	KindSubmitFailed: {SeverityError, "Swap failed",
		"Refresh the quote and try again."},
	KindSubmitReverted: {SeverityError, "Swap reverted",
		"The transaction was mined but reverted. Check the explorer for details."},

	KindConfirmTimeout: {SeverityWarning, "Confirmation pending",
		"The transaction was not confirmed in time. Its status is unknown; check the explorer before retrying."},

	KindBalancesUnavailable: {SeverityWarning, "Balances unavailable",
		"Balances could not be loaded. They will refresh automatically."},

	KindApprovalConfirmed: {SeverityInfo, "Approval confirmed", ""},
	KindSwapConfirmed:     {SeveritySuccess, "Swap confirmed", ""},
}

// New builds a notification for kind. err, when set, becomes the message.
func New(kind Kind, err error) Notification {
	e, ok := catalog[kind]
	if !ok {
		e = entry{severity: SeverityError, title: "Something went wrong"}
	}
	n := Notification{
		Kind:     kind,
		Severity: e.severity,
		Title:    e.title,
		Hint:     e.hint,
		At:       time.Now(),
	}
	if err != nil {
		n.Message = err.Error()
	}
	return n
}

// FromError builds a notification from err, falling back to fallback when err
// carries no Kind.
func FromError(err error, fallback Kind) Notification {
	kind, ok := KindOf(err)
	if !ok {
		kind = fallback
	}
	return New(kind, err)
}

// Hint returns the remediation hint for kind.
func Hint(kind Kind) string {
	return catalog[kind].hint
}
