package notify

import (
	"errors"
	"fmt"
)

// Kind identifies a user-facing condition. Every failure that reaches the user
// carries exactly one Kind.
type Kind string

const (
	KindUnknownPrice Kind = "unknown_price"

	KindQuoteLiquidity Kind = "quote_insufficient_liquidity"
	KindQuoteNetwork   Kind = "quote_network"
	KindQuoteFailed    Kind = "quote_failed"

	KindApprovalRejected Kind = "approval_rejected"
	KindApprovalReverted Kind = "approval_reverted"
	KindApprovalGas      Kind = "approval_insufficient_gas"
	KindApprovalFailed   Kind = "approval_failed"

	KindSubmitRejected Kind = "submit_rejected"
	KindSubmitFunds    Kind = "submit_insufficient_funds"
	KindSubmitGasLimit Kind = "submit_gas_limit"
	KindSubmitSlippage Kind = "submit_slippage"
	KindSubmitNonce    Kind = "submit_nonce_conflict"
	KindSubmitNetwork  Kind = "submit_network"
	KindSubmitFailed   Kind = "submit_failed"
	KindSubmitReverted Kind = "submit_reverted"

	KindConfirmTimeout Kind = "confirm_timeout"

	KindBalancesUnavailable Kind = "balances_unavailable"

	KindApprovalConfirmed Kind = "approval_confirmed"
	KindSwapConfirmed     Kind = "swap_confirmed"
)

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err tagged with kind. A nil err yields nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
