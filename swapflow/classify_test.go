package swapflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/wallet"
)

type rpcError struct {
	msg  string
	data string
}

func (e rpcError) Error() string          { return e.msg }
func (e rpcError) ErrorData() interface{} { return e.data }

// Error(string) "Too little received"
const tooLittleReceived = "0x08c379a0" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"0000000000000000000000000000000000000000000000000000000000000013" +
	"546f6f206c6974746c6520726563656976656400000000000000000000000000"

func TestClassifySubmit(t *testing.T) {
	tests := []struct {
		err  error
		want notify.Kind
	}{
		{nil, ""},
		{wallet.ErrRejected, notify.KindSubmitRejected},
		{fmt.Errorf("signing: %w", wallet.ErrRejected), notify.KindSubmitRejected},
		{errors.New("User denied transaction signature"), notify.KindSubmitRejected},
		{errors.New("insufficient funds for gas * price + value"), notify.KindSubmitFunds},
		{errors.New("gas required exceeds allowance (30000000)"), notify.KindSubmitGasLimit},
		{errors.New("intrinsic gas too low"), notify.KindSubmitGasLimit},
		{errors.New("execution reverted: UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"), notify.KindSubmitSlippage},
		{rpcError{msg: "execution reverted", data: tooLittleReceived}, notify.KindSubmitSlippage},
		{errors.New("nonce too low: next nonce 5, tx nonce 4"), notify.KindSubmitNonce},
		{errors.New("replacement transaction underpriced"), notify.KindSubmitNonce},
		{errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"), notify.KindSubmitNetwork},
		{context.DeadlineExceeded, notify.KindSubmitNetwork},
		{errors.New("execution reverted"), notify.KindSubmitFailed},
		{notify.Wrap(notify.KindQuoteLiquidity, errors.New("no route")), notify.KindQuoteLiquidity},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySubmit(tt.err))
		})
	}
}

func TestClassifyApproval(t *testing.T) {
	tests := []struct {
		err  error
		want notify.Kind
	}{
		{wallet.ErrRejected, notify.KindApprovalRejected},
		{errors.New("insufficient funds for gas * price + value"), notify.KindApprovalGas},
		{errors.New("out of gas"), notify.KindApprovalGas},
		{errors.New("execution reverted: ERC20: approve to the zero address"), notify.KindApprovalReverted},
		{errors.New("something odd"), notify.KindApprovalFailed},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyApproval(tt.err))
		})
	}
}
