// Package tracker settles swaps whose confirmation poll gave up, by checking
// their receipts again in the background.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/metrics"
	"github.com/RaghavSood/monswap/notify"
)

const DefaultInterval = 15 * time.Second

// Store is the slice of *db.Store the tracker uses.
type Store interface {
	ListUnresolvedSwaps(ctx context.Context) ([]db.Swap, error)
	UpdateSwapStatus(ctx context.Context, arg db.UpdateSwapStatusParams) error
}

// ReceiptSource looks up receipts. *ethclient.Client and wallet.Provider
// satisfy it.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Tracker struct {
	store    Store
	receipts ReceiptSource
	notifier notify.Notifier
	logger   *zap.Logger
	clock    clock.Clock
	interval time.Duration
}

func New(store Store, receipts ReceiptSource, notifier notify.Notifier, logger *zap.Logger, clk clock.Clock) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		store:    store,
		receipts: receipts,
		notifier: notifier,
		logger:   logger.Named("tracker"),
		clock:    clk,
		interval: DefaultInterval,
	}
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	// Run once immediately on start
	t.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	pending, err := t.store.ListUnresolvedSwaps(ctx)
	if err != nil {
		t.logger.Error("listing unresolved swaps", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	t.logger.Debug("checking unresolved swaps", zap.Int("count", len(pending)))

	for _, swap := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		hash := common.HexToHash(swap.TxHash.String)
		receipt, err := t.receipts.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			t.logger.Warn("receipt lookup failed", zap.String("swap", swap.ID), zap.Error(err))
			continue
		}

		t.settle(ctx, swap, receipt)
	}
}

func (t *Tracker) settle(ctx context.Context, swap db.Swap, receipt *types.Receipt) {
	status, kind := db.SwapSuccess, notify.KindSwapConfirmed
	failure := ""
	if receipt.Status != types.ReceiptStatusSuccessful {
		status, kind = db.SwapFailed, notify.KindSubmitReverted
		failure = string(kind)
	}

	if err := t.store.UpdateSwapStatus(ctx, db.UpdateSwapStatusParams{
		Status:      status,
		FailureKind: db.NullString(failure),
		ID:          swap.ID,
	}); err != nil {
		t.logger.Error("updating swap", zap.String("swap", swap.ID), zap.Error(err))
		return
	}
	metrics.Swaps.WithLabelValues("tracked_"+status, failure).Inc()
	t.logger.Info("swap settled", zap.String("swap", swap.ID), zap.String("status", status))

	var n notify.Notification
	if failure == "" {
		n = notify.New(kind, nil)
		n.Message = fmt.Sprintf("Swapped %s %s for %s after a delayed confirmation", swap.AmountIn, swap.FromSymbol, swap.ToSymbol)
	} else {
		n = notify.New(kind, fmt.Errorf("swap %s reverted in block %s", swap.TxHash.String, receipt.BlockNumber))
	}
	n.TxHash = swap.TxHash.String
	t.notifier.Notify(ctx, n)
}
