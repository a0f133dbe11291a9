package tracker

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/notify"
)

type fakeReceipts struct {
	mu       sync.Mutex
	receipts map[common.Hash]*types.Receipt
	errs     map[common.Hash]error
	lookups  int
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if err, ok := f.errs[hash]; ok {
		return nil, err
	}
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeReceipts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func seed(t *testing.T, store *db.Store, id, status string, hash common.Hash) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateSwap(ctx, db.CreateSwapParams{
		ID: id, Wallet: "0xabc", FromToken: "0x0", ToToken: "0x1",
		FromSymbol: "MON", ToSymbol: "USDC", AmountIn: "5", Status: db.SwapPending,
	}))
	require.NoError(t, store.UpdateSwapTx(ctx, db.UpdateSwapTxParams{
		TxHash: db.NullString(hash.Hex()), ExpectedOut: "9.98", Status: status, ID: id,
	}))
}

func TestPollSettlesSwaps(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "monswap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ok, reverted, missing, broken := common.HexToHash("0x01"), common.HexToHash("0x02"), common.HexToHash("0x03"), common.HexToHash("0x04")
	seed(t, store, "ok", db.SwapTimeout, ok)
	seed(t, store, "reverted", db.SwapSubmitted, reverted)
	seed(t, store, "missing", db.SwapTimeout, missing)
	seed(t, store, "broken", db.SwapTimeout, broken)

	receipts := &fakeReceipts{
		receipts: map[common.Hash]*types.Receipt{
			ok:       {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)},
			reverted: {Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(2)},
		},
		errs: map[common.Hash]error{broken: errors.New("rpc down")},
	}
	rec := notify.NewRecorder(0)
	tr := New(store, receipts, rec, nil, clock.NewMock())

	ctx := context.Background()
	tr.poll(ctx)

	get := func(id string) db.Swap {
		s, err := store.GetSwap(ctx, id)
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, db.SwapSuccess, get("ok").Status)
	assert.Equal(t, db.SwapFailed, get("reverted").Status)
	assert.Equal(t, string(notify.KindSubmitReverted), get("reverted").FailureKind.String)
	assert.Equal(t, db.SwapTimeout, get("missing").Status)
	assert.Equal(t, db.SwapTimeout, get("broken").Status)

	assert.ElementsMatch(t, []notify.Kind{notify.KindSwapConfirmed, notify.KindSubmitReverted}, rec.Kinds())

	unresolved, err := store.ListUnresolvedSwaps(ctx)
	require.NoError(t, err)
	assert.Len(t, unresolved, 2)
}

func TestRunPollsOnInterval(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "monswap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	seed(t, store, "missing", db.SwapTimeout, common.HexToHash("0x03"))

	receipts := &fakeReceipts{}
	mock := clock.NewMock()
	tr := New(store, receipts, nil, nil, mock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return receipts.count() == 1 }, time.Second, time.Millisecond)
	mock.Add(DefaultInterval)
	require.Eventually(t, func() bool { return receipts.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	<-done
}
