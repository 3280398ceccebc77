package service

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"batchauction/domain/auction"
	"batchauction/infra/ledger"
	entrywal "batchauction/infra/wal/entry"
	exitwal "batchauction/infra/wal/exit"
)

var (
	ctx = context.Background()
	t0  = time.Unix(1_700_000_000, 0).UTC()
)

func u(v uint64) sdkmath.Uint { return sdkmath.NewUint(v) }

type fixture struct {
	house   *House
	clock   *ManualClock
	ledger  *ledger.Memory
	journal *entrywal.WAL
	outbox  *exitwal.ExitWAL
	walDir  string
	snapDir string
}

func testConfig() Config {
	return Config{
		Owner:        "owner",
		Fees:         auction.FeeSchedule{Numerator: 10, Receiver: "treasury"},
		MaxScanSteps: 100,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:   NewManualClock(t0),
		ledger:  ledger.NewMemory(),
		walDir:  t.TempDir(),
		snapDir: t.TempDir(),
	}

	var err error
	f.journal, err = entrywal.Open(entrywal.Config{Dir: f.walDir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.journal.Close() })

	f.outbox, err = exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.outbox.Close() })

	f.house, err = New(testConfig(), f.ledger, f.journal, f.outbox, WithClock(f.clock))
	require.NoError(t, err)
	return f
}

// recovered rebuilds a second house from f's snapshot dir and journal.
func (f *fixture) recovered(t *testing.T) *House {
	t.Helper()
	h, err := New(testConfig(), ledger.NewMemory(), nil, nil, WithClock(f.clock))
	require.NoError(t, err)
	_, err = h.Recover(ctx, f.snapDir, f.walDir)
	require.NoError(t, err)
	return h
}

func (f *fixture) initiate(t *testing.T, supply, minBuy uint64) uint64 {
	t.Helper()
	id, err := f.house.InitiateAuction(ctx, auction.Params{
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		OrderCancellationEndDate:     t0.Add(time.Hour),
		EndDate:                      t0.Add(2 * time.Hour),
		TotalOutSupply:               u(supply),
		MinBuyAmount:                 u(minBuy),
		MinimumBiddingAmountPerOrder: u(1),
		IsAtomicClosureAllowed:       true,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) place(t *testing.T, id uint64, caller string, buy, sell uint64) auction.Order {
	t.Helper()
	placed, err := f.house.PlaceOrders(ctx, id, caller,
		[]sdkmath.Uint{u(buy)}, []sdkmath.Uint{u(sell)}, []auction.Order{auction.QueueStart})
	require.NoError(t, err)
	require.Len(t, placed, 1)
	return placed[0]
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	var out []string
	require.NoError(t, f.outbox.ScanPending(func(r exitwal.ExitRecord) error {
		out = append(out, r.Type)
		return nil
	}))
	return out
}

func (f *fixture) balance(owner, asset string) string {
	return f.ledger.Balance(owner, asset).String()
}

// requireSameState compares two houses through their snapshots, which
// hold amounts as strings and orders as keys.
func requireSameState(t *testing.T, want, got *House) {
	t.Helper()
	a, b := want.Snapshot(), got.Snapshot()
	require.Equal(t, a.Seq, b.Seq)
	require.Equal(t, a.LastAuctionID, b.LastAuctionID)
	require.Equal(t, a.Fees, b.Fees)
	require.Equal(t, a.Users, b.Users)
	require.Equal(t, a.Auctions, b.Auctions)
}
