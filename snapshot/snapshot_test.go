package snapshot

import (
	"os"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"batchauction/domain/auction"
)

func sampleState() auction.State {
	best := auction.NewOrder(1, sdkmath.NewUint(50), sdkmath.NewUint(60))
	end := time.Unix(1_700_007_200, 0).UTC()
	return auction.State{
		ID:                           3,
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		InitialOrder:                 auction.NewOrder(0, sdkmath.NewUint(10), sdkmath.NewUint(100)),
		OrderCancellationEndDate:     end.Add(-time.Hour),
		EndDate:                      end,
		MinimumBiddingAmountPerOrder: sdkmath.OneUint(),
		MinFundingThreshold:          sdkmath.ZeroUint(),
		InterimSumBidAmount:          sdkmath.NewUint(60),
		InterimOrder:                 best,
		ClearingPriceOrder:           auction.QueueStart,
		VolumeClearingPriceOrder:     sdkmath.ZeroUint(),
		Raised:                       sdkmath.ZeroUint(),
		AuctioneerFill:               sdkmath.ZeroUint(),
		Fee:                          sdkmath.ZeroUint(),
		MaxScanSteps:                 7,
		Orders: []auction.Order{
			best,
			auction.NewOrder(2, sdkmath.NewUint(80), sdkmath.NewUint(60)),
		},
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}

	in := &Snapshot{
		Seq:           42,
		Created:       time.Unix(1_700_000_000, 0).UTC(),
		LastAuctionID: 3,
		Fees:          FeeEntry{Numerator: 15, Receiver: "treasury"},
		Users:         []UserEntry{{ID: 1, Identity: "alice"}, {ID: 2, Identity: "bob"}},
		Auctions:      []AuctionEntry{NewAuctionEntry(sampleState())},
	}
	require.NoError(t, w.Write(in))

	out, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, in.Seq, out.Seq)
	require.True(t, in.Created.Equal(out.Created))
	require.Equal(t, in.Users, out.Users)
	require.Equal(t, in.Fees, out.Fees)
	require.Equal(t, in.Auctions, out.Auctions)

	// only the final file is left behind
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestLoadMissingSnapshot(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Zero(t, s.Seq)
	require.Empty(t, s.Auctions)
}

func TestAuctionEntryRebuildsAuction(t *testing.T) {
	st := sampleState()
	back, err := NewAuctionEntry(st).State()
	require.NoError(t, err)

	a, err := auction.FromState(back)
	require.NoError(t, err)
	require.Equal(t, 2, a.OrderCount())
	require.True(t, a.InterimOrder.Equal(st.InterimOrder))
	require.True(t, a.ClearingPriceOrder.IsStart())
	require.Equal(t, "60", a.InterimSumBidAmount.String())
	require.Equal(t, 7, a.MaxScanSteps())
}

func TestAuctionEntryRejectsBadAmount(t *testing.T) {
	e := NewAuctionEntry(sampleState())
	e.Raised = "not-a-number"
	_, err := e.State()
	require.Error(t, err)
}
