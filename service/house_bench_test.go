package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"batchauction/domain/auction"
	"batchauction/infra/ledger"
	entrywal "batchauction/infra/wal/entry"
	exitwal "batchauction/infra/wal/exit"
)

func BenchmarkPlaceOrders_Core(b *testing.B) {
	entryWAL, _ := entrywal.Open(entrywal.Config{
		Dir:         b.TempDir(),
		SegmentSize: 64 << 20,
	})
	defer entryWAL.Close()
	exitWAL, _ := exitwal.Open(b.TempDir())
	defer exitWAL.Close()

	clock := NewManualClock(t0)
	h, err := New(testConfig(), ledger.NewMemory(), entryWAL, exitWAL, WithClock(clock))
	if err != nil {
		b.Fatal(err)
	}

	ids := make([]uint64, 8)
	for i := range ids {
		ids[i], err = h.InitiateAuction(ctx, auction.Params{
			Auctioneer:                   "auctioneer",
			TokenIn:                      "usdc",
			TokenOut:                     "gno",
			OrderCancellationEndDate:     t0.Add(time.Hour),
			EndDate:                      t0.Add(time.Hour),
			TotalOutSupply:               sdkmath.NewUint(1 << 40),
			MinBuyAmount:                 sdkmath.NewUint(1),
			MinimumBiddingAmountPerOrder: sdkmath.NewUint(1),
		})
		if err != nil {
			b.Fatal(err)
		}
	}

	var n atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := n.Add(1)
			_, err := h.PlaceOrders(ctx, ids[i%uint64(len(ids))], fmt.Sprintf("user-%d", i%64),
				[]sdkmath.Uint{sdkmath.NewUint(i)}, []sdkmath.Uint{sdkmath.NewUint(i + 1)},
				[]auction.Order{auction.QueueStart})
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}
