package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"batchauction/domain/auction"
	"batchauction/domain/registry"
	"batchauction/infra/ledger"
	entrywal "batchauction/infra/wal/entry"
	exitwal "batchauction/infra/wal/exit"
	"batchauction/snapshot"
)

func TestAuctionLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	require.Equal(t, uint64(1), id)

	alice := f.place(t, id, "alice", 50_000, 60_000)
	bob := f.place(t, id, "bob", 80_000, 60_000)
	carol := f.place(t, id, "carol", 10_000, 20_000)

	refund, err := f.house.CancelOrders(ctx, id, "carol", []auction.Order{carol, carol})
	require.NoError(t, err)
	require.Equal(t, "20000", refund.String())

	_, err = f.house.SettleAuction(ctx, id, "anyone")
	require.ErrorIs(t, err, auction.ErrNotClosed)

	f.clock.Set(t0.Add(3 * time.Hour))
	res, err := f.house.SettleAuction(ctx, id, "anyone")
	require.NoError(t, err)
	require.True(t, res.ClearingOrder.Equal(bob))
	require.Equal(t, "15000", res.Volume.String())
	require.Equal(t, "75000", res.Raised.String())
	require.Equal(t, "750", res.Fee.String())
	require.Equal(t, "0.75", res.Price.String())

	for _, o := range []auction.Order{alice, bob} {
		_, err := f.house.ClaimFromParticipantOrder(ctx, id, "anyone", []auction.Order{o})
		require.NoError(t, err)
	}
	_, err = f.house.ClaimFromAuctioneerOrder(ctx, id, "anyone")
	require.NoError(t, err)

	require.Equal(t, "80000", f.balance("alice", "gno"))
	require.Equal(t, "20000", f.balance("bob", "gno"))
	require.Equal(t, "-15000", f.balance("bob", "usdc"))
	require.Equal(t, "0", f.balance("carol", "usdc"))
	require.Equal(t, "74250", f.balance("auctioneer", "usdc"))
	require.Equal(t, "750", f.balance("treasury", "usdc"))
	require.Equal(t, "0", f.ledger.Custody("usdc").String())
	require.Equal(t, "0", f.ledger.Custody("gno").String())

	require.Equal(t, []string{
		EventAuctionInitiated,
		EventNewUser, EventNewSellOrder,
		EventNewUser, EventNewSellOrder,
		EventNewUser, EventNewSellOrder,
		EventCancellationSellOrder,
		EventAuctionCleared,
		EventClaimedFromOrder, EventClaimedFromOrder,
		EventClaimedFromAuctioneer,
	}, f.eventTypes(t))

	v, err := f.house.GetAuction(id)
	require.NoError(t, err)
	require.Equal(t, auction.PhaseFinished, v.Phase)
	require.NotNil(t, v.Result)
	require.Zero(t, v.SecondsRemainingInPlacement)
	require.True(t, v.AuctioneerClaimed)
	require.Empty(t, v.Orders)
}

func TestClearedEventPayload(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	f.place(t, id, "alice", 50_000, 60_000)
	f.place(t, id, "bob", 80_000, 60_000)
	f.clock.Set(t0.Add(3 * time.Hour))
	_, err := f.house.SettleAuction(ctx, id, "anyone")
	require.NoError(t, err)

	var rec exitwal.ExitRecord
	require.NoError(t, f.outbox.ScanByState(exitwal.StateNew, func(r exitwal.ExitRecord) error {
		if r.Type == EventAuctionCleared {
			rec = r
		}
		return nil
	}))
	require.Equal(t, id, rec.AuctionID)

	var ev AuctionCleared
	require.NoError(t, json.Unmarshal(rec.Payload, &ev))
	require.Equal(t, "75000", ev.Raised.String())
	require.Equal(t, "0.75", ev.Price.String())
	require.Equal(t, "treasury", ev.FeeReceiver)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	o := f.place(t, id, "alice", 50_000, 60_000)

	ok, err := f.house.ContainsOrder(id, o)
	require.NoError(t, err)
	require.True(t, ok)

	secs, err := f.house.GetSecondsRemainingInPlacement(id)
	require.NoError(t, err)
	require.Equal(t, int64(7200), secs)

	f.clock.Advance(90 * time.Minute)
	v, err := f.house.GetAuction(id)
	require.NoError(t, err)
	require.Equal(t, auction.PhasePlacement, v.Phase)
	require.Equal(t, int64(1800), v.SecondsRemainingInPlacement)
	require.Nil(t, v.Result)

	_, err = f.house.ContainsOrder(99, o)
	require.ErrorIs(t, err, ErrUnknownAuction)
	_, err = f.house.PlaceOrders(ctx, 99, "alice", nil, nil, nil)
	require.ErrorIs(t, err, ErrUnknownAuction)
	require.Equal(t, []uint64{id}, f.house.AuctionIDs())
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)

	id, err := f.house.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	_, err = f.house.RegisterUser(ctx, "alice")
	require.ErrorIs(t, err, registry.ErrAlreadyRegistered)

	// placing reuses the registered handle
	auctionID := f.initiate(t, 100_000, 10_000)
	o := f.place(t, auctionID, "alice", 50_000, 60_000)
	require.Equal(t, id, o.OwnerID)
	require.Equal(t, []string{EventNewUser, EventAuctionInitiated, EventNewSellOrder}, f.eventTypes(t))
}

func TestFeeScheduleIsCapturedAtSettlement(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	f.place(t, id, "alice", 50_000, 60_000)
	f.place(t, id, "bob", 80_000, 60_000)

	require.ErrorIs(t, f.house.SetFeeParameters(ctx, "alice", 5, "alice"), ErrNotOwner)
	require.ErrorIs(t, f.house.SetFeeParameters(ctx, "owner", 16, "treasury"), auction.ErrFeeTooHigh)
	require.NoError(t, f.house.SetFeeParameters(ctx, "owner", 15, "vault"))

	f.clock.Set(t0.Add(3 * time.Hour))
	res, err := f.house.SettleAuction(ctx, id, "anyone")
	require.NoError(t, err)
	require.Equal(t, "1125", res.Fee.String())

	require.NoError(t, f.house.SetFeeParameters(ctx, "owner", 0, ""))
	v, err := f.house.GetAuction(id)
	require.NoError(t, err)
	require.Equal(t, uint64(15), v.FeeNumerator)
	require.Equal(t, "vault", v.FeeReceiver)
	require.Equal(t, "1125", f.balance("vault", "usdc"))
}

func TestAtomicSettlement(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	f.place(t, id, "alice", 50_000, 60_000)

	f.clock.Set(t0.Add(3 * time.Hour))
	res, err := f.house.SettleAuctionAtomically(ctx, id, "bob",
		[]sdkmath.Uint{u(80_000)}, []sdkmath.Uint{u(60_000)}, []auction.Order{auction.QueueStart})
	require.NoError(t, err)
	require.Equal(t, "75000", res.Raised.String())

	_, err = f.house.SettleAuction(ctx, id, "anyone")
	require.ErrorIs(t, err, auction.ErrAlreadySettled)

	types := f.eventTypes(t)
	require.Equal(t, []string{EventNewUser, EventNewSellOrder, EventAuctionCleared}, types[len(types)-3:])
}

func TestFailedCommandsLeaveNoTrace(t *testing.T) {
	f := newFixture(t)
	strict := ledger.NewStrictMemory()
	h, err := New(testConfig(), strict, f.journal, f.outbox, WithClock(f.clock))
	require.NoError(t, err)

	strict.Credit("auctioneer", "gno", u(100_000))
	id, err := h.InitiateAuction(ctx, auction.Params{
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		OrderCancellationEndDate:     t0.Add(time.Hour),
		EndDate:                      t0.Add(2 * time.Hour),
		TotalOutSupply:               u(100_000),
		MinBuyAmount:                 u(10_000),
		MinimumBiddingAmountPerOrder: u(1),
	})
	require.NoError(t, err)

	_, err = h.PlaceOrders(ctx, id, "alice",
		[]sdkmath.Uint{u(50_000)}, []sdkmath.Uint{u(60_000)}, []auction.Order{auction.QueueStart})
	require.ErrorIs(t, err, auction.ErrTransferFailed)

	// neither the order nor alice's handle exist
	require.Equal(t, []string{EventAuctionInitiated}, f.eventTypes(t))
	v, err := h.GetAuction(id)
	require.NoError(t, err)
	require.Empty(t, v.Orders)
	_, ok := h.Registry().Lookup("alice")
	require.False(t, ok)
}

func TestRejectedFirstOrderBindsNoHandle(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	f.place(t, id, "alice", 50_000, 60_000)
	before := f.eventTypes(t)

	// buy/sell at the auctioneer's own ratio does not improve it
	_, err := f.house.PlaceOrders(ctx, id, "mallory",
		[]sdkmath.Uint{u(100_000)}, []sdkmath.Uint{u(10_000)}, []auction.Order{auction.QueueStart})
	require.ErrorIs(t, err, auction.ErrPriceNotImproving)

	f.clock.Set(t0.Add(3 * time.Hour))
	_, err = f.house.SettleAuctionAtomically(ctx, id, "trent",
		[]sdkmath.Uint{u(100_000)}, []sdkmath.Uint{u(10_000)}, []auction.Order{auction.QueueStart})
	require.ErrorIs(t, err, auction.ErrPriceNotImproving)

	for _, who := range []string{"mallory", "trent"} {
		_, ok := f.house.Registry().Lookup(who)
		require.False(t, ok, who)
	}
	require.Equal(t, before, f.eventTypes(t))

	// the next newcomer gets the handle nobody took
	id2, err := f.house.RegisterUser(ctx, "oscar")
	require.NoError(t, err)
	require.Equal(t, uint64(2), id2)
	requireSameState(t, f.house, f.recovered(t))
}

func TestReplayRestoresIdenticalState(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	alice := f.place(t, id, "alice", 50_000, 60_000)
	f.place(t, id, "bob", 80_000, 60_000)
	carol := f.place(t, id, "carol", 10_000, 20_000)
	_, err := f.house.CancelOrders(ctx, id, "carol", []auction.Order{carol})
	require.NoError(t, err)

	// a rejected placement binds no handle for dave
	_, err = f.house.PlaceOrders(ctx, id, "dave",
		[]sdkmath.Uint{u(0)}, []sdkmath.Uint{u(10)}, []auction.Order{auction.QueueStart})
	require.ErrorIs(t, err, auction.ErrZeroAmount)
	f.place(t, id, "erin", 1_000, 2_000)

	open := f.initiate(t, 5_000, 1_000)
	f.place(t, open, "alice", 100, 1_000)

	require.NoError(t, f.house.SetFeeParameters(ctx, "owner", 12, "treasury"))
	f.clock.Set(t0.Add(3 * time.Hour))
	require.NoError(t, f.house.PrecalculateSellAmountSum(ctx, id, "anyone", 1))
	_, err = f.house.SettleAuction(ctx, id, "anyone")
	require.NoError(t, err)
	_, err = f.house.ClaimFromParticipantOrder(ctx, id, "anyone", []auction.Order{alice})
	require.NoError(t, err)

	got := f.recovered(t)
	requireSameState(t, f.house, got)

	erin, ok := got.Registry().Lookup("erin")
	require.True(t, ok)
	require.Equal(t, uint64(4), erin)
	_, ok = got.Registry().Lookup("dave")
	require.False(t, ok)

	// the replayed house keeps allocating where the first one stopped
	next, err := got.InitiateAuction(ctx, auction.Params{
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		OrderCancellationEndDate:     t0.Add(4 * time.Hour),
		EndDate:                      t0.Add(5 * time.Hour),
		TotalOutSupply:               u(1),
		MinBuyAmount:                 u(1),
		MinimumBiddingAmountPerOrder: u(1),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), next)
}

func TestSnapshotThenReplay(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	f.place(t, id, "alice", 50_000, 60_000)

	seq, err := f.house.WriteSnapshot(&snapshot.Writer{Dir: f.snapDir})
	require.NoError(t, err)
	require.NotZero(t, seq)

	f.place(t, id, "bob", 80_000, 60_000)
	f.clock.Set(t0.Add(3 * time.Hour))
	_, err = f.house.SettleAuction(ctx, id, "anyone")
	require.NoError(t, err)

	requireSameState(t, f.house, f.recovered(t))
}

func TestRestoreNeedsEmptyHouse(t *testing.T) {
	f := newFixture(t)
	f.initiate(t, 100, 10)
	require.ErrorIs(t, f.house.Restore(&snapshot.Snapshot{}), ErrNotEmpty)
}

func TestConcurrentAuctionsReplay(t *testing.T) {
	f := newFixture(t)
	ids := make([]uint64, 4)
	for i := range ids {
		ids[i] = f.initiate(t, 1_000_000, 1_000)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for i := uint64(1); i <= 20; i++ {
				caller := fmt.Sprintf("user-%d", i%7)
				_, err := f.house.PlaceOrders(ctx, id, caller,
					[]sdkmath.Uint{u(i)}, []sdkmath.Uint{u(100 + i)}, []auction.Order{auction.QueueStart})
				if err != nil {
					errs <- err
					return
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	requireSameState(t, f.house, f.recovered(t))
}

func TestJournalFailureIsReported(t *testing.T) {
	f := newFixture(t)
	h, err := New(testConfig(), f.ledger, brokenJournal{}, nil, WithClock(f.clock))
	require.NoError(t, err)

	_, err = h.RegisterUser(ctx, "alice")
	require.ErrorIs(t, err, ErrJournal)
	_, ok := h.Registry().Lookup("alice")
	require.False(t, ok)
}

func TestJournalFailureLeavesNoEffect(t *testing.T) {
	f := newFixture(t)
	j := &flakyJournal{Journal: f.journal}
	h, err := New(testConfig(), f.ledger, j, f.outbox, WithClock(f.clock))
	require.NoError(t, err)
	f.house = h

	id := f.initiate(t, 100_000, 10_000)
	_, err = h.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	alice := f.place(t, id, "alice", 50_000, 60_000)
	events := f.eventTypes(t)
	seq := h.Snapshot().Seq

	j.fail = true
	_, err = h.PlaceOrders(ctx, id, "alice",
		[]sdkmath.Uint{u(10)}, []sdkmath.Uint{u(50)}, []auction.Order{auction.QueueStart})
	require.ErrorIs(t, err, ErrJournal)
	_, err = h.PlaceOrders(ctx, id, "bob",
		[]sdkmath.Uint{u(10)}, []sdkmath.Uint{u(50)}, []auction.Order{auction.QueueStart})
	require.ErrorIs(t, err, ErrJournal)
	_, err = h.CancelOrders(ctx, id, "alice", []auction.Order{alice})
	require.ErrorIs(t, err, ErrJournal)
	_, err = h.InitiateAuction(ctx, auction.Params{
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		OrderCancellationEndDate:     t0.Add(time.Hour),
		EndDate:                      t0.Add(2 * time.Hour),
		TotalOutSupply:               u(1_000),
		MinBuyAmount:                 u(1),
		MinimumBiddingAmountPerOrder: u(1),
	})
	require.ErrorIs(t, err, ErrJournal)
	require.ErrorIs(t, h.SetFeeParameters(ctx, "owner", 3, "vault"), ErrJournal)

	f.clock.Set(t0.Add(3 * time.Hour))
	_, err = h.SettleAuction(ctx, id, "anyone")
	require.ErrorIs(t, err, ErrJournal)

	v, err := h.GetAuction(id)
	require.NoError(t, err)
	require.False(t, v.Settled)
	require.Len(t, v.Orders, 1)
	require.Equal(t, "60000", f.ledger.Custody("usdc").String())
	require.Equal(t, "100000", f.ledger.Custody("gno").String())
	require.Equal(t, "-60000", f.balance("alice", "usdc"))
	require.Equal(t, []uint64{id}, h.AuctionIDs())
	_, ok := h.Registry().Lookup("bob")
	require.False(t, ok)
	require.Equal(t, events, f.eventTypes(t))
	require.Equal(t, seq, h.Snapshot().Seq)

	// the house carries on once the journal is back
	j.fail = false
	res, err := h.SettleAuction(ctx, id, "anyone")
	require.NoError(t, err)
	require.Equal(t, "treasury", res.FeeReceiver)
	requireSameState(t, h, f.recovered(t))
}

func TestPrecalculateJournalFailureRestoresCheckpoint(t *testing.T) {
	f := newFixture(t)
	j := &flakyJournal{Journal: f.journal}
	h, err := New(testConfig(), f.ledger, j, f.outbox, WithClock(f.clock))
	require.NoError(t, err)
	f.house = h

	id := f.initiate(t, 100_000, 10_000)
	for i, who := range []string{"alice", "bob", "carol", "dave"} {
		f.place(t, id, who, 1_000, uint64(2_000+1_000*i))
	}
	f.clock.Set(t0.Add(3 * time.Hour))
	before := h.Snapshot().Auctions[0]

	j.fail = true
	require.ErrorIs(t, h.PrecalculateSellAmountSum(ctx, id, "anyone", 2), ErrJournal)
	after := h.Snapshot().Auctions[0]
	require.Equal(t, before.InterimOrder, after.InterimOrder)
	require.Equal(t, before.InterimSumBidAmount, after.InterimSumBidAmount)
}

func TestRecoverWithLowerScanCap(t *testing.T) {
	f := newFixture(t)
	id := f.initiate(t, 100_000, 10_000)
	for i, who := range []string{"alice", "bob", "carol", "dave"} {
		f.place(t, id, who, 1_000, uint64(2_000+1_000*i))
	}
	f.clock.Set(t0.Add(3 * time.Hour))
	require.NoError(t, f.house.PrecalculateSellAmountSum(ctx, id, "anyone", 3))

	cfg := testConfig()
	cfg.MaxScanSteps = 2
	h, err := New(cfg, ledger.NewMemory(), nil, nil, WithClock(f.clock))
	require.NoError(t, err)
	_, err = h.Recover(ctx, f.snapDir, f.walDir)
	require.NoError(t, err)

	want, got := f.house.Snapshot().Auctions[0], h.Snapshot().Auctions[0]
	require.Equal(t, want.InterimOrder, got.InterimOrder)
	require.Equal(t, want.InterimSumBidAmount, got.InterimSumBidAmount)
	require.Equal(t, 2, got.MaxScanSteps)

	// the new cap binds live calls
	require.ErrorIs(t, h.PrecalculateSellAmountSum(ctx, id, "anyone", 3), auction.ErrTooManyOrders)
}

func TestOutboxFailureKeepsEventsForRetry(t *testing.T) {
	f := newFixture(t)
	o := &flakyOutbox{Outbox: f.outbox}
	h, err := New(testConfig(), f.ledger, f.journal, o, WithClock(f.clock))
	require.NoError(t, err)
	f.house = h

	id := f.initiate(t, 100_000, 10_000)

	o.fail = true
	f.place(t, id, "alice", 50_000, 60_000)
	require.Equal(t, 2, h.Unsent())
	require.Equal(t, []string{EventAuctionInitiated}, f.eventTypes(t))

	o.fail = false
	f.place(t, id, "bob", 80_000, 60_000)
	require.Zero(t, h.Unsent())
	require.Equal(t, []string{
		EventAuctionInitiated,
		EventNewUser, EventNewSellOrder,
		EventNewUser, EventNewSellOrder,
	}, f.eventTypes(t))
}

type brokenJournal struct{}

func (brokenJournal) Append(*entrywal.Record) error { return errors.New("disk full") }
func (brokenJournal) TruncateBefore(uint64) error   { return nil }

type flakyJournal struct {
	Journal
	fail bool
}

func (j *flakyJournal) Append(r *entrywal.Record) error {
	if j.fail {
		return errors.New("disk full")
	}
	return j.Journal.Append(r)
}

type flakyOutbox struct {
	Outbox
	fail bool
}

func (o *flakyOutbox) PutNew(recs ...exitwal.ExitRecord) error {
	if o.fail {
		return errors.New("outbox offline")
	}
	return o.Outbox.PutNew(recs...)
}
