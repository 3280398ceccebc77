package service

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"batchauction/domain/auction"
	"batchauction/domain/registry"
	entrywal "batchauction/infra/wal/entry"
)

// ------------------------------------------------
// AUCTION LIFECYCLE
// ------------------------------------------------

// InitiateAuction takes custody of the auctioneer's supply and opens a
// new auction under the next free id.
func (h *House) InitiateAuction(ctx context.Context, p auction.Params) (id uint64, err error) {
	defer h.observe("initiate", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	now := h.clock.Now()
	p.OrderCancellationEndDate = timestamp(p.OrderCancellationEndDate.UnixNano())
	p.EndDate = timestamp(p.EndDate.UnixNano())

	h.initMu.Lock()
	defer h.initMu.Unlock()

	id = h.auctionIDs.Current() + 1
	a, err := auction.Initiate(ctx, h.journaled(entrywal.RecordInitiate, now, initiateCommand(id, p)), now, id, p)
	if err != nil {
		return 0, err
	}
	h.auctionIDs.Next()
	h.add(a)
	h.metrics.OpenAuctions.Add(1)

	h.logger.Info("auction initiated", "auction", id, "auctioneer", p.Auctioneer,
		"supply", p.TotalOutSupply.String(), "end", p.EndDate)

	h.announce(initiatedEvent(a))
	return id, nil
}

// RegisterUser binds a handle to identity ahead of its first order.
func (h *House) RegisterUser(ctx context.Context, identity string) (id uint64, err error) {
	defer h.observe("register", time.Now(), &err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	if identity == "" {
		return 0, registry.ErrEmptyIdentity
	}

	h.regMu.Lock()
	defer h.regMu.Unlock()

	if _, ok := h.registry.Lookup(identity); ok {
		return 0, registry.ErrAlreadyRegistered
	}
	p := auction.Participant{ID: h.registry.NextID(), Identity: identity}

	cmd := &entrywal.Command{Caller: identity, UserID: p.ID}
	if err := h.record(entrywal.RecordRegister, h.clock.Now(), cmd); err != nil {
		return 0, err
	}
	h.announce(h.bind(p))
	return p.ID, nil
}

// ------------------------------------------------
// ORDERS
// ------------------------------------------------

func (h *House) PlaceOrders(
	ctx context.Context,
	auctionID uint64,
	caller string,
	buyAmounts []sdkmath.Uint,
	sellAmounts []sdkmath.Uint,
	hints []auction.Order,
) (placed []auction.Order, err error) {
	defer h.observe("place", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	err = h.withAuction(auctionID, func(a *auction.Auction) error {
		now := h.clock.Now()
		p, fresh, release, err := h.participant(caller)
		if err != nil {
			return err
		}
		defer release()

		cmd := placeCommand(auctionID, caller, buyAmounts, sellAmounts, hints)
		if fresh {
			cmd.UserID = p.ID
		}
		placed, err = a.PlaceOrders(ctx, h.journaled(entrywal.RecordPlace, now, cmd), now, p, buyAmounts, sellAmounts, hints)
		if err != nil || len(placed) == 0 {
			return err
		}
		h.metrics.OrdersPlaced.Add(float64(len(placed)))

		events := make([]event, 0, len(placed)+1)
		if fresh {
			events = append(events, h.bind(p))
		}
		h.announce(append(events, orderEvents(EventNewSellOrder, auctionID, placed)...)...)
		return nil
	})
	return placed, err
}

// CancelOrders refunds the caller's orders that are still queued and
// returns the refunded amount.
func (h *House) CancelOrders(
	ctx context.Context,
	auctionID uint64,
	caller string,
	refs []auction.Order,
) (refund sdkmath.Uint, err error) {
	defer h.observe("cancel", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	refund = sdkmath.ZeroUint()
	err = h.withAuction(auctionID, func(a *auction.Auction) error {
		now := h.clock.Now()
		id, _ := h.registry.Lookup(caller)
		p := auction.Participant{ID: id, Identity: caller}

		// only orders still queued are announced
		present := make([]auction.Order, 0, len(refs))
		for _, o := range refs {
			if a.ContainsOrder(o) {
				present = append(present, o)
			}
		}

		cmd := &entrywal.Command{AuctionID: auctionID, Caller: caller, Orders: orderKeys(refs)}
		refund, err = a.CancelOrders(ctx, h.journaled(entrywal.RecordCancel, now, cmd), now, p, refs)
		if err != nil || len(present) == 0 {
			return err
		}
		h.metrics.OrdersCancelled.Add(float64(len(present)))

		h.announce(orderEvents(EventCancellationSellOrder, auctionID, dedupe(present))...)
		return nil
	})
	return refund, err
}

func dedupe(orders []auction.Order) []auction.Order {
	seen := make(map[auction.Key]struct{}, len(orders))
	out := orders[:0]
	for _, o := range orders {
		k := auction.Encode(o)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

// ------------------------------------------------
// CLEARING
// ------------------------------------------------

func (h *House) PrecalculateSellAmountSum(ctx context.Context, auctionID uint64, caller string, steps int) (err error) {
	defer h.observe("precalculate", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	return h.withAuction(auctionID, func(a *auction.Auction) error {
		now := h.clock.Now()
		order, sum := a.InterimOrder, a.InterimSumBidAmount
		if err := a.PrecalculateSellAmountSum(now, steps); err != nil {
			return err
		}

		// nothing moves, so the checkpoint is journaled after the fact and
		// put back if that fails
		cmd := &entrywal.Command{AuctionID: auctionID, Caller: caller, Steps: int64(steps)}
		if err := h.record(entrywal.RecordPrecalculate, now, cmd); err != nil {
			a.InterimOrder, a.InterimSumBidAmount = order, sum
			return err
		}
		return nil
	})
}

// SettleAuction clears the auction under the fee schedule in effect now.
func (h *House) SettleAuction(ctx context.Context, auctionID uint64, caller string) (res auction.ClearingResult, err error) {
	defer h.observe("settle", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	fees := h.Fees()
	err = h.withAuction(auctionID, func(a *auction.Auction) error {
		now := h.clock.Now()
		cmd := &entrywal.Command{
			AuctionID:    auctionID,
			Caller:       caller,
			FeeNumerator: fees.Numerator,
			FeeReceiver:  fees.Receiver,
		}
		res, err = a.SettleAuction(ctx, h.journaled(entrywal.RecordSettle, now, cmd), now, fees)
		if err != nil {
			return err
		}
		h.settled(res)
		h.announce(clearedEvent(res))
		return nil
	})
	return res, err
}

// SettleAuctionAtomically places one last order and settles in the same
// step.
func (h *House) SettleAuctionAtomically(
	ctx context.Context,
	auctionID uint64,
	caller string,
	buyAmounts []sdkmath.Uint,
	sellAmounts []sdkmath.Uint,
	hints []auction.Order,
) (res auction.ClearingResult, err error) {
	defer h.observe("settle_atomic", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	fees := h.Fees()
	err = h.withAuction(auctionID, func(a *auction.Auction) error {
		now := h.clock.Now()
		p, fresh, release, err := h.participant(caller)
		if err != nil {
			return err
		}
		defer release()

		cmd := placeCommand(auctionID, caller, buyAmounts, sellAmounts, hints)
		cmd.FeeNumerator = fees.Numerator
		cmd.FeeReceiver = fees.Receiver
		if fresh {
			cmd.UserID = p.ID
		}

		before := a.OrderCount()
		res, err = a.SettleAuctionAtomically(ctx, h.journaled(entrywal.RecordSettleAtomic, now, cmd),
			now, fees, p, buyAmounts, sellAmounts, hints)
		if err != nil {
			return err
		}
		h.settled(res)

		events := make([]event, 0, 3)
		if fresh {
			events = append(events, h.bind(p))
		}
		if a.OrderCount() > before {
			o := auction.NewOrder(p.ID, buyAmounts[0], sellAmounts[0])
			h.metrics.OrdersPlaced.Add(1)
			events = append(events, orderEvents(EventNewSellOrder, auctionID, []auction.Order{o})...)
		}
		h.announce(append(events, clearedEvent(res))...)
		return nil
	})
	return res, err
}

func (h *House) settled(res auction.ClearingResult) {
	h.metrics.Settlements.Add(1)
	h.metrics.OpenAuctions.Add(-1)
	h.logger.Info("auction cleared",
		"auction", res.AuctionID,
		"price", res.Price.String(),
		"raised", res.Raised.String(),
		"fill", res.AuctioneerFill.String(),
		"fee", res.Fee.String(),
		"threshold_missed", res.MinFundingThresholdNotReached,
	)
}

// ------------------------------------------------
// CLAIMS
// ------------------------------------------------

// ClaimFromParticipantOrder pays out one user's orders. Any caller may
// trigger it; proceeds go to the owner.
func (h *House) ClaimFromParticipantOrder(
	ctx context.Context,
	auctionID uint64,
	caller string,
	refs []auction.Order,
) (res auction.ClaimResult, err error) {
	defer h.observe("claim_orders", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	err = h.withAuction(auctionID, func(a *auction.Auction) error {
		cmd := &entrywal.Command{AuctionID: auctionID, Caller: caller, Orders: orderKeys(refs)}
		l := h.journaled(entrywal.RecordClaimOrders, h.clock.Now(), cmd)
		res, err = a.ClaimFromParticipantOrder(ctx, l, h.registry, refs)
		if err != nil {
			return err
		}
		h.metrics.OrdersClaimed.Add(float64(len(refs)))
		h.announce(claimedEvent(auctionID, refs, res))
		return nil
	})
	return res, err
}

func (h *House) ClaimFromAuctioneerOrder(ctx context.Context, auctionID uint64, caller string) (res auction.ClaimResult, err error) {
	defer h.observe("claim_auctioneer", time.Now(), &err)
	defer guard(&err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	err = h.withAuction(auctionID, func(a *auction.Auction) error {
		cmd := &entrywal.Command{AuctionID: auctionID, Caller: caller}
		res, err = a.ClaimFromAuctioneerOrder(ctx, h.journaled(entrywal.RecordClaimAuctioneer, h.clock.Now(), cmd))
		if err != nil {
			return err
		}

		h.announce(event{typ: EventClaimedFromAuctioneer, auctionID: auctionID, payload: ClaimedFromAuctioneer{
			AuctionID:  auctionID,
			Auctioneer: res.Owner,
			InAmount:   res.InAmount,
			OutAmount:  res.OutAmount,
		}})
		return nil
	})
	return res, err
}

// ------------------------------------------------
// ADMINISTRATION
// ------------------------------------------------

// SetFeeParameters changes the schedule for auctions settled from now
// on. Settled auctions keep the fee they were cleared with.
func (h *House) SetFeeParameters(ctx context.Context, caller string, numerator uint64, receiver string) (err error) {
	defer h.observe("set_fees", time.Now(), &err)

	h.gate.RLock()
	defer h.gate.RUnlock()

	if h.cfg.Owner == "" || caller != h.cfg.Owner {
		return ErrNotOwner
	}
	fees := auction.FeeSchedule{Numerator: numerator, Receiver: receiver}
	if err := fees.Validate(); err != nil {
		return err
	}

	cmd := &entrywal.Command{Caller: caller, FeeNumerator: numerator, FeeReceiver: receiver}
	if err := h.record(entrywal.RecordSetFees, h.clock.Now(), cmd); err != nil {
		return err
	}

	h.mu.Lock()
	h.fees = fees
	h.mu.Unlock()

	h.logger.Info("fee schedule changed", "numerator", numerator, "receiver", receiver)
	return nil
}
