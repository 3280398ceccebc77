package service

import (
	"context"
	"fmt"

	"batchauction/domain/auction"
	entrywal "batchauction/infra/wal/entry"
)

/*
Replay rebuilds state from the journal records after seq `after`.

IMPORTANT:
- This MUST run before accepting traffic
- Transfers are not repeated and the outbox is NOT written again
*/
func (h *House) Replay(ctx context.Context, dir string, after uint64) (uint64, error) {
	lastSeq, err := entrywal.Replay(dir, after, func(rec *entrywal.Record) error {
		if err := h.apply(ctx, rec); err != nil {
			return fmt.Errorf("replay seq %d (%s): %w", rec.Seq, rec.Type, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Resume sequencing AFTER replay
	h.seq.Reset(lastSeq)
	h.syncGauges()

	h.logger.Info("journal replay completed", "after", after, "last_seq", lastSeq)
	return lastSeq, nil
}

func (h *House) apply(ctx context.Context, rec *entrywal.Record) (err error) {
	defer guard(&err)

	cmd, err := entrywal.UnmarshalCommand(rec.Data)
	if err != nil {
		return err
	}
	now := timestamp(rec.Time)

	switch rec.Type {
	case entrywal.RecordInitiate:
		p, err := initiateParams(cmd)
		if err != nil {
			return err
		}
		a, err := auction.Initiate(ctx, replayLedger, now, cmd.AuctionID, p)
		if err != nil {
			return err
		}
		h.add(a)
		h.auctionIDs.Reset(cmd.AuctionID)
		return nil

	case entrywal.RecordRegister:
		h.registry.Restore(cmd.UserID, cmd.Caller)
		return nil

	case entrywal.RecordSetFees:
		h.mu.Lock()
		h.fees = feeSchedule(cmd)
		h.mu.Unlock()
		return nil
	}

	// a first order binds its caller's handle
	if cmd.UserID != 0 && (rec.Type == entrywal.RecordPlace || rec.Type == entrywal.RecordSettleAtomic) {
		h.registry.Restore(cmd.UserID, cmd.Caller)
	}

	return h.withAuction(cmd.AuctionID, func(a *auction.Auction) error {
		switch rec.Type {
		case entrywal.RecordPlace:
			buy, sell, hints, err := placeArgs(cmd)
			if err != nil {
				return err
			}
			_, err = a.PlaceOrders(ctx, replayLedger, now, h.known(cmd.Caller), buy, sell, hints)
			return err

		case entrywal.RecordCancel:
			refs, err := parseOrders(cmd.Orders)
			if err != nil {
				return err
			}
			_, err = a.CancelOrders(ctx, replayLedger, now, h.known(cmd.Caller), refs)
			return err

		case entrywal.RecordPrecalculate:
			// the cap applied when the record was written, not now
			steps := int(cmd.Steps)
			if prev := a.MaxScanSteps(); steps > prev {
				a.SetMaxScanSteps(steps)
				defer a.SetMaxScanSteps(prev)
			}
			return a.PrecalculateSellAmountSum(now, steps)

		case entrywal.RecordSettle:
			_, err := a.SettleAuction(ctx, replayLedger, now, feeSchedule(cmd))
			return err

		case entrywal.RecordSettleAtomic:
			buy, sell, hints, err := placeArgs(cmd)
			if err != nil {
				return err
			}
			_, err = a.SettleAuctionAtomically(ctx, replayLedger, now, feeSchedule(cmd),
				h.known(cmd.Caller), buy, sell, hints)
			return err

		case entrywal.RecordClaimOrders:
			refs, err := parseOrders(cmd.Orders)
			if err != nil {
				return err
			}
			_, err = a.ClaimFromParticipantOrder(ctx, replayLedger, h.registry, refs)
			return err

		case entrywal.RecordClaimAuctioneer:
			_, err := a.ClaimFromAuctioneerOrder(ctx, replayLedger)
			return err

		default:
			return fmt.Errorf("%w: record type %d", entrywal.ErrMalformedCommand, rec.Type)
		}
	})
}

// known resolves a caller whose handle was journaled before. An unknown
// caller gets handle 0, which owns nothing.
func (h *House) known(caller string) auction.Participant {
	id, _ := h.registry.Lookup(caller)
	return auction.Participant{ID: id, Identity: caller}
}

func (h *House) syncGauges() {
	open := 0
	for _, id := range h.AuctionIDs() {
		s, err := h.slot(id)
		if err != nil {
			continue
		}
		s.mu.Lock()
		if !s.a.Settled() {
			open++
		}
		s.mu.Unlock()
	}
	h.metrics.OpenAuctions.Set(float64(open))
	h.metrics.Users.Set(float64(h.registry.Len()))
}
