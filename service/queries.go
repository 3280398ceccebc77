package service

import (
	"sort"

	"batchauction/domain/auction"
)

// AuctionView is a detached copy of one auction for readers.
type AuctionView struct {
	auction.State
	Phase                       auction.Phase
	SecondsRemainingInPlacement int64
	// Result is set once the auction settled.
	Result *auction.ClearingResult
}

func (h *House) ContainsOrder(auctionID uint64, o auction.Order) (bool, error) {
	var ok bool
	err := h.withAuction(auctionID, func(a *auction.Auction) error {
		ok = a.ContainsOrder(o)
		return nil
	})
	return ok, err
}

func (h *House) GetSecondsRemainingInPlacement(auctionID uint64) (int64, error) {
	var secs int64
	err := h.withAuction(auctionID, func(a *auction.Auction) error {
		secs = a.SecondsRemainingInPlacement(h.clock.Now())
		return nil
	})
	return secs, err
}

func (h *House) GetAuction(auctionID uint64) (AuctionView, error) {
	var v AuctionView
	err := h.withAuction(auctionID, func(a *auction.Auction) error {
		now := h.clock.Now()
		v = AuctionView{
			State:                       a.State(),
			Phase:                       a.Phase(now),
			SecondsRemainingInPlacement: a.SecondsRemainingInPlacement(now),
		}
		if a.Settled() {
			res := a.Result()
			v.Result = &res
		}
		return nil
	})
	return v, err
}

// AuctionIDs lists every hosted auction in ascending order.
func (h *House) AuctionIDs() []uint64 {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.auctions))
	for id := range h.auctions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
