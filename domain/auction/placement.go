package auction

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// PlaceOrders admits one order per (buy, sell, hint) tuple for p. Orders
// p already has queued are skipped and not charged again. The summed sell
// amount is deposited in one ledger call; nothing changes if any tuple is
// rejected or the deposit fails.
func (a *Auction) PlaceOrders(
	ctx context.Context,
	l Ledger,
	now time.Time,
	p Participant,
	buyAmounts []sdkmath.Uint,
	sellAmounts []sdkmath.Uint,
	hints []Order,
) ([]Order, error) {
	if !a.canPlace(now) {
		return nil, ErrPlacementWindowClosed
	}
	return a.placeOrders(ctx, l, p, buyAmounts, sellAmounts, hints)
}

func (a *Auction) placeOrders(
	ctx context.Context,
	l Ledger,
	p Participant,
	buyAmounts []sdkmath.Uint,
	sellAmounts []sdkmath.Uint,
	hints []Order,
) ([]Order, error) {
	if p.ID == 0 || len(buyAmounts) == 0 ||
		len(buyAmounts) != len(sellAmounts) || len(buyAmounts) != len(hints) {
		return nil, ErrInvalidArguments
	}

	batch := make(map[Key]struct{}, len(buyAmounts))
	accepted := make([]Order, 0, len(buyAmounts))
	total := sdkmath.ZeroUint()

	for i := range buyAmounts {
		o := NewOrder(p.ID, buyAmounts[i], sellAmounts[i])
		if err := a.admissible(o); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}

		k := Encode(o)
		if _, dup := batch[k]; dup || a.queue.Contains(o) {
			continue
		}

		hint := hints[i]
		_, hintInBatch := batch[Encode(hint)]
		if !a.queue.ValidHint(hint, o) && !(hintInBatch && !hint.IsSentinel() && hint.Less(o)) {
			return nil, fmt.Errorf("order %d: %w", i, ErrInvalidInsertionPoint)
		}

		batch[k] = struct{}{}
		accepted = append(accepted, o)
		total = total.Add(o.SellAmount)
	}

	if len(accepted) == 0 {
		return accepted, nil
	}

	deposit := Transfer{Kind: Deposit, Owner: p.Identity, Asset: a.TokenIn, Amount: total}
	if err := execute(ctx, l, deposit); err != nil {
		return nil, err
	}

	for _, o := range accepted {
		a.queue.insert(o)
	}
	return accepted, nil
}

// admissible applies every placement rule except the time window.
func (a *Auction) admissible(o Order) error {
	if o.IsSentinel() || !isPositive(o.BuyAmount) || !isPositive(o.SellAmount) {
		return ErrZeroAmount
	}
	if !fitsAmount(o.BuyAmount) || !fitsAmount(o.SellAmount) {
		return ErrAmountTooLarge
	}

	// buy/sell must be strictly below the auctioneer's supply/minimum
	initial := a.InitialOrder
	if crossCmp(o.BuyAmount, initial.BuyAmount, initial.SellAmount, o.SellAmount) >= 0 {
		return ErrPriceNotImproving
	}
	if o.SellAmount.LTE(a.MinimumBiddingAmountPerOrder) {
		return ErrOrderTooSmall
	}
	return nil
}

// CancelOrders removes the caller's orders and refunds their sell amounts.
// Orders no longer queued are ignored; an order owned by someone else
// fails the whole call.
func (a *Auction) CancelOrders(
	ctx context.Context,
	l Ledger,
	now time.Time,
	p Participant,
	refs []Order,
) (sdkmath.Uint, error) {
	if !a.canCancel(now) {
		return sdkmath.ZeroUint(), ErrWindowClosed
	}

	seen := make(map[Key]struct{}, len(refs))
	present := make([]Order, 0, len(refs))
	refund := sdkmath.ZeroUint()

	for _, o := range refs {
		k := Encode(o)
		if _, dup := seen[k]; dup || !a.queue.Contains(o) {
			continue
		}
		if o.OwnerID != p.ID {
			return sdkmath.ZeroUint(), ErrForbidden
		}
		seen[k] = struct{}{}
		present = append(present, o)
		refund = refund.Add(o.SellAmount)
	}

	if len(present) == 0 {
		return refund, nil
	}

	payout := Transfer{Kind: Withdraw, Owner: p.Identity, Asset: a.TokenIn, Amount: refund}
	if err := execute(ctx, l, payout); err != nil {
		return sdkmath.ZeroUint(), err
	}

	for _, o := range present {
		a.queue.Remove(o)
	}
	return refund, nil
}
