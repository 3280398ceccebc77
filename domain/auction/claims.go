package auction

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// ClaimResult is what a claim paid out. InAmount is in TokenIn,
// OutAmount in TokenOut.
type ClaimResult struct {
	OwnerID   uint64
	Owner     string
	InAmount  sdkmath.Uint
	OutAmount sdkmath.Uint
}

// ClaimFromParticipantOrder pays out a batch of one user's orders after
// settlement. Anyone may trigger it; the payout always goes to the owner.
// Each order can be claimed once.
func (a *Auction) ClaimFromParticipantOrder(ctx context.Context, l Ledger, dir Directory, refs []Order) (ClaimResult, error) {
	if !a.settled {
		return ClaimResult{}, ErrNotYetFinished
	}
	if len(refs) == 0 {
		return ClaimResult{}, ErrInvalidArguments
	}

	owner := refs[0].OwnerID
	seen := make(map[Key]struct{}, len(refs))
	in := sdkmath.ZeroUint()
	out := sdkmath.ZeroUint()

	for _, o := range refs {
		if o.IsSentinel() || o.OwnerID != owner {
			return ClaimResult{}, ErrCrossUserClaim
		}
		k := Encode(o)
		if _, dup := seen[k]; dup || !a.queue.Contains(o) {
			return ClaimResult{}, ErrAlreadyClaimed
		}
		seen[k] = struct{}{}

		dIn, dOut := a.payout(o)
		in = in.Add(dIn)
		out = out.Add(dOut)
	}

	identity, ok := dir.Identity(owner)
	if !ok {
		return ClaimResult{}, ErrUnknownUser
	}

	err := execute(ctx, l,
		Transfer{Kind: Withdraw, Owner: identity, Asset: a.TokenIn, Amount: in},
		Transfer{Kind: Withdraw, Owner: identity, Asset: a.TokenOut, Amount: out},
	)
	if err != nil {
		return ClaimResult{}, err
	}

	for _, o := range refs {
		a.queue.Remove(o)
	}
	return ClaimResult{OwnerID: owner, Owner: identity, InAmount: in, OutAmount: out}, nil
}

// payout splits one settled order into the in-asset refunded and the
// out-asset bought.
func (a *Auction) payout(o Order) (in, out sdkmath.Uint) {
	c := a.ClearingPriceOrder
	switch {
	case a.MinFundingThresholdNotReached:
		return o.SellAmount, sdkmath.ZeroUint()
	case o.Equal(c):
		vol := a.VolumeClearingPriceOrder
		return o.SellAmount.Sub(vol), mulDiv(vol, c.BuyAmount, c.SellAmount)
	case o.Less(c):
		return sdkmath.ZeroUint(), mulDiv(o.SellAmount, c.BuyAmount, c.SellAmount)
	default:
		return o.SellAmount, sdkmath.ZeroUint()
	}
}

// ClaimFromAuctioneerOrder pays the auctioneer the raised in-asset net of
// the fee plus any unsold supply. It succeeds once.
func (a *Auction) ClaimFromAuctioneerOrder(ctx context.Context, l Ledger) (ClaimResult, error) {
	if !a.settled {
		return ClaimResult{}, ErrNotYetFinished
	}
	if a.AuctioneerClaimed {
		return ClaimResult{}, ErrAlreadyClaimed
	}

	supply := a.InitialOrder.SellAmount
	in, out := sdkmath.ZeroUint(), supply
	if !a.MinFundingThresholdNotReached {
		in = a.Raised.Sub(a.Fee)
		out = supply.Sub(a.AuctioneerFill)
	}

	err := execute(ctx, l,
		Transfer{Kind: Withdraw, Owner: a.Auctioneer, Asset: a.TokenIn, Amount: in},
		Transfer{Kind: Withdraw, Owner: a.Auctioneer, Asset: a.TokenOut, Amount: out},
	)
	if err != nil {
		return ClaimResult{}, err
	}

	a.AuctioneerClaimed = true
	return ClaimResult{Owner: a.Auctioneer, InAmount: in, OutAmount: out}, nil
}
