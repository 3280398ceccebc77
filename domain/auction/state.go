package auction

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// State is a detached copy of an auction, including its queue. It is
// what snapshots persist.
type State struct {
	ID         uint64
	Auctioneer string
	TokenIn    string
	TokenOut   string

	InitialOrder Order

	OrderCancellationEndDate     time.Time
	EndDate                      time.Time
	MinimumBiddingAmountPerOrder sdkmath.Uint
	MinFundingThreshold          sdkmath.Uint
	IsAtomicClosureAllowed       bool

	InterimSumBidAmount sdkmath.Uint
	InterimOrder        Order

	Settled                       bool
	FeeNumerator                  uint64
	FeeReceiver                   string
	ClearingPriceOrder            Order
	VolumeClearingPriceOrder      sdkmath.Uint
	MinFundingThresholdNotReached bool
	Raised                        sdkmath.Uint
	AuctioneerFill                sdkmath.Uint
	Fee                           sdkmath.Uint
	AuctioneerClaimed             bool

	MaxScanSteps int
	Orders       []Order
}

func (a *Auction) State() State {
	return State{
		ID:                            a.ID,
		Auctioneer:                    a.Auctioneer,
		TokenIn:                       a.TokenIn,
		TokenOut:                      a.TokenOut,
		InitialOrder:                  a.InitialOrder,
		OrderCancellationEndDate:      a.OrderCancellationEndDate,
		EndDate:                       a.EndDate,
		MinimumBiddingAmountPerOrder:  a.MinimumBiddingAmountPerOrder,
		MinFundingThreshold:           a.MinFundingThreshold,
		IsAtomicClosureAllowed:        a.IsAtomicClosureAllowed,
		InterimSumBidAmount:           a.InterimSumBidAmount,
		InterimOrder:                  a.InterimOrder,
		Settled:                       a.settled,
		FeeNumerator:                  a.FeeNumerator,
		FeeReceiver:                   a.FeeReceiver,
		ClearingPriceOrder:            a.ClearingPriceOrder,
		VolumeClearingPriceOrder:      a.VolumeClearingPriceOrder,
		MinFundingThresholdNotReached: a.MinFundingThresholdNotReached,
		Raised:                        a.Raised,
		AuctioneerFill:                a.AuctioneerFill,
		Fee:                           a.Fee,
		AuctioneerClaimed:             a.AuctioneerClaimed,
		MaxScanSteps:                  a.maxScanSteps,
		Orders:                        a.queue.Orders(),
	}
}

// FromState rebuilds an auction. Queued orders must be valid and
// distinct.
func FromState(s State) (*Auction, error) {
	a := &Auction{
		ID:                            s.ID,
		Auctioneer:                    s.Auctioneer,
		TokenIn:                       s.TokenIn,
		TokenOut:                      s.TokenOut,
		InitialOrder:                  s.InitialOrder,
		OrderCancellationEndDate:      s.OrderCancellationEndDate,
		EndDate:                       s.EndDate,
		MinimumBiddingAmountPerOrder:  s.MinimumBiddingAmountPerOrder,
		MinFundingThreshold:           orZero(s.MinFundingThreshold),
		IsAtomicClosureAllowed:        s.IsAtomicClosureAllowed,
		InterimSumBidAmount:           orZero(s.InterimSumBidAmount),
		InterimOrder:                  s.InterimOrder,
		FeeNumerator:                  s.FeeNumerator,
		FeeReceiver:                   s.FeeReceiver,
		ClearingPriceOrder:            s.ClearingPriceOrder,
		VolumeClearingPriceOrder:      orZero(s.VolumeClearingPriceOrder),
		MinFundingThresholdNotReached: s.MinFundingThresholdNotReached,
		Raised:                        orZero(s.Raised),
		AuctioneerFill:                orZero(s.AuctioneerFill),
		Fee:                           orZero(s.Fee),
		AuctioneerClaimed:             s.AuctioneerClaimed,
		settled:                       s.Settled,
		maxScanSteps:                  DefaultMaxScanSteps,
		queue:                         NewOrderQueue(),
	}
	a.SetMaxScanSteps(s.MaxScanSteps)

	if !a.InitialOrder.validAmounts() || a.MinimumBiddingAmountPerOrder.IsNil() {
		return nil, ErrInvalidOrder
	}
	for _, o := range s.Orders {
		if !o.validAmounts() || a.queue.Contains(o) {
			return nil, ErrInvalidOrder
		}
		a.queue.insert(o)
	}
	return a, nil
}

func orZero(u sdkmath.Uint) sdkmath.Uint {
	if u.IsNil() {
		return sdkmath.ZeroUint()
	}
	return u
}
