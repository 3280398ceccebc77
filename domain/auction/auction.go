package auction

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
)

const (
	// FeeDenominator expresses fee numerators per mille.
	FeeDenominator = 1000
	// MaxFeeNumerator caps the protocol fee at 1.5%.
	MaxFeeNumerator = 15
	// DefaultMaxScanSteps bounds a single precalculation call.
	DefaultMaxScanSteps = 1000
)

// Params are the auctioneer's inputs to Initiate.
type Params struct {
	Auctioneer string
	// TokenIn is the bidding asset, TokenOut the auctioned one.
	TokenIn  string
	TokenOut string

	OrderCancellationEndDate time.Time
	EndDate                  time.Time

	TotalOutSupply               sdkmath.Uint
	MinBuyAmount                 sdkmath.Uint
	MinimumBiddingAmountPerOrder sdkmath.Uint
	MinFundingThreshold          sdkmath.Uint
	IsAtomicClosureAllowed       bool
}

// Validate checks the parameters against the current time.
func (p Params) Validate(now time.Time) error {
	if p.Auctioneer == "" || p.TokenIn == "" || p.TokenOut == "" {
		return ErrInvalidArguments
	}
	if p.TokenIn == p.TokenOut {
		return ErrSameAssets
	}
	if !isPositive(p.TotalOutSupply) || !isPositive(p.MinBuyAmount) ||
		!isPositive(p.MinimumBiddingAmountPerOrder) {
		return ErrZeroAmount
	}
	if !fitsAmount(p.TotalOutSupply) || !fitsAmount(p.MinBuyAmount) ||
		!fitsAmount(p.MinimumBiddingAmountPerOrder) {
		return ErrAmountTooLarge
	}
	if !p.MinFundingThreshold.IsNil() && !fitsAmount(p.MinFundingThreshold) {
		return ErrAmountTooLarge
	}
	if p.OrderCancellationEndDate.After(p.EndDate) {
		return ErrInvalidTimeWindow
	}
	if !p.EndDate.After(now) {
		return ErrEndDateInPast
	}
	return nil
}

// FeeSchedule is the protocol fee in effect when an auction settles.
type FeeSchedule struct {
	Numerator uint64
	Receiver  string
}

func (f FeeSchedule) Validate() error {
	if f.Numerator > MaxFeeNumerator {
		return ErrFeeTooHigh
	}
	if f.Numerator > 0 && f.Receiver == "" {
		return ErrInvalidArguments
	}
	return nil
}

// Auction is the aggregate for one batch auction.
type Auction struct {
	ID         uint64
	Auctioneer string
	TokenIn    string
	TokenOut   string

	// InitialOrder carries the auctioneer's supply (SellAmount) and the
	// minimum in-asset wanted for it (BuyAmount).
	InitialOrder Order

	OrderCancellationEndDate     time.Time
	EndDate                      time.Time
	MinimumBiddingAmountPerOrder sdkmath.Uint
	MinFundingThreshold          sdkmath.Uint
	IsAtomicClosureAllowed       bool

	// checkpoint
	InterimSumBidAmount sdkmath.Uint
	InterimOrder        Order

	// settlement
	FeeNumerator                  uint64
	FeeReceiver                   string
	ClearingPriceOrder            Order
	VolumeClearingPriceOrder      sdkmath.Uint
	MinFundingThresholdNotReached bool
	Raised                        sdkmath.Uint
	AuctioneerFill                sdkmath.Uint
	Fee                           sdkmath.Uint
	AuctioneerClaimed             bool

	settled      bool
	maxScanSteps int
	queue        *OrderQueue
}

// Initiate validates params, takes custody of the auctioneer's supply and
// returns the new auction.
func Initiate(ctx context.Context, l Ledger, now time.Time, id uint64, p Params) (*Auction, error) {
	if err := p.Validate(now); err != nil {
		return nil, err
	}

	deposit := Transfer{Kind: Deposit, Owner: p.Auctioneer, Asset: p.TokenOut, Amount: p.TotalOutSupply}
	if err := execute(ctx, l, deposit); err != nil {
		return nil, err
	}
	return newAuction(id, p), nil
}

func newAuction(id uint64, p Params) *Auction {
	threshold := p.MinFundingThreshold
	if threshold.IsNil() {
		threshold = sdkmath.ZeroUint()
	}

	return &Auction{
		ID:         id,
		Auctioneer: p.Auctioneer,
		TokenIn:    p.TokenIn,
		TokenOut:   p.TokenOut,
		InitialOrder: Order{
			BuyAmount:  p.MinBuyAmount,
			SellAmount: p.TotalOutSupply,
		},
		OrderCancellationEndDate:     p.OrderCancellationEndDate,
		EndDate:                      p.EndDate,
		MinimumBiddingAmountPerOrder: p.MinimumBiddingAmountPerOrder,
		MinFundingThreshold:          threshold,
		IsAtomicClosureAllowed:       p.IsAtomicClosureAllowed,

		InterimSumBidAmount: sdkmath.ZeroUint(),
		InterimOrder:        QueueStart,

		ClearingPriceOrder:       QueueStart,
		VolumeClearingPriceOrder: sdkmath.ZeroUint(),
		Raised:                   sdkmath.ZeroUint(),
		AuctioneerFill:           sdkmath.ZeroUint(),
		Fee:                      sdkmath.ZeroUint(),

		maxScanSteps: DefaultMaxScanSteps,
		queue:        NewOrderQueue(),
	}
}

// SetMaxScanSteps tunes the per-call cap of PrecalculateSellAmountSum.
func (a *Auction) SetMaxScanSteps(n int) {
	if n > 0 {
		a.maxScanSteps = n
	}
}

func (a *Auction) MaxScanSteps() int { return a.maxScanSteps }

func (a *Auction) Settled() bool { return a.settled }

// ContainsOrder reports whether o is placed and neither cancelled nor
// claimed.
func (a *Auction) ContainsOrder(o Order) bool {
	return a.queue.Contains(o)
}

// Orders lists the queued orders, best bid first.
func (a *Auction) Orders() []Order {
	return a.queue.Orders()
}

func (a *Auction) OrderCount() int {
	return a.queue.Len()
}
