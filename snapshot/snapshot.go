package snapshot

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"batchauction/domain/auction"
)

type Snapshot struct {
	Seq     uint64
	Created time.Time

	LastAuctionID uint64
	Fees          FeeEntry
	Users         []UserEntry
	Auctions      []AuctionEntry
}

type FeeEntry struct {
	Numerator uint64
	Receiver  string
}

type UserEntry struct {
	ID       uint64
	Identity string
}

// AuctionEntry is auction.State with amounts as decimal strings and
// orders as keys.
type AuctionEntry struct {
	ID         uint64
	Auctioneer string
	TokenIn    string
	TokenOut   string

	InitialOrder auction.Key

	OrderCancellationEndDate     time.Time
	EndDate                      time.Time
	MinimumBiddingAmountPerOrder string
	MinFundingThreshold          string
	IsAtomicClosureAllowed       bool

	InterimSumBidAmount string
	InterimOrder        auction.Key

	Settled                       bool
	FeeNumerator                  uint64
	FeeReceiver                   string
	ClearingPriceOrder            auction.Key
	VolumeClearingPriceOrder      string
	MinFundingThresholdNotReached bool
	Raised                        string
	AuctioneerFill                string
	Fee                           string
	AuctioneerClaimed             bool

	MaxScanSteps int
	Orders       []auction.Key
}

func NewAuctionEntry(s auction.State) AuctionEntry {
	e := AuctionEntry{
		ID:                            s.ID,
		Auctioneer:                    s.Auctioneer,
		TokenIn:                       s.TokenIn,
		TokenOut:                      s.TokenOut,
		InitialOrder:                  auction.Encode(s.InitialOrder),
		OrderCancellationEndDate:      s.OrderCancellationEndDate,
		EndDate:                       s.EndDate,
		MinimumBiddingAmountPerOrder:  s.MinimumBiddingAmountPerOrder.String(),
		MinFundingThreshold:           s.MinFundingThreshold.String(),
		IsAtomicClosureAllowed:        s.IsAtomicClosureAllowed,
		InterimSumBidAmount:           s.InterimSumBidAmount.String(),
		InterimOrder:                  auction.Encode(s.InterimOrder),
		Settled:                       s.Settled,
		FeeNumerator:                  s.FeeNumerator,
		FeeReceiver:                   s.FeeReceiver,
		ClearingPriceOrder:            auction.Encode(s.ClearingPriceOrder),
		VolumeClearingPriceOrder:      s.VolumeClearingPriceOrder.String(),
		MinFundingThresholdNotReached: s.MinFundingThresholdNotReached,
		Raised:                        s.Raised.String(),
		AuctioneerFill:                s.AuctioneerFill.String(),
		Fee:                           s.Fee.String(),
		AuctioneerClaimed:             s.AuctioneerClaimed,
		MaxScanSteps:                  s.MaxScanSteps,
		Orders:                        make([]auction.Key, 0, len(s.Orders)),
	}
	for _, o := range s.Orders {
		e.Orders = append(e.Orders, auction.Encode(o))
	}
	return e
}

// State converts the entry back. It fails on amounts that do not parse.
func (e AuctionEntry) State() (auction.State, error) {
	s := auction.State{
		ID:                            e.ID,
		Auctioneer:                    e.Auctioneer,
		TokenIn:                       e.TokenIn,
		TokenOut:                      e.TokenOut,
		InitialOrder:                  e.InitialOrder.Order(),
		OrderCancellationEndDate:      e.OrderCancellationEndDate,
		EndDate:                       e.EndDate,
		IsAtomicClosureAllowed:        e.IsAtomicClosureAllowed,
		InterimOrder:                  e.InterimOrder.Order(),
		Settled:                       e.Settled,
		FeeNumerator:                  e.FeeNumerator,
		FeeReceiver:                   e.FeeReceiver,
		ClearingPriceOrder:            e.ClearingPriceOrder.Order(),
		MinFundingThresholdNotReached: e.MinFundingThresholdNotReached,
		AuctioneerClaimed:             e.AuctioneerClaimed,
		MaxScanSteps:                  e.MaxScanSteps,
		Orders:                        make([]auction.Order, 0, len(e.Orders)),
	}

	amounts := []struct {
		dst *sdkmath.Uint
		src string
	}{
		{&s.MinimumBiddingAmountPerOrder, e.MinimumBiddingAmountPerOrder},
		{&s.MinFundingThreshold, e.MinFundingThreshold},
		{&s.InterimSumBidAmount, e.InterimSumBidAmount},
		{&s.VolumeClearingPriceOrder, e.VolumeClearingPriceOrder},
		{&s.Raised, e.Raised},
		{&s.AuctioneerFill, e.AuctioneerFill},
		{&s.Fee, e.Fee},
	}
	for _, a := range amounts {
		u, err := sdkmath.ParseUint(a.src)
		if err != nil {
			return auction.State{}, fmt.Errorf("snapshot: auction %d: %w", e.ID, err)
		}
		*a.dst = u
	}

	for _, k := range e.Orders {
		s.Orders = append(s.Orders, k.Order())
	}
	return s, nil
}
