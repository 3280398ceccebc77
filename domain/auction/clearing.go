package auction

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Scan is a resumable walk over the queue that accumulates sell amounts.
// It starts from a checkpoint and only touches the auction when the caller
// commits it.
type Scan struct {
	queue    *OrderQueue
	position Order
	sum      sdkmath.Uint
}

func (a *Auction) checkpoint() *Scan {
	return &Scan{queue: a.queue, position: a.InterimOrder, sum: a.InterimSumBidAmount}
}

func (s *Scan) Position() Order   { return s.position }
func (s *Scan) Sum() sdkmath.Uint { return s.sum }

// Step moves to the next order. It reports false at the tail and leaves
// the scan unchanged.
func (s *Scan) Step() bool {
	next := s.queue.Next(s.position)
	if next.IsEnd() {
		return false
	}
	s.position = next
	s.sum = s.sum.Add(next.SellAmount)
	return true
}

// Advance takes exactly n steps or fails with ErrQueueExhausted.
func (s *Scan) Advance(n int) error {
	for i := 0; i < n; i++ {
		if !s.Step() {
			return ErrQueueExhausted
		}
	}
	return nil
}

// PrecalculateSellAmountSum moves the checkpoint steps orders further.
// The checkpoint must stay strictly before the marginal order, otherwise
// settlement would skip it.
func (a *Auction) PrecalculateSellAmountSum(now time.Time, steps int) error {
	if a.settled {
		return ErrAlreadySettled
	}
	if !a.closed(now) {
		return ErrNotClosed
	}
	if steps <= 0 {
		return ErrInvalidArguments
	}
	if steps > a.maxScanSteps {
		return ErrTooManyOrders
	}

	scan := a.checkpoint()
	if err := scan.Advance(steps); err != nil {
		return err
	}
	if covers(scan.sum, scan.position, a.InitialOrder.SellAmount) {
		return ErrTooManyOrders
	}

	a.InterimOrder = scan.position
	a.InterimSumBidAmount = scan.sum
	return nil
}

// covers reports whether sum, priced at o, buys the whole supply.
func covers(sum sdkmath.Uint, o Order, supply sdkmath.Uint) bool {
	return crossCmp(sum, o.BuyAmount, supply, o.SellAmount) >= 0
}

// ClearingResult describes a settled auction.
type ClearingResult struct {
	AuctionID uint64
	// ClearingOrder's SellAmount/BuyAmount is the uniform price.
	ClearingOrder Order
	// Volume is the filled sell amount of ClearingOrder when it is a
	// participant order.
	Volume sdkmath.Uint
	// Raised is the in-asset collected from participants.
	Raised sdkmath.Uint
	// AuctioneerFill is the out-asset sold.
	AuctioneerFill                sdkmath.Uint
	Fee                           sdkmath.Uint
	FeeReceiver                   string
	MinFundingThresholdNotReached bool
	Price                         decimal.Decimal
}

type clearing struct {
	order  Order
	volume sdkmath.Uint
	raised sdkmath.Uint
	fill   sdkmath.Uint
}

// clear finds the clearing order from the checkpoint on. It does not
// mutate the auction.
func (a *Auction) clear() clearing {
	initial := a.InitialOrder
	supply := initial.SellAmount
	scan := a.checkpoint()

	for scan.Step() {
		o := scan.position
		if !covers(scan.sum, o, supply) {
			continue
		}

		total := scan.sum
		uncovered := total.Sub(mulDiv(supply, o.SellAmount, o.BuyAmount))
		if o.SellAmount.GTE(uncovered) {
			// o is partially filled and sets the price
			return clearing{
				order:  o,
				volume: o.SellAmount.Sub(uncovered),
				raised: total.Sub(uncovered),
				fill:   supply,
			}
		}

		// price lies strictly between o and its predecessor
		prev := total.Sub(o.SellAmount)
		return clearing{
			order:  Order{BuyAmount: supply, SellAmount: prev},
			volume: sdkmath.ZeroUint(),
			raised: prev,
			fill:   supply,
		}
	}

	total := scan.sum
	if total.GT(initial.BuyAmount) {
		// a price above the last order still sells everything
		return clearing{
			order:  Order{OwnerID: initial.OwnerID, BuyAmount: supply, SellAmount: total},
			volume: sdkmath.ZeroUint(),
			raised: total,
			fill:   supply,
		}
	}

	// under-subscribed: the auctioneer's own minimum price applies
	return clearing{
		order:  initial.Reversed(),
		volume: sdkmath.ZeroUint(),
		raised: total,
		fill:   mulDiv(total, supply, initial.BuyAmount),
	}
}

// SettleAuction computes the clearing price and pays the protocol fee.
// It succeeds exactly once.
func (a *Auction) SettleAuction(ctx context.Context, l Ledger, now time.Time, fees FeeSchedule) (ClearingResult, error) {
	if a.settled {
		return ClearingResult{}, ErrAlreadySettled
	}
	if !a.closed(now) {
		return ClearingResult{}, ErrNotClosed
	}
	if err := fees.Validate(); err != nil {
		return ClearingResult{}, err
	}
	return a.settle(ctx, l, fees)
}

// SettleAuctionAtomically admits one last order, bypassing the placement
// window, and settles in the same step.
func (a *Auction) SettleAuctionAtomically(
	ctx context.Context,
	l Ledger,
	now time.Time,
	fees FeeSchedule,
	p Participant,
	buyAmounts []sdkmath.Uint,
	sellAmounts []sdkmath.Uint,
	hints []Order,
) (ClearingResult, error) {
	if a.settled {
		return ClearingResult{}, ErrAlreadySettled
	}
	if !a.IsAtomicClosureAllowed || !a.closed(now) {
		return ClearingResult{}, ErrAtomicClosureNotAllowed
	}
	if p.ID == 0 || len(buyAmounts) != 1 || len(sellAmounts) != 1 || len(hints) != 1 {
		return ClearingResult{}, ErrInvalidArguments
	}
	if err := fees.Validate(); err != nil {
		return ClearingResult{}, err
	}

	o := NewOrder(p.ID, buyAmounts[0], sellAmounts[0])
	if err := a.admissible(o); err != nil {
		return ClearingResult{}, err
	}
	if !a.InterimOrder.Less(o) {
		return ClearingResult{}, ErrCheckpointTooAdvanced
	}

	var deposit *Transfer
	if !a.queue.Contains(o) {
		if !a.queue.ValidHint(hints[0], o) {
			return ClearingResult{}, ErrInvalidInsertionPoint
		}
		a.queue.insert(o)
		deposit = &Transfer{Kind: Deposit, Owner: p.Identity, Asset: a.TokenIn, Amount: o.SellAmount}
	}

	res, err := a.settle(ctx, l, fees, deposit)
	if err != nil && deposit != nil {
		a.queue.Remove(o)
	}
	return res, err
}

func (a *Auction) settle(ctx context.Context, l Ledger, fees FeeSchedule, extra ...*Transfer) (ClearingResult, error) {
	c := a.clear()
	notReached := c.raised.LT(a.MinFundingThreshold)

	fee := sdkmath.ZeroUint()
	if !notReached && fees.Numerator > 0 {
		fee = mulDiv(c.raised, sdkmath.NewUint(fees.Numerator), sdkmath.NewUint(FeeDenominator))
	}

	transfers := make([]Transfer, 0, len(extra)+1)
	for _, t := range extra {
		if t != nil {
			transfers = append(transfers, *t)
		}
	}
	transfers = append(transfers, Transfer{Kind: Withdraw, Owner: fees.Receiver, Asset: a.TokenIn, Amount: fee})
	if err := execute(ctx, l, transfers...); err != nil {
		return ClearingResult{}, err
	}

	a.settled = true
	a.ClearingPriceOrder = c.order
	a.VolumeClearingPriceOrder = c.volume
	a.MinFundingThresholdNotReached = notReached
	a.Raised = c.raised
	a.AuctioneerFill = c.fill
	a.Fee = fee
	a.FeeNumerator = fees.Numerator
	a.FeeReceiver = fees.Receiver

	return a.Result(), nil
}

// Result reports the settlement outcome. It is only meaningful once the
// auction settled.
func (a *Auction) Result() ClearingResult {
	return ClearingResult{
		AuctionID:                     a.ID,
		ClearingOrder:                 a.ClearingPriceOrder,
		Volume:                        a.VolumeClearingPriceOrder,
		Raised:                        a.Raised,
		AuctioneerFill:                a.AuctioneerFill,
		Fee:                           a.Fee,
		FeeReceiver:                   a.FeeReceiver,
		MinFundingThresholdNotReached: a.MinFundingThresholdNotReached,
		Price:                         a.ClearingPriceOrder.Price(),
	}
}
