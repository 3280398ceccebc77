package service

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"batchauction/domain/auction"
	entrywal "batchauction/infra/wal/entry"
)

// Journal commands carry amounts as decimal strings, orders as keys and
// times as unix nanos. The helpers below convert in both directions.

func amountStrings(us []sdkmath.Uint) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.String())
	}
	return out
}

func parseAmounts(ss []string) ([]sdkmath.Uint, error) {
	out := make([]sdkmath.Uint, 0, len(ss))
	for _, s := range ss {
		u, err := sdkmath.ParseUint(s)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q", entrywal.ErrMalformedCommand, s)
		}
		out = append(out, u)
	}
	return out, nil
}

func orderKeys(orders []auction.Order) [][]byte {
	out := make([][]byte, 0, len(orders))
	for _, o := range orders {
		k := auction.Encode(o)
		out = append(out, k[:])
	}
	return out
}

func parseOrders(keys [][]byte) ([]auction.Order, error) {
	out := make([]auction.Order, 0, len(keys))
	for _, b := range keys {
		k, err := auction.KeyFromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, k.Order())
	}
	return out, nil
}

// timestamp drops the monotonic reading and zone so live and replayed
// auctions hold identical times.
func timestamp(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

func initiateCommand(id uint64, p auction.Params) *entrywal.Command {
	threshold := p.MinFundingThreshold
	if threshold.IsNil() {
		threshold = sdkmath.ZeroUint()
	}
	return &entrywal.Command{
		AuctionID: id,
		Caller:    p.Auctioneer,
		Assets:    []string{p.TokenIn, p.TokenOut},
		Deadlines: []int64{p.OrderCancellationEndDate.UnixNano(), p.EndDate.UnixNano()},
		Limits: amountStrings([]sdkmath.Uint{
			p.TotalOutSupply, p.MinBuyAmount, p.MinimumBiddingAmountPerOrder, threshold,
		}),
		Flag: p.IsAtomicClosureAllowed,
	}
}

func initiateParams(c *entrywal.Command) (auction.Params, error) {
	if len(c.Assets) != 2 || len(c.Deadlines) != 2 || len(c.Limits) != 4 {
		return auction.Params{}, entrywal.ErrMalformedCommand
	}
	limits, err := parseAmounts(c.Limits)
	if err != nil {
		return auction.Params{}, err
	}
	return auction.Params{
		Auctioneer:                   c.Caller,
		TokenIn:                      c.Assets[0],
		TokenOut:                     c.Assets[1],
		OrderCancellationEndDate:     timestamp(c.Deadlines[0]),
		EndDate:                      timestamp(c.Deadlines[1]),
		TotalOutSupply:               limits[0],
		MinBuyAmount:                 limits[1],
		MinimumBiddingAmountPerOrder: limits[2],
		MinFundingThreshold:          limits[3],
		IsAtomicClosureAllowed:       c.Flag,
	}, nil
}

// placeCommand also serves atomic settlement, which carries one order.
func placeCommand(id uint64, caller string, buy, sell []sdkmath.Uint, hints []auction.Order) *entrywal.Command {
	return &entrywal.Command{
		AuctionID:   id,
		Caller:      caller,
		BuyAmounts:  amountStrings(buy),
		SellAmounts: amountStrings(sell),
		Orders:      orderKeys(hints),
	}
}

func placeArgs(c *entrywal.Command) (buy, sell []sdkmath.Uint, hints []auction.Order, err error) {
	if buy, err = parseAmounts(c.BuyAmounts); err != nil {
		return nil, nil, nil, err
	}
	if sell, err = parseAmounts(c.SellAmounts); err != nil {
		return nil, nil, nil, err
	}
	if hints, err = parseOrders(c.Orders); err != nil {
		return nil, nil, nil, err
	}
	return buy, sell, hints, nil
}

func feeSchedule(c *entrywal.Command) auction.FeeSchedule {
	return auction.FeeSchedule{Numerator: c.FeeNumerator, Receiver: c.FeeReceiver}
}
