package auction

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// MaxAmountBits bounds every order amount. Cross products of two amounts
// and running sums of many orders stay far below the 256-bit ceiling of
// sdkmath.Uint.
const MaxAmountBits = 96

// pricePrecision is the number of decimals used when rendering prices.
const pricePrecision = 18

type bound int8

const (
	boundStart bound = iota - 1
	boundNone
	boundEnd
)

// Order reads "sell SellAmount of the in-asset for at least BuyAmount of
// the out-asset". OwnerID 0 marks synthetic orders (the auctioneer's
// initial order and synthetic clearing orders).
type Order struct {
	OwnerID    uint64
	BuyAmount  sdkmath.Uint
	SellAmount sdkmath.Uint

	bound bound
}

var (
	// QueueStart sorts before every order.
	QueueStart = Order{bound: boundStart}
	// QueueEnd sorts after every order.
	QueueEnd = Order{bound: boundEnd}
)

// NewOrder builds a participant order.
func NewOrder(owner uint64, buyAmount, sellAmount sdkmath.Uint) Order {
	return Order{OwnerID: owner, BuyAmount: buyAmount, SellAmount: sellAmount}
}

func (o Order) IsStart() bool    { return o.bound == boundStart }
func (o Order) IsEnd() bool      { return o.bound == boundEnd }
func (o Order) IsSentinel() bool { return o.bound != boundNone }

// Less orders by BuyAmount/SellAmount ascending, then BuyAmount, then
// OwnerID. Orders that come first offer more in-asset per unit of the
// out-asset. Sentinels bracket everything.
func (o Order) Less(other Order) bool {
	if o.bound != other.bound {
		return o.bound < other.bound
	}
	if o.bound != boundNone {
		return false
	}

	if c := crossCmp(o.BuyAmount, other.SellAmount, other.BuyAmount, o.SellAmount); c != 0 {
		return c < 0
	}
	if !o.BuyAmount.Equal(other.BuyAmount) {
		return o.BuyAmount.LT(other.BuyAmount)
	}
	return o.OwnerID < other.OwnerID
}

// Equal reports whether both orders encode to the same key.
func (o Order) Equal(other Order) bool {
	return Encode(o) == Encode(other)
}

// Reversed swaps the amounts, turning a buy-side description of a price
// into the sell-side one.
func (o Order) Reversed() Order {
	if o.IsSentinel() {
		return o
	}
	return Order{OwnerID: o.OwnerID, BuyAmount: o.SellAmount, SellAmount: o.BuyAmount}
}

// Price is SellAmount per unit of BuyAmount, for reporting only.
func (o Order) Price() decimal.Decimal {
	if o.IsSentinel() || !isPositive(o.BuyAmount) || o.SellAmount.IsNil() {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(o.SellAmount.BigInt(), 0)
	den := decimal.NewFromBigInt(o.BuyAmount.BigInt(), 0)
	return num.DivRound(den, pricePrecision)
}

func (o Order) String() string {
	switch o.bound {
	case boundStart:
		return "order{start}"
	case boundEnd:
		return "order{end}"
	}
	return fmt.Sprintf("order{owner=%d buy=%s sell=%s}", o.OwnerID, o.BuyAmount, o.SellAmount)
}

func (o Order) validAmounts() bool {
	if o.IsSentinel() {
		return false
	}
	return isPositive(o.BuyAmount) && isPositive(o.SellAmount) &&
		fitsAmount(o.BuyAmount) && fitsAmount(o.SellAmount)
}

func isPositive(u sdkmath.Uint) bool {
	return !u.IsNil() && !u.IsZero()
}

func fitsAmount(u sdkmath.Uint) bool {
	return !u.IsNil() && u.BigInt().BitLen() <= MaxAmountBits
}

// crossCmp compares a*b with c*d.
func crossCmp(a, b, c, d sdkmath.Uint) int {
	left := new(big.Int).Mul(a.BigInt(), b.BigInt())
	right := new(big.Int).Mul(c.BigInt(), d.BigInt())
	return left.Cmp(right)
}

// mulDiv returns a*b/c rounded down.
func mulDiv(a, b, c sdkmath.Uint) sdkmath.Uint {
	return a.Mul(b).Quo(c)
}
