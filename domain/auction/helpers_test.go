package auction

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

var (
	t0         = time.Unix(1_700_000_000, 0).UTC()
	cancelEnd  = t0.Add(time.Hour)
	auctionEnd = t0.Add(2 * time.Hour)
	afterEnd   = auctionEnd.Add(time.Second)

	errLedgerDown = errors.New("ledger down")
)

func u(v uint64) sdkmath.Uint { return sdkmath.NewUint(v) }

func us(s string) sdkmath.Uint { return sdkmath.NewUintFromString(s) }

// e18 counts in tenths of 1e18: e18(1) is 0.1e18 and e18(10) is 1e18.
func e18(tenths uint64) sdkmath.Uint {
	return u(tenths).Mul(us("100000000000000000"))
}

// fakeLedger records every applied transfer and can be told to fail.
type fakeLedger struct {
	applied []Transfer
	calls   int
	fail    error
}

func (l *fakeLedger) Execute(_ context.Context, transfers ...Transfer) error {
	l.calls++
	if l.fail != nil {
		return l.fail
	}
	l.applied = append(l.applied, transfers...)
	return nil
}

// custody is what the ledger holds on behalf of the auctions, per asset,
// rendered in decimal so that negative balances show up in failures.
func (l *fakeLedger) custody(asset string) string {
	total := new(big.Int)
	for _, t := range l.applied {
		if t.Asset != asset {
			continue
		}
		if t.Kind == Deposit {
			total.Add(total, t.Amount.BigInt())
		} else {
			total.Sub(total, t.Amount.BigInt())
		}
	}
	return total.String()
}

// received sums what owner was paid in asset.
func (l *fakeLedger) received(owner, asset string) sdkmath.Uint {
	total := sdkmath.ZeroUint()
	for _, t := range l.applied {
		if t.Kind == Withdraw && t.Owner == owner && t.Asset == asset {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// requireUint compares amounts by value.
func requireUint(t testing.TB, want, got sdkmath.Uint, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, want.String(), got.String(), msgAndArgs...)
}

type directory map[uint64]string

func (d directory) Identity(id uint64) (string, bool) {
	s, ok := d[id]
	return s, ok
}

var users = directory{1: "alice", 2: "bob", 3: "carol", 4: "dave"}

func participant(id uint64) Participant {
	return Participant{ID: id, Identity: users[id]}
}

func defaultParams() Params {
	return Params{
		Auctioneer:                   "auctioneer",
		TokenIn:                      "usdc",
		TokenOut:                     "gno",
		OrderCancellationEndDate:     cancelEnd,
		EndDate:                      auctionEnd,
		TotalOutSupply:               e18(10),
		MinBuyAmount:                 e18(10),
		MinimumBiddingAmountPerOrder: u(1),
		MinFundingThreshold:          sdkmath.ZeroUint(),
	}
}

func newTestAuction(t testing.TB, l Ledger, mods ...func(*Params)) *Auction {
	t.Helper()
	p := defaultParams()
	for _, m := range mods {
		m(&p)
	}
	a, err := Initiate(context.Background(), l, t0, 1, p)
	require.NoError(t, err)
	return a
}

// place puts a single order with the start sentinel as hint.
func place(t testing.TB, a *Auction, l Ledger, owner uint64, buy, sell sdkmath.Uint) Order {
	t.Helper()
	placed, err := a.PlaceOrders(context.Background(), l, t0, participant(owner),
		[]sdkmath.Uint{buy}, []sdkmath.Uint{sell}, []Order{QueueStart})
	require.NoError(t, err)
	require.Len(t, placed, 1)
	return placed[0]
}
