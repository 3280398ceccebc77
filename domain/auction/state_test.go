package auction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateRestoresQueueAndCheckpoint(t *testing.T) {
	l := &fakeLedger{}
	a := newTestAuction(t, l, withSupply(u(100), u(10)))
	best := place(t, a, l, 1, u(50), u(60))
	place(t, a, l, 2, u(80), u(60))
	a.SetMaxScanSteps(7)
	require.NoError(t, a.PrecalculateSellAmountSum(afterEnd, 1))

	restored, err := FromState(a.State())
	require.NoError(t, err)

	require.Equal(t, a.OrderCount(), restored.OrderCount())
	require.True(t, restored.InterimOrder.Equal(best))
	requireUint(t, u(60), restored.InterimSumBidAmount)
	require.Equal(t, 7, restored.MaxScanSteps())
	require.False(t, restored.Settled())

	want := settle(t, a, l)
	got := settle(t, restored, l)
	require.True(t, want.ClearingOrder.Equal(got.ClearingOrder))
	requireUint(t, want.Volume, got.Volume)
}

func TestFromStateRejectsDuplicateOrders(t *testing.T) {
	l := &fakeLedger{}
	a := newTestAuction(t, l)
	o := place(t, a, l, 1, u(10), u(20))

	s := a.State()
	s.Orders = append(s.Orders, o)
	_, err := FromState(s)
	require.ErrorIs(t, err, ErrInvalidOrder)
}
