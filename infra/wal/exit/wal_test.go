package exit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *ExitWAL {
	t.Helper()
	w, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestPutNewAndGet(t *testing.T) {
	w := openTest(t)
	id := uuid.New()

	require.NoError(t, w.PutNew(
		ExitRecord{Seq: 1, ID: id, Type: "AuctionInitiated", AuctionID: 3, Payload: []byte(`{"a":1}`)},
		ExitRecord{Seq: 2, Type: "NewUser", Payload: []byte{0x00, 0xff}},
	))

	r, err := w.Get(1)
	require.NoError(t, err)
	require.Equal(t, id, r.ID)
	require.Equal(t, "AuctionInitiated", r.Type)
	require.Equal(t, uint64(3), r.AuctionID)
	require.Equal(t, `{"a":1}`, string(r.Payload))
	require.Equal(t, StateNew, r.State)
	require.NotZero(t, r.Created)

	r, err = w.Get(2)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, r.ID, "missing ids are generated")
	require.Equal(t, []byte{0x00, 0xff}, r.Payload)

	_, err = w.Get(3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStateTransitionsAndPendingScan(t *testing.T) {
	w := openTest(t)
	require.NoError(t, w.PutNew(
		ExitRecord{Seq: 10, Type: "a"},
		ExitRecord{Seq: 2, Type: "b"},
		ExitRecord{Seq: 300, Type: "c"},
	))

	require.NoError(t, w.MarkSent(2))
	require.NoError(t, w.MarkAcked(2))
	require.NoError(t, w.MarkSent(10))
	require.NoError(t, w.MarkFailed(300))
	require.NoError(t, w.MarkFailed(300))

	var pending []uint64
	require.NoError(t, w.ScanPending(func(r ExitRecord) error {
		pending = append(pending, r.Seq)
		return nil
	}))
	require.Equal(t, []uint64{10, 300}, pending, "numeric order, acked skipped")

	r, err := w.Get(300)
	require.NoError(t, err)
	require.Equal(t, StateFailed, r.State)
	require.Equal(t, uint32(2), r.Retries)

	var acked []uint64
	require.NoError(t, w.ScanByState(StateAcked, func(r ExitRecord) error {
		acked = append(acked, r.Seq)
		return nil
	}))
	require.Equal(t, []uint64{2}, acked)

	last, err := w.LastSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(300), last)
}

func TestTruncateAckedKeepsNewest(t *testing.T) {
	w := openTest(t)
	require.NoError(t, w.PutNew(ExitRecord{Seq: 1}, ExitRecord{Seq: 2}, ExitRecord{Seq: 3}))
	for _, s := range []uint64{1, 3} {
		require.NoError(t, w.MarkAcked(s))
	}

	require.NoError(t, w.TruncateAckedUpTo(3))

	_, err := w.Get(1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = w.Get(2)
	require.NoError(t, err, "not acked")
	_, err = w.Get(3)
	require.NoError(t, err, "newest record anchors LastSeq")
}
