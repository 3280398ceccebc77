package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func appendN(t *testing.T, w *WAL, from, n int) {
	t.Helper()
	for i := from; i < from+n; i++ {
		rec := NewRecord(RecordPlace, uint64(i), time.Unix(int64(i), 0), []byte(fmt.Sprintf("cmd-%d", i)))
		require.NoError(t, w.Append(rec))
	}
}

func collect(t *testing.T, dir string, after uint64) ([]*Record, uint64) {
	t.Helper()
	var out []*Record
	last, err := Replay(dir, after, func(r *Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out, last
}

func TestWAL_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)

	appendN(t, w, 1, 100)
	require.Equal(t, uint64(100), w.LastSeq())
	require.NoError(t, w.Close())

	recs, last := collect(t, dir, 0)
	require.Len(t, recs, 100)
	require.Equal(t, uint64(100), last)
	require.Equal(t, RecordPlace, recs[41].Type)
	require.Equal(t, "cmd-42", string(recs[41].Data))
	require.Equal(t, time.Unix(42, 0).UnixNano(), recs[41].Time)

	// only what a snapshot at 90 does not cover
	recs, last = collect(t, dir, 90)
	require.Len(t, recs, 10)
	require.Equal(t, uint64(100), last)
}

func TestWAL_RotationAndTruncate(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)

	appendN(t, w, 1, 10)
	files, err := segments(dir)
	require.NoError(t, err)
	require.Greater(t, len(files), 2)

	require.NoError(t, w.TruncateBefore(5))
	recs, _ := collect(t, dir, 0)
	require.Equal(t, uint64(4), recs[0].Seq, "only segments entirely at or below 5 go")

	// the active segment survives even when fully covered
	require.NoError(t, w.TruncateBefore(1000))
	left, err := segments(dir)
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.NoError(t, w.Close())
}

func TestWAL_ReopenContinuesNewestSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 4, 3)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir, 0)
	require.Len(t, recs, 6)
	require.Equal(t, uint64(6), last)
}

func TestWAL_TornTailIsDropped(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 1, 3)
	require.NoError(t, w.Close())

	// half a header from a crash mid-write
	path := filepath.Join(dir, "segment-000000.wal")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{byte(RecordCancel), 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recs, _ := collect(t, dir, 0)
	require.Len(t, recs, 3)

	w, err = Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	appendN(t, w, 4, 1)
	require.NoError(t, w.Close())

	recs, _ = collect(t, dir, 0)
	require.Len(t, recs, 4)
}

func TestWAL_CorruptRecordFailsReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	appendN(t, w, 1, 10)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "segment-000000.wal")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[headerSize] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Replay(dir, 0, func(*Record) error { return nil })
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestWAL_AppendAfterClose(t *testing.T) {
	w, err := Open(Config{Dir: t.TempDir(), SegmentSize: 1 << 20})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Append(NewRecord(RecordPlace, 1, time.Now(), nil)), ErrClosed)
}

func TestCommandRoundTrip(t *testing.T) {
	in := &Command{
		AuctionID:    9,
		Caller:       "alice",
		BuyAmounts:   []string{"1", "2"},
		SellAmounts:  []string{"10", "20"},
		Orders:       [][]byte{{0x01, 0x02}, {0x03}},
		Steps:        3,
		Assets:       []string{"usdc", "gno"},
		Deadlines:    []int64{1700000000000000000, 1700003600000000000},
		Limits:       []string{"100", "10", "1", "0"},
		Flag:         true,
		FeeNumerator: 15,
		FeeReceiver:  "treasury",
		UserID:       5,
	}

	out, err := UnmarshalCommand(in.Marshal())
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestCommandSkipsUnknownFields(t *testing.T) {
	b := (&Command{AuctionID: 4}).Marshal()
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)

	c, err := UnmarshalCommand(b)
	require.NoError(t, err)
	require.Equal(t, uint64(4), c.AuctionID)

	_, err = UnmarshalCommand([]byte{0x0a, 0x05, 'a'})
	require.ErrorIs(t, err, ErrMalformedCommand)
}
