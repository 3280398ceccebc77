package exit

import (
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/orderedcode"
	"github.com/google/uuid"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// ExitRecord is one outbound event and its delivery state.
type ExitRecord struct {
	Seq       uint64
	ID        uuid.UUID
	Type      string
	AuctionID uint64
	Payload   []byte

	State       ExitState
	Retries     uint32
	Created     int64
	LastAttempt int64
}

var ErrNotFound = errors.New("exit: record not found")

const keyPrefix = "event"

func keyFor(seq uint64) []byte {
	k, err := orderedcode.Append(nil, keyPrefix, seq)
	if err != nil {
		panic(err) // only unsupported item types fail
	}
	return k
}

func parseKey(b []byte) (uint64, error) {
	var prefix string
	var seq uint64
	if _, err := orderedcode.Parse(string(b), &prefix, &seq); err != nil {
		return 0, err
	}
	if prefix != keyPrefix {
		return 0, fmt.Errorf("exit: unexpected key prefix %q", prefix)
	}
	return seq, nil
}

func encodeRecord(r ExitRecord) ([]byte, error) {
	return orderedcode.Append(nil,
		uint64(r.State),
		uint64(r.Retries),
		r.Created,
		r.LastAttempt,
		string(r.ID[:]),
		r.Type,
		r.AuctionID,
		orderedcode.TrailingString(r.Payload),
	)
}

func decodeRecord(seq uint64, b []byte) (ExitRecord, error) {
	var (
		state, retries uint64
		id, typ        string
		payload        orderedcode.TrailingString
		r              = ExitRecord{Seq: seq}
	)
	if _, err := orderedcode.Parse(string(b),
		&state, &retries, &r.Created, &r.LastAttempt, &id, &typ, &r.AuctionID, &payload,
	); err != nil {
		return ExitRecord{}, fmt.Errorf("exit: decode record %d: %w", seq, err)
	}
	parsed, err := uuid.FromBytes([]byte(id))
	if err != nil {
		return ExitRecord{}, fmt.Errorf("exit: decode record %d: %w", seq, err)
	}

	r.State = ExitState(state)
	r.Retries = uint32(retries)
	r.ID = parsed
	r.Type = typ
	r.Payload = []byte(payload)
	return r, nil
}

// -------------------- WAL --------------------

// ExitWAL is the durable outbox between the house and the event
// publishers. Keys sort by sequence, so scans deliver in emission order.
type ExitWAL struct {
	db  *pebble.DB
	now func() time.Time
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &ExitWAL{db: db, now: time.Now}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores records in state NEW in one atomic batch. Missing IDs are
// generated.
func (w *ExitWAL) PutNew(recs ...ExitRecord) error {
	if len(recs) == 0 {
		return nil
	}

	b := w.db.NewBatch()
	defer b.Close()

	created := w.now().UnixNano()
	for _, r := range recs {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.State = StateNew
		r.Retries = 0
		r.Created = created
		r.LastAttempt = 0

		val, err := encodeRecord(r)
		if err != nil {
			return err
		}
		if err := b.Set(keyFor(r.Seq), val, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Get returns the current record for seq.
func (w *ExitWAL) Get(seq uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return ExitRecord{}, ErrNotFound
	}
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateSent
		r.LastAttempt = w.now().UnixNano()
	})
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateAcked
	})
}

// MarkFailed records a failed delivery attempt.
func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
		r.LastAttempt = w.now().UnixNano()
	})
}

func (w *ExitWAL) update(seq uint64, fn func(*ExitRecord)) error {
	r, err := w.Get(seq)
	if err != nil {
		return err
	}
	fn(&r)
	val, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return w.db.Set(keyFor(seq), val, pebble.Sync)
}

// -------------------- Scan --------------------

// ScanPending visits every record not yet acknowledged, oldest first.
// SENT records are included: a crash between send and ack must resend.
func (w *ExitWAL) ScanPending(fn func(ExitRecord) error) error {
	return w.scan(func(r ExitRecord) error {
		if r.State == StateAcked {
			return nil
		}
		return fn(r)
	})
}

// ScanByState iterates all records in the given state.
func (w *ExitWAL) ScanByState(state ExitState, fn func(ExitRecord) error) error {
	return w.scan(func(r ExitRecord) error {
		if r.State != state {
			return nil
		}
		return fn(r)
	})
}

func (w *ExitWAL) scan(fn func(ExitRecord) error) error {
	lower, err := orderedcode.Append(nil, keyPrefix)
	if err != nil {
		return err
	}
	upper, err := orderedcode.Append(nil, keyPrefix, orderedcode.Infinity)
	if err != nil {
		return err
	}

	iter, err := w.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq is the highest sequence ever stored, zero when empty.
func (w *ExitWAL) LastSeq() (uint64, error) {
	var last uint64
	err := w.scan(func(r ExitRecord) error {
		last = r.Seq
		return nil
	})
	return last, err
}

// TruncateAckedUpTo deletes acknowledged records with Seq <= seq. The
// newest record is kept so LastSeq survives restarts.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) error {
	last, err := w.LastSeq()
	if err != nil {
		return err
	}

	b := w.db.NewBatch()
	defer b.Close()

	err = w.scan(func(r ExitRecord) error {
		if r.Seq > seq || r.Seq == last || r.State != StateAcked {
			return nil
		}
		return b.Delete(keyFor(r.Seq), nil)
	})
	if err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}
