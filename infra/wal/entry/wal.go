package entry

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"time"
)

var ErrClosed = errors.New("wal: closed")

type Config struct {
	Dir         string
	SegmentSize int64
	// SegmentDuration rotates a segment after this long even if it is not
	// full. Zero disables time based rotation.
	SegmentDuration time.Duration
	// SyncWrites fsyncs after every append.
	SyncWrites bool
}

// WAL is the command journal. Appends are serialised internally; records
// must arrive with increasing sequence numbers.
type WAL struct {
	mu         sync.Mutex
	dir        string
	segSize    int64
	segDur     time.Duration
	syncWrites bool
	current    *segment
	lastRotate time.Time
	lastSeq    uint64
}

// Open resumes appending to the newest segment in cfg.Dir.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if n := len(files); n > 0 {
		index = segmentIndex(files[n-1])
		// drop a torn tail so new frames start on a record boundary
		size, err := validPrefix(files[n-1])
		if err != nil {
			return nil, err
		}
		if err := os.Truncate(files[n-1], size); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		syncWrites: cfg.SyncWrites,
		current:    seg,
		lastRotate: time.Now(),
	}, nil
}

func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return ErrClosed
	}

	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+crcSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}
	if w.syncWrites {
		if err := w.current.sync(); err != nil {
			return err
		}
	}
	w.lastSeq = r.Seq

	if w.current.offset >= w.segSize ||
		(w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur) {
		return w.rotate()
	}
	return nil
}

// LastSeq is the sequence of the last record appended through this
// handle.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return ErrClosed
	}
	return w.current.sync()
}

// caller holds mu
func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()

	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		w.current = nil
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore drops closed segments whose records are all covered by
// a snapshot at seq. The active segment is always kept.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := segments(w.dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if w.current != nil && segmentIndex(path) >= w.current.index {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.sync()
	if cerr := w.current.close(); err == nil {
		err = cerr
	}
	w.current = nil
	return err
}
