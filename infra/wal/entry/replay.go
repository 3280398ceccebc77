package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrCorrupt    = errors.New("wal: crc mismatch")
	ErrOutOfOrder = errors.New("wal: non-monotonic sequence")
)

type ReplayHandler func(*Record) error

// Replay feeds every record with Seq > after to fn, oldest first. A torn
// frame at the very end of the newest segment is treated as the end of
// the journal.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segments(dir)
	if err != nil {
		return 0, err
	}

	lastSeq = after
	var prev uint64
	for i, path := range files {
		last := i == len(files)-1
		if err := replaySegment(path, last, func(rec *Record) error {
			if rec.Seq <= prev {
				return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, rec.Seq, prev)
			}
			prev = rec.Seq
			if rec.Seq <= after {
				return nil
			}
			lastSeq = rec.Seq
			return fn(rec)
		}); err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, last bool, fn ReplayHandler) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF) && last:
			return nil
		case err != nil:
			return fmt.Errorf("%s: %w", path, err)
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])

	data := make([]byte, int(l)+crcSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(append(header, payload...), crc) {
		return nil, ErrCorrupt
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
