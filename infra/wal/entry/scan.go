package entry

import (
	"encoding/binary"
	"io"
	"os"
)

// maxSeqInSegment scans a WAL segment and returns the maximum sequence ID found.
// It is used ONLY for snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)

	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+crcSize, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// validPrefix returns the length of the leading run of intact records.
func validPrefix(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var off int64
	for {
		rec, err := readRecord(f)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF || err == ErrCorrupt {
				return off, nil
			}
			return off, err
		}
		off += int64(headerSize + len(rec.Data) + crcSize)
	}
}
