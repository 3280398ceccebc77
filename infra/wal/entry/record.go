package entry

import "time"

// RecordType names the command a record journals.
type RecordType uint8

const (
	RecordInitiate RecordType = iota + 1
	RecordRegister
	RecordPlace
	RecordCancel
	RecordPrecalculate
	RecordSettle
	RecordSettleAtomic
	RecordClaimOrders
	RecordClaimAuctioneer
	RecordSetFees
)

func (t RecordType) String() string {
	switch t {
	case RecordInitiate:
		return "initiate"
	case RecordRegister:
		return "register"
	case RecordPlace:
		return "place"
	case RecordCancel:
		return "cancel"
	case RecordPrecalculate:
		return "precalculate"
	case RecordSettle:
		return "settle"
	case RecordSettleAtomic:
		return "settle_atomic"
	case RecordClaimOrders:
		return "claim_orders"
	case RecordClaimAuctioneer:
		return "claim_auctioneer"
	case RecordSetFees:
		return "set_fees"
	default:
		return "unknown"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, at time.Time, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: at.UnixNano(),
		Data: data,
	}
}

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
)
