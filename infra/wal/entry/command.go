package entry

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformedCommand = errors.New("wal: malformed command payload")

// Command is the payload of every journal record. Fields a record type
// does not use stay empty. Amounts are decimal strings and orders are
// fixed-width order keys, so the journal never depends on in-memory
// number representations.
type Command struct {
	AuctionID uint64
	Caller    string
	// UserID is the handle bound by a registration.
	UserID uint64

	BuyAmounts  []string
	SellAmounts []string
	// Orders holds insertion hints for placements and order references
	// for cancellations and claims.
	Orders [][]byte
	Steps  int64

	// initiation
	Assets    []string // in, out
	Deadlines []int64  // cancellation end, end, unix nanos
	Limits    []string // supply, min buy, min bid, funding threshold
	Flag      bool

	FeeNumerator uint64
	FeeReceiver  string
}

const (
	fieldAuctionID protowire.Number = iota + 1
	fieldCaller
	fieldBuyAmounts
	fieldSellAmounts
	fieldOrders
	fieldSteps
	fieldAssets
	fieldDeadlines
	fieldLimits
	fieldFlag
	fieldFeeNumerator
	fieldFeeReceiver
	fieldUserID
)

// Marshal writes c in protobuf wire format.
func (c *Command) Marshal() []byte {
	var b []byte
	if c.AuctionID != 0 {
		b = protowire.AppendTag(b, fieldAuctionID, protowire.VarintType)
		b = protowire.AppendVarint(b, c.AuctionID)
	}
	if c.Caller != "" {
		b = protowire.AppendTag(b, fieldCaller, protowire.BytesType)
		b = protowire.AppendString(b, c.Caller)
	}
	b = appendStrings(b, fieldBuyAmounts, c.BuyAmounts)
	b = appendStrings(b, fieldSellAmounts, c.SellAmounts)
	for _, o := range c.Orders {
		b = protowire.AppendTag(b, fieldOrders, protowire.BytesType)
		b = protowire.AppendBytes(b, o)
	}
	if c.Steps != 0 {
		b = protowire.AppendTag(b, fieldSteps, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Steps))
	}
	b = appendStrings(b, fieldAssets, c.Assets)
	for _, d := range c.Deadlines {
		b = protowire.AppendTag(b, fieldDeadlines, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}
	b = appendStrings(b, fieldLimits, c.Limits)
	if c.Flag {
		b = protowire.AppendTag(b, fieldFlag, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(c.Flag))
	}
	if c.FeeNumerator != 0 {
		b = protowire.AppendTag(b, fieldFeeNumerator, protowire.VarintType)
		b = protowire.AppendVarint(b, c.FeeNumerator)
	}
	if c.FeeReceiver != "" {
		b = protowire.AppendTag(b, fieldFeeReceiver, protowire.BytesType)
		b = protowire.AppendString(b, c.FeeReceiver)
	}
	if c.UserID != 0 {
		b = protowire.AppendTag(b, fieldUserID, protowire.VarintType)
		b = protowire.AppendVarint(b, c.UserID)
	}
	return b
}

func appendStrings(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

// UnmarshalCommand parses a payload written by Marshal. Unknown fields
// are skipped.
func UnmarshalCommand(b []byte) (*Command, error) {
	c := &Command{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, malformed(n)
			}
			b = b[n:]
			switch num {
			case fieldAuctionID:
				c.AuctionID = v
			case fieldSteps:
				c.Steps = int64(v)
			case fieldDeadlines:
				c.Deadlines = append(c.Deadlines, int64(v))
			case fieldFlag:
				c.Flag = protowire.DecodeBool(v)
			case fieldFeeNumerator:
				c.FeeNumerator = v
			case fieldUserID:
				c.UserID = v
			}

		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, malformed(n)
			}
			b = b[n:]
			switch num {
			case fieldCaller:
				c.Caller = string(v)
			case fieldBuyAmounts:
				c.BuyAmounts = append(c.BuyAmounts, string(v))
			case fieldSellAmounts:
				c.SellAmounts = append(c.SellAmounts, string(v))
			case fieldOrders:
				c.Orders = append(c.Orders, append([]byte(nil), v...))
			case fieldAssets:
				c.Assets = append(c.Assets, string(v))
			case fieldLimits:
				c.Limits = append(c.Limits, string(v))
			case fieldFeeReceiver:
				c.FeeReceiver = string(v)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, malformed(n)
			}
			b = b[n:]
		}
	}
	return c, nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
}
