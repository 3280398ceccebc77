package auction

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Key layout: [owner:8][buy:32][sell:32], all big endian.
const (
	ownerWidth  = 8
	amountWidth = 32
	KeySize     = ownerWidth + 2*amountWidth
)

// Key is the fixed-width encoding of an Order. Byte order of keys sorts
// by owner, then buy amount, then sell amount, which keeps one user's
// orders adjacent in ordered stores. Queue order is Order.Less, not the
// byte order.
type Key [KeySize]byte

var ErrMalformedKey = errors.New("auction: malformed order key")

var (
	startKey = Key{}
	endKey   = func() Key {
		var k Key
		for i := range k {
			k[i] = 0xff
		}
		return k
	}()
)

// Encode packs an order into its key. Sentinels map to the all-zero and
// all-one keys, which no admissible order can produce.
func Encode(o Order) Key {
	switch o.bound {
	case boundStart:
		return startKey
	case boundEnd:
		return endKey
	}

	var k Key
	binary.BigEndian.PutUint64(k[:ownerWidth], o.OwnerID)
	putAmount(k[ownerWidth:ownerWidth+amountWidth], o.BuyAmount)
	putAmount(k[ownerWidth+amountWidth:], o.SellAmount)
	return k
}

// Decode unpacks a key produced by Encode.
func Decode(k Key) Order {
	switch k {
	case startKey:
		return QueueStart
	case endKey:
		return QueueEnd
	}
	return Order{
		OwnerID:    binary.BigEndian.Uint64(k[:ownerWidth]),
		BuyAmount:  getAmount(k[ownerWidth : ownerWidth+amountWidth]),
		SellAmount: getAmount(k[ownerWidth+amountWidth:]),
	}
}

func (k Key) Order() Order { return Decode(k) }

// String renders the key as 0x-prefixed hex; it is the order reference
// used on the wire.
func (k Key) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	var k Key
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(raw) != KeySize {
		return k, fmt.Errorf("%w: got %d bytes", ErrMalformedKey, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// KeyFromBytes copies a raw key.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: got %d bytes", ErrMalformedKey, len(b))
	}
	copy(k[:], b)
	return k, nil
}

func putAmount(dst []byte, u sdkmath.Uint) {
	if u.IsNil() {
		return
	}
	u.BigInt().FillBytes(dst)
}

func getAmount(src []byte) sdkmath.Uint {
	return sdkmath.NewUintFromBigInt(new(big.Int).SetBytes(src))
}
