package grpcserver

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var ErrMalformedMessage = errors.New("grpcserver: malformed message")

// Codec speaks the protobuf wire format of
// api/proto/batchauction/v1/auction_house.proto for the plain structs of
// this package, reading field numbers from their protobuf struct tags.
// Generated messages are handed to proto unchanged.
//
// Servers install it with grpc.ForceServerCodec; Client forces it on every
// call.
var Codec encoding.Codec = wireCodec{}

type wireCodec struct{}

func (wireCodec) Name() string { return "proto" }

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	rv, err := message(v)
	if err != nil {
		return nil, err
	}
	return appendMessage(nil, rv)
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	rv, err := message(v)
	if err != nil {
		return err
	}
	return consumeMessage(data, rv)
}

func message(v interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("grpcserver: cannot encode %T", v)
	}
	return rv.Elem(), nil
}

// -------------------- Field table --------------------

type field struct {
	num   protowire.Number
	index int
}

var fieldCache sync.Map // reflect.Type -> []field

func fieldsOf(t reflect.Type) []field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field)
	}
	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		// tags look like `protobuf:"bytes,3,rep,name=hints,proto3"`
		parts := strings.Split(t.Field(i).Tag.Get("protobuf"), ",")
		if len(parts) < 2 {
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			panic(fmt.Sprintf("grpcserver: bad protobuf tag on %s.%s", t.Name(), t.Field(i).Name))
		}
		fields = append(fields, field{num: protowire.Number(n), index: i})
	}
	fieldCache.Store(t, fields)
	return fields
}

var timeType = reflect.TypeOf(time.Time{})

// -------------------- Encoding --------------------

func appendMessage(b []byte, v reflect.Value) ([]byte, error) {
	var err error
	for _, f := range fieldsOf(v.Type()) {
		if b, err = appendField(b, f.num, v.Field(f.index)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// appendField writes one field, leaving out proto3 defaults.
func appendField(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	switch v.Kind() {
	case reflect.String:
		if v.Len() > 0 {
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendString(b, v.String())
		}
	case reflect.Uint64, reflect.Uint32:
		if v.Uint() != 0 {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, v.Uint())
		}
	case reflect.Int64, reflect.Int:
		if v.Int() != 0 {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(v.Int()))
		}
	case reflect.Bool:
		if v.Bool() {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, protowire.EncodeBool(true))
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if v.Len() > 0 {
				b = protowire.AppendTag(b, num, protowire.BytesType)
				b = protowire.AppendBytes(b, v.Bytes())
			}
			return b, nil
		}
		var err error
		for i := 0; i < v.Len(); i++ {
			if b, err = appendElement(b, num, v.Index(i)); err != nil {
				return nil, err
			}
		}
	case reflect.Pointer:
		if !v.IsNil() {
			return appendEmbedded(b, num, v.Elem())
		}
	case reflect.Struct:
		if v.Type() == timeType {
			return appendTime(b, num, v.Interface().(time.Time))
		}
		return appendEmbedded(b, num, v)
	default:
		return nil, fmt.Errorf("grpcserver: field %d: unsupported kind %s", num, v.Kind())
	}
	return b, nil
}

// appendElement writes a repeated entry; empty strings and messages still
// count.
func appendElement(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	switch v.Kind() {
	case reflect.String:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendString(b, v.String()), nil
	case reflect.Struct:
		inner, err := appendMessage(nil, v)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, inner), nil
	default:
		return nil, fmt.Errorf("grpcserver: field %d: unsupported repeated kind %s", num, v.Kind())
	}
}

func appendEmbedded(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	inner, err := appendMessage(nil, v)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

// appendTime writes t as google.protobuf.Timestamp. The zero time is left
// out.
func appendTime(b []byte, num protowire.Number, t time.Time) ([]byte, error) {
	if t.IsZero() {
		return b, nil
	}
	inner, err := proto.Marshal(timestamppb.New(t))
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

// -------------------- Decoding --------------------

// consumeMessage merges b into v. Unknown fields are skipped.
func consumeMessage(b []byte, v reflect.Value) error {
	fields := fieldsOf(v.Type())
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]

		target, ok := lookup(fields, num, v)
		if !ok {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return malformed(n)
			}
			b = b[n:]
			continue
		}

		var err error
		if typ == protowire.VarintType {
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return malformed(n)
			}
			b = b[n:]
			err = setVarint(target, num, x)
		} else if typ == protowire.BytesType {
			x, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return malformed(n)
			}
			b = b[n:]
			err = setBytes(target, num, x)
		} else {
			err = fmt.Errorf("%w: field %d has wire type %d", ErrMalformedMessage, num, typ)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func lookup(fields []field, num protowire.Number, v reflect.Value) (reflect.Value, bool) {
	for _, f := range fields {
		if f.num == num {
			return v.Field(f.index), true
		}
	}
	return reflect.Value{}, false
}

func setVarint(v reflect.Value, num protowire.Number, x uint64) error {
	switch v.Kind() {
	case reflect.Uint64, reflect.Uint32:
		v.SetUint(x)
	case reflect.Int64, reflect.Int:
		v.SetInt(int64(x))
	case reflect.Bool:
		v.SetBool(protowire.DecodeBool(x))
	default:
		return fmt.Errorf("%w: field %d is not a varint", ErrMalformedMessage, num)
	}
	return nil
}

func setBytes(v reflect.Value, num protowire.Number, x []byte) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(string(x))
	case reflect.Slice:
		elem := v.Type().Elem()
		switch elem.Kind() {
		case reflect.Uint8:
			v.SetBytes(append([]byte(nil), x...))
		case reflect.String:
			v.Set(reflect.Append(v, reflect.ValueOf(string(x)).Convert(elem)))
		case reflect.Struct:
			item := reflect.New(elem).Elem()
			if err := consumeMessage(x, item); err != nil {
				return err
			}
			v.Set(reflect.Append(v, item))
		default:
			return fmt.Errorf("%w: field %d", ErrMalformedMessage, num)
		}
	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return consumeMessage(x, v.Elem())
	case reflect.Struct:
		if v.Type() == timeType {
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(x, &ts); err != nil {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, err)
			}
			v.Set(reflect.ValueOf(ts.AsTime()))
			return nil
		}
		return consumeMessage(x, v)
	default:
		return fmt.Errorf("%w: field %d is not length-delimited", ErrMalformedMessage, num)
	}
	return nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
}
