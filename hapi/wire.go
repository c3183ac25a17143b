package hapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

// Field is one decoded protobuf field. Varint and fixed values are held in
// Uint, length delimited values in Bytes.
type Field struct {
	Num   protowire.Number
	Type  protowire.Type
	Uint  uint64
	Bytes []byte
}

// Int64 returns the field as a twos complement int64.
func (f Field) Int64() int64 { return int64(f.Uint) }

// Sint64 returns the field decoded as a zigzag sint64.
func (f Field) Sint64() int64 { return protowire.DecodeZigZag(f.Uint) }

// Int64s decodes a repeated int64 field in either packed or unpacked form.
func (f Field) Int64s() ([]int64, error) {
	if f.Type == protowire.VarintType {
		return []int64{f.Int64()}, nil
	}
	var out []int64
	packed := f.Bytes
	for len(packed) > 0 {
		v, n := protowire.ConsumeVarint(packed)
		if n < 0 {
			return out, protowire.ParseError(n)
		}
		out = append(out, int64(v))
		packed = packed[n:]
	}
	return out, nil
}

// Walk calls fn for every top level field of msg in wire order.
func Walk(msg []byte, fn func(Field) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("failed to read tag: %w", protowire.ParseError(n))
		}
		msg = msg[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Uint, n = protowire.ConsumeVarint(msg)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(msg)
			f.Uint = uint64(v)
		case protowire.Fixed64Type:
			f.Uint, n = protowire.ConsumeFixed64(msg)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
		}
		if n < 0 {
			return fmt.Errorf("failed to read field %d: %w", num, protowire.ParseError(n))
		}
		msg = msg[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// AppendVarint appends a varint field, omitting the proto3 default.
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendSint64 appends a zigzag encoded field, omitting the proto3 default.
func AppendSint64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// AppendBool appends a bool field, omitting false.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

// AppendBytes appends a length delimited field, omitting empty values.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendMessage appends an embedded message. Unlike AppendBytes an empty
// message is still written, so a set but empty submessage survives.
func AppendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// AppendPackedInt64 appends a packed repeated int64 field, omitting an empty list.
func AppendPackedInt64(b []byte, num protowire.Number, vs []int64) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	return AppendBytes(b, num, packed)
}

// AppendString appends a string field, omitting the empty string.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// MarshalEntityID encodes an AccountID, FileID, TopicID, TokenID, ContractID
// or ScheduleID. They share the shard=1 realm=2 num=3 layout.
func MarshalEntityID(id entity.EntityID) []byte {
	var b []byte
	b = AppendVarint(b, 1, id.Shard)
	b = AppendVarint(b, 2, id.Realm)
	b = AppendVarint(b, 3, id.Num)
	return b
}

// AppendEntityID appends id as an embedded message.
func AppendEntityID(b []byte, num protowire.Number, id entity.EntityID) []byte {
	return AppendMessage(b, num, MarshalEntityID(id))
}

func UnmarshalEntityID(msg []byte) (entity.EntityID, error) {
	var id entity.EntityID
	err := Walk(msg, func(f Field) error {
		switch f.Num {
		case 1:
			id.Shard = f.Uint
		case 2:
			id.Realm = f.Uint
		case 3:
			id.Num = f.Uint
		}
		return nil
	})
	return id, err
}

func marshalTimestamp(t time.Time) []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(t.Unix()))
	b = AppendVarint(b, 2, uint64(int64(t.Nanosecond())))
	return b
}

func unmarshalTimestamp(msg []byte) (time.Time, error) {
	var secs, nanos int64
	err := Walk(msg, func(f Field) error {
		switch f.Num {
		case 1:
			secs = f.Int64()
		case 2:
			nanos = int64(int32(f.Uint))
		}
		return nil
	})
	return time.Unix(secs, nanos).UTC(), err
}

// MarshalTransactionID encodes id as a TransactionID message.
func MarshalTransactionID(id entity.TransactionID) []byte {
	var b []byte
	b = AppendMessage(b, 1, marshalTimestamp(id.ValidStart))
	b = AppendEntityID(b, 2, id.AccountID)
	b = AppendBool(b, 3, id.Scheduled)
	b = AppendVarint(b, 4, uint64(int64(id.Nonce)))
	return b
}

func UnmarshalTransactionID(msg []byte) (entity.TransactionID, error) {
	var id entity.TransactionID
	err := Walk(msg, func(f Field) error {
		var err error
		switch f.Num {
		case 1:
			id.ValidStart, err = unmarshalTimestamp(f.Bytes)
		case 2:
			id.AccountID, err = UnmarshalEntityID(f.Bytes)
		case 3:
			id.Scheduled = f.Uint != 0
		case 4:
			id.Nonce = int32(f.Uint)
		}
		return err
	})
	return id, err
}
