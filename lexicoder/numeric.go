package lexicoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pombredanne/merkle-db/errs"
)

// LongCoder encodes a signed 64-bit integer as 8 big-endian bytes with the
// sign bit flipped, so that two's-complement negatives sort before
// non-negatives under unsigned-lex comparison, matching signed numeric order.
type LongCoder struct{}

func (LongCoder) Tag() Tag { return Tag{Head: headLong} }

func (LongCoder) Encode(value interface{}) ([]byte, error) {
	v, err := asInt64(value)
	if err != nil {
		return nil, err
	}
	return encodeLong(v), nil
}

func (LongCoder) Decode(data []byte) (interface{}, error) {
	v, err := decodeLong(data)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func encodeLong(v int64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(v)^(uint64(1)<<63))
	return out
}

func decodeLong(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: long coder requires exactly 8 bytes, got %d", errs.ErrInvalidArgument, len(data))
	}
	bits := binary.BigEndian.Uint64(data) ^ (uint64(1) << 63)
	return int64(bits), nil
}

func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: long coder requires an int64, got %T", errs.ErrInvalidArgument, value)
	}
}

// DoubleCoder encodes an IEEE-754 double such that unsigned-lex order on the
// 8 raw bytes matches numeric order: if the sign bit is set, every bit is
// inverted; otherwise only the sign bit is flipped (set). Both transforms
// push negatives below the all-zero-sign-bit boundary and positives above
// it, in magnitude order on each side. NaN is rejected; -0.0 normalizes to
// +0.0 so both produce the same encoding.
type DoubleCoder struct{}

func (DoubleCoder) Tag() Tag { return Tag{Head: headDouble} }

func (DoubleCoder) Encode(value interface{}) ([]byte, error) {
	v, ok := value.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: double coder requires a float64, got %T", errs.ErrInvalidArgument, value)
	}
	if math.IsNaN(v) {
		return nil, fmt.Errorf("%w: double coder rejects NaN", errs.ErrInvalidArgument)
	}
	if v == 0 {
		v = 0 // normalize -0.0 to +0.0
	}
	bits := math.Float64bits(v)
	const signBit = uint64(1) << 63
	if bits&signBit != 0 {
		bits = ^bits
	} else {
		bits |= signBit
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, bits)
	return out, nil
}

func (DoubleCoder) Decode(data []byte) (interface{}, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("%w: double coder requires exactly 8 bytes, got %d", errs.ErrInvalidArgument, len(data))
	}
	bits := binary.BigEndian.Uint64(data)
	const signBit = uint64(1) << 63
	if bits&signBit != 0 {
		bits &^= signBit
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}
