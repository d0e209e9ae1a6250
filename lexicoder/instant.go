package lexicoder

import (
	"fmt"
	"time"

	"github.com/pombredanne/merkle-db/errs"
)

// InstantCoder encodes a point in time as milliseconds since the Unix epoch,
// using the long coder's sign-flipped big-endian representation.
type InstantCoder struct{}

func (InstantCoder) Tag() Tag { return Tag{Head: headInstant} }

func (InstantCoder) Encode(value interface{}) ([]byte, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("%w: instant coder requires a time.Time, got %T", errs.ErrInvalidArgument, value)
	}
	return encodeLong(t.UnixMilli()), nil
}

func (InstantCoder) Decode(data []byte) (interface{}, error) {
	millis, err := decodeLong(data)
	if err != nil {
		return nil, err
	}
	return time.UnixMilli(millis).UTC(), nil
}
