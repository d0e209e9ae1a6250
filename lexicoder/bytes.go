package lexicoder

import (
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
)

// BytesCoder is the identity lexicoder: it encodes a []byte to itself.
// Unsigned-lex order on the encoded bytes is by definition unsigned-lex
// order on the input, so the order-preservation law is trivially true.
type BytesCoder struct{}

func (BytesCoder) Tag() Tag { return Tag{Head: headBytes} }

func (BytesCoder) Encode(value interface{}) ([]byte, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: bytes coder requires a []byte, got %T", errs.ErrInvalidArgument, value)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: bytes coder rejects empty input", errs.ErrInvalidArgument)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (BytesCoder) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: bytes coder rejects empty input", errs.ErrInvalidArgument)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
