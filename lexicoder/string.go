package lexicoder

import (
	"fmt"
	"unicode/utf8"

	"github.com/pombredanne/merkle-db/errs"
)

// StringCoder encodes UTF-8 text as its raw bytes. Go's UTF-8 encoding is
// already order-preserving against Unicode code point order, so no
// transformation beyond validation is required.
type StringCoder struct{}

func (StringCoder) Tag() Tag { return Tag{Head: headString} }

func (StringCoder) Encode(value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: string coder requires a string, got %T", errs.ErrInvalidArgument, value)
	}
	if s == "" {
		return nil, fmt.Errorf("%w: string coder rejects empty input", errs.ErrInvalidArgument)
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: string coder requires valid UTF-8", errs.ErrInvalidArgument)
	}
	return []byte(s), nil
}

func (StringCoder) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: string coder rejects empty input", errs.ErrInvalidArgument)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: string coder requires valid UTF-8", errs.ErrInvalidArgument)
	}
	return string(data), nil
}
