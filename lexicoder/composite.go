package lexicoder

import (
	"bytes"
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
)

// SequenceCoder encodes a variable-length []interface{} by escaping and
// concatenating each element's encoding with a single 0x00 separator. An
// empty sequence encodes to the empty byte slice, which is why sequence
// output is unsuitable as a standalone key unless wrapped in a context that
// tolerates empty keys.
type SequenceCoder struct {
	Elem Coder
}

func (c SequenceCoder) Tag() Tag { return Tag{Head: headSequence, Elems: []Tag{c.Elem.Tag()}} }

func (c SequenceCoder) Encode(value interface{}) ([]byte, error) {
	values, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: sequence coder requires a []interface{}, got %T", errs.ErrInvalidArgument, value)
	}
	if len(values) == 0 {
		return []byte{}, nil
	}
	parts := make([][]byte, len(values))
	for i, v := range values {
		encoded, err := c.Elem.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("could not encode sequence element %d: %w", i, err)
		}
		parts[i] = escapeElement(encoded)
	}
	return bytes.Join(parts, []byte{0x00}), nil
}

func (c SequenceCoder) Decode(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return []interface{}{}, nil
	}
	parts := splitEscaped(data)
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		unescaped, err := unescapeElement(part)
		if err != nil {
			return nil, fmt.Errorf("could not unescape sequence element %d: %w", i, err)
		}
		v, err := c.Elem.Decode(unescaped)
		if err != nil {
			return nil, fmt.Errorf("could not decode sequence element %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// TupleCoder is like SequenceCoder but with a fixed, heterogeneous arity: one
// coder per position.
type TupleCoder struct {
	Elems []Coder
}

func (c TupleCoder) Tag() Tag {
	tags := make([]Tag, len(c.Elems))
	for i, e := range c.Elems {
		tags[i] = e.Tag()
	}
	return Tag{Head: headTuple, Elems: tags}
}

func (c TupleCoder) Encode(value interface{}) ([]byte, error) {
	values, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: tuple coder requires a []interface{}, got %T", errs.ErrInvalidArgument, value)
	}
	if len(values) != len(c.Elems) {
		return nil, fmt.Errorf("%w: tuple coder requires exactly %d elements, got %d", errs.ErrInvalidArgument, len(c.Elems), len(values))
	}
	parts := make([][]byte, len(values))
	for i, v := range values {
		encoded, err := c.Elems[i].Encode(v)
		if err != nil {
			return nil, fmt.Errorf("could not encode tuple element %d: %w", i, err)
		}
		parts[i] = escapeElement(encoded)
	}
	return bytes.Join(parts, []byte{0x00}), nil
}

func (c TupleCoder) Decode(data []byte) (interface{}, error) {
	parts := splitEscaped(data)
	if len(parts) != len(c.Elems) {
		return nil, fmt.Errorf("%w: tuple coder expected %d elements, got %d", errs.ErrInvalidArgument, len(c.Elems), len(parts))
	}
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		unescaped, err := unescapeElement(part)
		if err != nil {
			return nil, fmt.Errorf("could not unescape tuple element %d: %w", i, err)
		}
		v, err := c.Elems[i].Decode(unescaped)
		if err != nil {
			return nil, fmt.Errorf("could not decode tuple element %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
