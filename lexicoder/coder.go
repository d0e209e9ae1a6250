// Package lexicoder implements the codec family described for the key
// encoding layer: bidirectional codecs between typed values and non-empty
// byte sequences whose unsigned lexicographic order reproduces the order of
// the source values. Every codec in this package is built on that single
// invariant, because the partition and tree packages compare keys only as
// raw bytes.
package lexicoder

import (
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
)

// Tag is the self-describing configuration of a coder: a head keyword plus
// whatever parameters that keyword needs. Tags round-trip through New so
// a table's key-lexicoder configuration can be stored alongside the table
// and reconstructed on open.
type Tag struct {
	Head    string
	Charset string // used by "string"
	Elems   []Tag  // used by "sequence", "tuple", "reverse" (single element)
}

// String renders the tag the way a configuration file would, e.g.
// "tuple(string,long)" or "reverse(long)".
func (t Tag) String() string {
	switch t.Head {
	case headString:
		if t.Charset == "" {
			return headString
		}
		return fmt.Sprintf("%s(%s)", headString, t.Charset)
	case headSequence, headReverse:
		return fmt.Sprintf("%s(%s)", t.Head, t.Elems[0].String())
	case headTuple:
		s := headTuple + "("
		for i, e := range t.Elems {
			if i > 0 {
				s += ","
			}
			s += e.String()
		}
		return s + ")"
	default:
		return t.Head
	}
}

const (
	headBytes    = "bytes"
	headString   = "string"
	headLong     = "long"
	headDouble   = "double"
	headInstant  = "instant"
	headSequence = "sequence"
	headTuple    = "tuple"
	headReverse  = "reverse"
)

// Coder is the capability set every lexicoder implementation exposes: a
// self-describing tag, and an order-preserving encode/decode pair. encode
// rejects inputs that cannot round-trip (wrong arity, empty input where
// forbidden); decode rejects byte sequences of the wrong shape.
type Coder interface {
	Tag() Tag
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

// New builds a Coder from a Tag, dispatching on its head keyword. It is the
// single factory every composite coder (sequence, tuple, reverse) uses
// internally to build its element coders, so a Tag is the only
// self-contained description of a coder tree that needs to be persisted.
func New(tag Tag) (Coder, error) {
	switch tag.Head {
	case headBytes:
		return BytesCoder{}, nil
	case headString:
		charset := tag.Charset
		if charset == "" {
			charset = "UTF-8"
		}
		if charset != "UTF-8" {
			return nil, fmt.Errorf("%w: unsupported charset %q", errs.ErrUnsupportedConfig, charset)
		}
		return StringCoder{}, nil
	case headLong:
		return LongCoder{}, nil
	case headDouble:
		return DoubleCoder{}, nil
	case headInstant:
		return InstantCoder{}, nil
	case headSequence:
		if len(tag.Elems) != 1 {
			return nil, fmt.Errorf("%w: sequence takes exactly one element coder", errs.ErrUnsupportedConfig)
		}
		elem, err := New(tag.Elems[0])
		if err != nil {
			return nil, err
		}
		return SequenceCoder{Elem: elem}, nil
	case headTuple:
		if len(tag.Elems) == 0 {
			return nil, fmt.Errorf("%w: tuple needs at least one element coder", errs.ErrUnsupportedConfig)
		}
		elems := make([]Coder, len(tag.Elems))
		for i, e := range tag.Elems {
			coder, err := New(e)
			if err != nil {
				return nil, err
			}
			elems[i] = coder
		}
		return TupleCoder{Elems: elems}, nil
	case headReverse:
		if len(tag.Elems) != 1 {
			return nil, fmt.Errorf("%w: reverse takes exactly one element coder", errs.ErrUnsupportedConfig)
		}
		inner, err := New(tag.Elems[0])
		if err != nil {
			return nil, err
		}
		return ReverseCoder{Inner: inner}, nil
	default:
		return nil, fmt.Errorf("%w: unknown lexicoder tag %q", errs.ErrUnsupportedConfig, tag.Head)
	}
}
