package lexicoder

import (
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
)

// escapeElement rewrites 0x00 to 0x01 0x01 and 0x01 to 0x01 0x02, so that the
// single unescaped 0x00 byte used between elements by SequenceCoder and
// TupleCoder is unambiguous.
func escapeElement(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case 0x00:
			out = append(out, 0x01, 0x01)
		case 0x01:
			out = append(out, 0x01, 0x02)
		default:
			out = append(out, c)
		}
	}
	return out
}

// unescapeElement reverses escapeElement.
func unescapeElement(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != 0x01 {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(b) {
			return nil, fmt.Errorf("%w: truncated escape sequence", errs.ErrInvalidArgument)
		}
		switch b[i] {
		case 0x01:
			out = append(out, 0x00)
		case 0x02:
			out = append(out, 0x01)
		default:
			return nil, fmt.Errorf("%w: invalid escape sequence 0x01 0x%02x", errs.ErrInvalidArgument, b[i])
		}
	}
	return out, nil
}

// splitEscaped splits data on unescaped 0x00 separators, leaving the
// escaping within each part untouched.
func splitEscaped(data []byte) [][]byte {
	var parts [][]byte
	start := 0
	i := 0
	for i < len(data) {
		switch data[i] {
		case 0x00:
			parts = append(parts, data[start:i])
			i++
			start = i
		case 0x01:
			i += 2
		default:
			i++
		}
	}
	parts = append(parts, data[start:])
	return parts
}
