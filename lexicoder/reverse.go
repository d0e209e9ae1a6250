package lexicoder

// ReverseCoder complements every byte of the inner coder's encoding,
// producing the reverse of the inner coder's order.
type ReverseCoder struct {
	Inner Coder
}

func (c ReverseCoder) Tag() Tag { return Tag{Head: headReverse, Elems: []Tag{c.Inner.Tag()}} }

func (c ReverseCoder) Encode(value interface{}) ([]byte, error) {
	encoded, err := c.Inner.Encode(value)
	if err != nil {
		return nil, err
	}
	return complement(encoded), nil
}

func (c ReverseCoder) Decode(data []byte) (interface{}, error) {
	return c.Inner.Decode(complement(data))
}

func complement(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = 255 - c
	}
	return out
}
