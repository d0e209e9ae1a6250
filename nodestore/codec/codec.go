// Package codec provides the canonical, deterministic wire encoding every
// node-store backend uses to turn a nodestore.Node into bytes and back:
// CBOR in canonical mode (map keys sorted, the determinism the bulk-update
// algorithm's digest stability relies on) with optional zstd compression.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/pombredanne/merkle-db/nodestore"
)

// wireNode is the on-disk shape: Type plus Attributes, field-named so CBOR
// produces a stable two-key map regardless of Go struct field order.
type wireNode struct {
	Type       nodestore.Type         `cbor:"type"`
	Attributes map[string]interface{} `cbor:"attributes"`
}

// Codec encodes nodestore.Node values to bytes and back, optionally
// compressing the CBOR payload with zstd.
type Codec struct {
	encoder cbor.EncMode
	decoder cbor.DecMode

	compress     bool
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// Option configures a Codec.
type Option func(*Codec)

// WithCompression enables zstd compression of encoded node payloads.
func WithCompression() Option {
	return func(c *Codec) {
		c.compress = true
	}
}

// New builds a Codec in canonical CBOR mode.
func New(opts ...Option) (*Codec, error) {
	encOptions := cbor.CanonicalEncOptions()
	encoder, err := encOptions.EncMode()
	if err != nil {
		return nil, fmt.Errorf("could not build canonical cbor encoder: %w", err)
	}
	decoder, err := cbor.DecOptions{IntDec: cbor.IntDecConvertSigned}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("could not build cbor decoder: %w", err)
	}

	c := &Codec{
		encoder: encoder,
		decoder: decoder,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.compress {
		compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("could not build zstd compressor: %w", err)
		}
		decompressor, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("could not build zstd decompressor: %w", err)
		}
		c.compressor = compressor
		c.decompressor = decompressor
	}

	return c, nil
}

// Encode serializes node into its canonical wire form.
func (c *Codec) Encode(node nodestore.Node) ([]byte, error) {
	data, err := c.encoder.Marshal(wireNode{Type: node.Type, Attributes: node.Attributes})
	if err != nil {
		return nil, fmt.Errorf("could not marshal node: %w", err)
	}
	if c.compress {
		data = c.compressor.EncodeAll(data, nil)
	}
	return data, nil
}

// Decode reconstructs a node from its wire form.
func (c *Codec) Decode(data []byte) (nodestore.Node, error) {
	if c.compress {
		decoded, err := c.decompressor.DecodeAll(data, nil)
		if err != nil {
			return nodestore.Node{}, fmt.Errorf("could not decompress node: %w", err)
		}
		data = decoded
	}
	var wire wireNode
	if err := c.decoder.Unmarshal(data, &wire); err != nil {
		return nodestore.Node{}, fmt.Errorf("could not unmarshal node: %w", err)
	}
	return nodestore.Node{Type: wire.Type, Attributes: wire.Attributes}, nil
}
