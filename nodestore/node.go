// Package nodestore defines the content-addressed blob store contract the
// core consumes: put a node value, get it back by digest, and link a named
// reference to it from within a parent node.
package nodestore

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Type tags the kind of node an Attributes map describes.
type Type string

const (
	TypePartition Type = "partition"
	TypeIndex     Type = "index"
	TypeTablet    Type = "tablet"
)

// Digest is the content address of a node: the blake3-256 hash of the
// node's encoded form as the store's codec writes it (type tag plus
// attributes, compressed when the store compresses).
type Digest [32]byte

// String renders the digest as lowercase hex, for logging and reference
// names.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero digest, the sentinel for "no node":
// the root-reference tracker and the table package record an empty tree as
// the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ComputeDigest hashes encoded node bytes into a Digest.
func ComputeDigest(encoded []byte) Digest {
	return Digest(blake3.Sum256(encoded))
}

// ParseDigest decodes a hex string produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest encoding: %w", err)
	}
	if len(b) != len(Digest{}) {
		return Digest{}, fmt.Errorf("invalid digest length %d", len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// Node is a self-describing, immutable value: a type tag plus the
// attributes of that node kind (§3's partition, index node and tablet
// attribute sets), carried as a generic map so the codec package can
// serialize it canonically without every caller needing a concrete struct
// per node kind.
type Node struct {
	Type       Type
	Attributes map[string]interface{}
}

// Reference is a named pointer to a stored node, the value a parent node
// embeds for one of its children or tablets.
type Reference struct {
	Name   string
	Digest Digest
	Size   int64
}
