package tree

import (
	"context"
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/partition"
)

// LoadRef reconstructs a tree Ref from a bare digest by loading just enough
// of the node to recover its height and first key, the two pieces a root
// reference tracker does not persist on its own since it only ever stores a
// digest.
func LoadRef(ctx context.Context, store nodestore.Store, digest nodestore.Digest) (*Ref, error) {
	node, err := store.Get(ctx, digest)
	if err != nil {
		return nil, err
	}

	switch node.Type {
	case nodestore.TypePartition:
		p, err := partition.Load(ctx, store, digest)
		if err != nil {
			return nil, err
		}
		return &Ref{Digest: digest, FirstKey: p.FirstKey, Height: 0}, nil
	case nodestore.TypeIndex:
		idx, err := loadIndex(ctx, store, digest)
		if err != nil {
			return nil, err
		}
		return &Ref{Digest: digest, FirstKey: idx.Children[0].FirstKey, Height: idx.Height}, nil
	default:
		return nil, fmt.Errorf("%w: digest %s has type %q, not a tree root", errs.ErrTypeMismatch, digest, node.Type)
	}
}
