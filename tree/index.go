package tree

import (
	"context"
	"fmt"

	"github.com/pombredanne/merkle-db/errs"
	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
)

// Index is the in-memory, decoded form of an index node: an ordered vector
// of children one level below, all of the same height. Split keys are never
// stored explicitly; they are the FirstKey of every child but the first,
// recomputed on load.
type Index struct {
	Height   int
	Children []Ref
}

// SplitKeys returns split_keys[i] = first_key(children[i+1]) for i in
// [0, len(children)-2].
func (idx Index) SplitKeys() []key.Key {
	if len(idx.Children) < 2 {
		return nil
	}
	keys := make([]key.Key, len(idx.Children)-1)
	for i := 1; i < len(idx.Children); i++ {
		keys[i-1] = idx.Children[i].FirstKey
	}
	return keys
}

// childFor returns the index of the child that owns k: the largest i with
// split_keys[i-1] <= k, or 0 if none.
func (idx Index) childFor(k key.Key) int {
	splits := idx.SplitKeys()
	i := 0
	for i < len(splits) && splits[i].Compare(k) <= 0 {
		i++
	}
	return i
}

// storeIndex serializes and persists idx as a nodestore.TypeIndex node.
func storeIndex(ctx context.Context, store nodestore.Store, idx Index) (nodestore.Digest, error) {
	children := make([]interface{}, len(idx.Children))
	for i, c := range idx.Children {
		children[i] = map[string]interface{}{
			"digest":    c.Digest[:],
			"first-key": []byte(c.FirstKey),
			"height":    int64(c.Height),
		}
	}
	node := nodestore.Node{
		Type: nodestore.TypeIndex,
		Attributes: map[string]interface{}{
			"height":   int64(idx.Height),
			"children": children,
		},
	}
	return store.Put(ctx, node)
}

// loadIndex reconstructs an Index from its stored representation.
func loadIndex(ctx context.Context, store nodestore.Store, digest nodestore.Digest) (Index, error) {
	node, err := nodestore.GetTyped(ctx, store, digest, nodestore.TypeIndex)
	if err != nil {
		return Index{}, err
	}

	height, ok := asInt64(node.Attributes["height"])
	if !ok {
		return Index{}, fmt.Errorf("%w: index node %s has malformed height attribute", errs.ErrCorruptNode, digest)
	}

	rawChildren, ok := node.Attributes["children"].([]interface{})
	if !ok {
		return Index{}, fmt.Errorf("%w: index node %s has malformed children attribute", errs.ErrCorruptNode, digest)
	}
	children := make([]Ref, len(rawChildren))
	for i, raw := range rawChildren {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return Index{}, fmt.Errorf("%w: index node %s child %d is malformed", errs.ErrCorruptNode, digest, i)
		}
		digestBytes, ok := m["digest"].([]byte)
		if !ok || len(digestBytes) != len(nodestore.Digest{}) {
			return Index{}, fmt.Errorf("%w: index node %s child %d has malformed digest", errs.ErrCorruptNode, digest, i)
		}
		var childDigest nodestore.Digest
		copy(childDigest[:], digestBytes)
		firstKey, _ := m["first-key"].([]byte)
		childHeight, ok := asInt64(m["height"])
		if !ok {
			return Index{}, fmt.Errorf("%w: index node %s child %d has malformed height", errs.ErrCorruptNode, digest, i)
		}
		children[i] = Ref{Digest: childDigest, FirstKey: key.Key(firstKey), Height: int(childHeight)}
	}

	if len(children) == 0 {
		return Index{}, fmt.Errorf("%w: index node %s has no children", errs.ErrCorruptNode, digest)
	}

	return Index{Height: int(height), Children: children}, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
