package tree

import (
	"context"

	"github.com/pombredanne/merkle-db/nodestore"
)

// groupChildren partitions items into consecutive groups of between
// ceil(b/2) and b elements. When the trailing remainder would fall short of
// the minimum, it borrows from the tail of the previous group to bring both
// up to the minimum, exactly as build_index specifies.
func groupChildren(items []Ref, branching int) [][]Ref {
	min := (branching + 1) / 2
	n := len(items)
	if n <= branching {
		return [][]Ref{items}
	}

	var groups [][]Ref
	i := 0
	for n-i > branching {
		groups = append(groups, items[i:i+branching])
		i += branching
	}
	remainder := items[i:]

	if len(remainder) < min && len(groups) > 0 {
		last := groups[len(groups)-1]
		need := min - len(remainder)
		split := len(last) - need
		borrowed := append([]Ref{}, last[split:]...)
		groups[len(groups)-1] = last[:split]
		remainder = append(borrowed, remainder...)
	}

	groups = append(groups, remainder)
	return groups
}

// groupOnce packages a flat, same-height list of refs into the node(s) one
// level up: a single new index node when the list fits within the
// branching factor, or several consecutive index nodes (each within
// [ceil(b/2), b] children) when it does not. The caller decides whether a
// resulting multi-node list needs further packaging.
func groupOnce(ctx context.Context, store nodestore.Store, branching int, refs []Ref) ([]Ref, error) {
	groups := groupChildren(refs, branching)
	out := make([]Ref, len(groups))
	for i, g := range groups {
		digest, err := storeIndex(ctx, store, Index{Height: g[0].Height + 1, Children: g})
		if err != nil {
			return nil, err
		}
		out[i] = Ref{Digest: digest, FirstKey: g[0].FirstKey, Height: g[0].Height + 1}
	}
	return out, nil
}

// mergeGroupWithSibling implements the borrow-or-merge half of
// reassembly: it loads sibling (an already-stored, valid node one level
// above pending's own elements) and combines its children with pending,
// in the order pendingFirst dictates, then re-splits the combined list
// with groupChildren and stores each resulting group. Concatenating an
// undersized group (< ceil(b/2) children) with a valid sibling's children
// ([ceil(b/2), b]) always yields at least ceil(b/2)+1 combined children,
// enough for groupChildren to hand back one or more properly sized
// groups, so sibling is never left short by this call. The sibling's
// original stored node becomes unreferenced garbage once its replacement
// is wired in by the caller.
func mergeGroupWithSibling(ctx context.Context, store nodestore.Store, branching int, pending []Ref, sibling Ref, pendingFirst bool) ([]Ref, error) {
	idx, err := loadIndex(ctx, store, sibling.Digest)
	if err != nil {
		return nil, err
	}

	combined := make([]Ref, 0, len(pending)+len(idx.Children))
	if pendingFirst {
		combined = append(combined, pending...)
		combined = append(combined, idx.Children...)
	} else {
		combined = append(combined, idx.Children...)
		combined = append(combined, pending...)
	}

	groups := groupChildren(combined, branching)
	out := make([]Ref, len(groups))
	for i, g := range groups {
		digest, err := storeIndex(ctx, store, Index{Height: idx.Height, Children: g})
		if err != nil {
			return nil, err
		}
		out[i] = Ref{Digest: digest, FirstKey: g[0].FirstKey, Height: idx.Height}
	}
	return out, nil
}

// buildIndex repeatedly groups a flat list of refs upward until a single
// root ref remains: nil for no input, the bare input unwrapped for a single
// input (root demotion), otherwise as many grouping passes as it takes to
// converge on one node.
func buildIndex(ctx context.Context, store nodestore.Store, branching int, refs []Ref) (*Ref, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	current := refs
	for len(current) > 1 {
		next, err := groupOnce(ctx, store, branching, current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	root := current[0]
	return &root, nil
}
