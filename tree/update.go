package tree

import (
	"context"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/partition"
	"github.com/pombredanne/merkle-db/patch"
	"github.com/pombredanne/merkle-db/record"
)

// result is an update result as described by the bulk-update algorithm: a
// tagged pair of height and payload.
//
//   - loose (independent of height) — records that shrank below a full
//     partition, carried up for merging with a sibling's change slice.
//   - height = -1 — no refs or pending of its own: a subtree collapsed
//     entirely, down to (possibly) a bare loose carry.
//   - height = h >= 0, refs set — zero or more valid, already-stored
//     partitions (h=0) or index nodes of height h.
//   - height = h > 0, pending set — a single, NOT-yet-stored node of
//     height h: pending holds its prospective children (height h-1), short
//     of params.MinBranching(). The caller must merge pending with an
//     adjacent sibling's children before anything here is written to the
//     store; only once merged does it become a refs result.
type result struct {
	height  int
	loose   []record.Record
	refs    []Ref
	pending []Ref
}

// Update runs the bulk-update algorithm against root (nil for an empty
// tree) with a key-sorted, tombstone-bearing change-set, returning the new
// root (nil if the tree becomes empty). Nothing is committed to a
// root-reference tracker here; the caller does that once it accepts the
// returned root.
func Update(ctx context.Context, store nodestore.Store, params Params, root *Ref, changes []patch.Entry) (*Ref, error) {
	if len(changes) == 0 {
		return root, nil
	}

	if root == nil || root.Height == 0 {
		var existing []record.Record
		if root != nil {
			p, err := partition.Load(ctx, store, root.Digest)
			if err != nil {
				return nil, err
			}
			existing, err = partition.ReadAll(ctx, store, p, nil)
			if err != nil {
				return nil, err
			}
		}
		merged := patch.Seq(changes, existing)
		if len(merged) == 0 {
			return nil, nil
		}
		summaries, err := partition.Records(ctx, store, params.Partition, merged)
		if err != nil {
			return nil, err
		}
		return buildIndex(ctx, store, params.Branching, summariesToRefs(summaries))
	}

	res, err := updateIndexNode(ctx, store, params, *root, changes, true)
	if err != nil {
		return nil, err
	}
	if res.height == -1 {
		if len(res.loose) == 0 {
			return nil, nil
		}
		summaries, err := partition.Records(ctx, store, params.Partition, res.loose)
		if err != nil {
			return nil, err
		}
		return buildIndex(ctx, store, params.Branching, summariesToRefs(summaries))
	}
	return &res.refs[0], nil
}

// updateIndexNode implements Case C for the index node at ref: it splits
// changes across children by split key, recurses into the affected ones,
// folds any loose carries forward into the next sibling, and packages the
// resulting children into this level's replacement node(s).
//
// Two distinct kinds of deficiency are folded back together here before
// anything is finalized: a loose record carry (folded forward into the
// next sibling's change slice and re-run) and a pending child group (an
// unfinished node whose children are merged with an adjacent sibling's
// already-built node before either is stored, via mergeGroupWithSibling).
// Reassembly never stores an index node with fewer than
// params.MinBranching() children at a non-root level; when no sibling is
// available to redistribute with, the whole unfinished group is handed to
// the caller as this call's own pending result, to be resolved one level
// further up.
func updateIndexNode(ctx context.Context, store nodestore.Store, params Params, ref Ref, changes []patch.Entry, isRoot bool) (result, error) {
	idx, err := loadIndex(ctx, store, ref.Digest)
	if err != nil {
		return result{}, err
	}

	slices := splitChangesByChild(idx, changes)

	var levelChildren []Ref
	var pendingLoose []record.Record
	var pendingGroup []Ref
	var carryLoose []record.Record

	flushPendingGroup := func() error {
		if len(pendingGroup) < params.MinBranching() {
			return nil
		}
		grouped, err := groupOnce(ctx, store, params.Branching, pendingGroup)
		if err != nil {
			return err
		}
		levelChildren = append(levelChildren, grouped...)
		pendingGroup = nil
		return nil
	}

	for i, child := range idx.Children {
		slice := slices[i]
		if len(pendingLoose) > 0 {
			slice = mergeLooseIntoChanges(pendingLoose, slice)
			pendingLoose = nil
		}

		var res result
		switch {
		case len(slice) == 0:
			res = result{height: child.Height, refs: []Ref{child}}
		case child.Height == 0:
			res, err = rawPartitionUpdate(ctx, store, params, child, slice)
		default:
			res, err = updateIndexNode(ctx, store, params, child, slice, false)
		}
		if err != nil {
			return result{}, err
		}

		if len(res.loose) > 0 {
			pendingLoose = append(pendingLoose, res.loose...)
		}
		if res.height == -1 {
			continue
		}

		if len(pendingGroup) > 0 && len(res.refs) > 0 {
			merged, err := mergeGroupWithSibling(ctx, store, params.Branching, pendingGroup, res.refs[0], true)
			if err != nil {
				return result{}, err
			}
			levelChildren = append(levelChildren, merged...)
			levelChildren = append(levelChildren, res.refs[1:]...)
			pendingGroup = nil
		} else {
			levelChildren = append(levelChildren, res.refs...)
		}

		if len(res.pending) > 0 {
			pendingGroup = append(pendingGroup, res.pending...)
			if err := flushPendingGroup(); err != nil {
				return result{}, err
			}
		}
	}

	if len(pendingLoose) > 0 {
		switch {
		case len(levelChildren) > 0:
			refs, pending, err := mergeLooseIntoLast(ctx, store, params, levelChildren, pendingLoose)
			if err != nil {
				return result{}, err
			}
			levelChildren = refs
			pendingGroup = append(pendingGroup, pending...)
			if err := flushPendingGroup(); err != nil {
				return result{}, err
			}
		case len(pendingGroup) > 0:
			// Every child at this level either collapsed entirely or came
			// up short; there is no existing node to fold the trailing
			// loose carry into. In the common case of a one-level cascade
			// (pendingGroup already holds bare partitions), re-partition
			// the loose records and append the results directly: they sort
			// after pendingGroup's own content, since loose always comes
			// from the last child processed, and share its height.
			if pendingGroup[0].Height == 0 {
				summaries, err := partition.Records(ctx, store, params.Partition, pendingLoose)
				if err != nil {
					return result{}, err
				}
				pendingGroup = append(pendingGroup, summariesToRefs(summaries)...)
				if err := flushPendingGroup(); err != nil {
					return result{}, err
				}
				break
			}
			// A deeper cascade (pendingGroup holding index nodes) has no
			// single matching height to splice fresh partitions into
			// without constructing a whole subtree shaped like the rest of
			// pendingGroup. Rather than guess at that shape, finalize
			// pendingGroup now via groupOnce — which may rarely leave it
			// under MinBranching at a non-root level — and carry the loose
			// records up unbuilt, the same way a fully collapsed subtree's
			// loose records are carried, so the level above folds them into
			// its own next sibling instead of this function inventing a
			// mis-shaped placement for them. Triggering this requires every
			// child of a multi-level index node to collapse or fall short
			// in the same update.
			grouped, err := groupOnce(ctx, store, params.Branching, pendingGroup)
			if err != nil {
				return result{}, err
			}
			levelChildren = append(levelChildren, grouped...)
			pendingGroup = nil
			carryLoose = pendingLoose
		default:
			return result{height: -1, loose: pendingLoose}, nil
		}
	}

	if len(pendingGroup) > 0 {
		switch {
		case len(levelChildren) > 0:
			last := levelChildren[len(levelChildren)-1]
			merged, err := mergeGroupWithSibling(ctx, store, params.Branching, pendingGroup, last, false)
			if err != nil {
				return result{}, err
			}
			levelChildren = append(levelChildren[:len(levelChildren)-1], merged...)
			pendingGroup = nil
		case isRoot:
			levelChildren = pendingGroup
			pendingGroup = nil
		default:
			return result{height: idx.Height, pending: pendingGroup}, nil
		}
	}

	res, err := packageChildren(ctx, store, params, levelChildren, isRoot)
	if err != nil {
		return result{}, err
	}
	if len(carryLoose) == 0 {
		return res, nil
	}
	if isRoot {
		// Nothing further up to fold these into: re-run them as an
		// ordinary follow-up update against the root this call just
		// produced, which already knows how to merge puts into a tree of
		// any shape.
		var base *Ref
		if res.height != -1 {
			base = &res.refs[0]
		}
		newRoot, err := Update(ctx, store, params, base, asPuts(carryLoose))
		if err != nil {
			return result{}, err
		}
		if newRoot == nil {
			return result{height: -1}, nil
		}
		return result{height: newRoot.Height, refs: []Ref{*newRoot}}, nil
	}
	res.loose = append(res.loose, carryLoose...)
	return res, nil
}

// rawPartitionUpdate runs Case B against a single partition child without
// packaging the result into an index node: the caller is responsible for
// combining this child's output with its siblings'.
func rawPartitionUpdate(ctx context.Context, store nodestore.Store, params Params, ref Ref, changes []patch.Entry) (result, error) {
	p, err := partition.Load(ctx, store, ref.Digest)
	if err != nil {
		return result{}, err
	}
	existing, err := partition.ReadAll(ctx, store, p, nil)
	if err != nil {
		return result{}, err
	}
	merged := patch.Seq(changes, existing)
	if len(merged) < params.Partition.HalfLimit() {
		// Too few records left for a non-root partition: carry them up as
		// loose records for a sibling to absorb.
		return result{height: -1, loose: merged}, nil
	}
	summaries, err := partition.Records(ctx, store, params.Partition, merged)
	if err != nil {
		return result{}, err
	}
	return result{height: 0, refs: summariesToRefs(summaries)}, nil
}

// mergeLooseIntoLast re-runs the last collected child's update with loose
// appended as put changes, replacing that child's contribution in
// children. last always held real content before this call (it is an
// existing node plus additional puts), so its own update always yields at
// least one ref or a pending group, never a bare loose carry of its own.
func mergeLooseIntoLast(ctx context.Context, store nodestore.Store, params Params, children []Ref, loose []record.Record) ([]Ref, []Ref, error) {
	last := children[len(children)-1]

	var res result
	var err error
	if last.Height == 0 {
		res, err = rawPartitionUpdate(ctx, store, params, last, asPuts(loose))
	} else {
		res, err = updateIndexNode(ctx, store, params, last, asPuts(loose), false)
	}
	if err != nil {
		return nil, nil, err
	}

	out := make([]Ref, 0, len(children)-1+len(res.refs))
	out = append(out, children[:len(children)-1]...)
	out = append(out, res.refs...)
	return out, res.pending, nil
}

// packageChildren wraps a flat, same-height list of children into this
// level's replacement node(s). At the root, repeated grouping converges on
// a single root ref (demoting through a single child, a bare partition, or
// nil as the payload shrinks). Elsewhere, a child count below
// params.MinBranching() is handed back unfinished (pending) rather than
// stored, since a non-root index node may never have fewer children than
// that; a count within bounds is grouped and stored immediately.
func packageChildren(ctx context.Context, store nodestore.Store, params Params, children []Ref, isRoot bool) (result, error) {
	if len(children) == 0 {
		return result{height: -1}, nil
	}
	if isRoot {
		root, err := buildIndex(ctx, store, params.Branching, children)
		if err != nil {
			return result{}, err
		}
		return result{height: root.Height, refs: []Ref{*root}}, nil
	}
	if len(children) < params.MinBranching() {
		return result{height: children[0].Height + 1, pending: children}, nil
	}
	grouped, err := groupOnce(ctx, store, params.Branching, children)
	if err != nil {
		return result{}, err
	}
	return result{height: grouped[0].Height, refs: grouped}, nil
}

// splitChangesByChild assigns each sorted change entry to the child that
// owns it: the largest index i with split_keys[i-1] <= key, or 0 if none.
func splitChangesByChild(idx Index, changes []patch.Entry) [][]patch.Entry {
	splits := idx.SplitKeys()
	out := make([][]patch.Entry, len(idx.Children))
	child := 0
	for _, c := range changes {
		for child < len(splits) && splits[child].Compare(c.Key) <= 0 {
			child++
		}
		out[child] = append(out[child], c)
	}
	return out
}

// mergeLooseIntoChanges merges sorted loose records, as puts, ahead of a
// sorted change slice. The two key ranges do not overlap in practice (loose
// records come from the previous sibling's key range), so this is a plain
// sorted merge.
func mergeLooseIntoChanges(loose []record.Record, changes []patch.Entry) []patch.Entry {
	out := make([]patch.Entry, 0, len(loose)+len(changes))
	i, j := 0, 0
	for i < len(loose) && j < len(changes) {
		if loose[i].Key.Less(changes[j].Key) {
			out = append(out, patch.Entry{Key: loose[i].Key, Fields: loose[i].Fields})
			i++
		} else {
			out = append(out, changes[j])
			j++
		}
	}
	for ; i < len(loose); i++ {
		out = append(out, patch.Entry{Key: loose[i].Key, Fields: loose[i].Fields})
	}
	out = append(out, changes[j:]...)
	return out
}

func asPuts(records []record.Record) []patch.Entry {
	out := make([]patch.Entry, len(records))
	for i, r := range records {
		out[i] = patch.Entry{Key: r.Key, Fields: r.Fields}
	}
	return out
}

func summariesToRefs(summaries []partition.Summary) []Ref {
	out := make([]Ref, len(summaries))
	for i, s := range summaries {
		out[i] = Ref{Digest: s.Digest, FirstKey: s.FirstKey, Height: 0}
	}
	return out
}
