package tree

import (
	"context"
	"sort"

	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/partition"
	"github.com/pombredanne/merkle-db/record"
)

// Get performs a point/batch read: descending to each candidate partition
// by comparing requested keys against index split keys, then consulting
// that partition's membership filter and tablets. Results are returned in
// ascending key order regardless of request order.
func Get(ctx context.Context, store nodestore.Store, params Params, root *Ref, keys []key.Key, fields map[string]struct{}) ([]record.Record, error) {
	if root == nil || len(keys) == 0 {
		return nil, nil
	}
	sorted := append([]key.Key(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return getFromRef(ctx, store, *root, sorted, fields)
}

func getFromRef(ctx context.Context, store nodestore.Store, ref Ref, keys []key.Key, fields map[string]struct{}) ([]record.Record, error) {
	if ref.Height == 0 {
		p, err := partition.Load(ctx, store, ref.Digest)
		if err != nil {
			return nil, err
		}
		return partition.ReadBatch(ctx, store, p, keys, fields)
	}

	idx, err := loadIndex(ctx, store, ref.Digest)
	if err != nil {
		return nil, err
	}
	groups := splitKeysByChild(idx, keys)

	var out []record.Record
	for i, child := range idx.Children {
		if len(groups[i]) == 0 {
			continue
		}
		sub, err := getFromRef(ctx, store, child, groups[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func splitKeysByChild(idx Index, keys []key.Key) [][]key.Key {
	splits := idx.SplitKeys()
	out := make([][]key.Key, len(idx.Children))
	child := 0
	for _, k := range keys {
		for child < len(splits) && splits[child].Compare(k) <= 0 {
			child++
		}
		out[child] = append(out[child], k)
	}
	return out
}

// ScanResult is one item of a Scan stream: either a record or a terminal
// error. The stream closes after the first error.
type ScanResult struct {
	Record record.Record
	Err    error
}

// Scan returns a lazy, key-ordered stream over [start, end] (a nil bound is
// unbounded on that side); passing nil, nil performs a full left-to-right
// scan of the tree. The channel is closed once the range is exhausted, the
// context is cancelled, or an error occurs.
func Scan(ctx context.Context, store nodestore.Store, root *Ref, start, end key.Key, fields map[string]struct{}) <-chan ScanResult {
	out := make(chan ScanResult)
	go func() {
		defer close(out)
		if root == nil {
			return
		}
		scanRef(ctx, store, *root, start, end, fields, out)
	}()
	return out
}

func scanRef(ctx context.Context, store nodestore.Store, ref Ref, start, end key.Key, fields map[string]struct{}, out chan<- ScanResult) bool {
	if ref.Height == 0 {
		p, err := partition.Load(ctx, store, ref.Digest)
		if err != nil {
			return emit(ctx, out, ScanResult{Err: err})
		}
		records, err := partition.ReadRange(ctx, store, p, start, end, fields)
		if err != nil {
			return emit(ctx, out, ScanResult{Err: err})
		}
		for _, r := range records {
			if !emit(ctx, out, ScanResult{Record: r}) {
				return false
			}
		}
		return true
	}

	idx, err := loadIndex(ctx, store, ref.Digest)
	if err != nil {
		return emit(ctx, out, ScanResult{Err: err})
	}
	lo, hi := childRangeOverlap(idx, start, end)
	for i := lo; i < hi; i++ {
		if !scanRef(ctx, store, idx.Children[i], start, end, fields, out) {
			return false
		}
	}
	return true
}

// childRangeOverlap selects the contiguous sub-range [lo, hi) of idx's
// children whose key ranges can overlap [start, end].
func childRangeOverlap(idx Index, start, end key.Key) (int, int) {
	lo := 0
	if start != nil {
		lo = idx.childFor(start)
	}
	hi := len(idx.Children)
	if end != nil {
		hi = idx.childFor(end) + 1
		if hi > len(idx.Children) {
			hi = len(idx.Children)
		}
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func emit(ctx context.Context, out chan<- ScanResult, r ScanResult) bool {
	select {
	case out <- r:
		return r.Err == nil
	case <-ctx.Done():
		return false
	}
}
