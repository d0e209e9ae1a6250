package partition

import (
	"context"
	"fmt"
	"sort"

	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/record"
	"github.com/pombredanne/merkle-db/tablet"
)

// familiesFor returns the family names that carry a requested field: base
// whenever any requested field is not covered by a non-base family, plus
// every family that owns a requested field. A nil fields set means
// "everything", which returns every family present in the partition.
func (p *Partition) familiesFor(fields map[string]struct{}) []string {
	if fields == nil {
		out := make([]string, 0, len(p.Tablets))
		for family := range p.Tablets {
			out = append(out, family)
		}
		sort.Strings(out)
		return out
	}

	params := Params{Families: p.Families}
	needed := map[string]struct{}{}
	needBase := false
	for field := range fields {
		family := params.FamilyOf(field)
		if family == BaseFamily {
			needBase = true
			continue
		}
		needed[family] = struct{}{}
	}
	if needBase {
		needed[BaseFamily] = struct{}{}
	}

	out := make([]string, 0, len(needed))
	for family := range needed {
		if _, ok := p.Tablets[family]; ok {
			out = append(out, family)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Partition) loadTablets(ctx context.Context, store nodestore.Store, families []string) (map[string]*tablet.Tablet, error) {
	out := make(map[string]*tablet.Tablet, len(families))
	for _, family := range families {
		ref, ok := p.Tablets[family]
		if !ok {
			continue
		}
		tb, err := tablet.Load(ctx, store, ref.Digest)
		if err != nil {
			return nil, fmt.Errorf("could not load tablet for family %q: %w", family, err)
		}
		out[family] = tb
	}
	return out, nil
}

// mergeByKey folds per-family entry lists into full records, using keys
// (the base tablet's key order, since base tracks every key in the
// partition unconditionally) as the authoritative key set and unioning
// field-maps from every other loaded family that also has an entry for
// that key. If fields is non-nil, the merged field-map is projected down to
// exactly the requested fields.
func mergeByKey(keys []key.Key, entries map[string][]tablet.Entry, fields map[string]struct{}) []record.Record {
	byKey := make(map[string]tablet.Entry, len(keys))
	for _, list := range entries {
		for _, e := range list {
			byKey[string(e.Key)] = e
		}
	}

	out := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		merged := record.Fields{}
		for _, list := range entries {
			for _, e := range list {
				if e.Key.Equal(k) {
					for field, v := range e.Fields {
						merged[field] = v
					}
				}
			}
		}
		out = append(out, record.Record{Key: k, Fields: merged.Project(fields)})
	}
	return out
}

// ReadAll returns every record in the partition, with fields projected to
// the requested set (nil means every field).
func ReadAll(ctx context.Context, store nodestore.Store, p *Partition, fields map[string]struct{}) ([]record.Record, error) {
	loaded, err := p.loadTablets(ctx, store, withBase(p.familiesFor(fields)))
	if err != nil {
		return nil, err
	}
	base := loaded[BaseFamily]
	keys := make([]key.Key, len(base.Entries))
	for i, e := range base.Entries {
		keys[i] = e.Key
	}
	return mergeByKey(keys, entriesOf(loaded), fields), nil
}

// ReadBatch returns the records for the requested keys, consulting the
// membership filter first to skip keys that are definitely absent, and
// returning results in ascending key order regardless of request order.
func ReadBatch(ctx context.Context, store nodestore.Store, p *Partition, requested []key.Key, fields map[string]struct{}) ([]record.Record, error) {
	candidates := make([]key.Key, 0, len(requested))
	for _, k := range requested {
		if p.Membership.Contains(k) {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortKeys(candidates)

	loaded, err := p.loadTablets(ctx, store, withBase(p.familiesFor(fields)))
	if err != nil {
		return nil, err
	}
	base := loaded[BaseFamily].ReadBatch(candidates)
	keys := make([]key.Key, len(base))
	for i, e := range base {
		keys[i] = e.Key
	}
	return mergeByKey(keys, entriesOfBatch(loaded, candidates), fields), nil
}

// ReadRange returns the records in [min, max] (nil bound = unbounded on
// that side) within this partition, with fields projected to the requested
// set.
func ReadRange(ctx context.Context, store nodestore.Store, p *Partition, min, max key.Key, fields map[string]struct{}) ([]record.Record, error) {
	loaded, err := p.loadTablets(ctx, store, withBase(p.familiesFor(fields)))
	if err != nil {
		return nil, err
	}
	base := loaded[BaseFamily].ReadRange(min, max)
	keys := make([]key.Key, len(base))
	for i, e := range base {
		keys[i] = e.Key
	}
	return mergeByKey(keys, entriesOfRange(loaded, min, max), fields), nil
}

func withBase(families []string) []string {
	for _, f := range families {
		if f == BaseFamily {
			return families
		}
	}
	return append(families, BaseFamily)
}

func entriesOf(loaded map[string]*tablet.Tablet) map[string][]tablet.Entry {
	out := make(map[string][]tablet.Entry, len(loaded))
	for family, tb := range loaded {
		out[family] = tb.ReadAll()
	}
	return out
}

func entriesOfBatch(loaded map[string]*tablet.Tablet, keys []key.Key) map[string][]tablet.Entry {
	out := make(map[string][]tablet.Entry, len(loaded))
	for family, tb := range loaded {
		out[family] = tb.ReadBatch(keys)
	}
	return out
}

func entriesOfRange(loaded map[string]*tablet.Tablet, min, max key.Key) map[string][]tablet.Entry {
	out := make(map[string][]tablet.Entry, len(loaded))
	for family, tb := range loaded {
		out[family] = tb.ReadRange(min, max)
	}
	return out
}

func sortKeys(keys []key.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
