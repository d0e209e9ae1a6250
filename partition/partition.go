// Package partition implements the leaf node of the data tree: a
// size-bounded, key-ordered group of per-family tablets plus a probabilistic
// membership filter.
package partition

import (
	"context"
	"fmt"

	"github.com/pombredanne/merkle-db/bloom"
	"github.com/pombredanne/merkle-db/errs"
	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/patch"
	"github.com/pombredanne/merkle-db/record"
	"github.com/pombredanne/merkle-db/tablet"
)

// Partition is the in-memory, decoded form of a leaf node: one tablet
// reference per family, a membership filter, and the attributes of spec
// section 3.
type Partition struct {
	Tablets    map[string]nodestore.Reference
	Membership *bloom.Filter
	Count      int
	Families   map[string][]string
	FirstKey   key.Key
	LastKey    key.Key
}

// FromRecords builds a partition from entries, dropping tombstones and
// asserting the remaining keys are well-formed and strictly ascending and
// number no more than params.Limit. It stores one tablet per non-empty
// family (the base family is always stored, even when every entry's base
// fields are empty, since base entries are presence markers) plus the
// assembled partition metadata node, returning both the decoded Partition
// and its digest.
func FromRecords(ctx context.Context, store nodestore.Store, params Params, entries []patch.Entry) (*Partition, nodestore.Digest, error) {
	records := patch.RemoveTombstones(entries)

	keys := make([]key.Key, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	if !key.Sorted(keys) {
		return nil, nodestore.Digest{}, fmt.Errorf("%w: partition records must be strictly ascending by key", errs.ErrInvalidArgument)
	}
	if len(records) > params.Limit {
		return nil, nodestore.Digest{}, fmt.Errorf("%w: %d records exceeds partition limit %d", errs.ErrPartitionOverflow, len(records), params.Limit)
	}

	tablets, err := buildTablets(params, records)
	if err != nil {
		return nil, nodestore.Digest{}, err
	}

	refs := make(map[string]nodestore.Reference, len(tablets))
	for family, tb := range tablets {
		digest, err := tablet.Store(ctx, store, tb)
		if err != nil {
			return nil, nodestore.Digest{}, fmt.Errorf("could not store tablet for family %q: %w", family, err)
		}
		ref, err := store.Link(ctx, family, digest, int64(len(tb.Entries)))
		if err != nil {
			return nil, nodestore.Digest{}, fmt.Errorf("could not link tablet for family %q: %w", family, err)
		}
		refs[family] = ref
	}

	filter := bloom.New(uint(len(records)), bloom.DefaultFalsePositiveRate)
	for _, k := range keys {
		filter.Insert(k)
	}

	p := &Partition{
		Tablets:    refs,
		Membership: filter,
		Count:      len(records),
		Families:   params.Families,
	}
	if len(records) > 0 {
		p.FirstKey = records[0].Key
		p.LastKey = records[len(records)-1].Key
	}

	digest, err := Store(ctx, store, p)
	if err != nil {
		return nil, nodestore.Digest{}, err
	}
	return p, digest, nil
}

func buildTablets(params Params, records []record.Record) (map[string]*tablet.Tablet, error) {
	result := make(map[string]*tablet.Tablet, len(params.Families)+1)

	baseEntries := make([]tablet.Entry, len(records))
	for i, r := range records {
		leftover := record.Fields{}
		for field, v := range r.Fields {
			if params.FamilyOf(field) == BaseFamily {
				leftover[field] = v
			}
		}
		baseEntries[i] = tablet.Entry{Key: r.Key, Fields: leftover}
	}
	baseTablet, err := tablet.FromRecords(baseEntries)
	if err != nil {
		return nil, fmt.Errorf("could not build base tablet: %w", err)
	}
	result[BaseFamily] = baseTablet

	for family, fields := range params.Families {
		set := fieldSet(fields)
		entries := make([]tablet.Entry, len(records))
		for i, r := range records {
			entries[i] = tablet.Entry{Key: r.Key, Fields: r.Fields.Project(set)}
		}
		tb, err := tablet.FromRecords(entries)
		if err != nil {
			return nil, fmt.Errorf("could not build tablet for family %q: %w", family, err)
		}
		tb = tb.Prune()
		if len(tb.Entries) == 0 {
			continue
		}
		result[family] = tb
	}

	return result, nil
}
