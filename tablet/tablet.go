// Package tablet implements the leaf-level, single-family storage chunk: a
// strictly key-ascending vector of (key, partial-field-map) entries.
package tablet

import (
	"context"
	"fmt"
	"sort"

	"github.com/pombredanne/merkle-db/errs"
	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/record"
)

// Entry is one tablet row: a key and the fields of a single family that key
// carries in this partition.
type Entry struct {
	Key    key.Key
	Fields record.Fields
}

// Tablet is an immutable, ordered vector of entries for one family within
// one partition.
type Tablet struct {
	Entries []Entry
}

// FromRecords builds a tablet from entries the caller has already projected
// onto a single family's fields. Entries must be strictly ascending by key.
func FromRecords(entries []Entry) (*Tablet, error) {
	for i := 1; i < len(entries); i++ {
		if !entries[i-1].Key.Less(entries[i].Key) {
			return nil, fmt.Errorf("%w: tablet entries must be strictly ascending by key", errs.ErrInvalidArgument)
		}
	}
	return &Tablet{Entries: entries}, nil
}

// Prune removes entries whose field-map is empty. The base family preserves
// empty field-maps as presence markers, so callers must not prune it.
func (t *Tablet) Prune() *Tablet {
	out := make([]Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		if len(e.Fields) == 0 {
			continue
		}
		out = append(out, e)
	}
	return &Tablet{Entries: out}
}

// ReadAll returns every entry in ascending key order.
func (t *Tablet) ReadAll() []Entry {
	return t.Entries
}

// ReadBatch returns the entries matching the requested keys, in ascending
// key order regardless of the order keys were given in. Keys with no
// matching entry are silently omitted.
func (t *Tablet) ReadBatch(keys []key.Key) []Entry {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[string(k)] = struct{}{}
	}
	out := make([]Entry, 0, len(keys))
	for _, e := range t.Entries {
		if _, ok := wanted[string(e.Key)]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ReadRange returns the entries with key in [min, max]; a nil bound is
// unbounded on that side.
func (t *Tablet) ReadRange(min, max key.Key) []Entry {
	lo := sort.Search(len(t.Entries), func(i int) bool {
		return min == nil || !t.Entries[i].Key.Less(min)
	})
	out := make([]Entry, 0, len(t.Entries)-lo)
	for i := lo; i < len(t.Entries); i++ {
		if max != nil && max.Less(t.Entries[i].Key) {
			break
		}
		out = append(out, t.Entries[i])
	}
	return out
}

// Store serializes and persists t as a nodestore.TypeTablet node, returning
// its digest.
func Store(ctx context.Context, store nodestore.Store, t *Tablet) (nodestore.Digest, error) {
	entries := make([]interface{}, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = map[string]interface{}{
			"key":    []byte(e.Key),
			"fields": map[string]interface{}(e.Fields),
		}
	}
	node := nodestore.Node{
		Type: nodestore.TypeTablet,
		Attributes: map[string]interface{}{
			"entries": entries,
		},
	}
	return store.Put(ctx, node)
}

// Load reconstructs a tablet from its stored representation.
func Load(ctx context.Context, nstore nodestore.Store, digest nodestore.Digest) (*Tablet, error) {
	node, err := nodestore.GetTyped(ctx, nstore, digest, nodestore.TypeTablet)
	if err != nil {
		return nil, err
	}

	raw, ok := node.Attributes["entries"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: tablet node %s has malformed entries attribute", errs.ErrCorruptNode, digest)
	}

	entries := make([]Entry, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: tablet node %s entry %d is not a map", errs.ErrCorruptNode, digest, i)
		}
		k, ok := m["key"].([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: tablet node %s entry %d has malformed key", errs.ErrCorruptNode, digest, i)
		}
		fields, _ := m["fields"].(map[string]interface{})
		entries[i] = Entry{Key: key.Key(k), Fields: record.Fields(fields)}
	}

	return &Tablet{Entries: entries}, nil
}
