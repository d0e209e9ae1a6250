// Package patch implements change-set semantics: the ordered sequence of
// puts and tombstones the tree's bulk-update algorithm applies to an
// existing record stream.
package patch

import (
	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/record"
)

// Entry is one change-set entry. A Tombstone entry's Fields is ignored.
type Entry struct {
	Key       key.Key
	Fields    record.Fields
	Tombstone bool
}

// IsPut reports whether e is a put (as opposed to a tombstone).
func (e Entry) IsPut() bool {
	return !e.Tombstone
}

// Seq produces the sorted merge of changes and records, with change-set
// entries winning at equal keys: a put replaces the record entirely, a
// tombstone removes it, and keys present in only one stream pass through
// unchanged (puts and records) or are dropped (tombstones with no matching
// record). Both changes and records must already be sorted in strictly
// ascending key order; the merge is a single linear pass that builds the
// whole result as one slice, so it is not produced lazily.
func Seq(changes []Entry, records []record.Record) []record.Record {
	out := make([]record.Record, 0, len(records)+len(changes))
	i, j := 0, 0
	for i < len(changes) && j < len(records) {
		c, r := changes[i], records[j]
		switch {
		case c.Key.Less(r.Key):
			if c.IsPut() {
				out = append(out, record.Record{Key: c.Key, Fields: c.Fields})
			}
			i++
		case r.Key.Less(c.Key):
			out = append(out, r)
			j++
		default:
			if c.IsPut() {
				out = append(out, record.Record{Key: c.Key, Fields: c.Fields})
			}
			i++
			j++
		}
	}
	for ; i < len(changes); i++ {
		if changes[i].IsPut() {
			out = append(out, record.Record{Key: changes[i].Key, Fields: changes[i].Fields})
		}
	}
	out = append(out, records[j:]...)
	return out
}

// RemoveTombstones converts change-set entries to records, keeping the puts
// and dropping every tombstone. Output of Seq needs no such filtering, since
// Seq resolves tombstones itself; this is for callers that hold raw
// change-set entries and want only the survivors as records.
func RemoveTombstones(entries []Entry) []record.Record {
	out := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		if e.IsPut() {
			out = append(out, record.Record{Key: e.Key, Fields: e.Fields})
		}
	}
	return out
}

// FilterOptions narrows a change-set by key range and field projection.
type FilterOptions struct {
	StartKey        key.Key
	StartInclusive  bool
	EndKey          key.Key
	EndInclusive    bool
	Fields          map[string]struct{} // nil means no projection
}

// FilterChanges returns the subset of changes within [StartKey, EndKey]
// (bounds applied per their Inclusive flags; a nil bound is unbounded on
// that side) with puts projected onto Fields. Tombstones are preserved
// unchanged since a tombstone has no fields to project.
func FilterChanges(changes []Entry, opts FilterOptions) []Entry {
	out := make([]Entry, 0, len(changes))
	for _, e := range changes {
		if !inBounds(e.Key, opts) {
			continue
		}
		if e.Tombstone {
			out = append(out, e)
			continue
		}
		out = append(out, Entry{
			Key:    e.Key,
			Fields: e.Fields.Project(opts.Fields),
		})
	}
	return out
}

func inBounds(k key.Key, opts FilterOptions) bool {
	if opts.StartKey != nil {
		switch {
		case opts.StartInclusive && k.Less(opts.StartKey):
			return false
		case !opts.StartInclusive && !opts.StartKey.Less(k):
			return false
		}
	}
	if opts.EndKey != nil {
		switch {
		case opts.EndInclusive && opts.EndKey.Less(k):
			return false
		case !opts.EndInclusive && !k.Less(opts.EndKey):
			return false
		}
	}
	return true
}
