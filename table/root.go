// Package table implements the table API exposed to callers: open a named
// table against a node store and a root-reference tracker, read from it by
// key or range, and produce new table roots from change-sets. A Root is an
// immutable snapshot; Update never mutates the Root it is called on, it
// returns a new one, mirroring the copy-on-write discipline of the tree
// and partition packages underneath it.
package table

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/lexicoder"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/patch"
	"github.com/pombredanne/merkle-db/record"
	"github.com/pombredanne/merkle-db/refs"
	"github.com/pombredanne/merkle-db/tree"
)

// Root binds a table's current tree root to the store and tracker it was
// loaded from, plus the resolved configuration that governs every update
// and read made through it. The zero-valued *tree.Ref (nil) represents an
// empty table.
type Root struct {
	log     zerolog.Logger
	store   nodestore.Store
	tracker *refs.Tracker
	name    string
	config  Config
	coder   lexicoder.Coder

	prior  nodestore.Digest // the digest this Root was loaded or derived from
	digest nodestore.Digest // the digest this Root currently represents
	ref    *tree.Ref
}

// Open binds name to store and tracker, creating the table (with an empty
// tree) if it has never been tracked, and loading whatever root it
// currently points at otherwise.
func Open(ctx context.Context, log zerolog.Logger, store nodestore.Store, tracker *refs.Tracker, name string, opts ...Option) (*Root, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	coder, err := lexicoder.New(cfg.KeyLexicoder)
	if err != nil {
		return nil, fmt.Errorf("could not build key lexicoder for table %q: %w", name, err)
	}

	if err := tracker.Create(ctx, name); err != nil {
		return nil, fmt.Errorf("could not open table %q: %w", name, err)
	}
	digest, err := tracker.Current(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not open table %q: %w", name, err)
	}

	var ref *tree.Ref
	if digest != (nodestore.Digest{}) {
		ref, err = tree.LoadRef(ctx, store, digest)
		if err != nil {
			return nil, fmt.Errorf("could not load root for table %q: %w", name, err)
		}
	}

	return &Root{
		log:     log.With().Str("component", "table").Str("table", name).Logger(),
		store:   store,
		tracker: tracker,
		name:    name,
		config:  cfg,
		coder:   coder,
		prior:   digest,
		digest:  digest,
		ref:     ref,
	}, nil
}

// Digest returns the digest this root currently represents, the zero
// digest for an empty table.
func (r *Root) Digest() nodestore.Digest {
	return r.digest
}

// EncodeKey encodes an application value into a table key using the
// table's configured key-lexicoder.
func (r *Root) EncodeKey(value interface{}) (key.Key, error) {
	data, err := r.coder.Encode(value)
	if err != nil {
		return nil, err
	}
	return key.Key(data), nil
}

// Get performs a point/batch read for keys, projecting onto fields (nil
// for every field).
func (r *Root) Get(ctx context.Context, keys []key.Key, fields map[string]struct{}) ([]record.Record, error) {
	return tree.Get(ctx, r.store, r.config.treeParams(), r.ref, keys, fields)
}

// Scan returns a lazy, key-ordered stream over [start, end], a nil bound
// unbounded on that side, projecting onto fields (nil for every field).
func (r *Root) Scan(ctx context.Context, start, end key.Key, fields map[string]struct{}) <-chan tree.ScanResult {
	return tree.Scan(ctx, r.store, r.ref, start, end, fields)
}

// Update runs changes against r's tree and returns the resulting new Root.
// r itself is left untouched; the new Root is not yet visible to other
// readers of the table until its caller calls Commit. changes must be
// sorted in strictly ascending key order with no duplicate keys.
func (r *Root) Update(ctx context.Context, changes []patch.Entry) (*Root, error) {
	if !changesSorted(changes) {
		return nil, fmt.Errorf("could not update table %q: change-set is not sorted by key", r.name)
	}

	next, err := tree.Update(ctx, r.store, r.config.treeParams(), r.ref, changes)
	if err != nil {
		return nil, fmt.Errorf("could not update table %q: %w", r.name, err)
	}

	var digest nodestore.Digest
	if next != nil {
		digest = next.Digest
	}

	return &Root{
		log:     r.log,
		store:   r.store,
		tracker: r.tracker,
		name:    r.name,
		config:  r.config,
		coder:   r.coder,
		prior:   r.digest,
		digest:  digest,
		ref:     next,
	}, nil
}

// Commit advances the root-reference tracker from r's prior digest to r's
// digest. It fails with refs.ErrCASMismatch if another writer already
// advanced the table's root in the meantime, leaving the table's tracked
// root untouched; r remains a valid, readable snapshot either way.
func (r *Root) Commit(ctx context.Context) error {
	if err := r.tracker.Advance(ctx, r.name, r.prior, r.digest); err != nil {
		return fmt.Errorf("could not commit table %q: %w", r.name, err)
	}
	r.log.Info().Str("digest", fmt.Sprintf("%x", r.digest)).Msg("table root committed")
	return nil
}

// changesSorted reports whether changes is in strictly ascending key order
// with no duplicate keys, the invariant Update requires of a change-set.
func changesSorted(changes []patch.Entry) bool {
	for i := 1; i < len(changes); i++ {
		if !changes[i-1].Key.Less(changes[i].Key) {
			return false
		}
	}
	return true
}
