// Package pebblestore implements nodestore.Store on top of Pebble, the
// LSM-based alternative the table layer can choose when it wants native
// range snapshots over the underlying key space.
package pebblestore

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/multierr"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/nodestore/codec"
)

// Store is a Pebble-backed nodestore.Store. Unlike badgerstore it keeps no
// read-through cache of its own, relying on Pebble's block cache instead.
type Store struct {
	db    *pebble.DB
	cache *pebble.Cache
	codec *codec.Codec
}

// Open creates or opens a Pebble-backed node store at the configured
// storage path.
func Open(opts ...Option) (*Store, error) {
	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	cache := pebble.NewCache(config.CacheSize)
	pebbleOpts := &pebble.Options{
		Cache: cache,
	}
	db, err := pebble.Open(config.StoragePath, pebbleOpts)
	if err != nil {
		cache.Unref()
		return nil, fmt.Errorf("could not open pebble node store: %w", err)
	}

	var codecOpts []codec.Option
	if config.Compress {
		codecOpts = append(codecOpts, codec.WithCompression())
	}
	c, err := codec.New(codecOpts...)
	if err != nil {
		cache.Unref()
		return nil, fmt.Errorf("could not build node codec: %w", err)
	}

	return &Store{
		db:    db,
		cache: cache,
		codec: c,
	}, nil
}

// Put encodes and stores node, returning its content digest.
func (s *Store) Put(ctx context.Context, node nodestore.Node) (nodestore.Digest, error) {
	data, err := s.codec.Encode(node)
	if err != nil {
		return nodestore.Digest{}, fmt.Errorf("could not encode node: %w", err)
	}
	digest := nodestore.ComputeDigest(data)

	_, closer, err := s.db.Get(digest[:])
	if err == nil {
		_ = closer.Close()
		return digest, nil
	}
	if err != pebble.ErrNotFound {
		return nodestore.Digest{}, fmt.Errorf("could not check existing node: %w", err)
	}

	if err := s.db.Set(digest[:], data, pebble.Sync); err != nil {
		return nodestore.Digest{}, fmt.Errorf("could not persist node %s: %w", digest, err)
	}
	return digest, nil
}

// Get loads the node stored at digest, failing with an error wrapping
// errs.ErrMissingNode when absent.
func (s *Store) Get(ctx context.Context, digest nodestore.Digest) (nodestore.Node, error) {
	data, closer, err := s.db.Get(digest[:])
	if err == pebble.ErrNotFound {
		return nodestore.Node{}, &nodestore.MissingNodeError{Digest: digest}
	}
	if err != nil {
		return nodestore.Node{}, fmt.Errorf("could not read node: %w", err)
	}
	defer closer.Close()

	node, err := s.codec.Decode(data)
	if err != nil {
		return nodestore.Node{}, fmt.Errorf("could not decode node: %w", err)
	}
	return node, nil
}

// Link validates that digest is present in the store and returns the
// reference value a parent node embeds for it.
func (s *Store) Link(ctx context.Context, name string, digest nodestore.Digest, size int64) (nodestore.Reference, error) {
	_, closer, err := s.db.Get(digest[:])
	if err == pebble.ErrNotFound {
		return nodestore.Reference{}, &nodestore.MissingNodeError{Digest: digest}
	}
	if err != nil {
		return nodestore.Reference{}, fmt.Errorf("could not verify linked node: %w", err)
	}
	_ = closer.Close()
	return nodestore.Reference{Name: name, Digest: digest, Size: size}, nil
}

// Close flushes and closes the underlying Pebble database and releases its
// block cache, aggregating any errors from either step.
func (s *Store) Close() (err error) {
	multierr.AppendInto(&err, s.db.Close())
	s.cache.Unref()
	return err
}
