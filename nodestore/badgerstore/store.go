// Package badgerstore implements nodestore.Store on top of Badger, the
// teacher's default embedded storage engine for content-addressed blobs.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/nodestore/codec"
)

// Store is a Badger-backed nodestore.Store with a read-through LRU cache
// and a weighted semaphore bounding concurrently committing writes, so that
// parallel partition or index writers (see the partition and tree packages)
// cannot overrun Badger's own concurrent-transaction limits.
type Store struct {
	log   zerolog.Logger
	db    *badger.DB
	codec *codec.Codec
	cache *lru.Cache

	sema        *semaphore.Weighted
	maxInFlight int64

	mu   sync.Mutex
	errs []error
}

// Open creates or opens a Badger-backed node store at the configured
// storage path.
func Open(log zerolog.Logger, opts ...Option) (*Store, error) {
	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	badgerOpts := badger.DefaultOptions(config.StoragePath)
	badgerOpts.Logger = nil
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("could not open badger node store: %w", err)
	}

	s, err := New(log, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-open Badger handle in a node store, letting callers
// (notably tests) control how the underlying database was opened, e.g. with
// badger.DefaultOptions("").WithInMemory(true).
func New(log zerolog.Logger, db *badger.DB, opts ...Option) (*Store, error) {
	logger := log.With().Str("component", "badgerstore").Logger()

	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	var codecOpts []codec.Option
	if config.Compress {
		codecOpts = append(codecOpts, codec.WithCompression())
	}
	c, err := codec.New(codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("could not build node codec: %w", err)
	}

	cache, err := lru.New(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not build node cache: %w", err)
	}

	s := Store{
		log:         logger,
		db:          db,
		codec:       c,
		cache:       cache,
		sema:        semaphore.NewWeighted(config.MaxInFlight),
		maxInFlight: config.MaxInFlight,
	}

	return &s, nil
}

// Put encodes and stores node, returning its content digest. Storing the
// same node value twice is a no-op the second time.
func (s *Store) Put(ctx context.Context, node nodestore.Node) (nodestore.Digest, error) {
	data, err := s.codec.Encode(node)
	if err != nil {
		return nodestore.Digest{}, fmt.Errorf("could not encode node: %w", err)
	}
	digest := nodestore.ComputeDigest(data)

	if _, ok := s.cache.Get(digest); ok {
		return digest, nil
	}

	if err := s.sema.Acquire(ctx, 1); err != nil {
		return nodestore.Digest{}, fmt.Errorf("could not acquire write slot: %w", err)
	}
	defer s.sema.Release(1)

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(digest[:])
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(digest[:], data)
	})
	if err != nil {
		s.recordError(err)
		return nodestore.Digest{}, fmt.Errorf("could not persist node %s: %w", digest, err)
	}

	s.cache.Add(digest, node)
	return digest, nil
}

// Get loads the node stored at digest, failing with an error wrapping
// errs.ErrMissingNode when absent.
func (s *Store) Get(ctx context.Context, digest nodestore.Digest) (nodestore.Node, error) {
	if v, ok := s.cache.Get(digest); ok {
		return v.(nodestore.Node), nil
	}

	var node nodestore.Node
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(digest[:])
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &nodestore.MissingNodeError{Digest: digest}
		}
		if err != nil {
			return fmt.Errorf("could not read node: %w", err)
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("could not copy node value: %w", err)
		}
		decoded, err := s.codec.Decode(data)
		if err != nil {
			return fmt.Errorf("could not decode node: %w", err)
		}
		node = decoded
		return nil
	})
	if err != nil {
		return nodestore.Node{}, err
	}

	s.cache.Add(digest, node)
	return node, nil
}

// Link validates that digest is present in the store and returns the
// reference value a parent node embeds for it.
func (s *Store) Link(ctx context.Context, name string, digest nodestore.Digest, size int64) (nodestore.Reference, error) {
	if _, ok := s.cache.Get(digest); !ok {
		err := s.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(digest[:])
			return err
		})
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nodestore.Reference{}, &nodestore.MissingNodeError{Digest: digest}
		}
		if err != nil {
			return nodestore.Reference{}, fmt.Errorf("could not verify linked node: %w", err)
		}
	}
	return nodestore.Reference{Name: name, Digest: digest, Size: size}, nil
}

// Close waits for in-flight writes to settle and closes the underlying
// Badger database, aggregating any write errors observed along the way.
func (s *Store) Close() error {
	if err := s.sema.Acquire(context.Background(), s.maxInFlight); err != nil {
		s.recordError(err)
	} else {
		s.sema.Release(s.maxInFlight)
	}

	var merr *multierror.Error
	s.mu.Lock()
	for _, e := range s.errs {
		merr = multierror.Append(merr, e)
	}
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("could not close badger database: %w", err))
	}

	return merr.ErrorOrNil()
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}
