package refs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"github.com/pombredanne/merkle-db/nodestore"
)

// Tracker is a Badger-backed root-reference tracker: one current-root
// record per table name, plus an append-only history of every digest that
// name has ever pointed at. The table package uses only Create, Current and
// Advance; History exists for operational inspection and tests.
type Tracker struct {
	log zerolog.Logger
	db  *badger.DB
}

// Open wraps an already-open Badger handle as a root-reference tracker.
// Callers typically point it at the same database as the node store, or a
// separate, much smaller one, since reference records are tiny compared to
// node blobs.
func Open(log zerolog.Logger, db *badger.DB) *Tracker {
	return &Tracker{
		log: log.With().Str("component", "refs").Logger(),
		db:  db,
	}
}

// Current returns the digest name currently points at. The zero digest is a
// valid current value, meaning the table exists but its tree is empty.
func (t *Tracker) Current(ctx context.Context, name string) (nodestore.Digest, error) {
	var digest nodestore.Digest
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(currentKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUnknownTable
		}
		if err != nil {
			return fmt.Errorf("could not read current root for table %q: %w", name, err)
		}
		return item.Value(func(val []byte) error {
			_, d, ok := decodeCurrent(val)
			if !ok {
				return fmt.Errorf("corrupt current-root record for table %q", name)
			}
			digest = d
			return nil
		})
	})
	return digest, err
}

// History returns every digest name has ever pointed at, oldest first,
// including the initial creation.
func (t *Tracker) History(ctx context.Context, name string) ([]nodestore.Digest, error) {
	var out []nodestore.Digest
	err := t.db.View(func(txn *badger.Txn) error {
		prefix := historyPrefix(name)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var d nodestore.Digest
				if len(val) != len(d) {
					return fmt.Errorf("corrupt history record for table %q", name)
				}
				copy(d[:], val)
				out = append(out, d)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrUnknownTable
	}
	return out, nil
}

// Create initializes name with an empty tree (the zero digest) if it does
// not already exist. It is a no-op if the table is already tracked.
func (t *Tracker) Create(ctx context.Context, name string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(currentKey(name))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return t.advance(txn, name, 0, nodestore.Digest{})
	})
}

// Advance performs a compare-and-set root advancement: it succeeds only if
// name currently points at expected, atomically recording next as the new
// current root and appending it to the history. A caller that commits one
// update at a time per table never observes ErrCASMismatch; it makes a
// commit built on a stale root fail loudly instead of silently losing an
// update.
func (t *Tracker) Advance(ctx context.Context, name string, expected, next nodestore.Digest) error {
	return t.db.Update(func(txn *badger.Txn) error {
		seq, current, err := t.read(txn, name)
		if err != nil && !errors.Is(err, ErrUnknownTable) {
			return err
		}
		if errors.Is(err, ErrUnknownTable) {
			if expected != (nodestore.Digest{}) {
				return ErrCASMismatch
			}
		} else if current != expected {
			return ErrCASMismatch
		}
		return t.advance(txn, name, seq+1, next)
	})
}

func (t *Tracker) read(txn *badger.Txn, name string) (uint64, nodestore.Digest, error) {
	item, err := txn.Get(currentKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nodestore.Digest{}, ErrUnknownTable
	}
	if err != nil {
		return 0, nodestore.Digest{}, err
	}
	var seq uint64
	var digest nodestore.Digest
	err = item.Value(func(val []byte) error {
		s, d, ok := decodeCurrent(val)
		if !ok {
			return fmt.Errorf("corrupt current-root record for table %q", name)
		}
		seq, digest = s, d
		return nil
	})
	return seq, digest, err
}

func (t *Tracker) advance(txn *badger.Txn, name string, seq uint64, digest nodestore.Digest) error {
	if err := txn.Set(historyKey(name, seq), digest[:]); err != nil {
		return fmt.Errorf("could not append root history for table %q: %w", name, err)
	}
	if err := txn.Set(currentKey(name), encodeCurrent(seq, digest)); err != nil {
		return fmt.Errorf("could not advance current root for table %q: %w", name, err)
	}
	return nil
}
