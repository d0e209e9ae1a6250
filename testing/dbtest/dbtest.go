// Package dbtest provides in-memory storage backends for tests, adapted
// from the teacher's badger test helper but wrapped as a nodestore.Store so
// package tests never touch disk.
package dbtest

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/nodestore/badgerstore"
)

// InMemoryDB opens an in-memory Badger database for the duration of the
// test, closing it automatically on cleanup.
func InMemoryDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("")
	opts.InMemory = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// Store builds a badgerstore.Store over an in-memory Badger database,
// closing it automatically on cleanup. Store.Close closes the underlying
// Badger handle, so it (not InMemoryDB) owns the cleanup registration.
func Store(t *testing.T) *badgerstore.Store {
	t.Helper()

	opts := badger.DefaultOptions("")
	opts.InMemory = true
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)

	store, err := badgerstore.New(zerolog.Nop(), db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
