package pebblestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/nodestore/pebblestore"
)

func openStore(t *testing.T) *pebblestore.Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "nodes")
	store, err := pebblestore.Open(pebblestore.WithStoragePath(dir))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	node := nodestore.Node{Type: nodestore.TypeTablet, Attributes: map[string]interface{}{"foo": "bar"}}
	digest, err := store.Put(ctx, node)
	require.NoError(t, err)

	loaded, err := store.Get(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, node.Type, loaded.Type)
	assert.Equal(t, node.Attributes["foo"], loaded.Attributes["foo"])
}

func TestStore_GetMissingNode(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, nodestore.Digest{0xFF})
	require.Error(t, err)
	var missing *nodestore.MissingNodeError
	assert.ErrorAs(t, err, &missing)
}

func TestStore_LinkValidatesPresence(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	node := nodestore.Node{Type: nodestore.TypePartition, Attributes: map[string]interface{}{"count": int64(1)}}
	digest, err := store.Put(ctx, node)
	require.NoError(t, err)

	ref, err := store.Link(ctx, "base", digest, 42)
	require.NoError(t, err)
	assert.Equal(t, digest, ref.Digest)

	_, err = store.Link(ctx, "missing", nodestore.Digest{0xAB}, 0)
	assert.Error(t, err)
}
