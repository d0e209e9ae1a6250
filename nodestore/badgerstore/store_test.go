package badgerstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/testing/dbtest"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	node := nodestore.Node{
		Type:       nodestore.TypeTablet,
		Attributes: map[string]interface{}{"foo": "bar"},
	}

	digest, err := store.Put(ctx, node)
	require.NoError(t, err)

	loaded, err := store.Get(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, node.Type, loaded.Type)
	assert.Equal(t, node.Attributes["foo"], loaded.Attributes["foo"])
}

func TestStore_PutIsIdempotent(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	node := nodestore.Node{Type: nodestore.TypeTablet, Attributes: map[string]interface{}{"x": 1}}

	first, err := store.Put(ctx, node)
	require.NoError(t, err)
	second, err := store.Put(ctx, node)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_GetMissingNode(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	_, err := store.Get(ctx, nodestore.Digest{0xFF})
	require.Error(t, err)
	var missing *nodestore.MissingNodeError
	assert.ErrorAs(t, err, &missing)
}

func TestStore_LinkValidatesPresence(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	node := nodestore.Node{Type: nodestore.TypePartition, Attributes: map[string]interface{}{"count": int64(1)}}
	digest, err := store.Put(ctx, node)
	require.NoError(t, err)

	ref, err := store.Link(ctx, "base", digest, 42)
	require.NoError(t, err)
	assert.Equal(t, "base", ref.Name)
	assert.Equal(t, digest, ref.Digest)
	assert.Equal(t, int64(42), ref.Size)

	_, err = store.Link(ctx, "missing", nodestore.Digest{0xAB}, 0)
	assert.Error(t, err)
}
