package refs_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/refs"
	"github.com/pombredanne/merkle-db/testing/dbtest"
)

func digestOf(b byte) nodestore.Digest {
	var d nodestore.Digest
	d[0] = b
	return d
}

func TestTracker_CreateThenCurrentIsZeroDigest(t *testing.T) {
	db := dbtest.InMemoryDB(t)
	tr := refs.Open(zerolog.Nop(), db)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, "t1"))
	digest, err := tr.Current(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, nodestore.Digest{}, digest)
}

func TestTracker_CurrentUnknownTable(t *testing.T) {
	db := dbtest.InMemoryDB(t)
	tr := refs.Open(zerolog.Nop(), db)
	ctx := context.Background()

	_, err := tr.Current(ctx, "missing")
	assert.ErrorIs(t, err, refs.ErrUnknownTable)
}

func TestTracker_AdvanceRequiresMatchingExpected(t *testing.T) {
	db := dbtest.InMemoryDB(t)
	tr := refs.Open(zerolog.Nop(), db)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, "t1"))
	err := tr.Advance(ctx, "t1", digestOf(9), digestOf(1))
	assert.ErrorIs(t, err, refs.ErrCASMismatch)

	err = tr.Advance(ctx, "t1", nodestore.Digest{}, digestOf(1))
	require.NoError(t, err)

	digest, err := tr.Current(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, digestOf(1), digest)
}

func TestTracker_AdvanceOnUnknownTableRequiresZeroExpected(t *testing.T) {
	db := dbtest.InMemoryDB(t)
	tr := refs.Open(zerolog.Nop(), db)
	ctx := context.Background()

	err := tr.Advance(ctx, "fresh", nodestore.Digest{}, digestOf(1))
	require.NoError(t, err)

	digest, err := tr.Current(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, digestOf(1), digest)
}

func TestTracker_HistoryRecordsEveryAdvance(t *testing.T) {
	db := dbtest.InMemoryDB(t)
	tr := refs.Open(zerolog.Nop(), db)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, "t1"))
	require.NoError(t, tr.Advance(ctx, "t1", nodestore.Digest{}, digestOf(1)))
	require.NoError(t, tr.Advance(ctx, "t1", digestOf(1), digestOf(2)))
	require.NoError(t, tr.Advance(ctx, "t1", digestOf(2), digestOf(3)))

	history, err := tr.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 4) // initial zero-digest plus three advances
	assert.Equal(t, nodestore.Digest{}, history[0])
	assert.Equal(t, digestOf(1), history[1])
	assert.Equal(t, digestOf(2), history[2])
	assert.Equal(t, digestOf(3), history[3])
}
