package partition_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/partition"
	"github.com/pombredanne/merkle-db/patch"
	"github.com/pombredanne/merkle-db/record"
	"github.com/pombredanne/merkle-db/testing/dbtest"
)

func params() partition.Params {
	return partition.Params{
		Limit: 10,
		Families: map[string][]string{
			"meta": {"size", "mtime"},
		},
	}
}

func entry(k string, fields record.Fields) patch.Entry {
	return patch.Entry{Key: key.Key(k), Fields: fields}
}

func TestFromRecords_DropsTombstonesAndBuildsPartition(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	entries := []patch.Entry{
		entry("a", record.Fields{"size": int64(1), "name": "alice"}),
		{Key: key.Key("b"), Tombstone: true},
		entry("c", record.Fields{"size": int64(3), "name": "carol"}),
	}

	p, digest, err := partition.FromRecords(ctx, store, params(), entries)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Count)
	assert.Equal(t, key.Key("a"), p.FirstKey)
	assert.Equal(t, key.Key("c"), p.LastKey)
	assert.True(t, p.Membership.Contains(key.Key("a")))
	assert.False(t, p.Membership.Contains(key.Key("zzz-not-present")))

	loaded, err := partition.Load(ctx, store, digest)
	require.NoError(t, err)
	assert.Equal(t, p.Count, loaded.Count)
}

func TestFromRecords_RejectsOverflow(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	p := partition.Params{Limit: 1}
	entries := []patch.Entry{entry("a", nil), entry("b", nil)}
	_, _, err := partition.FromRecords(ctx, store, p, entries)
	assert.Error(t, err)
}

func TestFromRecords_RejectsUnsortedInput(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	entries := []patch.Entry{entry("b", nil), entry("a", nil)}
	_, _, err := partition.FromRecords(ctx, store, params(), entries)
	assert.Error(t, err)
}

func TestPartition_ReadAllMergesFamiliesByKey(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	entries := []patch.Entry{
		entry("a", record.Fields{"size": int64(10), "name": "alice"}),
		entry("b", record.Fields{"name": "bob"}),
	}
	p, _, err := partition.FromRecords(ctx, store, params(), entries)
	require.NoError(t, err)

	records, err := partition.ReadAll(ctx, store, p, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(10), records[0].Fields["size"])
	assert.Equal(t, "alice", records[0].Fields["name"])
	assert.Equal(t, "bob", records[1].Fields["name"])
	_, hasSize := records[1].Fields["size"]
	assert.False(t, hasSize)
}

func TestPartition_ReadBatchUsesMembershipAndOrdersResults(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	entries := []patch.Entry{
		entry("a", record.Fields{"name": "alice"}),
		entry("b", record.Fields{"name": "bob"}),
		entry("c", record.Fields{"name": "carol"}),
	}
	p, _, err := partition.FromRecords(ctx, store, params(), entries)
	require.NoError(t, err)

	records, err := partition.ReadBatch(ctx, store, p, []key.Key{key.Key("c"), key.Key("a"), key.Key("nope")}, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, key.Key("a"), records[0].Key)
	assert.Equal(t, key.Key("c"), records[1].Key)
}

func TestPartition_ReadWithFieldProjectionSelectsMinimalFamilies(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	entries := []patch.Entry{
		entry("a", record.Fields{"size": int64(1), "name": "alice"}),
	}
	p, _, err := partition.FromRecords(ctx, store, params(), entries)
	require.NoError(t, err)

	records, err := partition.ReadAll(ctx, store, p, map[string]struct{}{"size": {}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.Fields{"size": int64(1)}, records[0].Fields)
}

func TestRecords_PartitionsStreamAtThreshold(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	p := partition.Params{Limit: 4}
	var records []record.Record
	for i := 0; i < 9; i++ {
		records = append(records, record.Record{Key: key.Key(fmt.Sprintf("k%02d", i))})
	}

	summaries, err := partition.Records(ctx, store, p, records)
	require.NoError(t, err)
	require.NotEmpty(t, summaries)

	total := 0
	for _, s := range summaries {
		loaded, err := partition.Load(ctx, store, s.Digest)
		require.NoError(t, err)
		assert.LessOrEqual(t, loaded.Count, p.Limit)
		assert.Equal(t, loaded.Count, s.Count)
		assert.Equal(t, loaded.FirstKey, s.FirstKey)
		total += loaded.Count
	}
	assert.Equal(t, len(records), total)
}

func TestRecords_FinalSplitKeepsBothHalvesAtLeastHalfLimit(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	p := partition.Params{Limit: 4}
	var records []record.Record
	for i := 0; i < 5; i++ { // above L=4 but below the threshold 4+2=6, so the end-of-stream split applies
		records = append(records, record.Record{Key: key.Key(fmt.Sprintf("k%02d", i))})
	}

	summaries, err := partition.Records(ctx, store, p, records)
	require.NoError(t, err)
	for _, s := range summaries {
		loaded, err := partition.Load(ctx, store, s.Digest)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, loaded.Count, p.HalfLimit())
	}
}

func TestPartition_InvariantsHoldAcrossSeveralLimits(t *testing.T) {
	store := dbtest.Store(t)
	ctx := context.Background()

	for _, limit := range []int{2, 5, 16, 64} {
		p := partition.Params{Limit: limit}
		n := limit*3 + 1
		var records []record.Record
		for i := 0; i < n; i++ {
			records = append(records, record.Record{Key: key.Key(fmt.Sprintf("k%05d", i))})
		}

		summaries, err := partition.Records(ctx, store, p, records)
		require.NoError(t, err)

		var lastKey key.Key
		total := 0
		for i, s := range summaries {
			loaded, err := partition.Load(ctx, store, s.Digest)
			require.NoError(t, err)
			assert.LessOrEqual(t, loaded.Count, limit)
			assert.True(t, loaded.FirstKey.Compare(loaded.LastKey) <= 0)
			if lastKey != nil {
				assert.True(t, lastKey.Less(loaded.FirstKey), "partitions must not overlap")
			}
			if i < len(summaries)-1 {
				assert.GreaterOrEqual(t, loaded.Count, p.HalfLimit())
			}
			lastKey = loaded.LastKey
			total += loaded.Count
		}
		assert.Equal(t, n, total)
	}
}
