package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/patch"
	"github.com/pombredanne/merkle-db/record"
)

func rec(k string, fields record.Fields) record.Record {
	return record.Record{Key: key.Key(k), Fields: fields}
}

func put(k string, fields record.Fields) patch.Entry {
	return patch.Entry{Key: key.Key(k), Fields: fields}
}

func tombstone(k string) patch.Entry {
	return patch.Entry{Key: key.Key(k), Tombstone: true}
}

func TestSeq_EmptyChangesReturnsRecordsUnchanged(t *testing.T) {
	records := []record.Record{rec("a", nil), rec("b", nil)}
	out := patch.Seq(nil, records)
	assert.Equal(t, records, out)
}

func TestSeq_EmptyRecordsRemovesTombstones(t *testing.T) {
	changes := []patch.Entry{put("a", record.Fields{"x": 1}), tombstone("b")}
	out := patch.Seq(changes, nil)
	assert.Equal(t, []record.Record{rec("a", record.Fields{"x": 1})}, out)
}

func TestSeq_PutReplacesExistingRecord(t *testing.T) {
	records := []record.Record{rec("a", record.Fields{"old": true})}
	changes := []patch.Entry{put("a", record.Fields{"new": true})}
	out := patch.Seq(changes, records)
	require.Len(t, out, 1)
	assert.Equal(t, record.Fields{"new": true}, out[0].Fields)
}

func TestSeq_TombstoneRemovesRecord(t *testing.T) {
	records := []record.Record{rec("a", nil), rec("b", nil)}
	changes := []patch.Entry{tombstone("a")}
	out := patch.Seq(changes, records)
	assert.Equal(t, []record.Record{rec("b", nil)}, out)
}

func TestSeq_MergeIsSortedByKey(t *testing.T) {
	records := []record.Record{rec("b", nil), rec("d", nil)}
	changes := []patch.Entry{put("a", nil), put("c", nil), tombstone("d")}
	out := patch.Seq(changes, records)
	var keys []string
	for _, r := range out {
		keys = append(keys, string(r.Key))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestSeq_ResultHasNoTombstonesAndIsSorted(t *testing.T) {
	records := []record.Record{rec("a", nil), rec("b", nil), rec("c", nil)}
	changes := []patch.Entry{put("b", record.Fields{"v": 1}), tombstone("c"), put("d", nil)}
	out := patch.Seq(changes, records)
	assert.True(t, key.Sorted(keysOf(out)))
}

func TestSeq_ApplyingTwiceIsIdempotent(t *testing.T) {
	records := []record.Record{rec("a", nil), rec("b", nil)}
	changes := []patch.Entry{put("a", record.Fields{"v": 1}), tombstone("b")}
	once := patch.Seq(changes, records)
	twice := patch.Seq(changes, once)
	assert.Equal(t, once, twice)
}

func keysOf(records []record.Record) []key.Key {
	out := make([]key.Key, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}

func TestFilterChanges_RangeBoundsInclusiveExclusive(t *testing.T) {
	changes := []patch.Entry{put("a", nil), put("b", nil), put("c", nil), put("d", nil)}
	out := patch.FilterChanges(changes, patch.FilterOptions{
		StartKey:       key.Key("b"),
		StartInclusive: true,
		EndKey:         key.Key("d"),
		EndInclusive:   false,
	})
	require.Len(t, out, 2)
	assert.Equal(t, key.Key("b"), out[0].Key)
	assert.Equal(t, key.Key("c"), out[1].Key)
}

func TestFilterChanges_ProjectsFieldsOnPuts(t *testing.T) {
	changes := []patch.Entry{put("a", record.Fields{"x": 1, "y": 2})}
	out := patch.FilterChanges(changes, patch.FilterOptions{
		Fields: map[string]struct{}{"x": {}},
	})
	require.Len(t, out, 1)
	assert.Equal(t, record.Fields{"x": 1}, out[0].Fields)
}

func TestFilterChanges_PreservesTombstonesUnchanged(t *testing.T) {
	changes := []patch.Entry{tombstone("a")}
	out := patch.FilterChanges(changes, patch.FilterOptions{
		Fields: map[string]struct{}{"x": {}},
	})
	require.Len(t, out, 1)
	assert.True(t, out[0].Tombstone)
}
