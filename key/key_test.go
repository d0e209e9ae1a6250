package key_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/key"
)

func TestCompare(t *testing.T) {
	assert.True(t, key.Key{1, 2, 3}.Less(key.Key{1, 2, 3, 4}))
	assert.True(t, key.Key{1, 3, 2}.Compare(key.Key{1, 2, 3}) > 0)
	assert.Equal(t, 0, key.Key{}.Compare(key.Key{}))
	assert.False(t, key.Key{1}.Less(key.Key{1}))
}

func TestSorted(t *testing.T) {
	require.True(t, key.Sorted([]key.Key{{1}, {2}, {3}}))
	require.False(t, key.Sorted([]key.Key{{2}, {1}}))
	require.False(t, key.Sorted([]key.Key{{1}, {1}}))
	require.True(t, key.Sorted(nil))
}

func TestClone(t *testing.T) {
	original := key.Key{1, 2, 3}
	clone := original.Clone()
	clone[0] = 9
	assert.Equal(t, key.Key{1, 2, 3}, original)
	assert.Equal(t, key.Key{9, 2, 3}, clone)
}

func TestInRange(t *testing.T) {
	assert.True(t, key.InRange(key.Key{5}, nil, nil))
	assert.True(t, key.InRange(key.Key{5}, key.Key{5}, key.Key{5}))
	assert.False(t, key.InRange(key.Key{5}, key.Key{6}, nil))
	assert.False(t, key.InRange(key.Key{5}, nil, key.Key{4}))
}
