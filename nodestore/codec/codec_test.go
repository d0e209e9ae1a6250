package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/nodestore/codec"
)

func TestCodec_RoundTrip(t *testing.T) {
	c, err := codec.New()
	require.NoError(t, err)

	node := nodestore.Node{
		Type: nodestore.TypePartition,
		Attributes: map[string]interface{}{
			"count":     int64(3),
			"first-key": []byte("a"),
			"last-key":  []byte("c"),
		},
	}

	data, err := c.Encode(node)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, node.Type, decoded.Type)
	assert.Equal(t, node.Attributes["count"], decoded.Attributes["count"])
}

func TestCodec_EncodingIsDeterministic(t *testing.T) {
	c, err := codec.New()
	require.NoError(t, err)

	node := nodestore.Node{
		Type: nodestore.TypeIndex,
		Attributes: map[string]interface{}{
			"z-field": 1,
			"a-field": 2,
			"m-field": 3,
		},
	}

	first, err := c.Encode(node)
	require.NoError(t, err)
	second, err := c.Encode(node)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCodec_WithCompressionRoundTrip(t *testing.T) {
	c, err := codec.New(codec.WithCompression())
	require.NoError(t, err)

	node := nodestore.Node{
		Type:       nodestore.TypeTablet,
		Attributes: map[string]interface{}{"entries": "somewhat repetitive somewhat repetitive data"},
	}

	data, err := c.Encode(node)
	require.NoError(t, err)
	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, node.Attributes["entries"], decoded.Attributes["entries"])
}
