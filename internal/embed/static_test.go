package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_EmptyTextReturnsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()
	v1, err := e.Embed(ctx, "def handleRequest(req):\n    return req.body")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "def handleRequest(req):\n    return req.body")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestStaticEmbedder_DifferentTextDifferentVector(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()
	v1, err := e.Embed(ctx, "class Foo: pass")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "class Bar: pass")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "some_function_name with tokens")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	magnitude := math.Sqrt(sumSquares)
	assert.InDelta(t, 1.0, magnitude, 1e-4)
}

func TestStaticEmbedder_EmbedBatch(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()
	texts := []string{"alpha", "beta", ""}
	vecs, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, StaticDimensions)
	}
}

func TestStaticEmbedder_EmbedBatch_Empty(t *testing.T) {
	e := NewStaticEmbedder()
	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestStaticEmbedder_DimensionsAndModelName(t *testing.T) {
	e := NewStaticEmbedder()
	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
}

func TestStaticEmbedder_AvailableAfterClose(t *testing.T) {
	e := NewStaticEmbedder()
	assert.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSplitCamelCase(t *testing.T) {
	assert.Equal(t, []string{"handle", "HTTP", "Request"}, splitCamelCase("handleHTTPRequest"))
	assert.Equal(t, []string{"foo"}, splitCamelCase("foo"))
	assert.Equal(t, []string{}, splitCamelCase(""))
}

func TestSplitCodeToken_SnakeCase(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "Name"}, splitCodeToken("get_userName"))
}
