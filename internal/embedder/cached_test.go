package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	seen [][]string
	err  error
}

func (c *countingEmbedder) Model() string { return "test-model" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.seen = append(c.seen, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedder_OnlyMissesReachInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"alpha", "be"})
	require.NoError(t, err)

	vecs, err := c.Embed(ctx, []string{"be", "gamma", "alpha"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{2}, {5}, {5}}, vecs)
	assert.Equal(t, [][]string{{"alpha", "be"}, {"gamma"}}, inner.seen)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "test-model", c.Model())
}

func TestCachedEmbedder_EmbedQueryHit(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 0)

	for i := 0; i < 3; i++ {
		v, err := c.EmbedQuery(context.Background(), "find the parser")
		require.NoError(t, err)
		assert.Equal(t, []float32{15}, v)
	}
	assert.Len(t, inner.seen, 1)
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	c := NewCachedEmbedder(inner, 4)

	_, err := c.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestCachedEmbedder_Evicts(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		_, err := c.EmbedQuery(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err := c.EmbedQuery(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, inner.seen, 4)
}
