package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of query embeddings kept by a CachedEmbedder.
const DefaultCacheSize = 1000

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// CachedEmbedder keeps recent embeddings in an LRU. Search queries repeat
// often; indexing goes to the inner embedder directly.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU of the given size.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Model returns the inner model name.
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed serves cached vectors and embeds the rest in one inner call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missText []string
	for i, t := range texts {
		if v, ok := c.cache.Get(c.key(t)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, t)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missText)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Add(c.key(texts[i]), vecs[j])
	}
	return out, nil
}

// EmbedQuery embeds a single search query.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
