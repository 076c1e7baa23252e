package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/moodify/pkg/utils"
)

// CachedEmbedder wraps another embedder, L2-normalizing its vectors so inner
// product equals cosine similarity, and memoizing them by text.
type CachedEmbedder struct {
	inner Embedder
	cache *vectorCache
}

// NewCachedEmbedder wraps inner with a cache of up to cacheSize texts.
func NewCachedEmbedder(inner Embedder, cacheSize int) (*CachedEmbedder, error) {
	cache, err := newVectorCache(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.get(text); ok {
		return cached, nil
	}
	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(emb) != e.inner.Dimensions() {
		return nil, providerError("%s returned %d dimensions, want %d", e.inner.Name(), len(emb), e.inner.Dimensions())
	}
	out := append([]float32(nil), emb...)
	if utils.NormalizeL2(out) == 0 {
		return nil, providerError("%s returned a zero vector", e.inner.Name())
	}
	e.cache.set(text, out)
	return out, nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedSequential(ctx, texts, e.Embed)
}

func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

func (e *CachedEmbedder) Name() string { return e.inner.Name() }

func (e *CachedEmbedder) Close() error {
	e.cache.close()
	return e.inner.Close()
}
