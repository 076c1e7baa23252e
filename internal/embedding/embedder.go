// Package embedding turns track descriptions into fixed-length vectors.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/moodify/internal/apperr"
)

// Embedder produces vector embeddings for text. Implementations return
// errors wrapping apperr.ErrProviderFailure when the model cannot answer.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Name identifies the model, e.g. "ollama:bge-m3".
	Name() string
	Close() error
}

func providerError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrProviderFailure, fmt.Sprintf(format, args...))
}

// embedSequential runs embed for each text in order.
func embedSequential(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
