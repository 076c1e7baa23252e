package embedding

import (
	"fmt"

	"github.com/hyperjump/moodify/internal/config"
)

// New builds the configured embedder wrapped in a CachedEmbedder.
// An unknown provider or a model that cannot be loaded is an error; there is
// no silent fallback.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "ollama":
		inner = NewOllamaEmbedder(cfg.Endpoint, cfg.Model, cfg.Dimensions, cfg.Timeout)
	case "onnx":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		inner = onnx
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
	cached, err := NewCachedEmbedder(inner, cfg.CacheSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return cached, nil
}
