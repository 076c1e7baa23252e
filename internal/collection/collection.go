package collection

import (
	"context"
	"fmt"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/vector"
)

// Collection is a named set of embedded documents.
type Collection struct {
	name  string
	store *Store
	index vector.Index
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Upsert embeds and stores docs under ids, overwriting existing ids.
func (c *Collection) Upsert(ctx context.Context, docs []*models.Document, ids []string) error {
	return c.store.Commit(ctx, Write{Collection: c, Documents: docs, IDs: ids})
}

// SimilaritySearch returns at most k documents most similar to query, in
// non-increasing score order.
func (c *Collection) SimilaritySearch(ctx context.Context, query string, k int) ([]*models.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", apperr.ErrInvalidArgument, k)
	}
	if c.index.Size() == 0 {
		return nil, nil
	}
	qvec, err := c.store.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := c.index.Search(ctx, qvec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	docs, err := c.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]*models.ScoredDocument, 0, len(hits))
	for _, h := range hits {
		doc, ok := byID[h.ID]
		if !ok {
			continue
		}
		results = append(results, &models.ScoredDocument{Document: doc, Score: h.Score})
	}
	return results, nil
}

// GetByIDs returns one document per found id; missing ids are absent.
func (c *Collection) GetByIDs(ctx context.Context, ids []string) ([]*models.Document, error) {
	docs, err := c.store.storage.GetDocuments(ctx, c.name, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
	}
	return docs, nil
}

// Has reports which of ids are stored.
func (c *Collection) Has(ctx context.Context, ids []string) (map[string]bool, error) {
	found, err := c.store.storage.ExistingIDs(ctx, c.name, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
	}
	return found, nil
}

// Count returns the number of stored documents.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.store.storage.CountDocuments(ctx, c.name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
	}
	return n, nil
}
