// Package retrieve runs semantic search over a user's text collection, joins
// each hit with its audio profile and derives recommendation seeds.
package retrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/metrics"
	"github.com/hyperjump/moodify/internal/models"
)

// Retriever answers search queries for a user.
type Retriever struct {
	store  *collection.Store
	maxK   int
	logger *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithMaxK caps k. Zero means no cap.
func WithMaxK(k int) Option {
	return func(r *Retriever) { r.maxK = k }
}

// NewRetriever returns a Retriever over the user collections in store.
func NewRetriever(store *collection.Store, opts ...Option) *Retriever {
	r := &Retriever{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Retrieve returns up to k results for query in similarity order. A hit whose
// audio document is missing is returned with nil AudioMetadata.
func (r *Retriever) Retrieve(ctx context.Context, userID, query string, k int) ([]*models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidArgument)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", apperr.ErrInvalidArgument, k)
	}
	if r.maxK > 0 && k > r.maxK {
		k = r.maxK
	}
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	text, err := r.store.TextCollection(ctx, userID)
	if err != nil {
		return nil, err
	}
	audio, err := r.store.AudioCollection(ctx, userID)
	if err != nil {
		return nil, err
	}

	hits, err := text.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, err
	}

	results := make([]*models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		textMeta := metadata.DecodeMap(hit.Document.Metadata)
		trackID := textMeta.Str("track_id")
		if trackID == "" {
			trackID = hit.Document.ID
		}

		res := &models.RetrievalResult{
			TrackID:  trackID,
			Content:  hit.Document.Content,
			Metadata: textMeta,
			Score:    hit.Score,
		}
		audioDocs, err := audio.GetByIDs(ctx, []string{trackID})
		if err != nil {
			return nil, err
		}
		if len(audioDocs) > 0 {
			res.AudioMetadata = metadata.DecodeMap(audioDocs[0].Metadata)
		} else {
			metrics.AudioJoinMissesTotal.Inc()
			r.logger.Warn("audio document missing for text hit",
				zap.String("user_id", userID),
				zap.String("track_id", trackID))
		}
		results = append(results, res)
	}

	r.logger.Debug("retrieval complete",
		zap.String("user_id", userID),
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}
