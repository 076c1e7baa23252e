// Package ingest embeds a user's liked tracks into their text and audio
// collections.
package ingest

import (
	"context"

	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/models"
)

// Source delivers liked tracks and their audio features. Implementations
// return errors wrapping apperr.ErrRateLimited or apperr.ErrAuthRequired
// when the provider says so.
type Source interface {
	FetchLikedTracks(ctx context.Context, limit, offset int) ([]*models.TrackRecord, error)
	// FetchAudioFeatures returns the provider's feature map for a track. A nil
	// map means the provider has no features for it.
	FetchAudioFeatures(ctx context.Context, trackID string) (metadata.Map, error)
}
