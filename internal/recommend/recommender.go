// Package recommend turns retrieval results into provider recommendations
// and assembles playlists from them.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/retrieve"
)

// Tag marks playlists created by moodify. Only tagged playlists are modified.
const Tag = "moodify"

// DefaultLikedFilter is how many recent liked tracks are kept out of recommendations.
const DefaultLikedFilter = 50

// Searcher runs retrieval for a user.
type Searcher interface {
	Retrieve(ctx context.Context, userID, query string, k int) ([]*models.RetrievalResult, error)
}

// Provider is the recommendation and playlist side of the music service.
type Provider interface {
	Recommendations(ctx context.Context, seeds models.SeedSet, limit int) ([]*models.TrackRecord, error)
	LikedTrackIDs(ctx context.Context, n int) (map[string]bool, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error)
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// Recommender combines retrieval with a Provider.
type Recommender struct {
	searcher    Searcher
	likedFilter int
	logger      *zap.Logger
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recommender) { r.logger = l }
}

// WithLikedFilter sets how many liked tracks are filtered out. Zero disables
// the filter.
func WithLikedFilter(n int) Option {
	return func(r *Recommender) { r.likedFilter = n }
}

// NewRecommender creates a Recommender over searcher.
func NewRecommender(searcher Searcher, opts ...Option) *Recommender {
	r := &Recommender{searcher: searcher, likedFilter: DefaultLikedFilter}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Recommend retrieves k results for query, seeds the provider with them and
// returns at most k recommended tracks the user has not recently liked.
func (r *Recommender) Recommend(ctx context.Context, userID string, p Provider, query string, k int) (*models.Recommendation, error) {
	results, err := r.searcher.Retrieve(ctx, userID, query, k)
	if err != nil {
		return nil, err
	}
	seeds := retrieve.ComposeSeeds(results)
	rec := &models.Recommendation{Query: query, Seeds: seeds, Results: results}
	if seeds.Empty() {
		r.logger.Debug("no seeds for query", zap.String("user_id", userID), zap.String("query", query))
		return rec, nil
	}

	tracks, err := p.Recommendations(ctx, seeds, k)
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	var liked map[string]bool
	if r.likedFilter > 0 {
		liked, err = p.LikedTrackIDs(ctx, r.likedFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to get liked tracks: %w", err)
		}
	}
	for _, t := range tracks {
		if liked[t.ID] {
			continue
		}
		rec.Tracks = append(rec.Tracks, t)
		if len(rec.Tracks) == k {
			break
		}
	}

	r.logger.Debug("recommendations ready",
		zap.String("user_id", userID),
		zap.Int("seed_tracks", len(seeds.TrackIDs)),
		zap.Int("seed_artists", len(seeds.ArtistIDs)),
		zap.Int("received", len(tracks)),
		zap.Int("kept", len(rec.Tracks)))
	return rec, nil
}

// CreatePlaylist creates a private, tagged playlist named after query holding
// the search hits followed by the recommendations.
func (r *Recommender) CreatePlaylist(ctx context.Context, userID string, p Provider, query string, k int) (*models.Playlist, error) {
	rec, err := r.Recommend(ctx, userID, p, query, k)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rec.Results)+len(rec.Tracks))
	for _, res := range rec.Results {
		ids = append(ids, res.TrackID)
	}
	for _, t := range rec.Tracks {
		ids = append(ids, t.ID)
	}
	ids = distinct(ids)

	pl, err := p.CreatePlaylist(ctx, userID, query, Description(query))
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	if len(ids) > 0 {
		if err := p.AddTracks(ctx, pl.ID, ids); err != nil {
			return nil, fmt.Errorf("failed to add tracks to playlist %s: %w", pl.ID, err)
		}
	}
	pl.TrackIDs = ids

	r.logger.Info("playlist created",
		zap.String("user_id", userID),
		zap.String("playlist_id", pl.ID),
		zap.Int("tracks", len(ids)))
	return pl, nil
}

// AppendToPlaylist adds trackIDs to a playlist moodify created. Any other
// playlist is refused with apperr.ErrForbidden.
func (r *Recommender) AppendToPlaylist(ctx context.Context, p Provider, playlistID string, trackIDs []string) error {
	pl, err := p.Playlist(ctx, playlistID)
	if err != nil {
		return err
	}
	if !Owned(pl) {
		return fmt.Errorf("%w: cannot modify existing playlist %s", apperr.ErrForbidden, playlistID)
	}
	ids := distinct(trackIDs)
	if len(ids) == 0 {
		return nil
	}
	return p.AddTracks(ctx, playlistID, ids)
}

// Description is the description of a playlist created for query.
func Description(query string) string {
	return fmt.Sprintf("%s: playlist created from the search %q", Tag, query)
}

// Owned reports whether pl carries the moodify tag.
func Owned(pl *models.Playlist) bool {
	return pl != nil && (pl.Description == Tag || strings.HasPrefix(pl.Description, Tag+":"))
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
