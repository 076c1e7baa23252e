// Package spotify adapts the Spotify Web API to the metadata source and
// recommendation provider interfaces used by moodify.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/models"
)

const (
	// MaxSeeds is the total number of seeds the recommendations endpoint accepts.
	MaxSeeds = 5
	// maxPageSize is the largest page the library endpoints serve.
	maxPageSize = 50
	// maxPlaylistAdd is the largest batch the add-items endpoint accepts.
	maxPlaylistAdd = 100
)

// API is the subset of the Spotify Web API client moodify calls.
type API interface {
	CurrentUser(ctx context.Context) (*spotifyapi.PrivateUser, error)
	CurrentUsersTracks(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.SavedTrackPage, error)
	GetAudioFeatures(ctx context.Context, ids ...spotifyapi.ID) ([]*spotifyapi.AudioFeatures, error)
	GetRecommendations(ctx context.Context, seeds spotifyapi.Seeds, attrs *spotifyapi.TrackAttributes, opts ...spotifyapi.RequestOption) (*spotifyapi.Recommendations, error)
	CreatePlaylistForUser(ctx context.Context, userID, name, description string, public, collaborative bool) (*spotifyapi.FullPlaylist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID spotifyapi.ID, trackIDs ...spotifyapi.ID) (string, error)
	GetPlaylist(ctx context.Context, playlistID spotifyapi.ID, opts ...spotifyapi.RequestOption) (*spotifyapi.FullPlaylist, error)
}

var _ API = (*spotifyapi.Client)(nil)

// Client serves liked tracks, audio features, recommendations and playlists
// for one authorized user.
type Client struct {
	api    API
	market string
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMarket sets the market used for recommendations.
func WithMarket(market string) Option {
	return func(c *Client) { c.market = market }
}

// New wraps api.
func New(api API, opts ...Option) *Client {
	c := &Client{api: api, market: "US"}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// CurrentUserID returns the Spotify id of the authorized user.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", translate("current user", err)
	}
	return user.ID, nil
}

// FetchLikedTracks returns one page of the user's saved tracks.
func (c *Client) FetchLikedTracks(ctx context.Context, limit, offset int) ([]*models.TrackRecord, error) {
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page, err := c.api.CurrentUsersTracks(ctx, spotifyapi.Limit(limit), spotifyapi.Offset(offset))
	if err != nil {
		return nil, translate("liked tracks", err)
	}
	tracks := make([]*models.TrackRecord, 0, len(page.Tracks))
	for i := range page.Tracks {
		ft := &page.Tracks[i].FullTrack
		if ft.ID == "" {
			continue
		}
		t := fromSimple(&ft.SimpleTrack)
		t.Album = ft.Album.Name
		tracks = append(tracks, t)
	}
	c.logger.Debug("fetched liked tracks",
		zap.Int("limit", limit),
		zap.Int("offset", offset),
		zap.Int("tracks", len(tracks)))
	return tracks, nil
}

// FetchAudioFeatures returns the audio features of a track as metadata. A
// track without features yields an empty map.
func (c *Client) FetchAudioFeatures(ctx context.Context, trackID string) (metadata.Map, error) {
	features, err := c.api.GetAudioFeatures(ctx, spotifyapi.ID(trackID))
	if err != nil {
		return nil, translate("audio features", err)
	}
	if len(features) == 0 || features[0] == nil {
		return metadata.Map{}, nil
	}
	return featuresToMap(features[0])
}

// LikedTrackIDs returns the ids of the user's n most recently liked tracks.
func (c *Client) LikedTrackIDs(ctx context.Context, n int) (map[string]bool, error) {
	ids := make(map[string]bool, n)
	for offset := 0; offset < n; offset += maxPageSize {
		limit := min(maxPageSize, n-offset)
		page, err := c.api.CurrentUsersTracks(ctx, spotifyapi.Limit(limit), spotifyapi.Offset(offset))
		if err != nil {
			return nil, translate("liked tracks", err)
		}
		for _, t := range page.Tracks {
			ids[string(t.ID)] = true
		}
		if len(page.Tracks) < limit {
			break
		}
	}
	return ids, nil
}

// Recommendations requests up to limit tracks seeded by seeds.
func (c *Client) Recommendations(ctx context.Context, seeds models.SeedSet, limit int) ([]*models.TrackRecord, error) {
	s := Seeds(seeds)
	if len(s.Tracks) == 0 && len(s.Artists) == 0 {
		return nil, nil
	}
	recs, err := c.api.GetRecommendations(ctx, s, nil, spotifyapi.Limit(limit), spotifyapi.Market(c.market))
	if err != nil {
		return nil, translate("recommendations", err)
	}
	tracks := make([]*models.TrackRecord, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		tracks = append(tracks, fromSimple(&recs.Tracks[i]))
	}
	return tracks, nil
}

// CreatePlaylist creates a private playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error) {
	pl, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return nil, translate("create playlist", err)
	}
	return fromPlaylist(pl), nil
}

// Playlist fetches a playlist's details.
func (c *Client) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	pl, err := c.api.GetPlaylist(ctx, spotifyapi.ID(playlistID))
	if err != nil {
		return nil, translate("get playlist", err)
	}
	return fromPlaylist(pl), nil
}

// AddTracks appends trackIDs to a playlist, in order.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	for start := 0; start < len(trackIDs); start += maxPlaylistAdd {
		end := min(start+maxPlaylistAdd, len(trackIDs))
		ids := make([]spotifyapi.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			ids = append(ids, spotifyapi.ID(id))
		}
		if _, err := c.api.AddTracksToPlaylist(ctx, spotifyapi.ID(playlistID), ids...); err != nil {
			return translate("add tracks", err)
		}
	}
	return nil
}

// Seeds converts a seed set to request seeds, keeping track seeds first and
// filling the remaining slots with artist ids.
func Seeds(s models.SeedSet) spotifyapi.Seeds {
	var out spotifyapi.Seeds
	for _, id := range s.TrackIDs {
		if len(out.Tracks) == MaxSeeds {
			break
		}
		out.Tracks = append(out.Tracks, spotifyapi.ID(id))
	}
	for _, id := range s.ArtistIDs {
		if len(out.Tracks)+len(out.Artists) == MaxSeeds {
			break
		}
		out.Artists = append(out.Artists, spotifyapi.ID(id))
	}
	return out
}

func fromSimple(st *spotifyapi.SimpleTrack) *models.TrackRecord {
	t := &models.TrackRecord{
		ID:   string(st.ID),
		Name: st.Name,
		URL:  st.ExternalURLs["spotify"],
	}
	for _, a := range st.Artists {
		t.Artists = append(t.Artists, a.Name)
		t.ArtistIDs = append(t.ArtistIDs, string(a.ID))
	}
	return t
}

func fromPlaylist(pl *spotifyapi.FullPlaylist) *models.Playlist {
	return &models.Playlist{
		ID:          string(pl.ID),
		Name:        pl.Name,
		Description: pl.Description,
		URL:         pl.ExternalURLs["spotify"],
	}
}

// featuresToMap goes through JSON so every field the API reports is kept
// under its wire name.
func featuresToMap(f *spotifyapi.AudioFeatures) (metadata.Map, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio features: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode audio features: %w", err)
	}
	return metadata.MapFromAny(raw)
}
