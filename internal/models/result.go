package models

import (
	"fmt"
	"time"

	"github.com/hyperjump/moodify/internal/metadata"
)

// RetrievalResult joins a text hit with its audio profile. AudioMetadata is
// nil when the audio document is missing.
type RetrievalResult struct {
	TrackID       string       `json:"track_id"`
	Content       string       `json:"content"`
	Metadata      metadata.Map `json:"metadata"`
	AudioMetadata metadata.Map `json:"audio_metadata"`
	Score         float64      `json:"score"`
}

// SeedSet holds recommendation seeds derived from retrieval results.
type SeedSet struct {
	TrackIDs    []string `json:"track_ids"`
	ArtistNames []string `json:"artist_names"`
	ArtistIDs   []string `json:"artist_ids,omitempty"`
}

// Empty reports whether the set has no usable seeds.
func (s SeedSet) Empty() bool {
	return len(s.TrackIDs) == 0 && len(s.ArtistIDs) == 0
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	BatchID string `json:"batch_id"`
	UserID  string `json:"user_id"`
	Offset  int    `json:"offset"`
	Fetched int    `json:"fetched"`
	Skipped int    `json:"skipped"`
	Count   int    `json:"count"`
}

// Playlist is a provider playlist created or modified by moodify.
type Playlist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	TrackIDs    []string `json:"track_ids"`
}

// Recommendation is the response of a recommend request.
type Recommendation struct {
	Query   string             `json:"query"`
	Seeds   SeedSet            `json:"seeds"`
	Results []*RetrievalResult `json:"results"`
	Tracks  []*TrackRecord     `json:"tracks"`
}

// SearchResponse is the response of a search request.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []*RetrievalResult `json:"results"`
}

// CollectionStatus describes one stored collection.
type CollectionStatus struct {
	Name       string    `json:"name"`
	Documents  int       `json:"documents"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}

// Status summarizes what moodify has stored and how it is configured.
type Status struct {
	CurrentUser    string              `json:"current_user,omitempty"`
	Documents      int                 `json:"documents"`
	Collections    []*CollectionStatus `json:"collections"`
	DiskUsageBytes *int64              `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig       `json:"config,omitempty"`
}

// StatusConfig is the part of the configuration reported by status.
type StatusConfig struct {
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	DatabasePath        string `json:"database_path,omitempty"`
	LeaseBackend        string `json:"lease_backend"`
	LyricsEnabled       bool   `json:"lyrics_enabled"`
	LyricsBreaker       string `json:"lyrics_breaker,omitempty"`
}

// PlaylistResponse is the response of a create-playlist request.
type PlaylistResponse struct {
	Message  string    `json:"message"`
	Playlist *Playlist `json:"playlist"`
}

// NewPlaylistResponse reports a playlist that was just created and filled.
func NewPlaylistResponse(pl *Playlist) *PlaylistResponse {
	return &PlaylistResponse{
		Message:  fmt.Sprintf("Playlist '%s' created and %d songs added.", pl.Name, len(pl.TrackIDs)),
		Playlist: pl,
	}
}

// LyricsResponse is the response of a lyrics request.
type LyricsResponse struct {
	Lyrics string `json:"lyrics"`
}
