// Package models defines the data shared by ingestion, retrieval and recommendation.
package models

import (
	"time"

	"github.com/hyperjump/moodify/internal/metadata"
)

// Document is a stored unit in a collection. Metadata is always in stored
// (encoded) form when written.
type Document struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	Metadata  metadata.Map `json:"metadata"`
	UpdatedAt time.Time    `json:"updated_at,omitempty"`
}

// ScoredDocument is a similarity search hit.
type ScoredDocument struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
}

// TrackRecord is a liked track as delivered by the metadata source.
type TrackRecord struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Album     string       `json:"album"`
	Artists   []string     `json:"artists"`
	ArtistIDs []string     `json:"artist_ids,omitempty"`
	URL       string       `json:"url"`
	Features  metadata.Map `json:"features,omitempty"`
	Lyrics    string       `json:"lyrics,omitempty"`
}

// URI returns the provider URI used when adding the track to a playlist.
func (t *TrackRecord) URI() string {
	return "spotify:track:" + t.ID
}
