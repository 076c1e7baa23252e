package ingest

import (
	"fmt"
	"strings"

	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/models"
)

// AudioContent is the fixed content of every audio document. Audio documents
// are looked up by id, never searched by content.
const AudioContent = "Audio features and analysis data"

// Offset picks where the next liked-tracks page starts from the size of the
// user's text collection: 0 until the collection holds a full page, then
// count+limit. This is a heuristic; it can skip tracks when likes are added
// or removed between batches.
func Offset(count, limit int) int {
	if count >= limit {
		return count + limit
	}
	return 0
}

// TextContent renders the searchable description of a track.
func TextContent(t *models.TrackRecord) string {
	return fmt.Sprintf("%s by %s from %s\nLyrics: %s", t.Name, strings.Join(t.Artists, ", "), t.Album, t.Lyrics)
}

// TextDocument builds the text-modality document for t.
func TextDocument(t *models.TrackRecord) *models.Document {
	return &models.Document{
		ID:      t.ID,
		Content: TextContent(t),
		Metadata: metadata.Prepare(metadata.Map{
			"url":      metadata.String(t.URL),
			"track_id": metadata.String(t.ID),
		}),
	}
}

// AudioDocument builds the audio-modality document for t: track fields merged
// with its audio features and lyrics, encoded for storage.
func AudioDocument(t *models.TrackRecord) *models.Document {
	info := metadata.Map{
		"id":         metadata.String(t.ID),
		"name":       metadata.String(t.Name),
		"album":      metadata.String(t.Album),
		"artists":    metadata.Strings(t.Artists...),
		"artist_ids": metadata.Strings(t.ArtistIDs...),
		"url":        metadata.String(t.URL),
	}
	merged := metadata.Merge(info, t.Features, metadata.Map{"lyrics": metadata.String(t.Lyrics)})
	return &models.Document{
		ID:       t.ID,
		Content:  AudioContent,
		Metadata: metadata.Prepare(merged),
	}
}
