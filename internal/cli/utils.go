// Package cli provides output formatting and the HTTP client used by the moodify CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d tracks for %q\n\n", len(response.Results), response.Query)
	for i, r := range response.Results {
		writeOneResult(w, i+1, r)
	}
	return nil
}

func writeOneResult(w io.Writer, rank int, r *models.RetrievalResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %s\n", rank, r.Score, r.TrackID)
	if name := r.AudioMetadata.Str("name"); name != "" {
		fmt.Fprintf(w, "Track: %s\n", name)
	}
	if artists := r.AudioMetadata.StringList("artists"); len(artists) > 0 {
		fmt.Fprintf(w, "Artists: %s\n", strings.Join(artists, ", "))
	}
	if url := r.Metadata.Str("url"); url != "" {
		fmt.Fprintf(w, "URL: %s\n", url)
	}
	if r.AudioMetadata == nil {
		fmt.Fprintln(w, "(no audio profile)")
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Content, 200))
}

// WriteRecommendation writes recommended tracks and the seeds they came from.
func WriteRecommendation(w io.Writer, rec *models.Recommendation, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	fmt.Fprintf(w, "\n%d recommendations for %q\n", len(rec.Tracks), rec.Query)
	if len(rec.Seeds.TrackIDs) > 0 || len(rec.Seeds.ArtistNames) > 0 {
		fmt.Fprintf(w, "Seeds: %d tracks; artists %s\n", len(rec.Seeds.TrackIDs), strings.Join(rec.Seeds.ArtistNames, ", "))
	}
	fmt.Fprintln(w)
	for i, t := range rec.Tracks {
		writeTrack(w, i+1, t)
	}
	return nil
}

func writeTrack(w io.Writer, n int, t *models.TrackRecord) {
	line := fmt.Sprintf("%2d. %s", n, t.Name)
	if len(t.Artists) > 0 {
		line += " - " + strings.Join(t.Artists, ", ")
	}
	fmt.Fprintln(w, line)
	if t.URL != "" {
		fmt.Fprintf(w, "    %s\n", t.URL)
	}
}

// WritePlaylist writes the outcome of a create-playlist request.
func WritePlaylist(w io.Writer, res *models.PlaylistResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintln(w, res.Message)
	if res.Playlist != nil && res.Playlist.URL != "" {
		fmt.Fprintln(w, res.Playlist.URL)
	}
	return nil
}

// WriteIngestResult writes the summary of one ingestion batch.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "batch:    %s\n", res.BatchID)
	fmt.Fprintf(w, "user:     %s\n", res.UserID)
	fmt.Fprintf(w, "offset:   %d\n", res.Offset)
	fmt.Fprintf(w, "fetched:  %d\n", res.Fetched)
	fmt.Fprintf(w, "skipped:  %d   # already stored\n", res.Skipped)
	fmt.Fprintf(w, "ingested: %d\n", res.Count)
	return nil
}

// WriteStatus writes stored collections and the effective configuration.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if st.CurrentUser != "" {
		fmt.Fprintf(w, "current_user:       %s\n", st.CurrentUser)
	} else {
		fmt.Fprintln(w, "current_user:       (not logged in)")
	}
	fmt.Fprintf(w, "documents:          %d   # across all collections\n", st.Documents)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *st.DiskUsageBytes)
	}
	if len(st.Collections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# collections")
		for _, c := range st.Collections {
			fmt.Fprintf(w, "%-40s %6d docs  %4d dims  %s\n", c.Name, c.Documents, c.Dimensions, c.Model)
		}
	}
	if st.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding_provider: %s\n", st.Config.EmbeddingProvider)
		if st.Config.EmbeddingModel != "" {
			fmt.Fprintf(w, "embedding_model:    %s\n", st.Config.EmbeddingModel)
		}
		fmt.Fprintf(w, "embedding_dims:     %d\n", st.Config.EmbeddingDimensions)
		if st.Config.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", st.Config.DatabasePath)
		}
		fmt.Fprintf(w, "lease_backend:      %s\n", st.Config.LeaseBackend)
		fmt.Fprintf(w, "lyrics_enabled:     %t\n", st.Config.LyricsEnabled)
		if st.Config.LyricsBreaker != "" {
			fmt.Fprintf(w, "lyrics_breaker:     %s\n", st.Config.LyricsBreaker)
		}
	}
	return nil
}
