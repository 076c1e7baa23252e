package ingest_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/embedding"
	"github.com/hyperjump/moodify/internal/ingest"
	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/retrieve"
	"github.com/hyperjump/moodify/internal/storage"
)

type staticSource struct {
	tracks   []*models.TrackRecord
	features map[string]metadata.Map
}

func (s staticSource) FetchLikedTracks(ctx context.Context, limit, offset int) ([]*models.TrackRecord, error) {
	if offset >= len(s.tracks) {
		return nil, nil
	}
	return s.tracks[offset:], nil
}

func (s staticSource) FetchAudioFeatures(ctx context.Context, trackID string) (metadata.Map, error) {
	return s.features[trackID], nil
}

func TestIngestThenRetrieve(t *testing.T) {
	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "moodify.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	store := collection.NewStore(st, embedding.NewMockEmbedder(128))
	ctx := context.Background()

	src := staticSource{
		tracks: []*models.TrackRecord{{
			ID:        "A",
			Name:      "Energetic Rock Song",
			Album:     "Loud",
			Artists:   []string{"X"},
			ArtistIDs: []string{"artist-x"},
			URL:       "https://open.spotify.com/track/A",
		}},
		features: map[string]metadata.Map{
			"A": {"energy": metadata.Number(0.9), "tempo": metadata.Number(120)},
		},
	}

	res, err := ingest.NewPipeline(store).Ingest(ctx, "u1", src, 1)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 {
		t.Fatalf("count=%d, want 1", res.Count)
	}

	results, err := retrieve.NewRetriever(store).Retrieve(ctx, "u1", "energetic rock", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("len=%d, want 1", len(results))
	}
	got := results[0]
	if got.TrackID != "A" {
		t.Errorf("track_id=%s, want A", got.TrackID)
	}
	if diff := cmp.Diff([]string{"X"}, got.AudioMetadata.StringList("artists")); diff != "" {
		t.Errorf("artists mismatch (-want +got):\n%s", diff)
	}
	if energy, _ := got.AudioMetadata["energy"].AsNumber(); energy != 0.9 {
		t.Errorf("energy=%v", energy)
	}

	seeds := retrieve.ComposeSeeds(results)
	if diff := cmp.Diff([]string{"artist-x"}, seeds.ArtistIDs); diff != "" {
		t.Errorf("seed artist ids mismatch (-want +got):\n%s", diff)
	}
}

func TestIngestThenRetrieve_PicksMatchingArtist(t *testing.T) {
	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "moodify.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	store := collection.NewStore(st, embedding.NewMockEmbedder(128))
	ctx := context.Background()

	src := staticSource{
		tracks: []*models.TrackRecord{
			{ID: "A", Name: "Morning Light", Album: "First", Artists: []string{"X"}, ArtistIDs: []string{"artist-x"}},
			{ID: "B", Name: "Evening Rain", Album: "Second", Artists: []string{"Y"}, ArtistIDs: []string{"artist-y"}},
		},
		features: map[string]metadata.Map{
			"A": {
				"energy": metadata.Number(0.7),
				"genres": metadata.Strings("rock", "indie"),
				"nested": metadata.List(metadata.String("a"), metadata.String("b")),
			},
			"B": {"energy": metadata.Number(0.3)},
		},
	}

	res, err := ingest.NewPipeline(store).Ingest(ctx, "u1", src, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 2 {
		t.Fatalf("count=%d, want 2", res.Count)
	}

	results, err := retrieve.NewRetriever(store).Retrieve(ctx, "u1", "X", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("len=%d, want 1", len(results))
	}
	got := results[0]
	if id := got.Metadata.Str("track_id"); id != "A" {
		t.Errorf("metadata track_id=%q, want A", id)
	}
	if got.AudioMetadata == nil {
		t.Fatal("audio metadata missing")
	}
	for key, want := range map[string][]string{
		"artists": {"X"},
		"genres":  {"rock", "indie"},
		"nested":  {"a", "b"},
	} {
		if diff := cmp.Diff(want, got.AudioMetadata.StringList(key)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", key, diff)
		}
	}

	// A second batch pages past the stored tracks and adds nothing.
	if _, err := ingest.NewPipeline(store).Ingest(ctx, "u1", src, 2); err != nil {
		t.Fatal(err)
	}
	for _, m := range []collection.Modality{collection.Text, collection.Audio} {
		c, err := store.Collection(ctx, "u1", m)
		if err != nil {
			t.Fatal(err)
		}
		if n, _ := c.Count(ctx); n != 2 {
			t.Errorf("%s count=%d, want 2", m, n)
		}
	}
}
