package models

import "testing"

func TestSeedSet_Empty(t *testing.T) {
	tests := []struct {
		name string
		s    SeedSet
		want bool
	}{
		{"zero", SeedSet{}, true},
		{"names only", SeedSet{ArtistNames: []string{"Queen"}}, true},
		{"track", SeedSet{TrackIDs: []string{"a"}}, false},
		{"artist id", SeedSet{ArtistIDs: []string{"x"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackRecord_URI(t *testing.T) {
	tr := &TrackRecord{ID: "6rqhFgbbKwnb9MLmUQDhG6"}
	if got := tr.URI(); got != "spotify:track:6rqhFgbbKwnb9MLmUQDhG6" {
		t.Errorf("URI() = %q", got)
	}
}
