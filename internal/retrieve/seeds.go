package retrieve

import "github.com/hyperjump/moodify/internal/models"

// MaxSeeds bounds each seed kind to stay within the provider's seed cap.
const MaxSeeds = 5

// ComposeSeeds collects the first MaxSeeds distinct track ids and artist
// names from results, in first-seen order. Artist ids travel alongside names
// because the recommendation endpoint is keyed by id.
func ComposeSeeds(results []*models.RetrievalResult) models.SeedSet {
	var seeds models.SeedSet
	seenTracks := make(map[string]bool)
	seenNames := make(map[string]bool)
	seenArtistIDs := make(map[string]bool)

	for _, res := range results {
		if res == nil {
			continue
		}
		if id := res.TrackID; id != "" && !seenTracks[id] && len(seeds.TrackIDs) < MaxSeeds {
			seenTracks[id] = true
			seeds.TrackIDs = append(seeds.TrackIDs, id)
		}

		names := res.AudioMetadata.StringList("artists")
		if len(names) == 0 {
			names = res.Metadata.StringList("artists")
		}
		for _, name := range names {
			if name == "" || seenNames[name] || len(seeds.ArtistNames) >= MaxSeeds {
				continue
			}
			seenNames[name] = true
			seeds.ArtistNames = append(seeds.ArtistNames, name)
		}

		for _, id := range res.AudioMetadata.StringList("artist_ids") {
			if id == "" || seenArtistIDs[id] || len(seeds.ArtistIDs) >= MaxSeeds {
				continue
			}
			seenArtistIDs[id] = true
			seeds.ArtistIDs = append(seeds.ArtistIDs, id)
		}
	}
	return seeds
}
