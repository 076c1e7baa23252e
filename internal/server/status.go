package server

import (
	"context"
	"fmt"

	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/lyrics"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/storage"
)

// BuildStatus reports stored collections, disk usage and the effective
// configuration. currentUser may be empty.
func BuildStatus(ctx context.Context, store *collection.Store, cfg *config.Config, lyr lyrics.Source, currentUser string) (*models.Status, error) {
	infos, err := store.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	status := &models.Status{
		CurrentUser: currentUser,
		Collections: make([]*models.CollectionStatus, 0, len(infos)),
	}
	for _, info := range infos {
		status.Documents += info.Documents
		status.Collections = append(status.Collections, &models.CollectionStatus{
			Name:       info.Name,
			Documents:  info.Documents,
			Dimensions: info.Dimensions,
			Model:      info.Model,
			CreatedAt:  info.CreatedAt,
		})
	}
	if cfg == nil {
		return status, nil
	}

	if diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(cfg.Storage.DatabasePath)...); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	status.Config = &models.StatusConfig{
		EmbeddingProvider:   cfg.Embedding.Provider,
		EmbeddingModel:      cfg.Embedding.Model,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
		DatabasePath:        cfg.Storage.DatabasePath,
		LeaseBackend:        cfg.Lease.Backend,
		LyricsEnabled:       cfg.Lyrics.Enabled,
	}
	if c, ok := lyr.(*lyrics.Client); ok {
		status.Config.LyricsBreaker = c.State()
	}
	return status, nil
}
