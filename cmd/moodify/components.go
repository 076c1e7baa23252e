package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/embedding"
	"github.com/hyperjump/moodify/internal/ingest"
	"github.com/hyperjump/moodify/internal/lease"
	"github.com/hyperjump/moodify/internal/lyrics"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/recommend"
	"github.com/hyperjump/moodify/internal/retrieve"
	"github.com/hyperjump/moodify/internal/server"
	"github.com/hyperjump/moodify/internal/session"
	"github.com/hyperjump/moodify/internal/storage"
)

// Components holds everything built from the config.
type Components struct {
	Config      *config.Config
	Storage     *storage.SQLiteStorage
	Embedder    embedding.Embedder
	Store       *collection.Store
	Locker      lease.Locker
	Lyrics      lyrics.Source
	Pipeline    *ingest.Pipeline
	Retriever   *retrieve.Retriever
	Recommender *recommend.Recommender
	Tokens      *session.TokenStore
	Sessions    *session.Manager
	Auth        server.SessionAuth
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	var err error
	c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	c.Embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	c.Store = collection.NewStore(c.Storage, c.Embedder, collection.WithLogger(logger))

	c.Locker, err = lease.New(ctx, cfg.Lease)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion lease: %w", err)
	}
	c.Lyrics = lyrics.New(cfg.Lyrics, lyrics.WithLogger(logger))

	c.Pipeline = ingest.NewPipeline(c.Store,
		ingest.WithLogger(logger),
		ingest.WithLyrics(c.Lyrics),
		ingest.WithLocker(c.Locker),
		ingest.WithMaxLimit(cfg.Ingest.MaxLimit))
	c.Retriever = retrieve.NewRetriever(c.Store,
		retrieve.WithLogger(logger),
		retrieve.WithMaxK(cfg.Search.MaxK))
	c.Recommender = recommend.NewRecommender(c.Retriever,
		recommend.WithLogger(logger),
		recommend.WithLikedFilter(cfg.Ingest.LikedTracksFilter))

	c.Tokens, err = session.OpenTokenStore(cfg.Storage.TokenPath)
	if err != nil {
		return nil, err
	}
	c.Sessions = session.NewManager(cfg.Spotify, c.Tokens, session.WithLogger(logger))
	c.Auth = server.SessionAuth{Manager: c.Sessions, Tokens: c.Tokens}

	ok = true
	return c, nil
}

// Deps returns the server dependencies.
func (c *Components) Deps() server.Deps {
	return server.Deps{
		Auth:        c.Auth,
		Store:       c.Store,
		Pipeline:    c.Pipeline,
		Retriever:   c.Retriever,
		Recommender: c.Recommender,
		Lyrics:      c.Lyrics,
	}
}

// Close releases resources in reverse order of creation.
func (c *Components) Close() {
	if c.Tokens != nil {
		_ = c.Tokens.Close()
	}
	if c.Locker != nil {
		_ = c.Locker.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// direct serves commands from local components when no server is used.
type direct struct {
	c *Components
}

func (d direct) account(ctx context.Context) (*server.Account, error) {
	return d.c.Auth.Account(ctx)
}

func (d direct) k(k int) int {
	if k <= 0 {
		return d.c.Config.Search.DefaultK
	}
	return k
}

func (d direct) Search(ctx context.Context, query string, k int) (*models.SearchResponse, error) {
	acct, err := d.account(ctx)
	if err != nil {
		return nil, err
	}
	results, err := d.c.Retriever.Retrieve(ctx, acct.UserID, query, d.k(k))
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{Query: query, Results: results}, nil
}

func (d direct) Recommend(ctx context.Context, query string, k int) (*models.Recommendation, error) {
	acct, err := d.account(ctx)
	if err != nil {
		return nil, err
	}
	return d.c.Recommender.Recommend(ctx, acct.UserID, acct.Music, query, d.k(k))
}

func (d direct) CreatePlaylist(ctx context.Context, query string, k int) (*models.PlaylistResponse, error) {
	acct, err := d.account(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := d.c.Recommender.CreatePlaylist(ctx, acct.UserID, acct.Music, query, d.k(k))
	if err != nil {
		return nil, err
	}
	return models.NewPlaylistResponse(pl), nil
}

func (d direct) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	acct, err := d.account(ctx)
	if err != nil {
		return err
	}
	return d.c.Recommender.AppendToPlaylist(ctx, acct.Music, playlistID, trackIDs)
}

func (d direct) Ingest(ctx context.Context, limit int) (*models.IngestResult, error) {
	if limit <= 0 {
		limit = d.c.Config.Ingest.DefaultLimit
	}
	acct, err := d.account(ctx)
	if err != nil {
		return nil, err
	}
	return d.c.Pipeline.Ingest(ctx, acct.UserID, acct.Music, limit)
}

func (d direct) Lyrics(ctx context.Context, artist, title string) (string, error) {
	return d.c.Lyrics.Lookup(ctx, title, artist)
}

func (d direct) Status(ctx context.Context) (*models.Status, error) {
	current, _ := d.c.Tokens.Current()
	return server.BuildStatus(ctx, d.c.Store, d.c.Config, d.c.Lyrics, current)
}
