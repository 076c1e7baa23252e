// Package server provides the HTTP API for moodify.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/ingest"
	"github.com/hyperjump/moodify/internal/lyrics"
	"github.com/hyperjump/moodify/internal/recommend"
	"github.com/hyperjump/moodify/internal/retrieve"
)

const (
	requestTimeout = 60 * time.Second
	// ingestTimeout covers a full batch: one features call per track plus
	// paced lyrics lookups and embedding.
	ingestTimeout = 10 * time.Minute
)

// Deps are the services the handlers orchestrate.
type Deps struct {
	Auth        Authenticator
	Store       *collection.Store
	Pipeline    *ingest.Pipeline
	Retriever   *retrieve.Retriever
	Recommender *recommend.Recommender
	Lyrics      lyrics.Source
}

// Server is the HTTP server for the moodify API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if deps.Lyrics == nil {
		deps.Lyrics = lyrics.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/login", s.handleLogin)
		r.Get("/callback", s.handleCallback)
		r.Post("/logout", s.handleLogout)
		r.Get("/api/v1/search", s.handleSearch)
		r.Get("/api/v1/recommendations", s.handleRecommendations)
		r.Post("/api/v1/playlists", s.handleCreatePlaylist)
		r.Post("/api/v1/playlists/{id}/tracks", s.handleAddPlaylistTracks)
		r.Get("/api/v1/lyrics", s.handleLyrics)
		r.Get("/api/v1/status", s.handleStatus)
	})

	r.With(middleware.Timeout(ingestTimeout)).Post("/api/v1/embeddings", s.handleIngest)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
