package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/models"
)

const (
	rateLimitMessage  = "Rate limit exceeded, please try again later."
	forbiddenMessage  = "Cannot modify existing playlists"
	retryAfterSeconds = "30"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL := s.deps.Auth.AuthURL()
	s.logger.Info("redirecting to Spotify authorization")
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.respondError(w, http.StatusUnauthorized, "authorization denied: "+e)
		return
	}
	code := q.Get("code")
	if code == "" {
		s.respondError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}
	userID, err := s.deps.Auth.Login(r.Context(), q.Get("state"), code)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthRequired) {
			s.logger.Warn("login failed", zap.Error(err))
			s.respondError(w, http.StatusUnauthorized, "Could not authenticate with Spotify")
			return
		}
		s.fail(w, r, "login", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "authenticated", "user_id": userID})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, err := s.deps.Auth.Logout()
	if err != nil {
		s.fail(w, r, "logout", err)
		return
	}
	s.logger.Info("logged out", zap.String("user_id", userID))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "logged out", "user_id": userID})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.config.Ingest.DefaultLimit)
	if err != nil {
		s.fail(w, r, "ingest", err)
		return
	}
	acct, err := s.deps.Auth.Account(r.Context())
	if err != nil {
		s.fail(w, r, "ingest", err)
		return
	}
	s.logger.Debug("ingest request", zap.String("user_id", acct.UserID), zap.Int("limit", limit))
	res, err := s.deps.Pipeline.Ingest(r.Context(), acct.UserID, acct.Music, limit)
	if err != nil {
		s.fail(w, r, "ingest", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, k, err := s.queryAndK(r)
	if err != nil {
		s.fail(w, r, "search", err)
		return
	}
	acct, err := s.deps.Auth.Account(r.Context())
	if err != nil {
		s.fail(w, r, "search", err)
		return
	}
	s.logger.Debug("search request", zap.String("query", query), zap.Int("k", k))
	results, err := s.deps.Retriever.Retrieve(r.Context(), acct.UserID, query, k)
	if err != nil {
		s.fail(w, r, "search", err)
		return
	}
	if results == nil {
		results = []*models.RetrievalResult{}
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{Query: query, Results: results})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	query, k, err := s.queryAndK(r)
	if err != nil {
		s.fail(w, r, "recommendations", err)
		return
	}
	acct, err := s.deps.Auth.Account(r.Context())
	if err != nil {
		s.fail(w, r, "recommendations", err)
		return
	}
	rec, err := s.deps.Recommender.Recommend(r.Context(), acct.UserID, acct.Music, query, k)
	if err != nil {
		s.fail(w, r, "recommendations", err)
		return
	}
	if rec.Tracks == nil {
		rec.Tracks = []*models.TrackRecord{}
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	query, k, err := s.queryAndK(r)
	if err != nil {
		s.fail(w, r, "create playlist", err)
		return
	}
	acct, err := s.deps.Auth.Account(r.Context())
	if err != nil {
		s.fail(w, r, "create playlist", err)
		return
	}
	pl, err := s.deps.Recommender.CreatePlaylist(r.Context(), acct.UserID, acct.Music, query, k)
	if err != nil {
		s.fail(w, r, "create playlist", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.NewPlaylistResponse(pl))
}

type addTracksRequest struct {
	TrackIDs []string `json:"track_ids"`
}

func (s *Server) handleAddPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "id")
	var req addTracksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acct, err := s.deps.Auth.Account(r.Context())
	if err != nil {
		s.fail(w, r, "add playlist tracks", err)
		return
	}
	if err := s.deps.Recommender.AppendToPlaylist(r.Context(), acct.Music, playlistID, req.TrackIDs); err != nil {
		s.fail(w, r, "add playlist tracks", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"playlist_id": playlistID, "added": len(req.TrackIDs)})
}

func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	artist := strings.TrimSpace(r.URL.Query().Get("artist"))
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if artist == "" || title == "" {
		s.respondError(w, http.StatusBadRequest, "artist and title are required")
		return
	}
	text, err := s.deps.Lyrics.Lookup(r.Context(), title, artist)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Lyrics not found")
			return
		}
		s.fail(w, r, "lyrics", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.LyricsResponse{Lyrics: text})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var current string
	if s.deps.Auth != nil {
		current, _ = s.deps.Auth.CurrentUser()
	}
	status, err := BuildStatus(r.Context(), s.deps.Store, s.config, s.deps.Lyrics, current)
	if err != nil {
		s.fail(w, r, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// queryAndK reads the query and k parameters, defaulting k from config.
func (s *Server) queryAndK(r *http.Request) (string, int, error) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		return "", 0, fmt.Errorf("%w: query is required", apperr.ErrInvalidArgument)
	}
	k, err := intParam(r, "k", s.config.Search.DefaultK)
	if err != nil {
		return "", 0, err
	}
	return query, k, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", apperr.ErrInvalidArgument, name, raw)
	}
	return n, nil
}

// fail maps err onto a response. A missing session redirects to /login.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	switch {
	case errors.Is(err, apperr.ErrAuthRequired):
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
	case errors.Is(err, apperr.ErrRateLimited):
		s.logger.Warn(op+" rate limited", zap.Error(err))
		s.respondError(w, http.StatusTooManyRequests, rateLimitMessage)
	case errors.Is(err, apperr.ErrInvalidArgument):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrIngestionFailed):
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred during %s.", op))
	case errors.Is(err, apperr.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		s.respondError(w, http.StatusForbidden, forbiddenMessage)
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred during %s.", op))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
