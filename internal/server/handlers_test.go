package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/embedding"
	"github.com/hyperjump/moodify/internal/ingest"
	"github.com/hyperjump/moodify/internal/lease"
	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/recommend"
	"github.com/hyperjump/moodify/internal/retrieve"
	"github.com/hyperjump/moodify/internal/storage"
)

type fakeMusic struct {
	tracks    []*models.TrackRecord
	recs      []*models.TrackRecord
	playlists map[string]*models.Playlist
	err       error
}

func (f *fakeMusic) FetchLikedTracks(ctx context.Context, limit, offset int) ([]*models.TrackRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.tracks) {
		return nil, nil
	}
	return f.tracks[offset:min(offset+limit, len(f.tracks))], nil
}

func (f *fakeMusic) FetchAudioFeatures(ctx context.Context, trackID string) (metadata.Map, error) {
	return metadata.Map{"energy": metadata.Number(0.8)}, nil
}

func (f *fakeMusic) Recommendations(ctx context.Context, seeds models.SeedSet, limit int) ([]*models.TrackRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

func (f *fakeMusic) LikedTrackIDs(ctx context.Context, n int) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, t := range f.tracks {
		ids[t.ID] = true
	}
	return ids, nil
}

func (f *fakeMusic) CreatePlaylist(ctx context.Context, userID, name, description string) (*models.Playlist, error) {
	pl := &models.Playlist{ID: fmt.Sprintf("pl-%d", len(f.playlists)+1), Name: name, Description: description}
	f.playlists[pl.ID] = pl
	return pl, nil
}

func (f *fakeMusic) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	pl, ok := f.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, apperr.ErrNotFound)
	}
	return pl, nil
}

func (f *fakeMusic) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	pl := f.playlists[playlistID]
	pl.TrackIDs = append(pl.TrackIDs, trackIDs...)
	return nil
}

type fakeAuth struct {
	account *Account
}

func (a *fakeAuth) AuthURL() string {
	return "https://accounts.example.com/authorize?state=s1"
}

func (a *fakeAuth) Login(ctx context.Context, state, code string) (string, error) {
	if code != "good" {
		return "", fmt.Errorf("%w: bad code", apperr.ErrAuthRequired)
	}
	return "u1", nil
}

func (a *fakeAuth) Account(ctx context.Context) (*Account, error) {
	if a.account == nil {
		return nil, fmt.Errorf("%w: not logged in", apperr.ErrAuthRequired)
	}
	return a.account, nil
}

func (a *fakeAuth) CurrentUser() (string, error) {
	if a.account == nil {
		return "", apperr.ErrAuthRequired
	}
	return a.account.UserID, nil
}

func (a *fakeAuth) Logout() (string, error) {
	if a.account == nil {
		return "", apperr.ErrAuthRequired
	}
	userID := a.account.UserID
	a.account = nil
	return userID, nil
}

type fakeLyrics map[string]string

func (l fakeLyrics) Lookup(ctx context.Context, title, artist string) (string, error) {
	if text, ok := l[title]; ok {
		return text, nil
	}
	return "", apperr.ErrNotFound
}

type testEnv struct {
	handler http.Handler
	music   *fakeMusic
	auth    *fakeAuth
	locker  *lease.Local
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "moodify.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "moodify.db")
	cfg.Embedding.Provider = "mock"

	store := collection.NewStore(st, embedding.NewMockEmbedder(64))
	locker := lease.NewLocal()
	retriever := retrieve.NewRetriever(store, retrieve.WithMaxK(cfg.Search.MaxK))
	music := &fakeMusic{
		tracks: []*models.TrackRecord{
			{ID: "a", Name: "Thunderstruck", Album: "The Razors Edge", Artists: []string{"AC/DC"}, ArtistIDs: []string{"acdc"}},
			{ID: "b", Name: "Clair de Lune", Album: "Suite bergamasque", Artists: []string{"Debussy"}, ArtistIDs: []string{"debussy"}},
		},
		recs:      []*models.TrackRecord{{ID: "a"}, {ID: "r1", Name: "Back in Black"}},
		playlists: map[string]*models.Playlist{"theirs": {ID: "theirs", Description: "Summer hits"}},
	}
	auth := &fakeAuth{account: &Account{UserID: "u1", Music: music}}

	srv := NewServer(Deps{
		Auth:        auth,
		Store:       store,
		Pipeline:    ingest.NewPipeline(store, ingest.WithLocker(locker)),
		Retriever:   retriever,
		Recommender: recommend.NewRecommender(retriever),
		Lyrics:      fakeLyrics{"Thunderstruck": "Thunder!"},
	}, cfg, zap.NewNop())
	return &testEnv{handler: srv.Handler(), music: music, auth: auth, locker: locker}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/embeddings", nil)
	w := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "moodify_ingest_batches_total") {
		t.Error("expected moodify collectors in /metrics output")
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/login", nil)
	if w.Code != http.StatusTemporaryRedirect || !strings.HasPrefix(w.Header().Get("Location"), "https://accounts.example.com/") {
		t.Errorf("login: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}

	tests := []struct {
		target string
		want   int
	}{
		{"/callback?state=s1", http.StatusBadRequest},
		{"/callback?state=s1&code=bad", http.StatusUnauthorized},
		{"/callback?error=access_denied", http.StatusUnauthorized},
		{"/callback?state=s1&code=good", http.StatusOK},
	}
	for _, tt := range tests {
		if w := env.do(t, http.MethodGet, tt.target, nil); w.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["user_id"] != "u1" {
		t.Errorf("body=%v", body)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/search?query=rock", nil); w.Code != http.StatusTemporaryRedirect {
		t.Errorf("search after logout: got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/logout", nil); w.Code != http.StatusTemporaryRedirect {
		t.Errorf("second logout: got %d", w.Code)
	}
}

func TestNotLoggedInRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.auth.account = nil

	for _, target := range []string{
		"/api/v1/search?query=rock",
		"/api/v1/recommendations?query=rock",
	} {
		w := env.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/login" {
			t.Errorf("%s: status=%d location=%q", target, w.Code, w.Header().Get("Location"))
		}
	}
	w := env.do(t, http.MethodPost, "/api/v1/embeddings", nil)
	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("embeddings: status=%d", w.Code)
	}
}

func TestIngestAndSearch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/embeddings?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest: status=%d body=%s", w.Code, w.Body.String())
	}
	var res models.IngestResult
	decode(t, w, &res)
	if res.Count != 2 {
		t.Errorf("ingested %d, want 2", res.Count)
	}

	w = env.do(t, http.MethodGet, "/api/v1/search?query=thunderstruck&k=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: status=%d body=%s", w.Code, w.Body.String())
	}
	var sr models.SearchResponse
	decode(t, w, &sr)
	if len(sr.Results) != 1 || sr.Results[0].TrackID != "a" {
		t.Fatalf("search results=%+v", sr.Results)
	}
	if got := sr.Results[0].AudioMetadata.StringList("artists"); len(got) != 1 || got[0] != "AC/DC" {
		t.Errorf("audio artists=%v", got)
	}
}

func TestSearchValidation(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?query=%20",
		"/api/v1/search?query=rock&k=abc",
		"/api/v1/search?query=rock&k=0",
	} {
		if w := env.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, w.Code)
		}
	}
	if w := env.do(t, http.MethodPost, "/api/v1/embeddings?limit=500", nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit above max: got %d", w.Code)
	}
}

func TestIngestErrors(t *testing.T) {
	env := newTestEnv(t)

	release, err := env.locker.Acquire(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/embeddings", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("held lease: got %d, want 409", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("409 should carry Retry-After")
	}
	release()

	env.music.err = fmt.Errorf("spotify: %w", apperr.ErrRateLimited)
	w = env.do(t, http.MethodPost, "/api/v1/embeddings", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("rate limited: got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != rateLimitMessage {
		t.Errorf("message=%q", body["error"])
	}

	env.music.err = fmt.Errorf("connection reset")
	w = env.do(t, http.MethodPost, "/api/v1/embeddings", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("generic failure: got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "" {
		t.Error("500 should not carry Retry-After")
	}

	// Provider 403/404 during a batch is an ingestion failure, not a playlist error.
	for _, kind := range []error{apperr.ErrForbidden, apperr.ErrNotFound} {
		env.music.err = fmt.Errorf("%w: spotify liked tracks: provider refused", kind)
		w = env.do(t, http.MethodPost, "/api/v1/embeddings", nil)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%v: got %d, want 500", kind, w.Code)
		}
		decode(t, w, &body)
		if body["error"] != "An error occurred during ingest." {
			t.Errorf("%v: message=%q", kind, body["error"])
		}
	}
}

func TestRecommendationsAndPlaylists(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodPost, "/api/v1/embeddings", nil); w.Code != http.StatusOK {
		t.Fatalf("ingest: %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/recommendations?query=thunderstruck&k=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recommendations: status=%d body=%s", w.Code, w.Body.String())
	}
	var rec models.Recommendation
	decode(t, w, &rec)
	if len(rec.Tracks) != 1 || rec.Tracks[0].ID != "r1" {
		t.Errorf("liked track should be filtered, got %+v", rec.Tracks)
	}

	w = env.do(t, http.MethodPost, "/api/v1/playlists?query=thunderstruck&k=1", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create playlist: status=%d body=%s", w.Code, w.Body.String())
	}
	var created models.PlaylistResponse
	decode(t, w, &created)
	if created.Playlist == nil || created.Playlist.Name != "thunderstruck" || !recommend.Owned(created.Playlist) {
		t.Fatalf("playlist=%+v", created.Playlist)
	}
	if !strings.Contains(created.Message, "created") {
		t.Errorf("message=%q", created.Message)
	}

	body := []byte(`{"track_ids":["x1"]}`)
	if w := env.do(t, http.MethodPost, "/api/v1/playlists/"+created.Playlist.ID+"/tracks", body); w.Code != http.StatusOK {
		t.Errorf("append to own playlist: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/playlists/theirs/tracks", body)
	if w.Code != http.StatusForbidden {
		t.Errorf("append to foreign playlist: got %d", w.Code)
	}
	if len(env.music.playlists["theirs"].TrackIDs) != 0 {
		t.Error("foreign playlist modified")
	}
	if w := env.do(t, http.MethodPost, "/api/v1/playlists/theirs/tracks", []byte("{")); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: got %d", w.Code)
	}
}

func TestHandleLyrics(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/lyrics?artist=AC/DC&title=Thunderstruck", http.StatusOK},
		{"/api/v1/lyrics?artist=AC/DC&title=Unknown", http.StatusNotFound},
		{"/api/v1/lyrics?artist=AC/DC", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := env.do(t, http.MethodGet, tt.target, nil); w.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/embeddings", nil)

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st models.Status
	decode(t, w, &st)
	if st.CurrentUser != "u1" || len(st.Collections) != 2 || st.Documents != 4 {
		t.Errorf("status=%+v", st)
	}
	if st.Config == nil || st.Config.EmbeddingProvider != "mock" {
		t.Errorf("config=%+v", st.Config)
	}
	if st.DiskUsageBytes == nil || *st.DiskUsageBytes == 0 {
		t.Error("expected disk usage")
	}
}
