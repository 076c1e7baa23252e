package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/config"
)

func openStore(t *testing.T) *TokenStore {
	t.Helper()
	s, err := OpenTokenStore(filepath.Join(t.TempDir(), "state", "tokens.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTokenStore(t *testing.T) {
	s := openStore(t)

	if _, err := s.Current(); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("empty store: got %v", err)
	}
	if _, err := s.Load("alice"); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("missing token: got %v", err)
	}

	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	if err := s.Save("alice", tok); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCurrent("alice"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "access" || got.RefreshToken != "refresh" || !got.Expiry.Equal(tok.Expiry) {
		t.Errorf("loaded token=%+v", got)
	}
	if cur, _ := s.Current(); cur != "alice" {
		t.Errorf("current=%q", cur)
	}
	users, err := s.Users()
	if err != nil || len(users) != 1 {
		t.Errorf("users=%v err=%v", users, err)
	}

	if err := s.Delete("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Current(); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("after delete: got %v", err)
	}
}

func TestTokenStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")
	s, err := OpenTokenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Save("bob", &oauth2.Token{AccessToken: "a"})
	_ = s.SetCurrent("bob")
	s.Close()

	s2, err := OpenTokenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if cur, err := s2.Current(); err != nil || cur != "bob" {
		t.Errorf("current=%q err=%v", cur, err)
	}
}

// fakeSpotify serves the accounts token endpoint and the /me endpoint.
func fakeSpotify(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"Invalid access token"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"spotify-user","display_name":"Spotify User"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, srv *httptest.Server) (*Manager, *TokenStore) {
	t.Helper()
	store := openStore(t)
	cfg := config.SpotifyConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/callback",
		Market:       "US",
		Scopes:       config.DefaultScopes,
	}
	m := NewManager(cfg, store,
		WithEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/api/token"}),
		WithAPIBaseURL(srv.URL+"/v1/"))
	return m, store
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("state")
}

func TestManager_LoginFlow(t *testing.T) {
	srv := fakeSpotify(t)
	m, store := newTestManager(t, srv)
	ctx := context.Background()

	authURL := m.AuthURL()
	u, _ := url.Parse(authURL)
	if u.Query().Get("client_id") != "client" || u.Query().Get("redirect_uri") != "http://localhost:8080/callback" {
		t.Errorf("auth url=%s", authURL)
	}

	sess, err := m.Exchange(ctx, stateOf(t, authURL), "good-code")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UserID != "spotify-user" {
		t.Errorf("user=%q", sess.UserID)
	}
	if cur, _ := store.Current(); cur != "spotify-user" {
		t.Errorf("current=%q", cur)
	}

	cur, err := m.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id, err := cur.Spotify.CurrentUserID(ctx)
	if err != nil || id != "spotify-user" {
		t.Errorf("stored session: id=%q err=%v", id, err)
	}
}

func TestManager_ExchangeRejects(t *testing.T) {
	srv := fakeSpotify(t)
	m, _ := newTestManager(t, srv)
	ctx := context.Background()

	if _, err := m.Exchange(ctx, "forged", "good-code"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("unknown state: got %v", err)
	}
	if _, err := m.Exchange(ctx, stateOf(t, m.AuthURL()), ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("missing code: got %v", err)
	}

	state := stateOf(t, m.AuthURL())
	if _, err := m.Exchange(ctx, state, "bad-code"); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("bad code: got %v", err)
	}
	if _, err := m.Exchange(ctx, state, "good-code"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("state reuse: got %v", err)
	}
}

func TestManager_Session(t *testing.T) {
	srv := fakeSpotify(t)
	m, store := newTestManager(t, srv)
	ctx := context.Background()

	if _, err := m.Current(ctx); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("nobody logged in: got %v", err)
	}

	_ = store.Save("stale", &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)})
	if _, err := m.Session(ctx, "stale"); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("expired token without refresh: got %v", err)
	}

	if err := m.Logout("stale"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Session(ctx, "stale"); !errors.Is(err, apperr.ErrAuthRequired) {
		t.Errorf("after logout: got %v", err)
	}
}
