// Package session handles Spotify authorization and turns stored tokens into
// per-user provider clients.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/spotify"
)

// Endpoint is the Spotify accounts service.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// stateTTL bounds how long a login attempt may take.
const stateTTL = 10 * time.Minute

// Session is an authorized user with a ready provider client.
type Session struct {
	UserID  string
	Spotify *spotify.Client
}

// Manager runs the authorization-code flow and builds sessions from stored tokens.
type Manager struct {
	oauth   *oauth2.Config
	tokens  *TokenStore
	market  string
	baseURL string
	logger  *zap.Logger

	mu     sync.Mutex
	states map[string]time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEndpoint overrides the accounts service endpoint.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(m *Manager) { m.oauth.Endpoint = e }
}

// WithAPIBaseURL overrides the Web API base URL. It must end with a slash.
func WithAPIBaseURL(u string) Option {
	return func(m *Manager) { m.baseURL = u }
}

// NewManager creates a manager for the configured Spotify application.
func NewManager(cfg config.SpotifyConfig, tokens *TokenStore, opts ...Option) *Manager {
	m := &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     Endpoint,
		},
		tokens: tokens,
		market: cfg.Market,
		states: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// AuthURL starts a login and returns the URL to send the user to.
func (m *Manager) AuthURL() string {
	state := uuid.NewString()
	now := time.Now()

	m.mu.Lock()
	for s, exp := range m.states {
		if now.After(exp) {
			delete(m.states, s)
		}
	}
	m.states[state] = now.Add(stateTTL)
	m.mu.Unlock()

	return m.oauth.AuthCodeURL(state)
}

// Exchange completes a login: it checks state, trades code for a token,
// stores it and makes the user current.
func (m *Manager) Exchange(ctx context.Context, state, code string) (*Session, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", apperr.ErrInvalidArgument)
	}
	if !m.consumeState(state) {
		return nil, fmt.Errorf("%w: unknown or expired login state", apperr.ErrInvalidArgument)
	}

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: could not authenticate with Spotify: %v", apperr.ErrAuthRequired, err)
	}

	client := m.client(ctx, "", tok)
	userID, err := client.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.tokens.Save(userID, tok); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	if err := m.tokens.SetCurrent(userID); err != nil {
		return nil, fmt.Errorf("failed to record current user: %w", err)
	}

	m.logger.Info("user logged in", zap.String("user_id", userID))
	return &Session{UserID: userID, Spotify: m.client(ctx, userID, tok)}, nil
}

// Current returns the session of the user who logged in last.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	userID, err := m.tokens.Current()
	if err != nil {
		return nil, err
	}
	return m.Session(ctx, userID)
}

// Session returns the session for userID from its stored token. Refreshed
// tokens are written back to the store.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	tok, err := m.tokens.Load(userID)
	if err != nil {
		return nil, err
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token for %s expired", apperr.ErrAuthRequired, userID)
	}
	return &Session{UserID: userID, Spotify: m.client(ctx, userID, tok)}, nil
}

// Logout forgets the token of userID.
func (m *Manager) Logout(userID string) error {
	return m.tokens.Delete(userID)
}

func (m *Manager) consumeState(state string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.states[state]
	if !ok {
		return false
	}
	delete(m.states, state)
	return time.Now().Before(exp)
}

// client builds a provider client. With a userID, refreshed tokens are saved.
func (m *Manager) client(ctx context.Context, userID string, tok *oauth2.Token) *spotify.Client {
	var src oauth2.TokenSource = m.oauth.TokenSource(ctx, tok)
	if userID != "" {
		src = &savingSource{
			base:   src,
			tokens: m.tokens,
			userID: userID,
			last:   tok.AccessToken,
			logger: m.logger,
		}
	}

	var opts []spotifyapi.ClientOption
	if m.baseURL != "" {
		opts = append(opts, spotifyapi.WithBaseURL(m.baseURL))
	}
	api := spotifyapi.New(oauth2.NewClient(ctx, src), opts...)
	clientOpts := []spotify.Option{spotify.WithLogger(m.logger)}
	if m.market != "" {
		clientOpts = append(clientOpts, spotify.WithMarket(m.market))
	}
	return spotify.New(api, clientOpts...)
}

// savingSource writes a token back to the store whenever it changes.
type savingSource struct {
	base   oauth2.TokenSource
	tokens *TokenStore
	userID string
	logger *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.tokens.Save(s.userID, tok); err != nil {
			s.logger.Warn("failed to save refreshed token", zap.String("user_id", s.userID), zap.Error(err))
		}
	}
	return tok, nil
}
