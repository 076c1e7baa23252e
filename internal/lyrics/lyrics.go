// Package lyrics looks up song lyrics over HTTP.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/metrics"
)

// Source returns the lyrics of a song, or an error wrapping apperr.ErrNotFound.
type Source interface {
	Lookup(ctx context.Context, title, artist string) (string, error)
}

// Noop is the Source used when lyrics are disabled. Every lookup is a miss.
type Noop struct{}

func (Noop) Lookup(context.Context, string, string) (string, error) {
	metrics.LyricsLookupsTotal.WithLabelValues("skipped").Inc()
	return "", apperr.ErrNotFound
}

// Client queries a lyrics.ovh compatible API: GET {base}/v1/{artist}/{title}.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New returns a Client when lyrics are enabled and Noop otherwise.
func New(cfg config.LyricsConfig, opts ...Option) Source {
	if !cfg.Enabled {
		return Noop{}
	}
	return NewClient(cfg, opts...)
}

// NewClient creates a lyrics client. Requests are paced by a token bucket and
// guarded by a circuit breaker that opens after FailureThreshold consecutive
// failures. Misses do not count as failures.
func NewClient(cfg config.LyricsConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "lyrics",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperr.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("lyrics circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

type lyricsResponse struct {
	Lyrics string `json:"lyrics"`
	Error  string `json:"error"`
}

// Lookup fetches lyrics for title by artist.
func (c *Client) Lookup(ctx context.Context, title, artist string) (string, error) {
	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" || artist == "" {
		metrics.LyricsLookupsTotal.WithLabelValues("skipped").Inc()
		return "", fmt.Errorf("%w: lyrics need both title and artist", apperr.ErrNotFound)
	}

	text, err := c.breaker.Execute(func() (string, error) {
		return c.fetch(ctx, title, artist)
	})
	switch {
	case err == nil:
		metrics.LyricsLookupsTotal.WithLabelValues("found").Inc()
		return text, nil
	case errors.Is(err, apperr.ErrNotFound):
		metrics.LyricsLookupsTotal.WithLabelValues("not_found").Inc()
		return "", err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.LyricsLookupsTotal.WithLabelValues("skipped").Inc()
		return "", fmt.Errorf("lyrics provider unavailable: %w", err)
	default:
		metrics.LyricsLookupsTotal.WithLabelValues("error").Inc()
		return "", err
	}
}

func (c *Client) fetch(ctx context.Context, title, artist string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1/%s/%s", c.baseURL, url.PathEscape(artist), url.PathEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("lyrics", "transport").Inc()
		return "", fmt.Errorf("lyrics request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("lyrics lookup",
		zap.String("artist", artist),
		zap.String("title", title),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: no lyrics for %q by %q", apperr.ErrNotFound, title, artist)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ProviderErrorsTotal.WithLabelValues("lyrics", "rate_limited").Inc()
		return "", fmt.Errorf("lyrics: %w", apperr.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.ProviderErrorsTotal.WithLabelValues("lyrics", "status").Inc()
		return "", fmt.Errorf("lyrics provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body lyricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode lyrics response: %w", err)
	}
	text := strings.TrimSpace(strings.ReplaceAll(body.Lyrics, "\r\n", "\n"))
	if text == "" {
		return "", fmt.Errorf("%w: empty lyrics for %q by %q", apperr.ErrNotFound, title, artist)
	}
	return text, nil
}

// State reports the circuit breaker state, e.g. "closed" or "open".
func (c *Client) State() string {
	return c.breaker.State().String()
}
