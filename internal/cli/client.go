package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/models"
)

// Client talks to a running moodify server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL. Redirects are not
// followed, so a redirect to /login surfaces as apperr.ErrAuthRequired.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Search runs GET /api/v1/search.
func (c *Client) Search(ctx context.Context, query string, k int) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/search", queryParams(query, k), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommend runs GET /api/v1/recommendations.
func (c *Client) Recommend(ctx context.Context, query string, k int) (*models.Recommendation, error) {
	var out models.Recommendation
	if err := c.do(ctx, http.MethodGet, "/api/v1/recommendations", queryParams(query, k), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePlaylist runs POST /api/v1/playlists.
func (c *Client) CreatePlaylist(ctx context.Context, query string, k int) (*models.PlaylistResponse, error) {
	var out models.PlaylistResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/playlists", queryParams(query, k), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddTracks runs POST /api/v1/playlists/{id}/tracks.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	body := map[string][]string{"track_ids": trackIDs}
	return c.do(ctx, http.MethodPost, "/api/v1/playlists/"+url.PathEscape(playlistID)+"/tracks", nil, body, nil)
}

// Ingest runs POST /api/v1/embeddings. A limit of 0 uses the server default.
func (c *Client) Ingest(ctx context.Context, limit int) (*models.IngestResult, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out models.IngestResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/embeddings", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lyrics runs GET /api/v1/lyrics.
func (c *Client) Lyrics(ctx context.Context, artist, title string) (string, error) {
	params := url.Values{"artist": {artist}, "title": {title}}
	var out models.LyricsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/lyrics", params, nil, &out); err != nil {
		return "", err
	}
	return out.Lyrics, nil
}

// Status runs GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (*models.Status, error) {
	var out models.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func queryParams(query string, k int) url.Values {
	params := url.Values{"query": {query}}
	if k > 0 {
		params.Set("k", strconv.Itoa(k))
	}
	return params
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response onto the apperr sentinels.
func (c *Client) statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(b))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusTemporaryRedirect, http.StatusFound, http.StatusSeeOther, http.StatusUnauthorized:
		return fmt.Errorf("%w: log in at %s/login", apperr.ErrAuthRequired, c.baseURL)
	case http.StatusTooManyRequests:
		sentinel = apperr.ErrRateLimited
	case http.StatusBadRequest:
		sentinel = apperr.ErrInvalidArgument
	case http.StatusNotFound:
		sentinel = apperr.ErrNotFound
	case http.StatusConflict:
		sentinel = apperr.ErrConflict
	case http.StatusForbidden:
		sentinel = apperr.ErrForbidden
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
