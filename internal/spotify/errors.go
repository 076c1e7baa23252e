package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/metrics"
)

// translate maps Spotify and OAuth failures onto the apperr taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("spotify %s: %w", op, err)
	}

	kind, sentinel := classify(err)
	metrics.ProviderErrorsTotal.WithLabelValues("spotify", kind).Inc()
	return fmt.Errorf("%w: spotify %s: %w", sentinel, op, err)
}

func classify(err error) (string, error) {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return "auth", apperr.ErrAuthRequired
	}

	status := 0
	var apiErr spotifyapi.Error
	var apiErrPtr *spotifyapi.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	}

	switch status {
	case http.StatusTooManyRequests:
		return "rate_limited", apperr.ErrRateLimited
	case http.StatusUnauthorized:
		return "auth", apperr.ErrAuthRequired
	case http.StatusForbidden:
		return "forbidden", apperr.ErrForbidden
	case http.StatusNotFound:
		return "not_found", apperr.ErrNotFound
	default:
		return "failure", apperr.ErrProviderFailure
	}
}
