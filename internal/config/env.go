package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvClientID          = "SPOTIFY_CLIENT_ID"
	EnvClientSecret      = "SPOTIFY_CLIENT_SECRET"
	EnvRedirectURI       = "SPOTIFY_REDIRECT_URI"
	EnvLyricsBaseURL     = "MOODIFY_LYRICS_BASE_URL"
	EnvRedisAddr         = "MOODIFY_REDIS_ADDR"
	EnvEmbeddingEndpoint = "MOODIFY_EMBEDDING_ENDPOINT"
)

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv copies non-empty environment overrides into cfg.
func ApplyEnv(cfg *Config) {
	setFromEnv(&cfg.Spotify.ClientID, EnvClientID)
	setFromEnv(&cfg.Spotify.ClientSecret, EnvClientSecret)
	setFromEnv(&cfg.Spotify.RedirectURL, EnvRedirectURI)
	setFromEnv(&cfg.Lyrics.BaseURL, EnvLyricsBaseURL)
	setFromEnv(&cfg.Embedding.Endpoint, EnvEmbeddingEndpoint)
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Lease.RedisAddr = v
		cfg.Lease.Backend = "redis"
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
