package config

import "time"

const dataDir = "/usr/local/var/moodify/data"

// DefaultScopes are the Spotify scopes moodify needs to read liked tracks and write playlists.
var DefaultScopes = []string{
	"user-library-read",
	"user-top-read",
	"playlist-read-private",
	"playlist-modify-public",
	"playlist-modify-private",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = dataDir + "/db/moodify.db"
	}
	if cfg.Storage.TokenPath == "" {
		cfg.Storage.TokenPath = dataDir + "/db/tokens.db"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "bge-m3"
	}
	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = "http://localhost:11434"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = dataDir + "/models/bge-m3.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}

	if cfg.Spotify.RedirectURL == "" {
		cfg.Spotify.RedirectURL = "http://localhost:8080/callback"
	}
	if cfg.Spotify.Market == "" {
		cfg.Spotify.Market = "US"
	}
	if len(cfg.Spotify.Scopes) == 0 {
		cfg.Spotify.Scopes = append([]string(nil), DefaultScopes...)
	}

	if cfg.Lyrics.BaseURL == "" {
		cfg.Lyrics.BaseURL = "https://api.lyrics.ovh"
	}
	if cfg.Lyrics.Timeout == 0 {
		cfg.Lyrics.Timeout = 10 * time.Second
	}
	if cfg.Lyrics.RequestsPerSecond == 0 {
		cfg.Lyrics.RequestsPerSecond = 2
	}
	if cfg.Lyrics.Burst == 0 {
		cfg.Lyrics.Burst = 1
	}
	if cfg.Lyrics.FailureThreshold == 0 {
		cfg.Lyrics.FailureThreshold = 5
	}
	if cfg.Lyrics.OpenTimeout == 0 {
		cfg.Lyrics.OpenTimeout = 60 * time.Second
	}

	if cfg.Ingest.DefaultLimit == 0 {
		cfg.Ingest.DefaultLimit = 50
	}
	if cfg.Ingest.MaxLimit == 0 {
		cfg.Ingest.MaxLimit = 50
	}
	if cfg.Ingest.LikedTracksFilter == 0 {
		cfg.Ingest.LikedTracksFilter = 50
	}

	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 50
	}

	if cfg.Lease.Backend == "" {
		cfg.Lease.Backend = "local"
	}
	if cfg.Lease.TTL == 0 {
		cfg.Lease.TTL = 10 * time.Minute
	}
	if cfg.Lease.Backend == "redis" && cfg.Lease.RedisAddr == "" {
		cfg.Lease.RedisAddr = "localhost:6379"
	}

	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB == 0 {
			cfg.Logging.MaxSizeMB = 100
		}
		if cfg.Logging.MaxBackups == 0 {
			cfg.Logging.MaxBackups = 5
		}
		if cfg.Logging.MaxAgeDays == 0 {
			cfg.Logging.MaxAgeDays = 30
		}
	}
}
