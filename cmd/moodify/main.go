// Package main is the moodify CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/cli"
	"github.com/hyperjump/moodify/internal/config"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/moodify/config.yaml"
	defaultServerURL  = "http://localhost:8080"
	// clientTimeout covers the longest request, an ingestion batch.
	clientTimeout = 10 * time.Minute
)

// backend is what the commands run against: a running server or local components.
type backend interface {
	Search(ctx context.Context, query string, k int) (*models.SearchResponse, error)
	Recommend(ctx context.Context, query string, k int) (*models.Recommendation, error)
	CreatePlaylist(ctx context.Context, query string, k int) (*models.PlaylistResponse, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	Ingest(ctx context.Context, limit int) (*models.IngestResult, error)
	Lyrics(ctx context.Context, artist, title string) (string, error)
	Status(ctx context.Context) (*models.Status, error)
}

var (
	_ backend = (*cli.Client)(nil)
	_ backend = direct{}
)

type app struct {
	configPath string
	serverURL  string
	output     string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "moodify",
		Short: "Search your liked Spotify tracks by mood and build playlists from them",
		Long: `moodify embeds your liked Spotify tracks, searches them with natural
language and turns the results into recommendations and playlists.

Commands talk to a running "moodify serve" by default. Pass --server ""
to open the database directly while no server is running.

Examples:
  moodify serve
  moodify ingest --limit 50
  moodify search rainy sunday morning
  moodify recommend -k 10 songs for a late night drive
  moodify playlist create "gym motivation"`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&a.serverURL, "server", defaultServerURL, "server URL (empty = use local storage directly)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format: text or json")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.serveCmd(),
		a.ingestCmd(),
		a.searchCmd(),
		a.recommendCmd(),
		a.playlistCmd(),
		a.lyricsCmd(),
		a.statusCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so "moodify serve" picks up the
// project config during development. Returns the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func (a *app) setup() (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, resolved, err := loadConfig(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || a.debug
	logger, err := utils.NewLoggerWithFile(debug, utils.LogFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

func (a *app) format() (cli.OutputFormat, error) {
	return cli.ParseOutputFormat(a.output)
}

// backend returns the server client, or local components when --server is empty.
// The returned func releases whatever was opened.
func (a *app) backend(ctx context.Context) (backend, func(), error) {
	if a.serverURL != "" {
		return cli.NewClient(a.serverURL, clientTimeout), func() {}, nil
	}
	cfg, logger, err := a.setup()
	if err != nil {
		return nil, nil, err
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return direct{c: components}, func() {
		components.Close()
		_ = logger.Sync()
	}, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "moodify version %s\n", version)
		},
	}
}
