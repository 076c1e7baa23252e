package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/cli"
	"github.com/hyperjump/moodify/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Close()

			srv := server.NewServer(components.Deps(), cfg, logger)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigChan:
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			}

			logger.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("shutdown failed", zap.Error(err))
			}
			return nil
		},
	}
}

func (a *app) ingestCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the next batch of liked tracks",
		Long: `Fetches the next batch of liked tracks, looks up audio features (and
lyrics when enabled) and stores a text and an audio document per track.
Tracks that are already stored are skipped. Run it repeatedly to work
through a large library.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				res, err := b.Ingest(ctx, limit)
				if err != nil {
					return err
				}
				return cli.WriteIngestResult(cmd.OutOrStdout(), res, format)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "tracks to fetch (default from config)")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search liked tracks by mood or description",
		Long: `Search liked tracks by mood or description.

Query is all remaining arguments joined by spaces, so multi-word queries
work with or without quotes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := buildQuery(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				res, err := b.Search(ctx, query, k)
				if err != nil {
					return err
				}
				return cli.WriteSearchResults(cmd.OutOrStdout(), res, format)
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of results (default from config)")
	return cmd
}

func (a *app) recommendCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "recommend <query>",
		Short: "Recommend new tracks seeded by matching liked tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := buildQuery(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				rec, err := b.Recommend(ctx, query, k)
				if err != nil {
					return err
				}
				return cli.WriteRecommendation(cmd.OutOrStdout(), rec, format)
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of tracks (default from config)")
	return cmd
}

func (a *app) playlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Create and extend moodify playlists",
	}

	var k int
	create := &cobra.Command{
		Use:   "create <query>",
		Short: "Create a private playlist named after the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := buildQuery(args)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				res, err := b.CreatePlaylist(ctx, query, k)
				if err != nil {
					return err
				}
				return cli.WritePlaylist(cmd.OutOrStdout(), res, format)
			})
		},
	}
	create.Flags().IntVarP(&k, "top-k", "k", 0, "number of matches and recommendations (default from config)")

	add := &cobra.Command{
		Use:   "add <playlist-id> <track-id>...",
		Short: "Add tracks to a playlist moodify created",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				if err := b.AddTracks(ctx, args[0], args[1:]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d tracks to %s\n", len(args)-1, args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(create, add)
	return cmd
}

func (a *app) lyricsCmd() *cobra.Command {
	var artist, title string
	cmd := &cobra.Command{
		Use:   "lyrics",
		Short: "Look up the lyrics of a song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				text, err := b.Lyrics(ctx, artist, title)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&artist, "artist", "", "artist name")
	cmd.Flags().StringVar(&title, "title", "", "song title")
	_ = cmd.MarkFlagRequired("artist")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored collections and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, b backend, format cli.OutputFormat) error {
				st, err := b.Status(ctx)
				if err != nil {
					return err
				}
				return cli.WriteStatus(cmd.OutOrStdout(), st, format)
			})
		},
	}
}

// run validates --output, opens the backend and calls fn.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, b backend, format cli.OutputFormat) error) error {
	format, err := a.format()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, release, err := a.backend(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, b, format)
}

// buildQuery joins positional args so multi-word queries work with or without quoting.
func buildQuery(args []string) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return "", errors.New("query must not be empty")
	}
	return query, nil
}
