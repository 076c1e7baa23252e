package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/collection"
	"github.com/hyperjump/moodify/internal/lease"
	"github.com/hyperjump/moodify/internal/lyrics"
	"github.com/hyperjump/moodify/internal/metrics"
	"github.com/hyperjump/moodify/internal/models"
)

// DefaultMaxLimit is the largest page the liked-tracks endpoint serves.
const DefaultMaxLimit = 50

// Pipeline runs FETCH_BATCH -> BUILD_DOCUMENTS -> COMMIT for one user at a time.
type Pipeline struct {
	store    *collection.Store
	lyrics   lyrics.Source
	locker   lease.Locker
	maxLimit int
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for batch progress.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithLyrics sets the lyrics source. Without it lyrics are always empty.
func WithLyrics(src lyrics.Source) Option {
	return func(p *Pipeline) { p.lyrics = src }
}

// WithLocker sets the per-user lease implementation.
func WithLocker(l lease.Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

// WithMaxLimit caps the batch size.
func WithMaxLimit(n int) Option {
	return func(p *Pipeline) { p.maxLimit = n }
}

// NewPipeline creates a pipeline writing into store.
func NewPipeline(store *collection.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		lyrics:   lyrics.Noop{},
		maxLimit: DefaultMaxLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.locker == nil {
		p.locker = lease.NewLocal()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Ingest fetches up to limit liked tracks from src and commits a text and an
// audio document for every track not already stored. Nothing is committed
// when any step fails.
func (p *Pipeline) Ingest(ctx context.Context, userID string, src Source, limit int) (*models.IngestResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", apperr.ErrInvalidArgument)
	}
	if limit <= 0 || limit > p.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", apperr.ErrInvalidArgument, p.maxLimit, limit)
	}

	release, err := p.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	result := &models.IngestResult{BatchID: uuid.NewString(), UserID: userID}
	log := p.logger.With(zap.String("batch_id", result.BatchID), zap.String("user_id", userID))

	err = p.run(ctx, log, src, limit, result)
	outcome := "success"
	if err != nil {
		outcome = outcomeOf(err)
		log.Warn("ingestion failed", zap.String("outcome", outcome), zap.Error(err))
	} else {
		log.Info("ingestion committed",
			zap.Int("offset", result.Offset),
			zap.Int("fetched", result.Fetched),
			zap.Int("skipped", result.Skipped),
			zap.Int("count", result.Count),
			zap.Duration("elapsed", time.Since(start)))
	}
	metrics.ObserveIngest(outcome, result.Count, result.Count, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, src Source, limit int, result *models.IngestResult) error {
	text, err := p.store.TextCollection(ctx, result.UserID)
	if err != nil {
		return classify("open text collection", err)
	}
	audio, err := p.store.AudioCollection(ctx, result.UserID)
	if err != nil {
		return classify("open audio collection", err)
	}

	// FETCH_BATCH
	count, err := text.Count(ctx)
	if err != nil {
		return classify("count text collection", err)
	}
	result.Offset = Offset(count, limit)
	tracks, err := src.FetchLikedTracks(ctx, limit, result.Offset)
	if err != nil {
		return classify("fetch liked tracks", err)
	}
	tracks = dedupe(tracks)
	result.Fetched = len(tracks)

	pending, err := p.pending(ctx, text, audio, tracks)
	if err != nil {
		return classify("check stored tracks", err)
	}
	result.Skipped = len(tracks) - len(pending)
	if len(pending) == 0 {
		log.Debug("nothing new to ingest", zap.Int("fetched", len(tracks)))
		return nil
	}

	// BUILD_DOCUMENTS
	textDocs := make([]*models.Document, 0, len(pending))
	audioDocs := make([]*models.Document, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		features, err := src.FetchAudioFeatures(ctx, t.ID)
		if err != nil {
			return classify(fmt.Sprintf("fetch audio features for %s", t.ID), err)
		}
		t.Features = features
		t.Lyrics = p.lookupLyrics(ctx, log, t)

		textDocs = append(textDocs, TextDocument(t))
		audioDocs = append(audioDocs, AudioDocument(t))
		ids = append(ids, t.ID)
	}

	// COMMIT
	err = p.store.Commit(ctx,
		collection.Write{Collection: text, Documents: textDocs, IDs: ids},
		collection.Write{Collection: audio, Documents: audioDocs, IDs: ids},
	)
	if err != nil {
		return classify("commit", err)
	}
	result.Count = len(ids)
	return nil
}

// pending returns the tracks missing from either collection. Tracks stored
// in both are skipped; a track with only one side is rebuilt.
func (p *Pipeline) pending(ctx context.Context, text, audio *collection.Collection, tracks []*models.TrackRecord) ([]*models.TrackRecord, error) {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	inText, err := text.Has(ctx, ids)
	if err != nil {
		return nil, err
	}
	inAudio, err := audio.Has(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.TrackRecord, 0, len(tracks))
	for _, t := range tracks {
		if !inText[t.ID] || !inAudio[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// lookupLyrics never fails the batch: misses and provider errors yield "".
func (p *Pipeline) lookupLyrics(ctx context.Context, log *zap.Logger, t *models.TrackRecord) string {
	if t.Lyrics != "" || len(t.Artists) == 0 {
		return t.Lyrics
	}
	text, err := p.lyrics.Lookup(ctx, t.Name, t.Artists[0])
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Debug("lyrics lookup failed", zap.String("track_id", t.ID), zap.Error(err))
		}
		return ""
	}
	return text
}

func dedupe(tracks []*models.TrackRecord) []*models.TrackRecord {
	seen := make(map[string]bool, len(tracks))
	out := tracks[:0:0]
	for _, t := range tracks {
		if t == nil || t.ID == "" || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// classify keeps rate-limit, auth and cancellation errors as they are and
// wraps everything else in apperr.ErrIngestionFailed. The cause is flattened
// to text so no other kind (forbidden, not found) leaks out of the batch.
func classify(stage string, err error) error {
	switch {
	case errors.Is(err, apperr.ErrRateLimited),
		errors.Is(err, apperr.ErrAuthRequired),
		errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", stage, err)
	default:
		return fmt.Errorf("%w: %s: %v", apperr.ErrIngestionFailed, stage, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperr.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, apperr.ErrAuthRequired):
		return "auth_required"
	default:
		return "failed"
	}
}
