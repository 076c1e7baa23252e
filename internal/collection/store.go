// Package collection implements the per-user dual collection store: one text
// and one audio collection per user, joined by track id.
package collection

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/embedding"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/storage"
	"github.com/hyperjump/moodify/internal/vector"
)

// Modality selects which of a user's two collections is meant.
type Modality string

const (
	Text  Modality = "text"
	Audio Modality = "audio"
)

// Name returns the collection name for a user and modality.
func Name(userID string, m Modality) string {
	return fmt.Sprintf("%s_%s_collection", userID, m)
}

// Store hands out collection handles. It is safe for concurrent use; the
// same handle is returned for the same name for the life of the Store.
type Store struct {
	storage  storage.Storage
	embedder embedding.Embedder
	logger   *zap.Logger

	mu          sync.Mutex
	collections map[string]*Collection
	group       singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store over st, embedding content with emb.
func NewStore(st storage.Storage, emb embedding.Embedder, opts ...Option) *Store {
	s := &Store{
		storage:     st,
		embedder:    emb,
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// TextCollection returns the user's text collection, creating it if needed.
func (s *Store) TextCollection(ctx context.Context, userID string) (*Collection, error) {
	return s.Collection(ctx, userID, Text)
}

// AudioCollection returns the user's audio collection, creating it if needed.
func (s *Store) AudioCollection(ctx context.Context, userID string) (*Collection, error) {
	return s.Collection(ctx, userID, Audio)
}

// Collection gets or creates the collection for userID and m.
func (s *Store) Collection(ctx context.Context, userID string, m Modality) (*Collection, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", apperr.ErrInvalidArgument)
	}
	name := Name(userID, m)

	s.mu.Lock()
	c, ok := s.collections[name]
	s.mu.Unlock()
	if ok {
		return c, nil
	}

	v, err, _ := s.group.Do(name, func() (interface{}, error) {
		s.mu.Lock()
		if c, ok := s.collections[name]; ok {
			s.mu.Unlock()
			return c, nil
		}
		s.mu.Unlock()

		c, err := s.open(ctx, name)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.collections[name] = c
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Collection), nil
}

// open ensures the stored collection and hydrates its index from storage.
func (s *Store) open(ctx context.Context, name string) (*Collection, error) {
	dims := s.embedder.Dimensions()
	info, err := s.storage.EnsureCollection(ctx, name, dims, s.embedder.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
	}
	if info.Dimensions != dims {
		return nil, fmt.Errorf("%w: collection %s holds %d-dimension vectors from %s, embedder %s produces %d",
			apperr.ErrProviderFailure, name, info.Dimensions, info.Model, s.embedder.Name(), dims)
	}

	idx, err := vector.NewMemoryIndex(dims)
	if err != nil {
		return nil, err
	}
	err = s.storage.ScanEmbeddings(ctx, name, func(id string, vec []float32) error {
		return idx.Upsert(ctx, []string{id}, [][]float32{vec})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load collection %s: %v", apperr.ErrProviderFailure, name, err)
	}

	s.logger.Debug("collection opened",
		zap.String("collection", name),
		zap.Int("documents", idx.Size()),
		zap.String("model", info.Model))
	return &Collection{name: name, store: s, index: idx}, nil
}

// Write pairs documents with their ids for one collection.
type Write struct {
	Collection *Collection
	Documents  []*models.Document
	IDs        []string
}

// Commit embeds every document, then persists all writes in a single
// transaction. Either every write lands or none does.
func (s *Store) Commit(ctx context.Context, writes ...Write) error {
	records := make([]storage.Write, 0, len(writes))
	embedded := make([][][]float32, len(writes))
	for i, w := range writes {
		if len(w.Documents) != len(w.IDs) {
			return fmt.Errorf("%w: %d documents but %d ids for %s",
				apperr.ErrInvalidArgument, len(w.Documents), len(w.IDs), w.Collection.name)
		}
		texts := make([]string, len(w.Documents))
		for j, doc := range w.Documents {
			if doc.ID == "" {
				doc.ID = w.IDs[j]
			}
			if doc.ID != w.IDs[j] {
				return fmt.Errorf("%w: document id %q does not match id %q", apperr.ErrInvalidArgument, doc.ID, w.IDs[j])
			}
			for k, v := range doc.Metadata {
				if !v.IsScalar() {
					return fmt.Errorf("%w: metadata field %q of %s is %s, encode it first",
						apperr.ErrInvalidArgument, k, doc.ID, v.Kind())
				}
			}
			texts[j] = doc.Content
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed documents for %s: %w", w.Collection.name, err)
		}
		embedded[i] = vecs

		batch := storage.Write{Collection: w.Collection.name, Records: make([]storage.Record, len(w.Documents))}
		for j, doc := range w.Documents {
			batch.Records[j] = storage.Record{Document: doc, Embedding: vecs[j]}
		}
		records = append(records, batch)
	}

	if err := s.storage.UpsertDocuments(ctx, records...); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
	}

	for i, w := range writes {
		if err := w.Collection.index.Upsert(ctx, w.IDs, embedded[i]); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrProviderFailure, err)
		}
	}
	return nil
}

// Collections lists every stored collection.
func (s *Store) Collections(ctx context.Context) ([]*storage.CollectionInfo, error) {
	return s.storage.ListCollections(ctx)
}
