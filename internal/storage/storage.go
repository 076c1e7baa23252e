// Package storage persists collections, their documents and embeddings.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/moodify/internal/models"
)

// Storage is the durable side of the collection store.
type Storage interface {
	// EnsureCollection creates the collection if missing and returns its stored info.
	EnsureCollection(ctx context.Context, name string, dimensions int, model string) (*CollectionInfo, error)
	ListCollections(ctx context.Context) ([]*CollectionInfo, error)

	// UpsertDocuments writes every batch in a single transaction.
	UpsertDocuments(ctx context.Context, writes ...Write) error
	GetDocuments(ctx context.Context, collection string, ids []string) ([]*models.Document, error)
	ExistingIDs(ctx context.Context, collection string, ids []string) (map[string]bool, error)
	CountDocuments(ctx context.Context, collection string) (int, error)
	// ScanEmbeddings calls fn for every stored embedding of the collection.
	ScanEmbeddings(ctx context.Context, collection string, fn func(id string, vec []float32) error) error

	Close() error
}

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name       string    `json:"name"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	Documents  int       `json:"documents"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record is a document with its embedding.
type Record struct {
	Document  *models.Document
	Embedding []float32
}

// Write is a batch of records destined for one collection.
type Write struct {
	Collection string
	Records    []Record
}
