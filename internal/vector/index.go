// Package vector provides the in-memory similarity index behind each collection.
package vector

import "context"

// Index stores one vector per id and answers top-k similarity queries.
type Index interface {
	// Upsert inserts vectors, replacing any existing vector with the same id.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Has(id string) bool
	Size() int
	Dimensions() int
	Close() error
}

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
