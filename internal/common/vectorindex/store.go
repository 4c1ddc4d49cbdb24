// Package vectorindex abstracts the hosted vector index behind a narrow
// contract: upsert vectors, query nearest neighbours. Embedding
// dimensionality is fixed at construction time; stored and queried vectors
// must share it.
package vectorindex

import "context"

// Vector is one stored entry: the document ID, its embedding, and the
// metadata echoed back on query.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// Match is one query result, ordered by descending similarity score.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Store is the index contract both backends satisfy.
type Store interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
}
