// Package vectorstore is the semantic index derivative store (spec.md §4.3):
// embeddings keyed by block id, queryable by cosine similarity. Rebuildable
// from blockstore via reindex_all.
package vectorstore

import "context"

// Entry is a single embedded vector with its carried metadata, upserted
// under the owning block's id.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchResult is a single ranked hit from Query.
type SearchResult struct {
	ID                string
	Score             float32 // cosine similarity, [-1, 1]
	CosineSimilarity  float32 // duplicate of Score, named for tie-break clarity (spec.md §4.4 step 8)
	Metadata          map[string]interface{}
}

// Store is the VectorStore capability contract (spec.md §4.3):
// upsert/delete by id, cosine-similarity query, and a full reset used by
// reindex_all.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
	Reset(ctx context.Context) error
}
