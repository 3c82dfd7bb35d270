// Package embedder is the opaque text -> vector capability (spec.md §7):
// the core treats it as an external collaborator, never a computed value.
package embedder

import "context"

// Embedder turns text into dense embeddings. Implementations may prefix
// text differently for documents vs. queries (asymmetric models like BGE
// expect "passage: "/"query: " prefixes).
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
