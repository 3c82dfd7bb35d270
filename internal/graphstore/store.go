package graphstore

import "context"

// Store is the GraphStore capability contract (spec.md §4.2): upsert is
// idempotent on (source, target, kind); neighbours filters by direction and
// optionally by kind; remove deletes a single edge.
type Store interface {
	Upsert(ctx context.Context, rel Relationship) error
	Neighbours(ctx context.Context, id string, dir Direction, kinds ...string) ([]Relationship, error)
	Remove(ctx context.Context, source, target, kind string) error
}
