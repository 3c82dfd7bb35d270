package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rel := Relationship{Source: "a", Target: "b", Kind: "related_to", Weight: 0.5, Origin: OriginExplicit}
	require.NoError(t, s.Upsert(ctx, rel))
	require.NoError(t, s.Upsert(ctx, rel))

	out, err := s.Neighbours(ctx, "a", Out)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestNeighboursRespectsDirectionAndKind(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Relationship{Source: "a", Target: "b", Kind: "related_to"}))
	require.NoError(t, s.Upsert(ctx, Relationship{Source: "c", Target: "a", Kind: "extends"}))

	out, err := s.Neighbours(ctx, "a", Out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].Target)

	in, err := s.Neighbours(ctx, "a", In)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, "c", in[0].Source)

	both, err := s.Neighbours(ctx, "a", Both)
	require.NoError(t, err)
	require.Len(t, both, 2)

	filtered, err := s.Neighbours(ctx, "a", Both, "extends")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "extends", filtered[0].Kind)
}

func TestRemoveDeletesEdge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Relationship{Source: "a", Target: "b", Kind: "related_to"}))
	require.NoError(t, s.Remove(ctx, "a", "b", "related_to"))

	out, err := s.Neighbours(ctx, "a", Out)
	require.NoError(t, err)
	require.Empty(t, out)
}
