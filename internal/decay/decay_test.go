package decay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (*blockstore.Store, vectorstore.Store, embedder.Embedder) {
	t.Helper()
	dir := t.TempDir()
	store, err := blockstore.New(filepath.Join(dir, "blocks"), filepath.Join(dir, "archive"), nil)
	require.NoError(t, err)
	return store, vectorstore.NewMemoryStore(), embedder.NewDeterministic(384)
}

func writeBlock(t *testing.T, ctx context.Context, store *blockstore.Store, vectors vectorstore.Store, emb embedder.Embedder, id string, lastAccess time.Time, accessCount int) {
	t.Helper()
	b := &blockstore.Block{
		ID: id, Title: "title " + id, Body: "body " + id,
		InformationType: blockstore.Static,
		LastAccess:      lastAccess,
		AccessCount:     accessCount,
	}
	require.NoError(t, store.Write(ctx, b))

	vec, err := emb.EmbedQuery(ctx, b.Title+" "+b.Body)
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(ctx, []vectorstore.Entry{{ID: id, Vector: vec}}))
}

func TestRunByTimeArchivesStaleBlocks(t *testing.T) {
	store, vectors, emb := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	writeBlock(t, ctx, store, vectors, emb, "KB-1", now.Add(-200*24*time.Hour), 10)
	writeBlock(t, ctx, store, vectors, emb, "KB-2", now.Add(-1*time.Hour), 10)

	m := New(store, vectors, emb, nil)
	out, err := m.Run(ctx, ByTime, Params{ThresholdDays: 180}, now)
	require.NoError(t, err)
	require.Equal(t, []string{"KB-1"}, out.Archived)

	b, err := store.Read(ctx, "KB-1")
	require.NoError(t, err)
	require.True(t, b.Archived)
}

func TestRunByUsageArchivesLowRatioBlocks(t *testing.T) {
	store, vectors, emb := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	writeBlock(t, ctx, store, vectors, emb, "KB-1", now, 1)
	writeBlock(t, ctx, store, vectors, emb, "KB-2", now, 999)

	m := New(store, vectors, emb, nil)
	out, err := m.Run(ctx, ByUsage, Params{UsageThreshold: 0.01}, now)
	require.NoError(t, err)
	require.Equal(t, []string{"KB-1"}, out.Archived)
}

func TestRunBothArchivesEitherCondition(t *testing.T) {
	store, vectors, emb := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	writeBlock(t, ctx, store, vectors, emb, "KB-1", now.Add(-200*24*time.Hour), 500)
	writeBlock(t, ctx, store, vectors, emb, "KB-2", now, 500)

	m := New(store, vectors, emb, nil)
	out, err := m.Run(ctx, Both, Params{ThresholdDays: 180, UsageThreshold: 0.01}, now)
	require.NoError(t, err)
	require.Contains(t, out.Archived, "KB-1")
	require.NotContains(t, out.Archived, "KB-2")
}

func TestRestoreReEncodesBlock(t *testing.T) {
	store, vectors, emb := newHarness(t)
	ctx := context.Background()
	now := time.Now()

	writeBlock(t, ctx, store, vectors, emb, "KB-1", now.Add(-200*24*time.Hour), 1)

	m := New(store, vectors, emb, nil)
	_, err := m.Run(ctx, ByTime, Params{ThresholdDays: 180}, now)
	require.NoError(t, err)

	results, err := vectors.Query(ctx, mustVec(t, ctx, emb, "title KB-1 body KB-1"), 5)
	require.NoError(t, err)
	require.Empty(t, results)

	require.NoError(t, m.Restore(ctx, "KB-1"))

	b, err := store.Read(ctx, "KB-1")
	require.NoError(t, err)
	require.False(t, b.Archived)

	results, err = vectors.Query(ctx, mustVec(t, ctx, emb, "title KB-1 body KB-1"), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func mustVec(t *testing.T, ctx context.Context, emb embedder.Embedder, text string) []float32 {
	t.Helper()
	v, err := emb.EmbedQuery(ctx, text)
	require.NoError(t, err)
	return v
}
