package retriever

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func newTestRetriever(t *testing.T) (*Retriever, *blockstore.Store, vectorstore.Store, embedder.Embedder) {
	t.Helper()
	dir := t.TempDir()
	store, err := blockstore.New(filepath.Join(dir, "blocks"), filepath.Join(dir, "archive"), nil)
	require.NoError(t, err)

	vectors := vectorstore.NewMemoryStore()
	emb := embedder.NewDeterministic(384)

	cfg := Config{
		DefaultTopK: 5,
		RRFK:        60,
		Sparse:      SparseBoosts{TitleBoost: 0.20, BodyBoost: 0.10, TagBoost: 0.10, UserBoost: 0.15},
	}
	return New(store, vectors, emb, cfg, nil), store, vectors, emb
}

func ingest(t *testing.T, ctx context.Context, store *blockstore.Store, vectors vectorstore.Store, emb embedder.Embedder, id, title, body string, tags []string) {
	t.Helper()
	b := &blockstore.Block{ID: id, Title: title, Body: body, Tags: tags, InformationType: blockstore.Static}
	require.NoError(t, store.Write(ctx, b))

	vec, err := emb.EmbedQuery(ctx, title+" "+body)
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(ctx, []vectorstore.Entry{{ID: id, Vector: vec, Metadata: map[string]interface{}{"title": title}}}))
}

func TestIngestAndRetrieveRanksByRelevance(t *testing.T) {
	r, store, vectors, emb := newTestRetriever(t)
	ctx := context.Background()

	ingest(t, ctx, store, vectors, emb, "KB-1", "NMN precursor of NAD", "NMN boosts NAD levels in cells", nil)
	ingest(t, ctx, store, vectors, emb, "KB-2", "Resveratrol activates sirtuins", "Resveratrol is linked to NAD metabolism", nil)
	ingest(t, ctx, store, vectors, emb, "KB-3", "Unrelated: macrame patterns", "Macrame is a textile craft", nil)

	results, err := r.Retrieve(ctx, Request{Query: "what boosts NAD", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].BlockID, results[1].BlockID}
	require.NotContains(t, ids, "KB-3")
}

func TestExcludeFilterDropsMatchingBlocks(t *testing.T) {
	r, store, vectors, emb := newTestRetriever(t)
	ctx := context.Background()

	ingest(t, ctx, store, vectors, emb, "KB-1", "test notes alpha", "some test content here", nil)
	ingest(t, ctx, store, vectors, emb, "KB-2", "test notes beta", "another test fixture", nil)
	ingest(t, ctx, store, vectors, emb, "KB-3", "meeting notes gamma", "quarterly planning review", nil)
	ingest(t, ctx, store, vectors, emb, "KB-4", "meeting notes delta", "roadmap discussion", nil)
	ingest(t, ctx, store, vectors, emb, "KB-5", "meeting notes epsilon", "budget allocation", nil)

	results, err := r.Retrieve(ctx, Request{Query: "notes", TopK: 5, Exclude: []string{"test"}})
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 3)
	for _, res := range results {
		require.NotEqual(t, "KB-1", res.BlockID)
		require.NotEqual(t, "KB-2", res.BlockID)
	}
}

func TestArchivedBlocksNeverReturned(t *testing.T) {
	r, store, vectors, emb := newTestRetriever(t)
	ctx := context.Background()

	ingest(t, ctx, store, vectors, emb, "KB-1", "database migration notes", "rollback procedure details", nil)
	require.NoError(t, store.MoveToArchive(ctx, "KB-1"))

	results, err := r.Retrieve(ctx, Request{Query: "database migration", TopK: 5})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRetrieveRespectsTopKLimit(t *testing.T) {
	r, store, vectors, emb := newTestRetriever(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ingest(t, ctx, store, vectors, emb, idFor(i), "roadmap planning document", "quarterly roadmap details", nil)
	}

	results, err := r.Retrieve(ctx, Request{Query: "roadmap planning", TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func idFor(i int) string {
	return "KB-" + string(rune('A'+i))
}

// TestFuseRRFOrdersByRankNotRawScore picks cosine/sparse values whose raw
// sum (A=0.99, B=0.90, C=0.46) ranks A above B, but whose per-ranking
// positions fuse to put B above A (spec.md §4.4 step 7, SPEC_FULL.md §9
// scenario 3), proving fuseRRF actually combines rank positions rather
// than falling back to the additive dense+sparse score.
func TestFuseRRFOrdersByRankNotRawScore(t *testing.T) {
	r := &Retriever{cfg: Config{RRFK: 60}}

	candidates := []candidate{
		{block: &blockstore.Block{ID: "KB-A"}, cosineSimilarity: 0.99, sparseScore: 0.00},
		{block: &blockstore.Block{ID: "KB-B"}, cosineSimilarity: 0.40, sparseScore: 0.50},
		{block: &blockstore.Block{ID: "KB-C"}, cosineSimilarity: 0.01, sparseScore: 0.45},
	}

	results := r.rank(candidates, RRF)
	require.Len(t, results, 3)

	order := []string{results[0].BlockID, results[1].BlockID, results[2].BlockID}
	require.Equal(t, []string{"KB-B", "KB-A", "KB-C"}, order)

	k := 60.0
	wantA := 1/(k+1) + 1/(k+3)
	wantB := 1/(k+2) + 1/(k+1)
	wantC := 1/(k+3) + 1/(k+2)
	byID := make(map[string]float64, len(results))
	for _, res := range results {
		byID[res.BlockID] = res.Score
	}
	require.InDelta(t, wantA, byID["KB-A"], 1e-9)
	require.InDelta(t, wantB, byID["KB-B"], 1e-9)
	require.InDelta(t, wantC, byID["KB-C"], 1e-9)
}

func TestRetrieveRRFModeReturnsFusedRanking(t *testing.T) {
	r, store, vectors, emb := newTestRetriever(t)
	ctx := context.Background()

	ingest(t, ctx, store, vectors, emb, "KB-1", "NMN precursor of NAD", "NMN boosts NAD levels in cells", []string{"supplements"})
	ingest(t, ctx, store, vectors, emb, "KB-2", "Resveratrol activates sirtuins", "Resveratrol is linked to NAD metabolism", []string{"supplements"})
	ingest(t, ctx, store, vectors, emb, "KB-3", "Unrelated: macrame patterns", "Macrame is a textile craft", nil)

	results, err := r.Retrieve(ctx, Request{Query: "what boosts NAD", TopK: 2, Mode: RRF})
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].BlockID, results[1].BlockID}
	require.NotContains(t, ids, "KB-3")
	for _, res := range results {
		require.Contains(t, res.Reason, "mode=rrf")
	}
}
