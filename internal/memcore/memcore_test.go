package memcore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/decay"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/graphstore"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) *MemoryCore {
	t.Helper()
	dir := t.TempDir()
	blocks, err := blockstore.New(filepath.Join(dir, "blocks"), filepath.Join(dir, "archive"), nil)
	require.NoError(t, err)

	graph := graphstore.NewMemoryStore()
	vectors := vectorstore.NewMemoryStore()
	emb := embedder.NewDeterministic(384)
	counter := tokencount.NewHeuristic(4)

	cfg := retriever.Config{DefaultTopK: 5, RRFK: 60, Sparse: retriever.SparseBoosts{TitleBoost: 0.2, BodyBoost: 0.1, TagBoost: 0.1, UserBoost: 0.15}}
	return New(blocks, graph, vectors, emb, counter, cfg, nil, nil)
}

func TestRecordGeneratesMonotonicDailyIDs(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	id1, err := mc.Record(ctx, "first", "body one", nil, blockstore.Static, nil)
	require.NoError(t, err)
	id2, err := mc.Record(ctx, "second", "body two", nil, blockstore.Static, nil)
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
	require.Regexp(t, `^KB-\d{8}-\d{3}$`, id1)
	require.Regexp(t, `^KB-\d{8}-\d{3}$`, id2)
}

func TestEncodeIsIdempotentOnUnchangedContent(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	id, err := mc.Record(ctx, "title", "some body text", nil, blockstore.Static, nil)
	require.NoError(t, err)

	require.NoError(t, mc.Encode(ctx, id))
	require.NoError(t, mc.Encode(ctx, id))

	results, err := mc.Vectors.Query(ctx, mustQueryVector(t, mc), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func mustQueryVector(t *testing.T, mc *MemoryCore) []float32 {
	t.Helper()
	v, err := mc.Embed.EmbedQuery(context.Background(), "title some body text")
	require.NoError(t, err)
	return v
}

func TestLinkRejectsSelfLoop(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	id, err := mc.Record(ctx, "title", "body", nil, blockstore.Static, nil)
	require.NoError(t, err)

	err = mc.Link(ctx, id, id, "relates_to", 0.5)
	require.Error(t, err)
}

func TestLinkRejectsArchivedEndpoint(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	source, err := mc.Record(ctx, "source", "body", nil, blockstore.Static, nil)
	require.NoError(t, err)
	target, err := mc.Record(ctx, "target", "body", nil, blockstore.Static, nil)
	require.NoError(t, err)
	require.NoError(t, mc.Blocks.MoveToArchive(ctx, target))

	err = mc.Link(ctx, source, target, "relates_to", 0.5)
	require.Error(t, err)
}

func TestLinkPersistsExplicitOriginRelationship(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	source, err := mc.Record(ctx, "source", "body", nil, blockstore.Static, nil)
	require.NoError(t, err)
	target, err := mc.Record(ctx, "target", "body", nil, blockstore.Static, nil)
	require.NoError(t, err)

	require.NoError(t, mc.Link(ctx, source, target, "relates_to", 0.9))

	neighbours, err := mc.Graph.Neighbours(ctx, source, graphstore.Out)
	require.NoError(t, err)
	require.Len(t, neighbours, 1)
	require.Equal(t, graphstore.OriginExplicit, neighbours[0].Origin)
}

func TestReindexAllResetsAndReEncodesEverything(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	id, err := mc.Record(ctx, "title", "body text here", nil, blockstore.Static, nil)
	require.NoError(t, err)
	require.NoError(t, mc.Encode(ctx, id))

	require.NoError(t, mc.ReindexAll(ctx))

	results, err := mc.Retrieve(ctx, retriever.Request{Query: "body text", TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDecayRunArchivesAndMaterializeSkipsArchived(t *testing.T) {
	mc := newTestCore(t)
	ctx := context.Background()

	id, err := mc.Record(ctx, "stale note", "content that will go stale", nil, blockstore.Static, nil)
	require.NoError(t, err)
	require.NoError(t, mc.Encode(ctx, id))

	b, err := mc.Blocks.Read(ctx, id)
	require.NoError(t, err)
	b.LastAccess = b.LastAccess.AddDate(-1, 0, 0)
	require.NoError(t, mc.Blocks.Write(ctx, b))

	out, err := mc.DecayRun(ctx, decay.ByTime, decay.Params{ThresholdDays: 180})
	require.NoError(t, err)
	require.Equal(t, []string{id}, out.Archived)

	res, err := mc.MaterializeContext(ctx, "stale note", 500)
	require.NoError(t, err)
	require.Empty(t, res.BlockIDs)
}
