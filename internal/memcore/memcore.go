// Package memcore is the constructed-engine orchestrator (spec.md §4.9): a
// MemoryCore struct holding every component (BlockStore, GraphStore,
// VectorStore, Embedder, TokenCounter, Retriever, ContextBuilder,
// Compressor, Reflector, DecayManager) constructed once via New and passed
// explicitly — no package-level singleton, the same shift contextd's design
// notes describe from a global memory-system singleton to a constructed
// engine.
package memcore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/compressor"
	"github.com/fyrsmithlabs/memcore/internal/contextbuilder"
	"github.com/fyrsmithlabs/memcore/internal/decay"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/graphstore"
	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/reasoner"
	"github.com/fyrsmithlabs/memcore/internal/reflection"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/fyrsmithlabs/memcore/internal/secrets"
	"github.com/fyrsmithlabs/memcore/internal/telemetry"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"go.uber.org/zap"
)

// MemoryCore wires every component together and enforces the cross-store
// invariants spec.md §4.9 names.
type MemoryCore struct {
	Blocks  *blockstore.Store
	Graph   graphstore.Store
	Vectors vectorstore.Store
	Embed   embedder.Embedder
	Counter tokencount.Counter

	Retriever      *retriever.Retriever
	ContextBuilder *contextbuilder.ContextBuilder
	Compressor     *compressor.Compressor
	Reflector      *reflection.Reflector
	Decay          *decay.Manager

	metrics *telemetry.Metrics
	logger  *obslog.Logger

	mu       sync.Mutex
	idDate   string
	idSeq    int
}

// Option configures optional MemoryCore collaborators.
type Option func(*MemoryCore)

// WithMetrics attaches a telemetry.Metrics instance.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(mc *MemoryCore) { mc.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l *obslog.Logger) Option {
	return func(mc *MemoryCore) { mc.logger = l }
}

// New constructs a MemoryCore from already-built components, then wires the
// derived components (Retriever, ContextBuilder, Compressor, Reflector,
// DecayManager) around them. Wiring which concrete implementation backs
// Graph/Vectors/Embed/Reasoner is the caller's responsibility (cmd/memcore
// reads config.Config and picks chromem vs qdrant, fastembed vs http,
// langchain vs none). reason and scrub may be nil.
func New(
	blocks *blockstore.Store,
	graph graphstore.Store,
	vectors vectorstore.Store,
	embed embedder.Embedder,
	counter tokencount.Counter,
	retrieveCfg retriever.Config,
	reason reasoner.Reasoner,
	scrub secrets.Scrubber,
	opts ...Option,
) *MemoryCore {
	mc := &MemoryCore{
		Blocks:  blocks,
		Graph:   graph,
		Vectors: vectors,
		Embed:   embed,
		Counter: counter,
		logger:  obslog.NewNop(),
	}
	for _, opt := range opts {
		opt(mc)
	}

	mc.Retriever = retriever.New(blocks, vectors, embed, retrieveCfg, mc.logger)
	mc.Compressor = compressor.New(reason, scrub, counter, mc.logger)
	mc.ContextBuilder = contextbuilder.New(blocks, mc.Retriever, mc.Compressor, counter, mc.logger)
	mc.Reflector = reflection.New(blocks, graph, mc.Retriever, reason, scrub, mc.logger)
	mc.Decay = decay.New(blocks, vectors, embed, mc.logger)

	return mc
}

// Record implements spec.md §4.9's record operation: creates a block and
// returns its id without encoding it.
func (mc *MemoryCore) Record(ctx context.Context, title, body string, tags []string, infoType blockstore.InformationType, extra map[string]interface{}) (string, error) {
	id := mc.nextID()
	now := time.Now()
	b := &blockstore.Block{
		ID:              id,
		Title:           title,
		Body:            body,
		Tags:            tags,
		CreatedAt:       now,
		UpdatedAt:       now,
		InformationType: infoType,
		Extra:           extra,
	}
	if err := mc.Blocks.Write(ctx, b); err != nil {
		return "", err
	}
	return id, nil
}

// Encode implements spec.md §4.9's encode operation: idempotent if
// content_hash has not changed since the last encode, otherwise the vector
// entry is replaced. The computed hash is persisted back onto the block so
// the next Encode call can detect "unchanged".
func (mc *MemoryCore) Encode(ctx context.Context, id string) error {
	b, err := mc.Blocks.Read(ctx, id)
	if err != nil {
		return err
	}

	hash := blockstore.ComputeContentHash(b)
	if b.ContentHash != "" && b.ContentHash == hash {
		if mc.metrics != nil {
			mc.metrics.EncodeTotal.WithLabelValues("skipped_unchanged").Inc()
		}
		return nil
	}

	vec, err := mc.Embed.EmbedDocuments(ctx, []string{b.Title + " " + b.Body})
	if err != nil {
		if mc.metrics != nil {
			mc.metrics.EncodeTotal.WithLabelValues("failed").Inc()
		}
		return memerr.New("memcore.Encode", id, memerr.EmbeddingUnavailable, err)
	}

	err = mc.Vectors.Upsert(ctx, []vectorstore.Entry{{
		ID:     id,
		Vector: vec[0],
		Metadata: map[string]interface{}{
			"title":            b.Title,
			"tags":             b.Tags,
			"information_type": string(b.InformationType),
			"content_hash":     hash,
		},
	}})
	if err != nil {
		if mc.metrics != nil {
			mc.metrics.EncodeTotal.WithLabelValues("failed").Inc()
		}
		return memerr.New("memcore.Encode", id, memerr.Unavailable, err)
	}

	b.ContentHash = hash
	if err := mc.Blocks.Write(ctx, b); err != nil {
		return err
	}

	if mc.metrics != nil {
		mc.metrics.EncodeTotal.WithLabelValues("encoded").Inc()
	}
	return nil
}

// Link implements spec.md §4.9's link operation.
func (mc *MemoryCore) Link(ctx context.Context, source, target, kind string, weight float64) error {
	if source == target {
		return memerr.New("memcore.Link", source, memerr.Invalid, fmt.Errorf("self-loops are not allowed"))
	}

	sb, err := mc.Blocks.Read(ctx, source)
	if err != nil {
		return err
	}
	if sb.Archived {
		return memerr.New("memcore.Link", source, memerr.Invalid, fmt.Errorf("source block is archived"))
	}

	tb, err := mc.Blocks.Read(ctx, target)
	if err != nil {
		return err
	}
	if tb.Archived {
		return memerr.New("memcore.Link", target, memerr.Invalid, fmt.Errorf("target block is archived"))
	}

	return mc.Graph.Upsert(ctx, graphstore.Relationship{
		Source: source,
		Target: target,
		Kind:   kind,
		Weight: weight,
		Origin: graphstore.OriginExplicit,
	})
}

// Retrieve delegates to the Retriever (spec.md §4.9).
func (mc *MemoryCore) Retrieve(ctx context.Context, req retriever.Request) ([]retriever.Result, error) {
	start := time.Now()
	results, err := mc.Retriever.Retrieve(ctx, req)
	if mc.metrics != nil {
		mode := string(req.Mode)
		if mode == "" {
			mode = string(retriever.Dense)
		}
		mc.metrics.RetrievalDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		mc.metrics.RetrievalResultCount.Observe(float64(len(results)))
	}
	return results, err
}

// Reflect delegates to the Reflector (spec.md §4.9).
func (mc *MemoryCore) Reflect(ctx context.Context, seedID string) (*reflection.Outcome, error) {
	out, err := mc.Reflector.Reflect(ctx, seedID)
	if err == nil && mc.metrics != nil {
		for _, p := range out.Written {
			mc.metrics.ReflectionWritesTotal.WithLabelValues(p.Kind).Inc()
		}
	}
	return out, err
}

// Compress delegates to the Compressor (spec.md §4.9).
func (mc *MemoryCore) Compress(ctx context.Context, ids []string, maxTokens int) (*compressor.Result, error) {
	blocks := make([]*blockstore.Block, 0, len(ids))
	for _, id := range ids {
		b, err := mc.Blocks.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return mc.Compressor.Compress(ctx, blocks, maxTokens)
}

// DecayRun delegates to the DecayManager (spec.md §4.9).
func (mc *MemoryCore) DecayRun(ctx context.Context, policy decay.Policy, params decay.Params) (*decay.Outcome, error) {
	out, err := mc.Decay.Run(ctx, policy, params, time.Now())
	if err == nil && mc.metrics != nil {
		mc.metrics.DecayArchivedTotal.WithLabelValues(string(policy)).Add(float64(len(out.Archived)))
	}
	return out, err
}

// MaterializeContext delegates to the ContextBuilder (spec.md §4.9).
func (mc *MemoryCore) MaterializeContext(ctx context.Context, goal string, maxTokens int) (*contextbuilder.Result, error) {
	res, err := mc.ContextBuilder.Materialize(ctx, goal, maxTokens)
	if err == nil && res.Compressed && mc.metrics != nil {
		mc.metrics.ContextBuilderCompressedTotal.Inc()
	}
	return res, err
}

// ReindexAll implements spec.md §4.9's reindex_all: reset the vector store
// then re-encode every non-archived block.
func (mc *MemoryCore) ReindexAll(ctx context.Context) error {
	if err := mc.Vectors.Reset(ctx); err != nil {
		return err
	}

	blocks, err := mc.Blocks.List(ctx, false)
	if err != nil {
		return err
	}

	var firstErr error
	for _, b := range blocks {
		if err := mc.Encode(ctx, b.ID); err != nil {
			mc.logger.Warn(ctx, "memcore: reindex failed for block", zap.String("block_id", b.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ListBlocks implements spec.md §4.9's list_blocks.
func (mc *MemoryCore) ListBlocks(ctx context.Context, includeArchived bool) ([]*blockstore.Block, error) {
	return mc.Blocks.List(ctx, includeArchived)
}

// ResetVectors implements spec.md §4.9's reset_vectors.
func (mc *MemoryCore) ResetVectors(ctx context.Context) error {
	return mc.Vectors.Reset(ctx)
}

// nextID generates a KB-<YYYYMMDD>-<NNN> id, monotonic per calendar day.
func (mc *MemoryCore) nextID() string {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	today := time.Now().Format("20060102")
	if mc.idDate != today {
		mc.idDate = today
		mc.idSeq = 0
	}
	mc.idSeq++
	return fmt.Sprintf("KB-%s-%03d", today, mc.idSeq)
}
