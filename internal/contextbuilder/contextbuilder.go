// Package contextbuilder implements spec.md §4.5: given a goal and a token
// budget, retrieve relevant blocks and assemble as much of their content as
// fits, falling back to the Compressor when the full retrieved set would
// overflow the budget.
//
// Grounded on contextd's internal/folding budget arithmetic
// (BudgetTracker/Branch.BudgetRemaining), generalized from per-branch token
// budgets to per-retrieval-result budgets.
package contextbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/compressor"
	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"go.uber.org/zap"
)

// Result is the materialized context (spec.md §4.5 step 3).
type Result struct {
	Content    string
	BlockIDs   []string
	TokenCount int
	MaxTokens  int
	Compressed bool
}

// ContextBuilder assembles retrieval results into a token-budgeted context.
type ContextBuilder struct {
	blocks   *blockstore.Store
	retrieve *retriever.Retriever
	compress *compressor.Compressor
	counter  tokencount.Counter
	logger   *obslog.Logger
}

func New(blocks *blockstore.Store, retrieve *retriever.Retriever, compress *compressor.Compressor, counter tokencount.Counter, logger *obslog.Logger) *ContextBuilder {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &ContextBuilder{blocks: blocks, retrieve: retrieve, compress: compress, counter: counter, logger: logger}
}

func header(b *blockstore.Block) string {
	return fmt.Sprintf("## %s (%s)\n", b.Title, b.ID)
}

func overhead(c tokencount.Counter, b *blockstore.Block) int {
	return c.Count(header(b))
}

// Materialize implements spec.md §4.5. maxTokens must be positive.
func (c *ContextBuilder) Materialize(ctx context.Context, goal string, maxTokens int) (*Result, error) {
	if maxTokens <= 0 {
		return nil, memerr.New("contextbuilder.Materialize", "", memerr.Invalid, fmt.Errorf("max_tokens must be positive"))
	}

	results, err := c.retrieve.Retrieve(ctx, retriever.Request{Query: goal})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Result{MaxTokens: maxTokens}, nil
	}

	loaded := make([]*blockstore.Block, 0, len(results))
	for _, r := range results {
		b, err := c.blocks.Read(ctx, r.BlockID)
		if err != nil {
			c.logger.Warn(ctx, "contextbuilder: skipping unreadable block", zap.String("block_id", r.BlockID), zap.Error(err))
			continue
		}
		loaded = append(loaded, b)
	}
	if len(loaded) == 0 {
		return &Result{MaxTokens: maxTokens}, nil
	}

	total := 0
	for _, b := range loaded {
		total += c.counter.Count(b.Body) + overhead(c.counter, b)
	}

	if total <= maxTokens {
		ids := make([]string, len(loaded))
		for i, b := range loaded {
			ids[i] = b.ID
		}
		return &Result{Content: concatenate(loaded), BlockIDs: ids, TokenCount: total, MaxTokens: maxTokens}, nil
	}

	cr, err := c.compress.Compress(ctx, loaded, maxTokens)
	if err != nil {
		return nil, err
	}
	return &Result{Content: cr.Content, BlockIDs: cr.BlockIDs, TokenCount: cr.TokenCount, MaxTokens: maxTokens, Compressed: true}, nil
}

func concatenate(blocks []*blockstore.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(header(b))
		sb.WriteString(b.Body)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
