// Package compressor implements spec.md §4.6: reduce an ordered sequence of
// blocks to fit a token budget T, preferring a reasoner-backed map-reduce
// summarization and falling back to deterministic sentence-boundary
// truncation when no reasoning model is configured or the reasoner fails.
//
// Grounded on contextd's internal/compression package: the map-reduce
// orchestration generalizes HybridCompressor's routing shape (hybrid.go)
// from a target-ratio to a target-token-count, and the truncation fallback
// reuses ExtractiveCompressor's sentence-boundary splitting (extractive.go).
package compressor

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/reasoner"
	"github.com/fyrsmithlabs/memcore/internal/secrets"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"go.uber.org/zap"
)

// Result is the outcome of a Compress call.
type Result struct {
	Content    string
	TokenCount int
	BlockIDs   []string
	Downgraded bool // true if map-reduce was attempted but fell back
}

// Compressor reduces a set of blocks to fit a token budget.
type Compressor struct {
	reasoner reasoner.Reasoner // nil means no reasoning model configured
	scrubber secrets.Scrubber
	counter  tokencount.Counter
	logger   *obslog.Logger
}

func New(r reasoner.Reasoner, scrubber secrets.Scrubber, counter tokencount.Counter, logger *obslog.Logger) *Compressor {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Compressor{reasoner: r, scrubber: scrubber, counter: counter, logger: logger}
}

func header(b *blockstore.Block) string {
	return fmt.Sprintf("## %s (%s)\n", b.Title, b.ID)
}

func overheadTokens(c tokencount.Counter, b *blockstore.Block) int {
	return c.Count(header(b))
}

// Compress implements spec.md §4.6. blocks must already be in the desired
// order (the ContextBuilder's retrieval order).
func (c *Compressor) Compress(ctx context.Context, blocks []*blockstore.Block, target int) (*Result, error) {
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}

	total := 0
	for _, b := range blocks {
		total += c.counter.Count(b.Body) + overheadTokens(c.counter, b)
	}
	if total <= target {
		return &Result{Content: concatenate(blocks), TokenCount: total, BlockIDs: ids}, nil
	}

	if c.reasoner != nil {
		res, err := c.mapReduce(ctx, blocks, target)
		if err == nil {
			return res, nil
		}
		c.logger.Warn(ctx, "compressor: map-reduce failed, downgrading to truncation fallback", zap.Error(err))
	}

	res := c.truncationFallback(blocks, target)
	res.Downgraded = true
	return res, nil
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

// mapReduce implements the reasoner-backed path of spec.md §4.6: per-block
// summaries bounded by ⌊T/(|B|+1)⌋ tokens (Map), then a final summary of the
// concatenated summaries bounded by T (Reduce), re-checked and truncated at
// a sentence boundary if the reducer still overshoots.
func (c *Compressor) mapReduce(ctx context.Context, blocks []*blockstore.Block, target int) (*Result, error) {
	ids := make([]string, len(blocks))
	perBlockBudget := target / (len(blocks) + 1)
	if perBlockBudget < 1 {
		perBlockBudget = 1
	}

	summaries := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
		prompt := c.summarizePrompt(b, perBlockBudget)
		text, err := c.reasoner.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("compressor: map phase block %s: %w", b.ID, err)
		}
		summaries[i] = fmt.Sprintf("%s: %s", b.Title, strings.TrimSpace(text))
	}

	reducePrompt := c.reducePrompt(summaries, target)
	final, err := c.reasoner.Complete(ctx, reducePrompt)
	if err != nil {
		return nil, fmt.Errorf("compressor: reduce phase: %w", err)
	}
	final = strings.TrimSpace(final)

	if c.counter.Count(final) > target {
		final = truncateAtSentenceBoundary(final, target, c.counter)
	}

	return &Result{Content: final, TokenCount: c.counter.Count(final), BlockIDs: ids}, nil
}

func (c *Compressor) summarizePrompt(b *blockstore.Block, budgetTokens int) string {
	body := b.Body
	if c.scrubber != nil {
		body = c.scrubber.Scrub(body).Scrubbed
	}
	return fmt.Sprintf(
		"Summarize the following note in at most %d tokens. Preserve concrete facts and named entities.\n\nTitle: %s\n\n%s",
		budgetTokens, b.Title, body,
	)
}

func (c *Compressor) reducePrompt(summaries []string, budgetTokens int) string {
	joined := strings.Join(summaries, "\n\n")
	if c.scrubber != nil {
		joined = c.scrubber.Scrub(joined).Scrubbed
	}
	return fmt.Sprintf(
		"Combine the following summaries into a single coherent summary of at most %d tokens. Do not introduce facts absent from the input.\n\n%s",
		budgetTokens, joined,
	)
}

// truncationFallback implements spec.md §4.6's non-reasoner path: allocate
// tokens per block body, truncating each at a sentence boundary. The header
// and block separator written alongside every body are unbudgeted text, so
// their tokens are reserved out of target up front — otherwise the sum of
// per-block output can exceed target even though each body individually
// stays within its allotted share (spec.md §4.6's "output always fits T").
func (c *Compressor) truncationFallback(blocks []*blockstore.Block, target int) *Result {
	ids := make([]string, len(blocks))
	const separator = "\n\n"

	overheadTotal := 0
	for _, b := range blocks {
		overheadTotal += overheadTokens(c.counter, b) + c.counter.Count(separator)
	}
	bodyBudget := target - overheadTotal
	if bodyBudget < len(blocks) {
		bodyBudget = len(blocks)
	}
	perBlockBudget := bodyBudget / len(blocks)
	if perBlockBudget < 1 {
		perBlockBudget = 1
	}

	var sb strings.Builder
	for i, b := range blocks {
		ids[i] = b.ID
		sb.WriteString(header(b))
		sb.WriteString(truncateAtSentenceBoundary(b.Body, perBlockBudget, c.counter))
		sb.WriteString(separator)
	}

	content := sb.String()
	return &Result{Content: content, TokenCount: c.counter.Count(content), BlockIDs: ids}
}

// splitSentences mirrors ExtractiveCompressor's simple sentence boundary
// detection: accumulate runes until '.', '!' or '?', treating anything
// shorter than 10 characters as not yet a complete sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if len(sentence) > 10 {
				sentences = append(sentences, sentence)
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		sentence := strings.TrimSpace(current.String())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// truncateAtSentenceBoundary keeps whole sentences from the start of text
// while counter.Count of the accumulated result stays within budget. If a
// single leading sentence already exceeds budget, the text is hard-cut at
// the character level as a last resort.
func truncateAtSentenceBoundary(text string, budget int, counter tokencount.Counter) string {
	if counter.Count(text) <= budget {
		return text
	}

	sentences := splitSentences(text)
	var kept strings.Builder
	for _, s := range sentences {
		candidate := kept.String()
		if candidate != "" {
			candidate += " "
		}
		candidate += s
		if counter.Count(candidate) > budget {
			break
		}
		kept.Reset()
		kept.WriteString(candidate)
	}

	if kept.Len() > 0 {
		return kept.String()
	}

	// No single sentence fits; hard-cut by estimated character budget.
	approxChars := budget * 4
	if approxChars >= len(text) {
		return text
	}
	return strings.TrimSpace(text[:approxChars])
}
