// Package retriever implements the hybrid dense+sparse search algorithm
// (spec.md §4.4): dense kNN seeded from VectorStore, sparse keyword
// boosts layered on top, an exclusion filter, and an optional
// Reciprocal Rank Fusion pass across both rankings.
package retriever

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"go.uber.org/zap"
)

// Mode selects the ranking strategy.
type Mode string

const (
	Dense Mode = "dense"
	RRF   Mode = "rrf"
)

// SparseBoosts holds the keyword-match boost constants (spec.md §6).
type SparseBoosts struct {
	TitleBoost float64
	BodyBoost  float64
	TagBoost   float64
	UserBoost  float64
}

// Config tunes the retriever (spec.md §6).
type Config struct {
	DefaultTopK int
	Sparse      SparseBoosts
	RRFK        int
}

// Result is one ranked hit (spec.md §4.4 step 9).
type Result struct {
	BlockID          string
	Score            float64
	CosineSimilarity float64
	SparseScore      float64
	MatchedBoosts    []string
	Reason           string
}

// Request carries the arguments to Retrieve.
type Request struct {
	Query   string
	TopK    int
	Boost   []string
	Exclude []string
	Mode    Mode
}

// Retriever combines VectorStore, BlockStore, and Embedder into the
// hybrid search algorithm.
type Retriever struct {
	blocks   *blockstore.Store
	vectors  vectorstore.Store
	embed    embedder.Embedder
	cfg      Config
	logger   *obslog.Logger
}

func New(blocks *blockstore.Store, vectors vectorstore.Store, embed embedder.Embedder, cfg Config, logger *obslog.Logger) *Retriever {
	if cfg.RRFK == 0 {
		cfg.RRFK = 60
	}
	if cfg.DefaultTopK == 0 {
		cfg.DefaultTopK = 5
	}
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Retriever{blocks: blocks, vectors: vectors, embed: embed, cfg: cfg, logger: logger}
}

type candidate struct {
	block            *blockstore.Block
	cosineSimilarity float64
	sparseScore      float64
	matchedBoosts    []string
}

// Retrieve runs the hybrid search algorithm and records access on every
// returned block as a side effect (failures logged, never surfaced).
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	if req.TopK <= 0 {
		req.TopK = r.cfg.DefaultTopK
	}
	if req.Mode == "" {
		req.Mode = Dense
	}

	qVec, err := r.embed.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, memerr.New("retriever.Retrieve", "", memerr.EmbeddingUnavailable, err)
	}

	kDense := req.TopK * 4
	if kDense < 20 {
		kDense = 20
	}

	dense, err := r.vectors.Query(ctx, qVec, kDense)
	if err != nil {
		return nil, memerr.New("retriever.Retrieve", "", memerr.Unavailable, err)
	}

	queryTerms := tokenize(req.Query)
	candidates := make([]candidate, 0, len(dense))

	for _, d := range dense {
		b, err := r.blocks.Read(ctx, d.ID)
		if err != nil || b.Archived {
			continue
		}
		if excludedByTerms(b, req.Exclude) {
			continue
		}

		sparse, boosts := scoreSparse(b, queryTerms, req.Boost, r.cfg.Sparse)
		candidates = append(candidates, candidate{
			block:            b,
			cosineSimilarity: float64(d.CosineSimilarity),
			sparseScore:      sparse,
			matchedBoosts:    boosts,
		})
	}

	results := r.rank(candidates, req.Mode)

	if len(results) > req.TopK {
		results = results[:req.TopK]
	}

	for _, res := range results {
		if err := r.blocks.RecordAccess(ctx, res.BlockID, time.Now()); err != nil {
			r.logger.Warn(ctx, "retriever: record_access failed", zap.String("block_id", res.BlockID), zap.Error(err))
		}
	}

	return results, nil
}

func (r *Retriever) rank(candidates []candidate, mode Mode) []Result {
	combined := make([]Result, len(candidates))
	for i, c := range candidates {
		combined[i] = Result{
			BlockID:          c.block.ID,
			Score:            c.cosineSimilarity + c.sparseScore,
			CosineSimilarity: c.cosineSimilarity,
			SparseScore:      c.sparseScore,
			MatchedBoosts:    c.matchedBoosts,
		}
	}

	if mode == RRF {
		combined = r.fuseRRF(candidates, combined)
	}

	sort.Slice(combined, func(i, j int) bool {
		if combined[i].Score != combined[j].Score {
			return combined[i].Score > combined[j].Score
		}
		if combined[i].CosineSimilarity != combined[j].CosineSimilarity {
			return combined[i].CosineSimilarity > combined[j].CosineSimilarity
		}
		return combined[i].BlockID < combined[j].BlockID
	})

	for i := range combined {
		combined[i].Reason = explain(combined[i], mode)
	}

	return combined
}

// fuseRRF replaces each result's Score with the Reciprocal Rank Fusion of
// a dense-only ranking (by cosine_similarity) and a sparse-only ranking
// (by sparse_score), k = cfg.RRFK (spec.md §4.4 step 7).
func (r *Retriever) fuseRRF(candidates []candidate, results []Result) []Result {
	k := float64(r.cfg.RRFK)

	denseOrder := append([]candidate(nil), candidates...)
	sort.Slice(denseOrder, func(i, j int) bool {
		if denseOrder[i].cosineSimilarity != denseOrder[j].cosineSimilarity {
			return denseOrder[i].cosineSimilarity > denseOrder[j].cosineSimilarity
		}
		return denseOrder[i].block.ID < denseOrder[j].block.ID
	})
	denseRank := make(map[string]int, len(denseOrder))
	for i, c := range denseOrder {
		denseRank[c.block.ID] = i + 1
	}

	sparseOrder := append([]candidate(nil), candidates...)
	sort.Slice(sparseOrder, func(i, j int) bool {
		if sparseOrder[i].sparseScore != sparseOrder[j].sparseScore {
			return sparseOrder[i].sparseScore > sparseOrder[j].sparseScore
		}
		return sparseOrder[i].block.ID < sparseOrder[j].block.ID
	})
	sparseRank := make(map[string]int, len(sparseOrder))
	for i, c := range sparseOrder {
		sparseRank[c.block.ID] = i + 1
	}

	for i := range results {
		id := results[i].BlockID
		fused := 1/(k+float64(denseRank[id])) + 1/(k+float64(sparseRank[id]))
		results[i].Score = fused
	}
	return results
}

func explain(res Result, mode Mode) string {
	return fmt.Sprintf("mode=%s cosine=%.4f sparse=%.4f boosts=%v score=%.6f",
		mode, res.CosineSimilarity, res.SparseScore, res.MatchedBoosts, res.Score)
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '-' || r == '_' || isAlnum(r))
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		lower := strings.ToLower(f)
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// wholeWordMatch reports whether term occurs as a case-insensitive
// whole-word match in text.
func wholeWordMatch(text, term string) bool {
	if term == "" {
		return false
	}
	pattern := `(?i)\b` + regexp.QuoteMeta(term) + `\b`
	matched, err := regexp.MatchString(pattern, text)
	return err == nil && matched
}

func tagsText(tags []string) string {
	return strings.Join(tags, " ")
}

// scoreSparse implements spec.md §4.4 steps 3-4: base keyword-match
// boosts plus per-term user boosts.
func scoreSparse(b *blockstore.Block, queryTerms, boostTerms []string, boosts SparseBoosts) (float64, []string) {
	score := 0.0
	tags := tagsText(b.Tags)

	titleMatch, bodyMatch, tagMatch := false, false, false
	for _, term := range queryTerms {
		if !titleMatch && wholeWordMatch(b.Title, term) {
			titleMatch = true
		}
		if !bodyMatch && wholeWordMatch(b.Body, term) {
			bodyMatch = true
		}
		if !tagMatch && wholeWordMatch(tags, term) {
			tagMatch = true
		}
	}
	if titleMatch {
		score += boosts.TitleBoost
	}
	if bodyMatch {
		score += boosts.BodyBoost
	}
	if tagMatch {
		score += boosts.TagBoost
	}

	var matched []string
	for _, term := range boostTerms {
		if wholeWordMatch(b.Title, term) || wholeWordMatch(b.Body, term) || wholeWordMatch(tags, term) {
			score += boosts.UserBoost
			matched = append(matched, term)
		}
	}

	return score, matched
}

func excludedByTerms(b *blockstore.Block, exclude []string) bool {
	tags := tagsText(b.Tags)
	for _, term := range exclude {
		if wholeWordMatch(b.Title, term) || wholeWordMatch(b.Body, term) || wholeWordMatch(tags, term) {
			return true
		}
	}
	return false
}
