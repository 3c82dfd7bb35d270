// Package reflection implements spec.md §4.7: given a seed block, gather
// candidate related blocks (via Retriever and direct graph neighbours), ask
// a reasoning model to propose typed relationships, and persist the
// accepted proposals.
//
// Grounded on contextd's internal/reflection (Analyzer/Correlator shapes)
// repurposed: candidate discovery delegates to the Retriever instead of a
// bespoke pattern analyzer, and the reasoner prompt/parse step follows
// reasoningbank/fact.go's FactExtractor shape (structured extraction with a
// confidence/weight score), generalized from subject-predicate-object facts
// to (target_id, kind, weight) relationship proposals.
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/graphstore"
	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/reasoner"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/fyrsmithlabs/memcore/internal/secrets"
	"go.uber.org/zap"
)

const (
	maxCandidates    = 5
	maxNeighbours    = 5
	bodyPrefixLength = 500
)

// Proposal is a single typed relationship proposed by the reasoning model.
type Proposal struct {
	TargetID string  `json:"target_id"`
	Kind     string  `json:"kind"`
	Weight   float64 `json:"weight"`
}

// Outcome summarizes what a Reflect call did.
type Outcome struct {
	SeedID    string
	Written   []Proposal
	Candidate []string
}

// Reflector runs the candidate-discovery-then-reasoner-proposal pipeline.
type Reflector struct {
	blocks   *blockstore.Store
	graph    graphstore.Store
	retrieve *retriever.Retriever
	reason   reasoner.Reasoner // nil means no reasoning model configured
	scrubber secrets.Scrubber  // nil means no scrubbing
	logger   *obslog.Logger
}

func New(blocks *blockstore.Store, graph graphstore.Store, retrieve *retriever.Retriever, reason reasoner.Reasoner, scrubber secrets.Scrubber, logger *obslog.Logger) *Reflector {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Reflector{blocks: blocks, graph: graph, retrieve: retrieve, reason: reason, scrubber: scrubber, logger: logger}
}

// Reflect implements spec.md §4.7.
func (r *Reflector) Reflect(ctx context.Context, seedID string) (*Outcome, error) {
	seed, err := r.blocks.Read(ctx, seedID)
	if err != nil {
		return nil, memerr.New("reflection.Reflect", seedID, memerr.NotFound, err)
	}
	if seed.Archived {
		return &Outcome{SeedID: seedID}, nil
	}

	candidates, err := r.gatherCandidates(ctx, seed)
	if err != nil {
		return nil, err
	}

	out := &Outcome{SeedID: seedID}
	for id := range candidates {
		out.Candidate = append(out.Candidate, id)
	}

	if r.reason == nil {
		return out, nil
	}

	prompt := r.renderPrompt(seed, candidates)
	response, err := r.reason.Complete(ctx, prompt)
	if err != nil {
		r.logger.Warn(ctx, "reflection: reasoner call failed, no writes", zap.String("seed_id", seedID), zap.Error(err))
		return out, nil
	}

	proposals, err := parseProposals(response)
	if err != nil {
		r.logger.Warn(ctx, "reflection: could not parse reasoner response, no writes", zap.String("seed_id", seedID), zap.Error(err))
		return out, nil
	}

	accepted := r.filterAndDedup(proposals, candidates)
	for _, p := range accepted {
		rel := graphstore.Relationship{
			Source: seed.ID,
			Target: p.TargetID,
			Kind:   p.Kind,
			Weight: p.Weight,
			Origin: graphstore.OriginReflection,
		}
		if err := r.graph.Upsert(ctx, rel); err != nil {
			r.logger.Warn(ctx, "reflection: upsert failed", zap.String("seed_id", seedID), zap.String("target_id", p.TargetID), zap.Error(err))
			continue
		}
		out.Written = append(out.Written, p)
	}

	return out, nil
}

// gatherCandidates implements spec.md §4.7 steps 2-3: up to 5 retrieval
// candidates plus up to 5 direct graph neighbours, keyed by block id and
// excluding the seed itself.
func (r *Reflector) gatherCandidates(ctx context.Context, seed *blockstore.Block) (map[string]*blockstore.Block, error) {
	candidates := make(map[string]*blockstore.Block)

	query := seed.Title + " " + truncate(seed.Body, bodyPrefixLength)
	results, err := r.retrieve.Retrieve(ctx, retriever.Request{Query: query, TopK: maxCandidates, Exclude: nil})
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.BlockID == seed.ID {
			continue
		}
		b, err := r.blocks.Read(ctx, res.BlockID)
		if err != nil || b.Archived {
			continue
		}
		candidates[b.ID] = b
	}

	rels, err := r.graph.Neighbours(ctx, seed.ID, graphstore.Out)
	if err != nil {
		r.logger.Warn(ctx, "reflection: neighbour lookup failed", zap.String("seed_id", seed.ID), zap.Error(err))
		rels = nil
	}
	count := 0
	for _, rel := range rels {
		if count >= maxNeighbours {
			break
		}
		if rel.Target == seed.ID {
			continue
		}
		if _, ok := candidates[rel.Target]; ok {
			continue
		}
		b, err := r.blocks.Read(ctx, rel.Target)
		if err != nil || b.Archived {
			continue
		}
		candidates[b.ID] = b
		count++
	}

	return candidates, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (r *Reflector) renderPrompt(seed *blockstore.Block, candidates map[string]*blockstore.Block) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Seed note %q (id=%s):\n%s\n\n", seed.Title, seed.ID, r.scrub(truncate(seed.Body, bodyPrefixLength)))
	sb.WriteString("Candidate notes:\n")
	for id, b := range candidates {
		fmt.Fprintf(&sb, "- id=%s title=%q: %s\n", id, b.Title, r.scrub(truncate(b.Body, bodyPrefixLength)))
	}
	sb.WriteString("\nPropose typed relationships from the seed note to any candidates that are genuinely related. ")
	sb.WriteString("Respond with a JSON array of objects {\"target_id\": string, \"kind\": string, \"weight\": number between 0 and 1}. ")
	sb.WriteString("Only reference target_id values from the candidate list above. Respond with JSON only, no prose.")
	return sb.String()
}

// scrub redacts secrets from text before it is sent to the reasoning model.
// No-op if no scrubber is configured.
func (r *Reflector) scrub(text string) string {
	if r.scrubber == nil {
		return text
	}
	return r.scrubber.Scrub(text).Scrubbed
}

// parseProposals extracts a JSON array of Proposal from the reasoner's raw
// text response, tolerating surrounding prose by locating the outermost
// brackets.
func parseProposals(response string) ([]Proposal, error) {
	start := strings.IndexByte(response, '[')
	end := strings.LastIndexByte(response, ']')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("reflection: no JSON array found in response")
	}

	var proposals []Proposal
	if err := json.Unmarshal([]byte(response[start:end+1]), &proposals); err != nil {
		return nil, fmt.Errorf("reflection: unmarshal proposals: %w", err)
	}
	return proposals, nil
}

// filterAndDedup implements spec.md §4.7 step 6: drop triples whose
// target_id is not in the candidate set (which is already non-archived by
// construction), and drop duplicate (target, kind) pairs.
func (r *Reflector) filterAndDedup(proposals []Proposal, candidates map[string]*blockstore.Block) []Proposal {
	seen := make(map[string]bool, len(proposals))
	accepted := make([]Proposal, 0, len(proposals))

	for _, p := range proposals {
		if p.TargetID == "" || p.Kind == "" {
			continue
		}
		if _, ok := candidates[p.TargetID]; !ok {
			continue
		}
		key := p.TargetID + "\x00" + p.Kind
		if seen[key] {
			continue
		}
		seen[key] = true
		accepted = append(accepted, p)
	}
	return accepted
}
