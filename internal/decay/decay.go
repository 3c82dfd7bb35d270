// Package decay implements spec.md §4.8: archive blocks that have gone
// stale by time, by usage ratio, or both, and restore them on demand.
//
// Grounded on contextd's archival-adjacent patterns: BlockStore's
// MoveToArchive/RestoreFromArchive mirror the WAL's atomic rename-based
// lifecycle (wal.go's writeEntrySecure/Compact), and the usage/time/both
// policy switch generalizes wal.Compact(retentionDays)'s cutoff-based
// filtering from a single time threshold to a pluggable policy.
package decay

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"go.uber.org/zap"
)

// Policy selects which condition triggers archival.
type Policy string

const (
	ByTime  Policy = "time"
	ByUsage Policy = "usage"
	Both    Policy = "both"
)

// Params tunes the decay thresholds (spec.md §4.8 defaults).
type Params struct {
	ThresholdDays  int
	UsageThreshold float64
}

func (p Params) withDefaults() Params {
	if p.ThresholdDays <= 0 {
		p.ThresholdDays = 180
	}
	if p.UsageThreshold <= 0 {
		p.UsageThreshold = 0.01
	}
	return p
}

// Outcome reports what a Run call archived.
type Outcome struct {
	Archived []string
	Skipped  []string
}

// Manager runs decay policies across a BlockStore/VectorStore pair.
type Manager struct {
	blocks  *blockstore.Store
	vectors vectorstore.Store
	embed   embedder.Embedder
	logger  *obslog.Logger
}

func New(blocks *blockstore.Store, vectors vectorstore.Store, embed embedder.Embedder, logger *obslog.Logger) *Manager {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Manager{blocks: blocks, vectors: vectors, embed: embed, logger: logger}
}

// Run implements spec.md §4.8: evaluates every non-archived block against
// the selected policy and archives the ones that qualify.
func (m *Manager) Run(ctx context.Context, policy Policy, params Params, now time.Time) (*Outcome, error) {
	params = params.withDefaults()

	blocks, err := m.blocks.List(ctx, false)
	if err != nil {
		return nil, err
	}

	totalAccesses := 0
	for _, b := range blocks {
		totalAccesses += b.AccessCount
	}
	if totalAccesses == 0 {
		totalAccesses = 1
	}

	out := &Outcome{}
	for _, b := range blocks {
		if qualifies(b, policy, params, now, totalAccesses) {
			if err := m.archive(ctx, b.ID); err != nil {
				m.logger.Warn(ctx, "decay: archive failed", zap.String("block_id", b.ID), zap.Error(err))
				out.Skipped = append(out.Skipped, b.ID)
				continue
			}
			out.Archived = append(out.Archived, b.ID)
		}
	}
	return out, nil
}

func qualifies(b *blockstore.Block, policy Policy, params Params, now time.Time, totalAccesses int) bool {
	byTime := now.Sub(b.LastAccess) > time.Duration(params.ThresholdDays)*24*time.Hour
	ratio := float64(b.AccessCount) / float64(totalAccesses)
	byUsage := ratio < params.UsageThreshold

	switch policy {
	case ByTime:
		return byTime
	case ByUsage:
		return byUsage
	case Both:
		return byTime || byUsage
	default:
		return false
	}
}

// archive implements spec.md §4.8's archival procedure: delete the vector
// entry first, then move the block to archive storage.
func (m *Manager) archive(ctx context.Context, id string) error {
	if err := m.vectors.Delete(ctx, []string{id}); err != nil {
		return memerr.New("decay.archive", id, memerr.Unavailable, err)
	}
	return m.blocks.MoveToArchive(ctx, id)
}

// Restore reverses archival: moves the block back to active storage and
// re-encodes its embedding.
func (m *Manager) Restore(ctx context.Context, id string) error {
	if err := m.blocks.RestoreFromArchive(ctx, id); err != nil {
		return err
	}

	b, err := m.blocks.Read(ctx, id)
	if err != nil {
		return err
	}

	vec, err := m.embed.EmbedDocuments(ctx, []string{b.Title + " " + b.Body})
	if err != nil {
		return memerr.New("decay.Restore", id, memerr.EmbeddingUnavailable, err)
	}

	return m.vectors.Upsert(ctx, []vectorstore.Entry{{
		ID:     id,
		Vector: vec[0],
		Metadata: map[string]interface{}{
			"title":            b.Title,
			"tags":             b.Tags,
			"information_type": string(b.InformationType),
			"content_hash":     blockstore.ComputeContentHash(b),
		},
	}})
}
