package embedder

import (
	"context"
	"hash/fnv"
	"strings"
)

// Deterministic is a hash-based Embedder with no external dependencies,
// used by tests across the module (grounded on contextd's
// internal/reasoningbank mockEmbedder): texts sharing their first two
// significant words land in the same near-orthogonal "slot" of the vector
// space, giving cosine similarity > 0.9 within a category and < 0.5 across
// categories, without needing a real model.
type Deterministic struct {
	dimension int
}

func NewDeterministic(dimension int) *Deterministic {
	return &Deterministic{dimension: dimension}
}

func (d *Deterministic) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.vector(t)
	}
	return out, nil
}

func (d *Deterministic) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return d.vector(text), nil
}

func (d *Deterministic) Dimension() int { return d.dimension }

func (d *Deterministic) vector(text string) []float32 {
	vec := make([]float32, d.dimension)

	words := strings.Fields(strings.ToLower(text))
	var categoryWords []string
	for _, w := range words {
		if len(w) > 2 {
			categoryWords = append(categoryWords, w)
			if len(categoryWords) >= 2 {
				break
			}
		}
	}
	category := strings.Join(categoryWords, " ")

	h := fnv.New32a()
	h.Write([]byte(category))
	categoryHash := h.Sum32()

	h.Reset()
	h.Write([]byte(text))
	textHash := h.Sum32()

	slotSize := 16
	if d.dimension < 32 {
		slotSize = max(1, d.dimension/4)
	}
	numSlots := max(1, d.dimension/slotSize)
	categorySlot := int(categoryHash%uint32(numSlots)) * slotSize

	for j := 0; j < d.dimension; j++ {
		if j >= categorySlot && j < categorySlot+slotSize {
			variation := float32((textHash+uint32(j))%100) / 10000.0
			vec[j] = 1.0 + variation
		}
	}
	return vec
}
