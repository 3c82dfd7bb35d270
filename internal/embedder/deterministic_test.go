package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func TestDeterministicSimilarTextsAreClose(t *testing.T) {
	d := NewDeterministic(384)
	ctx := context.Background()

	a, err := d.EmbedQuery(ctx, "database migration rollback procedure")
	require.NoError(t, err)
	b, err := d.EmbedQuery(ctx, "database migration checklist")
	require.NoError(t, err)

	require.Greater(t, cosine(a, b), 0.9)
}

func TestDeterministicDissimilarTextsAreFar(t *testing.T) {
	d := NewDeterministic(384)
	ctx := context.Background()

	a, err := d.EmbedQuery(ctx, "database migration rollback procedure")
	require.NoError(t, err)
	b, err := d.EmbedQuery(ctx, "quarterly marketing budget review")
	require.NoError(t, err)

	require.Less(t, cosine(a, b), 0.5)
}

func TestDeterministicDimensionMatchesConfig(t *testing.T) {
	d := NewDeterministic(128)
	v, err := d.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	require.Len(t, v, 128)
	require.Equal(t, 128, d.Dimension())
}
