package compressor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"github.com/stretchr/testify/require"
)

type fakeReasoner struct {
	response string
	err      error
	calls    int
}

func (f *fakeReasoner) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func block(id, title, body string) *blockstore.Block {
	return &blockstore.Block{ID: id, Title: title, Body: body, InformationType: blockstore.Static}
}

func TestCompressReturnsConcatenationWhenUnderBudget(t *testing.T) {
	c := New(nil, nil, tokencount.NewHeuristic(4), nil)
	blocks := []*blockstore.Block{block("KB-1", "short", "a tiny note")}

	res, err := c.Compress(context.Background(), blocks, 1000)
	require.NoError(t, err)
	require.False(t, res.Downgraded)
	require.Contains(t, res.Content, "a tiny note")
	require.Equal(t, []string{"KB-1"}, res.BlockIDs)
}

func TestCompressUsesReasonerMapReduceWhenOverBudget(t *testing.T) {
	r := &fakeReasoner{response: "a concise summary."}
	c := New(r, nil, tokencount.NewHeuristic(4), nil)

	longBody := strings.Repeat("this is a long sentence about the topic at hand. ", 50)
	blocks := []*blockstore.Block{
		block("KB-1", "first", longBody),
		block("KB-2", "second", longBody),
	}

	res, err := c.Compress(context.Background(), blocks, 20)
	require.NoError(t, err)
	require.False(t, res.Downgraded)
	require.LessOrEqual(t, res.TokenCount, 20)
	require.Equal(t, 3, r.calls) // 2 map + 1 reduce
}

func TestCompressDowngradesToTruncationOnReasonerFailure(t *testing.T) {
	r := &fakeReasoner{err: errors.New("upstream unavailable")}
	c := New(r, nil, tokencount.NewHeuristic(4), nil)

	longBody := strings.Repeat("this is a long sentence about the topic at hand. ", 50)
	blocks := []*blockstore.Block{block("KB-1", "first", longBody)}

	res, err := c.Compress(context.Background(), blocks, 20)
	require.NoError(t, err)
	require.True(t, res.Downgraded)
	require.LessOrEqual(t, res.TokenCount, 20)
}

func TestTruncationFallbackNeverExceedsTargetAcrossManyBlocks(t *testing.T) {
	c := New(nil, nil, tokencount.NewHeuristic(4), nil)

	longBody := strings.Repeat("this is a long sentence about the topic at hand. ", 50)
	blocks := []*blockstore.Block{
		block("KB-1", "first block with a longer title", longBody),
		block("KB-2", "second block with a longer title", longBody),
		block("KB-3", "third block with a longer title", longBody),
		block("KB-4", "fourth block with a longer title", longBody),
	}

	const target = 40
	res, err := c.Compress(context.Background(), blocks, target)
	require.NoError(t, err)
	require.True(t, res.Downgraded)
	require.LessOrEqual(t, res.TokenCount, target)
}

func TestTruncationFallbackWithNoReasonerConfigured(t *testing.T) {
	c := New(nil, nil, tokencount.NewHeuristic(4), nil)

	longBody := "First sentence here. Second sentence follows. Third one trails off."
	blocks := []*blockstore.Block{block("KB-1", "notes", longBody)}

	res, err := c.Compress(context.Background(), blocks, 10)
	require.NoError(t, err)
	require.True(t, res.Downgraded)
	require.Contains(t, res.Content, "First sentence here.")
}

func TestTruncateAtSentenceBoundaryKeepsWholeSentences(t *testing.T) {
	counter := tokencount.NewHeuristic(4)
	text := "Alpha beta gamma. Delta epsilon zeta. Eta theta iota."

	out := truncateAtSentenceBoundary(text, 8, counter)
	require.True(t, strings.HasSuffix(strings.TrimSpace(out), "."))
	require.LessOrEqual(t, counter.Count(out), 12) // allow one sentence's worth of slack
}
