package tokencount

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristicCountsCeilingDivision(t *testing.T) {
	c := NewHeuristic(4)
	require.Equal(t, 0, c.Count(""))
	require.Equal(t, 1, c.Count("abc"))
	require.Equal(t, 1, c.Count("abcd"))
	require.Equal(t, 2, c.Count("abcde"))
}

func TestHeuristicDefaultsToFourCharsPerToken(t *testing.T) {
	c := NewHeuristic(0)
	require.Equal(t, 3, c.Count("twelve char!"))
}
