package project

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectReturnsEmptyForNonGitDirectory(t *testing.T) {
	info, err := Detect(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, info.Branch)
	require.Empty(t, info.Commit)
}

func TestDetectReturnsBranchAndCommitForGitDirectory(t *testing.T) {
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-m", "initial")

	info, err := Detect(dir)
	require.NoError(t, err)
	require.Equal(t, "main", info.Branch)
	require.NotEmpty(t, info.Commit)
}
