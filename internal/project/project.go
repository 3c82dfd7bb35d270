// Package project detects git provenance (branch, commit) for a working
// directory, used to stamp a recorded block's Extra with the project state
// it was captured under.
//
// Grounded on contextd's pkg/checkpoint/branch.go detectGitBranch: open the
// repo at a path, read HEAD, and treat "not a repo" or detached HEAD as an
// empty, non-error result rather than a failure.
package project

import "github.com/go-git/go-git/v5"

// Info is the git provenance of a working directory.
type Info struct {
	Branch string
	Commit string
}

// Detect opens the repository at path and extracts the current branch and
// commit. It never returns an error for "not a git repository" or a
// detached HEAD; callers get a zero-value Info in those cases.
func Detect(path string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Info{}, nil
	}

	head, err := repo.Head()
	if err != nil {
		return Info{}, nil
	}

	info := Info{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	return info, nil
}
