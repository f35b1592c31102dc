// Package project resolves the project identity used to scope memory.
//
// The identity is derived from the enclosing git repository: the
// worktree root's directory name, slugified. Outside a repository the
// working directory name is used instead.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Info describes a resolved project identity.
type Info struct {
	// Slug is the normalized project identifier (lowercase, spaces and
	// underscores replaced with hyphens).
	Slug string

	// Root is the directory the slug was derived from: the git worktree
	// root, or the starting directory outside a repository.
	Root string

	// IsRepo reports whether a git repository was found.
	IsRepo bool

	// Branch is the current branch name, empty outside a repository or
	// on a detached HEAD.
	Branch string
}

// Detect resolves the project identity for the given directory. An
// empty dir means the current working directory.
//
// Detection walks parent directories looking for .git, matching what
// `git rev-parse --show-toplevel` would report. Not being in a
// repository is not an error; the starting directory's name is used.
func Detect(dir string) (*Info, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = cwd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// Not a repository: fall back to the directory name.
		return &Info{
			Slug:   Slugify(filepath.Base(abs)),
			Root:   abs,
			IsRepo: false,
		}, nil
	}

	root := abs
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	return &Info{
		Slug:   Slugify(filepath.Base(root)),
		Root:   root,
		IsRepo: true,
		Branch: currentBranch(repo),
	}, nil
}

// currentBranch returns the checked-out branch name, or empty for
// detached HEAD and bare repositories.
func currentBranch(repo *git.Repository) string {
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}

// Slugify normalizes a name into a project slug: lowercased, with
// spaces and underscores replaced by hyphens.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")
	return slug
}
