// Package gitsource keeps backup copies of a collection under version
// control so earlier states can be restored with plain git.
package gitsource

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultAuthor signs archive commits.
var DefaultAuthor = object.Signature{Name: "ankitab", Email: "ankitab@localhost"}

// Archive is a git repository holding backup files.
type Archive struct {
	path   string
	repo   *git.Repository
	author object.Signature
	log    *slog.Logger
}

// Open opens the repository at path, initializing it if it doesn't exist.
func Open(path string) (*Archive, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory %s: %w", path, err)
		}
		slog.Info("Initializing backup archive", "path", path)
		repo, err = git.PlainInit(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to init archive at %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open archive at %s: %w", path, err)
	}
	return &Archive{path: path, repo: repo, author: DefaultAuthor, log: slog.Default()}, nil
}

// SetLogger replaces the logger.
func (a *Archive) SetLogger(l *slog.Logger) { a.log = l }

// SetAuthor replaces the commit signature.
func (a *Archive) SetAuthor(name, email string) {
	a.author = object.Signature{Name: name, Email: email}
}

// Path returns the repository root.
func (a *Archive) Path() string { return a.path }

// Commit records file, which must live inside the archive, and returns the
// commit hash.
func (a *Archive) Commit(file, message string, when time.Time) (string, error) {
	rel, err := filepath.Rel(a.path, file)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("file %s is outside the archive %s", file, a.path)
	}
	worktree, err := a.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree for archive at %s: %w", a.path, err)
	}
	if _, err := worktree.Add(filepath.ToSlash(rel)); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", rel, err)
	}
	author := a.author
	author.When = when
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return "", fmt.Errorf("failed to commit %s: %w", rel, err)
	}
	a.log.Info("Backup archived", "file", rel, "commit", hash.String())
	return hash.String(), nil
}
