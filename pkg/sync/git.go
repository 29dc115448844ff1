// Package sync commits vault changes made by the task engine to git.
package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// GitManager handles git operations
type GitManager struct {
	RepoPath    string
	AuthorName  string
	AuthorEmail string
	// Push sends each commit to the default remote.
	Push bool
	// SSHKeyPath overrides ~/.ssh/id_rsa for pushing.
	SSHKeyPath string

	Now    func() time.Time
	Logger *slog.Logger

	mu gosync.Mutex
}

// NewGitManager creates a new GitManager
func NewGitManager(repoPath string) *GitManager {
	return &GitManager{
		RepoPath:    repoPath,
		AuthorName:  "Vault Recur",
		AuthorEmail: "recur@vault.local",
		Now:         time.Now,
	}
}

// Sync commits all changes and, when Push is set, pushes to the remote.
// A clean worktree is not an error.
func (g *GitManager) Sync(message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, err := git.PlainOpen(g.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to open repo: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to add changes: %w", err)
	}

	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	now := g.now()
	if message == "" {
		message = fmt.Sprintf("Auto-sync: %s", now.Format(time.RFC3339))
	}

	_, err = w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.AuthorName,
			Email: g.AuthorEmail,
			When:  now,
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("failed to commit: %w", err)
	}

	if !g.Push {
		return nil
	}
	return g.push(r)
}

func (g *GitManager) push(r *git.Repository) error {
	opts := &git.PushOptions{}
	if auth, err := g.auth(); err != nil {
		g.logger().Warn("sync: could not load SSH key, pushing without explicit auth", "err", err)
	} else {
		opts.Auth = auth
	}

	err := r.Push(opts)
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

func (g *GitManager) auth() (transport.AuthMethod, error) {
	keyPath := g.SSHKeyPath
	if keyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		keyPath = filepath.Join(home, ".ssh", "id_rsa")
	}
	return ssh.NewPublicKeysFromFile("git", keyPath, "")
}

func (g *GitManager) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func (g *GitManager) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
