// Records saved data files as git commits using go-git.

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// History commits data files to a git repository rooted at a directory.
type History struct {
	dir   string
	name  string
	email string
	repo  *gogit.Repository
	mu    sync.Mutex
}

// OpenHistory opens the git repository at dir, initializing it if needed.
func OpenHistory(dir, name, email string) (*History, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve history directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	repo, err := gogit.PlainOpen(abs)
	if err != nil {
		repo, err = gogit.PlainInit(abs, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	return &History{dir: abs, name: name, email: email, repo: repo}, nil
}

// Dir returns the repository root.
func (h *History) Dir() string {
	return h.dir
}

// Commit stages files and commits them with msg. Files outside the repository
// are skipped. It reports whether a commit was created; unchanged files do not
// create one.
func (h *History) Commit(ctx context.Context, msg string, files ...string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, err := h.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	var staged []string
	for _, f := range files {
		rel, ok := h.relative(f)
		if !ok {
			slog.DebugContext(ctx, "File outside history", "path", f, "dir", h.dir)
			continue
		}
		if _, err := w.Add(rel); err != nil {
			return false, fmt.Errorf("failed to stage %s: %w", rel, err)
		}
		staged = append(staged, rel)
	}
	if len(staged) == 0 {
		return false, nil
	}

	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree status: %w", err)
	}
	changed := false
	for _, rel := range staged {
		if st := status.File(rel).Staging; st != gogit.Unmodified && st != gogit.Untracked {
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}

	now := time.Now()
	sig := &object.Signature{Name: h.name, Email: h.email, When: now}
	hash, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	slog.DebugContext(ctx, "Recorded history", "msg", msg, "commit", hash.String())
	return true, nil
}

// Count returns the number of commits reachable from HEAD.
func (h *History) Count() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ref, err := h.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	iter, err := h.repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		return 0, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()
	n := 0
	err = iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	})
	return n, err
}

func (h *History) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(h.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
