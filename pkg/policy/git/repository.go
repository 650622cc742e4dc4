package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

// ErrNotInitialized is returned by operations that need a working copy
// before Sync has run.
var ErrNotInitialized = errors.New("repository not initialized, call Sync first")

// Repository keeps a local working copy of a policy repository.
type Repository struct {
	config    config.GitConfig
	localPath string
	auth      AuthProvider
	logger    *slog.Logger

	mu   sync.RWMutex
	repo *gogit.Repository
}

// NewRepository creates a repository manager. Nothing is fetched until
// Sync is called.
func NewRepository(cfg config.GitConfig, logger *slog.Logger) (*Repository, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}

	localPath := cfg.CloneDir
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "gatekeeper-policies")
	}

	return &Repository{
		config:    cfg,
		localPath: localPath,
		auth:      NewAuthProvider(&cfg),
		logger:    logging.Component(logger, "policy-git"),
	}, nil
}

// Sync clones the repository on first use (or opens an existing working
// copy) and pulls the configured branch otherwise.
func (r *Repository) Sync(ctx context.Context) (*SyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		opened, err := r.openOrClone(ctx)
		if err != nil {
			return nil, err
		}
		if opened {
			head, err := r.headSHA()
			if err != nil {
				return nil, err
			}
			r.logger.Info("cloned policy repository",
				"repository", r.config.Repository,
				"branch", r.config.Branch,
				"commit", head,
			)
			return &SyncResult{Cloned: true, ToSHA: head}, nil
		}
	}

	return r.pull(ctx)
}

// openOrClone returns true when a fresh clone was made.
func (r *Repository) openOrClone(ctx context.Context) (bool, error) {
	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return false, fmt.Errorf("failed to open existing repo: %w", err)
		}
		r.repo = repo
		return false, nil
	}

	if err := os.MkdirAll(r.localPath, 0755); err != nil {
		return false, fmt.Errorf("failed to create repository directory: %w", err)
	}

	auth, err := r.auth.GetAuth()
	if err != nil {
		return false, fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		return false, fmt.Errorf("failed to clone repository: %w", err)
	}

	r.repo = repo
	return true, nil
}

func (r *Repository) pull(ctx context.Context) (*SyncResult, error) {
	fromSHA, err := r.headSHA()
	if err != nil {
		return nil, err
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := r.auth.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	toSHA, err := r.headSHA()
	if err != nil {
		return nil, err
	}

	result := &SyncResult{FromSHA: fromSHA, ToSHA: toSHA}
	if fromSHA != toSHA {
		changed, err := r.changedFiles(fromSHA, toSHA)
		if err != nil {
			return nil, fmt.Errorf("failed to get changed files: %w", err)
		}
		result.ChangedPolicies = changed
		r.logger.Info("pulled policy changes",
			"from", fromSHA,
			"to", toSHA,
			"changed_policies", len(changed),
		)
	}

	return result, nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout > 0 {
		return context.WithTimeout(ctx, r.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Repository) headSHA() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// CurrentCommit returns metadata about the HEAD commit.
func (r *Repository) CurrentCommit() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotInitialized
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		SHA:        commit.Hash.String(),
		Author:     commit.Author.Name,
		Email:      commit.Author.Email,
		Timestamp:  commit.Author.When,
		Message:    strings.TrimSpace(commit.Message),
		Branch:     r.config.Branch,
		Repository: r.config.Repository,
	}, nil
}

// changedFiles returns the .dsl files touched between two commits.
// Deleted files are reported by their old name.
func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var files []string
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if strings.HasSuffix(name, ".dsl") {
			files = append(files, name)
		}
	}
	return files, nil
}

// Rollback checks out the given commit. A later Sync pulls the branch
// head again.
func (r *Repository) Rollback(targetSHA string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return ErrNotInitialized
	}

	hash := plumbing.NewHash(targetSHA)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("target commit not found: %w", err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := worktree.Checkout(&gogit.CheckoutOptions{Hash: hash}); err != nil {
		return fmt.Errorf("failed to checkout commit %s: %w", targetSHA, err)
	}
	return nil
}

// PolicyDir returns the directory inside the working copy that holds the
// policy sources.
func (r *Repository) PolicyDir() string {
	return filepath.Join(r.localPath, r.config.Path)
}
