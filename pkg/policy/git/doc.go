// Package git keeps a local working copy of a git-hosted policy source.
//
// The builder syncs the repository before compiling and records the HEAD
// commit in the build manifest:
//
//	repo, err := git.NewRepository(cfg.Policy.Git, logger)
//	res, err := repo.Sync(ctx)          // clone on first use, pull afterwards
//	commit, err := repo.CurrentCommit()
//	sourceDir := repo.PolicyDir()
//
// Authentication uses an SSH key when ssh_key_path is set, otherwise a
// token over HTTPS when token is set, otherwise none.
package git
