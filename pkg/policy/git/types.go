package git

import "time"

// CommitInfo contains metadata about a Git commit.
type CommitInfo struct {
	SHA        string    `json:"sha"`
	Author     string    `json:"author"`
	Email      string    `json:"email"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
	Branch     string    `json:"branch"`
	Repository string    `json:"repository"`
}

// SyncResult describes a clone or pull.
type SyncResult struct {
	// Cloned is true when the working copy was created by this sync.
	Cloned bool

	FromSHA string
	ToSHA   string

	// ChangedPolicies lists .dsl files (repository-relative) that differ
	// between FromSHA and ToSHA.
	ChangedPolicies []string
}

// HadChanges reports whether HEAD moved.
func (r *SyncResult) HadChanges() bool {
	return r.Cloned || r.FromSHA != r.ToSHA
}
