package builder

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// VersionChange classifies how a policy version moved between builds.
type VersionChange string

const (
	VersionUnchanged VersionChange = "unchanged"
	VersionUpgrade   VersionChange = "upgrade"
	VersionDowngrade VersionChange = "downgrade"
	// VersionInvalid means one side is not a valid semantic version.
	VersionInvalid VersionChange = "invalid"
)

// PolicyChange describes a policy present in both manifests whose source
// or rules differ.
type PolicyChange struct {
	PolicyID     string        `json:"policy_id"`
	OldVersion   string        `json:"old_version"`
	NewVersion   string        `json:"new_version"`
	Version      VersionChange `json:"version_change"`
	AddedRules   []string      `json:"added_rules,omitempty"`
	RemovedRules []string      `json:"removed_rules,omitempty"`
}

// ManifestDiff is the difference between two builds.
type ManifestDiff struct {
	Added   []string       `json:"added"`
	Removed []string       `json:"removed"`
	Changed []PolicyChange `json:"changed"`
}

// Empty reports whether the builds describe the same rule set.
func (d *ManifestDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffManifests compares two manifests. Output lists are sorted by policy id.
func DiffManifests(oldM, newM *Manifest) *ManifestDiff {
	diff := &ManifestDiff{
		Added:   []string{},
		Removed: []string{},
		Changed: []PolicyChange{},
	}

	if oldM.Digest != "" && oldM.Digest == newM.Digest {
		return diff
	}

	for id := range newM.Policies {
		if _, ok := oldM.Policies[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	for id, before := range oldM.Policies {
		after, ok := newM.Policies[id]
		if !ok {
			diff.Removed = append(diff.Removed, id)
			continue
		}
		if before.SourceHash == after.SourceHash && before.Version == after.Version && equalRules(before.Rules, after.Rules) {
			continue
		}
		diff.Changed = append(diff.Changed, PolicyChange{
			PolicyID:     id,
			OldVersion:   before.Version,
			NewVersion:   after.Version,
			Version:      classifyVersion(before.Version, after.Version),
			AddedRules:   difference(after.Rules, before.Rules),
			RemovedRules: difference(before.Rules, after.Rules),
		})
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].PolicyID < diff.Changed[j].PolicyID
	})
	return diff
}

func classifyVersion(oldV, newV string) VersionChange {
	a, err := semver.NewVersion(oldV)
	if err != nil {
		return VersionInvalid
	}
	b, err := semver.NewVersion(newV)
	if err != nil {
		return VersionInvalid
	}
	switch a.Compare(b) {
	case -1:
		return VersionUpgrade
	case 1:
		return VersionDowngrade
	default:
		return VersionUnchanged
	}
}

func equalRules(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// difference returns the elements of a not in b, in a's order.
func difference(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		seen[s] = true
	}
	var out []string
	for _, s := range a {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}
