package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gowebpki/jcs"
)

// ManifestFile is the name of the manifest written next to the artifacts.
const ManifestFile = "manifest.json"

// Manifest describes one build output.
type Manifest struct {
	CompiledAt      string                 `json:"compiled_at"`
	CompilerVersion string                 `json:"compiler_version"`
	Digest          string                 `json:"digest"`
	Source          *SourceInfo            `json:"source,omitempty"`
	Policies        map[string]PolicyEntry `json:"policies"`
}

// PolicyEntry lists the artifacts compiled from one policy. Rules are in
// declaration order.
type PolicyEntry struct {
	SourceHash string   `json:"source_hash"`
	Version    string   `json:"version"`
	Rules      []string `json:"rules"`
}

// SourceInfo identifies the revision of a git policy source.
type SourceInfo struct {
	Repository string `json:"repository,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit"`
}

// ComputeDigest returns the SHA-256 of the RFC 8785 canonical form of the
// policies map. Two manifests with the same digest describe the same rule
// set regardless of when they were compiled.
func ComputeDigest(policies map[string]PolicyEntry) (string, error) {
	raw, err := json.Marshal(policies)
	if err != nil {
		return "", fmt.Errorf("failed to encode policies: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize policies: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// RuleCount returns the total number of rules in the manifest.
func (m *Manifest) RuleCount() int {
	n := 0
	for _, p := range m.Policies {
		n += len(p.Rules)
	}
	return n
}

// LoadManifest reads a manifest from a file or from a directory containing
// manifest.json.
func LoadManifest(path string) (*Manifest, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Policies == nil {
		m.Policies = map[string]PolicyEntry{}
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
