package compiler

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// ArtifactExtension is the file extension of compiled rule artifacts.
const ArtifactExtension = ".yaml"

// Artifact is the on-disk body of one compiled rule.
type Artifact struct {
	PolicyID    string      `yaml:"policy_id" json:"policy_id"`
	Version     string      `yaml:"version" json:"version"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Controls    []Condition `yaml:"controls" json:"controls"`
	Enforcement Enforcement `yaml:"enforcement" json:"enforcement"`
	Metadata    Metadata    `yaml:"metadata" json:"metadata"`
}

// Condition is one atomic `signal op value` triple. A rule triggers only
// when every condition in its list holds.
type Condition struct {
	Signal   string      `yaml:"signal" json:"signal"`
	Operator string      `yaml:"operator" json:"operator"`
	Value    interface{} `yaml:"value" json:"value"`
}

// Enforcement is the verdict of a triggered rule.
type Enforcement struct {
	Result  string `yaml:"result" json:"result"`
	Message string `yaml:"message" json:"message"`
}

// Metadata links a compiled rule back to its source policy.
type Metadata struct {
	ParentPolicy  string            `yaml:"parent_policy" json:"parent_policy"`
	RuleID        string            `yaml:"rule_id" json:"rule_id"`
	Version       string            `yaml:"version" json:"version"`
	Priority      int               `yaml:"priority" json:"priority"`
	Compliance    map[string]string `yaml:"compliance" json:"compliance"`
	EffectiveDate string            `yaml:"effective_date" json:"effective_date"`
	Supersedes    string            `yaml:"supersedes" json:"supersedes"`
}

// CompiledRule is one artifact together with its file name and the hash of
// the source it was compiled from.
type CompiledRule struct {
	Filename   string
	ID         string
	Artifact   Artifact
	SourceHash string
}

// Marshal encodes the artifact as YAML with two-space indentation.
// Output is deterministic for identical input.
func (c *CompiledRule) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&c.Artifact); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
