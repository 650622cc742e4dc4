package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/dsl/ast"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
)

// Version is recorded in build manifests.
const Version = "1.0.0"

const (
	basePriority = 100
	blockBonus   = 20
	warnBonus    = 10
)

// NormalizeID converts a policy identifier to its artifact form
// (underscores become hyphens).
func NormalizeID(policyID string) string {
	return strings.ReplaceAll(policyID, "_", "-")
}

// SourceHash returns the hex SHA-256 of the source text.
func SourceHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Priority returns the evaluation priority of the rule declared at
// index (0-based) with the given result. BLOCK always outranks WARN,
// and earlier rules outrank later ones with the same result.
func Priority(result ast.EnforcementResult, index int) int {
	p := basePriority
	switch result {
	case ast.ResultBlock:
		p += blockBonus
	case ast.ResultWarn:
		p += warnBonus
	}
	return p - index
}

// Compile expands a validated policy into one compiled rule per declared
// rule, numbered R1..Rn in declaration order. A rule whose condition
// contains OR fails the whole policy with a compile error.
func Compile(policy *ast.Policy, source string) ([]*CompiledRule, error) {
	normalized := NormalizeID(policy.PolicyID)
	hash := SourceHash(source)

	compliance := policy.Compliance
	if compliance == nil {
		compliance = map[string]string{}
	}

	compiled := make([]*CompiledRule, 0, len(policy.Rules))
	for i, rule := range policy.Rules {
		suffix := fmt.Sprintf("R%d", i+1)
		ruleID := normalized + "." + suffix

		flat := Flatten(rule.Condition)
		if flat.MustSplit {
			return nil, &dslErrors.Error{
				Type: dslErrors.ErrorTypeCompile,
				Message: fmt.Sprintf(
					"OR logic is not supported in a single rule condition (rule %s). Split into multiple rules.",
					suffix),
				Location:   flat.SplitAt,
				Suggestion: "Write one 'when' block per alternative",
			}
		}

		compiled = append(compiled, &CompiledRule{
			Filename:   ruleID + ArtifactExtension,
			ID:         ruleID,
			SourceHash: hash,
			Artifact: Artifact{
				PolicyID:    ruleID,
				Version:     policy.Version,
				Name:        fmt.Sprintf("%s - Rule %s", policy.Name, suffix),
				Description: policy.Description,
				Controls:    flat.Conditions,
				Enforcement: Enforcement{
					Result:  string(rule.Enforcement.Result),
					Message: rule.Enforcement.Message,
				},
				Metadata: Metadata{
					ParentPolicy:  normalized,
					RuleID:        suffix,
					Version:       policy.Version,
					Priority:      Priority(rule.Enforcement.Result, i),
					Compliance:    compliance,
					EffectiveDate: policy.EffectiveDate,
					Supersedes:    policy.Supersedes,
				},
			},
		})
	}

	return compiled, nil
}
