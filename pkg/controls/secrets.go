package controls

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// SecretsControlID identifies the secret scanning control.
const SecretsControlID = "SEC-PR-002"

// entropyThreshold is the Shannon entropy (bits per character) above which
// a generic match counts as a secret without keyword context.
const entropyThreshold = 4.5

// contextWindow is how many characters around a generic match are searched
// for secret keywords.
const contextWindow = 50

// SecretRule is one secret detection pattern.
type SecretRule struct {
	ID       string
	Name     string
	Pattern  *regexp.Regexp
	Severity string

	// RequiresContext makes a match count only with a nearby keyword or
	// high entropy.
	RequiresContext bool
}

// DefaultSecretRules are the built-in detection rules in evaluation order.
var DefaultSecretRules = []SecretRule{
	{ID: "SEC-PR-002.RULE-001", Name: "AWS Access Key", Pattern: regexp.MustCompile(`AKIA[0-9A-Z]{16}`), Severity: SeverityHigh},
	{ID: "SEC-PR-002.RULE-002", Name: "GitHub Personal Access Token", Pattern: regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`), Severity: SeverityHigh},
	{ID: "SEC-PR-002.RULE-003", Name: "GitHub OAuth Token", Pattern: regexp.MustCompile(`gho_[a-zA-Z0-9]{36}`), Severity: SeverityHigh},
	{ID: "SEC-PR-002.RULE-004", Name: "Stripe Test Key", Pattern: regexp.MustCompile(`sk_test_[a-zA-Z0-9]{24,}`), Severity: SeverityMedium},
	{ID: "SEC-PR-002.RULE-005", Name: "Stripe Live Key", Pattern: regexp.MustCompile(`sk_live_[a-zA-Z0-9]{24,}`), Severity: SeverityHigh},
	{ID: "SEC-PR-002.RULE-010", Name: "Private Key", Pattern: regexp.MustCompile(`-----BEGIN.*PRIVATE KEY-----`), Severity: SeverityHigh},
	{ID: "SEC-PR-002.RULE-011", Name: "Generic High Entropy String", Pattern: regexp.MustCompile(`[A-Za-z0-9+/]{32,}={0,2}`), Severity: SeverityMedium, RequiresContext: true},
}

var secretKeywords = []string{
	"password", "passwd", "secret", "key", "token",
	"auth", "credential", "api_key", "access_key", "private_key",
}

// SecretsControl scans added lines for hard-coded credentials.
type SecretsControl struct {
	rules []SecretRule
}

// NewSecretsControl creates the control with DefaultSecretRules.
func NewSecretsControl() *SecretsControl {
	return &SecretsControl{rules: DefaultSecretRules}
}

// ID implements Control.
func (c *SecretsControl) ID() string { return SecretsControlID }

// Execute implements Control.
func (c *SecretsControl) Execute(ctx context.Context, cctx *Context) (*SignalSet, error) {
	out := NewSignalSet()

	for _, path := range sortedPaths(cctx.Diff) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Findings = append(out.Findings, c.scanDiff(path, cctx.Diff[path])...)
	}

	out.Signals["secrets.detected"] = len(out.Findings) > 0
	out.Signals["secrets.count"] = len(out.Findings)
	out.Signals["secrets.high_severity_count"] = countSeverity(out.Findings, SeverityHigh)
	out.Signals["secrets.medium_severity_count"] = countSeverity(out.Findings, SeverityMedium)

	severity := "NONE"
	switch {
	case countSeverity(out.Findings, SeverityHigh) > 0:
		severity = SeverityHigh
	case len(out.Findings) > 0:
		severity = SeverityMedium
	}
	out.Signals["secrets.severity"] = severity

	perRule := map[string]int{}
	for _, f := range out.Findings {
		perRule[f.RuleID]++
	}
	for id, n := range perRule {
		out.Signals["secrets.rule."+id] = n
	}

	return out, nil
}

func (c *SecretsControl) scanDiff(path, diff string) []Finding {
	var findings []Finding
	for _, line := range AddedLines(diff) {
		for _, rule := range c.rules {
			for _, loc := range rule.Pattern.FindAllStringIndex(line.Text, -1) {
				value := line.Text[loc[0]:loc[1]]
				if rule.RequiresContext && !hasSecretContext(line.Text, loc[0], loc[1]) && ShannonEntropy(value) <= entropyThreshold {
					continue
				}
				masked := MaskSecret(value)
				findings = append(findings, Finding{
					ControlID: SecretsControlID,
					RuleID:    rule.ID,
					Severity:  rule.Severity,
					Message:   "Secret detected: " + rule.Name,
					FilePath:  path,
					Line:      line.Number,
					Evidence: map[string]interface{}{
						"rule_name":            rule.Name,
						"matched_value_masked": masked,
						"line_content":         strings.TrimSpace(strings.Replace(line.Text, value, masked, 1)),
						"diff_line_index":      line.Index,
						"fingerprint":          fmt.Sprintf("%s:%d:%s", path, line.Number, rule.ID),
					},
				})
			}
		}
	}
	return findings
}

func hasSecretContext(line string, start, end int) bool {
	from := start - contextWindow
	if from < 0 {
		from = 0
	}
	to := end + contextWindow
	if to > len(line) {
		to = len(line)
	}
	window := strings.ToLower(line[from:to])
	for _, kw := range secretKeywords {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}

// ShannonEntropy returns the entropy of s in bits per character.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := map[rune]int{}
	n := 0
	for _, r := range s {
		counts[r]++
		n++
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

// MaskSecret keeps the first and last four characters of values longer
// than eight characters.
func MaskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "****" + value[len(value)-4:]
}

func sortedPaths(diff map[string]string) []string {
	paths := make([]string, 0, len(diff))
	for p := range diff {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
