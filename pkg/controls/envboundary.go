package controls

import (
	"context"
	"regexp"
	"strings"
)

// EnvBoundaryControlID identifies the environment boundary control.
const EnvBoundaryControlID = "ENV-PR-001"

// EnvBoundaryControl detects production patterns added to non-production
// files.
type EnvBoundaryControl struct{}

// NewEnvBoundaryControl creates the control.
func NewEnvBoundaryControl() *EnvBoundaryControl {
	return &EnvBoundaryControl{}
}

// ID implements Control.
func (c *EnvBoundaryControl) ID() string { return EnvBoundaryControlID }

// Execute implements Control. Without production patterns or non-prod
// paths the control reports itself unconfigured and passes.
func (c *EnvBoundaryControl) Execute(ctx context.Context, cctx *Context) (*SignalSet, error) {
	out := NewSignalSet()

	var prod, nonprod []string
	if cctx.Config != nil {
		prod = cctx.Config.Environment.Production
		nonprod = cctx.Config.Environment.NonprodPaths
	}
	if len(prod) == 0 || len(nonprod) == 0 {
		out.Signals["env_boundary.configured"] = false
		out.Signals["env_boundary.violations"] = 0
		return out, nil
	}

	patterns := make([]*regexp.Regexp, 0, len(prod))
	sources := make([]string, 0, len(prod))
	for _, p := range prod {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			// Config validation rejects these; skip rather than fail.
			continue
		}
		patterns = append(patterns, re)
		sources = append(sources, p)
	}

	for _, path := range sortedPaths(cctx.Diff) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !isNonprodPath(path, nonprod) {
			continue
		}
		for _, line := range AddedLines(cctx.Diff[path]) {
			for i, re := range patterns {
				if !re.MatchString(line.Text) {
					continue
				}
				out.Findings = append(out.Findings, Finding{
					ControlID: EnvBoundaryControlID,
					RuleID:    EnvBoundaryControlID + ".PROD_LEAK",
					Severity:  SeverityHigh,
					Message:   "Production pattern detected in non-prod file: " + path,
					FilePath:  path,
					Line:      line.Index,
					Evidence: map[string]interface{}{
						"pattern":              sources[i],
						"line_content":         strings.TrimSpace(line.Text),
						"inferred_environment": "production",
						"violation_type":       "prod_config_in_nonprod",
					},
				})
			}
		}
	}

	out.Signals["env_boundary.configured"] = true
	out.Signals["env_boundary.violations"] = len(out.Findings)
	out.Signals["env_boundary.has_violations"] = len(out.Findings) > 0
	return out, nil
}

func isNonprodPath(path string, nonprod []string) bool {
	for _, p := range nonprod {
		if strings.Contains(path, p) || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
