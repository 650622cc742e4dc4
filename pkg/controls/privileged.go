package controls

import (
	"context"
	"sort"
	"strings"
)

// PrivilegedControlID identifies the privileged change control.
const PrivilegedControlID = "SEC-PR-003"

// PrivilegedCategories always produce per-category signals, even when not
// configured.
var PrivilegedCategories = []string{"auth", "payment", "crypto", "migrations", "infra"}

// PrivilegedChangeControl flags changes to sensitive paths.
type PrivilegedChangeControl struct{}

// NewPrivilegedChangeControl creates the control.
func NewPrivilegedChangeControl() *PrivilegedChangeControl {
	return &PrivilegedChangeControl{}
}

// ID implements Control.
func (c *PrivilegedChangeControl) ID() string { return PrivilegedControlID }

// Execute implements Control.
func (c *PrivilegedChangeControl) Execute(ctx context.Context, cctx *Context) (*SignalSet, error) {
	var configured map[string][]string
	if cctx.Config != nil {
		configured = cctx.Config.PrivilegedPaths
	}
	categories := privilegedCategories(configured)

	out := NewSignalSet()
	matched := make(map[string]int, len(categories))

	for _, path := range sortedPaths(cctx.Diff) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, cat := range categories {
			var hits []string
			for _, pattern := range configured[cat] {
				if MatchPathPattern(path, pattern) {
					hits = append(hits, pattern)
				}
			}
			if len(hits) == 0 {
				continue
			}
			matched[cat]++
			out.Findings = append(out.Findings, Finding{
				ControlID: PrivilegedControlID,
				RuleID:    PrivilegedControlID + "." + strings.ToUpper(cat),
				Severity:  SeverityHigh,
				Message:   "Privileged code change detected: " + cat,
				FilePath:  path,
				Evidence: map[string]interface{}{
					"category":                 cat,
					"privilege_level":          SeverityHigh,
					"requires_security_review": true,
					"patterns_matched":         hits,
				},
			})
		}
	}

	touched := []string{}
	for _, cat := range categories {
		n := matched[cat]
		if n > 0 {
			touched = append(touched, cat)
		}
		out.Signals["privileged."+cat+".detected"] = n > 0
		out.Signals["privileged."+cat+".count"] = n
	}
	sort.Strings(touched)

	out.Signals["privileged.detected"] = len(out.Findings) > 0
	out.Signals["privileged.count"] = len(out.Findings)
	out.Signals["privileged.categories"] = touched

	return out, nil
}

// privilegedCategories returns the built-in categories followed by any
// extra configured ones in sorted order.
func privilegedCategories(configured map[string][]string) []string {
	cats := append([]string(nil), PrivilegedCategories...)
	var extra []string
	for cat := range configured {
		known := false
		for _, c := range PrivilegedCategories {
			if c == cat {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	return append(cats, extra...)
}

// MatchPathPattern reports whether path matches pattern. Supported forms
// are an exact path, "*contains*", "*suffix" and "prefix*".
func MatchPathPattern(path, pattern string) bool {
	if pattern == path {
		return true
	}
	switch {
	case len(pattern) >= 2 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(path, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(path, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(path, pattern[:len(pattern)-1])
	}
	return false
}
