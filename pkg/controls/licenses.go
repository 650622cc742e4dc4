package controls

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"gatekeeper-hq/gatekeeper/pkg/config"
)

// LicensesControlID identifies the license scanning control.
const LicensesControlID = "OSS-PR-001"

// License classifications.
const (
	LicenseForbidden = "FORBIDDEN"
	LicenseAllowed   = "ALLOWED"
	LicenseUnknown   = "UNKNOWN"
)

// DependencyFiles are recognised dependency manifests and lockfiles. Only
// package-lock.json, requirements.txt and go.mod carry parseable package
// lists; the others are recognised and contribute nothing.
var DependencyFiles = []string{
	"package-lock.json",
	"package.json",
	"requirements.txt",
	"Pipfile.lock",
	"go.mod",
	"go.sum",
	"Gemfile.lock",
	"Cargo.lock",
}

// LicensesControl classifies the licenses of changed dependencies.
type LicensesControl struct{}

// NewLicensesControl creates the control.
func NewLicensesControl() *LicensesControl {
	return &LicensesControl{}
}

// ID implements Control.
func (c *LicensesControl) ID() string { return LicensesControlID }

// Execute implements Control.
func (c *LicensesControl) Execute(ctx context.Context, cctx *Context) (*SignalSet, error) {
	lists := config.LicenseConfig{
		Forbidden: config.DefaultForbiddenLicenses,
		Allowed:   config.DefaultAllowedLicenses,
	}
	if cctx.Config != nil {
		if len(cctx.Config.Licenses.Forbidden) > 0 {
			lists.Forbidden = cctx.Config.Licenses.Forbidden
		}
		if len(cctx.Config.Licenses.Allowed) > 0 {
			lists.Allowed = cctx.Config.Licenses.Allowed
		}
	}

	packages := map[string]string{}
	for _, p := range sortedPaths(cctx.Diff) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !IsDependencyFile(p) {
			continue
		}
		for name, license := range DetectLicenses(p, NewContent(cctx.Diff[p])) {
			packages[name] = license
		}
	}

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	out := NewSignalSet()
	var forbidden, unknown, allowed int
	for _, name := range names {
		license := packages[name]
		switch ClassifyLicense(license, lists) {
		case LicenseForbidden:
			forbidden++
			out.Findings = append(out.Findings, licenseFinding(name, license, LicenseForbidden, SeverityHigh,
				fmt.Sprintf("Forbidden license detected: %s (%s)", name, license)))
		case LicenseUnknown:
			unknown++
			out.Findings = append(out.Findings, licenseFinding(name, license, LicenseUnknown, SeverityMedium,
				fmt.Sprintf("Unknown license: %s (%s)", name, license)))
		default:
			allowed++
		}
	}

	out.Signals["licenses.scanned"] = len(packages) > 0
	out.Signals["licenses.total_count"] = len(packages)
	out.Signals["licenses.forbidden_count"] = forbidden
	out.Signals["licenses.unknown_count"] = unknown
	out.Signals["licenses.allowed_count"] = allowed
	return out, nil
}

func licenseFinding(pkg, license, class, severity, msg string) Finding {
	return Finding{
		ControlID: LicensesControlID,
		RuleID:    LicensesControlID + "." + class,
		Severity:  severity,
		Message:   msg,
		Evidence: map[string]interface{}{
			"package":        pkg,
			"license":        license,
			"classification": class,
		},
	}
}

// IsDependencyFile reports whether p names a recognised dependency file.
func IsDependencyFile(p string) bool {
	for _, f := range DependencyFiles {
		if strings.HasSuffix(p, f) {
			return true
		}
	}
	return false
}

// ClassifyLicense places an SPDX identifier in the forbidden, allowed or
// unknown class.
func ClassifyLicense(license string, lists config.LicenseConfig) string {
	for _, l := range lists.Forbidden {
		if l == license {
			return LicenseForbidden
		}
	}
	for _, l := range lists.Allowed {
		if l == license {
			return LicenseAllowed
		}
	}
	return LicenseUnknown
}

// DetectLicenses returns package name to license for a dependency file.
// Formats without license data report UNKNOWN for every package.
func DetectLicenses(filePath, content string) map[string]string {
	switch path.Base(filePath) {
	case "package-lock.json":
		return parsePackageLock(content)
	case "requirements.txt":
		return parseRequirements(content)
	case "go.mod":
		return parseGoMod(filePath, content)
	}
	return map[string]string{}
}

type packageLock struct {
	Packages     map[string]lockEntry `json:"packages"`
	Dependencies map[string]lockEntry `json:"dependencies"`
}

type lockEntry struct {
	License string `json:"license"`
}

func parsePackageLock(content string) map[string]string {
	out := map[string]string{}
	var lock packageLock
	if err := json.Unmarshal([]byte(content), &lock); err != nil {
		return out
	}

	add := func(name string, e lockEntry) {
		if e.License == "" {
			e.License = LicenseUnknown
		}
		out[name] = e.License
	}

	if lock.Packages != nil {
		for key, e := range lock.Packages {
			if key == "" {
				continue
			}
			parts := strings.Split(key, "node_modules/")
			add(parts[len(parts)-1], e)
		}
		return out
	}
	for name, e := range lock.Dependencies {
		add(name, e)
	}
	return out
}

func parseRequirements(content string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, sep := range []string{"==", ">=", "<="} {
			line = strings.SplitN(line, sep, 2)[0]
		}
		if name := strings.TrimSpace(line); name != "" {
			out[name] = LicenseUnknown
		}
	}
	return out
}

// parseGoMod lists required modules. Fragments that do not parse as a
// complete go.mod, as produced by a partial diff, fall back to scanning
// require blocks line by line.
func parseGoMod(filePath, content string) map[string]string {
	out := map[string]string{}
	if f, err := modfile.ParseLax(filePath, []byte(content), nil); err == nil {
		for _, r := range f.Require {
			out[r.Mod.Path] = LicenseUnknown
		}
		return out
	}

	inRequire := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "require"):
			inRequire = strings.HasSuffix(line, "(")
			if fields := strings.Fields(line); !inRequire && len(fields) >= 3 {
				out[fields[1]] = LicenseUnknown
			}
		case inRequire && line == ")":
			inRequire = false
		case inRequire:
			if fields := strings.Fields(line); len(fields) >= 2 {
				out[fields[0]] = LicenseUnknown
			}
		}
	}
	return out
}
