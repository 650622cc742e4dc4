package controls

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gatekeeper-hq/gatekeeper/pkg/config"
)

func TestPrivilegedChangeControl(t *testing.T) {
	cfg := &config.ControlsConfig{
		PrivilegedPaths: map[string][]string{
			"auth":       {"auth/*"},
			"payment":    {"*payment*"},
			"migrations": {"*.sql", "db/*"},
		},
	}
	diff := map[string]string{
		"auth/login.go":          "+x",
		"src/payment_service.go": "+x",
		"db/001_init.sql":        "+x",
		"README.md":              "+x",
	}

	set := runControl1(t, NewPrivilegedChangeControl(), &Context{Diff: diff, Config: cfg})

	if set.Signals["privileged.detected"] != true || set.Signals["privileged.count"] != 3 {
		t.Fatalf("signals = %v", set.Signals)
	}
	if got := set.Signals["privileged.categories"]; !reflect.DeepEqual(got, []string{"auth", "migrations", "payment"}) {
		t.Errorf("categories = %v", got)
	}
	if set.Signals["privileged.crypto.detected"] != false || set.Signals["privileged.crypto.count"] != 0 {
		t.Errorf("crypto signals = %v", set.Signals)
	}
	if set.Signals["privileged.migrations.count"] != 1 {
		t.Errorf("migrations count = %v", set.Signals["privileged.migrations.count"])
	}

	var migration *Finding
	for i := range set.Findings {
		if set.Findings[i].RuleID == "SEC-PR-003.MIGRATIONS" {
			migration = &set.Findings[i]
		}
	}
	if migration == nil {
		t.Fatal("no migrations finding")
	}
	if !reflect.DeepEqual(migration.Evidence["patterns_matched"], []string{"*.sql", "db/*"}) {
		t.Errorf("patterns_matched = %v", migration.Evidence["patterns_matched"])
	}
	if migration.Severity != SeverityHigh || migration.Evidence["requires_security_review"] != true {
		t.Errorf("finding = %+v", migration)
	}
}

func TestPrivilegedChangeControl_Unconfigured(t *testing.T) {
	set := runControl1(t, NewPrivilegedChangeControl(), &Context{Diff: map[string]string{"auth/x.go": "+"}})
	if set.Signals["privileged.detected"] != false {
		t.Errorf("signals = %v", set.Signals)
	}
	for _, cat := range PrivilegedCategories {
		if _, ok := set.Signals["privileged."+cat+".detected"]; !ok {
			t.Errorf("missing signal for category %s", cat)
		}
	}
}

func TestMatchPathPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"auth/login.py", "auth/login.py", true},
		{"auth/login.py", "auth/*", true},
		{"src/auth/login.py", "auth/*", false},
		{"db/001.sql", "*.sql", true},
		{"db/001.sql.bak", "*.sql", false},
		{"lib/migration_tool.go", "*migration*", true},
		{"lib/tool.go", "*migration*", false},
		{"anything", "*", true},
	}
	for _, tt := range tests {
		if got := MatchPathPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("MatchPathPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestApprovalsControl(t *testing.T) {
	cfg := &config.ControlsConfig{
		ApprovalRequirements: []config.ApprovalRequirement{
			{Role: "security", Count: 1},
			{Role: "developer", Count: 2},
		},
		ReviewerRoles: map[string][]string{
			"alice": {"security", "developer"},
		},
	}
	reviews := StaticReviews{
		{Reviewer: "alice", State: ReviewApproved, CommitID: "head"},
		{Reviewer: "bob", State: ReviewApproved, CommitID: "head"},
		{Reviewer: "bob", State: ReviewApproved, CommitID: "head"},
		{Reviewer: "carol", State: ReviewApproved, CommitID: "old"},
		{Reviewer: "dave", State: "CHANGES_REQUESTED", CommitID: "head"},
	}

	t.Run("satisfied", func(t *testing.T) {
		set := runControl1(t, NewApprovalsControl(), &Context{HeadSHA: "head", Config: cfg, Reviews: reviews})
		if set.Signals["approvals.satisfied"] != true || set.Signals["approvals.unsatisfied_count"] != 0 {
			t.Fatalf("signals = %v", set.Signals)
		}
		if set.Signals["approvals.developer.count"] != 2 || set.Signals["approvals.developer.required"] != 2 {
			t.Errorf("developer signals = %v", set.Signals)
		}
		dev := set.Findings[1]
		if dev.Severity != SeverityLow || dev.Message != "Approval requirement satisfied: 2 developer approval(s)" {
			t.Errorf("finding = %+v", dev)
		}
		if !reflect.DeepEqual(dev.Evidence["stale_reviewers"], []string{"carol"}) {
			t.Errorf("stale = %v", dev.Evidence["stale_reviewers"])
		}
	})

	t.Run("stale head", func(t *testing.T) {
		set := runControl1(t, NewApprovalsControl(), &Context{HeadSHA: "newer", Config: cfg, Reviews: reviews})
		if set.Signals["approvals.satisfied"] != false || set.Signals["approvals.unsatisfied_count"] != 2 {
			t.Fatalf("signals = %v", set.Signals)
		}
		sec := set.Findings[0]
		if sec.RuleID != "SEC-PR-004.SECURITY" || sec.Severity != SeverityHigh {
			t.Errorf("security finding = %+v", sec)
		}
		if sec.Message != "Missing 1 required security approval(s)" {
			t.Errorf("Message = %q", sec.Message)
		}
		if set.Findings[1].Severity != SeverityMedium {
			t.Errorf("developer finding severity = %s", set.Findings[1].Severity)
		}
	})

	t.Run("no requirements", func(t *testing.T) {
		set := runControl1(t, NewApprovalsControl(), &Context{Config: &config.ControlsConfig{}})
		want := map[string]interface{}{"approvals.required": false, "approvals.satisfied": true}
		if !reflect.DeepEqual(set.Signals, want) {
			t.Errorf("signals = %v", set.Signals)
		}
	})
}

type failingReviews struct{}

func (failingReviews) Reviews(context.Context, string, string) ([]Review, error) {
	return nil, errors.New("provider down")
}

func TestApprovalsControl_ReviewSourceError(t *testing.T) {
	cfg := &config.ControlsConfig{ApprovalRequirements: []config.ApprovalRequirement{{Role: "security", Count: 1}}}
	_, err := NewApprovalsControl().Execute(context.Background(), &Context{Config: cfg, Reviews: failingReviews{}})
	if err == nil {
		t.Error("expected review source error")
	}
}

func TestLicensesControl(t *testing.T) {
	lock := `{
  "lockfileVersion": 3,
  "packages": {
    "": {"name": "app", "license": "GPL-3.0"},
    "node_modules/left-pad": {"license": "MIT"},
    "node_modules/gpl-lib": {"license": "GPL-3.0"},
    "node_modules/a/node_modules/nested": {}
  }
}`
	goMod := `--- a/go.mod
+++ b/go.mod
@@ -3,4 +3,5 @@
 go 1.22
 
 require (
+	github.com/foo/bar v1.0.0
 	github.com/baz/qux v0.1.0`

	set := runControl1(t, NewLicensesControl(), &Context{
		Config: &config.ControlsConfig{},
		Diff: map[string]string{
			"web/package-lock.json": lock,
			"go.mod":                goMod,
			"Cargo.lock":            "+whatever",
			"main.go":               "+package main",
		},
	})

	want := map[string]interface{}{
		"licenses.scanned":         true,
		"licenses.total_count":     5,
		"licenses.forbidden_count": 1,
		"licenses.unknown_count":   3,
		"licenses.allowed_count":   1,
	}
	if !reflect.DeepEqual(set.Signals, want) {
		t.Errorf("signals = %v, want %v", set.Signals, want)
	}

	var forbidden []Finding
	for _, f := range set.Findings {
		if f.RuleID == "OSS-PR-001.FORBIDDEN" {
			forbidden = append(forbidden, f)
		}
	}
	if len(forbidden) != 1 || forbidden[0].Evidence["package"] != "gpl-lib" || forbidden[0].Severity != SeverityHigh {
		t.Errorf("forbidden findings = %+v", forbidden)
	}
}

func TestDetectLicenses(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    map[string]string
	}{
		{
			name:    "package-lock v1",
			path:    "package-lock.json",
			content: `{"dependencies": {"x": {"license": "ISC"}, "y": {}}}`,
			want:    map[string]string{"x": "ISC", "y": "UNKNOWN"},
		},
		{
			name:    "invalid json",
			path:    "package-lock.json",
			content: `{`,
			want:    map[string]string{},
		},
		{
			name:    "requirements",
			path:    "requirements.txt",
			content: "# comment\nrequests==2.0\nflask>=1.0\n\nnumpy",
			want:    map[string]string{"requests": "UNKNOWN", "flask": "UNKNOWN", "numpy": "UNKNOWN"},
		},
		{
			name:    "complete go.mod",
			path:    "go.mod",
			content: "module m\n\ngo 1.22\n\nrequire (\n\tgithub.com/a/b v1.0.0\n)\n\nrequire github.com/c/d v0.2.0\n",
			want:    map[string]string{"github.com/a/b": "UNKNOWN", "github.com/c/d": "UNKNOWN"},
		},
		{
			name:    "unparsed format",
			path:    "Gemfile.lock",
			content: "GEM\n  specs:\n",
			want:    map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLicenses(tt.path, tt.content); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectLicenses() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvBoundaryControl(t *testing.T) {
	cfg := &config.ControlsConfig{
		Environment: config.EnvironmentConfig{
			Production:   []string{`prod\.example\.com`, "PROD_DB_PASSWORD"},
			NonprodPaths: []string{"tests/", "staging"},
		},
	}
	leak := "@@ -1,2 +1,3 @@\n import x\n+URL = \"https://PROD.example.com/api\"\n-old = 1"

	set := runControl1(t, NewEnvBoundaryControl(), &Context{
		Config: cfg,
		Diff: map[string]string{
			"tests/config_test.py": leak,
			"app/config.py":        leak,
		},
	})

	if set.Signals["env_boundary.violations"] != 1 || set.Signals["env_boundary.has_violations"] != true {
		t.Fatalf("signals = %v", set.Signals)
	}
	f := set.Findings[0]
	if f.RuleID != "ENV-PR-001.PROD_LEAK" || f.FilePath != "tests/config_test.py" || f.Line != 3 {
		t.Errorf("finding = %+v", f)
	}
	if f.Evidence["pattern"] != `prod\.example\.com` || f.Evidence["violation_type"] != "prod_config_in_nonprod" {
		t.Errorf("evidence = %v", f.Evidence)
	}
}

func TestEnvBoundaryControl_Unconfigured(t *testing.T) {
	set := runControl1(t, NewEnvBoundaryControl(), &Context{
		Config: &config.ControlsConfig{Environment: config.EnvironmentConfig{Production: []string{"x"}}},
		Diff:   map[string]string{"tests/a": "+x"},
	})
	want := map[string]interface{}{"env_boundary.configured": false, "env_boundary.violations": 0}
	if !reflect.DeepEqual(set.Signals, want) {
		t.Errorf("signals = %v", set.Signals)
	}
}
