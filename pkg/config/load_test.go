package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
policy:
  source_dir: "rules"
  compiled_dir: "out"
  workers: 8
  atomic: true
  debounce: "500ms"

controls:
  privileged_paths:
    auth: ["auth/*"]
  approval_requirements:
    - role: security
      count: 2
  reviewer_roles:
    alice: [security]

engine:
  traceability: false

evidence:
  enabled: true
  backend: "memory"

telemetry:
  logging:
    level: "debug"
    format: "json"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Policy.SourceDir != "rules" {
		t.Errorf("expected source dir %q, got %q", "rules", cfg.Policy.SourceDir)
	}
	if cfg.Policy.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Policy.Workers)
	}
	if !cfg.Policy.Atomic {
		t.Error("expected atomic builds")
	}
	if cfg.Policy.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %v", cfg.Policy.Debounce)
	}
	if got := cfg.Controls.PrivilegedPaths["auth"]; len(got) != 1 || got[0] != "auth/*" {
		t.Errorf("unexpected privileged paths: %v", got)
	}
	if len(cfg.Controls.ApprovalRequirements) != 1 || cfg.Controls.ApprovalRequirements[0].Count != 2 {
		t.Errorf("unexpected approval requirements: %+v", cfg.Controls.ApprovalRequirements)
	}
	if cfg.Engine.Traceability {
		t.Error("explicit false should override the default")
	}
	if !cfg.Evidence.Enabled || cfg.Evidence.Backend != "memory" {
		t.Errorf("unexpected evidence config: %+v", cfg.Evidence)
	}

	// Untouched sections keep their defaults.
	if cfg.Risk.ThresholdHigh != DefaultRiskThresholdHigh {
		t.Errorf("expected default high threshold, got %d", cfg.Risk.ThresholdHigh)
	}
	if len(cfg.Engine.OverrideLabels) != 3 {
		t.Errorf("expected default override labels, got %v", cfg.Engine.OverrideLabels)
	}
	if !cfg.Telemetry.Logging.RedactSecrets {
		t.Error("expected secret redaction to default to true")
	}
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Policy.CompiledDir != DefaultPolicyCompiledDir {
		t.Errorf("expected compiled dir %q, got %q", DefaultPolicyCompiledDir, cfg.Policy.CompiledDir)
	}
	if cfg.Evidence.SQLite.Driver != DefaultEvidenceSQLiteDriver {
		t.Errorf("expected driver %q, got %q", DefaultEvidenceSQLiteDriver, cfg.Evidence.SQLite.Driver)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "policy:\n  workers: [unclosed\n")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
evidence:
  backend: "postgres"
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "evidence.backend" {
		t.Errorf("expected evidence.backend error, got %v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
policy:
  source_dir: "rules"
`)

	t.Setenv("GATEKEEPER_POLICY_SOURCE_DIR", "env-rules")
	t.Setenv("GATEKEEPER_POLICY_WORKERS", "2")
	t.Setenv("GATEKEEPER_POLICY_DEBOUNCE", "1s")
	t.Setenv("GATEKEEPER_EVIDENCE_ENABLED", "true")
	t.Setenv("GATEKEEPER_ENGINE_OVERRIDE_LABELS", "break-glass, ,emergency")
	t.Setenv("GATEKEEPER_EVIDENCE_RETENTION_MAX_RECORDS", "5000")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Policy.SourceDir != "env-rules" {
		t.Errorf("expected env source dir, got %q", cfg.Policy.SourceDir)
	}
	if cfg.Policy.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Policy.Workers)
	}
	if cfg.Policy.Debounce != time.Second {
		t.Errorf("expected 1s debounce, got %v", cfg.Policy.Debounce)
	}
	if !cfg.Evidence.Enabled {
		t.Error("expected evidence enabled from env")
	}
	if got := cfg.Engine.OverrideLabels; len(got) != 2 || got[0] != "break-glass" || got[1] != "emergency" {
		t.Errorf("unexpected override labels: %v", got)
	}
	if cfg.Evidence.Retention.MaxRecords != 5000 {
		t.Errorf("expected max records 5000, got %d", cfg.Evidence.Retention.MaxRecords)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnvValues(t *testing.T) {
	t.Setenv("GATEKEEPER_POLICY_WORKERS", "many")
	t.Setenv("GATEKEEPER_POLICY_ATOMIC", "maybe")
	t.Setenv("GATEKEEPER_POLICY_DEBOUNCE", "soon")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Unparseable values leave the defaults in place.
	if cfg.Policy.Workers != DefaultPolicyWorkers {
		t.Errorf("expected default workers, got %d", cfg.Policy.Workers)
	}
	if cfg.Policy.Atomic {
		t.Error("expected atomic to stay false")
	}
	if cfg.Policy.Debounce != DefaultPolicyDebounce {
		t.Errorf("expected default debounce, got %v", cfg.Policy.Debounce)
	}
}

func TestLoadConfigWithEnvOverrides_ValidationAfterOverride(t *testing.T) {
	t.Setenv("GATEKEEPER_TELEMETRY_LOGGING_LEVEL", "verbose")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil {
		t.Fatal("expected validation error after override")
	}
	if !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("unexpected error: %v", err)
	}
}
