package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicySourceDir   = "policies"
	DefaultPolicyCompiledDir = "policies/compiled"
	DefaultPolicyWorkers     = 4
	DefaultPolicyMaxFileSize = int64(1048576) // 1MB
	DefaultPolicyDebounce    = 200 * time.Millisecond
	DefaultGitBranch         = "main"
	DefaultGitPath           = "."
	DefaultGitCloneDir       = "data/policy-repo"
	DefaultGitTimeout        = 60 * time.Second

	// Controls defaults
	DefaultControlsTimeout = 30 * time.Second

	// Risk defaults
	DefaultRiskThresholdHigh      = 75
	DefaultRiskThresholdMedium    = 40
	DefaultRiskWeightCriticalPath = 25
	DefaultRiskWeightHighChurn    = 20
	DefaultRiskWeightLargeChange  = 25
	DefaultRiskWeightNoTests      = 25
	DefaultRiskLargeChangeLOC     = 400

	// Engine defaults
	DefaultEngineWorkers      = 4
	DefaultEngineTraceability = true

	// Evidence defaults
	DefaultEvidenceEnabled            = false
	DefaultEvidenceBackend            = "sqlite"
	DefaultEvidenceSQLitePath         = "data/evidence.db"
	DefaultEvidenceSQLiteDriver       = "modernc"
	DefaultEvidenceSQLiteMaxOpenConns = 10
	DefaultEvidenceSQLiteBusyTimeout  = 5 * time.Second
	DefaultEvidenceRetentionDays      = 90
	DefaultEvidenceRetentionSchedule  = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultLoggingRedactSecrets = true
	DefaultMetricsEnabled       = true
	DefaultMetricsNamespace     = "gatekeeper"
	DefaultMetricsSubsystem     = "policy"
)

var (
	// DefaultOverrideLabels are the change labels that force a COMPLIANT outcome.
	DefaultOverrideLabels = []string{"compliance-override", "emergency", "hotfix-approved"}

	// DefaultCriticalPaths mark files whose change raises the risk score.
	DefaultCriticalPaths = []string{"auth/", "db/", "payments/", "security/", "api/v1/"}

	// DefaultTestPaths mark test files.
	DefaultTestPaths = []string{"tests/", "test/", "__tests__/"}

	// DefaultForbiddenLicenses are copyleft licenses rejected by default.
	DefaultForbiddenLicenses = []string{"GPL-2.0", "GPL-3.0", "AGPL-3.0", "LGPL-2.1", "LGPL-3.0"}

	// DefaultAllowedLicenses are permissive licenses accepted by default.
	DefaultAllowedLicenses = []string{"MIT", "Apache-2.0", "BSD-2-Clause", "BSD-3-Clause", "ISC", "0BSD"}

	// DefaultDurationBuckets are histogram buckets in seconds.
	DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
)

// NewDefaultConfig returns a configuration with every default applied.
// Boolean options whose default is true are only settable through this
// constructor, so LoadConfig decodes the file on top of it.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Engine.Traceability = DefaultEngineTraceability
	cfg.Evidence.Enabled = DefaultEvidenceEnabled
	cfg.Telemetry.Logging.RedactSecrets = DefaultLoggingRedactSecrets
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyPolicyDefaults(&cfg.Policy)
	applyControlsDefaults(&cfg.Controls)
	applyRiskDefaults(&cfg.Risk)

	// Engine defaults
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = DefaultEngineWorkers
	}
	if len(cfg.Engine.OverrideLabels) == 0 {
		cfg.Engine.OverrideLabels = append([]string(nil), DefaultOverrideLabels...)
	}

	applyEvidenceDefaults(&cfg.Evidence)

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
}

func applyPolicyDefaults(p *PolicyConfig) {
	if p.SourceDir == "" {
		p.SourceDir = DefaultPolicySourceDir
	}
	if p.CompiledDir == "" {
		p.CompiledDir = DefaultPolicyCompiledDir
	}
	if p.Workers == 0 {
		p.Workers = DefaultPolicyWorkers
	}
	if p.MaxFileSize == 0 {
		p.MaxFileSize = DefaultPolicyMaxFileSize
	}
	if p.Debounce == 0 {
		p.Debounce = DefaultPolicyDebounce
	}

	// Git defaults only matter once a repository is configured, but are
	// applied unconditionally so env overrides see a complete struct.
	if p.Git.Branch == "" {
		p.Git.Branch = DefaultGitBranch
	}
	if p.Git.Path == "" {
		p.Git.Path = DefaultGitPath
	}
	if p.Git.CloneDir == "" {
		p.Git.CloneDir = DefaultGitCloneDir
	}
	if p.Git.Timeout == 0 {
		p.Git.Timeout = DefaultGitTimeout
	}
}

func applyControlsDefaults(c *ControlsConfig) {
	if c.Timeout == 0 {
		c.Timeout = DefaultControlsTimeout
	}
	if len(c.Licenses.Forbidden) == 0 {
		c.Licenses.Forbidden = append([]string(nil), DefaultForbiddenLicenses...)
	}
	if len(c.Licenses.Allowed) == 0 {
		c.Licenses.Allowed = append([]string(nil), DefaultAllowedLicenses...)
	}
}

func applyRiskDefaults(r *RiskConfig) {
	if r.ThresholdHigh == 0 {
		r.ThresholdHigh = DefaultRiskThresholdHigh
	}
	if r.ThresholdMedium == 0 {
		r.ThresholdMedium = DefaultRiskThresholdMedium
	}
	if r.Weights.CriticalPath == 0 {
		r.Weights.CriticalPath = DefaultRiskWeightCriticalPath
	}
	if r.Weights.HighChurn == 0 {
		r.Weights.HighChurn = DefaultRiskWeightHighChurn
	}
	if r.Weights.LargeChange == 0 {
		r.Weights.LargeChange = DefaultRiskWeightLargeChange
	}
	if r.Weights.NoTests == 0 {
		r.Weights.NoTests = DefaultRiskWeightNoTests
	}
	if r.LargeChangeLOC == 0 {
		r.LargeChangeLOC = DefaultRiskLargeChangeLOC
	}
	if len(r.CriticalPaths) == 0 {
		r.CriticalPaths = append([]string(nil), DefaultCriticalPaths...)
	}
	if len(r.TestPaths) == 0 {
		r.TestPaths = append([]string(nil), DefaultTestPaths...)
	}
}

func applyEvidenceDefaults(e *EvidenceConfig) {
	if e.Backend == "" {
		e.Backend = DefaultEvidenceBackend
	}
	if e.SQLite.Path == "" {
		e.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if e.SQLite.Driver == "" {
		e.SQLite.Driver = DefaultEvidenceSQLiteDriver
	}
	if e.SQLite.MaxOpenConns == 0 {
		e.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if e.SQLite.BusyTimeout == 0 {
		e.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}
	if e.Retention.Days == 0 {
		e.Retention.Days = DefaultEvidenceRetentionDays
	}
	if e.Retention.Schedule == "" {
		e.Retention.Schedule = DefaultEvidenceRetentionSchedule
	}
}
