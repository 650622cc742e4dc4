package config

import "time"

// Config is the root configuration structure for gatekeeper.
// It contains the settings for the policy build pipeline, the built-in
// controls, the risk scorer, the evaluation engine, evidence storage and
// telemetry.
type Config struct {
	// Policy contains configuration for policy sources, compilation output,
	// build concurrency and watch mode.
	Policy PolicyConfig `yaml:"policy"`

	// Controls contains the inputs of the built-in controls: privileged
	// path categories, approval requirements, environment boundaries and
	// license lists.
	Controls ControlsConfig `yaml:"controls"`

	// Risk contains thresholds and weights of the heuristic risk scorer.
	Risk RiskConfig `yaml:"risk"`

	// Engine contains configuration for rule evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Evidence contains configuration for persisting evaluation records
	// including backend selection and retention.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PolicyConfig contains configuration for policy sources and compilation.
type PolicyConfig struct {
	// SourceDir is the directory scanned recursively for .dsl files.
	// Default: "policies"
	SourceDir string `yaml:"source_dir"`

	// CompiledDir is the directory compiled rule artifacts and the build
	// manifest are written to, and the directory the engine loads from.
	// Default: "policies/compiled"
	CompiledDir string `yaml:"compiled_dir"`

	// Workers is the number of policy files compiled concurrently.
	// Default: 4
	Workers int `yaml:"workers"`

	// Atomic stages all build output in a temporary directory and publishes
	// it only when every source file compiled.
	// Default: false
	Atomic bool `yaml:"atomic"`

	// MaxFileSize is the largest accepted policy source or artifact, in bytes.
	// Default: 1048576 (1MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Watch enables rebuilding when source files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period before a rebuild is triggered in watch mode.
	// Default: 200ms
	Debounce time.Duration `yaml:"debounce"`

	// Git optionally configures a git repository as the policy source.
	Git GitConfig `yaml:"git"`
}

// GitConfig contains configuration for git-backed policy sources.
type GitConfig struct {
	// Repository is the repository URL. Empty disables the git source.
	Repository string `yaml:"repository"`

	// Branch is the branch to check out.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the policy directory inside the repository.
	// Default: "." (repository root)
	Path string `yaml:"path"`

	// CloneDir is the local working copy location.
	// Default: "data/policy-repo"
	CloneDir string `yaml:"clone_dir"`

	// Token is an optional access token for HTTPS authentication.
	Token string `yaml:"token"`

	// SSHKeyPath is an optional private key for SSH authentication.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// Timeout bounds clone and pull operations.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// ControlsConfig contains configuration for the built-in controls.
type ControlsConfig struct {
	// PrivilegedPaths maps a category (auth, payment, crypto, migrations,
	// infra) to file patterns. Patterns support exact match, "prefix*",
	// "*suffix" and "*contains*".
	PrivilegedPaths map[string][]string `yaml:"privileged_paths"`

	// ApprovalRequirements lists the reviews a change needs per role.
	ApprovalRequirements []ApprovalRequirement `yaml:"approval_requirements"`

	// ReviewerRoles maps reviewer usernames to their roles. Reviewers not
	// listed have the "developer" role.
	ReviewerRoles map[string][]string `yaml:"reviewer_roles"`

	// Environment configures the environment boundary control.
	Environment EnvironmentConfig `yaml:"environment_patterns"`

	// Licenses configures license classification.
	Licenses LicenseConfig `yaml:"licenses"`

	// Timeout bounds a full registry run.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// ApprovalRequirement is the number of approvals required from a role.
type ApprovalRequirement struct {
	Role  string `yaml:"role"`
	Count int    `yaml:"count"`
}

// EnvironmentConfig lists production patterns that must not appear in
// non-production paths.
type EnvironmentConfig struct {
	// Production contains case-insensitive regular expressions.
	Production []string `yaml:"production"`

	// NonprodPaths contains path fragments that mark a file as non-production.
	NonprodPaths []string `yaml:"nonprod_paths"`
}

// LicenseConfig contains SPDX identifiers used to classify dependencies.
type LicenseConfig struct {
	// Forbidden licenses produce HIGH findings.
	// Default: GPL-2.0, GPL-3.0, AGPL-3.0, LGPL-2.1, LGPL-3.0
	Forbidden []string `yaml:"forbidden"`

	// Allowed licenses produce no findings. Anything else is unknown.
	// Default: MIT, Apache-2.0, BSD-2-Clause, BSD-3-Clause, ISC, 0BSD
	Allowed []string `yaml:"allowed"`
}

// RiskConfig contains configuration for the heuristic risk scorer.
type RiskConfig struct {
	// ThresholdHigh is the minimum score classified HIGH.
	// Default: 75
	ThresholdHigh int `yaml:"threshold_high"`

	// ThresholdMedium is the minimum score classified MEDIUM.
	// Default: 40
	ThresholdMedium int `yaml:"threshold_medium"`

	// Weights are the points added per heuristic.
	Weights RiskWeights `yaml:"weights"`

	// LargeChangeLOC is the added plus deleted line count above which a
	// change counts as large.
	// Default: 400
	LargeChangeLOC int `yaml:"large_change_loc"`

	// CriticalPaths are path fragments that mark a file as critical.
	// Default: auth/, db/, payments/, security/, api/v1/
	CriticalPaths []string `yaml:"critical_paths"`

	// TestPaths are path fragments that mark a file as a test.
	// Default: tests/, test/, __tests__/
	TestPaths []string `yaml:"test_paths"`
}

// RiskWeights contains the score contribution of each heuristic.
type RiskWeights struct {
	// Default: 25
	CriticalPath int `yaml:"critical_path"`
	// Default: 20
	HighChurn int `yaml:"high_churn"`
	// Default: 25
	LargeChange int `yaml:"large_change"`
	// Default: 25
	NoTests int `yaml:"no_tests"`
}

// EngineConfig contains configuration for the evaluation engine.
type EngineConfig struct {
	// Workers is the number of rules evaluated concurrently.
	// Default: 4
	Workers int `yaml:"workers"`

	// OverrideLabels force a COMPLIANT outcome when present on a change.
	// Default: compliance-override, emergency, hotfix-approved
	OverrideLabels []string `yaml:"override_labels"`

	// Traceability enriches triggered results with compiled metadata.
	// Default: true
	Traceability bool `yaml:"traceability"`
}

// EvidenceConfig contains configuration for evaluation records.
type EvidenceConfig struct {
	// Enabled controls whether evaluation records are persisted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage implementation.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention contains pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains configuration for the SQLite evidence backend.
type SQLiteConfig struct {
	// Path is the database file location.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "modernc" (pure Go), "mattn" (cgo)
	// Default: "modernc"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the connection pool size.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains evidence pruning configuration.
type RetentionConfig struct {
	// Days is the record age after which records are pruned (0 keeps forever).
	// Default: 90
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored records (0 = unlimited).
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is the cron expression for automatic pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// ArchiveDir receives a JSON export of records before they are pruned.
	// Empty disables archiving.
	ArchiveDir string `yaml:"archive_dir"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks attribute values that look like credentials.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "gatekeeper"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "policy"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for build and evaluation
	// duration (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}
