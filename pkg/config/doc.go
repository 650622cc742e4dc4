// Package config provides configuration management for gatekeeper.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("gatekeeper.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("gatekeeper.yaml")
//
// An empty path loads the defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GATEKEEPER_SECTION_FIELD.
// For example:
//
//   - GATEKEEPER_POLICY_SOURCE_DIR overrides policy.source_dir
//   - GATEKEEPER_ENGINE_OVERRIDE_LABELS overrides engine.override_labels (comma separated)
//   - GATEKEEPER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	policy:
//	  source_dir: "policies"
//	  compiled_dir: "policies/compiled"
//	  atomic: true
//
//	controls:
//	  privileged_paths:
//	    auth: ["auth/*", "*login*"]
//	    migrations: ["*.sql"]
//	  approval_requirements:
//	    - role: security
//	      count: 1
//	  reviewer_roles:
//	    alice: [security]
//
//	evidence:
//	  enabled: true
//	  backend: "sqlite"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
