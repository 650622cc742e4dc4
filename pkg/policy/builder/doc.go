// Package builder compiles a directory of policy sources into rule
// artifacts and a build manifest.
//
// Each .dsl file runs through the lexer, parser, validator and compiler on
// a bounded worker pool. Workers write one YAML artifact per rule; once the
// pool drains a single writer merges the per-file results into
// manifest.json:
//
//	{
//	  "compiled_at": "2026-01-02T03:04:05Z",
//	  "compiler_version": "1.0.0",
//	  "digest": "<sha256 of the canonical policies object>",
//	  "policies": {
//	    "SEC-PR-001": {"source_hash": "...", "version": "1.0.0", "rules": ["SEC-PR-001.R1"]}
//	  }
//	}
//
// A file that fails is reported as "Failed to process <path>: <reason>" and
// the walk continues. The build is unsuccessful if any file failed. By
// default artifacts of the files that did compile stay in place; with
// Options.Atomic the output is staged and only published on full success.
//
// DiffManifests compares two builds and classifies version moves using
// semantic versioning.
package builder
