// Package loader reads compiled rule artifacts for the evaluation engine.
//
// Every .yaml or .yml file below the rule directory is decoded into a Rule.
// Files that are too large, not UTF-8, not valid YAML or not a valid rule
// are logged and skipped; they never fail the whole load. Rules with
// enabled: false are dropped. The remaining rules are sorted by
// metadata.priority (descending) and then policy_id so evaluation order is
// deterministic. Duplicate ids are kept.
package loader
