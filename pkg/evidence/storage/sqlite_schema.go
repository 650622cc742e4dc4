package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the evidence database schema.
// Timestamps are Unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,

    -- Change
    repository TEXT NOT NULL DEFAULT '',
    change_id TEXT NOT NULL DEFAULT '',
    head_sha TEXT NOT NULL DEFAULT '',

    -- Timestamps
    evaluated_at INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,

    -- Outcome
    overall_status TEXT NOT NULL,
    overridden BOOLEAN NOT NULL DEFAULT 0,
    override_reason TEXT,
    original_status TEXT,
    risk_score INTEGER NOT NULL DEFAULT 0,
    risk_level TEXT,
    rule_count INTEGER NOT NULL DEFAULT 0,
    findings_count INTEGER NOT NULL DEFAULT 0,
    triggered TEXT NOT NULL DEFAULT '[]',

    -- Provenance
    policy_digest TEXT,
    payload TEXT NOT NULL,
    payload_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_evaluated_at ON evaluations(evaluated_at);
CREATE INDEX IF NOT EXISTS idx_evaluations_repository ON evaluations(repository);
CREATE INDEX IF NOT EXISTS idx_evaluations_change_id ON evaluations(change_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_overall_status ON evaluations(overall_status);
CREATE INDEX IF NOT EXISTS idx_evaluations_risk_score ON evaluations(risk_score);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the latest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `id, repository, change_id, head_sha,
	evaluated_at, recorded_at,
	overall_status, overridden, override_reason, original_status,
	risk_score, risk_level, rule_count, findings_count, triggered,
	policy_digest, payload, payload_hash`

// sortColumns maps query sort fields to columns.
var sortColumns = map[string]string{
	"evaluated_at": "evaluated_at",
	"recorded_at":  "recorded_at",
	"risk_score":   "risk_score",
}
