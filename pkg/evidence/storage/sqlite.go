package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

// Driver names accepted in SQLiteConfig.Driver.
const (
	DriverModernc = "modernc"
	DriverMattn   = "mattn"
)

// sqlDriverNames maps our driver names to database/sql registrations.
var sqlDriverNames = map[string]string{
	DriverModernc: "sqlite",
	DriverMattn:   "sqlite3",
}

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		Driver:       DriverModernc,
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Option configures a SQLite backend.
type Option func(*SQLiteStorage)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = logging.Component(logger, "evidence.storage.sqlite") }
}

// SQLiteStorage implements evidence.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

var _ evidence.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens the database, applies pragmas and creates the
// schema.
func NewSQLiteStorage(config *SQLiteConfig, opts ...Option) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.MaxOpenConns < 1 {
		config.MaxOpenConns = 1
	}

	driverName, ok := sqlDriverNames[config.Driver]
	if !ok {
		return nil, evidence.NewStorageError(BackendSQLite, "open",
			fmt.Errorf("unknown driver %q", config.Driver))
	}

	db, err := sql.Open(driverName, dsn(config))
	if err != nil {
		return nil, evidence.NewStorageError(BackendSQLite, "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logging.Component(nil, "evidence.storage.sqlite"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

// dsn carries the pragmas in the connection string so that every pooled
// connection gets them. The two drivers spell them differently.
func dsn(config *SQLiteConfig) string {
	busy := config.BusyTimeout.Milliseconds()
	params := url.Values{}
	switch config.Driver {
	case DriverMattn:
		params.Set("_busy_timeout", strconv.FormatInt(busy, 10))
		if config.WALMode {
			params.Set("_journal_mode", "WAL")
		}
	default:
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
		if config.WALMode {
			params.Add("_pragma", "journal_mode(WAL)")
		}
	}
	return "file:" + config.Path + "?" + params.Encode()
}

func (s *SQLiteStorage) initialize() error {
	if err := s.db.Ping(); err != nil {
		return evidence.NewStorageError(BackendSQLite, "open", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError(BackendSQLite, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError(BackendSQLite, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return evidence.NewStorageError(BackendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError(BackendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store inserts a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.EvaluationRecord) error {
	triggered := record.Triggered
	if triggered == nil {
		triggered = []evidence.RuleOutcome{}
	}
	triggeredJSON, err := json.Marshal(triggered)
	if err != nil {
		return evidence.NewStorageError(BackendSQLite, "store", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Repository, record.ChangeID, record.HeadSHA,
		record.EvaluatedAt.UnixNano(), record.RecordedAt.UnixNano(),
		record.OverallStatus, record.Overridden, nullString(record.OverrideReason), nullString(record.OriginalStatus),
		record.RiskScore, record.RiskLevel, record.RuleCount, record.FindingsCount, string(triggeredJSON),
		nullString(record.PolicyDigest), string(record.Payload), record.PayloadHash,
	)
	if err != nil {
		return evidence.NewStorageError(BackendSQLite, "store", err)
	}
	return nil
}

// Get returns one record.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*evidence.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM evaluations WHERE id = ?", id)
	if err != nil {
		return nil, evidence.NewStorageError(BackendSQLite, "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, evidence.NewStorageError(BackendSQLite, "get", err)
		}
		return nil, evidence.ErrNotFound
	}
	record, err := scanRow(rows)
	if err != nil {
		return nil, evidence.NewStorageError(BackendSQLite, "scan", err)
	}
	return record, nil
}

// Query retrieves matching records.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.EvaluationRecord, error) {
	sqlQuery, args := buildSelect(query)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, evidence.NewStorageError(BackendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*evidence.EvaluationRecord{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, evidence.NewStorageError(BackendSQLite, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError(BackendSQLite, "query", err)
	}
	return records, nil
}

// QueryStream delivers matching records as rows are read.
func (s *SQLiteStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.EvaluationRecord, <-chan error, error) {
	recordsCh := make(chan *evidence.EvaluationRecord, 100)
	errCh := make(chan error, 1)

	sqlQuery, args := buildSelect(query)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
		if err != nil {
			errCh <- evidence.NewStorageError(BackendSQLite, "query_stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			record, err := scanRow(rows)
			if err != nil {
				errCh <- evidence.NewStorageError(BackendSQLite, "scan", err)
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- evidence.NewStorageError(BackendSQLite, "query_stream", err)
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhere(query)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluations"+where, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError(BackendSQLite, "count", err)
	}
	return count, nil
}

// Delete removes matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhere(query)

	result, err := s.db.ExecContext(ctx, "DELETE FROM evaluations"+where, args...)
	if err != nil {
		return 0, evidence.NewStorageError(BackendSQLite, "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError(BackendSQLite, "delete", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError(BackendSQLite, "close", err)
	}
	s.logger.Debug("SQLite storage closed")
	return nil
}

func buildSelect(query *evidence.Query) (string, []interface{}) {
	where, args := buildWhere(query)

	column, ok := sortColumns[query.SortBy]
	if !ok {
		column = "evaluated_at"
	}
	order := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		order = "ASC"
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + selectColumns + " FROM evaluations")
	sb.WriteString(where)
	fmt.Fprintf(&sb, " ORDER BY %s %s, id %s", column, order, order)

	switch {
	case query.Limit > 0:
		fmt.Fprintf(&sb, " LIMIT %d", query.Limit)
	case query.Offset > 0:
		sb.WriteString(" LIMIT -1")
	}
	if query.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", query.Offset)
	}
	return sb.String(), args
}

// buildWhere returns " WHERE ..." (or "") and its arguments.
func buildWhere(query *evidence.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if len(query.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(query.IDs)), ",")
		conditions = append(conditions, "id IN ("+placeholders+")")
		for _, id := range query.IDs {
			args = append(args, id)
		}
	}

	if query.StartTime != nil {
		conditions = append(conditions, "evaluated_at >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "evaluated_at <= ?")
		args = append(args, query.EndTime.UnixNano())
	}

	if query.Repository != "" {
		conditions = append(conditions, "repository = ?")
		args = append(args, query.Repository)
	}
	if query.ChangeID != "" {
		conditions = append(conditions, "change_id = ?")
		args = append(args, query.ChangeID)
	}
	if query.OverallStatus != "" {
		conditions = append(conditions, "overall_status = ?")
		args = append(args, query.OverallStatus)
	}
	if query.Overridden != nil {
		conditions = append(conditions, "overridden = ?")
		args = append(args, *query.Overridden)
	}
	if query.MinRiskScore != nil {
		conditions = append(conditions, "risk_score >= ?")
		args = append(args, *query.MinRiskScore)
	}
	if query.RuleID != "" {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM json_each(evaluations.triggered) WHERE json_extract(json_each.value, '$.rule_id') = ?)")
		args = append(args, query.RuleID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*evidence.EvaluationRecord, error) {
	var record evidence.EvaluationRecord
	var evaluatedAt, recordedAt int64
	var overrideReason, originalStatus, riskLevel, policyDigest sql.NullString
	var triggered, payload string

	err := rows.Scan(
		&record.ID, &record.Repository, &record.ChangeID, &record.HeadSHA,
		&evaluatedAt, &recordedAt,
		&record.OverallStatus, &record.Overridden, &overrideReason, &originalStatus,
		&record.RiskScore, &riskLevel, &record.RuleCount, &record.FindingsCount, &triggered,
		&policyDigest, &payload, &record.PayloadHash,
	)
	if err != nil {
		return nil, err
	}

	record.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	record.RecordedAt = time.Unix(0, recordedAt).UTC()
	record.OverrideReason = overrideReason.String
	record.OriginalStatus = originalStatus.String
	record.RiskLevel = riskLevel.String
	record.PolicyDigest = policyDigest.String
	record.Payload = json.RawMessage(payload)

	if err := json.Unmarshal([]byte(triggered), &record.Triggered); err != nil {
		return nil, fmt.Errorf("triggered column: %w", err)
	}
	return &record, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// IsCgoUnavailable reports whether err comes from the mattn driver built
// without cgo.
func IsCgoUnavailable(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			return true
		}
	}
	return false
}
