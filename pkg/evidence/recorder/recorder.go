package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
)

// ErrClosed is returned when recording after Close.
var ErrClosed = errors.New("recorder is closed")

// Config contains configuration for the recorder.
type Config struct {
	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds both enqueueing and each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Change identifies what was evaluated.
type Change struct {
	Repository   string
	ChangeID     string
	HeadSHA      string
	PolicyDigest string
}

// ChangeFromInput reads repo, change_id and head_sha from evaluation input.
func ChangeFromInput(input map[string]interface{}) Change {
	str := func(key string) string {
		s, _ := input[key].(string)
		return s
	}
	return Change{
		Repository: str("repo"),
		ChangeID:   str("change_id"),
		HeadSHA:    str("head_sha"),
	}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logging.Component(logger, "evidence.recorder") }
}

// WithMetrics records write outcomes.
func WithMetrics(m *metrics.EvidenceMetrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(r *Recorder) {
		if cfg != nil {
			r.config = cfg
		}
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder writes evaluation records asynchronously.
type Recorder struct {
	storage evidence.Storage
	config  *Config
	logger  *slog.Logger
	metrics *metrics.EvidenceMetrics
	now     func() time.Time

	queue chan *evidence.EvaluationRecord
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New creates a recorder and starts its worker.
func New(storage evidence.Storage, opts ...Option) *Recorder {
	r := &Recorder{
		storage: storage,
		config:  DefaultConfig(),
		logger:  logging.Component(nil, "evidence.recorder"),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.AsyncBuffer < 1 {
		r.config.AsyncBuffer = 1
	}
	if r.config.WriteTimeout <= 0 {
		r.config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	r.queue = make(chan *evidence.EvaluationRecord, r.config.AsyncBuffer)

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("evidence recorder started",
		"async_buffer", r.config.AsyncBuffer,
		"write_timeout", r.config.WriteTimeout,
	)
	return r
}

// Record builds the record for run and queues it for writing. The record
// is returned even though it may not be persisted yet.
func (r *Recorder) Record(ctx context.Context, run *engine.RunResult, change Change) (*evidence.EvaluationRecord, error) {
	record, err := Build(run, change, r.now())
	if err != nil {
		return nil, evidence.NewRecorderError("", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, evidence.NewRecorderError(record.ID, ErrClosed)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.queue <- record:
		r.logger.Debug("evaluation record queued",
			"record_id", record.ID,
			"overall_status", record.OverallStatus,
		)
		return record, nil
	case <-ctx.Done():
		return nil, evidence.NewRecorderError(record.ID, ctx.Err())
	case <-timer.C:
		r.logger.Error("evidence queue full, dropping record",
			"record_id", record.ID,
			"capacity", r.config.AsyncBuffer,
		)
		r.metrics.RecordStore(false)
		return nil, evidence.NewRecorderError(record.ID, context.DeadlineExceeded)
	}
}

// Close stops accepting records and waits until the queue is drained.
// It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("evidence recorder stopped")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.queue:
			r.write(record)
		case <-r.done:
			for {
				select {
				case record := <-r.queue:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *evidence.EvaluationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()
	ctx = logging.WithChangeID(logging.WithRunID(ctx, record.ID), record.ChangeID)

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.metrics.RecordStore(false)
		r.logger.ErrorContext(ctx, "failed to store evaluation record",
			"error", err,
		)
		return
	}
	r.metrics.RecordStore(true)

	duration := time.Since(start)
	r.logger.InfoContext(ctx, "evaluation recorded",
		"overall_status", record.OverallStatus,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.WarnContext(ctx, "slow evidence write",
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// Build converts a run result into a record stamped with now.
func Build(run *engine.RunResult, change Change, now time.Time) (*evidence.EvaluationRecord, error) {
	raw, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}
	payload, err := jcs.Transform(raw)
	if err != nil {
		return nil, err
	}

	record := &evidence.EvaluationRecord{
		ID:            uuid.New().String(),
		Repository:    change.Repository,
		ChangeID:      change.ChangeID,
		HeadSHA:       change.HeadSHA,
		EvaluatedAt:   now,
		RecordedAt:    now,
		OverallStatus: run.OverallStatus,
		RiskScore:     run.Metadata.CoreRiskScore,
		RiskLevel:     run.Metadata.CoreRiskLevel,
		RuleCount:     len(run.Results),
		FindingsCount: run.Metadata.FindingsCount,
		Triggered:     []evidence.RuleOutcome{},
		PolicyDigest:  change.PolicyDigest,
		Payload:       payload,
		PayloadHash:   HashContent(payload),
	}

	if o := run.Metadata.Override; o != nil && o.Active {
		record.Overridden = true
		record.OverrideReason = o.Reason
		record.OriginalStatus = o.OriginalStatus
	}

	for _, res := range run.Triggered() {
		findingID, _ := res.Traceability["finding_id"].(string)
		record.Triggered = append(record.Triggered, evidence.RuleOutcome{
			RuleID:    res.ID,
			Status:    res.Status,
			FindingID: findingID,
		})
	}

	return record, nil
}
