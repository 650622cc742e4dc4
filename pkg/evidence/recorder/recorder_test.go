package recorder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/evidence/storage"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
)

var fixed = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

func sampleRun() *engine.RunResult {
	return &engine.RunResult{
		OverallStatus: engine.StatusCompliant,
		Results: []engine.RuleResult{
			{
				ID: "SEC-PR-001.R1", Status: engine.StatusBlock, Triggered: true,
				Violations:   []string{"secrets.detected (true) == true"},
				Traceability: map[string]interface{}{"finding_id": "evt_0123456789ab"},
			},
			{ID: "SEC-PR-001.R2", Status: engine.StatusWarn},
		},
		Metadata: engine.Metadata{
			CoreRiskScore: 45,
			CoreRiskLevel: "MEDIUM",
			FindingsCount: 2,
			Override: &engine.Override{
				Active:         true,
				Reason:         "Label present: hotfix-approved",
				OriginalStatus: engine.StatusBlock,
				Approver:       "label_holder",
			},
		},
	}
}

func TestBuild(t *testing.T) {
	change := Change{Repository: "org/repo", ChangeID: "42", HeadSHA: "abc", PolicyDigest: "sha256:d"}
	rec, err := Build(sampleRun(), change, fixed)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", rec.ID, err)
	}
	if rec.Repository != "org/repo" || rec.ChangeID != "42" || rec.HeadSHA != "abc" || rec.PolicyDigest != "sha256:d" {
		t.Errorf("change fields = %+v", rec)
	}
	if !rec.EvaluatedAt.Equal(fixed) {
		t.Errorf("EvaluatedAt = %v", rec.EvaluatedAt)
	}
	if rec.OverallStatus != engine.StatusCompliant || !rec.Overridden || rec.OriginalStatus != engine.StatusBlock {
		t.Errorf("status fields = %s %v %s", rec.OverallStatus, rec.Overridden, rec.OriginalStatus)
	}
	if rec.RiskScore != 45 || rec.RiskLevel != "MEDIUM" || rec.RuleCount != 2 || rec.FindingsCount != 2 {
		t.Errorf("counts = %+v", rec)
	}
	if len(rec.Triggered) != 1 || rec.Triggered[0].FindingID != "evt_0123456789ab" {
		t.Errorf("Triggered = %+v", rec.Triggered)
	}
	if rec.PayloadHash != HashContent(rec.Payload) || len(rec.PayloadHash) != 64 {
		t.Errorf("PayloadHash = %q", rec.PayloadHash)
	}
	if h, err := HashPayload(rec.Payload); err != nil || h != rec.PayloadHash {
		t.Errorf("HashPayload = %q, %v; want %q", h, err, rec.PayloadHash)
	}

	other, _ := Build(sampleRun(), change, fixed)
	if other.ID == rec.ID {
		t.Error("ids are not unique")
	}
	if other.PayloadHash != rec.PayloadHash {
		t.Error("payload hash is not deterministic")
	}
}

func TestHashPayload_IgnoresFormatting(t *testing.T) {
	compact := []byte(`{"overall_status":"BLOCK","results":[{"id":"SEC.R1"}]}`)
	indented := []byte("{\n  \"results\": [\n    {\"id\": \"SEC.R1\"}\n  ],\n  \"overall_status\": \"BLOCK\"\n}")

	a, err := HashPayload(compact)
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashPayload(indented)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("hash differs by formatting: %s vs %s", a, b)
	}
	if a != HashContent(compact) {
		t.Error("canonical payload should hash to its own bytes")
	}

	if h, err := HashPayload(nil); err != nil || h != "" {
		t.Errorf("empty payload = %q, %v", h, err)
	}
	if _, err := HashPayload([]byte("{")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestBuild_NoOverride(t *testing.T) {
	run := &engine.RunResult{OverallStatus: engine.StatusWarn}
	rec, err := Build(run, Change{}, fixed)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Overridden || rec.OverrideReason != "" {
		t.Errorf("unexpected override: %+v", rec)
	}
	if rec.Triggered == nil {
		t.Error("Triggered should be empty, not nil")
	}
}

func TestChangeFromInput(t *testing.T) {
	c := ChangeFromInput(map[string]interface{}{"repo": "org/x", "change_id": "7", "head_sha": "f00", "labels": []string{}})
	if c.Repository != "org/x" || c.ChangeID != "7" || c.HeadSHA != "f00" {
		t.Errorf("ChangeFromInput() = %+v", c)
	}
	if c := ChangeFromInput(map[string]interface{}{"repo": 3}); c.Repository != "" {
		t.Errorf("non-string repo = %q", c.Repository)
	}
}

func TestRecorder_RecordAndClose(t *testing.T) {
	store := storage.NewMemoryStorage()
	reg := prometheus.NewRegistry()
	m := metrics.NewEvidenceMetrics(&config.MetricsConfig{Namespace: "test"}, reg)

	r := New(store,
		WithLogger(logging.Discard()),
		WithMetrics(m),
		WithConfig(&Config{AsyncBuffer: 2, WriteTimeout: time.Second}),
		WithClock(func() time.Time { return fixed }),
	)

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := r.Record(context.Background(), sampleRun(), Change{Repository: "org/repo"})
		if err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if store.Size() != 5 {
		t.Fatalf("stored %d records, want 5", store.Size())
	}
	for _, id := range ids {
		if _, err := store.Get(context.Background(), id); err != nil {
			t.Errorf("Get(%s) failed: %v", id, err)
		}
	}
	expected := `
# HELP test_evidence_records_total Total number of evaluation records written
# TYPE test_evidence_records_total counter
test_evidence_records_total{result="success"} 5
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_evidence_records_total"); err != nil {
		t.Error(err)
	}

	_, err := r.Record(context.Background(), sampleRun(), Change{})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Record() after Close error = %v, want ErrClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

type failingStorage struct {
	evidence.Storage
}

func (failingStorage) Store(context.Context, *evidence.EvaluationRecord) error {
	return errors.New("disk full")
}

func TestRecorder_StoreFailureIsLogged(t *testing.T) {
	r := New(failingStorage{Storage: storage.NewMemoryStorage()}, WithLogger(logging.Discard()))
	if _, err := r.Record(context.Background(), sampleRun(), Change{}); err != nil {
		t.Fatalf("Record() = %v; write failures happen asynchronously", err)
	}
	r.Close()
}

func TestRecorder_CancelledContext(t *testing.T) {
	r := New(storage.NewMemoryStorage(),
		WithLogger(logging.Discard()),
		WithConfig(&Config{AsyncBuffer: 1, WriteTimeout: time.Minute}),
	)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With a full queue the cancelled context must win; with room the
	// record may still be accepted. Either way Record must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Record(ctx, sampleRun(), Change{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Record() blocked on a cancelled context")
	}
}
