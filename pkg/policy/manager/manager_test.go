package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine/source"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

const secretsPolicy = `policy SEC_PR_WATCH {
  version: "1.0.0"
  name: "Secrets"
  rules {
    when secrets.detected == true { enforce BLOCK message "Secrets found" }
  }
}`

const secretsPolicyV2 = `policy SEC_PR_WATCH {
  version: "1.1.0"
  name: "Secrets"
  rules {
    when secrets.detected == true { enforce BLOCK message "Secrets found" }
    when secrets.count > 3 { enforce WARN }
  }
}`

const approvalsPolicy = `policy APR_PR_WATCH {
  version: "1.0.0"
  name: "Approvals"
  rules {
    require approvals.satisfied == true
  }
}`

const brokenPolicy = `policy BROKEN {
  version: "1.0.0"
  name: "Broken"
  rules {
    when a == 1 { enforce STOP }
  }
}`

type fixture struct {
	src string
	out string
	mgr *Manager
}

func newFixture(t *testing.T, atomic bool) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		src: filepath.Join(root, "policies"),
		out: filepath.Join(root, "compiled"),
	}
	if err := os.MkdirAll(f.src, 0755); err != nil {
		t.Fatal(err)
	}

	b := builder.New(builder.Options{
		SourceDir: f.src,
		OutputDir: f.out,
		Workers:   2,
		Atomic:    atomic,
	}, builder.WithLogger(logging.Discard()))

	f.mgr = New(b, Config{SourceDir: f.src, Debounce: 30 * time.Millisecond}, WithLogger(logging.Discard()))
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.src, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Policy.SourceDir = "rules"
	cfg.Policy.Debounce = time.Second

	got := ConfigFrom(&cfg.Policy)
	if got.SourceDir != "rules" || got.Debounce != time.Second {
		t.Errorf("ConfigFrom() = %+v", got)
	}
}

func TestManager_Rebuild(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "secrets.dsl", secretsPolicy)

	var reloads int
	f.mgr.Subscribe(ReloadFunc(func(context.Context) error {
		reloads++
		return nil
	}))

	event, err := f.mgr.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !event.Reloaded {
		t.Error("Reloaded = false, want true")
	}
	if event.Diff != nil {
		t.Errorf("first build Diff = %+v, want nil", event.Diff)
	}
	if reloads != 1 {
		t.Errorf("reloads = %d, want 1", reloads)
	}

	status := f.mgr.Status()
	if status.Builds != 1 || status.Failures != 0 || status.Rules != 1 {
		t.Errorf("Status() = %+v", status)
	}
	if status.Digest == "" || status.Digest != f.mgr.Manifest().Digest {
		t.Errorf("Digest = %q, manifest digest = %q", status.Digest, f.mgr.Manifest().Digest)
	}
}

func TestManager_RebuildDiff(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "secrets.dsl", secretsPolicy)
	if _, err := f.mgr.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.write(t, "secrets.dsl", secretsPolicyV2)
	f.write(t, "approvals.dsl", approvalsPolicy)

	event, err := f.mgr.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if event.Diff == nil {
		t.Fatal("Diff = nil on second build")
	}
	if len(event.Diff.Added) != 1 || event.Diff.Added[0] != "APR-PR-WATCH" {
		t.Errorf("Added = %v, want [APR-PR-WATCH]", event.Diff.Added)
	}
	if len(event.Diff.Changed) != 1 {
		t.Fatalf("Changed = %+v, want one entry", event.Diff.Changed)
	}
	if c := event.Diff.Changed[0]; c.Version != builder.VersionUpgrade {
		t.Errorf("version change = %s, want upgrade", c.Version)
	}
	if got := f.mgr.Status().Rules; got != 3 {
		t.Errorf("Rules = %d, want 3", got)
	}
}

func TestManager_FailedBuildKeepsPreviousRules(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "secrets.dsl", secretsPolicy)
	if _, err := f.mgr.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := f.mgr.Manifest()

	var reloads int
	f.mgr.Subscribe(ReloadFunc(func(context.Context) error {
		reloads++
		return nil
	}))

	f.write(t, "broken.dsl", brokenPolicy)
	event, err := f.mgr.Rebuild(context.Background())
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Rebuild() error = %v, want ErrBuildFailed", err)
	}
	if event == nil || event.Reloaded {
		t.Errorf("event = %+v, want a non-reloaded event", event)
	}
	if reloads != 0 {
		t.Errorf("reloads = %d, want 0", reloads)
	}
	if f.mgr.Manifest() != before {
		t.Error("manifest replaced by a failed build")
	}

	status := f.mgr.Status()
	if status.Failures != 1 || status.LastError == "" {
		t.Errorf("Status() = %+v, want one recorded failure", status)
	}
}

func TestManager_SubscriberError(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "secrets.dsl", secretsPolicy)

	boom := errors.New("boom")
	var later bool
	f.mgr.Subscribe(ReloadFunc(func(context.Context) error { return boom }))
	f.mgr.Subscribe(ReloadFunc(func(context.Context) error {
		later = true
		return nil
	}))

	event, err := f.mgr.Rebuild(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Rebuild() error = %v, want boom", err)
	}
	if event.Reloaded {
		t.Error("Reloaded = true after subscriber failure")
	}
	if later {
		t.Error("subscriber after the failing one was reloaded")
	}
	if f.mgr.Manifest() != nil {
		t.Error("manifest recorded although reload failed")
	}
}

func TestManager_MissingSourceDir(t *testing.T) {
	b := builder.New(builder.Options{
		SourceDir: filepath.Join(t.TempDir(), "missing"),
		OutputDir: t.TempDir(),
	}, builder.WithLogger(logging.Discard()))
	mgr := New(b, Config{}, WithLogger(logging.Discard()))

	if _, err := mgr.Rebuild(context.Background()); err == nil {
		t.Fatal("Rebuild() error = nil for a missing source directory")
	}
	if mgr.Status().Failures != 1 {
		t.Errorf("Failures = %d, want 1", mgr.Status().Failures)
	}
}

func TestManager_WatchReloadsEngine(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "secrets.dsl", secretsPolicy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.mgr.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(ctx, source.NewFileSource(f.out, logging.Discard()), engine.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	f.mgr.Subscribe(eng)

	if got := len(eng.Rules()); got != 1 {
		t.Fatalf("initial rules = %d, want 1", got)
	}

	done := make(chan error, 1)
	go func() { done <- f.mgr.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	f.write(t, "approvals.dsl", approvalsPolicy)

	deadline := time.Now().Add(3 * time.Second)
	for len(eng.Rules()) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("rules = %d after watch rebuild, want 2", len(eng.Rules()))
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
