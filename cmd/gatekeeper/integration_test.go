//go:build integration

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestWatchServeAndReload runs the watch command as a process, edits a
// policy and checks that the rebuild shows up on the metrics endpoint.
func TestWatchServeAndReload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "policies")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	policy, err := os.ReadFile(filepath.Join("testdata", "policies", "secrets.dsl"))
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(src, "secrets.dsl"), string(policy))

	configFile := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, configFile, `
policy:
  source_dir: "policies"
  compiled_dir: "compiled"
  debounce: 50ms

evidence:
  enabled: true
  sqlite:
    path: "data/evidence.db"

telemetry:
  logging:
    level: "info"
    format: "json"
  metrics:
    enabled: true
`)

	binaryPath := buildBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const addr = "127.0.0.1:19090"
	cmd := exec.CommandContext(ctx, binaryPath, "watch", "--config", configFile, "--metrics-addr", addr)
	cmd.Dir = tmpDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start watch: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	if !waitForHealthy("http://"+addr+"/readyz", 10*time.Second) {
		t.Fatalf("watch never became ready\nStdout: %s\nStderr: %s", stdout.String(), stderr.String())
	}
	if !strings.Contains(scrape(t, "http://"+addr+"/metrics"), `gatekeeper_policy_builds_total{result="success"} 1`) {
		t.Fatalf("initial build not counted\nStderr: %s", stderr.String())
	}

	writeFile(t, filepath.Join(src, "approvals.dsl"), `policy APR_PR_001 {
  version: "1.0.0"
  name: "Approvals"
  rules {
    require approvals.satisfied == true
  }
}`)

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(scrape(t, "http://"+addr+"/metrics"), `gatekeeper_policy_builds_total{result="success"} 2`) {
		if time.Now().After(deadline) {
			t.Fatalf("rebuild not observed\nStderr: %s", stderr.String())
		}
		time.Sleep(100 * time.Millisecond)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "compiled", "APR-PR-001.R1.yaml")); err != nil {
		t.Errorf("new rule not compiled: %v", err)
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("failed to send SIGINT: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unclean shutdown: %v\nStderr: %s", err, stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Error("watch did not shut down within 5 seconds")
	}
}

// TestBuildEvaluateBinary runs the CI flow against the built binary and
// checks the process exit codes.
func TestBuildEvaluateBinary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	binaryPath := buildBinary(t)
	out := filepath.Join(t.TempDir(), "compiled")

	run := func(args ...string) (string, int) {
		cmd := exec.Command(binaryPath, args...)
		var combined bytes.Buffer
		cmd.Stdout = &combined
		cmd.Stderr = &combined
		err := cmd.Run()
		if exitErr, ok := err.(*exec.ExitError); ok {
			return combined.String(), exitErr.ExitCode()
		}
		if err != nil {
			t.Fatalf("failed to run %v: %v", args, err)
		}
		return combined.String(), 0
	}

	if output, code := run("build", "--source", filepath.Join("testdata", "policies"), "--out", out); code != 0 {
		t.Fatalf("build exit code %d\n%s", code, output)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"block fails", []string{"evaluate", "--compiled", out, "-i", filepath.Join("testdata", "change-secret.json")}, 1},
		{"clean passes", []string{"evaluate", "--compiled", out, "-i", filepath.Join("testdata", "change-clean.yaml")}, 0},
		{"bad flag value", []string{"evaluate", "--compiled", out, "-i", filepath.Join("testdata", "change-clean.yaml"), "--fail-on", "x"}, 2},
		{"lint errors", []string{"lint", filepath.Join("testdata", "invalid")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if output, code := run(tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d\n%s", code, tt.want, output)
			}
		})
	}
}

// Helper functions

// buildBinary builds the gatekeeper binary once per test run.
func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath, err := filepath.Abs(filepath.Join("..", "..", "bin", "gatekeeper"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath
	}

	t.Log("Building gatekeeper binary...")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build gatekeeper: %v\nOutput: %s", err, output)
	}
	return binaryPath
}

// waitForHealthy waits for a probe to return 200.
func waitForHealthy(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func scrape(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
