package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestNew_DefaultTimeout(t *testing.T) {
	if got := New(0).timeout; got != DefaultCheckTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultCheckTimeout)
	}
	if got := New(time.Second).timeout; got != time.Second {
		t.Errorf("timeout = %v, want 1s", got)
	}
}

func TestChecker_Names(t *testing.T) {
	c := New(time.Second)
	c.Register("policies", func(context.Context) error { return nil })
	c.Register("evidence", func(context.Context) error { return nil })
	c.Register("policies", func(context.Context) error { return nil })

	want := []string{"evidence", "policies"}
	if got := c.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{
			name:   "no checks",
			checks: nil,
			want:   StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"policies": func(context.Context) error { return nil },
				"evidence": func(context.Context) error { return nil },
			},
			want: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"policies": func(context.Context) error { return errors.New("build failed") },
				"evidence": func(context.Context) error { return nil },
			},
			want: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.Register(name, check)
			}

			report := c.Readiness(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Errorf("Checks = %d, want %d", len(report.Checks), len(tt.checks))
			}
		})
	}
}

func TestChecker_ReadinessFailureMessage(t *testing.T) {
	c := New(time.Second)
	c.Register("policies", func(context.Context) error { return errors.New("build failed") })

	res := c.Readiness(context.Background()).Checks["policies"]
	if res.Status != StatusUnhealthy || res.Message != "build failed" {
		t.Errorf("result = %+v", res)
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return nil
	})

	start := time.Now()
	report := c.Readiness(context.Background())
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Readiness took %v, want it bounded by the timeout", time.Since(start))
	}
	if report.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", report.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(time.Second)

	tests := []struct {
		method   string
		wantCode int
		wantBody bool
	}{
		{method: http.MethodGet, wantCode: http.StatusOK, wantBody: true},
		{method: http.MethodHead, wantCode: http.StatusOK, wantBody: false},
		{method: http.MethodPost, wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c.LivenessHandler()(rec, httptest.NewRequest(tt.method, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
			if (rec.Body.Len() > 0) != tt.wantBody {
				t.Errorf("body length = %d, wantBody %v", rec.Body.Len(), tt.wantBody)
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	c := New(time.Second)
	healthy := true
	c.Register("policies", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("build failed")
	})

	mux := http.NewServeMux()
	c.Mount(mux)

	get := func() (int, Report) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var report Report
		if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		return rec.Code, report
	}

	code, report := get()
	if code != http.StatusOK || report.Status != StatusReady {
		t.Errorf("healthy: code = %d, status = %s", code, report.Status)
	}

	healthy = false
	code, report = get()
	if code != http.StatusServiceUnavailable || report.Status != StatusDegraded {
		t.Errorf("unhealthy: code = %d, status = %s", code, report.Status)
	}
	if report.Checks["policies"].Message != "build failed" {
		t.Errorf("message = %q", report.Checks["policies"].Message)
	}
}
