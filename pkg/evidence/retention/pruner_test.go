package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/evidence/storage"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func seed(t *testing.T, s evidence.Storage, agesInDays ...int) {
	t.Helper()
	for i, days := range agesInDays {
		at := now.AddDate(0, 0, -days)
		r := &evidence.EvaluationRecord{
			ID:            fmt.Sprintf("r%d-%dd", i, days),
			EvaluatedAt:   at,
			RecordedAt:    at,
			OverallStatus: "WARN",
			Payload:       []byte("{}"),
		}
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
}

func remaining(t *testing.T, s evidence.Storage) []string {
	t.Helper()
	records, err := s.Query(context.Background(), &evidence.Query{SortOrder: "asc"})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestPruner_Prune(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		ages        []int
		wantDeleted int64
		want        []string
	}{
		{
			name:        "by age",
			config:      Config{RetentionDays: 7},
			ages:        []int{10, 8, 5, 3},
			wantDeleted: 2,
			want:        []string{"r2-5d", "r3-3d"},
		},
		{
			name:        "by count keeps newest",
			config:      Config{MaxRecords: 2},
			ages:        []int{4, 3, 2, 1},
			wantDeleted: 2,
			want:        []string{"r2-2d", "r3-1d"},
		},
		{
			name:        "age then count",
			config:      Config{RetentionDays: 30, MaxRecords: 1},
			ages:        []int{40, 3, 2},
			wantDeleted: 2,
			want:        []string{"r2-2d"},
		},
		{
			name:        "within limits",
			config:      Config{RetentionDays: 30, MaxRecords: 10},
			ages:        []int{1, 2},
			wantDeleted: 0,
			want:        []string{"r1-2d", "r0-1d"},
		},
		{
			name:        "disabled",
			config:      Config{},
			ages:        []int{400},
			wantDeleted: 0,
			want:        []string{"r0-400d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			seed(t, store, tt.ages...)

			cfg := tt.config
			p := NewPruner(store, &cfg, WithLogger(logging.Discard()), WithClock(clock))
			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() failed: %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", deleted, tt.wantDeleted)
			}
			got := remaining(t, store)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("remaining = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPruner_Archive(t *testing.T) {
	store := storage.NewMemoryStorage()
	seed(t, store, 100, 95, 1)

	dir := filepath.Join(t.TempDir(), "archive")
	p := NewPruner(store, &Config{RetentionDays: 90, ArchiveDir: dir},
		WithLogger(logging.Discard()), WithClock(clock))
	if _, err := p.Prune(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("archive dir = %v, %v", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	var archived []evidence.EvaluationRecord
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("archive is not a JSON array: %v", err)
	}
	if len(archived) != 2 || archived[0].ID != "r0-100d" {
		t.Errorf("archived = %+v", archived)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RetentionConfig{Days: 30, MaxRecords: 500, Schedule: "@daily", ArchiveDir: "a"})
	if cfg.RetentionDays != 30 || cfg.MaxRecords != 500 || cfg.PruneSchedule != "@daily" || cfg.ArchiveDir != "a" {
		t.Errorf("ConfigFrom() = %+v", cfg)
	}

	def := DefaultConfig()
	if def.RetentionDays != 90 || def.PruneSchedule != "0 3 * * *" {
		t.Errorf("DefaultConfig() = %+v", def)
	}
}

func TestPruner_SQLite(t *testing.T) {
	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "evidence.db"),
		Driver:       storage.DriverModernc,
		MaxOpenConns: 1,
		BusyTimeout:  time.Second,
	}, storage.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	seed(t, store, 50, 20, 10, 5, 1)

	p := NewPruner(store, &Config{RetentionDays: 30, MaxRecords: 2},
		WithLogger(logging.Discard()), WithClock(clock))
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if got := remaining(t, store); fmt.Sprint(got) != "[r3-5d r4-1d]" {
		t.Errorf("remaining = %v", got)
	}
}
