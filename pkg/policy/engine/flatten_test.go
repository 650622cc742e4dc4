package engine

import (
	"testing"
)

func TestFlatten(t *testing.T) {
	files := map[string]interface{}{"a.go": 3}
	got := Flatten(map[string]interface{}{
		"core_risk": map[string]interface{}{
			"severity_level": "HIGH",
			"signals":        map[string]interface{}{"churn": 12},
			"raw_features": map[string]interface{}{
				"files_changed": files,
			},
		},
		"raw": map[string]interface{}{
			"diff": map[string]string{"auth/x.go": "+a"},
		},
		"secrets.detected": true,
		"empty":            map[string]interface{}{},
	})

	want := map[string]Value{
		"core_risk.severity_level":             String("HIGH"),
		"core_risk.signals.churn":              Number(12),
		"core_risk.raw_features.files_changed": Opaque(files),
		"raw.diff.auth/x.go":                   String("+a"),
		"secrets.detected":                     Bool(true),
	}
	if len(got) != len(want) {
		t.Fatalf("Flatten() = %v, want %d keys", got, len(want))
	}
	for k, w := range want {
		v, ok := got[k]
		if !ok {
			t.Errorf("missing key %q", k)
			continue
		}
		if !v.Equal(w) {
			t.Errorf("%s = %s, want %s", k, v, w)
		}
	}
}

func TestFlatten_FilesChangedListKept(t *testing.T) {
	got := Flatten(map[string]interface{}{
		"features": map[string]interface{}{"files_changed": []string{"a", "b"}},
	})
	v := got["features.files_changed"]
	if v.Kind() != KindList {
		t.Fatalf("files_changed kind = %s", v.Kind())
	}
	if ok, _ := Compare(OpIn, String("a"), v); !ok {
		t.Error("expected a in files_changed")
	}
}
