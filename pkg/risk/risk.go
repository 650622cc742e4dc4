package risk

import (
	"fmt"
	"sort"
	"strings"

	"gatekeeper-hq/gatekeeper/pkg/config"
)

// ControlType names the risk control in its output.
const ControlType = "core_risk_scoring"

// Risk levels.
const (
	LevelHigh   = "HIGH"
	LevelMedium = "MEDIUM"
	LevelLow    = "LOW"
)

// Gate decisions. They map to enforcement results through ControlResult.
const (
	DecisionFail = "FAIL"
	DecisionWarn = "WARN"
	DecisionPass = "PASS"
)

// Scorer turns the raw engine input into a risk assessment. Implementations
// must not fail: missing or malformed inputs count as absent.
type Scorer interface {
	Score(raw map[string]interface{}) *Result
}

// Components are the numeric sub-scores exposed as features.
type Components struct {
	Churn       int     `json:"churn"`
	Criticality float64 `json:"criticality"`
	History     float64 `json:"history"`
}

// Result is the output of a Scorer.
type Result struct {
	ControlType       string                 `json:"control_type"`
	ViolationSeverity int                    `json:"violation_severity"`
	SeverityLevel     string                 `json:"severity_level"`
	ControlResult     string                 `json:"control_result"`
	Signals           Components             `json:"signals"`
	Violations        []string               `json:"violations"`
	Evidence          []string               `json:"evidence"`
	RawFeatures       map[string]interface{} `json:"raw_features"`
}

// Map returns r as a nested map, the form the engine flattens.
func (r *Result) Map() map[string]interface{} {
	return map[string]interface{}{
		"control_type":       r.ControlType,
		"violation_severity": r.ViolationSeverity,
		"severity_level":     r.SeverityLevel,
		"control_result":     r.ControlResult,
		"signals":            r.Signals.Map(),
		"violations":         append([]string(nil), r.Violations...),
		"evidence":           append([]string(nil), r.Evidence...),
		"raw_features":       r.RawFeatures,
	}
}

// Map returns c keyed by the signal names used in rules.
func (c Components) Map() map[string]interface{} {
	return map[string]interface{}{
		"churn":       c.Churn,
		"criticality": c.Criticality,
		"history":     c.History,
	}
}

// ControlResult maps a gate decision to an enforcement result.
func ControlResult(decision string) string {
	switch decision {
	case DecisionFail:
		return "BLOCK"
	case DecisionWarn:
		return "WARN"
	}
	return "COMPLIANT"
}

// HeuristicScorer is the default Scorer.
type HeuristicScorer struct {
	cfg config.RiskConfig
}

// NewHeuristicScorer creates a scorer. Zero fields of cfg take their
// defaults.
func NewHeuristicScorer(cfg config.RiskConfig) *HeuristicScorer {
	c := config.Config{Risk: cfg}
	config.ApplyDefaults(&c)
	return &HeuristicScorer{cfg: c.Risk}
}

// Score implements Scorer.
func (s *HeuristicScorer) Score(raw map[string]interface{}) *Result {
	f := extractFeatures(raw, s.cfg)

	score := 0
	var reasons, evidence []string

	if len(f.criticalPaths) > 0 {
		score += s.cfg.Weights.CriticalPath
		reasons = append(reasons, "Touched critical path(s): "+strings.Join(f.criticalPaths, ", "))
		for _, file := range f.criticalFiles {
			evidence = append(evidence, file+" is on a critical path")
		}
	}
	if len(f.hotspots) > 0 {
		score += s.cfg.Weights.HighChurn
		reasons = append(reasons, fmt.Sprintf("High churn in changed files (hotspots: %d)", len(f.hotspots)))
		for _, h := range f.hotspots {
			evidence = append(evidence, h+" is a churn hotspot")
		}
	}
	if f.locAdded+f.locDeleted > s.cfg.LargeChangeLOC {
		score += s.cfg.Weights.LargeChange
		reasons = append(reasons, fmt.Sprintf("Large change size (+%d / -%d LOC)", f.locAdded, f.locDeleted))
	}
	if !f.hasTests && len(f.files) > 0 {
		score += s.cfg.Weights.NoTests
		reasons = append(reasons, "No tests modified in this change")
	}

	score = min(100, max(0, score))
	level, decision := s.classify(score)

	criticality := 0.0
	if len(f.files) > 0 {
		criticality = float64(len(f.criticalFiles)) / float64(len(f.files))
	}

	if reasons == nil {
		reasons = []string{}
	}
	if evidence == nil {
		evidence = []string{}
	}

	return &Result{
		ControlType:       ControlType,
		ViolationSeverity: score,
		SeverityLevel:     level,
		ControlResult:     ControlResult(decision),
		Signals: Components{
			Churn:       f.locAdded + f.locDeleted,
			Criticality: criticality,
			History:     f.history,
		},
		Violations:  reasons,
		Evidence:    evidence,
		RawFeatures: f.Map(),
	}
}

func (s *HeuristicScorer) classify(score int) (level, decision string) {
	switch {
	case score >= s.cfg.ThresholdHigh:
		return LevelHigh, DecisionFail
	case score >= s.cfg.ThresholdMedium:
		return LevelMedium, DecisionWarn
	}
	return LevelLow, DecisionPass
}

type features struct {
	files         []string
	criticalFiles []string
	criticalPaths []string
	hotspots      []string
	locAdded      int
	locDeleted    int
	hasTests      bool
	history       float64
}

func (f *features) Map() map[string]interface{} {
	return map[string]interface{}{
		"files_changed":  f.files,
		"files_count":    len(f.files),
		"critical_paths": f.criticalPaths,
		"hotspots":       f.hotspots,
		"loc_added":      f.locAdded,
		"loc_deleted":    f.locDeleted,
		"has_tests":      f.hasTests,
	}
}

// extractFeatures reads explicit inputs first and derives the rest from
// the diff. Recognised keys: files_changed, loc_added, loc_deleted,
// hotspots (or churn.hotspots), has_tests, history and diff.
func extractFeatures(raw map[string]interface{}, cfg config.RiskConfig) *features {
	f := &features{
		files:         []string{},
		criticalFiles: []string{},
		criticalPaths: []string{},
		hotspots:      []string{},
	}

	diff, _ := raw["diff"].(map[string]interface{})
	if d, ok := raw["diff"].(map[string]string); ok {
		diff = make(map[string]interface{}, len(d))
		for k, v := range d {
			diff[k] = v
		}
	}

	if files := stringList(raw["files_changed"]); files != nil {
		f.files = files
	} else {
		for path := range diff {
			f.files = append(f.files, path)
		}
	}
	sort.Strings(f.files)

	added, addedOK := intValue(raw["loc_added"])
	deleted, deletedOK := intValue(raw["loc_deleted"])
	if !addedOK || !deletedOK {
		da, dd := countLines(diff)
		if !addedOK {
			added = da
		}
		if !deletedOK {
			deleted = dd
		}
	}
	f.locAdded, f.locDeleted = added, deleted

	if h := stringList(raw["hotspots"]); h != nil {
		f.hotspots = h
	} else if churn, ok := raw["churn"].(map[string]interface{}); ok {
		if h := stringList(churn["hotspots"]); h != nil {
			f.hotspots = h
		}
	}

	seen := map[string]bool{}
	for _, file := range f.files {
		hit := false
		for _, p := range cfg.CriticalPaths {
			if strings.Contains(file, p) {
				hit = true
				if !seen[p] {
					seen[p] = true
					f.criticalPaths = append(f.criticalPaths, p)
				}
			}
		}
		if hit {
			f.criticalFiles = append(f.criticalFiles, file)
		}
	}
	sort.Strings(f.criticalPaths)

	if b, ok := raw["has_tests"].(bool); ok {
		f.hasTests = b
	} else {
		for _, file := range f.files {
			if isTestFile(file, cfg.TestPaths) {
				f.hasTests = true
				break
			}
		}
	}

	f.history, _ = floatValue(raw["history"])
	return f
}

func isTestFile(path string, testPaths []string) bool {
	for _, p := range testPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	base := path[strings.LastIndex(path, "/")+1:]
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.")
}

func countLines(diff map[string]interface{}) (added, deleted int) {
	for _, v := range diff {
		text, _ := v.(string)
		for _, line := range strings.Split(text, "\n") {
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			case strings.HasPrefix(line, "+"):
				added++
			case strings.HasPrefix(line, "-"):
				deleted++
			}
		}
	}
	return added, deleted
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intValue(v interface{}) (int, bool) {
	f, ok := floatValue(v)
	return int(f), ok
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
