package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/controls"
	"gatekeeper-hq/gatekeeper/pkg/policy/loader"
	"gatekeeper-hq/gatekeeper/pkg/risk"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/metrics"
)

// DefaultWorkers is the rule evaluation concurrency when none is set.
const DefaultWorkers = 4

// ErrNilSource is returned by New when no rule source is given.
var ErrNilSource = errors.New("rule source cannot be nil")

// RuleSource provides the rules an engine evaluates.
type RuleSource interface {
	LoadRules(ctx context.Context) ([]*loader.Rule, error)
}

// Tracer enriches the results of a run before overrides are applied.
type Tracer interface {
	Inject(result *RunResult)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.Component(logger, "engine") }
}

// WithMetrics records evaluations, triggers and overrides.
func WithMetrics(m *metrics.EvaluationMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithScorer replaces the default HeuristicScorer.
func WithScorer(s risk.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithRegistry replaces the default control registry.
func WithRegistry(r *controls.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithControlsConfig sets the configuration handed to every control.
func WithControlsConfig(cfg *config.ControlsConfig) Option {
	return func(e *Engine) { e.controlsCfg = cfg }
}

// WithReviewSource sets where the approvals control reads reviews from.
// Without one, reviews may be passed in the input under "reviews".
func WithReviewSource(src controls.ReviewSource) Option {
	return func(e *Engine) { e.reviews = src }
}

// WithWorkers sets how many rules are evaluated concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithOverrideLabels replaces DefaultOverrideLabels.
func WithOverrideLabels(labels ...string) Option {
	return func(e *Engine) { e.overrideLabels = append([]string(nil), labels...) }
}

// WithTracer enriches triggered results, typically with a
// traceability.Injector.
func WithTracer(t Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// OptionsFromConfig derives engine options from the application config.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithScorer(risk.NewHeuristicScorer(cfg.Risk)),
		WithControlsConfig(&cfg.Controls),
		WithWorkers(cfg.Engine.Workers),
		WithOverrideLabels(cfg.Engine.OverrideLabels...),
	}
}

// Engine evaluates loaded rules against the signals of one change. It is
// safe for concurrent use; Reload swaps the rule set atomically with
// respect to Evaluate.
type Engine struct {
	mu    sync.RWMutex
	rules []*loader.Rule

	source         RuleSource
	scorer         risk.Scorer
	registry       *controls.Registry
	controlsCfg    *config.ControlsConfig
	reviews        controls.ReviewSource
	tracer         Tracer
	workers        int
	overrideLabels []string

	logger  *slog.Logger
	metrics *metrics.EvaluationMetrics
}

// New creates an engine and loads the initial rule set from src.
func New(ctx context.Context, src RuleSource, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	e := &Engine{
		source:         src,
		workers:        DefaultWorkers,
		overrideLabels: append([]string(nil), DefaultOverrideLabels...),
		logger:         logging.Component(nil, "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorer == nil {
		e.scorer = risk.NewHeuristicScorer(config.RiskConfig{})
	}
	if e.registry == nil {
		e.registry = controls.NewRegistry(controls.WithLogger(e.logger), controls.WithMetrics(e.metrics))
	}
	if e.controlsCfg == nil {
		e.controlsCfg = &config.NewDefaultConfig().Controls
	}

	if err := e.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load initial rules: %w", err)
	}
	return e, nil
}

// Reload replaces the rule set with a fresh load from the source. On error
// the previous rules stay in place.
func (e *Engine) Reload(ctx context.Context) error {
	rules, err := e.source.LoadRules(ctx)
	if err != nil {
		return err
	}

	enabled := make([]*loader.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	e.mu.Lock()
	e.rules = enabled
	e.mu.Unlock()

	e.logger.Info("rules loaded", "count", len(enabled))
	return nil
}

// Rules returns the loaded rules in evaluation order.
func (e *Engine) Rules() []*loader.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*loader.Rule(nil), e.rules...)
}

// Evaluate runs the risk scorer and, when the input carries a diff, the
// control registry, then evaluates every rule against the flattened
// signals. It always returns a result; malformed input degrades to absent
// signals.
//
// Recognised input keys: diff (path to unified diff), labels, repo,
// change_id, head_sha, reviews, plus anything the scorer reads. All of the
// input is also visible to rules under the "raw." prefix.
func (e *Engine) Evaluate(ctx context.Context, input map[string]interface{}) *RunResult {
	start := time.Now()
	if input == nil {
		input = map[string]interface{}{}
	}
	if id, ok := input["change_id"].(string); ok {
		ctx = logging.WithChangeID(ctx, id)
	}
	rules := e.Rules()

	core, findings, signals := e.collect(ctx, input)

	results := make([]RuleResult, len(rules))
	var overall atomic.Int32

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, rule := range rules {
		g.Go(func() error {
			res := e.evaluateRule(rule, signals)
			results[i] = res
			raise(&overall, statusRank(res.Status))
			if res.Triggered {
				e.metrics.RecordTrigger(res.ID, res.Status)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &RunResult{
		OverallStatus: rankStatus(overall.Load()),
		Results:       results,
		Metadata: Metadata{
			CoreRiskScore: core.ViolationSeverity,
			CoreRiskLevel: core.SeverityLevel,
			RawFeatures:   core.RawFeatures,
			FindingsCount: len(findings),
			Findings:      summarize(findings),
		},
	}

	if e.tracer != nil {
		e.tracer.Inject(result)
	}

	if label, ok := ApplyOverride(result, stringList(input["labels"]), e.overrideLabels); ok {
		e.metrics.RecordOverride(label)
		e.logger.InfoContext(ctx, "override applied",
			"label", label,
			"original_status", result.Metadata.Override.OriginalStatus,
		)
	}

	e.metrics.RecordEvaluation(result.OverallStatus, time.Since(start))
	e.logger.DebugContext(ctx, "evaluation complete",
		"status", result.OverallStatus,
		"rules", len(rules),
		"triggered", len(result.Triggered()),
		"duration", time.Since(start),
	)
	return result
}

// Signals returns the flattened signal map a rule would be evaluated
// against for input.
func (e *Engine) Signals(ctx context.Context, input map[string]interface{}) map[string]Value {
	if input == nil {
		input = map[string]interface{}{}
	}
	_, _, signals := e.collect(ctx, input)
	return signals
}

func (e *Engine) collect(ctx context.Context, input map[string]interface{}) (*risk.Result, []controls.Finding, map[string]Value) {
	core := e.scorer.Score(input)

	findings := []controls.Finding{}
	sources := map[string]interface{}{
		"core_risk": core.Map(),
		"features":  core.Signals.Map(),
		"raw":       input,
	}
	if diff := diffFromInput(input); len(diff) > 0 {
		set := e.registry.RunAll(ctx, e.controlContext(input, diff))
		for k, v := range set.Signals {
			sources[k] = v
		}
		findings = append(findings, set.Findings...)
	}
	return core, findings, Flatten(sources)
}

// evaluateRule triggers a rule iff every condition holds. A missing or
// null signal makes its condition false, as does any comparison error.
func (e *Engine) evaluateRule(rule *loader.Rule, signals map[string]Value) RuleResult {
	var matched []string
	for _, cond := range rule.Controls {
		actual, ok := signals[cond.Signal]
		if !ok || actual.IsNull() {
			continue
		}
		expected := ValueOf(cond.Value)
		hit, err := Compare(cond.Operator, actual, expected)
		if err != nil {
			e.logger.Debug("condition treated as false",
				"rule", rule.PolicyID,
				"signal", cond.Signal,
				"error", err,
			)
			continue
		}
		if hit {
			matched = append(matched, fmt.Sprintf("%s (%s) %s %s", cond.Signal, actual, cond.Operator, expected))
		}
	}

	res := RuleResult{
		ID:           rule.PolicyID,
		Name:         rule.Name,
		Status:       StatusCompliant,
		Violations:   []string{},
		Evidence:     map[string]interface{}{},
		Traceability: copyMap(rule.Metadata),
	}
	if len(matched) == len(rule.Controls) {
		res.Triggered = true
		res.Status = rule.Enforcement.Result
		res.Violations = matched
	}

	if rule.Evidence != nil {
		for _, key := range rule.Evidence.Include {
			if v, ok := signals[key]; ok {
				res.Evidence[key] = v.Interface()
			}
		}
	}
	return res
}

func (e *Engine) controlContext(input map[string]interface{}, diff map[string]string) *controls.Context {
	repo, _ := input["repo"].(string)
	if repo == "" {
		repo = "unknown"
	}
	changeID := ""
	if v, ok := input["change_id"]; ok && v != nil {
		changeID = ValueOf(v).String()
	}
	head, _ := input["head_sha"].(string)

	reviews := e.reviews
	if reviews == nil {
		reviews = reviewsFromInput(input["reviews"])
	}

	return &controls.Context{
		Repo:     repo,
		ChangeID: changeID,
		HeadSHA:  head,
		Diff:     diff,
		Config:   e.controlsCfg,
		Reviews:  reviews,
	}
}

func diffFromInput(input map[string]interface{}) map[string]string {
	switch d := input["diff"].(type) {
	case map[string]string:
		return d
	case map[string]interface{}:
		out := make(map[string]string, len(d))
		for path, v := range d {
			if s, ok := v.(string); ok {
				out[path] = s
			}
		}
		return out
	}
	return nil
}

// reviewsFromInput reads reviews in their decoded JSON form.
func reviewsFromInput(v interface{}) controls.ReviewSource {
	switch list := v.(type) {
	case []controls.Review:
		return controls.StaticReviews(list)
	case []interface{}:
		var out controls.StaticReviews
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			r := controls.Review{}
			r.Reviewer, _ = m["reviewer"].(string)
			r.State, _ = m["state"].(string)
			r.CommitID, _ = m["commit_id"].(string)
			if ts, ok := m["submitted_at"].(string); ok {
				r.SubmittedAt, _ = time.Parse(time.RFC3339, ts)
			}
			out = append(out, r)
		}
		return out
	}
	return nil
}

func summarize(findings []controls.Finding) []FindingSummary {
	out := make([]FindingSummary, len(findings))
	for i, f := range findings {
		out[i] = FindingSummary{
			ControlID: f.ControlID,
			RuleID:    f.RuleID,
			Severity:  f.Severity,
			Message:   f.Message,
			FilePath:  f.FilePath,
		}
	}
	return out
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
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

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
