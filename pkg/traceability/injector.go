package traceability

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gatekeeper-hq/gatekeeper/pkg/dsl/compiler"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

// Defaults for metadata that cannot be resolved.
const (
	UnknownPolicy  = "UNKNOWN"
	UnknownVersion = "0.0.0"
)

// Finding is the traceable form of one triggered rule.
type Finding struct {
	FindingID      string            `json:"finding_id"`
	Fingerprint    string            `json:"fingerprint"`
	Message        string            `json:"message"`
	Severity       string            `json:"severity"`
	PolicyID       string            `json:"policy_id"`
	ParentPolicy   string            `json:"parent_policy"`
	RuleID         string            `json:"rule_id"`
	PolicyVersion  string            `json:"policy_version"`
	Compliance     map[string]string `json:"compliance"`
	CompiledSource string            `json:"compiled_source"`
}

// Map returns f keyed as it is merged into RuleResult.Traceability.
func (f *Finding) Map() map[string]interface{} {
	compliance := make(map[string]interface{}, len(f.Compliance))
	for k, v := range f.Compliance {
		compliance[k] = v
	}
	return map[string]interface{}{
		"finding_id":      f.FindingID,
		"fingerprint":     f.Fingerprint,
		"severity":        f.Severity,
		"parent_policy":   f.ParentPolicy,
		"rule_id":         f.RuleID,
		"policy_version":  f.PolicyVersion,
		"compliance":      compliance,
		"compiled_source": f.CompiledSource,
	}
}

// Option configures an Injector.
type Option func(*Injector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Injector) { i.logger = logging.Component(logger, "traceability") }
}

// Injector enriches triggered results. It implements engine.Tracer.
type Injector struct {
	root   string
	cache  Cache
	logger *slog.Logger
}

var _ engine.Tracer = (*Injector)(nil)

// NewInjector creates an injector reading artifacts under root. A nil
// cache gets a fresh MemoryCache.
func NewInjector(root string, cache Cache, opts ...Option) *Injector {
	if cache == nil {
		cache = NewMemoryCache()
	}
	i := &Injector{
		root:   root,
		cache:  cache,
		logger: logging.Component(nil, "traceability"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Reset drops cached metadata, typically after a rebuild.
func (i *Injector) Reset() {
	i.cache.Purge()
}

// Inject merges a Finding into the traceability of every triggered result.
func (i *Injector) Inject(result *engine.RunResult) {
	for idx := range result.Results {
		r := &result.Results[idx]
		if !r.Triggered {
			continue
		}
		if r.Traceability == nil {
			r.Traceability = map[string]interface{}{}
		}
		f := i.Trace(r)
		for k, v := range f.Map() {
			r.Traceability[k] = v
		}
	}
}

// Trace builds the Finding for one result. Metadata comes from the
// compiled artifact when it can be found, otherwise from the metadata the
// result already carries.
func (i *Injector) Trace(r *engine.RuleResult) *Finding {
	fp := Fingerprint(r.ID, r.Violations)

	severity := "MEDIUM"
	if r.Status == engine.StatusBlock {
		severity = "HIGH"
	}

	ruleID := UnknownPolicy
	if idx := strings.LastIndex(r.ID, "."); idx >= 0 {
		ruleID = r.ID[idx+1:]
	}

	f := &Finding{
		FindingID:      "evt_" + fp[:12],
		Fingerprint:    fp,
		Message:        strings.Join(r.Violations, "; "),
		Severity:       severity,
		PolicyID:       r.ID,
		ParentPolicy:   UnknownPolicy,
		RuleID:         ruleID,
		PolicyVersion:  UnknownVersion,
		Compliance:     map[string]string{},
		CompiledSource: r.ID + compiler.ArtifactExtension,
	}

	meta := i.lookup(r.ID)
	if meta == nil {
		meta = metadataFromResult(r.Traceability)
	}
	if meta.ParentPolicy != "" {
		f.ParentPolicy = meta.ParentPolicy
	}
	if meta.Version != "" {
		f.PolicyVersion = meta.Version
	}
	for k, v := range meta.Compliance {
		f.Compliance[k] = v
	}
	return f
}

// Fingerprint is the SHA-256 of "<rule id>:<violations as a JSON array>".
// It is stable for the same rule and violations.
func Fingerprint(ruleID string, violations []string) string {
	if violations == nil {
		violations = []string{}
	}
	encoded, _ := json.Marshal(violations)
	sum := sha256.Sum256([]byte(ruleID + ":" + string(encoded)))
	return hex.EncodeToString(sum[:])
}

func (i *Injector) lookup(ruleID string) *compiler.Metadata {
	if meta, ok := i.cache.Get(ruleID); ok {
		return meta
	}

	path, err := i.find(ruleID + compiler.ArtifactExtension)
	if err != nil {
		i.logger.Debug("compiled artifact not found", "rule", ruleID, "error", err)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		i.logger.Warn("failed to read compiled artifact", "path", path, "error", err)
		return nil
	}
	var art compiler.Artifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		i.logger.Warn("failed to parse compiled artifact", "path", path, "error", err)
		return nil
	}

	i.cache.Put(ruleID, &art.Metadata)
	return &art.Metadata
}

var errStopWalk = errors.New("found")

func (i *Injector) find(name string) (string, error) {
	direct := filepath.Join(i.root, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	var found string
	err := filepath.WalkDir(i.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return errStopWalk
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err == nil {
		err = fs.ErrNotExist
	}
	return "", err
}

func metadataFromResult(m map[string]interface{}) *compiler.Metadata {
	meta := &compiler.Metadata{}
	meta.ParentPolicy, _ = m["parent_policy"].(string)
	meta.Version, _ = m["version"].(string)
	switch c := m["compliance"].(type) {
	case map[string]string:
		meta.Compliance = c
	case map[string]interface{}:
		meta.Compliance = make(map[string]string, len(c))
		for k, v := range c {
			if s, ok := v.(string); ok {
				meta.Compliance[k] = s
			}
		}
	}
	return meta
}
