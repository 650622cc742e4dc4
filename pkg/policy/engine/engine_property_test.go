//go:build property
// +build property

package engine

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"gatekeeper-hq/gatekeeper/pkg/policy/engine/source"
	"gatekeeper-hq/gatekeeper/pkg/policy/loader"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

func genStatuses() gopter.Gen {
	return gen.SliceOf(gen.OneConstOf(StatusBlock, StatusWarn, StatusCompliant))
}

// Property: shuffling statuses never changes the reduction.
func TestReduceShuffleInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reduce ignores order", prop.ForAll(
		func(statuses []string, seed int64) bool {
			want := Reduce(statuses...)
			shuffled := append([]string(nil), statuses...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			return Reduce(shuffled...) == want
		},
		genStatuses(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property: the parallel reduction inside Evaluate agrees with Reduce over
// the per-rule statuses, for any worker count.
func TestEvaluateMatchesReduce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("evaluate reduces like Reduce", prop.ForAll(
		func(statuses []string, triggers []bool, workers int) bool {
			signals := map[string]interface{}{}
			var rules []*loader.Rule
			for i, s := range statuses {
				id := fmt.Sprintf("R%03d", i)
				rules = append(rules, newRule(id, s, len(statuses)-i, cond("s."+id, OpEqual, true)))
				signals["s."+id] = i < len(triggers) && triggers[i]
			}

			e, err := New(context.Background(), source.NewMemorySource(rules...),
				WithWorkers(workers), WithRegistry(staticRegistry(signals)), WithLogger(logging.Discard()))
			if err != nil {
				return false
			}
			res := e.Evaluate(context.Background(), map[string]interface{}{"diff": someDiff})

			got := make([]string, len(res.Results))
			for i, r := range res.Results {
				got[i] = r.Status
			}
			return res.OverallStatus == Reduce(got...)
		},
		genStatuses(),
		gen.SliceOf(gen.Bool()),
		gen.IntRange(1, 16),
	))

	properties.TestingRun(t)
}

// Property: applying an override twice is the same as applying it once.
func TestOverrideIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	labels := gen.SliceOf(gen.OneConstOf("compliance-override", "emergency", "hotfix-approved", "bug", "docs"))

	properties.Property("override is idempotent", prop.ForAll(
		func(status string, labels []string) bool {
			once := &RunResult{OverallStatus: status}
			ApplyOverride(once, labels, DefaultOverrideLabels)

			twice := &RunResult{OverallStatus: status}
			ApplyOverride(twice, labels, DefaultOverrideLabels)
			ApplyOverride(twice, labels, DefaultOverrideLabels)

			if once.OverallStatus != twice.OverallStatus {
				return false
			}
			if (once.Metadata.Override == nil) != (twice.Metadata.Override == nil) {
				return false
			}
			return once.Metadata.Override == nil || *once.Metadata.Override == *twice.Metadata.Override
		},
		gen.OneConstOf(StatusBlock, StatusWarn, StatusCompliant),
		labels,
	))

	properties.TestingRun(t)
}
