// gatekeeper compiles compliance policies written in the gatekeeper rule
// language and evaluates code changes against them.
//
// Usage:
//
//	# Compile policies/ into policies/compiled/
//	gatekeeper build
//
//	# Check policy sources without writing anything
//	gatekeeper lint policies/
//
//	# Evaluate a change described as JSON
//	gatekeeper evaluate --input change.json
//
//	# Compare two builds
//	gatekeeper manifest diff old/manifest.json policies/compiled
//
//	# Rebuild on every source change
//	gatekeeper watch --metrics-addr :9090
//
//	# Query stored evaluation records
//	gatekeeper evidence query --status BLOCK --since 2026-01-01T00:00:00Z
package main

import (
	"os"

	"gatekeeper-hq/gatekeeper/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(Execute()))
}
