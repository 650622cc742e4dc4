package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
)

var buildFlags struct {
	source  string
	out     string
	workers int
	atomic  bool
	format  string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile policy sources into rule artifacts",
	Long: `Compile every .dsl file under the source directory into one YAML artifact
per rule and write manifest.json next to them.

A file that fails to compile is reported and skipped; the other files are
still compiled. With --atomic nothing is published unless every file
compiled.

Examples:
  # Build with configured directories
  gatekeeper build

  # Build another tree atomically
  gatekeeper build --source ./policies --out ./dist/rules --atomic

  # JSON summary for CI
  gatekeeper build --format json`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildFlags.source, "source", "s", "", "policy source directory (overrides policy.source_dir)")
	buildCmd.Flags().StringVarP(&buildFlags.out, "out", "o", "", "output directory (overrides policy.compiled_dir)")
	buildCmd.Flags().IntVar(&buildFlags.workers, "workers", 0, "files compiled concurrently (overrides policy.workers)")
	buildCmd.Flags().BoolVar(&buildFlags.atomic, "atomic", false, "publish output only when every file compiles")
	buildCmd.Flags().StringVar(&buildFlags.format, "format", "text", "output format: text, json")
}

// BuildSummary is the JSON form of a build result.
type BuildSummary struct {
	Success   bool          `json:"success"`
	Files     int           `json:"files"`
	Rules     int           `json:"rules"`
	OutputDir string        `json:"output_dir,omitempty"`
	Digest    string        `json:"digest,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(buildFlags.format)
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if buildFlags.source != "" {
		cfg.Policy.SourceDir = buildFlags.source
	}
	if buildFlags.out != "" {
		cfg.Policy.CompiledDir = buildFlags.out
	}
	if buildFlags.workers > 0 {
		cfg.Policy.Workers = buildFlags.workers
	}
	if buildFlags.atomic {
		cfg.Policy.Atomic = true
	}

	b, err := newBuilder(cfg, logger, nil)
	if err != nil {
		return cli.NewCommandError("build", err)
	}

	result, err := b.Build(cmd.Context())
	if err != nil {
		return cli.NewCommandError("build", err)
	}

	summary := summarizeBuild(result)
	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(w, summary); err != nil {
			return err
		}
	} else {
		printBuild(cmd, summary)
	}

	if !result.Success {
		return cli.NewExitError(1, fmt.Errorf("%d of %d policy files failed to compile", len(result.Errors), result.Files))
	}
	return nil
}

func summarizeBuild(result *builder.Result) BuildSummary {
	s := BuildSummary{
		Success:   result.Success,
		Files:     result.Files,
		Rules:     result.Rules,
		OutputDir: result.OutputDir,
		Duration:  result.Duration,
	}
	if result.Manifest != nil && result.OutputDir != "" {
		s.Digest = result.Manifest.Digest
	}
	for _, fe := range result.Errors {
		s.Errors = append(s.Errors, fe.Error())
	}
	return s
}

func printBuild(cmd *cobra.Command, s BuildSummary) {
	w := cmd.OutOrStdout()
	for _, e := range s.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
	if s.Success {
		fmt.Fprintf(w, "✓ Compiled %d rules from %d files into %s\n", s.Rules, s.Files, s.OutputDir)
		fmt.Fprintf(w, "  digest: %s\n", s.Digest)
		return
	}
	fmt.Fprintf(w, "Build failed: %d error(s) in %d file(s)\n", len(s.Errors), s.Files)
}
