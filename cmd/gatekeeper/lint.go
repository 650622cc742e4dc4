package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/dsl/compiler"
	dslErrors "gatekeeper-hq/gatekeeper/pkg/dsl/errors"
	"gatekeeper-hq/gatekeeper/pkg/dsl/parser"
	"gatekeeper-hq/gatekeeper/pkg/dsl/validator"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
)

var lintFlags struct {
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint [file|dir]...",
	Short: "Check policy sources",
	Long: `Check policy sources for lexical, syntax, semantic and compile errors
without writing any artifacts.

Directories are searched recursively for .dsl files. With no arguments the
configured policy.source_dir is checked.

Examples:
  # Lint the configured source directory
  gatekeeper lint

  # Lint one file
  gatekeeper lint policies/secrets.dsl

  # JSON output for CI/CD
  gatekeeper lint policies/ --format json`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the outcome of checking one source file.
type LintResult struct {
	File     string           `json:"file"`
	Valid    bool             `json:"valid"`
	PolicyID string           `json:"policy_id,omitempty"`
	Rules    int              `json:"rules"`
	Errors   []LintDiagnostic `json:"errors,omitempty"`
}

// LintDiagnostic is one error found in a source file.
type LintDiagnostic struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`

	formatted string
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{cfg.Policy.SourceDir}
	}
	files, err := lintTargets(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return cli.NewCommandError("lint", errors.New("no policy files found"))
	}

	results := make([]LintResult, 0, len(files))
	failed := 0
	for _, file := range files {
		res := lintFile(file, cfg.Policy.MaxFileSize)
		if !res.Valid {
			failed++
		}
		results = append(results, res)
	}

	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(w, results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Valid {
				fmt.Fprintf(w, "✓ %s (%s, %d rules)\n", res.File, res.PolicyID, res.Rules)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", res.File)
			for _, d := range res.Errors {
				fmt.Fprint(w, d.formatted)
			}
		}
		fmt.Fprintf(w, "\n%d file(s), %d with errors\n", len(results), failed)
	}

	if failed > 0 {
		return cli.NewExitError(1, fmt.Errorf("%d policy file(s) failed validation", failed))
	}
	return nil
}

func lintTargets(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, cli.NewCommandError("lint", err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == builder.SourceExtension {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, cli.NewCommandError("lint", err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func lintFile(path string, maxSize int64) LintResult {
	result := LintResult{File: path}

	p := parser.NewParser()
	if maxSize > 0 {
		p.WithMaxFileSize(maxSize)
	}
	policy, err := p.Parse(path)
	if err != nil {
		result.Errors = diagnostics(err)
		return result
	}
	result.PolicyID = policy.PolicyID

	if err := validator.Validate(policy); err != nil {
		result.Errors = diagnostics(err)
		return result
	}

	source, err := os.ReadFile(path)
	if err != nil {
		result.Errors = diagnostics(err)
		return result
	}
	rules, err := compiler.Compile(policy, string(source))
	if err != nil {
		result.Errors = diagnostics(err)
		return result
	}

	result.Valid = true
	result.Rules = len(rules)
	return result
}

func diagnostics(err error) []LintDiagnostic {
	var list *dslErrors.ErrorList
	if errors.As(err, &list) {
		out := make([]LintDiagnostic, 0, list.Count())
		for _, e := range list.Errors {
			out = append(out, diagnostic(e))
		}
		return out
	}

	var single *dslErrors.Error
	if errors.As(err, &single) {
		return []LintDiagnostic{diagnostic(single)}
	}

	return []LintDiagnostic{{Message: err.Error(), formatted: "  " + err.Error() + "\n"}}
}

func diagnostic(e *dslErrors.Error) LintDiagnostic {
	return LintDiagnostic{
		Line:       e.Location.Line,
		Column:     e.Location.Column,
		Type:       string(e.Type),
		Message:    e.Message,
		Suggestion: e.Suggestion,
		formatted:  indent(e.Format()),
	}
}

func indent(s string) string {
	out := make([]byte, 0, len(s)+16)
	start := true
	for i := 0; i < len(s); i++ {
		if start {
			out = append(out, ' ', ' ')
		}
		out = append(out, s[i])
		start = s[i] == '\n'
	}
	return string(out)
}
