package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/policy/builder"
)

var manifestFlags struct {
	format string
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect build manifests",
	Long: `Inspect the manifest.json written by every build.

Subcommands:
  show  - List the policies and rules of a build
  diff  - Compare two builds`,
}

var manifestShowCmd = &cobra.Command{
	Use:   "show [manifest|dir]",
	Short: "List the policies and rules of a build",
	Long: `List the policies and rules recorded in a manifest. With no argument the
configured policy.compiled_dir is read.

Examples:
  gatekeeper manifest show
  gatekeeper manifest show dist/rules/manifest.json --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: showManifest,
}

var manifestDiffCmd = &cobra.Command{
	Use:   "diff OLD NEW",
	Short: "Compare two builds",
	Long: `Compare two manifests (files or directories containing manifest.json)
and list added, removed and changed policies. Version changes are classified
as upgrade, downgrade or unchanged using semantic versioning.

Examples:
  gatekeeper manifest diff release/manifest.json policies/compiled
  gatekeeper manifest diff old/ new/ --format json`,
	Args: cobra.ExactArgs(2),
	RunE: diffManifests,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.AddCommand(manifestShowCmd)
	manifestCmd.AddCommand(manifestDiffCmd)

	manifestCmd.PersistentFlags().StringVar(&manifestFlags.format, "format", "text", "output format: text, json")
}

func showManifest(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(manifestFlags.format)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Policy.CompiledDir
	}

	m, err := builder.LoadManifest(path)
	if err != nil {
		return cli.NewCommandError("manifest show", err)
	}

	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, m)
	}

	fmt.Fprintf(w, "Compiled at: %s (compiler %s)\n", m.CompiledAt, m.CompilerVersion)
	fmt.Fprintf(w, "Digest: %s\n", m.Digest)
	if m.Source != nil {
		fmt.Fprintf(w, "Source: %s@%s (%s)\n", m.Source.Repository, m.Source.Branch, m.Source.Commit)
	}
	fmt.Fprintf(w, "Policies: %d, rules: %d\n\n", len(m.Policies), m.RuleCount())

	ids := make([]string, 0, len(m.Policies))
	for id := range m.Policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := &cli.Table{Headers: []string{"POLICY", "VERSION", "RULES"}}
	for _, id := range ids {
		p := m.Policies[id]
		table.Append(id, p.Version, strings.Join(p.Rules, ","))
	}
	return cli.NewFormatter(cli.FormatText).FormatTo(w, table)
}

func diffManifests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(manifestFlags.format)
	if err != nil {
		return err
	}

	oldM, err := builder.LoadManifest(args[0])
	if err != nil {
		return cli.NewCommandError("manifest diff", err)
	}
	newM, err := builder.LoadManifest(args[1])
	if err != nil {
		return cli.NewCommandError("manifest diff", err)
	}

	diff := builder.DiffManifests(oldM, newM)

	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, diff)
	}

	if diff.Empty() {
		fmt.Fprintln(w, "No changes")
		return nil
	}
	for _, id := range diff.Added {
		fmt.Fprintf(w, "+ %s (%s)\n", id, newM.Policies[id].Version)
	}
	for _, id := range diff.Removed {
		fmt.Fprintf(w, "- %s (%s)\n", id, oldM.Policies[id].Version)
	}
	for _, c := range diff.Changed {
		fmt.Fprintf(w, "~ %s %s -> %s (%s)\n", c.PolicyID, c.OldVersion, c.NewVersion, c.Version)
		for _, r := range c.AddedRules {
			fmt.Fprintf(w, "    + %s\n", r)
		}
		for _, r := range c.RemovedRules {
			fmt.Fprintf(w, "    - %s\n", r)
		}
	}
	return nil
}
