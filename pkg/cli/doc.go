/*
Package cli provides command-line helpers for the gatekeeper command.

Output Formatting:

Commands render their results as text, JSON or, for tabular output, CSV:

	format, err := cli.ParseFormat(flags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}
	table := &cli.Table{Headers: []string{"RULE", "STATUS"}}
	table.Append("SEC-PR-002.R1", "BLOCK")
	return cli.NewFormatter(format).FormatTo(os.Stdout, table)

Exit Codes:

ExitCode maps a command error to the process exit status. A blocking
evaluation returns an ExitError so CI pipelines fail without the command
itself having failed.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
