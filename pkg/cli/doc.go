/*
Package cli provides helpers shared by the polyinfer commands.

Output Formatting:

Command results print as text, JSON or YAML:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

The bench command draws a bar while its workers send prompts:

	bar := cli.NewBar(os.Stderr)
	bar.Start(total)
	bar.Done(err == nil) // from any worker
	bar.Finish()

Signals and Exit Codes:

SIGINT and SIGTERM cancel the command context with a cause matching
ErrInterrupted. ExitCode maps the returned error to 130 for an
interruption, 2 for a ConfigError and 1 otherwise:

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()
	...
	if cli.Interrupted(ctx) {
		return cli.NewCommandError("bench", context.Cause(ctx))
	}
*/
package cli
