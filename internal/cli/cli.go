// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// run executes args against a fresh command tree.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &options{}
	e := newEnv(opts)
	defer e.Close()

	root := newRootCmd(opts, e)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		name := root.Name()
		if cmd != nil {
			name = cmd.CommandPath()
		}
		DisplayError(stderr, name, err, opts.JSON)
		return ExitCode(err)
	}
	return ExitSuccess
}

// newRootCmd builds the command tree. Running the root starts the TUI.
func newRootCmd(opts *options, e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "ragdesk",
		Short: "Terminal client for the RAG document assistant",
		Long: `ragdesk is a terminal client for a retrieval-augmented assistant.

Run it without arguments to open the chat, documents and metrics tabs.
Use the subcommands for one-off questions, document management and scripts.`,
		Example: `  ragdesk                           Open the terminal UI
  ragdesk ask "What is RAG?"        Ask one question
  ragdesk docs upload guide.pdf     Upload a document (admin)
  ragdesk --json stats              Backend statistics as JSON`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), e)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&opts.JSON, "json", false, "print machine-readable JSON")
	flags.StringVar(&opts.APIURL, "api-url", "", "backend URL (overrides api.base_url)")
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.ragdesk/config.toml)")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	root.AddCommand(
		newAskCmd(opts, e),
		newChatCmd(opts, e),
		newLoginCmd(opts, e),
		newLogoutCmd(opts, e),
		newWhoamiCmd(opts, e),
		newHealthCmd(opts, e),
		newStatsCmd(opts, e),
		newReportCmd(opts, e),
		newDocsCmd(opts, e),
		newHistoryCmd(opts, e),
		newConfigCmd(opts, e),
		newVersionCmd(opts),
	)
	return root
}

// newPrinter returns the output helper for cmd.
func newPrinter(cmd *cobra.Command, opts *options) *printer {
	return &printer{
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		json:    opts.JSON,
		command: cmd.CommandPath(),
	}
}

// exactArgs is cobra.ExactArgs reporting a UsageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs reporting a UsageError.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}
