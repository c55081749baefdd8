// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/commands"
	"github.com/jeranaias/ragdesk-tui/internal/config"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/session"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
)

// historyFileName holds the chat prompt history under the config dir.
const historyFileName = "chat_history"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides line editing and persistent input history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader(registry *commands.Registry) *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(commands.NewCompleter(registry).Lines)

	r := &lineReader{line: line, historyFile: filepath.Join(config.ConfigDir(), historyFileName)}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Prompt reads one line. Non-blank input is added to the history.
func (r *lineReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with 0600 permissions and restores the terminal.
func (r *lineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCmd(opts *options, e *env) *cobra.Command {
	var flags chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a line-based chat session",
		Long: `Chat opens an interactive prompt with input history. Slash commands work
as in the terminal UI; type /help for the list and /quit or Ctrl+D to leave.`,
		Example: `  ragdesk chat
  ragdesk chat --mode brief --no-rag`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.JSON {
				return usageErrorf("chat is interactive and does not support --json")
			}
			patch, err := flags.patch()
			if err != nil {
				return err
			}
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			e.serveMetrics(cmd.Context())

			r := newREPL(e, cmd.OutOrStdout(), cmd.ErrOrStderr())
			defer r.Close()
			r.store.UpdateConfig(patch)
			r.startAutosave(cmd.Context())

			reader := newLineReader(r.registry)
			defer reader.Close()

			r.banner()
			for {
				input, err := reader.Prompt("> ")
				if errors.Is(err, liner.ErrPromptAborted) {
					continue
				}
				if err != nil {
					break // io.EOF on Ctrl+D
				}
				if r.Handle(cmd.Context(), input) {
					break
				}
			}
			r.summary()
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl runs chat turns and slash commands against one session.
type repl struct {
	e      *env
	out    io.Writer
	errOut io.Writer

	store    *session.Store
	sender   *session.Sender
	usage    *telemetry.UsageTracker
	registry *commands.Registry
	cmdCtx   *commands.Context
	closers  []func()
}

func newREPL(e *env, out, errOut io.Writer) *repl {
	store := session.NewStore(e.cfg.ChatDefaults())
	usage := telemetry.NewUsageTracker()
	sender := session.NewSender(store, e.client,
		session.WithLogger(e.logger),
		session.WithMetrics(e.metrics),
		session.WithUsage(usage),
	)
	health := monitor.NewHealthChecker(e.client, monitor.HealthConfig{Logger: e.logger, Metrics: e.metrics})

	r := &repl{
		e:        e,
		out:      out,
		errOut:   errOut,
		store:    store,
		sender:   sender,
		usage:    usage,
		registry: commands.NewRegistry(),
		cmdCtx: &commands.Context{
			Store:     store,
			ThreadID:  sender.ThreadID(),
			Health:    health,
			Documents: e.documentManager(),
			ExportDir: ".",
			Timeout:   e.cfg.Timeout(),
			Logger:    e.logger,
		},
	}
	r.closers = append(r.closers, sender.Close, store.Close)
	return r
}

// startAutosave mirrors the session into the history when enabled.
func (r *repl) startAutosave(ctx context.Context) {
	if !r.e.cfg.Storage.Autosave {
		return
	}
	history, err := r.e.history()
	if err != nil {
		r.e.logger.Warn("HISTORY_UNAVAILABLE", zap.Error(err))
		return
	}
	saver := storage.NewAutosaver(history, r.store, r.sender.ThreadID(), r.e.logger)
	saver.Start(ctx)
	r.closers = append([]func(){func() {
		saver.Stop()
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = saver.Flush(flushCtx)
		_ = history.Close()
	}}, r.closers...)
}

// Close stops the session. The autosaver is flushed before the store closes.
func (r *repl) Close() {
	for _, fn := range r.closers {
		fn()
	}
	r.closers = nil
}

func (r *repl) banner() {
	cfg := r.store.Config()
	fmt.Fprintln(r.out, TitleStyle.Render("ragdesk chat"))
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Model %s, %s mode, RAG %s. Type /help for commands, /quit to leave.",
		cfg.ModelName, cfg.Mode.Label(), onOff(cfg.UseRAG))))
	fmt.Fprintln(r.out)
}

// Handle processes one line of input. It returns true when the session
// should end.
func (r *repl) Handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	r.cmdCtx.Base = ctx
	if cmd, ok := r.registry.Execute(r.cmdCtx, input); ok {
		return r.apply(ctx, cmd)
	}
	r.send(ctx, input)
	return false
}

// apply runs a command synchronously and prints what it reports.
func (r *repl) apply(ctx context.Context, cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	switch msg := cmd().(type) {
	case tea.QuitMsg:
		return true
	case tea.BatchMsg:
		for _, c := range msg {
			if r.apply(ctx, c) {
				return true
			}
		}
	case commands.SystemMessageMsg:
		if msg.Title != "" {
			fmt.Fprintln(r.out, SectionStyle.Render(msg.Title))
		}
		fmt.Fprintln(r.out, msg.Content)
	case commands.ErrorMsg:
		fmt.Fprintln(r.errOut, ErrorStyle.Render(msg.Command+": "+api.Detail(msg.Err)))
	case commands.ConfigChangedMsg:
		fmt.Fprintln(r.out, SuccessStyle.Render(msg.Notice))
	case commands.ChatClearedMsg:
		r.usage.Reset()
		fmt.Fprintln(r.out, SuccessStyle.Render("Chat cleared"))
	case commands.NewChatMsg:
		r.usage.Reset()
		fmt.Fprintln(r.out, SuccessStyle.Render("New conversation"))
	case commands.ForwardMsg:
		r.send(ctx, msg.Text)
	case commands.ExportCompleteMsg:
		if msg.Error != nil {
			fmt.Fprintln(r.errOut, ErrorStyle.Render("Export failed: "+msg.Error.Error()))
		} else {
			fmt.Fprintln(r.out, SuccessStyle.Render("Exported to "+msg.Path))
		}
	}
	return false
}

// send runs one chat turn and prints the answer or the error.
func (r *repl) send(ctx context.Context, text string) {
	fmt.Fprintln(r.errOut, DimStyle.Render("Generating answer..."))
	resp, err := r.sender.Send(ctx, text)
	if err != nil {
		fmt.Fprintln(r.errOut, ErrorStyle.Render("Error: "+api.Detail(err)))
		return
	}
	cfg := r.e.cfg.UI
	fmt.Fprintln(r.out, renderAnswer(r.out, resp, cfg.WordWrap, cfg.ShowSources, cfg.ShowMetrics))
}

// summary prints the session totals.
func (r *repl) summary() {
	u := r.usage.Snapshot()
	if u.Answers == 0 && u.Errors == 0 {
		return
	}
	fmt.Fprintln(r.out, SectionStyle.Render("Session summary"))
	fmt.Fprintln(r.out, RenderField("Answers", fmt.Sprintf("%d (%d with RAG)", u.Answers, u.RAGAnswers)))
	fmt.Fprintln(r.out, RenderField("Errors", fmt.Sprintf("%d", u.Errors)))
	fmt.Fprintln(r.out, RenderField("Average latency", u.AvgLatency().Round(time.Millisecond).String()))
	if u.Tokens > 0 {
		fmt.Fprintln(r.out, RenderField("Tokens", monitor.FormatNumber(float64(u.Tokens))))
	}
	if u.Cost > 0 {
		fmt.Fprintln(r.out, RenderField("Estimated cost", fmt.Sprintf("$%.6f", u.Cost)))
	}
	fmt.Fprintln(r.out, RenderField("Duration", time.Since(u.StartTime).Round(time.Second).String()))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
