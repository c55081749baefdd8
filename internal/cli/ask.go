// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/commands"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/session"
)

// AskData is the --json payload of ask.
type AskData struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []model.Source `json:"sources"`
	Metrics  map[string]any `json:"metrics,omitempty"`
	ThreadID string         `json:"thread_id"`
	Model    string         `json:"model"`
	Mode     model.Mode     `json:"mode"`
	UseRAG   bool           `json:"use_rag"`
}

// chatFlags are the per-invocation overrides shared by ask and chat.
type chatFlags struct {
	mode  string
	model string
	noRAG bool
}

func (f *chatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "response mode: brief or extended")
	cmd.Flags().StringVar(&f.model, "model", "", "backend model name")
	cmd.Flags().BoolVar(&f.noRAG, "no-rag", false, "answer without document retrieval")
}

// patch converts the flags into a config patch.
func (f *chatFlags) patch() (model.ConfigPatch, error) {
	var p model.ConfigPatch
	if f.mode != "" {
		mode, ok := commands.ParseMode(f.mode)
		if !ok {
			return p, usageErrorf("invalid --mode %q (use brief or extended)", f.mode)
		}
		p.Mode = model.ModePtr(mode)
	}
	if f.model != "" {
		p.ModelName = model.StringPtr(f.model)
	}
	if f.noRAG {
		p.UseRAG = model.BoolPtr(false)
	}
	return p, nil
}

func newAskCmd(opts *options, e *env) *cobra.Command {
	var flags chatFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Long: `Ask sends a single question to the assistant and prints the answer with
its sources. Without arguments the question is read from stdin.`,
		Example: `  ragdesk ask "What does the guide say about AI regulation?"
  ragdesk ask --mode brief "Summarise the notes"
  echo "What is RAG?" | ragdesk ask --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if in := cmd.InOrStdin(); question == "" && (in != os.Stdin || stdinIsPipe()) {
				data, err := io.ReadAll(in)
				if err != nil {
					return fmt.Errorf("read question from stdin: %w", err)
				}
				question = strings.TrimSpace(string(data))
			}
			if question == "" {
				return usageErrorf("no question given")
			}
			patch, err := flags.patch()
			if err != nil {
				return err
			}

			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			store := session.NewStore(e.cfg.ChatDefaults())
			defer store.Close()
			store.UpdateConfig(patch)
			sender := session.NewSender(store, e.client,
				session.WithLogger(e.logger),
				session.WithMetrics(e.metrics),
			)
			defer sender.Close()

			resp, err := sender.Send(cmd.Context(), question)
			if err != nil {
				return &CommandError{Command: "ask", Action: "request", Err: err}
			}

			cfg := store.Config()
			data := AskData{
				Question: question,
				Answer:   resp.Response,
				Sources:  resp.Sources,
				Metrics:  resp.Metrics,
				ThreadID: sender.ThreadID(),
				Model:    cfg.ModelName,
				Mode:     cfg.Mode,
				UseRAG:   cfg.UseRAG,
			}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				fmt.Fprint(w, renderAnswer(w, resp, e.cfg.UI.WordWrap, e.cfg.UI.ShowSources, e.cfg.UI.ShowMetrics))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// =============================================================================
// ANSWER RENDERING
// =============================================================================

// renderAnswer formats an answer for w: markdown through glamour, then
// the cited sources and the answer metrics.
func renderAnswer(w io.Writer, resp *api.ChatResponse, wrap int, showSources, showMetrics bool) string {
	width := min(terminalWidth(w)-2, max(wrap, MinTerminalWidth))

	var sb strings.Builder
	sb.WriteString(renderMarkdown(w, resp.Response, width))

	if showSources && len(resp.Sources) > 0 {
		sb.WriteString(SectionStyle.Render(fmt.Sprintf("Sources (%d)", len(resp.Sources))) + "\n")
		for i, src := range resp.Sources {
			line := fmt.Sprintf("  %d. %s", i+1, src.DisplayName())
			if src.RelevanceScore != nil {
				line += DimStyle.Render(fmt.Sprintf(" (%.2f)", *src.RelevanceScore))
			}
			sb.WriteString(line + "\n")
		}
	}

	if showMetrics && len(resp.Metrics) > 0 {
		keys := make([]string, 0, len(resp.Metrics))
		for k := range resp.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, model.MetricLabel(k)+": "+model.FormatMetricValue(k, resp.Metrics[k]))
		}
		sb.WriteString("\n" + DimStyle.Render(strings.Join(parts, " | ")) + "\n")
	}
	return sb.String()
}

// renderMarkdown renders md with glamour, picking the style from the
// terminal. Piped output uses the plain notty style.
func renderMarkdown(w io.Writer, md string, width int) string {
	style := glamour.WithStandardStyle("notty")
	if colorsEnabled(w) {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md + "\n"
	}
	out, err := r.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

// stdinIsPipe reports whether stdin has data piped in.
func stdinIsPipe() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice == 0
}
