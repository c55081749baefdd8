// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragdesk-tui/internal/export"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
)

func newHistoryCmd(opts *options, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved conversations",
		Long: `History manages conversations saved by the terminal UI and the chat
command when storage.autosave is on. Conversations are addressed by ID, a
unique ID prefix of at least four characters, or their list position
(1 is the most recent).`,
	}
	cmd.AddCommand(
		newHistoryListCmd(opts, e),
		newHistoryShowCmd(opts, e),
		newHistorySearchCmd(opts, e),
		newHistoryExportCmd(opts, e),
		newHistoryDeleteCmd(opts, e),
	)
	return cmd
}

// openHistory loads config and opens the conversation store. History does
// not talk to the backend, so the API client is not built.
func openHistory(e *env) (*storage.ConversationStore, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// loadConversation resolves ref as a list position or an ID.
func loadConversation(cmd *cobra.Command, store *storage.ConversationStore, ref string) (*storage.StoredConversation, error) {
	if n, err := strconv.Atoi(ref); err == nil && n > 0 && len(ref) < 4 {
		return store.LoadByIndex(cmd.Context(), n-1)
	}
	return store.Load(cmd.Context(), ref)
}

func newHistoryListCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(e)
			if err != nil {
				return err
			}
			defer store.Close()
			metas, err := store.List(cmd.Context())
			if err != nil {
				return &CommandError{Command: "history list", Action: "query", Err: err}
			}
			return newPrinter(cmd, opts).Result(metas, func(w io.Writer) {
				fmt.Fprint(w, storage.FormatSessionList(metas))
			})
		},
	}
}

func newHistorySearchCmd(opts *options, e *env) *cobra.Command {
	var messages bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find conversations by summary, or by message text with --messages",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(e)
			if err != nil {
				return err
			}
			defer store.Close()
			search := store.Search
			if messages {
				search = store.SearchMessages
			}
			metas, err := search(cmd.Context(), args[0])
			if err != nil {
				return &CommandError{Command: "history search", Action: "query", Err: err}
			}
			return newPrinter(cmd, opts).Result(metas, func(w io.Writer) {
				fmt.Fprint(w, storage.FormatSessionList(metas))
			})
		},
	}
	cmd.Flags().BoolVarP(&messages, "messages", "m", false, "search message text instead of summaries")
	return cmd
}

func newHistoryShowCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|position>",
		Short: "Print a saved conversation",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(e)
			if err != nil {
				return err
			}
			defer store.Close()
			conv, err := loadConversation(cmd, store, args[0])
			if err != nil {
				return &CommandError{Command: "history show", Action: "load", Err: err}
			}
			return newPrinter(cmd, opts).Result(conv, func(w io.Writer) {
				renderConversation(w, conv, e.cfg.UI.WordWrap)
			})
		},
	}
}

func renderConversation(w io.Writer, conv *storage.StoredConversation, wrap int) {
	fmt.Fprintln(w, TitleStyle.Render(conv.Summary))
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%s  %s, %s mode, RAG %s  %d messages",
		conv.UpdatedAt.Local().Format("2006-01-02 15:04"),
		model.ModelLabel(conv.Model), conv.Mode.Label(), onOff(conv.UseRAG), conv.MessageCount())))
	width := min(terminalWidth(w)-2, max(wrap, MinTerminalWidth))
	for _, msg := range conv.Messages {
		fmt.Fprintln(w)
		switch msg.Role {
		case model.RoleUser:
			fmt.Fprintln(w, PromptStyle.Render(msg.Role.DisplayName()+": ")+msg.Content)
		case model.RoleError:
			fmt.Fprintln(w, ErrorStyle.Render(msg.Content))
		default:
			fmt.Fprintln(w, SectionStyle.Render(msg.Role.DisplayName()))
			fmt.Fprint(w, renderMarkdown(w, msg.Content, width))
			for i, src := range msg.Sources {
				fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("  %d. %s", i+1, src.DisplayName())))
			}
		}
	}
}

func newHistoryExportCmd(opts *options, e *env) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <id|position>",
		Short: "Export a saved conversation to Markdown or JSON",
		Example: `  ragdesk history export 1
  ragdesk history export 3f2a --format json --output ~/exports`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportOpts := export.DefaultOptions()
			exportOpts.OutputDir = output
			exporter, err := export.ForFormat(format, exportOpts)
			if err != nil {
				return &UsageError{Err: err}
			}
			store, err := openHistory(e)
			if err != nil {
				return err
			}
			defer store.Close()
			conv, err := loadConversation(cmd, store, args[0])
			if err != nil {
				return &CommandError{Command: "history export", Action: "load", Err: err}
			}
			path, err := export.ExportToFile(conv, exporter, exportOpts)
			if err != nil {
				return &CommandError{Command: "history export", Action: "export", Err: err}
			}
			data := map[string]string{"id": conv.ID, "path": path, "format": format}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Exported to "+path))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md or json")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	return cmd
}

func newHistoryDeleteCmd(opts *options, e *env) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "delete [id|position]",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation, or all of them with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 || !all && len(args) != 1 {
				return usageErrorf("give one conversation or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(e)
			if err != nil {
				return err
			}
			defer store.Close()

			p := newPrinter(cmd, opts)
			if all {
				if err := store.Clear(cmd.Context()); err != nil {
					return &CommandError{Command: "history delete", Action: "clear", Err: err}
				}
				return p.Result(map[string]any{"deleted": "all"}, func(w io.Writer) {
					fmt.Fprintln(w, SuccessStyle.Render("History cleared"))
				})
			}

			conv, err := loadConversation(cmd, store, args[0])
			if err != nil {
				return &CommandError{Command: "history delete", Action: "load", Err: err}
			}
			if err := store.Delete(cmd.Context(), conv.ID); err != nil {
				return &CommandError{Command: "history delete", Action: "delete", Err: err}
			}
			return p.Result(map[string]any{"deleted": conv.ID}, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Deleted "+conv.Summary))
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every saved conversation")
	return cmd
}
