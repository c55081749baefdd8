// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/reload"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

func newDocsCmd(opts *options, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Manage the indexed documents",
		Long: `Docs lists the backend's document library and, with an admin session,
uploads, deletes and reindexes documents.`,
	}
	cmd.AddCommand(
		newDocsListCmd(opts, e),
		newDocsUploadCmd(opts, e),
		newDocsDeleteCmd(opts, e),
		newDocsReloadCmd(opts, e),
		newDocsWatchCmd(opts, e),
	)
	return cmd
}

// =============================================================================
// LIST
// =============================================================================

// DocsListData is the JSON payload of docs list.
type DocsListData struct {
	Documents []api.Document `json:"documents"`
	Shown     int            `json:"shown"`
	Total     int            `json:"total"`
	Types     []string       `json:"types"`
}

func newDocsListCmd(opts *options, e *env) *cobra.Command {
	var query, docType string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents",
		Example: `  ragdesk docs list
  ragdesk docs list --search unesco --type Guía`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			all, err := e.documentManager().List(cmd.Context())
			if err != nil {
				return &CommandError{Command: "docs list", Action: "request", Err: err}
			}
			shown := documents.Filter(all, query, docType)
			data := DocsListData{Documents: shown, Shown: len(shown), Total: len(all), Types: documents.Types(all)}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				renderDocuments(w, data)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "filter by title, author or filename")
	cmd.Flags().StringVarP(&docType, "type", "t", "", "filter by document type")
	return cmd
}

func renderDocuments(w io.Writer, d DocsListData) {
	if d.Shown == 0 {
		fmt.Fprintln(w, DimStyle.Render("No documents found"))
		return
	}
	width := terminalWidth(w)
	titleWidth := max(16, width-62)
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%-28s  %-*s  %-16s  %4s  %8s",
		"File", titleWidth, "Title", "Type", "Year", "Size")))
	for _, doc := range d.Documents {
		year, size := "", ""
		if doc.Year > 0 {
			year = fmt.Sprintf("%d", doc.Year)
		}
		if doc.Size > 0 {
			size = monitor.FormatBytes(doc.Size)
		}
		fmt.Fprintf(w, "%s  %s  %s  %4s  %8s\n",
			util.PadRight(util.Truncate(doc.Filename, 28), 28),
			util.PadRight(util.Truncate(doc.DisplayTitle(), titleWidth), titleWidth),
			util.PadRight(util.Truncate(doc.Type, 16), 16),
			year, size)
	}
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("Showing %d of %d documents", d.Shown, d.Total)))
}

// =============================================================================
// UPLOAD AND DELETE
// =============================================================================

// UploadResult is one row of the docs upload payload.
type UploadResult struct {
	Path     string `json:"path"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newDocsUploadCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents (admin)",
		Long: `Upload sends each file to the backend. Files are checked locally for a
supported extension and the size limit before anything is sent. The
command fails if any file fails.`,
		Example: `  ragdesk docs upload guide.pdf notes.txt`,
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			library := e.documentManager()
			p := newPrinter(cmd, opts)

			var results []UploadResult
			var failures []error
			for _, path := range args {
				res := UploadResult{Path: path}
				resp, err := library.Upload(cmd.Context(), path)
				if err != nil {
					res.Error = api.Detail(err)
					failures = append(failures, err)
					p.Println(ErrorStyle.Render(fmt.Sprintf("%s %s: %s", "[X]", path, res.Error)))
				} else {
					res.Filename, res.Size = resp.Filename, resp.Size
					p.Println(SuccessStyle.Render(fmt.Sprintf("[OK] Uploaded %s (%s)", resp.Filename, monitor.FormatBytes(resp.Size))))
				}
				results = append(results, res)
			}

			if opts.JSON {
				if err := p.JSON(NewJSONResponse(p.command, results)); err != nil {
					return err
				}
			}
			if len(failures) > 0 {
				return &CommandError{Command: "docs upload", Action: "upload", Err: errors.Join(failures...)}
			}
			return nil
		},
	}
}

func newDocsDeleteCmd(opts *options, e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <filename>",
		Aliases: []string{"rm"},
		Short:   "Delete a document (admin)",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !yes {
				if opts.JSON {
					return usageErrorf("--json needs --yes to delete without a prompt")
				}
				fmt.Fprint(cmd.ErrOrStderr(), PromptStyle.Render(fmt.Sprintf("Delete %s? [y/N] ", name)))
				answer, _ := readLine(bufio.NewReader(cmd.InOrStdin()))
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("Cancelled"))
					return nil
				}
			}
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			resp, err := e.documentManager().Delete(cmd.Context(), name)
			if err != nil {
				return &CommandError{Command: "docs delete", Action: "delete", Err: err}
			}
			return newPrinter(cmd, opts).Result(resp, func(w io.Writer) {
				fmt.Fprintln(w, SuccessStyle.Render("Deleted "+resp.Filename))
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// =============================================================================
// RELOAD
// =============================================================================

// ReloadData is the JSON payload of docs reload.
type ReloadData struct {
	Started bool           `json:"started"`
	Waited  bool           `json:"waited"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

func newDocsReloadCmd(opts *options, e *env) *cobra.Command {
	var (
		noWait  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "reload",
		Aliases: []string{"reindex"},
		Short:   "Rebuild the retrieval index (admin)",
		Long: `Reload asks the backend to reindex every document and polls the job until
it finishes. If a reindex is already running the command waits for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			poller := reload.NewPoller(e.client,
				reload.WithInterval(e.cfg.ReloadInterval()),
				reload.WithLogger(e.logger),
				reload.WithMetrics(e.metrics),
			)
			defer poller.Stop()
			if err := poller.Start(ctx); err != nil {
				return &CommandError{Command: "docs reload", Action: "start", Err: err}
			}

			p := newPrinter(cmd, opts)
			data := ReloadData{Started: true}
			if noWait {
				return p.Result(data, func(w io.Writer) {
					fmt.Fprintln(w, SuccessStyle.Render("Reindex started"))
				})
			}

			p.Println(DimStyle.Render("Reindexing documents..."))
			select {
			case out, ok := <-poller.Done():
				if !ok {
					return &CommandError{Command: "docs reload", Action: "wait", Err: context.Canceled}
				}
				data.Waited, data.Success, data.Error, data.Result = true, out.Success, out.Err, out.Result
			case <-ctx.Done():
				return &CommandError{Command: "docs reload", Action: "wait", Err: ctx.Err()}
			}

			if err := p.Result(data, func(w io.Writer) {
				if data.Success {
					fmt.Fprintln(w, SuccessStyle.Render("Reindex complete"+reloadSummary(data.Result)))
				}
			}); err != nil {
				return err
			}
			if !data.Success {
				return &CommandError{Command: "docs reload", Action: "reindex", Err: errors.New(data.Error)}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the reindex has started")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up waiting after this long")
	return cmd
}

// reloadSummary describes the backend's last_result, if it counted anything.
func reloadSummary(result map[string]any) string {
	for _, key := range []string{"documents_processed", "documents"} {
		switch n := result[key].(type) {
		case float64:
			return ": " + monitor.FormatNumber(n) + " documents"
		case nil:
		default:
			return fmt.Sprintf(": %v documents", n)
		}
	}
	return ""
}

// =============================================================================
// WATCH
// =============================================================================

func newDocsWatchCmd(opts *options, e *env) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Upload files as they appear in a directory (admin)",
		Long: `Watch uploads every supported file created or changed in dir once it has
been quiet for the debounce period. It runs until interrupted. Without an
argument it watches upload.watch_dir from the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			dir := e.cfg.Upload.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return usageErrorf("no directory given and upload.watch_dir is not set")
			}
			if !cmd.Flags().Changed("debounce") && e.cfg.Upload.DebounceMillis > 0 {
				debounce = time.Duration(e.cfg.Upload.DebounceMillis) * time.Millisecond
			}
			e.serveMetrics(cmd.Context())

			w, err := documents.NewWatcher(dir, e.documentManager(), debounce, e.logger)
			if err != nil {
				return &CommandError{Command: "docs watch", Action: "watch", Err: err}
			}
			defer w.Close()
			if err := w.Start(cmd.Context()); err != nil {
				return &CommandError{Command: "docs watch", Action: "watch", Err: err}
			}

			p := newPrinter(cmd, opts)
			abs, _ := filepath.Abs(dir)
			p.Println(DimStyle.Render("Watching " + abs + " (Ctrl+C to stop)"))
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case res, ok := <-w.Results():
					if !ok {
						return nil
					}
					printWatchResult(p, res)
					e.logger.Debug("WATCH_RESULT", zap.String("path", res.Path), zap.Bool("skipped", res.Skipped), zap.Error(res.Err))
				}
			}
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", documents.DefaultDebounce, "quiet period before a file is uploaded")
	return cmd
}

// printWatchResult prints one line per result, or one JSON object per line
// in JSON mode.
func printWatchResult(p *printer, res documents.WatchResult) {
	row := UploadResult{Path: res.Path}
	if res.Err != nil {
		row.Error = api.Detail(res.Err)
	}
	if res.Response != nil {
		row.Filename, row.Size = res.Response.Filename, res.Response.Size
	}
	if p.json {
		_ = p.JSON(NewJSONResponse(p.command, row))
		return
	}
	name := filepath.Base(res.Path)
	switch {
	case res.Skipped:
		fmt.Fprintln(p.out, WarningStyle.Render("[!] Skipped "+name+": "+row.Error))
	case res.Err != nil:
		fmt.Fprintln(p.out, ErrorStyle.Render("[X] "+name+": "+row.Error))
	default:
		fmt.Fprintln(p.out, SuccessStyle.Render(fmt.Sprintf("[OK] Uploaded %s (%s)", row.Filename, monitor.FormatBytes(row.Size))))
	}
}
