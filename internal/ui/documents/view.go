// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// ragSteps explains retrieval to users with an empty library.
var ragSteps = []string{
	"1. Semantic search finds the most relevant passages.",
	"2. The passages are joined into a context, keeping their source.",
	"3. The model answers from that context.",
	"4. The answer cites the documents it used.",
}

// columns sizes the table to width. Title takes the slack.
func columns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Author", Width: 16},
		{Title: "Year", Width: 6},
		{Title: "Type", Width: 14},
		{Title: "Size", Width: 9},
		{Title: "Chunks", Width: 7},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	title := max(16, width-used-2)
	return append([]table.Column{{Title: "Title", Width: title}}, fixed...)
}

func row(d api.Document) table.Row {
	year := ""
	if d.Year > 0 {
		year = strconv.Itoa(d.Year)
	}
	size := ""
	if d.Size > 0 {
		size = monitor.FormatBytes(d.Size)
	}
	chunks := ""
	if d.Chunks > 0 {
		chunks = strconv.Itoa(d.Chunks)
	}
	return table.Row{d.DisplayTitle(), d.Author, year, d.Type, size, chunks}
}

// View renders the Documents tab.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.SectionTitle.Render("Documents"))
	b.WriteString(m.theme.Muted.Render("  sources the assistant answers from"))
	b.WriteString("\n")
	b.WriteString(m.renderFilters())
	b.WriteString("\n")

	switch {
	case m.loadErr != nil && len(m.all) == 0:
		b.WriteString(m.theme.ErrorText.Render("Could not load documents: " + api.Detail(m.loadErr)))
		b.WriteString("\n")
		b.WriteString(m.theme.Muted.Render("Press R to retry"))
	case m.loading && len(m.all) == 0:
		b.WriteString(m.spinner.View() + " " + m.theme.ThinkingText.Render("Loading documents..."))
	case len(m.all) == 0:
		b.WriteString(m.renderEmptyLibrary())
	case len(m.visible) == 0:
		b.WriteString(m.theme.EmptyState.Render("No documents found\nTry other search terms"))
	default:
		b.WriteString(m.theme.Muted.Render(fmt.Sprintf("Showing %d of %d documents", len(m.visible), len(m.all))))
		b.WriteString("\n")
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

func (m *Model) renderFilters() string {
	typeLabel := "All types"
	if t := m.TypeFilter(); t != "" {
		typeLabel = t
	}
	typePart := m.theme.ShortcutKey.Render("t") + " " + m.theme.ShortcutDesc.Render("Type: "+typeLabel)

	if m.mode == modeSearch {
		return m.search.View() + "  " + typePart
	}
	query := m.search.Value()
	if query == "" {
		return m.theme.ShortcutKey.Render("/") + " " + m.theme.ShortcutDesc.Render("Search") + "  " + typePart
	}
	return m.theme.InfoText.Render(fmt.Sprintf("Search: %q", query)) + "  " + typePart
}

func (m *Model) renderEmptyLibrary() string {
	lines := []string{"No documents indexed yet.", "", "How retrieval works:"}
	lines = append(lines, ragSteps...)
	if m.cfg.Library != nil {
		lines = append(lines, "", "Press u to upload "+m.cfg.Library.Rules().Describe())
	}
	return m.theme.EmptyState.Render(strings.Join(lines, "\n"))
}

// renderStatusLine shows the active prompt, progress or notice.
func (m *Model) renderStatusLine() string {
	width := max(10, m.width-2)
	switch {
	case m.mode == modeUpload:
		hint := ""
		if m.cfg.Library != nil {
			hint = m.theme.Muted.Render("  " + m.cfg.Library.Rules().Describe())
		}
		return m.path.View() + hint
	case m.mode == modeConfirmDelete:
		return m.theme.WarningText.Render(util.Truncate(fmt.Sprintf("Delete %s? [y/n]", m.pending), width))
	case m.busy != "":
		return m.spinner.View() + " " + m.theme.ThinkingText.Render(m.busy+"...")
	case m.reindex:
		return m.spinner.View() + " " + m.theme.ThinkingText.Render(m.reindexProgress())
	case m.notice != nil:
		text := util.Truncate(m.notice.text, width)
		if m.notice.isError {
			return m.theme.ToastError.Render(text)
		}
		return m.theme.Toast.Render(text)
	}
	return ""
}

func (m *Model) reindexProgress() string {
	if m.cfg.Reloader == nil {
		return "Reindexing..."
	}
	snap, ok := m.cfg.Reloader.Snapshot()
	if !ok || len(snap.LastResult) == 0 {
		return "Reindexing documents..."
	}
	if n, ok := resultCount(snap.LastResult); ok {
		return fmt.Sprintf("Reindexing documents... %s processed", n)
	}
	return "Reindexing documents..."
}

// resultCount extracts the processed document count from a reload result.
func resultCount(result map[string]any) (string, bool) {
	for _, k := range []string{"documents_processed", "documents"} {
		if v, ok := result[k]; ok {
			if f, isNum := v.(float64); isNum {
				return monitor.FormatNumber(f), true
			}
			return fmt.Sprint(v), true
		}
	}
	return "", false
}
