// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// View renders the Metrics tab.
func (m *Model) View() string {
	title := "System metrics"
	hint := "v: report  r: refresh"
	if m.page == PageReport {
		title = "Metrics report"
		hint = "v: overview  r: refresh"
	}

	header := m.theme.SectionTitle.UnsetMarginTop().Render(title)
	if m.refreshing || m.reporting {
		header += " " + m.spinner.View()
	}
	header += "  " + m.theme.Muted.Render(hint)
	return header + "\n" + m.viewport.View()
}

// =============================================================================
// OVERVIEW
// =============================================================================

func (m *Model) renderOverview() string {
	if !m.haveSnap {
		return m.theme.ThinkingText.Render("Loading metrics...")
	}
	snap := m.snap

	var sections []string
	if snap.Err != nil {
		sections = append(sections,
			m.theme.ErrorText.Render("Could not load metrics: "+api.Detail(snap.Err)),
			m.theme.Muted.Render("Press r to retry"),
		)
	}

	if s := snap.Stats; s != nil {
		models := "none"
		if len(s.ModelsAvailable) > 0 {
			models = strings.Join(s.ModelsAvailable, ", ")
		}
		sections = append(sections, m.cards(
			card{"Status", monitor.StatusEmoji(s.Status) + " " + s.Status, ""},
			card{"Total queries", monitor.FormatNumber(float64(s.TotalQueries)), "since start"},
			card{"Uptime", monitor.FormatUptime(s.UptimeSeconds), ""},
			card{"Models", fmt.Sprintf("%d", len(s.ModelsAvailable)), util.Truncate(models, 20)},
		))

		sections = append(sections, m.theme.SectionTitle.Render("Retrieval"))
		if rs := s.RAGStats; rs != nil {
			sections = append(sections, m.rows([][2]string{
				{"Chunks indexed", orNA(rs.TotalChunks, monitor.FormatNumber(float64(rs.TotalChunks)))},
				{"Chunk size", orNA(rs.ChunkSize, fmt.Sprintf("%d chars", rs.ChunkSize))},
				{"Overlap", orNA(rs.ChunkOverlap, fmt.Sprintf("%d chars", rs.ChunkOverlap))},
			}))
		} else {
			sections = append(sections, m.theme.Muted.Render("No retrieval statistics reported"))
		}
	}

	sections = append(sections, m.theme.SectionTitle.Render("Components"))
	sections = append(sections, m.renderComponents(snap.Health))

	if !snap.UpdatedAt.IsZero() {
		sections = append(sections, m.theme.Muted.Render("Updated "+snap.UpdatedAt.Local().Format("15:04:05")))
	}
	return strings.Join(sections, "\n")
}

func (m *Model) renderComponents(h *api.HealthResponse) string {
	if h == nil {
		return m.theme.Muted.Render("Health not reported")
	}
	var lines []string
	overall := m.theme.ForLevel(monitor.StatusLevel(h.Status))
	line := indicator(monitor.StatusLevel(h.Status)) + " " + overall.Render(h.Status)
	if h.Version != "" {
		line += m.theme.Muted.Render("  v" + h.Version)
	}
	lines = append(lines, line)
	if h.Error != "" {
		lines = append(lines, m.theme.ErrorText.Render(h.Error))
	}

	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := h.Components[name]
		level := monitor.StatusLevel(status)
		lines = append(lines, fmt.Sprintf("%s %s %s",
			indicator(level),
			util.PadRight(strings.ToUpper(name), 16),
			m.theme.ForLevel(level).Render(status),
		))
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// REPORT
// =============================================================================

func (m *Model) renderReport() string {
	switch {
	case m.reportErr != nil:
		return m.theme.ErrorText.Render("Could not load the report: "+api.Detail(m.reportErr)) + "\n" +
			m.theme.Muted.Render("The report needs an admin login (ragdesk login). Press r to retry.")
	case m.report == nil:
		return m.theme.ThinkingText.Render("Loading report...")
	case m.report.TotalInteractions == 0:
		return m.theme.EmptyState.Render("No metrics available\nNo interactions have been recorded yet")
	}
	r := m.report

	var sections []string
	if r.DateRange.Start != "" && r.DateRange.End != "" {
		sections = append(sections, m.theme.Muted.Render(r.DateRange.Start+" - "+r.DateRange.End))
	}
	sections = append(sections, m.cards(
		card{"Interactions", monitor.FormatNumber(float64(r.TotalInteractions)), ""},
		card{"Total cost", fmt.Sprintf("$%.6f", r.Totals.CostUSD), ""},
		card{"Total tokens", monitor.FormatNumber(float64(r.Totals.Tokens)), ""},
		card{"Avg latency", fmt.Sprintf("%.0f ms", r.Averages.LatencyMs), ""},
	))

	if len(r.ByDate) > 0 {
		sections = append(sections, m.theme.SectionTitle.Render("Interactions per day"))
		sections = append(sections, m.bars(r.ByDate, func(d api.DailyMetrics) float64 { return float64(d.Count) }, "%.0f"))
		sections = append(sections, m.theme.SectionTitle.Render("Average latency per day (ms)"))
		sections = append(sections, m.bars(r.ByDate, func(d api.DailyMetrics) float64 { return d.AvgLatency }, "%.0f"))
		sections = append(sections, m.theme.SectionTitle.Render("Cost per day (USD)"))
		sections = append(sections, m.bars(r.ByDate, func(d api.DailyMetrics) float64 { return d.TotalCost }, "%.6f"))
		sections = append(sections, m.theme.SectionTitle.Render("Tokens per day"))
		sections = append(sections, m.bars(r.ByDate, func(d api.DailyMetrics) float64 { return float64(d.TotalTokens) }, "%.0f"))
	}

	sections = append(sections, m.theme.SectionTitle.Render("Averages"))
	sections = append(sections, m.rows([][2]string{
		{"Latency", fmt.Sprintf("%.2f ms", r.Averages.LatencyMs)},
		{"Tokens per interaction", fmt.Sprintf("%.0f", r.Averages.Tokens)},
		{"Cost per interaction", fmt.Sprintf("$%.6f", r.Averages.CostUSD)},
		{"Documents retrieved", fmt.Sprintf("%.1f", r.Averages.DocsRetrieved)},
		{"Similarity score", fmt.Sprintf("%.4f", r.Averages.SimilarityScore)},
		{"Citation validity", fmt.Sprintf("%.1f%%", r.Averages.CitationValidity*100)},
		{"Hallucination rate", fmt.Sprintf("%.2f%%", r.Averages.HallucinationRate*100)},
	}))

	sections = append(sections, m.theme.SectionTitle.Render("Totals"))
	sections = append(sections, m.rows([][2]string{
		{"Total cost", fmt.Sprintf("$%.6f", r.Totals.CostUSD)},
		{"Total tokens", monitor.FormatNumber(float64(r.Totals.Tokens))},
		{"Input tokens", monitor.FormatNumber(float64(r.Totals.InputTokens))},
		{"Output tokens", monitor.FormatNumber(float64(r.Totals.OutputTokens))},
		{"Citations", monitor.FormatNumber(float64(r.Totals.Citations))},
		{"Valid citations", monitor.FormatNumber(float64(r.Totals.ValidCitations))},
	}))
	return strings.Join(sections, "\n")
}

// bars renders one horizontal bar per day scaled to the largest value.
func (m *Model) bars(days []api.DailyMetrics, value func(api.DailyMetrics) float64, format string) string {
	peak := 0.0
	for _, d := range days {
		peak = max(peak, value(d))
	}
	width := max(10, m.width-32)

	lines := make([]string, 0, len(days))
	for _, d := range days {
		v := value(d)
		pct := 0.0
		if peak > 0 {
			pct = v / peak * 100
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			util.PadRight(d.Date, 10),
			m.theme.InfoText.Render(styles.RenderProgressBar(width, pct)),
			fmt.Sprintf(format, v),
		))
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// HELPERS
// =============================================================================

type card struct {
	title string
	value string
	label string
}

func (m *Model) cards(cards ...card) string {
	width := 18
	if m.width > 0 {
		width = max(14, m.width/len(cards)-4)
	}
	rendered := make([]string, 0, len(cards))
	for _, c := range cards {
		body := m.theme.CardTitle.Render(c.title) + "\n" + m.theme.CardValue.Render(util.Truncate(c.value, width))
		if c.label != "" {
			body += "\n" + m.theme.CardLabel.Render(util.Truncate(c.label, width))
		}
		rendered = append(rendered, m.theme.Card.Width(width).Render(body))
	}
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		return lipgloss.JoinVertical(lipgloss.Left, rendered...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m *Model) rows(rows [][2]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, util.PadRight(r[0], 26)+m.theme.CardValue.Render(r[1]))
	}
	return strings.Join(lines, "\n")
}

func indicator(level monitor.Level) string {
	switch level {
	case monitor.LevelOK:
		return styles.StatusIndicators.Success
	case monitor.LevelWarn:
		return styles.StatusIndicators.Warning
	case monitor.LevelError:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Pending
	}
}

func orNA(n int, formatted string) string {
	if n <= 0 {
		return "N/A"
	}
	return formatted
}
