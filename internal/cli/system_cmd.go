// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
)

// =============================================================================
// HEALTH
// =============================================================================

// HealthData is the JSON payload of the health command.
type HealthData struct {
	APIURL     string            `json:"api_url"`
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func newHealthCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend connectivity and component status",
		Long: `Health calls /api/health and prints the overall status and each component.
The exit code is 5 when the backend cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			h, err := e.client.Health(cmd.Context())
			if err != nil {
				return &CommandError{Command: "health", Action: "check", Err: err}
			}
			data := HealthData{
				APIURL:     e.client.BaseURL(),
				Status:     h.Status,
				Version:    h.Version,
				Components: h.Components,
				Error:      h.Error,
			}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				renderHealth(w, data)
			})
		},
	}
}

func renderHealth(w io.Writer, d HealthData) {
	fmt.Fprintln(w, TitleStyle.Render("Backend health"))
	fmt.Fprintln(w, RenderField("API", d.APIURL))
	fmt.Fprintln(w, RenderField("Status", RenderStatus(d.Status)))
	if d.Version != "" {
		fmt.Fprintln(w, RenderField("Version", d.Version))
	}
	if d.Error != "" {
		fmt.Fprintln(w, RenderField("Error", ErrorStyle.Render(d.Error)))
	}
	if len(d.Components) == 0 {
		return
	}
	fmt.Fprintln(w, SectionStyle.Render("Components"))
	for _, name := range sortedKeys(d.Components) {
		fmt.Fprintln(w, RenderField(strings.ToUpper(name), RenderStatus(d.Components[name])))
	}
}

// =============================================================================
// STATS
// =============================================================================

// StatsData is the JSON payload of the stats command.
type StatsData struct {
	*api.StatsResponse
	Info map[string]any `json:"info,omitempty"`
}

func newStatsCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backend statistics",
		Long:  "Stats prints query totals, uptime, the available models and the retrieval index settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			stats, err := e.client.Stats(cmd.Context())
			if err != nil {
				return &CommandError{Command: "stats", Action: "request", Err: err}
			}
			data := StatsData{StatsResponse: stats}
			// /api/info is optional on older backends.
			if info, err := e.client.Info(cmd.Context()); err == nil {
				data.Info = info
			}
			return newPrinter(cmd, opts).Result(data, func(w io.Writer) {
				renderStats(w, data)
			})
		},
	}
}

func renderStats(w io.Writer, d StatsData) {
	s := d.StatsResponse
	fmt.Fprintln(w, TitleStyle.Render("Backend statistics"))
	if name, ok := d.Info["name"].(string); ok {
		label := name
		if v, ok := d.Info["version"].(string); ok {
			label += " v" + v
		}
		fmt.Fprintln(w, RenderField("Service", label))
	}
	fmt.Fprintln(w, RenderField("Status", RenderStatus(s.Status)))
	fmt.Fprintln(w, RenderField("Total queries", monitor.FormatNumber(float64(s.TotalQueries))))
	fmt.Fprintln(w, RenderField("Uptime", monitor.FormatUptime(s.UptimeSeconds)))
	models := "none"
	if len(s.ModelsAvailable) > 0 {
		models = strings.Join(s.ModelsAvailable, ", ")
	}
	fmt.Fprintln(w, RenderField("Models", models))

	fmt.Fprintln(w, SectionStyle.Render("Retrieval"))
	if rs := s.RAGStats; rs != nil {
		fmt.Fprintln(w, RenderField("Chunks indexed", monitor.FormatNumber(float64(rs.TotalChunks))))
		fmt.Fprintln(w, RenderField("Chunk size", fmt.Sprintf("%d chars", rs.ChunkSize)))
		fmt.Fprintln(w, RenderField("Overlap", fmt.Sprintf("%d chars", rs.ChunkOverlap)))
	} else {
		fmt.Fprintln(w, DimStyle.Render("No retrieval statistics reported"))
	}
}

// =============================================================================
// REPORT
// =============================================================================

func newReportCmd(opts *options, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the interaction metrics report (admin)",
		Long: `Report prints the backend's aggregated interaction metrics: totals,
per-interaction averages and the per-day breakdown. It needs an admin
session; run ragdesk login first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.setup(cmd.Context()); err != nil {
				return err
			}
			dash := monitor.NewDashboard(e.client, monitor.DashboardConfig{Logger: e.logger})
			report, err := dash.Report(cmd.Context())
			if err != nil {
				return &CommandError{Command: "report", Action: "request", Err: err}
			}
			return newPrinter(cmd, opts).Result(report, func(w io.Writer) {
				renderReport(w, report)
			})
		},
	}
}

func renderReport(w io.Writer, r *api.MetricsReport) {
	fmt.Fprintln(w, TitleStyle.Render("Metrics report"))
	if r.TotalInteractions == 0 {
		fmt.Fprintln(w, DimStyle.Render("No interactions have been recorded yet"))
		return
	}
	if r.DateRange.Start != "" {
		fmt.Fprintln(w, RenderField("Period", r.DateRange.Start+" - "+r.DateRange.End))
	}
	fmt.Fprintln(w, RenderField("Interactions", monitor.FormatNumber(float64(r.TotalInteractions))))

	fmt.Fprintln(w, SectionStyle.Render("Totals"))
	fmt.Fprintln(w, RenderField("Cost", fmt.Sprintf("$%.6f", r.Totals.CostUSD)))
	fmt.Fprintln(w, RenderField("Tokens", fmt.Sprintf("%s (%s in, %s out)",
		monitor.FormatNumber(float64(r.Totals.Tokens)),
		monitor.FormatNumber(float64(r.Totals.InputTokens)),
		monitor.FormatNumber(float64(r.Totals.OutputTokens)))))
	fmt.Fprintln(w, RenderField("Citations", fmt.Sprintf("%d (%d valid)", r.Totals.Citations, r.Totals.ValidCitations)))

	fmt.Fprintln(w, SectionStyle.Render("Averages"))
	fmt.Fprintln(w, RenderField("Latency", fmt.Sprintf("%.0f ms", r.Averages.LatencyMs)))
	fmt.Fprintln(w, RenderField("Tokens", fmt.Sprintf("%.0f", r.Averages.Tokens)))
	fmt.Fprintln(w, RenderField("Cost", fmt.Sprintf("$%.6f", r.Averages.CostUSD)))
	fmt.Fprintln(w, RenderField("Documents retrieved", fmt.Sprintf("%.1f", r.Averages.DocsRetrieved)))
	fmt.Fprintln(w, RenderField("Similarity", fmt.Sprintf("%.4f", r.Averages.SimilarityScore)))
	fmt.Fprintln(w, RenderField("Citation validity", fmt.Sprintf("%.1f%%", r.Averages.CitationValidity*100)))
	fmt.Fprintln(w, RenderField("Hallucination rate", fmt.Sprintf("%.2f%%", r.Averages.HallucinationRate*100)))

	if len(r.ByDate) == 0 {
		return
	}
	fmt.Fprintln(w, SectionStyle.Render("By day"))
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%-10s  %6s  %10s  %10s  %8s", "Date", "Count", "Latency", "Cost", "Tokens")))
	for _, d := range r.ByDate {
		fmt.Fprintf(w, "%-10s  %6d  %7.0f ms  $%9.6f  %8d\n", d.Date, d.Count, d.AvgLatency, d.TotalCost, d.TotalTokens)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
