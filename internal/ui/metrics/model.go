// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

// DefaultTimeout bounds one refresh.
const DefaultTimeout = 20 * time.Second

// Source is the dashboard the tab displays. *monitor.Dashboard satisfies it.
type Source interface {
	Refresh(ctx context.Context) monitor.Snapshot
	Report(ctx context.Context) (*api.MetricsReport, error)
	InvalidateReport()
}

// Config wires the tab to its dashboard.
type Config struct {
	Theme     *styles.Theme
	Dashboard Source
	// RefreshInterval re-fetches the overview periodically. Zero disables.
	RefreshInterval time.Duration
	Logger          *zap.Logger
	Base            context.Context
	Timeout         time.Duration
}

// Page selects what the tab shows.
type Page int

const (
	PageOverview Page = iota
	PageReport
)

// KeyMap defines the Metrics tab bindings.
type KeyMap struct {
	Refresh key.Binding
	Toggle  key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Toggle:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "overview/report")),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Toggle}
}

// =============================================================================
// MESSAGES
// =============================================================================

type snapshotMsg struct {
	snap monitor.Snapshot
}

type reportMsg struct {
	report *api.MetricsReport
	err    error
}

type autoRefreshMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Metrics tab state.
type Model struct {
	cfg   Config
	keys  KeyMap
	theme *styles.Theme

	viewport viewport.Model
	spinner  spinner.Model

	page       Page
	snap       monitor.Snapshot
	haveSnap   bool
	report     *api.MetricsReport
	reportErr  error
	refreshing bool
	reporting  bool

	width  int
	height int
}

// New creates the Metrics tab.
func New(cfg Config) *Model {
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Base == nil {
		cfg.Base = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Model{
		cfg:      cfg,
		keys:     DefaultKeyMap(),
		theme:    cfg.Theme,
		viewport: viewport.New(80, 20),
		spinner: spinner.New(
			spinner.WithSpinner(styles.BrailleSpinner.Bubbles()),
			spinner.WithStyle(cfg.Theme.Spinner),
		),
	}
}

// Init fetches the overview and schedules auto refresh.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.scheduleRefresh())
}

// Keys returns the tab bindings.
func (m *Model) Keys() KeyMap { return m.keys }

// Page returns the visible page.
func (m *Model) Page() Page { return m.page }

// Snapshot returns the latest overview data.
func (m *Model) Snapshot() (monitor.Snapshot, bool) { return m.snap, m.haveSnap }

// Report returns the latest report and its error.
func (m *Model) Report() (*api.MetricsReport, error) { return m.report, m.reportErr }

// SetSize sets the pane size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(1, height-2)
	m.render()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages for the Metrics tab.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.refreshing = false
		m.snap = msg.snap
		m.haveSnap = true
		m.render()
		return nil

	case reportMsg:
		m.reporting = false
		m.report = msg.report
		m.reportErr = msg.err
		m.render()
		return nil

	case autoRefreshMsg:
		cmds := []tea.Cmd{m.scheduleRefresh()}
		if !m.refreshing {
			cmds = append(cmds, m.refresh())
		}
		return tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.refreshing && !m.reporting {
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.render()
		return cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			if m.page == PageReport {
				m.cfg.Dashboard.InvalidateReport()
				return m.loadReport()
			}
			return m.refresh()
		case key.Matches(msg, m.keys.Toggle):
			if m.page == PageOverview {
				m.page = PageReport
				m.viewport.GotoTop()
				if m.report == nil && !m.reporting {
					return m.loadReport()
				}
			} else {
				m.page = PageOverview
				m.viewport.GotoTop()
			}
			m.render()
			return nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) refresh() tea.Cmd {
	if m.cfg.Dashboard == nil || m.refreshing {
		return nil
	}
	start := !m.reporting
	m.refreshing = true
	m.render()
	dash, base, timeout := m.cfg.Dashboard, m.cfg.Base, m.cfg.Timeout
	fetch := func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		return snapshotMsg{snap: dash.Refresh(ctx)}
	}
	if start {
		return tea.Batch(fetch, m.spinner.Tick)
	}
	return fetch
}

func (m *Model) loadReport() tea.Cmd {
	if m.cfg.Dashboard == nil || m.reporting {
		return nil
	}
	start := !m.refreshing
	m.reporting = true
	m.render()
	dash, base, timeout := m.cfg.Dashboard, m.cfg.Base, m.cfg.Timeout
	fetch := func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		report, err := dash.Report(ctx)
		return reportMsg{report: report, err: err}
	}
	if start {
		return tea.Batch(fetch, m.spinner.Tick)
	}
	return fetch
}

func (m *Model) scheduleRefresh() tea.Cmd {
	if m.cfg.RefreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.cfg.RefreshInterval, func(time.Time) tea.Msg {
		return autoRefreshMsg{}
	})
}

// render rebuilds the viewport content for the current page.
func (m *Model) render() {
	if m.page == PageReport {
		m.viewport.SetContent(m.renderReport())
	} else {
		m.viewport.SetContent(m.renderOverview())
	}
}
