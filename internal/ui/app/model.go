// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/ui/chat"
	"github.com/jeranaias/ragdesk-tui/internal/ui/documents"
	"github.com/jeranaias/ragdesk-tui/internal/ui/metrics"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

// chromeLines is the header plus the status bar.
const chromeLines = 2

// Tab identifies one of the top-level views.
type Tab int

const (
	TabChat Tab = iota
	TabDocuments
	TabMetrics
)

// String returns the tab title.
func (t Tab) String() string {
	switch t {
	case TabChat:
		return "Chat"
	case TabDocuments:
		return "Documents"
	case TabMetrics:
		return "Metrics"
	default:
		return "?"
	}
}

var allTabs = []Tab{TabChat, TabDocuments, TabMetrics}

// StatusSource reports backend connectivity. *monitor.HealthChecker
// satisfies it.
type StatusSource interface {
	Status() monitor.Status
}

// Config wires the root model to its tabs.
type Config struct {
	Theme     *styles.Theme
	Chat      *chat.Model
	Documents *documents.Model
	Metrics   *metrics.Model

	// Health feeds the status bar. HealthChanges, when set, wakes the
	// view whenever connectivity flips.
	Health        StatusSource
	HealthChanges <-chan monitor.Status

	APIURL  string
	Version string
	Logger  *zap.Logger
}

type healthChangedMsg struct {
	status monitor.Status
}

// Model is the root bubbletea model.
type Model struct {
	cfg   Config
	keys  KeyMap
	theme *styles.Theme

	active Tab
	status monitor.Status

	width  int
	height int
}

// New creates the root model with the Chat tab active.
func New(cfg Config) *Model {
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Model{
		cfg:    cfg,
		keys:   DefaultKeyMap(),
		theme:  cfg.Theme,
		active: TabChat,
	}
}

// Init starts every tab and the connectivity subscription.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForHealth(m.cfg.HealthChanges)}
	if m.cfg.Chat != nil {
		cmds = append(cmds, m.cfg.Chat.Init())
	}
	if m.cfg.Documents != nil {
		cmds = append(cmds, m.cfg.Documents.Init())
	}
	if m.cfg.Metrics != nil {
		cmds = append(cmds, m.cfg.Metrics.Init())
	}
	return tea.Batch(cmds...)
}

// Active returns the visible tab.
func (m *Model) Active() Tab { return m.active }

// Connection returns the connectivity shown in the status bar.
func (m *Model) Connection() monitor.Status {
	if m.cfg.Health != nil {
		return m.cfg.Health.Status()
	}
	return m.status
}

// Close releases the tab subscriptions. Call it after the program exits.
func (m *Model) Close() {
	if m.cfg.Chat != nil {
		m.cfg.Chat.Close()
	}
}

// SetActive switches tabs. Only the Chat tab holds a focused input.
func (m *Model) SetActive(t Tab) tea.Cmd {
	if t == m.active {
		return nil
	}
	m.cfg.Logger.Debug("TAB_SWITCH", zap.Stringer("from", m.active), zap.Stringer("to", t))
	m.active = t
	if m.cfg.Chat == nil {
		return nil
	}
	if t == TabChat {
		return m.cfg.Chat.Focus()
	}
	m.cfg.Chat.Blur()
	return nil
}

func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	inner := max(1, height-chromeLines)
	if m.cfg.Chat != nil {
		m.cfg.Chat.SetSize(width, inner)
	}
	if m.cfg.Documents != nil {
		m.cfg.Documents.SetSize(width, inner)
	}
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SetSize(width, inner)
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update routes messages to the tabs.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case healthChangedMsg:
		m.status = msg.status
		m.cfg.Logger.Info("API_CONNECTIVITY", zap.Stringer("status", msg.status))
		return m, waitForHealth(m.cfg.HealthChanges)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Chat):
			return m, m.SetActive(TabChat)
		case key.Matches(msg, m.keys.Documents):
			return m, m.SetActive(TabDocuments)
		case key.Matches(msg, m.keys.Metrics):
			return m, m.SetActive(TabMetrics)
		}
		return m, m.updateActive(msg)

	case tea.MouseMsg:
		return m, m.updateActive(msg)
	}

	// Async results and timers belong to whichever tab started them, so
	// every tab sees them.
	var cmds []tea.Cmd
	for _, t := range allTabs {
		cmds = append(cmds, m.updateTab(t, msg))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) updateActive(msg tea.Msg) tea.Cmd {
	return m.updateTab(m.active, msg)
}

func (m *Model) updateTab(t Tab, msg tea.Msg) tea.Cmd {
	switch t {
	case TabChat:
		if m.cfg.Chat != nil {
			return m.cfg.Chat.Update(msg)
		}
	case TabDocuments:
		if m.cfg.Documents != nil {
			return m.cfg.Documents.Update(msg)
		}
	case TabMetrics:
		if m.cfg.Metrics != nil {
			return m.cfg.Metrics.Update(msg)
		}
	}
	return nil
}

func waitForHealth(ch <-chan monitor.Status) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return healthChangedMsg{status: s}
	}
}
