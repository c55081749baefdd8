// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// View renders the header, the active tab and the status bar.
func (m *Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTab(),
		m.renderStatusBar(),
	)
}

func (m *Model) renderTab() string {
	var body string
	switch m.active {
	case TabChat:
		if m.cfg.Chat != nil {
			body = m.cfg.Chat.View()
		}
	case TabDocuments:
		if m.cfg.Documents != nil {
			body = m.cfg.Documents.View()
		}
	case TabMetrics:
		if m.cfg.Metrics != nil {
			body = m.cfg.Metrics.View()
		}
	}
	if m.height > 0 {
		body = lipgloss.NewStyle().Height(max(1, m.height-chromeLines)).MaxHeight(max(1, m.height-chromeLines)).Render(body)
	}
	return body
}

// =============================================================================
// HEADER
// =============================================================================

func (m *Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("ragdesk")

	tabs := make([]string, 0, len(allTabs))
	for i, t := range allTabs {
		label := t.String()
		if m.theme.GetLayoutMode() != styles.LayoutNarrow {
			label = "F" + string(rune('1'+i)) + " " + label
		}
		if t == m.active {
			tabs = append(tabs, m.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.theme.TabInactive.Render(label))
		}
	}
	left := brand + " " + strings.Join(tabs, "")

	right := ""
	if m.cfg.APIURL != "" && m.theme.GetLayoutMode() == styles.LayoutWide {
		right = m.theme.HeaderSubtitle.Render(util.Truncate(m.cfg.APIURL, 40))
	}
	return m.theme.Header.Width(max(0, m.width)).MaxHeight(1).Render(spread(left, right, m.width-2))
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m *Model) renderStatusBar() string {
	status := m.Connection()
	conn := m.theme.ForConnection(status).Render(connectionLabel(status))

	var hints []string
	if m.theme.GetLayoutMode() != styles.LayoutNarrow {
		for _, b := range m.activeHelp() {
			hints = append(hints, m.shortcut(b))
		}
		hints = append(hints, m.shortcut(m.keys.Quit))
	}
	left := conn
	if len(hints) > 0 {
		left += "  " + strings.Join(hints, "  ")
	}

	right := ""
	if m.cfg.Version != "" {
		right = m.theme.Muted.Render("v" + m.cfg.Version)
	}
	return m.theme.StatusBar.Width(max(0, m.width)).MaxHeight(1).Render(spread(left, right, m.width-2))
}

func (m *Model) activeHelp() []key.Binding {
	switch m.active {
	case TabChat:
		if m.cfg.Chat != nil {
			return m.cfg.Chat.Keys().ShortHelp()
		}
	case TabDocuments:
		if m.cfg.Documents != nil {
			return m.cfg.Documents.Keys().ShortHelp()
		}
	case TabMetrics:
		if m.cfg.Metrics != nil {
			return m.cfg.Metrics.Keys().ShortHelp()
		}
	}
	return nil
}

func (m *Model) shortcut(b key.Binding) string {
	h := b.Help()
	return m.theme.ShortcutKey.Render(h.Key) + " " + m.theme.ShortcutDesc.Render(h.Desc)
}

func connectionLabel(s monitor.Status) string {
	switch s {
	case monitor.StatusConnected:
		return styles.StatusIndicators.Success + " API connected"
	case monitor.StatusDisconnected:
		return styles.StatusIndicators.Error + " API disconnected"
	default:
		return styles.StatusIndicators.Pending + " Checking API..."
	}
}

// spread places left and right at the two ends of width, dropping right
// when both do not fit.
func spread(left, right string, width int) string {
	if right == "" {
		return left
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}
