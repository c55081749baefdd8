// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// welcomeTopics are the example subjects offered on an empty chat.
var welcomeTopics = []string{
	"Education policy",
	"AI regulation",
	"AI research",
	"Technical documentation",
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat tab.
func (m *Model) View() string {
	var b strings.Builder

	if m.showSources {
		b.WriteString(m.renderSourcesOverlay())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	if m.completion.Visible {
		b.WriteString(m.renderCompletion())
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	return b.String()
}

// renderStatusLine shows, in priority order, the new-chat prompt, the
// loading indicator, or the current toast.
func (m *Model) renderStatusLine() string {
	switch {
	case m.confirmNew:
		return m.theme.WarningText.Render("Start a new chat? The current conversation will be cleared. [y/n]")
	case m.Loading():
		line := m.spinner.View() + " " + m.theme.ThinkingText.Render("Generating answer...")
		if m.pending > 1 {
			line += m.theme.Muted.Render(fmt.Sprintf(" (%d pending)", m.pending))
		}
		return line
	case m.toast != nil:
		if m.toast.isError {
			return m.theme.ToastError.Render(util.Truncate(m.toast.text, max(10, m.width-2)))
		}
		return m.theme.Toast.Render(util.Truncate(m.toast.text, max(10, m.width-2)))
	}
	return ""
}

func (m *Model) renderInput() string {
	box := m.theme.InputContainer.Width(max(10, m.width-2))
	content := m.input.View()

	n := len([]rune(m.input.Value()))
	if n > 0 {
		style := m.theme.CharCount
		if n > m.cfg.MaxInput*9/10 {
			style = m.theme.CharCountWarning
		}
		count := style.Render(fmt.Sprintf("%d/%d", n, m.cfg.MaxInput))
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, " ", count)
	}
	return box.Render(content)
}

func (m *Model) renderCompletion() string {
	comps := m.completion.Completions
	start := 0
	if m.completion.Selected >= maxCompletionRows {
		start = m.completion.Selected - maxCompletionRows + 1
	}
	end := min(len(comps), start+maxCompletionRows)

	width := max(20, m.width-6)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		c := comps[i]
		line := util.PadRight(c.Display, 18)
		if c.Description != "" {
			line += " " + c.Description
		}
		line = util.PadRight(line, width)
		if i == m.completion.Selected {
			lines = append(lines, m.theme.CompletionSelected.Render(line))
		} else {
			lines = append(lines, m.theme.CompletionItem.Render(line))
		}
	}
	return m.theme.CompletionPopup.Render(strings.Join(lines, "\n"))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	var msgs []model.Message
	if m.cfg.Store != nil {
		msgs = m.cfg.Store.Messages()
	}
	if len(msgs) == 0 && len(m.notes) == 0 {
		return m.renderWelcome()
	}

	var parts []string
	for i, msg := range msgs {
		parts = append(parts, m.renderNotes(i)...)
		parts = append(parts, m.renderMessage(i, msg))
	}
	parts = append(parts, m.renderNotes(len(msgs))...)
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderNotes(after int) []string {
	var out []string
	for _, n := range m.notes {
		if n.after != after {
			continue
		}
		body := n.content
		if n.title != "" {
			body = m.theme.SourceTitle.Render(n.title) + "\n" + body
		}
		out = append(out, m.theme.SystemBubble.Render(body))
	}
	return out
}

func (m *Model) renderMessage(index int, msg model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleError:
		label = m.theme.ErrorLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if t := msg.Time(); !t.IsZero() {
		label += m.theme.Timestamp.Render(" · " + t.Local().Format("15:04"))
	}

	// Border plus padding on both sides plus the bubble margin.
	inner := max(10, m.width-8)

	var body string
	switch msg.Role {
	case model.RoleUser:
		body = m.theme.UserBubble.Width(inner).Render(msg.Content)
	case model.RoleError:
		body = m.theme.ErrorBubble.Width(inner).Render(msg.Content)
	default:
		body = m.theme.AssistantBubble.Width(inner).Render(m.renderAnswer(index, msg.Content, inner-2))
	}

	lines := []string{label, body}
	if msg.Role == model.RoleAssistant {
		if m.cfg.ShowSources && len(msg.Sources) > 0 {
			lines = append(lines, m.renderSources(msg.Sources, inner))
		}
		if m.cfg.ShowMetrics && len(msg.Metrics) > 0 {
			lines = append(lines, m.renderMetrics(msg.Metrics, inner))
		}
	}
	return strings.Join(lines, "\n")
}

// renderAnswer renders markdown through glamour, caching by message index.
func (m *Model) renderAnswer(index int, content string, width int) string {
	if cached, ok := m.rendered[index]; ok {
		return cached
	}
	wrap := width
	if m.cfg.WordWrap > 0 && m.cfg.WordWrap < wrap {
		wrap = m.cfg.WordWrap
	}
	out := content
	if r := m.answerRenderer(wrap); r != nil {
		if rendered, err := r.Render(content); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	m.rendered[index] = out
	return out
}

func (m *Model) renderSources(sources []model.Source, width int) string {
	lines := []string{m.theme.SourceTitle.Render(fmt.Sprintf("Sources (%d)", len(sources)))}
	for i, s := range sources {
		line := m.theme.SourceItem.Render(fmt.Sprintf("%d. %s", i+1, util.Truncate(s.DisplayName(), width-12)))
		if s.RelevanceScore != nil {
			line += " " + m.theme.SourceScore.Render(fmt.Sprintf("(%.2f)", *s.RelevanceScore))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderMetrics(metrics map[string]any, width int) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, model.MetricLabel(k)+": "+model.FormatMetricValue(k, metrics[k]))
	}
	return m.theme.MetricsLine.Width(width).Render(strings.Join(parts, " | "))
}

func (m *Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderBrand.Render("Ask about the indexed documents"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.Muted.Render("Try a question about:"))
	b.WriteString("\n")
	for _, topic := range welcomeTopics {
		b.WriteString("  - " + topic + "\n")
	}
	b.WriteString("\n")

	cfg := model.DefaultChatConfig()
	if m.cfg.Store != nil {
		cfg = m.cfg.Store.Config()
	}
	rag := "on"
	if !cfg.UseRAG {
		rag = "off"
	}
	b.WriteString(m.theme.Muted.Render(fmt.Sprintf("Model %s, %s mode, RAG %s",
		model.ModelLabel(cfg.ModelName), cfg.Mode.Label(), rag)))
	b.WriteString("\n")
	b.WriteString(m.theme.InfoText.Render("Type /help for commands"))
	return m.theme.EmptyState.Render(b.String())
}

// renderSourcesOverlay lists the last answer's sources with excerpts.
func (m *Model) renderSourcesOverlay() string {
	sources := m.lastSources()
	width := max(20, m.width-4)

	var b strings.Builder
	b.WriteString(m.theme.SectionTitle.Render(fmt.Sprintf("Sources of the last answer (%d)", len(sources))))
	b.WriteString("\n\n")
	for i, s := range sources {
		title := fmt.Sprintf("%d. %s", i+1, s.DisplayName())
		if s.RelevanceScore != nil {
			title += m.theme.SourceScore.Render(fmt.Sprintf(" (%.2f)", *s.RelevanceScore))
		}
		b.WriteString(m.theme.SourceTitle.Render(title))
		b.WriteString("\n")
		if excerpt := util.SingleLine(s.Excerpt); excerpt != "" {
			b.WriteString(m.theme.SourceItem.Width(width).Render(excerpt))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.Muted.Render("Esc to close"))

	return lipgloss.NewStyle().
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		Render(b.String())
}
