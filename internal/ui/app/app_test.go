// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/reload"
	"github.com/jeranaias/ragdesk-tui/internal/session"
	"github.com/jeranaias/ragdesk-tui/internal/ui/chat"
	docview "github.com/jeranaias/ragdesk-tui/internal/ui/documents"
	"github.com/jeranaias/ragdesk-tui/internal/ui/metrics"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

type fakeStatus struct {
	v atomic.Int32
}

func (f *fakeStatus) Status() monitor.Status { return monitor.Status(f.v.Load()) }

func newTestApp(t *testing.T) (*Model, *fakeStatus, chan monitor.Status) {
	t.Helper()
	backend := apitest.NewServer(t)
	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL: backend.URL(),
		Tokens:  api.NewMemoryTokenStore(apitest.Token),
	})
	logger := zaptest.NewLogger(t)
	theme := styles.NewTheme()
	store := session.NewStore(model.DefaultChatConfig())

	status := &fakeStatus{}
	changes := make(chan monitor.Status, 1)
	m := New(Config{
		Theme: theme,
		Chat: chat.New(chat.Config{
			Theme:  theme,
			Store:  store,
			Logger: logger,
		}),
		Documents: docview.New(docview.Config{
			Theme:    theme,
			Library:  documents.NewManager(client, documents.WithLogger(logger)),
			Reloader: reload.NewPoller(client, reload.WithLogger(logger)),
			Logger:   logger,
		}),
		Metrics: metrics.New(metrics.Config{
			Theme:     theme,
			Dashboard: monitor.NewDashboard(client, monitor.DashboardConfig{Logger: logger}),
			Logger:    logger,
		}),
		Health:        status,
		HealthChanges: changes,
		APIURL:        backend.URL(),
		Version:       "1.2.3",
		Logger:        logger,
	})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	t.Cleanup(func() {
		m.Close()
		store.Close()
	})
	return m, status, changes
}

func TestTabs_SwitchWithFunctionKeys(t *testing.T) {
	m, _, _ := newTestApp(t)
	assert.Equal(t, TabChat, m.Active())

	m.Update(tea.KeyMsg{Type: tea.KeyF2})
	assert.Equal(t, TabDocuments, m.Active())
	assert.Contains(t, m.View(), "sources the assistant answers from")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3"), Alt: true})
	assert.Equal(t, TabMetrics, m.Active())
	assert.Contains(t, m.View(), "System metrics")

	m.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, TabChat, m.Active())
	assert.Contains(t, m.View(), "Type /help for commands")
}

func TestKeys_GoToActiveTabOnly(t *testing.T) {
	m, _, _ := newTestApp(t)

	m.Update(tea.KeyMsg{Type: tea.KeyF2})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, "", m.cfg.Chat.InputValue())

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	assert.Equal(t, "h", m.cfg.Chat.InputValue())
}

func TestStatusBar_ShowsConnectivity(t *testing.T) {
	m, status, changes := newTestApp(t)
	assert.Contains(t, m.View(), "Checking API")

	status.v.Store(int32(monitor.StatusConnected))
	changes <- monitor.StatusConnected
	msg := waitForHealth(changes)()
	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd, "the subscription is renewed")
	assert.Contains(t, m.View(), "API connected")

	status.v.Store(int32(monitor.StatusDisconnected))
	assert.Contains(t, m.View(), "API disconnected")
}

func TestStatusBar_ShowsActiveTabHints(t *testing.T) {
	m, _, _ := newTestApp(t)
	assert.Contains(t, m.View(), "send")

	m.Update(tea.KeyMsg{Type: tea.KeyF3})
	view := m.View()
	assert.Contains(t, view, "overview/report")
	assert.Contains(t, view, "v1.2.3")
}

func TestCtrlC_Quits(t *testing.T) {
	m, _, _ := newTestApp(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestResize_FitsTabsUnderChrome(t *testing.T) {
	m, _, _ := newTestApp(t)
	m.Update(tea.WindowSizeMsg{Width: 90, Height: 24})

	assert.Equal(t, 90, m.theme.Width)
	assert.LessOrEqual(t, len(strings.Split(m.View(), "\n")), 24)
}
