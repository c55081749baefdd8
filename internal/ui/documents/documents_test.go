// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/reload"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

func newTestTab(t *testing.T) (*Model, *apitest.Server) {
	t.Helper()
	backend := apitest.NewServer(t)
	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL: backend.URL(),
		Tokens:  api.NewMemoryTokenStore(apitest.Token),
	})
	logger := zaptest.NewLogger(t)

	m := New(Config{
		Theme:    styles.NewTheme(),
		Library:  documents.NewManager(client, documents.WithLogger(logger)),
		Reloader: reload.NewPoller(client, reload.WithInterval(10*time.Millisecond), reload.WithLogger(logger)),
		Logger:   logger,
	})
	m.SetSize(100, 30)
	settle(m, m.Init())
	return m, backend
}

// drain runs cmd and returns the messages produced within a short window.
// Timers that fire later (notices, cursor blink) are dropped.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, drain(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(500 * time.Millisecond):
		return nil
	}
}

// settle runs cmd and delivers whatever it produces until the tab is quiet.
func settle(m *Model, cmd tea.Cmd) {
	for _, msg := range drain(cmd) {
		switch msg.(type) {
		case spinner.TickMsg, cursor.BlinkMsg, noticeExpiredMsg:
			continue
		}
		settle(m, m.Update(msg))
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, msgs ...tea.KeyMsg) {
	for _, k := range msgs {
		settle(m, m.Update(k))
	}
}

// =============================================================================
// LIST AND FILTERS
// =============================================================================

func TestInit_LoadsDocuments(t *testing.T) {
	m, backend := newTestTab(t)

	require.Len(t, m.Documents(), 2)
	assert.Equal(t, 1, backend.Calls("list"))

	view := m.View()
	assert.Contains(t, view, "Showing 2 of 2 documents")
	assert.Contains(t, view, "Guide")
	assert.Contains(t, view, "UNESCO")
}

func TestSearch_FiltersByAuthor(t *testing.T) {
	m, _ := newTestTab(t)

	press(m, runes("/"))
	assert.True(t, m.Capturing())
	press(m, runes("unesco"), tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.Capturing())
	require.Len(t, m.Documents(), 1)
	assert.Equal(t, "guide.pdf", m.Documents()[0].Filename)
	assert.Contains(t, m.View(), "Showing 1 of 2 documents")

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.Documents(), 2)
}

func TestTypeFilter_Cycles(t *testing.T) {
	m, _ := newTestTab(t)

	press(m, runes("t"))
	assert.Equal(t, "Guía", m.TypeFilter())
	assert.Len(t, m.Documents(), 1)

	press(m, runes("t"))
	assert.Equal(t, "Investigación", m.TypeFilter())

	press(m, runes("t"))
	assert.Equal(t, "", m.TypeFilter())
	assert.Len(t, m.Documents(), 2)
}

func TestSearch_NoMatchesShowsEmptyState(t *testing.T) {
	m, _ := newTestTab(t)

	press(m, runes("/"), runes("zzz"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.Documents())
	assert.Contains(t, m.View(), "No documents found")
}

// =============================================================================
// UPLOAD AND DELETE
// =============================================================================

func TestUpload_RejectsUnsupportedTypeWithoutNetwork(t *testing.T) {
	m, backend := newTestTab(t)

	press(m, runes("u"), runes("report.docx"), tea.KeyMsg{Type: tea.KeyEnter})

	text, isErr := m.Notice()
	assert.True(t, isErr)
	assert.Contains(t, text, "unsupported file type")
	assert.Equal(t, 0, backend.Calls("upload"))
}

func TestUpload_SendsFileAndRefreshes(t *testing.T) {
	m, backend := newTestTab(t)
	path := filepath.Join(t.TempDir(), "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hola"), 0o644))

	press(m, runes("u"), runes(path), tea.KeyMsg{Type: tea.KeyEnter})

	text, isErr := m.Notice()
	assert.False(t, isErr)
	assert.Contains(t, text, "Uploaded new.txt")
	data, ok := backend.Uploaded("new.txt")
	require.True(t, ok)
	assert.Equal(t, "hola", string(data))
	assert.Len(t, m.Documents(), 3)
}

func TestDelete_AsksForConfirmation(t *testing.T) {
	m, backend := newTestTab(t)

	press(m, runes("d"))
	assert.Contains(t, m.View(), "Delete guide.pdf? [y/n]")
	press(m, runes("n"))
	assert.Equal(t, 0, backend.Calls("delete"))

	press(m, runes("d"), runes("y"))
	assert.Equal(t, 1, backend.Calls("delete"))
	text, isErr := m.Notice()
	assert.False(t, isErr)
	assert.Equal(t, "Deleted guide.pdf", text)
	require.Len(t, m.Documents(), 1)
	assert.Equal(t, "notes.txt", m.Documents()[0].Filename)
}

// =============================================================================
// REINDEX
// =============================================================================

func TestReload_ReportsSuccess(t *testing.T) {
	m, backend := newTestTab(t)
	backend.QueueReloadStatus(true, "", false, "")

	press(m, runes("r"))

	assert.False(t, m.Reindexing())
	text, isErr := m.Notice()
	assert.False(t, isErr)
	assert.Equal(t, "Reindex complete: 2 documents", text)
	assert.Equal(t, 1, backend.Calls("reload"))
}

func TestReload_ReportsBackendError(t *testing.T) {
	m, backend := newTestTab(t)
	backend.QueueReloadStatus(false, "disk full")

	press(m, runes("r"))

	text, isErr := m.Notice()
	assert.True(t, isErr)
	assert.Equal(t, "Reindex failed: disk full", text)
}
