// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/commands"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/session"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

// fakeChat answers every question with a fixed reply and records requests.
type fakeChat struct {
	mu       sync.Mutex
	requests []api.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	score := 0.87
	return &api.ChatResponse{
		Response:  "RAG combines **retrieval** with generation.",
		Sources:   []model.Source{{Document: "guide.pdf", Excerpt: "Retrieval augmented", RelevanceScore: &score}},
		Metrics:   map[string]any{"sources_found": float64(1), "context_used": true},
		Timestamp: model.Now(),
	}, nil
}

func (f *fakeChat) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Message)
	}
	return out
}

func newTestModel(t *testing.T) (*Model, *session.Store, *fakeChat) {
	t.Helper()
	store := session.NewStore(model.DefaultChatConfig())
	backend := &fakeChat{}
	logger := zaptest.NewLogger(t)
	sender := session.NewSender(store, backend, session.WithLogger(logger))

	m := New(Config{
		Theme:       styles.NewTheme(),
		Store:       store,
		Sender:      sender,
		Registry:    commands.NewRegistry(),
		ExportDir:   t.TempDir(),
		Logger:      logger,
		ShowSources: true,
		ShowMetrics: true,
	})
	m.SetSize(100, 30)
	t.Cleanup(func() {
		m.Close()
		store.Close()
	})
	return m, store, backend
}

// drain runs cmd and returns the messages produced within a short window.
// Commands that block longer (blink, toast expiry) are dropped.
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
	case <-time.After(300 * time.Millisecond):
		return nil
	}
}

// pumpEvents feeds pending store events into the model.
func pumpEvents(m *Model) {
	for {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return
			}
			m.Update(StoreEventMsg{Event: ev})
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func typeAndSubmit(m *Model, text string) []tea.Msg {
	m.input.SetValue(text)
	return drain(m.Update(tea.KeyMsg{Type: tea.KeyEnter}))
}

func feed(m *Model, msgs []tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

// =============================================================================
// SENDING
// =============================================================================

func TestSubmit_SendsQuestionAndRendersAnswer(t *testing.T) {
	m, store, backend := newTestModel(t)

	feed(m, typeAndSubmit(m, "What is RAG?"))
	pumpEvents(m)

	assert.False(t, m.Loading())
	assert.Equal(t, "", m.InputValue())
	assert.Equal(t, []string{"What is RAG?"}, backend.messages())
	require.Equal(t, 2, store.Len())

	view := m.View()
	assert.Contains(t, view, "What is RAG?")
	assert.Contains(t, view, "Assistant")
	assert.Contains(t, view, "guide.pdf")
	assert.Contains(t, view, "Sources found")
}

func TestSubmit_BlankInputIsIgnored(t *testing.T) {
	m, store, backend := newTestModel(t)

	msgs := typeAndSubmit(m, "   ")
	assert.Empty(t, msgs)
	assert.False(t, m.Loading())
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, backend.messages())
}

func TestView_WelcomeOnEmptySession(t *testing.T) {
	m, _, _ := newTestModel(t)

	view := m.View()
	assert.Contains(t, view, "Education policy")
	assert.Contains(t, view, "Type /help for commands")
	assert.Contains(t, view, "Gemini 2.0")
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestCommand_ModeUpdatesStoreAndToasts(t *testing.T) {
	m, store, backend := newTestModel(t)

	msgs := typeAndSubmit(m, "/mode brief")
	require.Len(t, msgs, 1)
	feed(m, msgs)

	assert.Equal(t, model.ModeBrief, store.Config().Mode)
	text, isErr := m.Toast()
	assert.False(t, isErr)
	assert.Contains(t, text, "Brief")
	assert.Empty(t, backend.messages())
}

func TestCommand_UnknownShowsErrorToast(t *testing.T) {
	m, _, _ := newTestModel(t)

	feed(m, typeAndSubmit(m, "/bogus"))

	text, isErr := m.Toast()
	assert.True(t, isErr)
	assert.Contains(t, text, "unknown command")
}

func TestCommand_HelpAddsNote(t *testing.T) {
	m, _, _ := newTestModel(t)

	feed(m, typeAndSubmit(m, "/help"))

	assert.Equal(t, 1, m.Notes())
	assert.Contains(t, m.renderTranscript(), "/mode")
}

func TestCommand_PrivacyIsForwardedAsChatText(t *testing.T) {
	m, store, backend := newTestModel(t)

	msgs := typeAndSubmit(m, "/privacidad")
	require.Len(t, msgs, 1)
	fwd, ok := msgs[0].(commands.ForwardMsg)
	require.True(t, ok)

	feed(m, drain(m.Update(fwd)))
	assert.Equal(t, []string{"/politica"}, backend.messages())
	assert.Equal(t, 2, store.Len())
}

func TestCommand_ExportWritesFile(t *testing.T) {
	m, _, _ := newTestModel(t)
	feed(m, typeAndSubmit(m, "Hola"))

	msgs := typeAndSubmit(m, "/export json")
	require.Len(t, msgs, 1)
	done, ok := msgs[0].(commands.ExportCompleteMsg)
	require.True(t, ok)
	require.NoError(t, done.Error)
	assert.True(t, strings.HasSuffix(done.Path, ".json"))

	m.Update(done)
	text, isErr := m.Toast()
	assert.False(t, isErr)
	assert.Contains(t, text, "Exported to")
}

// =============================================================================
// NEW CHAT AND CLEAR
// =============================================================================

func TestNewChat_AsksForConfirmation(t *testing.T) {
	m, store, _ := newTestModel(t)
	feed(m, typeAndSubmit(m, "Hola"))
	require.Equal(t, 2, store.Len())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.True(t, m.Confirming())
	assert.Contains(t, m.View(), "Start a new chat?")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.False(t, m.Confirming())
	assert.Equal(t, 2, store.Len())

	before := store.NewChatTrigger()
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	feed(m, drain(m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})))

	assert.Equal(t, 0, store.Len())
	assert.Greater(t, store.NewChatTrigger(), before)
	text, _ := m.Toast()
	assert.Equal(t, "New conversation", text)
}

func TestClearChat_EventShowsToast(t *testing.T) {
	m, store, _ := newTestModel(t)
	feed(m, typeAndSubmit(m, "Hola"))
	pumpEvents(m)

	store.ClearChat()
	pumpEvents(m)

	text, isErr := m.Toast()
	assert.False(t, isErr)
	assert.Equal(t, "Chat cleared", text)
	assert.Contains(t, m.View(), "Education policy")
}

func TestToast_ExpiresOnlyMatchingID(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.showToast("first", false)
	m.showToast("second", false)
	m.Update(toastExpiredMsg{id: 1})
	text, _ := m.Toast()
	assert.Equal(t, "second", text)

	m.Update(toastExpiredMsg{id: 2})
	_, visible := m.Toast()
	assert.False(t, visible)
}

// =============================================================================
// COMPLETION AND OVERLAYS
// =============================================================================

func TestTab_CompletesUniqueCommand(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.input.SetValue("/sta")
	m.input.CursorEnd()
	m.Update(tea.KeyMsg{Type: tea.KeyTab})

	assert.Equal(t, "/status", m.InputValue())
	assert.False(t, m.completion.Visible)
}

func TestTab_CyclesAmbiguousCompletions(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.input.SetValue("/mo")
	m.input.CursorEnd()
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.True(t, m.completion.Visible)
	assert.Contains(t, m.View(), "/model")

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.completion.Visible)
	assert.True(t, strings.HasPrefix(m.InputValue(), "/mo"))
	assert.True(t, strings.HasSuffix(m.InputValue(), " "), "commands with arguments leave room to type one")
}

func TestSourcesOverlay(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	text, _ := m.Toast()
	assert.Equal(t, "The last answer has no sources", text)

	feed(m, typeAndSubmit(m, "What is RAG?"))
	pumpEvents(m)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	view := m.View()
	assert.Contains(t, view, "Sources of the last answer (1)")
	assert.Contains(t, view, "Retrieval augmented")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.NotContains(t, m.View(), "Sources of the last answer")
}
