// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/session"
)

type fakeHealth struct {
	status monitor.Status
	resp   *api.HealthResponse
	err    error
	checks int
}

func (f *fakeHealth) Status() monitor.Status { return f.status }

func (f *fakeHealth) Last() (*api.HealthResponse, error, time.Time) {
	return f.resp, f.err, time.Now()
}

func (f *fakeHealth) Check(ctx context.Context) monitor.Status {
	f.checks++
	return f.status
}

type failingLister struct{}

func (failingLister) List(ctx context.Context) ([]api.Document, error) {
	return nil, &api.ClientError{Type: api.ErrTypeServer, Message: "index offline"}
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	store := session.NewStore(model.DefaultChatConfig())
	t.Cleanup(store.Close)
	return &Context{
		Store:    store,
		ThreadID: "user_1700000000000",
		Logger:   zaptest.NewLogger(t),
	}
}

// run executes input and returns the message its command produces.
func run(t *testing.T, ctx *Context, input string) tea.Msg {
	t.Helper()
	cmd, ok := NewRegistry().Execute(ctx, input)
	require.True(t, ok, "%q should be handled as a command", input)
	require.NotNil(t, cmd)
	return cmd()
}

func TestExecute_NotACommand(t *testing.T) {
	cmd, ok := NewRegistry().Execute(newTestContext(t), "what is RAG?")
	assert.False(t, ok)
	assert.Nil(t, cmd)
}

func TestExecute_UnknownCommand(t *testing.T) {
	msg := run(t, newTestContext(t), "/frobnicate")
	errMsg, ok := msg.(ErrorMsg)
	require.True(t, ok)
	assert.ErrorContains(t, errMsg.Err, "unknown command: /frobnicate")
}

func TestExecute_InvalidEnum(t *testing.T) {
	ctx := newTestContext(t)
	msg := run(t, ctx, "/mode verbose")
	errMsg, ok := msg.(ErrorMsg)
	require.True(t, ok)

	var ae *ArgError
	require.True(t, errors.As(errMsg.Err, &ae))
	assert.Equal(t, "verbose", ae.Got)
	assert.Equal(t, model.ModeExtended, ctx.Store.Config().Mode)
}

func TestMode_SpanishAndEnglish(t *testing.T) {
	ctx := newTestContext(t)

	msg := run(t, ctx, "/modo breve")
	changed, ok := msg.(ConfigChangedMsg)
	require.True(t, ok)
	assert.Equal(t, model.ModeBrief, changed.Config.Mode)
	assert.Equal(t, model.ModeBrief, ctx.Store.Config().Mode)
	assert.Contains(t, changed.Notice, "Brief")

	run(t, ctx, "/mode extended")
	assert.Equal(t, model.ModeExtended, ctx.Store.Config().Mode)
}

func TestMode_ShowsCurrent(t *testing.T) {
	msg := run(t, newTestContext(t), "/mode")
	sys, ok := msg.(SystemMessageMsg)
	require.True(t, ok)
	assert.Contains(t, sys.Content, "Current mode: Extended")
	assert.Contains(t, sys.Content, "> extended")
}

func TestRAG_ToggleAndSet(t *testing.T) {
	ctx := newTestContext(t)
	require.True(t, ctx.Store.Config().UseRAG)

	run(t, ctx, "/rag")
	assert.False(t, ctx.Store.Config().UseRAG)

	run(t, ctx, "/rag")
	assert.True(t, ctx.Store.Config().UseRAG)

	run(t, ctx, "/rag off")
	assert.False(t, ctx.Store.Config().UseRAG)
	run(t, ctx, "/rag off")
	assert.False(t, ctx.Store.Config().UseRAG)

	// Other settings are left alone.
	assert.Equal(t, model.ModeExtended, ctx.Store.Config().Mode)
	assert.Equal(t, "gemini", ctx.Store.Config().ModelName)
}

func TestModel_SetAndList(t *testing.T) {
	ctx := newTestContext(t)

	msg := run(t, ctx, "/model")
	sys := msg.(SystemMessageMsg)
	assert.Contains(t, sys.Content, "Current model: Gemini 2.0")

	msg = run(t, ctx, "/model gpt-4o")
	changed := msg.(ConfigChangedMsg)
	assert.Equal(t, "gpt-4o", ctx.Store.Config().ModelName)
	assert.Contains(t, changed.Notice, "not in the known list")
}

func TestClear_BumpsTrigger(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Store.AddMessage(model.NewUserMessage("hola"))
	before := ctx.Store.ClearTrigger()

	msg := run(t, ctx, "/limpiar")
	assert.IsType(t, ChatClearedMsg{}, msg)
	assert.Equal(t, 0, ctx.Store.Len())
	assert.Greater(t, ctx.Store.ClearTrigger(), before)
}

func TestNew_StartsConversation(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Store.AddMessage(model.NewUserMessage("hola"))
	before := ctx.Store.NewChatTrigger()

	msg := run(t, ctx, "/new")
	assert.IsType(t, NewChatMsg{}, msg)
	assert.Equal(t, before+1, ctx.Store.NewChatTrigger())
	assert.Equal(t, 0, ctx.Store.Len())
}

func TestNoSession(t *testing.T) {
	for _, input := range []string{"/clear", "/new", "/mode brief", "/rag", "/model x", "/export"} {
		msg := run(t, &Context{}, input)
		errMsg, ok := msg.(ErrorMsg)
		require.True(t, ok, input)
		assert.ErrorIs(t, errMsg.Err, ErrNoSession, input)
	}
}

func TestHelp(t *testing.T) {
	msg := run(t, newTestContext(t), "/ayuda")
	sys := msg.(SystemMessageMsg)
	assert.Contains(t, sys.Content, "Settings")
	assert.Contains(t, sys.Content, "/mode [brief|extended]")
	assert.Contains(t, sys.Content, "/privacy")

	msg = run(t, newTestContext(t), "/help modo")
	sys = msg.(SystemMessageMsg)
	assert.Contains(t, sys.Content, "Aliases: /modo")
	assert.Contains(t, sys.Content, "[optional]")

	msg = run(t, newTestContext(t), "/help nothing")
	assert.IsType(t, ErrorMsg{}, msg)
}

func TestPrivacy_Forwards(t *testing.T) {
	msg := run(t, newTestContext(t), "/privacy")
	assert.Equal(t, ForwardMsg{Text: "/politica"}, msg)
}

func TestQuit(t *testing.T) {
	msg := run(t, newTestContext(t), "/quit")
	assert.IsType(t, tea.QuitMsg{}, msg)
}

func TestStatus_WithHealth(t *testing.T) {
	ctx := newTestContext(t)
	health := &fakeHealth{
		status: monitor.StatusConnected,
		resp: &api.HealthResponse{
			Status:     "healthy",
			Version:    "1.2.0",
			Components: map[string]string{"vector_store": "operational", "llm": "degraded"},
		},
	}
	ctx.Health = health
	ctx.Store.UpdateConfig(model.ConfigPatch{Mode: model.ModePtr(model.ModeBrief)})

	msg := run(t, ctx, "/estado")
	sys := msg.(SystemMessageMsg)
	assert.Equal(t, 1, health.checks)
	assert.Contains(t, sys.Content, "Backend: connected")
	assert.Contains(t, sys.Content, "Version: 1.2.0")
	assert.Contains(t, sys.Content, "llm: degraded")
	assert.Contains(t, sys.Content, "Mode:     Brief")
	assert.Contains(t, sys.Content, "Thread:   user_1700000000000")
}

func TestStatus_WithoutHealth(t *testing.T) {
	msg := run(t, newTestContext(t), "/status")
	sys := msg.(SystemMessageMsg)
	assert.Contains(t, sys.Content, "Backend: not monitored")
	assert.Contains(t, sys.Content, "RAG:      on")
}

func TestStatus_Disconnected(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Health = &fakeHealth{
		status: monitor.StatusDisconnected,
		err:    &api.ClientError{Type: api.ErrTypeConnection, Message: "connection refused"},
	}
	sys := run(t, ctx, "/status").(SystemMessageMsg)
	assert.Contains(t, sys.Content, "Backend: disconnected")
	assert.Contains(t, sys.Content, "Error:")
}

func TestSources_FromBackend(t *testing.T) {
	backend := apitest.NewServer(t)
	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: backend.URL()})

	ctx := newTestContext(t)
	ctx.Documents = documents.NewManager(client)

	sys := run(t, ctx, "/fuentes").(SystemMessageMsg)
	assert.Contains(t, sys.Content, "2 document(s)")
	assert.Contains(t, sys.Content, "- Guide (UNESCO, 2021, Guía)")

	sys = run(t, ctx, "/sources team").(SystemMessageMsg)
	assert.Contains(t, sys.Content, "1 document(s)")
	assert.Contains(t, sys.Content, "Notes")

	sys = run(t, ctx, "/sources zzz").(SystemMessageMsg)
	assert.Equal(t, `No documents match "zzz".`, sys.Content)
}

func TestSources_Failure(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Documents = failingLister{}

	errMsg := run(t, ctx, "/docs").(ErrorMsg)
	assert.ErrorContains(t, errMsg.Err, "index offline")

	ctx.Documents = nil
	assert.IsType(t, ErrorMsg{}, run(t, ctx, "/docs"))
}

func TestExport_WritesFile(t *testing.T) {
	ctx := newTestContext(t)
	ctx.ExportDir = t.TempDir()
	ctx.Store.AddMessages(
		model.NewUserMessage("What is RAG?"),
		model.NewAssistantMessage("Retrieval-augmented generation.", nil, nil, ""),
	)

	done := run(t, ctx, "/export json").(ExportCompleteMsg)
	require.NoError(t, done.Error)
	assert.Equal(t, ctx.ExportDir, filepath.Dir(done.Path))
	assert.Equal(t, ".json", filepath.Ext(done.Path))

	data, err := os.ReadFile(done.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "user_1700000000000")

	done = run(t, ctx, "/exportar").(ExportCompleteMsg)
	require.NoError(t, done.Error)
	assert.Equal(t, ".md", filepath.Ext(done.Path))
}

func TestExport_Empty(t *testing.T) {
	errMsg := run(t, newTestContext(t), "/export").(ErrorMsg)
	assert.ErrorContains(t, errMsg.Err, "nothing to export")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]model.Mode{"brief": model.ModeBrief, " Breve ": model.ModeBrief, "EXTENDIDO": model.ModeExtended} {
		got, ok := ParseMode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseMode("verbose")
	assert.False(t, ok)
}
