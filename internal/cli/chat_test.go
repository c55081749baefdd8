// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
	"github.com/jeranaias/ragdesk-tui/internal/model"
)

func newTestREPL(t *testing.T) (*repl, *apitest.Server, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	testHome(t)
	backend := apitest.NewServer(t)

	e := newEnv(&options{APIURL: backend.URL()})
	require.NoError(t, e.setup(context.Background()))
	t.Cleanup(func() { _ = e.Close() })

	var out, errOut bytes.Buffer
	r := newREPL(e, &out, &errOut)
	r.cmdCtx.ExportDir = t.TempDir()
	t.Cleanup(r.Close)
	return r, backend, &out, &errOut
}

func TestREPL_SendsQuestion(t *testing.T) {
	r, backend, out, _ := newTestREPL(t)

	quit := r.Handle(context.Background(), "Hola")

	assert.False(t, quit)
	assert.Contains(t, out.String(), "echo: Hola")
	assert.Equal(t, 2, r.store.Len())
	require.Len(t, backend.ChatRequests(), 1)
	assert.Equal(t, r.sender.ThreadID(), backend.ChatRequests()[0].ThreadID)
}

func TestREPL_BlankInputIsIgnored(t *testing.T) {
	r, backend, out, _ := newTestREPL(t)

	assert.False(t, r.Handle(context.Background(), "   "))
	assert.Empty(t, out.String())
	assert.Equal(t, 0, backend.Calls("chat"))
}

func TestREPL_SlashCommandsChangeSettings(t *testing.T) {
	r, backend, out, _ := newTestREPL(t)
	ctx := context.Background()

	r.Handle(ctx, "/mode brief")
	assert.Equal(t, model.ModeBrief, r.store.Config().Mode)
	assert.Contains(t, out.String(), "Mode set to")

	r.Handle(ctx, "/rag off")
	assert.False(t, r.store.Config().UseRAG)

	r.Handle(ctx, "Hola")
	require.Len(t, backend.ChatRequests(), 1)
	req := backend.ChatRequests()[0]
	assert.Equal(t, string(model.ModeBrief), string(req.Mode))
	assert.False(t, req.UseRAG)
}

func TestREPL_HelpAndErrors(t *testing.T) {
	r, _, out, errOut := newTestREPL(t)
	ctx := context.Background()

	r.Handle(ctx, "/help")
	assert.Contains(t, out.String(), "/mode")

	r.Handle(ctx, "/bogus")
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestREPL_ClearResetsUsage(t *testing.T) {
	r, _, out, _ := newTestREPL(t)
	ctx := context.Background()

	r.Handle(ctx, "Hola")
	require.Equal(t, 1, r.usage.Snapshot().Answers)

	r.Handle(ctx, "/clear")
	assert.Equal(t, 0, r.store.Len())
	assert.Equal(t, 0, r.usage.Snapshot().Answers)
	assert.Contains(t, out.String(), "Chat cleared")
}

func TestREPL_ExportWritesFile(t *testing.T) {
	r, _, out, _ := newTestREPL(t)
	ctx := context.Background()

	r.Handle(ctx, "Hola")
	r.Handle(ctx, "/export json")

	assert.Contains(t, out.String(), "Exported to")
	entries, err := os.ReadDir(r.cmdCtx.ExportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestREPL_QuitEndsSession(t *testing.T) {
	r, _, out, _ := newTestREPL(t)
	ctx := context.Background()

	r.Handle(ctx, "Hola")
	assert.True(t, r.Handle(ctx, "/quit"))

	r.summary()
	assert.Contains(t, out.String(), "Session summary")
	assert.Contains(t, out.String(), "1 (1 with RAG)")
}

func TestREPL_BackendErrorIsPrinted(t *testing.T) {
	r, backend, _, errOut := newTestREPL(t)
	backend.SetChatFunc(func(req api.ChatRequest) (*api.ChatResponse, int, string) {
		return nil, 500, "model overloaded"
	})

	assert.False(t, r.Handle(context.Background(), "Hola"))
	assert.Contains(t, errOut.String(), "model overloaded")
	assert.Equal(t, 1, r.usage.Snapshot().Errors)
}
