// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
)

func sampleConversation() *storage.StoredConversation {
	score := 0.87
	return &storage.StoredConversation{
		ID:        "c1",
		ThreadID:  "user_1700000000000",
		Summary:   "What is the leave policy?",
		Model:     "gemini",
		Mode:      model.ModeBrief,
		UseRAG:    true,
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 3, 1, 10, 1, 0, 0, time.UTC),
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "What is the leave policy?", Timestamp: "2025-03-01T10:00:00Z"},
			{
				Role:    model.RoleAssistant,
				Content: "Twenty days per year.",
				Sources: []model.Source{
					{Document: "handbook.pdf", Excerpt: "Employees  get\ntwenty days", RelevanceScore: &score},
					{Document: ""},
				},
				Metrics:   map[string]any{"latency_ms": 12.5, "sources_found": float64(2), "context_used": true},
				Timestamp: "2025-03-01T10:00:05Z",
			},
			{Role: model.RoleError, Content: "Error: timeout", Timestamp: "2025-03-01T10:01:00Z"},
		},
	}
}

func TestMarkdownExporter_Export(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "title: What is the leave policy?\n")
	assert.Contains(t, md, "mode: brief\n")
	assert.Contains(t, md, "rag: true\n")
	assert.Contains(t, md, "generator: ragdesk\n")
	assert.Contains(t, md, "- **Model**: Gemini 2.0\n")
	assert.Contains(t, md, "- **Mode**: Brief\n")
	assert.Contains(t, md, "### You <sub>")
	assert.Contains(t, md, "### Assistant <sub>")
	assert.Contains(t, md, "> Error: timeout")
	assert.Contains(t, md, "- handbook.pdf (0.87): Employees get twenty days\n")
	assert.Contains(t, md, "- Unknown document\n")
	assert.Contains(t, md, "<sub>Metrics: RAG context: Yes (used) | Latency (ms): 12.5000 | Sources found: 2</sub>")
}

func TestMarkdownExporter_WithoutMetadata(t *testing.T) {
	opts := &Options{}
	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.False(t, strings.HasPrefix(md, "---"))
	assert.NotContains(t, md, "Metrics:")
	assert.NotContains(t, md, "**Sources**")
	assert.Contains(t, md, "### You\n")
}

func TestMarkdownExporter_Rejects(t *testing.T) {
	_, err := NewMarkdownExporter(nil).Export(nil)
	assert.Error(t, err)

	_, err = NewMarkdownExporter(nil).Export(&storage.StoredConversation{Summary: "empty"})
	assert.Error(t, err)
}

func TestJSONExporter_Export(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleConversation())
	require.NoError(t, err)

	var decoded storage.StoredConversation
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "user_1700000000000", decoded.ThreadID)
	require.Len(t, decoded.Messages, 3)
	assert.Equal(t, model.RoleError, decoded.Messages[2].Role)
	require.NotNil(t, decoded.Messages[1].Sources[0].RelevanceScore)
	assert.InDelta(t, 0.87, *decoded.Messages[1].Sources[0].RelevanceScore, 1e-9)
}

func TestForFormat(t *testing.T) {
	for _, format := range []string{"", "md", "Markdown"} {
		e, err := ForFormat(format, nil)
		require.NoError(t, err)
		assert.Equal(t, ".md", e.FileExtension())
	}

	e, err := ForFormat("json", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", e.MimeType())

	_, err = ForFormat("html", nil)
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := ExportToFile(sampleConversation(), NewJSONExporter(nil), &Options{OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "conversation_What_is_the_leave_policy-_"))
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"thread_id": "user_1700000000000"`)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "conversation", sanitizeFilename("   "))
	assert.Equal(t, "a-b-c_d", sanitizeFilename(`a/b:c d`))
	assert.Equal(t, "-Qué_tal-", sanitizeFilename("¿Qué tal?"))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("é", 80))), 50)
}

func TestFromSession(t *testing.T) {
	msgs := sampleConversation().Messages
	cfg := model.ChatConfig{UseRAG: false, Mode: model.ModeExtended, ModelName: "gemini"}

	conv := FromSession(msgs, cfg, "user_42")
	assert.Equal(t, "user_42", conv.ThreadID)
	assert.Equal(t, "What is the leave policy?", conv.Summary)
	assert.Equal(t, model.ModeExtended, conv.Mode)
	assert.False(t, conv.UseRAG)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), conv.CreatedAt)

	// The export copy must not alias the live session.
	conv.Messages[1].Sources[0].Document = "changed"
	assert.Equal(t, "handbook.pdf", msgs[1].Sources[0].Document)

	empty := FromSession(nil, cfg, "user_42")
	assert.Equal(t, "Chat user_42", empty.Summary)
	assert.Empty(t, empty.Messages)
}
