// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CHAT CONFIG TESTS
// =============================================================================

func TestDefaultChatConfig(t *testing.T) {
	cfg := DefaultChatConfig()
	assert.True(t, cfg.UseRAG)
	assert.Equal(t, ModeExtended, cfg.Mode)
	assert.Equal(t, "gemini", cfg.ModelName)
}

func TestChatConfig_MergeKeepsAbsentFields(t *testing.T) {
	cfg := DefaultChatConfig()

	cfg = cfg.Merge(ConfigPatch{Mode: ModePtr(ModeBrief)})
	cfg = cfg.Merge(ConfigPatch{UseRAG: BoolPtr(false)})

	assert.Equal(t, ModeBrief, cfg.Mode)
	assert.False(t, cfg.UseRAG)
	assert.Equal(t, "gemini", cfg.ModelName)
}

func TestChatConfig_MergeDoesNotValidate(t *testing.T) {
	cfg := DefaultChatConfig().Merge(ConfigPatch{Mode: ModePtr(Mode("verbose")), ModelName: StringPtr("")})
	assert.Equal(t, Mode("verbose"), cfg.Mode)
	assert.Equal(t, "", cfg.ModelName)
}

func TestConfigPatch_IsEmpty(t *testing.T) {
	assert.True(t, ConfigPatch{}.IsEmpty())
	assert.False(t, ConfigPatch{UseRAG: BoolPtr(true)}.IsEmpty())
}

func TestMode_Labels(t *testing.T) {
	assert.Equal(t, "Brief", ModeBrief.Label())
	assert.Equal(t, "Extended", ModeExtended.Label())
	assert.Equal(t, "custom", Mode("custom").Label())
	assert.NotEmpty(t, ModeBrief.Description())
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewAssistantMessage_Defaults(t *testing.T) {
	msg := NewAssistantMessage("hi", nil, nil, "")
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.NotNil(t, msg.Sources)
	assert.NotNil(t, msg.Metrics)
	assert.NotEmpty(t, msg.Timestamp)
	assert.False(t, msg.Time().IsZero())
}

func TestNewAssistantMessage_KeepsBackendTimestamp(t *testing.T) {
	msg := NewAssistantMessage("hi", nil, nil, "2024-05-01T10:00:00")
	assert.Equal(t, "2024-05-01T10:00:00", msg.Timestamp)
	assert.Equal(t, 2024, msg.Time().Year())
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("Network Error")
	assert.Equal(t, RoleError, msg.Role)
	assert.Equal(t, "Error: Network Error", msg.Content)
}

func TestMessage_CloneIsDeep(t *testing.T) {
	score := 0.9
	orig := NewAssistantMessage("answer", []Source{{Document: "a.pdf", RelevanceScore: &score}}, map[string]any{"cost": 0.1}, "")
	cp := orig.Clone()

	cp.Sources[0].Document = "b.pdf"
	*cp.Sources[0].RelevanceScore = 0.1
	cp.Metrics["cost"] = 2.0

	assert.Equal(t, "a.pdf", orig.Sources[0].Document)
	assert.Equal(t, 0.9, *orig.Sources[0].RelevanceScore)
	assert.Equal(t, 0.1, orig.Metrics["cost"])
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage("hello\n  there   world")
	assert.Equal(t, "hello there world", msg.Preview(100))
	assert.Equal(t, "hello t...", msg.Preview(10))
}

func TestSource_JSONRoundTripOptionalFields(t *testing.T) {
	var src Source
	require.NoError(t, json.Unmarshal([]byte(`{"document":"guide.pdf"}`), &src))
	assert.Equal(t, "guide.pdf", src.DisplayName())
	assert.Nil(t, src.RelevanceScore)
	assert.Equal(t, "Unknown document", Source{}.DisplayName())
}

// =============================================================================
// METRIC FORMATTING TESTS
// =============================================================================

func TestFormatMetricValue(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  string
	}{
		{"latency_ms", 1234.56789, "1234.5679"},
		{"cost", 0.0001234, "0.0001"},
		{"avg_relevance_score", 0.87, "0.8700"},
		{"tokens_used", 312.0, "312"},
		{"sources_found", 3, "3"},
		{"context_used", true, "Yes (used)"},
		{"context_used", false, "No (without RAG)"},
		{"mode", "brief", "Brief"},
		{"model", "gemini", "gemini"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatMetricValue(tc.key, tc.value))
		})
	}
}

func TestMetricLabel(t *testing.T) {
	assert.Equal(t, "Latency (ms)", MetricLabel("latency_ms"))
	assert.Equal(t, "custom metric", MetricLabel("custom_metric"))
	assert.Equal(t, "Gemini 2.0", ModelLabel("gemini"))
	assert.Equal(t, "other", ModelLabel("other"))
}

func TestReloadStatus_Failed(t *testing.T) {
	empty := ""
	disk := "disk full"
	assert.False(t, ReloadStatus{}.Failed())
	assert.False(t, ReloadStatus{LastError: &empty}.Failed())
	assert.True(t, ReloadStatus{LastError: &disk}.Failed())
	assert.Equal(t, "disk full", ReloadStatus{LastError: &disk}.ErrorMessage())
}
