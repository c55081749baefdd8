// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// RESPONSE MODE
// =============================================================================

// Mode selects how verbose the backend answers are.
type Mode string

const (
	ModeBrief    Mode = "brief"
	ModeExtended Mode = "extended"
)

// Label returns the short display label for the mode.
func (m Mode) Label() string {
	switch m {
	case ModeBrief:
		return "Brief"
	case ModeExtended:
		return "Extended"
	default:
		return string(m)
	}
}

// Description explains the mode in the settings panel.
func (m Mode) Description() string {
	switch m {
	case ModeBrief:
		return "Short, concise answers"
	case ModeExtended:
		return "Detailed, explanatory answers"
	default:
		return ""
	}
}

// =============================================================================
// CHAT CONFIG
// =============================================================================

// ChatConfig holds the per-session chat settings sent with every turn.
type ChatConfig struct {
	UseRAG    bool   `json:"use_rag" toml:"use_rag"`
	Mode      Mode   `json:"mode" toml:"mode"`
	ModelName string `json:"model_name" toml:"model_name"`
}

// DefaultChatConfig returns the settings a new session starts with.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		UseRAG:    true,
		Mode:      ModeExtended,
		ModelName: "gemini",
	}
}

// ConfigPatch is a partial ChatConfig. Nil fields are left untouched by Merge.
type ConfigPatch struct {
	UseRAG    *bool
	Mode      *Mode
	ModelName *string
}

// Merge returns a copy of c with every non-nil field of p applied.
// Values are not validated here; the backend rejects bad ones.
func (c ChatConfig) Merge(p ConfigPatch) ChatConfig {
	if p.UseRAG != nil {
		c.UseRAG = *p.UseRAG
	}
	if p.Mode != nil {
		c.Mode = *p.Mode
	}
	if p.ModelName != nil {
		c.ModelName = *p.ModelName
	}
	return c
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return p.UseRAG == nil && p.Mode == nil && p.ModelName == nil
}

// BoolPtr returns a pointer to b, for building patches.
func BoolPtr(b bool) *bool { return &b }

// ModePtr returns a pointer to m, for building patches.
func ModePtr(m Mode) *Mode { return &m }

// StringPtr returns a pointer to s, for building patches.
func StringPtr(s string) *string { return &s }
