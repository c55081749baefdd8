// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat session,
// the API client and the views.
package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is a document citation returned with an assistant answer.
type Source struct {
	Document       string   `json:"document"`
	Excerpt        string   `json:"excerpt,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// DisplayName returns the document name or a placeholder when the backend
// did not send one.
func (s Source) DisplayName() string {
	if strings.TrimSpace(s.Document) == "" {
		return "Unknown document"
	}
	return s.Document
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in the chat transcript.
// Messages are never mutated once appended to a session.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Sources   []Source       `json:"sources,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Now returns the current time in the wire timestamp format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: Now()}
}

// NewAssistantMessage creates an assistant message. An empty timestamp is
// replaced with the current time.
func NewAssistantMessage(content string, sources []Source, metrics map[string]any, timestamp string) Message {
	if timestamp == "" {
		timestamp = Now()
	}
	if sources == nil {
		sources = []Source{}
	}
	if metrics == nil {
		metrics = map[string]any{}
	}
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Sources:   sources,
		Metrics:   metrics,
		Timestamp: timestamp,
	}
}

// NewErrorMessage creates an error-role message for a failed send.
func NewErrorMessage(detail string) Message {
	return Message{Role: RoleError, Content: "Error: " + detail, Timestamp: Now()}
}

// Time parses the message timestamp. The zero time is returned when the
// backend sent something unparseable.
func (m Message) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Clone returns a deep copy so callers cannot alias the session's slices.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = make([]Source, len(m.Sources))
		copy(out.Sources, m.Sources)
	}
	if m.Metrics != nil {
		out.Metrics = make(map[string]any, len(m.Metrics))
		for k, v := range m.Metrics {
			out.Metrics[k] = v
		}
	}
	return out
}

// Preview returns a truncated single-line preview of the content.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
