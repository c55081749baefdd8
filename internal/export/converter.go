// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
)

// FromSession builds an unsaved StoredConversation from the live chat so it
// can be exported without touching the history database.
func FromSession(messages []model.Message, cfg model.ChatConfig, threadID string) *storage.StoredConversation {
	conv := &storage.StoredConversation{
		ThreadID: threadID,
		Model:    cfg.ModelName,
		Mode:     cfg.Mode,
		UseRAG:   cfg.UseRAG,
		Messages: make([]model.Message, 0, len(messages)),
	}
	for _, m := range messages {
		conv.Messages = append(conv.Messages, m.Clone())
	}

	conv.Summary = "Chat " + threadID
	for _, m := range conv.Messages {
		if m.Role == model.RoleUser {
			conv.Summary = m.Preview(50)
			break
		}
	}

	conv.CreatedAt = time.Now()
	if len(conv.Messages) > 0 {
		if t := conv.Messages[0].Time(); !t.IsZero() {
			conv.CreatedAt = t
		}
	}
	conv.UpdatedAt = time.Now()
	return conv
}
