// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat session,
// the API client and the views.
//
// # Key Types
//
//   - Message: Immutable chat entry with role, content, sources and metrics
//   - Source: Document citation attached to an assistant message
//   - ChatConfig: Per-session chat settings (RAG toggle, mode, model)
//   - ConfigPatch: Partial update merged into a ChatConfig
//   - ReloadStatus: Snapshot of the backend document reindex job
//
// # Usage
//
//	cfg := model.DefaultChatConfig()
//	cfg = cfg.Merge(model.ConfigPatch{Mode: model.ModePtr(model.ModeBrief)})
//
//	msg := model.NewUserMessage("What does the AI Act say about risk?")
package model
