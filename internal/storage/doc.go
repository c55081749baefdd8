// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat transcripts in a local SQLite database.
//
// # Key Types
//
//   - ConversationStore: sqlite-backed history (list, load, search, delete)
//   - StoredConversation: one transcript with its chat settings
//   - ConversationMeta: lightweight row for listings
//   - Autosaver: follows a session.Store and saves after every answer
//
// # Usage
//
//	store, err := storage.Open(cfg.HistoryPath())
//	defer store.Close()
//
//	saver := storage.NewAutosaver(store, session, sender.ThreadID(), logger)
//	saver.Start(ctx)
//	defer saver.Stop()
//
//	metas, err := store.List(ctx)
//	conv, err := store.Load(ctx, metas[0].ID)
//
// # Storage Location
//
// History lives in ~/.ragdesk/history.db unless storage.history_path is set.
package storage
