// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to Markdown or JSON files.
//
// # Key Types
//
//   - Exporter: renders a storage.StoredConversation to bytes
//   - Options: output directory and what metadata to include
//
// # Supported Formats
//
//   - Markdown: readable transcript with sources and answer metrics
//   - JSON: the full stored conversation
//
// # Usage
//
//	conv := export.FromSession(store.Messages(), store.Config(), sender.ThreadID())
//	path, err := export.ExportToFile(conv, export.NewMarkdownExporter(nil), nil)
package export
