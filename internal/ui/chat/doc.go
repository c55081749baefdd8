// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat tab of the TUI.
//
// The view is presentational: it reads the session store, renders the
// transcript (answers through glamour), and hands input either to the slash
// command registry or to the Sender. Store mutations arrive as StoreEventMsg
// through a subscription, so changes made elsewhere (history autosave,
// commands, another view) re-render the transcript.
//
// # Key Bindings
//
//   - Enter: send, or accept the highlighted completion
//   - Tab / Shift+Tab: cycle slash command completions
//   - PgUp/PgDn, Ctrl+U/Ctrl+D: scroll
//   - Ctrl+N: start a new chat (asks first)
//   - Ctrl+O: show the sources of the last answer
//   - Esc: dismiss completion, overlay or input
package chat
