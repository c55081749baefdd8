// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the chat input.
//
// Commands change the chat session locally (mode, RAG, model, clearing) or
// report on it (status, sources, help). Anything a handler cannot answer
// locally, such as the privacy policy, is forwarded to the backend as a
// normal chat message.
//
// # Key Types
//
//   - Registry: command lookup by name or alias (case-insensitive)
//   - Parser: splits "/cmd args" input, honouring quotes
//   - Context: the session, health and document services a handler may use
//   - Completer: tab completion for command names and enum arguments
//
// # Usage
//
//	reg := commands.NewRegistry()
//	if cmd, ok := reg.Execute(cctx, input); ok {
//	    return m, cmd
//	}
package commands
