// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the live chat session: the message sequence, the
// chat configuration and the send/receive orchestration.
//
// # Key Types
//
//   - Store: the single owner of messages, config and change counters
//   - Event: published to subscribers on every mutation
//   - Sender: sends user input to the backend and appends exactly one
//     answer or error message per turn
//
// # Usage
//
//	store := session.NewStore(model.DefaultChatConfig())
//	sender := session.NewSender(store, client)
//	defer sender.Close()
//
//	events, cancel := store.Subscribe()
//	defer cancel()
//
//	if _, err := sender.Send(ctx, "¿Qué es el AI Act?"); err != nil {
//	    // the error message is already in the store
//	}
//
// All mutation goes through Store methods; readers receive copies.
package session
