// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root bubbletea model. It hosts the Chat, Documents
// and Metrics tabs under a header and a status bar showing backend
// connectivity.
//
// Global keys:
//
//	F1 / Alt+1   Chat
//	F2 / Alt+2   Documents
//	F3 / Alt+3   Metrics
//	Ctrl+C       quit
//
// Key messages go to the active tab only. Every other message is routed
// to all tabs so background work keeps flowing while a tab is hidden.
package app
