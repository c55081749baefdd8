// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the ragdesk packages.
//
// # Key Functions
//
// Display Width:
//   - Truncate: cell-width aware truncation with ellipsis
//   - PadRight: pad a string to a terminal cell width
//   - Width: terminal cell width of a string
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - HomePath: resolve paths under the ragdesk home directory
//
// # Usage
//
//	title := util.Truncate(doc.Name, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
