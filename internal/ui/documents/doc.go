// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package documents provides the Documents tab of the TUI: the indexed
// document table with search and type filtering, upload by path, delete with
// confirmation, and progress of a backend reindex.
//
// # Key Bindings
//
//   - /: search title, author or filename
//   - t: cycle the type filter
//   - u: upload a file by path
//   - d: delete the selected document (asks first)
//   - r: reindex all documents
//   - R: refresh the list
//   - Esc: leave search or prompt
package documents
