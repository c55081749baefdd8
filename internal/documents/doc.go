// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package documents manages the backend's document corpus: client-side
// upload validation, upload/list/delete through the API, and an optional
// directory watcher that uploads new files automatically.
//
// # Key Types
//
//   - Rules: accepted extensions and maximum size
//   - Manager: upload, list (cached), delete and a refresh counter
//   - Watcher: fsnotify-driven auto-upload with debounce
//
// # Usage
//
//	mgr := documents.NewManager(client, documents.WithCacheTTL(30*time.Second))
//	if _, err := mgr.Upload(ctx, "/tmp/guide.pdf"); err != nil {
//	    var verr *documents.ValidationError
//	    if errors.As(err, &verr) {
//	        // rejected before any request was made
//	    }
//	}
//
// The backend remains the authority on uploads; validation here only
// avoids requests that are certain to fail.
package documents
