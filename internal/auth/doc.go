// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth handles the admin login against the backend and keeps the
// bearer token between runs.
//
// # Key Types
//
//   - FileTokenStore: api.TokenStore persisted at ~/.ragdesk/admin_token (0600)
//   - Manager: login, verification, logout and the cached user
//
// Tokens are JWTs issued by the backend. The client never verifies their
// signature; it only reads the exp claim so an expired token is dropped
// before it is sent.
package auth
