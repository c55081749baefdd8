// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the RAG chatbot backend.
//
// Every call attaches the bearer token from a TokenStore, waits on a rate
// limiter, is traced with OpenTelemetry and counted in prometheus. A 401
// response clears the token store.
//
// # Key Types
//
//   - Client: thread-safe backend client
//   - ClientError: typed error with the backend's human-readable detail
//   - TokenStore: where the admin bearer token lives
//
// # Usage
//
//	client := api.NewClientWithConfig(&api.ClientConfig{
//	    BaseURL: cfg.API.BaseURL,
//	    Tokens:  store,
//	})
//	resp, err := client.Chat(ctx, api.ChatRequest{Message: "hola", ThreadID: id})
//	if err != nil {
//	    fmt.Println(api.Detail(err))
//	}
package api
