// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ragdesk command line.
//
// Running ragdesk with no subcommand starts the terminal UI. The other
// commands talk to the same backend without it:
//
//	ragdesk ask "What is RAG?"        one question, answer on stdout
//	ragdesk chat                      line-based chat with history
//	ragdesk login | logout | whoami   admin session
//	ragdesk health | stats | report   backend status and metrics
//	ragdesk docs list|upload|delete|reload|watch
//	ragdesk history list|show|search|export|delete
//	ragdesk config show|get|set|keys|path
//	ragdesk version
//
// Global flags: --json for machine-readable output, --api-url to point at
// another backend, --config to read a different config file.
//
// Commands write results to stdout and diagnostics to stderr. With --json
// every command prints one envelope:
//
//	{"success": true, "data": ..., "error": null, "timestamp": "...", "command": "..."}
package cli
