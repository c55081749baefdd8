// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the ragdesk file logger.
//
// The TUI owns the terminal, so log output goes only to a rotating JSON file
// (~/.ragdesk/logs/ragdesk.log by default). Messages use an upper-case event
// name with structured fields:
//
//	logging.L().Info("RELOAD_COMPLETE", zap.Bool("success", true))
package logging
