// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics provides the Metrics tab of the TUI. The overview page
// shows backend stats, retrieval settings and component health; the report
// page shows the aggregated interaction report with per-day bars.
package metrics
