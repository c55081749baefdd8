// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor tracks backend health and gathers the admin dashboard
// data: system stats, component health and the aggregated metrics report.
//
// # Key Types
//
//   - HealthChecker: periodic connectivity probe for the status bar
//   - Dashboard: concurrent stats + health refresh and a cached report
//
// # Usage
//
//	hc := monitor.NewHealthChecker(client, monitor.HealthConfig{
//	    OnChange: func(s monitor.Status) { program.Send(statusMsg(s)) },
//	})
//	hc.Start(ctx)
//	defer hc.Stop()
//
//	dash := monitor.NewDashboard(client, monitor.DashboardConfig{})
//	snap := dash.Refresh(ctx)
package monitor
