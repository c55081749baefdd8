// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides client-side metrics, tracing and usage tracking
// for ragdesk.
//
// # Key Types
//
//   - Metrics: prometheus collectors for backend calls, chat turns, reload
//     cycles and uploads
//   - Provider: OpenTelemetry tracer provider exporting over OTLP/HTTP
//   - UsageTracker: per-session token, cost and latency totals built from the
//     metrics the backend attaches to each answer
//
// # Usage
//
//	m := telemetry.NewMetrics(prometheus.NewRegistry())
//	m.ObserveRequest("chat", 200, time.Since(start))
//
//	p, err := telemetry.Init(ctx, cfg.Telemetry)
//	defer p.Shutdown(ctx)
package telemetry
