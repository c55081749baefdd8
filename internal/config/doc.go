// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ragdesk.
//
// Supports TOML and JSON configuration formats, with defaults, .env and
// environment variable overrides, and struct-tag validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: backend URL, timeout and rate limit
//   - ChatSection: defaults for new chat sessions
//   - PollingConfig: reload, health and dashboard intervals
//   - LoggingConfig / TelemetryConfig: ambient observability
//
// # Configuration Precedence
//
// Configuration is loaded from (highest first):
//   - Environment variables (RAGDESK_*, OTEL_EXPORTER_OTLP_ENDPOINT)
//   - .env in the working directory
//   - ~/.ragdesk/config.toml
//   - ~/.ragdesk/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	client := api.NewClientWithConfig(api.ClientConfig{BaseURL: cfg.API.BaseURL})
package config
