// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// CATALOGUES
// =============================================================================

// ModelOption is a selectable backend model.
type ModelOption struct {
	Value string
	Label string
}

// KnownModels lists the models the backend is known to serve.
var KnownModels = []ModelOption{
	{Value: "gemini", Label: "Gemini 2.0"},
}

// KnownModes lists the selectable response modes in display order.
var KnownModes = []Mode{ModeBrief, ModeExtended}

// ModelLabel returns the display label for a model value.
func ModelLabel(value string) string {
	for _, m := range KnownModels {
		if m.Value == value {
			return m.Label
		}
	}
	return value
}

// =============================================================================
// METRIC FORMATTING
// =============================================================================

var metricLabels = map[string]string{
	"query_number":        "Query number",
	"context_used":        "RAG context",
	"sources_found":       "Sources found",
	"mode":                "Mode",
	"model":               "Model",
	"latency_ms":          "Latency (ms)",
	"tokens_used":         "Tokens used",
	"cost":                "Estimated cost",
	"avg_relevance_score": "Average relevance",
}

// decimalMetrics are shown with four decimals; other numbers are rounded.
var decimalMetrics = map[string]bool{
	"latency_ms":          true,
	"cost":                true,
	"avg_relevance_score": true,
}

// MetricLabel returns the display label for a per-answer metric key.
func MetricLabel(key string) string {
	if label, ok := metricLabels[key]; ok {
		return label
	}
	return strings.ReplaceAll(key, "_", " ")
}

// FormatMetricValue renders a per-answer metric value for display.
func FormatMetricValue(key string, value any) string {
	switch key {
	case "context_used":
		if b, ok := value.(bool); ok {
			if b {
				return "Yes (used)"
			}
			return "No (without RAG)"
		}
	case "mode":
		if s, ok := value.(string); ok {
			return Mode(s).Label()
		}
	}

	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return fmt.Sprint(value)
	}
	if decimalMetrics[key] {
		return fmt.Sprintf("%.4f", f)
	}
	return fmt.Sprintf("%d", int64(math.Round(f)))
}
