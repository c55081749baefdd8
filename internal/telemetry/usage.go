// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sync"
	"time"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

// Usage is a snapshot of the answers received in one session.
type Usage struct {
	StartTime    time.Time     `json:"start_time"`
	Answers      int           `json:"answers"`
	Errors       int           `json:"errors"`
	RAGAnswers   int           `json:"rag_answers"`
	Tokens       int           `json:"tokens"`
	Cost         float64       `json:"cost"`
	TotalLatency time.Duration `json:"total_latency"`
	Slowest      time.Duration `json:"slowest"`
}

// AvgLatency returns the mean round-trip time per answer.
func (u Usage) AvgLatency() time.Duration {
	if u.Answers == 0 {
		return 0
	}
	return u.TotalLatency / time.Duration(u.Answers)
}

// UsageTracker accumulates the per-answer metrics the backend reports.
// Safe for concurrent use.
type UsageTracker struct {
	mu    sync.RWMutex
	usage Usage
}

// NewUsageTracker starts a tracker for a fresh session.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: Usage{StartTime: time.Now()}}
}

// RecordAnswer adds one assistant answer. metrics is the map the backend
// attached to the answer; rtt is the measured round trip.
func (t *UsageTracker) RecordAnswer(metrics map[string]any, rtt time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.Answers++
	t.usage.TotalLatency += rtt
	if rtt > t.usage.Slowest {
		t.usage.Slowest = rtt
	}
	if n, ok := number(metrics["tokens_used"]); ok {
		t.usage.Tokens += int(n)
	}
	if c, ok := number(metrics["cost"]); ok {
		t.usage.Cost += c
	}
	if used, ok := metrics["context_used"].(bool); ok && used {
		t.usage.RAGAnswers++
	}
}

// RecordError counts a failed turn.
func (t *UsageTracker) RecordError() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Errors++
}

// Snapshot returns a copy of the totals.
func (t *UsageTracker) Snapshot() Usage {
	if t == nil {
		return Usage{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usage
}

// Reset starts a new accounting period.
func (t *UsageTracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = Usage{StartTime: time.Now()}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
