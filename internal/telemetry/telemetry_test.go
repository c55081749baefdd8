// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk-tui/internal/config"
)

// scrape renders the registry in the text exposition format.
func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("chat", 200, 120*time.Millisecond)
	m.ObserveRequest("chat", 200, 80*time.Millisecond)
	m.ObserveRequest("health", 0, time.Second)
	m.ChatMessage("user")
	m.ReloadFinished(false)
	m.Upload("rejected")
	m.SetBackendUp(true)

	out := scrape(t, reg)
	for _, line := range []string{
		`ragdesk_api_requests_total{endpoint="chat",status="200"} 2`,
		`ragdesk_api_requests_total{endpoint="health",status="0"} 1`,
		`ragdesk_api_request_duration_seconds_count{endpoint="chat"} 2`,
		`ragdesk_chat_messages_total{role="user"} 1`,
		`ragdesk_reload_cycles_total{outcome="error"} 1`,
		`ragdesk_document_uploads_total{result="rejected"} 1`,
		`ragdesk_backend_up 1`,
	} {
		assert.Contains(t, out, line)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("chat", 500, time.Millisecond)
		m.ChatMessage("error")
		m.ReloadFinished(true)
		m.Upload("ok")
		m.SetBackendUp(false)
	})
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg).ObserveRequest("stats", 200, time.Millisecond)

	out := scrape(t, reg)
	assert.True(t, strings.Contains(out, "# HELP ragdesk_api_requests_total"))
	assert.Contains(t, out, `ragdesk_api_requests_total{endpoint="stats",status="200"} 1`)
}

func TestInit_DisabledIsInert(t *testing.T) {
	p, err := Init(context.Background(), config.TelemetryConfig{Enabled: false, ServiceName: "ragdesk"})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}

func TestUsageTracker(t *testing.T) {
	tr := NewUsageTracker()
	tr.RecordAnswer(map[string]any{"tokens_used": 100.0, "cost": 0.002, "context_used": true}, 200*time.Millisecond)
	tr.RecordAnswer(map[string]any{"tokens_used": 50, "context_used": false}, 400*time.Millisecond)
	tr.RecordError()

	u := tr.Snapshot()
	assert.Equal(t, 2, u.Answers)
	assert.Equal(t, 1, u.Errors)
	assert.Equal(t, 1, u.RAGAnswers)
	assert.Equal(t, 150, u.Tokens)
	assert.InDelta(t, 0.002, u.Cost, 1e-9)
	assert.Equal(t, 300*time.Millisecond, u.AvgLatency())
	assert.Equal(t, 400*time.Millisecond, u.Slowest)

	tr.Reset()
	assert.Zero(t, tr.Snapshot().Answers)
}

func TestUsageTracker_Concurrent(t *testing.T) {
	tr := NewUsageTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordAnswer(map[string]any{"tokens_used": 1.0}, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Snapshot().Tokens)
}
