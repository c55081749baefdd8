// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// DefaultHealthInterval is the period between connectivity checks.
const DefaultHealthInterval = 30 * time.Second

// Status is the backend connectivity seen by the client.
type Status int

const (
	StatusChecking Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// HealthAPI is the backend call a HealthChecker needs.
type HealthAPI interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// HealthConfig configures a HealthChecker. Zero values use defaults.
type HealthConfig struct {
	Interval  time.Duration
	NewTicker util.TickerFactory
	Logger    *zap.Logger
	Metrics   *telemetry.Metrics
	// OnChange is called from the checker goroutine whenever Status changes.
	// It must not call Stop.
	OnChange func(Status)
}

// HealthChecker probes /api/health immediately on Start and then on every
// tick until Stop.
type HealthChecker struct {
	client HealthAPI
	cfg    HealthConfig

	mu      sync.Mutex
	status  Status
	last    *api.HealthResponse
	lastErr error
	checked time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHealthChecker creates a checker in the Checking state.
func NewHealthChecker(client HealthAPI, cfg HealthConfig) *HealthChecker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = util.NewRealTicker
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &HealthChecker{client: client, cfg: cfg}
}

// Status returns the latest connectivity status.
func (h *HealthChecker) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Last returns the latest health payload, the latest error and when the
// check ran.
func (h *HealthChecker) Last() (*api.HealthResponse, error, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.lastErr, h.checked
}

// Start runs the first check at once and then one per interval. Calling
// Start while running is a no-op.
func (h *HealthChecker) Start(ctx context.Context) {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go h.loop(ctx, done)
}

// Stop ends the periodic checks and waits for the loop to exit. Safe to
// call more than once.
func (h *HealthChecker) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *HealthChecker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := h.cfg.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			h.Check(ctx)
		}
	}
}

// Check performs one probe and returns the resulting status.
func (h *HealthChecker) Check(ctx context.Context) Status {
	resp, err := h.client.Health(ctx)
	if ctx.Err() != nil {
		return h.Status()
	}

	next := StatusConnected
	if err != nil {
		next = StatusDisconnected
	}

	h.mu.Lock()
	prev := h.status
	h.status = next
	h.last = resp
	h.lastErr = err
	h.checked = time.Now()
	h.mu.Unlock()

	h.cfg.Metrics.SetBackendUp(err == nil)
	if prev != next {
		if err != nil {
			h.cfg.Logger.Warn("BACKEND_DISCONNECTED", zap.Error(err))
		} else {
			h.cfg.Logger.Info("BACKEND_CONNECTED", zap.String("status", resp.Status))
		}
		if h.cfg.OnChange != nil {
			h.cfg.OnChange(next)
		}
	}
	return next
}
