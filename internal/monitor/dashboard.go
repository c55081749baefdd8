// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// DefaultReportTTL is how long a metrics report is served from cache.
const DefaultReportTTL = 15 * time.Second

const reportKey = "report"

// DashboardAPI is the set of backend calls the dashboard makes.
type DashboardAPI interface {
	Stats(ctx context.Context) (*api.StatsResponse, error)
	Health(ctx context.Context) (*api.HealthResponse, error)
	MetricsReport(ctx context.Context) (*api.MetricsReport, error)
}

// Snapshot is the result of one dashboard refresh.
type Snapshot struct {
	Stats  *api.StatsResponse
	Health *api.HealthResponse
	// Err is the stats failure, if any. Health failures are folded into
	// Health as {status: unhealthy, error}.
	Err       error
	UpdatedAt time.Time
}

// Operational reports whether the stats endpoint declared the system
// operational or healthy.
func (s Snapshot) Operational() bool {
	return s.Stats != nil && StatusLevel(s.Stats.Status) == LevelOK
}

// DashboardConfig configures a Dashboard. Zero values use defaults.
type DashboardConfig struct {
	// ReportTTL caches the metrics report. Negative disables the cache.
	ReportTTL time.Duration
	NewTicker util.TickerFactory
	Logger    *zap.Logger
}

// Dashboard gathers the admin metrics view.
type Dashboard struct {
	client DashboardAPI
	cfg    DashboardConfig
	cache  *cache.Cache

	mu      sync.Mutex
	snap    Snapshot
	loading bool
}

// NewDashboard creates a Dashboard.
func NewDashboard(client DashboardAPI, cfg DashboardConfig) *Dashboard {
	if cfg.ReportTTL == 0 {
		cfg.ReportTTL = DefaultReportTTL
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = util.NewRealTicker
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &Dashboard{client: client, cfg: cfg}
	if cfg.ReportTTL > 0 {
		d.cache = cache.New(cfg.ReportTTL, 2*cfg.ReportTTL)
	}
	return d
}

// Snapshot returns the latest refresh result.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// Loading reports whether a refresh is in flight.
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

// Refresh fetches stats and health concurrently. A health failure never
// fails the refresh.
func (d *Dashboard) Refresh(ctx context.Context) Snapshot {
	d.mu.Lock()
	d.loading = true
	d.mu.Unlock()

	var (
		stats  *api.StatsResponse
		health *api.HealthResponse
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		stats, err = d.client.Stats(ctx)
		return err
	})
	g.Go(func() error {
		resp, err := d.client.Health(ctx)
		if err != nil {
			d.cfg.Logger.Warn("HEALTH_FETCH_FAILED", zap.Error(err))
			resp = &api.HealthResponse{Status: "unhealthy", Error: api.Detail(err)}
		}
		health = resp
		return nil
	})
	err := g.Wait()
	if err != nil {
		d.cfg.Logger.Warn("STATS_FETCH_FAILED", zap.Error(err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false
	d.snap.Health = health
	d.snap.Err = err
	if err == nil {
		d.snap.Stats = stats
	}
	d.snap.UpdatedAt = time.Now()
	return d.snap
}

// Report returns the aggregated metrics report, cached for ReportTTL.
func (d *Dashboard) Report(ctx context.Context) (*api.MetricsReport, error) {
	if d.cache != nil {
		if v, ok := d.cache.Get(reportKey); ok {
			return v.(*api.MetricsReport), nil
		}
	}

	report, err := d.client.MetricsReport(ctx)
	if err != nil {
		d.cfg.Logger.Warn("REPORT_FETCH_FAILED", zap.Error(err))
		return nil, err
	}
	if d.cache != nil {
		d.cache.SetDefault(reportKey, report)
	}
	return report, nil
}

// InvalidateReport drops the cached report.
func (d *Dashboard) InvalidateReport() {
	if d.cache != nil {
		d.cache.Delete(reportKey)
	}
}

// AutoRefresh refreshes every interval until ctx is done, passing each
// snapshot to fn. It blocks; run it in its own goroutine.
func (d *Dashboard) AutoRefresh(ctx context.Context, interval time.Duration, fn func(Snapshot)) {
	if interval <= 0 {
		return
	}
	ticker := d.cfg.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			snap := d.Refresh(ctx)
			if ctx.Err() != nil {
				return
			}
			if fn != nil {
				fn(snap)
			}
		}
	}
}
