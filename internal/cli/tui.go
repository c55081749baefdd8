// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/commands"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/monitor"
	"github.com/jeranaias/ragdesk-tui/internal/reload"
	"github.com/jeranaias/ragdesk-tui/internal/session"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
	"github.com/jeranaias/ragdesk-tui/internal/ui/app"
	"github.com/jeranaias/ragdesk-tui/internal/ui/chat"
	docview "github.com/jeranaias/ragdesk-tui/internal/ui/documents"
	"github.com/jeranaias/ragdesk-tui/internal/ui/metrics"
	"github.com/jeranaias/ragdesk-tui/internal/ui/styles"
)

// runTUI wires the backend services into the tabbed UI and runs it until
// the user quits.
func runTUI(ctx context.Context, e *env) error {
	if err := requireTTY("run the terminal UI"); err != nil {
		return err
	}
	if err := e.setup(ctx); err != nil {
		return err
	}
	cfg, logger := e.cfg, e.logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.serveMetrics(ctx)

	theme := styles.NewTheme()
	switch cfg.UI.Theme {
	case "dark":
		theme.IsDark = true
	case "light":
		theme.IsDark = false
	}

	// =========================================================================
	// SESSION
	// =========================================================================

	store := session.NewStore(cfg.ChatDefaults())
	defer store.Close()
	sender := session.NewSender(store, e.client,
		session.WithLogger(logger),
		session.WithMetrics(e.metrics),
	)
	defer sender.Close()

	if cfg.Storage.Autosave {
		history, err := e.history()
		if err != nil {
			logger.Warn("HISTORY_UNAVAILABLE", zap.Error(err))
		} else {
			defer history.Close()
			saver := storage.NewAutosaver(history, store, sender.ThreadID(), logger)
			saver.Start(ctx)
			defer func() {
				saver.Stop()
				flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := saver.Flush(flushCtx); err != nil {
					logger.Warn("HISTORY_FLUSH_FAILED", zap.Error(err))
				}
			}()
		}
	}

	// =========================================================================
	// BACKGROUND SERVICES
	// =========================================================================

	changes := make(chan monitor.Status, 1)
	health := monitor.NewHealthChecker(e.client, monitor.HealthConfig{
		Interval: cfg.HealthInterval(),
		Logger:   logger,
		Metrics:  e.metrics,
		OnChange: func(s monitor.Status) {
			select {
			case changes <- s:
			default:
			}
		},
	})
	health.Start(ctx)
	defer health.Stop()

	library := e.documentManager()
	updates, unsubscribe := library.Subscribe()
	defer unsubscribe()

	if dir := cfg.Upload.WatchDir; dir != "" {
		stopWatch, err := startWatcher(ctx, dir, library, time.Duration(cfg.Upload.DebounceMillis)*time.Millisecond, logger)
		if err != nil {
			logger.Warn("WATCHER_UNAVAILABLE", zap.String("dir", dir), zap.Error(err))
		} else {
			defer stopWatch()
		}
	}

	poller := reload.NewPoller(e.client,
		reload.WithInterval(cfg.ReloadInterval()),
		reload.WithLogger(logger),
		reload.WithMetrics(e.metrics),
	)
	defer poller.Stop()

	dashboard := monitor.NewDashboard(e.client, monitor.DashboardConfig{
		ReportTTL: time.Duration(cfg.Cache.ReportTTLSecs) * time.Second,
		Logger:    logger,
	})

	// =========================================================================
	// VIEWS
	// =========================================================================

	root := app.New(app.Config{
		Theme: theme,
		Chat: chat.New(chat.Config{
			Theme:       theme,
			Store:       store,
			Sender:      sender,
			Registry:    commands.NewRegistry(),
			Health:      health,
			Documents:   library,
			ExportDir:   ".",
			Logger:      logger,
			Base:        ctx,
			WordWrap:    cfg.UI.WordWrap,
			ShowSources: cfg.UI.ShowSources,
			ShowMetrics: cfg.UI.ShowMetrics,
		}),
		Documents: docview.New(docview.Config{
			Theme:    theme,
			Library:  library,
			Reloader: poller,
			Updates:  updates,
			Logger:   logger,
			Base:     ctx,
			Timeout:  cfg.Timeout(),
		}),
		Metrics: metrics.New(metrics.Config{
			Theme:           theme,
			Dashboard:       dashboard,
			RefreshInterval: time.Duration(cfg.Polling.DashboardRefreshSecs) * time.Second,
			Logger:          logger,
			Base:            ctx,
		}),
		Health:        health,
		HealthChanges: changes,
		APIURL:        cfg.API.BaseURL,
		Version:       Version,
		Logger:        logger,
	})
	defer root.Close()

	logger.Info("TUI_START", zap.String("thread_id", sender.ThreadID()))
	p := tea.NewProgram(root,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	logger.Info("TUI_EXIT")
	return nil
}

// startWatcher auto-uploads files dropped into dir and logs each result.
func startWatcher(ctx context.Context, dir string, library *documents.Manager, debounce time.Duration, logger *zap.Logger) (func(), error) {
	w, err := documents.NewWatcher(dir, library, debounce, logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	go func() {
		for res := range w.Results() {
			switch {
			case res.Skipped:
				logger.Info("WATCH_SKIPPED", zap.String("path", res.Path), zap.Error(res.Err))
			case res.Err != nil:
				logger.Warn("WATCH_UPLOAD_FAILED", zap.String("path", res.Path), zap.Error(res.Err))
			default:
				logger.Info("WATCH_UPLOADED", zap.String("path", res.Path))
			}
		}
	}()
	return func() { _ = w.Close() }, nil
}
