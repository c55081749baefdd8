// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/auth"
	"github.com/jeranaias/ragdesk-tui/internal/config"
	"github.com/jeranaias/ragdesk-tui/internal/documents"
	"github.com/jeranaias/ragdesk-tui/internal/logging"
	"github.com/jeranaias/ragdesk-tui/internal/storage"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
)

// options holds the global flags.
type options struct {
	JSON       bool
	APIURL     string
	ConfigPath string
}

// env is everything a command needs to talk to the backend. It is built
// lazily so that commands like version and config path work without a
// valid configuration.
type env struct {
	opts *options

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	tracing  *telemetry.Provider
	tokens   *auth.FileTokenStore
	client   *api.Client

	closers []func() error
}

func newEnv(opts *options) *env {
	return &env{opts: opts}
}

// loadConfig reads the config file and applies --api-url.
func (e *env) loadConfig() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.opts.ConfigPath)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if e.opts.APIURL != "" {
		cfg.API.BaseURL = e.opts.APIURL
	}
	config.SetGlobal(cfg)
	e.cfg = cfg
	return cfg, nil
}

// setup loads config and builds the logger, telemetry and API client.
func (e *env) setup(ctx context.Context) error {
	if e.client != nil {
		return nil
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Logging, cfg.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		logger = zap.NewNop()
	} else {
		e.closers = append(e.closers, closeLog)
	}
	logging.SetGlobal(logger)
	e.logger = logger

	// Tracing must be installed before the client captures its tracer.
	tracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("TELEMETRY_INIT_FAILED", zap.Error(err))
		tracing = &telemetry.Provider{}
	}
	e.tracing = tracing
	e.closers = append(e.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return tracing.Shutdown(shutdownCtx)
	})

	e.registry = prometheus.NewRegistry()
	e.metrics = telemetry.NewMetrics(e.registry)

	e.tokens = auth.NewFileTokenStore("")
	e.client = api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.Timeout(),
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
		Tokens:    e.tokens,
		Metrics:   e.metrics,
		Logger:    logger,
	})

	logger.Debug("CLI_READY",
		zap.String("api_url", cfg.API.BaseURL),
		zap.Bool("tracing", tracing.Enabled()),
	)
	return nil
}

// serveMetrics exposes /metrics for long-running commands when
// telemetry.metrics_addr is set.
func (e *env) serveMetrics(ctx context.Context) {
	addr := e.cfg.Telemetry.MetricsAddr
	if addr == "" {
		return
	}
	go func() {
		if err := telemetry.Serve(ctx, addr, e.registry, e.logger); err != nil {
			e.logger.Warn("METRICS_SERVER_FAILED", zap.String("addr", addr), zap.Error(err))
		}
	}()
}

// authManager returns the admin session manager.
func (e *env) authManager() *auth.Manager {
	return auth.NewManager(e.client, e.tokens, e.logger)
}

// documentManager returns a document manager using the configured rules.
func (e *env) documentManager() *documents.Manager {
	return documents.NewManager(e.client,
		documents.WithRules(documents.RulesFromConfig(e.cfg.Upload)),
		documents.WithCacheTTL(time.Duration(e.cfg.Cache.DocumentsTTLSecs)*time.Second),
		documents.WithLogger(e.logger),
		documents.WithMetrics(e.metrics),
	)
}

// history opens the conversation store. The caller closes it.
func (e *env) history() (*storage.ConversationStore, error) {
	store, err := storage.Open(e.cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// Close releases everything setup created, newest first.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
