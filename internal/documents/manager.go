// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
)

// DefaultCacheTTL is how long a document list is served from cache.
const DefaultCacheTTL = 30 * time.Second

// API is the subset of the backend client the Manager uses.
type API interface {
	ListDocuments(ctx context.Context) (*api.DocumentList, error)
	UploadDocument(ctx context.Context, name string, r io.Reader) (*api.UploadResponse, error)
	DeleteDocument(ctx context.Context, name string) (*api.DeleteResponse, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Manager.
type Option func(*Manager)

// WithRules replaces the upload rules.
func WithRules(r Rules) Option {
	return func(m *Manager) { m.rules = r }
}

// WithCacheTTL sets the list cache lifetime. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics counts upload attempts.
func WithMetrics(mt *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager wraps document operations with validation, a cached listing and a
// refresh counter that moves after every successful mutation.
type Manager struct {
	client  API
	rules   Rules
	ttl     time.Duration
	logger  *zap.Logger
	metrics *telemetry.Metrics

	cache   *cache.Cache
	refresh atomic.Uint64

	mu      sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

// NewManager creates a Manager with the default rules and cache TTL.
func NewManager(client API, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		rules:  DefaultRules(),
		ttl:    DefaultCacheTTL,
		logger: zap.NewNop(),
		subs:   make(map[int]chan uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl > 0 {
		m.cache = cache.New(m.ttl, 2*m.ttl)
	}
	return m
}

// Rules returns the upload rules in effect.
func (m *Manager) Rules() Rules {
	return m.rules
}

// RefreshCount is incremented after each successful upload or delete and on
// Refresh.
func (m *Manager) RefreshCount() uint64 {
	return m.refresh.Load()
}

// List returns the backend's documents. Results are cached until the TTL
// expires or the refresh counter moves.
func (m *Manager) List(ctx context.Context) ([]api.Document, error) {
	key := m.cacheKey()
	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			return append([]api.Document(nil), v.([]api.Document)...), nil
		}
	}

	list, err := m.client.ListDocuments(ctx)
	if err != nil {
		m.logger.Warn("DOCUMENT_LIST_FAILED", zap.Error(err))
		return nil, err
	}

	docs := append([]api.Document(nil), list.Documents...)
	if m.cache != nil && key == m.cacheKey() {
		m.cache.Set(key, docs, cache.DefaultExpiration)
	}
	return append([]api.Document(nil), docs...), nil
}

// Upload validates and uploads the file at path.
func (m *Manager) Upload(ctx context.Context, path string) (*api.UploadResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	if err := m.validate(name, info.Size()); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return m.upload(ctx, name, info.Size(), f)
}

// UploadReader validates and uploads size bytes read from r under name.
func (m *Manager) UploadReader(ctx context.Context, name string, size int64, r io.Reader) (*api.UploadResponse, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if err := m.validate(name, size); err != nil {
		return nil, err
	}
	return m.upload(ctx, name, size, r)
}

// Delete removes a document. The filename is NFC-normalised first so names
// typed on a decomposing terminal still match.
func (m *Manager) Delete(ctx context.Context, name string) (*api.DeleteResponse, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, &ValidationError{Filename: name, Reason: ErrEmptyName, Rules: m.rules}
	}

	resp, err := m.client.DeleteDocument(ctx, name)
	if err != nil {
		m.logger.Warn("DOCUMENT_DELETE_FAILED", zap.String("filename", name), zap.Error(err))
		return nil, err
	}
	m.logger.Info("DOCUMENT_DELETED", zap.String("filename", name))
	m.bump()
	return resp, nil
}

// Refresh invalidates the list cache, e.g. after a reload finished.
func (m *Manager) Refresh() {
	m.bump()
}

// Subscribe returns a channel that receives the latest refresh count after
// each change. Intermediate values may be coalesced. Call cancel to
// unsubscribe.
func (m *Manager) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// NormalizeName trims a filename and converts it to Unicode NFC.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func (m *Manager) validate(name string, size int64) error {
	if err := m.rules.Validate(name, size); err != nil {
		m.metrics.Upload("rejected")
		m.logger.Info("DOCUMENT_REJECTED", zap.String("filename", name), zap.Int64("size", size), zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) upload(ctx context.Context, name string, size int64, r io.Reader) (*api.UploadResponse, error) {
	start := time.Now()
	resp, err := m.client.UploadDocument(ctx, NormalizeName(name), r)
	if err != nil {
		m.metrics.Upload("failed")
		m.logger.Warn("DOCUMENT_UPLOAD_FAILED",
			zap.String("filename", name),
			zap.String("detail", api.Detail(err)),
			zap.Error(err))
		return nil, err
	}

	m.metrics.Upload("ok")
	m.logger.Info("DOCUMENT_UPLOADED",
		zap.String("filename", name),
		zap.Int64("size", size),
		zap.Duration("duration", time.Since(start)))
	m.bump()
	return resp, nil
}

func (m *Manager) cacheKey() string {
	return fmt.Sprintf("documents:%d", m.refresh.Load())
}

func (m *Manager) bump() {
	n := m.refresh.Add(1)
	if m.cache != nil {
		m.cache.Flush()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- n:
		default:
		}
	}
}

// IsValidation reports whether err is a client-side rejection.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
