// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
)

// MaxResponseSize caps how much of a response body is read.
const MaxResponseSize = 10 * 1024 * 1024

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend root (default: http://localhost:8000).
	BaseURL string

	// Timeout per request (default: 60s).
	Timeout time.Duration

	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size (default: 5).
	RateBurst int

	// Tokens supplies the bearer token. Nil means no authentication.
	Tokens TokenStore

	// Metrics records request counts and latency. May be nil.
	Metrics *telemetry.Metrics

	// Logger receives request failures. Nil discards them.
	Logger *zap.Logger

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   "http://localhost:8000",
		Timeout:   60 * time.Second,
		RateLimit: 10,
		RateBurst: 5,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the RAG backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     TokenStore
	metrics    *telemetry.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	defaults := DefaultConfig()

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaults.RateBurst
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		tokens:     cfg.Tokens,
		metrics:    cfg.Metrics,
		logger:     logger,
		tracer:     telemetry.Tracer(),
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the configured token store, which may be nil.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges credentials for an access token. The token is not stored;
// callers decide where it lives.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "login response has no access_token"}
	}
	return &out, nil
}

// Me returns the account the current token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, "me", http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends one chat turn and waits for the full answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.doJSON(ctx, "chat", http.MethodPost, "/api/chat/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// SYSTEM
// =============================================================================

// Health returns the backend health report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, "health", http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns usage statistics.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	var out StatsResponse
	if err := c.doJSON(ctx, "stats", http.MethodGet, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Info returns the backend's free-form API description.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.doJSON(ctx, "info", http.MethodGet, "/api/info", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MetricsReport returns the aggregated interaction report.
func (c *Client) MetricsReport(ctx context.Context) (*MetricsReport, error) {
	var out MetricsReport
	if err := c.doJSON(ctx, "metrics_report", http.MethodGet, "/api/metrics/report", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// ListDocuments enumerates the stored documents.
func (c *Client) ListDocuments(ctx context.Context) (*DocumentList, error) {
	var out DocumentList
	if err := c.doJSON(ctx, "documents_list", http.MethodGet, "/api/documents/list", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument streams r as the multipart field "file" named name.
func (c *Client) UploadDocument(ctx context.Context, name string, r io.Reader) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(name))
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var out UploadResponse
	err := c.do(ctx, "documents_upload", http.MethodPost, "/api/documents/upload", pr, mw.FormDataContentType(), &out)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDocument removes a document by filename.
func (c *Client) DeleteDocument(ctx context.Context, name string) (*DeleteResponse, error) {
	var out DeleteResponse
	path := "/api/documents/" + url.PathEscape(name)
	if err := c.doJSON(ctx, "documents_delete", http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReloadDocuments asks the backend to start reindexing.
func (c *Client) ReloadDocuments(ctx context.Context) (*ReloadStartResponse, error) {
	var out ReloadStartResponse
	if err := c.doJSON(ctx, "documents_reload", http.MethodPost, "/api/documents/reload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReloadStatus returns the current reindex snapshot.
func (c *Client) ReloadStatus(ctx context.Context) (*model.ReloadStatus, error) {
	var out model.ReloadStatus
	if err := c.doJSON(ctx, "documents_reload_status", http.MethodGet, "/api/documents/reload/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, endpoint, method, path, body, contentType, out)
}

// do performs one request. It applies the limiter, token and tracing, maps
// failures onto ClientError and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader, contentType string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "api."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	start := time.Now()
	status := 0
	defer func() {
		c.metrics.ObserveRequest(endpoint, status, time.Since(start))
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Detail(err))
			c.logger.Debug("API_REQUEST_FAILED",
				zap.String("endpoint", endpoint),
				zap.Int("status", status),
				zap.Error(err))
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(ctx, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return transportError(ctx, err)
	}
	if len(data) > MaxResponseSize {
		return &ClientError{Type: ErrTypeInvalidResponse, StatusCode: status, Message: "response exceeds size limit"}
	}

	if status == http.StatusUnauthorized {
		if c.tokens != nil {
			if clearErr := c.tokens.Clear(); clearErr != nil {
				c.logger.Warn("TOKEN_CLEAR_FAILED", zap.Error(clearErr))
			}
		}
		return &ClientError{Type: ErrTypeUnauthorized, StatusCode: status, Message: "not authorized", Detail: parseDetail(data)}
	}

	if status < 200 || status >= 300 {
		errType := ErrTypeValidation
		if status >= 500 {
			errType = ErrTypeServer
		}
		return &ClientError{
			Type:       errType,
			StatusCode: status,
			Message:    fmt.Sprintf("request failed with status code %d", status),
			Detail:     parseDetail(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, StatusCode: status, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "cannot reach backend", Cause: err}
}
