// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
)

// ErrClosed is returned by Send once the Sender has been closed, and for a
// turn whose result arrived after Close.
var ErrClosed = errors.New("session: sender closed")

// ChatAPI is the backend call a Sender needs.
type ChatAPI interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Sender.
type Option func(*Sender)

// WithLogger sets the logger for turn outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts appended messages by role.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Sender) { s.metrics = m }
}

// WithUsage feeds answer metrics into a usage tracker.
func WithUsage(u *telemetry.UsageTracker) Option {
	return func(s *Sender) { s.usage = u }
}

// WithClock replaces time.Now, for deterministic thread ids in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// =============================================================================
// SENDER
// =============================================================================

// Sender runs chat turns against the backend and records them in a Store.
// Concurrent sends are allowed; their answers are appended in completion
// order.
type Sender struct {
	store    *Store
	client   ChatAPI
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	usage    *telemetry.UsageTracker
	now      func() time.Time
	threadID string

	loading    atomic.Int64
	seq        atomic.Uint64
	generation atomic.Uint64
	closed     atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// NewSender creates a Sender bound to store and client. The thread id is
// fixed for the Sender's lifetime.
func NewSender(store *Store, client ChatAPI, opts ...Option) *Sender {
	s := &Sender{
		store:  store,
		client: client,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.threadID = fmt.Sprintf("user_%d", s.now().UnixMilli())
	return s
}

// ThreadID returns the conversation id sent with every turn.
func (s *Sender) ThreadID() string { return s.threadID }

// Loading reports whether any turn is in flight.
func (s *Sender) Loading() bool { return s.loading.Load() > 0 }

// InFlight returns the number of turns awaiting an answer.
func (s *Sender) InFlight() int { return int(s.loading.Load()) }

// LastSeq returns the sequence number of the most recently started turn.
func (s *Sender) LastSeq() uint64 { return s.seq.Load() }

// LastError returns the error of the most recent failed turn, cleared when
// a new turn starts.
func (s *Sender) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Sender) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Send runs one chat turn. Whitespace-only text is ignored and returns
// (nil, nil). Otherwise the user message is appended immediately and exactly
// one assistant or error message follows when the backend answers. A failed
// turn returns the error as well as recording it in the store.
func (s *Sender) Send(ctx context.Context, text string) (*api.ChatResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	gen := s.generation.Load()
	seq := s.seq.Add(1)
	s.setLastError(nil)

	s.store.AddMessage(model.NewUserMessage(text))
	s.metrics.ChatMessage(string(model.RoleUser))

	s.loading.Add(1)
	defer s.loading.Add(-1)

	cfg := s.store.Config()
	req := api.ChatRequest{
		Message:   text,
		ThreadID:  s.threadID,
		UseRAG:    cfg.UseRAG,
		ModelName: cfg.ModelName,
		Mode:      cfg.Mode,
	}

	start := time.Now()
	resp, err := s.client.Chat(ctx, req)
	rtt := time.Since(start)
	if err == nil && resp == nil {
		err = &api.ClientError{Type: api.ErrTypeInvalidResponse, Message: "empty chat response"}
	}

	if s.generation.Load() != gen {
		s.logger.Info("CHAT_RESULT_DISCARDED", zap.Uint64("seq", seq), zap.Bool("failed", err != nil))
		return nil, ErrClosed
	}

	if err != nil {
		s.store.AddMessage(model.NewErrorMessage(api.Detail(err)))
		s.metrics.ChatMessage(string(model.RoleError))
		s.usage.RecordError()
		s.setLastError(err)
		s.logger.Warn("CHAT_FAILED",
			zap.Uint64("seq", seq),
			zap.String("thread_id", s.threadID),
			zap.Duration("rtt", rtt),
			zap.Error(err))
		return nil, err
	}

	s.store.AddMessage(model.NewAssistantMessage(resp.Response, resp.Sources, resp.Metrics, resp.Timestamp))
	s.metrics.ChatMessage(string(model.RoleAssistant))
	s.usage.RecordAnswer(resp.Metrics, rtt)
	s.logger.Info("CHAT_ANSWERED",
		zap.Uint64("seq", seq),
		zap.String("thread_id", s.threadID),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("rtt", rtt))
	return resp, nil
}

// Clear empties the store's messages and forgets the last error.
func (s *Sender) Clear() {
	s.store.ClearMessages()
	s.setLastError(nil)
}

// Close stops the Sender. Turns still in flight will not commit their
// results, and later Sends return ErrClosed.
func (s *Sender) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.generation.Add(1)
}
