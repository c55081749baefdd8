// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/telemetry"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// DefaultInterval is the status poll period.
const DefaultInterval = 3 * time.Second

var (
	// ErrAlreadyActive is returned by Start while a cycle is running.
	ErrAlreadyActive = errors.New("reload: a reload cycle is already active")
	// ErrStopped is returned by Start when Stop ran before the backend
	// accepted the reload. No polling is started.
	ErrStopped = errors.New("reload: stopped before polling began")
)

// =============================================================================
// STATE
// =============================================================================

// State is the poller's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateStarted
	StatePolling
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one finished reload cycle.
type Outcome struct {
	Success bool
	// Err is the backend's last_error when Success is false.
	Err    string
	Result map[string]any
}

// API is the subset of the backend client the poller uses.
type API interface {
	ReloadDocuments(ctx context.Context) (*api.ReloadStartResponse, error)
	ReloadStatus(ctx context.Context) (*model.ReloadStatus, error)
}

// =============================================================================
// CLOCK
// =============================================================================

// Ticker delivers poll ticks.
type Ticker = util.Ticker

// TickerFactory creates a Ticker for the given period.
type TickerFactory = util.TickerFactory

// cancelToken stops one polling cycle. Only the first Cancel wins.
type cancelToken struct {
	once   sync.Once
	fired  atomic.Bool
	cancel context.CancelFunc
}

// Cancel stops the cycle and reports whether this call was the first.
func (c *cancelToken) Cancel() bool {
	first := false
	c.once.Do(func() {
		first = true
		c.fired.Store(true)
		c.cancel()
	})
	return first
}

// =============================================================================
// POLLER
// =============================================================================

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the status poll period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTicker injects the tick source, for tests.
func WithTicker(f TickerFactory) Option {
	return func(p *Poller) {
		if f != nil {
			p.newTicker = f
		}
	}
}

// WithLogger sets the logger for transitions and transient failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics counts completed cycles.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// OnDone registers a callback invoked once per finished cycle, after the
// outcome is sent on Done and the poller is Idle again.
func OnDone(fn func(Outcome)) Option {
	return func(p *Poller) { p.onDone = fn }
}

// Poller drives reload cycles. It is safe for concurrent use.
type Poller struct {
	client    API
	interval  time.Duration
	newTicker TickerFactory
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	onDone    func(Outcome)

	mu       sync.Mutex
	state    State
	snapshot *model.ReloadStatus
	token    *cancelToken
	done     chan Outcome
}

// NewPoller creates an idle Poller.
func NewPoller(client API, opts ...Option) *Poller {
	p := &Poller{
		client:    client,
		interval:  DefaultInterval,
		newTicker: util.NewRealTicker,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current phase.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Active reports whether a cycle is running.
func (p *Poller) Active() bool {
	return p.State() != StateIdle
}

// Snapshot returns the most recent status, if any has been received.
func (p *Poller) Snapshot() (model.ReloadStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == nil {
		return model.ReloadStatus{}, false
	}
	return *p.snapshot, true
}

// Done returns the channel of the current or most recent cycle. It receives
// the Outcome once and is then closed; Stop closes it without a value. Before
// the first Start it is nil.
func (p *Poller) Done() <-chan Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Start begins a cycle. If the backend reports a reload already running,
// the poller joins it without issuing another start. Polling stops when ctx
// is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	token := &cancelToken{cancel: cancel}

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		cancel()
		return ErrAlreadyActive
	}
	p.state = StateStarted
	p.token = token
	p.done = nil
	p.mu.Unlock()

	resp, err := p.client.ReloadDocuments(pollCtx)

	p.mu.Lock()
	if p.token != token {
		p.mu.Unlock()
		token.Cancel()
		return ErrStopped
	}
	if err != nil {
		p.token = nil
		p.state = StateIdle
		p.mu.Unlock()
		token.Cancel()
		p.logger.Warn("RELOAD_START_FAILED", zap.Error(err))
		return err
	}
	done := make(chan Outcome, 1)
	p.state = StatePolling
	p.snapshot = nil
	p.done = done
	p.mu.Unlock()

	if resp.AlreadyRunning() {
		p.logger.Info("RELOAD_JOINED", zap.String("status", resp.Status))
	} else {
		p.logger.Info("RELOAD_STARTED", zap.String("status", resp.Status))
	}

	go p.poll(pollCtx, token, done)
	return nil
}

// Stop cancels the running cycle without reporting an outcome. Safe to call
// at any time and more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	token, done := p.token, p.done
	p.token = nil
	if token != nil {
		p.state = StateIdle
	}
	p.mu.Unlock()

	if token != nil && token.Cancel() {
		if done != nil {
			close(done)
		}
		p.logger.Info("RELOAD_STOPPED")
	}
}

func (p *Poller) poll(ctx context.Context, token *cancelToken, done chan Outcome) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.abandon(token, done)
			return
		case <-ticker.C():
		}

		status, err := p.client.ReloadStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.abandon(token, done)
				return
			}
			p.logger.Warn("RELOAD_STATUS_FAILED", zap.Error(err))
			continue
		}

		p.mu.Lock()
		if p.token == token {
			snap := *status
			p.snapshot = &snap
		}
		p.mu.Unlock()

		if !status.InProgress {
			p.complete(token, done, *status)
			return
		}
	}
}

// abandon handles a parent context cancelled outside Stop.
func (p *Poller) abandon(token *cancelToken, done chan Outcome) {
	if !token.Cancel() {
		return
	}
	p.mu.Lock()
	if p.token == token {
		p.token = nil
		p.state = StateIdle
	}
	p.mu.Unlock()
	close(done)
}

func (p *Poller) complete(token *cancelToken, done chan Outcome, status model.ReloadStatus) {
	if !token.Cancel() {
		return
	}

	out := Outcome{Success: !status.Failed(), Result: status.LastResult}
	if !out.Success {
		out.Err = status.ErrorMessage()
	}

	p.mu.Lock()
	if p.token == token {
		p.state = StateCompleted
	}
	p.mu.Unlock()

	done <- out
	close(done)

	p.mu.Lock()
	if p.token == token {
		p.token = nil
		p.state = StateIdle
	}
	p.mu.Unlock()

	p.metrics.ReloadFinished(out.Success)
	if out.Success {
		p.logger.Info("RELOAD_COMPLETE", zap.Any("result", out.Result))
	} else {
		p.logger.Warn("RELOAD_FAILED", zap.String("error", out.Err))
	}
	if p.onDone != nil {
		p.onDone(out)
	}
}
