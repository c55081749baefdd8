// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/ragdesk-tui/internal/api"
	"github.com/jeranaias/ragdesk-tui/internal/api/apitest"
	"github.com/jeranaias/ragdesk-tui/internal/model"
)

// fakeTicker is driven by tick().
type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	periods []time.Duration
}

func (c *fakeClock) factory(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	c.periods = append(c.periods, d)
	return t
}

// nth waits for the n-th ticker (1-based) to be created.
func (c *fakeClock) nth(t *testing.T, n int) *fakeTicker {
	t.Helper()
	var tk *fakeTicker
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.tickers) < n {
			return false
		}
		tk = c.tickers[n-1]
		return true
	}, 2*time.Second, time.Millisecond)
	return tk
}

// tick delivers one tick, returning false once the poller stopped listening.
func (f *fakeTicker) tick() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

// scripted answers ReloadStatus from a fixed list.
type scripted struct {
	mu       sync.Mutex
	start    string
	startErr error
	statuses []statusOrErr
	starts   int
	polls    int
}

type statusOrErr struct {
	status *model.ReloadStatus
	err    error
}

func st(inProgress bool, lastErr string) statusOrErr {
	s := &model.ReloadStatus{InProgress: inProgress}
	if lastErr != "" {
		s.LastError = &lastErr
	}
	return statusOrErr{status: s}
}

func (s *scripted) ReloadDocuments(ctx context.Context) (*api.ReloadStartResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &api.ReloadStartResponse{Status: s.start}, nil
}

func (s *scripted) ReloadStatus(ctx context.Context) (*model.ReloadStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.polls
	s.polls++
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return s.statuses[i].status, s.statuses[i].err
}

func (s *scripted) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.polls
}

func newTestPoller(t *testing.T, client API, opts ...Option) (*Poller, *fakeClock) {
	clock := &fakeClock{}
	opts = append([]Option{WithTicker(clock.factory), WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewPoller(client, opts...), clock
}

func waitOutcome(t *testing.T, p *Poller) (Outcome, bool) {
	t.Helper()
	select {
	case out, ok := <-p.Done():
		return out, ok
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
		return Outcome{}, false
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestPoller_SuccessAfterThirdStatus(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(true, ""), st(true, ""), st(false, "")}}
	var callbacks atomic.Int32
	p, clock := newTestPoller(t, client, OnDone(func(Outcome) { callbacks.Add(1) }))

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, StatePolling, p.State())

	tk := clock.nth(t, 1)
	require.True(t, tk.tick())
	require.True(t, tk.tick())
	require.True(t, tk.tick())

	out, ok := waitOutcome(t, p)
	require.True(t, ok)
	assert.True(t, out.Success)
	assert.Empty(t, out.Err)

	assert.False(t, tk.tick(), "poller must stop after the terminal status")
	_, polls := client.counts()
	assert.Equal(t, 3, polls)

	_, open := <-p.Done()
	assert.False(t, open, "outcome delivered exactly once")
	require.Eventually(t, func() bool { return callbacks.Load() == 1 && p.State() == StateIdle }, 2*time.Second, time.Millisecond)
	assert.True(t, tk.stopped.Load())
	assert.Equal(t, []time.Duration{DefaultInterval}, clock.periods)
}

func TestPoller_FailureReportsLastError(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(false, "disk full")}}
	p, clock := newTestPoller(t, client)

	require.NoError(t, p.Start(context.Background()))
	require.True(t, clock.nth(t, 1).tick())

	out, ok := waitOutcome(t, p)
	require.True(t, ok)
	assert.False(t, out.Success)
	assert.Equal(t, "disk full", out.Err)

	starts, polls := client.counts()
	assert.Equal(t, 1, starts, "no retry")
	assert.Equal(t, 1, polls)

	snap, ok := p.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "disk full", snap.ErrorMessage())
}

func TestPoller_EmptyLastErrorIsSuccess(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(false, "")}}
	empty := ""
	client.statuses[0].status.LastError = &empty
	p, clock := newTestPoller(t, client)

	require.NoError(t, p.Start(context.Background()))
	require.True(t, clock.nth(t, 1).tick())
	out, _ := waitOutcome(t, p)
	assert.True(t, out.Success)
}

func TestPoller_TransientErrorsKeepPolling(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{
		{err: errors.New("connection reset")},
		st(true, ""),
		{err: errors.New("timeout")},
		st(false, ""),
	}}
	p, clock := newTestPoller(t, client)

	require.NoError(t, p.Start(context.Background()))
	tk := clock.nth(t, 1)
	for i := 0; i < 4; i++ {
		require.True(t, tk.tick())
	}
	out, ok := waitOutcome(t, p)
	require.True(t, ok)
	assert.True(t, out.Success)
}

func TestPoller_AlreadyRunningJoinsWithoutSecondStart(t *testing.T) {
	client := &scripted{start: api.ReloadAlreadyRunning, statuses: []statusOrErr{st(false, "")}}
	p, clock := newTestPoller(t, client)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, StatePolling, p.State())
	require.True(t, clock.nth(t, 1).tick())
	_, _ = waitOutcome(t, p)

	starts, _ := client.counts()
	assert.Equal(t, 1, starts)
}

func TestPoller_StartWhileActive(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(true, "")}}
	p, _ := newTestPoller(t, client)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyActive)

	starts, _ := client.counts()
	assert.Equal(t, 1, starts)
}

func TestPoller_StartFailureReturnsToIdle(t *testing.T) {
	client := &scripted{startErr: errors.New("forbidden")}
	p, _ := newTestPoller(t, client)

	require.Error(t, p.Start(context.Background()))
	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.Done())
}

func TestPoller_StopWithoutOutcome(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(true, "")}}
	var callbacks atomic.Int32
	p, clock := newTestPoller(t, client, OnDone(func(Outcome) { callbacks.Add(1) }))

	require.NoError(t, p.Start(context.Background()))
	tk := clock.nth(t, 1)
	require.True(t, tk.tick())

	p.Stop()
	p.Stop()

	_, ok := waitOutcome(t, p)
	assert.False(t, ok, "stop closes Done without a value")
	assert.Equal(t, StateIdle, p.State())
	assert.False(t, tk.tick())
	assert.Zero(t, callbacks.Load())

	require.NoError(t, p.Start(context.Background()), "ready for a new cycle")
	p.Stop()
}

// gatedStart blocks ReloadDocuments until release is closed.
type gatedStart struct {
	scripted
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStart) ReloadDocuments(ctx context.Context) (*api.ReloadStartResponse, error) {
	close(g.entered)
	<-g.release
	return g.scripted.ReloadDocuments(ctx)
}

func TestPoller_StopDuringStartRequestPreventsPolling(t *testing.T) {
	client := &gatedStart{
		scripted: scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(true, "")}},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	p, clock := newTestPoller(t, client)

	errc := make(chan error, 1)
	go func() { errc <- p.Start(context.Background()) }()
	<-client.entered
	assert.Equal(t, StateStarted, p.State())

	p.Stop()
	assert.Equal(t, StateIdle, p.State())
	close(client.release)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.Done())

	clock.mu.Lock()
	tickers := len(clock.tickers)
	clock.mu.Unlock()
	assert.Zero(t, tickers, "no polling ticker after Stop")
	_, polls := client.counts()
	assert.Zero(t, polls)
}

func TestPoller_ParentContextCancel(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(true, "")}}
	p, clock := newTestPoller(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	clock.nth(t, 1)
	cancel()

	_, ok := waitOutcome(t, p)
	assert.False(t, ok)
	require.Eventually(t, func() bool { return p.State() == StateIdle }, 2*time.Second, time.Millisecond)
}

func TestPoller_NewCycleAfterCompletion(t *testing.T) {
	client := &scripted{start: api.ReloadStarted, statuses: []statusOrErr{st(false, "")}}
	p, clock := newTestPoller(t, client)

	for i := 1; i <= 2; i++ {
		require.Eventually(t, func() bool { return p.State() == StateIdle }, 2*time.Second, time.Millisecond)
		require.NoError(t, p.Start(context.Background()))
		require.True(t, clock.nth(t, i).tick())
		out, ok := waitOutcome(t, p)
		require.True(t, ok)
		assert.True(t, out.Success)
	}
	starts, _ := client.counts()
	assert.Equal(t, 2, starts)
}

func TestPoller_AgainstFakeBackend(t *testing.T) {
	backend := apitest.NewServer(t)
	backend.QueueReloadStatus(true, "", true, "", false, "")
	client := api.NewClientWithConfig(&api.ClientConfig{
		BaseURL: backend.URL(),
		Tokens:  api.NewMemoryTokenStore(apitest.Token),
	})
	p := NewPoller(client, WithInterval(5*time.Millisecond), WithLogger(zaptest.NewLogger(t)))

	require.NoError(t, p.Start(context.Background()))
	out, ok := waitOutcome(t, p)
	require.True(t, ok)
	assert.True(t, out.Success)
	assert.Equal(t, float64(2), out.Result["documents"])
	assert.Equal(t, 3, backend.Calls("status"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "polling", StatePolling.String())
	assert.Equal(t, "unknown", State(42).String())
}
