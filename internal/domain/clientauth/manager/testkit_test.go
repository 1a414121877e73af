// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/guard"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/statestore"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/store"
)

// manualTimers is a deterministic AfterFunc. Timers only fire through Fire.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d    time.Duration
	f    func()
	done bool
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) func() bool {
	t := &manualTimer{d: d, f: f}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

// Fire runs the oldest pending timer with duration d.
func (m *manualTimers) Fire(d time.Duration) bool {
	m.mu.Lock()
	var target *manualTimer
	for _, t := range m.timers {
		if !t.done && t.d == d {
			target = t
			break
		}
	}
	if target == nil {
		m.mu.Unlock()
		return false
	}
	target.done = true
	m.mu.Unlock()
	target.f()
	return true
}

func (m *manualTimers) Pending(d time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		if !t.done && t.d == d {
			return true
		}
	}
	return false
}

// Active counts timers that were neither fired nor stopped.
func (m *manualTimers) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// fakeControl simulates the external client. Unset hooks behave like a healthy client:
// launching publishes LOGIN_READY on the store, the challenge yields "tok".
type fakeControl struct {
	store *statestore.Store

	launch    func(ctx context.Context) error
	waitState func(ctx context.Context, target model.ClientState, timeout time.Duration) error
	challenge func(ctx context.Context, timeout time.Duration) (model.ChallengeToken, error)
	submit    func(ctx context.Context, account model.AccountID, secret string, token model.ChallengeToken) error
	confirm   func(ctx context.Context, timeout time.Duration) error

	mu    sync.Mutex
	calls []string

	launches    atomic.Int32
	forceCloses atomic.Int32
}

func (f *fakeControl) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeControl) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeControl) QueryState(context.Context) (model.ClientState, error) {
	return f.store.Current(), nil
}

func (f *fakeControl) LaunchClient(ctx context.Context) error {
	f.record("launch")
	f.launches.Add(1)
	if f.launch != nil {
		return f.launch(ctx)
	}
	f.store.Set(model.ClientOpen)
	f.store.Set(model.ClientLoginReady)
	return nil
}

func (f *fakeControl) WaitUntilState(ctx context.Context, target model.ClientState, timeout time.Duration) error {
	f.record("wait_state:" + string(target))
	if f.waitState != nil {
		return f.waitState(ctx, target, timeout)
	}
	return nil
}

func (f *fakeControl) OpenChallenge(ctx context.Context, timeout time.Duration) (model.ChallengeToken, error) {
	f.record("challenge")
	if f.challenge != nil {
		return f.challenge(ctx, timeout)
	}
	f.store.Set(model.ClientCaptchaSolving)
	return "tok", nil
}

func (f *fakeControl) SubmitCredentials(ctx context.Context, account model.AccountID, secret string, token model.ChallengeToken) error {
	f.record(fmt.Sprintf("submit:%s:%s", account, token))
	if f.submit != nil {
		return f.submit(ctx, account, secret, token)
	}
	return nil
}

func (f *fakeControl) WaitUntilConfirmed(ctx context.Context, timeout time.Duration) error {
	f.record("confirm")
	if f.confirm != nil {
		return f.confirm(ctx, timeout)
	}
	f.store.Set(model.ClientLoggedIn)
	return nil
}

func (f *fakeControl) ForceClose(context.Context) error {
	f.record("force_close")
	f.forceCloses.Add(1)
	f.store.Set(model.ClientClosed)
	return nil
}

// blockUntilCancelled returns a hook that signals entry and blocks until ctx ends.
func blockUntilCancelled(entered chan<- struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		entered <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
}

type harness struct {
	o       *Orchestrator
	ctrl    *fakeControl
	store   *statestore.Store
	timers  *manualTimers
	leases  *guard.MemoryLeases
	guard   *guard.Guard
	records *store.MemoryStore
}

func newHarness(t *testing.T, configure func(*fakeControl), opts ...Option) *harness {
	t.Helper()
	st := statestore.New()
	ctrl := &fakeControl{store: st}
	if configure != nil {
		configure(ctrl)
	}
	leases := guard.NewMemoryLeases()
	g := guard.New(leases, guard.WithLogger(zerolog.Nop()))
	records := store.NewMemoryStore(0)
	timers := &manualTimers{}

	var seq atomic.Int32
	base := []Option{
		WithAfterFunc(timers.AfterFunc),
		WithLogger(zerolog.Nop()),
		WithFlowIDs(func() string { return fmt.Sprintf("flow-%d", seq.Add(1)) }),
	}
	o, err := New(Deps{Control: ctrl, State: st, Guard: g, Records: records}, append(base, opts...)...)
	require.NoError(t, err)

	return &harness{o: o, ctrl: ctrl, store: st, timers: timers, leases: leases, guard: g, records: records}
}

type result struct {
	session model.Session
	err     error
}

func (h *harness) authenticateAsync(ctx context.Context, id model.AccountID) <-chan result {
	out := make(chan result, 1)
	go func() {
		s, err := h.o.Authenticate(ctx, id, model.Credentials{Username: "user-" + string(id), Secret: "s3cret"})
		out <- result{session: s, err: err}
	}()
	return out
}

func (h *harness) authenticate(id model.AccountID) (model.Session, error) {
	return h.o.Authenticate(context.Background(), id, model.Credentials{Username: "user-" + string(id), Secret: "s3cret"})
}

func waitResult(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not terminate")
		return result{}
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("step was not entered")
	}
}

func (h *harness) waitPending(t *testing.T, d time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool { return h.timers.Pending(d) }, 5*time.Second, time.Millisecond, "timer %s never armed", d)
}

// requireFlowError asserts err is a *model.FlowError of kind.
func requireFlowError(t *testing.T, err error, kind model.ErrorKind) *model.FlowError {
	t.Helper()
	require.Error(t, err)
	fe, ok := model.AsFlowError(err)
	require.True(t, ok, "expected *model.FlowError, got %T: %v", err, err)
	require.Equal(t, kind, fe.Kind, "detail: %s", fe.Detail)
	require.True(t, errors.Is(err, model.KindSentinel(kind)))
	return fe
}

// assertClean checks the no-leak and no-lockout properties after a flow ended.
func (h *harness) assertClean(t *testing.T, id model.AccountID) {
	t.Helper()
	require.Equal(t, 0, h.store.ListenerCount(), "residual state listeners")
	require.Equal(t, 0, h.timers.Active(), "residual timers")
	require.Equal(t, 0, h.leases.Len(), "admission not released")
	active, err := h.guard.Active(context.Background(), id)
	require.NoError(t, err)
	require.False(t, active)
	require.Empty(t, h.o.ActiveFlows())
}
