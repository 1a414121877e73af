// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clientauth/internal/metrics"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var (
	errTech   = errors.New("connection refused")
	errDomain = errors.New("rejected")
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-trip", 3, 30*time.Second, WithClock(clock))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errTech }), errTech)
	}
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(func() error { return errTech }), errTech)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CircuitBreakerTripsTotal.WithLabelValues("test-trip", "threshold_exceeded")))
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test-reset", 2, time.Minute)

	_ = cb.Execute(func() error { return errTech })
	require.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errTech })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_PredicateExcludesDomainErrors(t *testing.T) {
	cb := NewCircuitBreaker("test-pred", 1, time.Minute,
		WithFailurePredicate(func(err error) bool { return !errors.Is(err, errDomain) }))

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errDomain }), errDomain)
	}
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(func() error { return errTech })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenBehavior(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-half", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(func() error { return errTech })
	require.Equal(t, StateOpen, cb.State())

	// Failed probe re-opens.
	clock.now = clock.now.Add(11 * time.Second)
	assert.ErrorIs(t, cb.Execute(func() error { return errTech }), errTech)
	assert.Equal(t, StateOpen, cb.State())

	// Only one probe runs while half-open.
	clock.now = clock.now.Add(11 * time.Second)
	release := make(chan struct{})
	probeDone := make(chan error, 1)
	entered := make(chan struct{})
	go func() {
		probeDone <- cb.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	close(release)
	require.NoError(t, <-probeDone)
	assert.Equal(t, StateClosed, cb.State())
}
