// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Timeouts are the named per-step bounds of a flow.
type Timeouts struct {
	Ready        time.Duration // launch accepted -> LOGIN_READY
	Challenge    time.Duration // human solves the challenge
	Submit       time.Duration // credentials + token accepted
	Confirmation time.Duration // client reports an authenticated session
	Flow         time.Duration // whole flow, launch included
}

// DefaultTimeouts returns the stock bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Ready:        45 * time.Second,
		Challenge:    5 * time.Minute,
		Submit:       30 * time.Second,
		Confirmation: 15 * time.Second,
		Flow:         10 * time.Minute,
	}
}

// Validate rejects non-positive bounds.
func (t Timeouts) Validate() error {
	for name, d := range map[string]time.Duration{
		"ready":        t.Ready,
		"challenge":    t.Challenge,
		"submit":       t.Submit,
		"confirmation": t.Confirmation,
		"flow":         t.Flow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s timeout must be > 0, got %v", name, d)
		}
	}
	return nil
}

// ReadinessSource selects how the AwaitingReady step observes LOGIN_READY.
type ReadinessSource string

const (
	// ReadinessPush watches the state store fed by push notifications.
	ReadinessPush ReadinessSource = "push"
	// ReadinessRPC asks the client to block until the state is reached.
	ReadinessRPC ReadinessSource = "rpc"
)

// AfterFunc schedules f after d and returns a stop func with time.Timer.Stop semantics.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeouts sets the initial step bounds.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) {
		o.timeouts = t
	}
}

// WithReadinessSource selects the readiness source.
func WithReadinessSource(src ReadinessSource) Option {
	return func(o *Orchestrator) {
		if src != "" {
			o.readiness = src
		}
	}
}

// WithAfterFunc replaces the timer factory.
func WithAfterFunc(f AfterFunc) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.afterFunc = f
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFlowIDs replaces the flow id generator.
func WithFlowIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newFlowID = next
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}
