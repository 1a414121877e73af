// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lifecycle models a single authentication attempt as a strict phase machine.
//
// Phases move forward one step at a time. FAILED is reachable from every
// non-terminal phase; SUCCEEDED and FAILED are final.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/fsm"
	"github.com/ManuGH/clientauth/internal/metrics"
)

// ErrMissingToken rejects advancing to SUBMITTING without a challenge solution.
var ErrMissingToken = errors.New("challenge token is required to submit")

// Failure is the terminal classification attached to a FAILED flow.
type Failure struct {
	Kind        model.ErrorKind
	Remediation model.Remediation
	Detail      string
}

type ctxKey int

const (
	keyToken ctxKey = iota
	keyFailure
)

// Flow is one authentication attempt. It is owned by the goroutine running it;
// other goroutines may only read snapshots.
type Flow struct {
	id        string
	account   model.AccountID
	startedAt time.Time
	now       func() time.Time

	machine *fsm.Machine[model.FlowPhase, EventKind]

	mu      sync.Mutex
	token   model.ChallengeToken
	failure Failure
	endedAt time.Time
	history []model.FlowPhase
}

// NewFlow creates a flow in IDLE. now may be nil.
func NewFlow(id string, account model.AccountID, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	f := &Flow{
		id:        id,
		account:   account,
		now:       now,
		startedAt: now(),
		history:   []model.FlowPhase{model.PhaseIdle},
	}
	m, err := fsm.New(model.PhaseIdle, transitions(f), f.observe)
	if err != nil {
		panic(fmt.Sprintf("lifecycle: invalid transition table: %v", err))
	}
	f.machine = m
	return f
}

func (f *Flow) observe(from, to model.FlowPhase, _ EventKind) {
	f.mu.Lock()
	f.history = append(f.history, to)
	if to.IsTerminal() {
		f.endedAt = f.now()
	}
	f.mu.Unlock()
	metrics.RecordTransition(string(from), string(to))
}

func (f *Flow) ID() string                 { return f.id }
func (f *Flow) AccountID() model.AccountID { return f.account }
func (f *Flow) StartedAt() time.Time       { return f.startedAt }
func (f *Flow) Phase() model.FlowPhase     { return f.machine.State() }

// Advance applies a forward event. Use SolveChallenge for EvChallengeSolved and Fail for failures.
func (f *Flow) Advance(ctx context.Context, ev EventKind) error {
	if ev == EvFail {
		return fmt.Errorf("advance %s: use Fail for failures: %w", f.id, fsm.ErrInvalidTransition)
	}
	_, err := f.machine.Fire(ctx, ev)
	return err
}

// SolveChallenge records the solution token and moves the flow to SUBMITTING.
func (f *Flow) SolveChallenge(ctx context.Context, token model.ChallengeToken) error {
	_, err := f.machine.Fire(context.WithValue(ctx, keyToken, token), EvChallengeSolved)
	return err
}

// Fail moves a non-terminal flow to FAILED with the given classification.
// Failing a terminal flow returns an error wrapping fsm.ErrInvalidTransition.
func (f *Flow) Fail(ctx context.Context, failure Failure) error {
	if failure.Kind == "" {
		failure.Kind = model.KindUnknown
	}
	if failure.Remediation == "" {
		failure.Remediation = model.DefaultRemediation(failure.Kind)
	}
	_, err := f.machine.Fire(context.WithValue(ctx, keyFailure, failure), EvFail)
	return err
}

func (f *Flow) requireToken(ctx context.Context, _ model.FlowPhase, _ EventKind) error {
	token, _ := ctx.Value(keyToken).(model.ChallengeToken)
	if token == "" {
		return ErrMissingToken
	}
	return nil
}

func (f *Flow) commitToken(ctx context.Context, _, _ model.FlowPhase, _ EventKind) error {
	token, _ := ctx.Value(keyToken).(model.ChallengeToken)
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
	return nil
}

func (f *Flow) commitFailure(ctx context.Context, _, _ model.FlowPhase, _ EventKind) error {
	failure, _ := ctx.Value(keyFailure).(Failure)
	f.mu.Lock()
	f.failure = failure
	f.mu.Unlock()
	return nil
}

// ChallengeToken returns the solution token once the flow has reached SUBMITTING.
func (f *Flow) ChallengeToken() (model.ChallengeToken, bool) {
	phase := f.Phase()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", false
	}
	if rank, ok := phaseRank[phase]; ok && rank < phaseRank[model.PhaseSubmitting] {
		return "", false
	}
	return f.token, true
}

// Failure returns the terminal classification; ok is false unless the flow FAILED.
func (f *Flow) Failure() (Failure, bool) {
	if f.Phase() != model.PhaseFailed {
		return Failure{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failure, true
}

// History returns every phase the flow has been in, in order.
func (f *Flow) History() []model.FlowPhase {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.FlowPhase, len(f.history))
	copy(out, f.history)
	return out
}

// Elapsed returns the time since the flow started, or its total duration once terminal.
func (f *Flow) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.endedAt.IsZero() {
		return f.endedAt.Sub(f.startedAt)
	}
	return f.now().Sub(f.startedAt)
}

// Snapshot returns a read-only view. The challenge token is never included.
func (f *Flow) Snapshot() model.FlowSnapshot {
	phase := f.Phase()
	f.mu.Lock()
	defer f.mu.Unlock()
	s := model.FlowSnapshot{
		FlowID:    f.id,
		AccountID: f.account,
		Phase:     phase,
		StartedAt: f.startedAt,
		EndedAt:   f.endedAt,
	}
	if phase == model.PhaseFailed {
		s.Kind = f.failure.Kind
		s.Remediation = f.failure.Remediation
		s.Detail = f.failure.Detail
	}
	return s
}
