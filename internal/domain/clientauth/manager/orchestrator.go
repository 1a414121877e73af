// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package manager runs authentication flows against the external client.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/classify"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/guard"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/lifecycle"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/statestore"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/store"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
	"github.com/ManuGH/clientauth/internal/telemetry"
)

const (
	tracerName         = "clientauth.manager"
	recordWriteTimeout = 5 * time.Second
	outcomeSucceeded   = "SUCCEEDED"
)

// Cancellation causes attached to the flow context.
var (
	errFlowTimeout     = errors.New("flow deadline exceeded")
	errStepTimeout     = errors.New("step deadline exceeded")
	errCallerCancelled = errors.New("flow cancelled by caller")
)

// Deps are the collaborators an Orchestrator needs.
type Deps struct {
	Control ports.ClientControl
	State   statestore.Reader
	Guard   *guard.Guard
	Records store.FlowRecordStore // optional
}

// Orchestrator drives authentication flows. Each flow runs on its caller's goroutine.
type Orchestrator struct {
	control ports.ClientControl
	state   statestore.Reader
	guard   *guard.Guard
	records store.FlowRecordStore

	readiness ReadinessSource
	afterFunc AfterFunc
	now       func() time.Time
	newFlowID func() string
	logger    zerolog.Logger
	tracer    trace.Tracer

	mu       sync.Mutex
	timeouts Timeouts
	active   map[model.AccountID]*activeFlow
}

type activeFlow struct {
	flow   *lifecycle.Flow
	cancel context.CancelCauseFunc
}

// New validates deps and returns a ready orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Control == nil {
		return nil, errors.New("client control must be set")
	}
	if deps.State == nil {
		return nil, errors.New("state reader must be set")
	}
	if deps.Guard == nil {
		return nil, errors.New("flow guard must be set")
	}

	o := &Orchestrator{
		control:   deps.Control,
		state:     deps.State,
		guard:     deps.Guard,
		records:   deps.Records,
		readiness: ReadinessPush,
		afterFunc: realAfterFunc,
		now:       time.Now,
		newFlowID: uuid.NewString,
		logger:    log.WithComponent("orchestrator"),
		tracer:    telemetry.Tracer(tracerName),
		timeouts:  DefaultTimeouts(),
		active:    make(map[model.AccountID]*activeFlow),
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.timeouts.Validate(); err != nil {
		return nil, err
	}
	switch o.readiness {
	case ReadinessPush, ReadinessRPC:
	default:
		return nil, fmt.Errorf("unknown readiness source %q", o.readiness)
	}
	return o, nil
}

// Timeouts returns the bounds applied to new flows.
func (o *Orchestrator) Timeouts() Timeouts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timeouts
}

// SetTimeouts replaces the bounds for flows started afterwards. Running flows keep theirs.
func (o *Orchestrator) SetTimeouts(t Timeouts) error {
	if err := t.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.timeouts = t
	o.mu.Unlock()
	o.logger.Info().
		Str(log.FieldEvent, "orchestrator.timeouts_updated").
		Dur("ready", t.Ready).
		Dur("challenge", t.Challenge).
		Dur("submit", t.Submit).
		Dur("confirmation", t.Confirmation).
		Dur("flow", t.Flow).
		Msg("auth timeouts updated")
	return nil
}

// CurrentClientState returns the last known client state.
func (o *Orchestrator) CurrentClientState() model.ClientState {
	return o.state.Current()
}

// SubscribeToClientState registers l for every state write. The returned func unsubscribes.
func (o *Orchestrator) SubscribeToClientState(l statestore.Listener) func() {
	return o.state.OnChange(l)
}

// ForceClose kills the external client. It is the action behind the
// FORCE_CLOSE_AND_RETRY remediation and is never invoked automatically.
func (o *Orchestrator) ForceClose(ctx context.Context) error {
	if err := o.control.ForceClose(ctx); err != nil {
		return fmt.Errorf("force close client: %w", err)
	}
	o.logger.Warn().Str(log.FieldEvent, "orchestrator.force_close").Msg("external client force-closed")
	return nil
}

// Cancel aborts the live flow for id. It reports false if no flow is running.
// The flow terminates asynchronously on its own goroutine.
func (o *Orchestrator) Cancel(id model.AccountID) bool {
	o.mu.Lock()
	af, ok := o.active[id.Normalize()]
	o.mu.Unlock()
	if !ok {
		return false
	}
	af.cancel(errCallerCancelled)
	return true
}

// ActiveFlows returns snapshots of every running flow, oldest first.
func (o *Orchestrator) ActiveFlows() []model.FlowSnapshot {
	o.mu.Lock()
	out := make([]model.FlowSnapshot, 0, len(o.active))
	for _, af := range o.active {
		out = append(out, af.flow.Snapshot())
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Authenticate runs one flow for id and blocks until it is terminal.
// Every failure is a *model.FlowError; a second call for an account with a live
// flow fails with KindAlreadyInProgress without touching the client.
func (o *Orchestrator) Authenticate(ctx context.Context, id model.AccountID, creds model.Credentials) (model.Session, error) {
	id = id.Normalize()
	if id == "" {
		return model.Session{}, fmt.Errorf("%w: account id is required", model.ErrInvalidRequest)
	}

	timeouts := o.Timeouts()
	flow := lifecycle.NewFlow(o.newFlowID(), id, o.now)
	flowCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	admission, err := o.admit(ctx, id, flow, cancel)
	if err != nil {
		return model.Session{}, o.admissionError(id, err)
	}
	defer func() { _ = admission.Release() }()
	defer o.unregister(id, flow)

	stopDeadline := o.afterFunc(timeouts.Flow, func() { cancel(errFlowTimeout) })
	defer stopDeadline()

	metrics.IncFlowsActive()
	defer metrics.DecFlowsActive()

	flowCtx = log.ContextWithFlowID(flowCtx, flow.ID())
	flowCtx, span := o.tracer.Start(flowCtx, "clientauth.authenticate",
		trace.WithAttributes(telemetry.FlowAttributes(string(id), flow.ID())...))
	defer span.End()

	logger := o.logger.With().
		Str(log.FieldAccountID, string(id)).
		Str(log.FieldFlowID, flow.ID()).
		Logger()
	logger.Info().Str(log.FieldEvent, "flow.started").Msg("authentication flow started")

	session, runErr := o.run(flowCtx, flow, creds, timeouts, logger)
	o.finish(flowCtx, flow, span, runErr, logger)
	if runErr != nil {
		return model.Session{}, runErr
	}
	return session, nil
}

func (o *Orchestrator) admissionError(id model.AccountID, err error) error {
	kind := model.KindUnknown
	detail := "flow admission failed"
	if errors.Is(err, model.ErrAlreadyInProgress) {
		kind = model.KindAlreadyInProgress
		detail = "an authentication flow for this account is already running"
	}
	return &model.FlowError{
		Kind:        kind,
		Remediation: model.DefaultRemediation(kind),
		Phase:       model.PhaseIdle,
		AccountID:   id,
		Detail:      detail,
		Err:         err,
	}
}

// admit acquires the guard and registers the flow in one critical section, so
// Cancel never misses an admitted flow.
func (o *Orchestrator) admit(ctx context.Context, id model.AccountID, flow *lifecycle.Flow, cancel context.CancelCauseFunc) (*guard.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	admission, err := o.guard.TryAdmit(ctx, id)
	if err != nil {
		return nil, err
	}
	o.active[id] = &activeFlow{flow: flow, cancel: cancel}
	return admission, nil
}

func (o *Orchestrator) unregister(id model.AccountID, flow *lifecycle.Flow) {
	o.mu.Lock()
	if af, ok := o.active[id]; ok && af.flow == flow {
		delete(o.active, id)
	}
	o.mu.Unlock()
}

// run executes the step sequence. It returns a *model.FlowError on failure.
func (o *Orchestrator) run(ctx context.Context, flow *lifecycle.Flow, creds model.Credentials, t Timeouts, logger zerolog.Logger) (model.Session, error) {
	if err := flow.Advance(ctx, lifecycle.EvLaunchRequested); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}

	// Launch is bounded only by the flow deadline.
	if err := o.step(ctx, flow, ports.OpLaunch, 0, logger, o.control.LaunchClient); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}
	if err := flow.Advance(ctx, lifecycle.EvLaunched); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}

	if err := o.awaitReady(ctx, flow, t.Ready, logger); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}
	if err := flow.Advance(ctx, lifecycle.EvReady); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}

	var token model.ChallengeToken
	err := o.step(ctx, flow, ports.OpChallenge, t.Challenge, logger, func(stepCtx context.Context) error {
		var err error
		token, err = o.control.OpenChallenge(stepCtx, t.Challenge)
		return err
	})
	if err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}
	if err := flow.SolveChallenge(ctx, token); err != nil {
		return model.Session{}, o.fail(ctx, flow, &ports.RawFailure{
			Op:      ports.OpChallenge,
			Code:    ports.CodeUnrecognized,
			Message: "challenge step returned no token",
			Err:     err,
		})
	}

	err = o.step(ctx, flow, ports.OpSubmit, t.Submit, logger, func(stepCtx context.Context) error {
		return o.control.SubmitCredentials(stepCtx, flow.AccountID(), creds.Secret, token)
	})
	if err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}
	if err := flow.Advance(ctx, lifecycle.EvSubmitted); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}

	err = o.step(ctx, flow, ports.OpConfirm, t.Confirmation, logger, func(stepCtx context.Context) error {
		return o.control.WaitUntilConfirmed(stepCtx, t.Confirmation)
	})
	if err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}
	if err := flow.Advance(ctx, lifecycle.EvConfirmed); err != nil {
		return model.Session{}, o.fail(ctx, flow, err)
	}

	return model.Session{
		AccountID:     flow.AccountID(),
		FlowID:        flow.ID(),
		Username:      creds.Username,
		EstablishedAt: o.now(),
		Elapsed:       flow.Elapsed(),
	}, nil
}

// fail classifies err, drives the flow to FAILED and builds the caller-visible error.
func (o *Orchestrator) fail(ctx context.Context, flow *lifecycle.Flow, err error) error {
	c := classify.Classify(err)
	phase := flow.Phase()
	if ferr := flow.Fail(ctx, lifecycle.Failure{Kind: c.Kind, Remediation: c.Remediation, Detail: c.Detail}); ferr != nil {
		o.logger.Error().Err(ferr).
			Str(log.FieldFlowID, flow.ID()).
			Str(log.FieldPhase, string(phase)).
			Msg("failed to terminalize flow")
	}
	return &model.FlowError{
		Kind:        c.Kind,
		Remediation: c.Remediation,
		Phase:       phase,
		AccountID:   flow.AccountID(),
		FlowID:      flow.ID(),
		Detail:      c.Detail,
		Err:         err,
	}
}

func (o *Orchestrator) finish(ctx context.Context, flow *lifecycle.Flow, span trace.Span, runErr error, logger zerolog.Logger) {
	snap := flow.Snapshot()
	elapsed := flow.Elapsed()

	outcome := outcomeSucceeded
	if snap.Phase == model.PhaseFailed {
		outcome = string(snap.Kind)
	}
	metrics.RecordFlowOutcome(outcome, elapsed)

	span.SetAttributes(telemetry.OutcomeAttributes(string(snap.Phase), string(snap.Kind), string(snap.Remediation), elapsed.Milliseconds())...)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetAttributes(telemetry.ErrorAttributes(runErr, string(snap.Kind))...)
		span.SetStatus(codes.Error, string(snap.Kind))
		logger.Warn().
			Err(runErr).
			Str(log.FieldEvent, "flow.failed").
			Str(log.FieldKind, string(snap.Kind)).
			Str(log.FieldRemediation, string(snap.Remediation)).
			Int64(log.FieldElapsedMS, elapsed.Milliseconds()).
			Msg("authentication flow failed")
	} else {
		span.SetStatus(codes.Ok, "")
		logger.Info().
			Str(log.FieldEvent, "flow.succeeded").
			Int64(log.FieldElapsedMS, elapsed.Milliseconds()).
			Msg("authentication flow succeeded")
	}

	if o.records == nil {
		return
	}
	// The history write must not depend on a cancelled flow context, and its
	// failure never changes the outcome.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordWriteTimeout)
	defer cancel()
	if err := o.records.PutFlow(writeCtx, snap); err != nil {
		metrics.RecordFlowRecordError(fmt.Sprintf("%T", o.records))
		logger.Error().Err(err).Str(log.FieldEvent, "flow.record_failed").Msg("failed to record flow outcome")
	}
}

// step runs call bounded by timeout (0 = flow deadline only) and normalizes its failure.
// The call is raced against its context, so a client call that ignores
// cancellation is abandoned rather than holding the flow past its bound.
func (o *Orchestrator) step(ctx context.Context, flow *lifecycle.Flow, op ports.Operation, timeout time.Duration, logger zerolog.Logger, call func(context.Context) error) error {
	if ctx.Err() != nil {
		return interrupted(ctx, op, nil)
	}

	phase := flow.Phase()
	start := o.now()
	stepCtx, span := o.tracer.Start(ctx, "clientauth.step."+string(op),
		trace.WithAttributes(attribute.String(telemetry.FlowPhaseKey, string(phase))))
	defer span.End()

	stepCtx, cancel := context.WithCancelCause(stepCtx)
	defer cancel(nil)
	if timeout > 0 {
		stop := o.afterFunc(timeout, func() { cancel(errStepTimeout) })
		defer stop()
	}

	res := make(chan error, 1)
	go func() { res <- call(stepCtx) }()

	var err error
	select {
	case err = <-res:
	case <-stepCtx.Done():
		select {
		case err = <-res:
		default:
			err = context.Cause(stepCtx)
			logger.Debug().
				Str(log.FieldEvent, "flow.step_abandoned").
				Str(log.FieldOp, string(op)).
				Msg("client call still running after cancellation")
		}
	}
	metrics.ObserveStep(string(phase), o.now().Sub(start))
	if err == nil {
		logger.Debug().
			Str(log.FieldEvent, "flow.step_done").
			Str(log.FieldPhase, string(phase)).
			Str(log.FieldOp, string(op)).
			Msg("step completed")
		return nil
	}

	failure := o.normalize(ctx, stepCtx, op, err)
	span.RecordError(failure)
	span.SetStatus(codes.Error, string(op))
	return failure
}

// normalize turns a step error into a *ports.RawFailure carrying the step's operation.
// Timer and cancellation causes win over whatever the call itself returned.
func (o *Orchestrator) normalize(flowCtx, stepCtx context.Context, op ports.Operation, err error) error {
	if flowCtx.Err() != nil {
		return interrupted(flowCtx, op, err)
	}
	if errors.Is(context.Cause(stepCtx), errStepTimeout) {
		return &ports.RawFailure{Op: op, Code: ports.CodeTimedOut, Message: "step deadline exceeded", Err: err}
	}

	var raw *ports.RawFailure
	if errors.As(err, &raw) {
		if raw.Op == "" {
			cp := *raw
			cp.Op = op
			return &cp
		}
		return err
	}

	code := ports.CodeUnrecognized
	if errors.Is(err, ports.ErrTransportUnavailable) {
		code = ports.CodeTransport
	}
	return &ports.RawFailure{Op: op, Code: code, Err: err}
}

// interrupted describes a flow context that ended: the flow deadline counts as the
// step timing out, anything else as the caller cancelling.
func interrupted(flowCtx context.Context, op ports.Operation, err error) error {
	cause := context.Cause(flowCtx)
	if err == nil {
		err = cause
	}
	if errors.Is(cause, errFlowTimeout) {
		return &ports.RawFailure{Op: op, Code: ports.CodeTimedOut, Message: errFlowTimeout.Error(), Err: err}
	}
	return &ports.RawFailure{Op: op, Code: ports.CodeCancelled, Message: "flow cancelled", Err: err}
}
