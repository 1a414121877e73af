// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/fsm"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func driveToSubmitting(t *testing.T, f *Flow) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.Advance(ctx, EvLaunchRequested))
	require.NoError(t, f.Advance(ctx, EvLaunched))
	require.NoError(t, f.Advance(ctx, EvReady))
	require.NoError(t, f.SolveChallenge(ctx, "tok-1"))
}

func TestHappyPathTrace(t *testing.T) {
	f := NewFlow("flow-1", "acc-1", fixedClock())
	ctx := context.Background()

	driveToSubmitting(t, f)
	require.NoError(t, f.Advance(ctx, EvSubmitted))
	require.NoError(t, f.Advance(ctx, EvConfirmed))

	want := []model.FlowPhase{
		model.PhaseIdle,
		model.PhaseLaunching,
		model.PhaseAwaitingReady,
		model.PhaseAwaitingChallenge,
		model.PhaseSubmitting,
		model.PhaseAwaitingConfirmation,
		model.PhaseSucceeded,
	}
	if diff := cmp.Diff(want, f.History()); diff != "" {
		t.Fatalf("transition trace mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, f.Phase().IsTerminal())
	_, failed := f.Failure()
	assert.False(t, failed)
	assert.Greater(t, f.Elapsed(), time.Duration(0))
}

func TestPhasesOnlyMoveForward(t *testing.T) {
	f := NewFlow("flow-1", "acc-1", nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.Advance(ctx, EvReady), fsm.ErrInvalidTransition, "cannot skip LAUNCHING")
	require.NoError(t, f.Advance(ctx, EvLaunchRequested))
	assert.ErrorIs(t, f.Advance(ctx, EvLaunchRequested), fsm.ErrInvalidTransition, "cannot repeat a step")
	assert.ErrorIs(t, f.Advance(ctx, EvFail), fsm.ErrInvalidTransition, "Advance must not be used to fail")
	assert.Equal(t, model.PhaseLaunching, f.Phase())
}

func TestFailReachableFromEveryNonTerminalPhase(t *testing.T) {
	steps := []func(*Flow) error{
		func(f *Flow) error { return f.Advance(context.Background(), EvLaunchRequested) },
		func(f *Flow) error { return f.Advance(context.Background(), EvLaunched) },
		func(f *Flow) error { return f.Advance(context.Background(), EvReady) },
		func(f *Flow) error { return f.SolveChallenge(context.Background(), "tok") },
		func(f *Flow) error { return f.Advance(context.Background(), EvSubmitted) },
	}
	for depth := 0; depth <= len(steps); depth++ {
		f := NewFlow("flow", "acc", nil)
		for _, step := range steps[:depth] {
			require.NoError(t, step(f))
		}
		from := f.Phase()
		require.NoError(t, f.Fail(context.Background(), Failure{Kind: model.KindReadyTimeout, Detail: "late"}), "from %s", from)

		failure, ok := f.Failure()
		require.True(t, ok)
		assert.Equal(t, model.KindReadyTimeout, failure.Kind)
		assert.Equal(t, model.RemediationForceCloseAndRetry, failure.Remediation)

		snap := f.Snapshot()
		assert.Equal(t, model.PhaseFailed, snap.Phase)
		assert.Equal(t, model.KindReadyTimeout, snap.Kind)
		assert.False(t, snap.EndedAt.IsZero())
	}
}

func TestTerminalPhasesAreFinal(t *testing.T) {
	ctx := context.Background()
	f := NewFlow("flow", "acc", nil)
	require.NoError(t, f.Fail(ctx, Failure{Kind: model.KindLaunchFailed}))
	assert.ErrorIs(t, f.Fail(ctx, Failure{Kind: model.KindUnknown}), fsm.ErrInvalidTransition)
	assert.ErrorIs(t, f.Advance(ctx, EvLaunchRequested), fsm.ErrInvalidTransition)

	failure, _ := f.Failure()
	assert.Equal(t, model.KindLaunchFailed, failure.Kind, "first failure wins")
}

func TestFailDefaultsToUnknown(t *testing.T) {
	f := NewFlow("flow", "acc", nil)
	require.NoError(t, f.Fail(context.Background(), Failure{}))
	failure, _ := f.Failure()
	assert.Equal(t, model.KindUnknown, failure.Kind)
	assert.Equal(t, model.RemediationRetryOnce, failure.Remediation)
}

func TestChallengeTokenOnlyFromSubmitting(t *testing.T) {
	ctx := context.Background()
	f := NewFlow("flow", "acc", nil)
	require.NoError(t, f.Advance(ctx, EvLaunchRequested))
	require.NoError(t, f.Advance(ctx, EvLaunched))
	require.NoError(t, f.Advance(ctx, EvReady))

	_, ok := f.ChallengeToken()
	assert.False(t, ok)

	assert.ErrorIs(t, f.SolveChallenge(ctx, ""), ErrMissingToken)
	assert.Equal(t, model.PhaseAwaitingChallenge, f.Phase())

	require.NoError(t, f.SolveChallenge(ctx, "tok-9"))
	tok, ok := f.ChallengeToken()
	require.True(t, ok)
	assert.Equal(t, model.ChallengeToken("tok-9"), tok)
}

func TestSnapshotOmitsFailureUntilFailed(t *testing.T) {
	f := NewFlow("flow-7", "acc-7", nil)
	driveToSubmitting(t, f)

	snap := f.Snapshot()
	want := model.FlowSnapshot{
		FlowID:    "flow-7",
		AccountID: "acc-7",
		Phase:     model.PhaseSubmitting,
		StartedAt: f.StartedAt(),
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestAllowedMatchesTable(t *testing.T) {
	assert.True(t, Allowed(model.PhaseIdle, EvLaunchRequested))
	assert.False(t, Allowed(model.PhaseIdle, EvReady))
	assert.True(t, Allowed(model.PhaseAwaitingConfirmation, EvFail))
	assert.False(t, Allowed(model.PhaseSucceeded, EvFail))
	assert.False(t, Allowed(model.PhaseFailed, EvFail))

	for _, p := range nonTerminal {
		assert.True(t, Allowed(p, EvFail), "phase %s", p)
	}
}
