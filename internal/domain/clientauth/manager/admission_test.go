// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/guard"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/statestore"
)

// gatedLeases holds TryAcquire open until the test lets it finish.
type gatedLeases struct {
	*guard.MemoryLeases
	acquiring chan struct{}
	proceed   chan struct{}
}

func (g *gatedLeases) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	g.acquiring <- struct{}{}
	<-g.proceed
	return g.MemoryLeases.TryAcquire(ctx, key, owner, ttl)
}

func TestCancel_NormalizesAccountID(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{}, 1)
	h := newHarness(t, func(c *fakeControl) {
		c.challenge = func(ctx context.Context, _ time.Duration) (model.ChallengeToken, error) {
			return "", blockUntilCancelled(entered)(ctx)
		}
	})

	done := h.authenticateAsync(context.Background(), "  acc ")
	waitSignal(t, entered)

	active := h.o.ActiveFlows()
	require.Len(t, active, 1)
	assert.Equal(t, model.AccountID("acc"), active[0].AccountID)

	held, err := h.guard.Active(context.Background(), "acc")
	require.NoError(t, err)
	assert.True(t, held)

	// The padded and the bare spelling name the same flow.
	_, err = h.authenticate("acc")
	requireFlowError(t, err, model.KindAlreadyInProgress)

	require.True(t, h.o.Cancel(" acc"))
	requireFlowError(t, waitResult(t, done).err, model.KindChallengeCancelled)
	h.assertClean(t, "acc")
}

func TestCancel_SeesFlowAsSoonAsItIsAdmitted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	leases := &gatedLeases{
		MemoryLeases: guard.NewMemoryLeases(),
		acquiring:    make(chan struct{}, 1),
		proceed:      make(chan struct{}),
	}
	st := statestore.New()
	ctrl := &fakeControl{store: st}
	timers := &manualTimers{}
	o, err := New(Deps{
		Control: ctrl,
		State:   st,
		Guard:   guard.New(leases, guard.WithLogger(zerolog.Nop())),
	}, WithAfterFunc(timers.AfterFunc), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.Authenticate(context.Background(), "acc", model.Credentials{Username: "u", Secret: "s"})
		done <- err
	}()

	waitSignal(t, leases.acquiring)
	cancelled := make(chan bool, 1)
	go func() { cancelled <- o.Cancel("acc") }()

	// Cancel must wait for admission to settle instead of reporting no flow.
	select {
	case <-cancelled:
		t.Fatal("Cancel returned before admission finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(leases.proceed)

	select {
	case ok := <-cancelled:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Cancel did not return")
	}

	select {
	case err := <-done:
		requireFlowError(t, err, model.KindCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not terminate")
	}
	assert.Equal(t, 0, leases.Len())
	assert.Empty(t, ctrl.Calls(), "a flow cancelled at admission never touches the client")
}

func TestStep_AbandonsCallThatIgnoresContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{}, 1)
	stuck := make(chan struct{})
	h := newHarness(t, func(c *fakeControl) {
		c.confirm = func(context.Context, time.Duration) error {
			entered <- struct{}{}
			<-stuck
			return nil
		}
	})

	done := h.authenticateAsync(context.Background(), "acc")
	waitSignal(t, entered)
	require.True(t, h.timers.Fire(defaults.Confirmation))

	r := waitResult(t, done)
	fe := requireFlowError(t, r.err, model.KindConfirmationTimeout)
	assert.Equal(t, model.PhaseAwaitingConfirmation, fe.Phase)
	h.assertClean(t, "acc")

	close(stuck)
}
