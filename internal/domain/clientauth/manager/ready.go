// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/lifecycle"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
)

func (o *Orchestrator) awaitReady(ctx context.Context, flow *lifecycle.Flow, timeout time.Duration, logger zerolog.Logger) error {
	if o.readiness == ReadinessRPC {
		return o.step(ctx, flow, ports.OpAwaitReady, timeout, logger, func(stepCtx context.Context) error {
			return o.control.WaitUntilState(stepCtx, model.ClientLoginReady, timeout)
		})
	}

	start := o.now()
	err := o.waitForState(ctx, model.ClientLoginReady, timeout)
	metrics.ObserveStep(string(model.PhaseAwaitingReady), o.now().Sub(start))
	if err == nil {
		logger.Debug().
			Str(log.FieldEvent, "flow.step_done").
			Str(log.FieldPhase, string(model.PhaseAwaitingReady)).
			Msg("client is login-ready")
	}
	return err
}

// waitForState races the state store reaching target against a timer.
//
// The listener is registered before the current value is read so a write between
// the two cannot be missed. When the timer fires, the signal is checked once more:
// reaching target before the bound always wins over the timeout.
func (o *Orchestrator) waitForState(ctx context.Context, target model.ClientState, timeout time.Duration) error {
	if ctx.Err() != nil {
		return interrupted(ctx, ports.OpAwaitReady, nil)
	}

	reached := make(chan struct{})
	var once sync.Once
	unsubscribe := o.state.OnChange(func(s model.ClientState) {
		if s == target {
			once.Do(func() { close(reached) })
		}
	})
	defer unsubscribe()

	if o.state.Current() == target {
		return nil
	}

	fired := make(chan struct{})
	stop := o.afterFunc(timeout, func() { close(fired) })
	defer stop()

	select {
	case <-reached:
		return nil
	case <-fired:
		select {
		case <-reached:
			return nil
		default:
		}
		if o.state.Current() == target {
			return nil
		}
		return &ports.RawFailure{
			Op:      ports.OpAwaitReady,
			Code:    ports.CodeTimedOut,
			Message: fmt.Sprintf("client state %s did not reach %s within %s", o.state.Current(), target, timeout),
		}
	case <-ctx.Done():
		return interrupted(ctx, ports.OpAwaitReady, nil)
	}
}
