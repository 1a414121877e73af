// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
)

// WithReconnectBackoff sets the bounds of the supervisor's doubling resubscribe delay.
func WithReconnectBackoff(minDelay, maxDelay time.Duration) Option {
	return func(b *Bridge) {
		if minDelay > 0 {
			b.minBackoff = minDelay
		}
		if maxDelay >= b.minBackoff {
			b.maxBackoff = maxDelay
		}
	}
}

// Supervisor keeps a push subscription alive for the lifetime of the process.
// The client drops its channel whenever it exits, so a lost or never-established
// subscription is retried with backoff instead of failing the owner.
type Supervisor struct {
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
	connected atomic.Bool
}

// Connected reports whether a subscription is currently live.
func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

// Done is closed once the supervisor loop has exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Stop ends supervision and closes the live subscription, if any. It is safe
// to call more than once.
func (s *Supervisor) Stop() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// Supervise starts the bridge and resubscribes whenever the subscription cannot
// be established or the transport closes it. While no subscription is live the
// store is held at CHECKING so flows never act on a state the bridge can no
// longer observe. Each successful subscribe runs the initial refresh of Start.
func (b *Bridge) Supervise(ctx context.Context) *Supervisor {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Supervisor{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.supervise(runCtx, s)
	return s
}

func (b *Bridge) supervise(ctx context.Context, s *Supervisor) {
	defer close(s.done)

	interval := b.minBackoff
	for {
		h, err := b.Start(ctx)
		if err != nil {
			metrics.RecordBridgeResubscribe("failed")
			b.markDisconnected()
			b.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "bridge.subscribe_failed").
				Dur("retry_in", interval).
				Msg("push channel unavailable, retrying")
		} else {
			metrics.RecordBridgeResubscribe("ok")
			s.connected.Store(true)
			interval = b.minBackoff

			select {
			case <-ctx.Done():
				_ = h.Stop()
				s.connected.Store(false)
				return
			case <-h.Done():
			}
			_ = h.Stop()
			s.connected.Store(false)
			b.markDisconnected()
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		interval *= 2
		if interval > b.maxBackoff {
			interval = b.maxBackoff
		}
	}
}

func (b *Bridge) markDisconnected() {
	if b.store.Current() == model.ClientChecking {
		return
	}
	b.store.Set(model.ClientChecking)
	b.logger.Info().
		Str(log.FieldEvent, "bridge.state_unknown").
		Msg("push channel lost, client state reset to CHECKING")
}
