// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bridge forwards push notifications from the external client into the state store.
//
// Delivery is at-least-once and unordered. The bridge neither deduplicates nor
// reorders: every recognized notification is written to the store, and the store's
// last-write-wins semantics make that safe.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/statestore"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
)

// ErrNoQuerier is returned by Refresh when the bridge was built without a state querier.
var ErrNoQuerier = errors.New("bridge: no state querier configured")

const (
	sourcePush  = "push"
	sourceQuery = "query"
)

// Bridge owns the push subscription lifetime and the write path into the store.
type Bridge struct {
	source  ports.NotificationSource
	store   *statestore.Store
	querier ports.StateQuerier
	logger  zerolog.Logger

	dropLog rate.Sometimes
	sf      singleflight.Group

	minBackoff time.Duration
	maxBackoff time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithQuerier enables Refresh and the initial state query on Start.
func WithQuerier(q ports.StateQuerier) Option {
	return func(b *Bridge) {
		b.querier = q
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New creates a bridge writing into store.
func New(source ports.NotificationSource, store *statestore.Store, opts ...Option) *Bridge {
	b := &Bridge{
		source:  source,
		store:   store,
		logger:  log.WithComponent("bridge"),
		dropLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},

		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle is a live subscription. Stop must be called on every exit path of the owner.
type Handle struct {
	sub    ports.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// Stop closes the subscription and waits for the forwarding goroutine to exit.
// It is safe to call more than once.
func (h *Handle) Stop() error {
	h.once.Do(func() {
		h.cancel()
		h.err = h.sub.Close()
		<-h.done
		metrics.DecBridgeSubscriptions()
	})
	return h.err
}

// Done is closed once forwarding has ended, either through Stop or because the
// transport closed the channel.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start subscribes to the push channel and begins forwarding. If the channel
// cannot be established the returned error wraps ports.ErrTransportUnavailable
// and no subscription is left open.
func (b *Bridge) Start(ctx context.Context) (*Handle, error) {
	if b.source == nil {
		return nil, fmt.Errorf("bridge start: %w: no notification source", ports.ErrTransportUnavailable)
	}

	sub, err := b.source.Subscribe(ctx)
	if err != nil {
		if sub != nil {
			_ = sub.Close()
		}
		if errors.Is(err, ports.ErrTransportUnavailable) {
			return nil, fmt.Errorf("bridge start: %w", err)
		}
		return nil, fmt.Errorf("bridge start: %w: %w", ports.ErrTransportUnavailable, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("bridge start: %w: nil subscription", ports.ErrTransportUnavailable)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	metrics.IncBridgeSubscriptions()

	go b.forward(runCtx, sub, h.done)

	b.logger.Info().Str(log.FieldEvent, "bridge.started").Msg("push channel subscribed")

	if b.querier != nil {
		if _, err := b.Refresh(ctx); err != nil {
			b.logger.Warn().Err(err).Str(log.FieldEvent, "bridge.initial_refresh_failed").Msg("initial state query failed")
		}
	}
	return h, nil
}

func (b *Bridge) forward(ctx context.Context, sub ports.Subscription, done chan<- struct{}) {
	defer close(done)
	ch := sub.C()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				b.logger.Warn().Str(log.FieldEvent, "bridge.channel_closed").Msg("push channel closed by transport")
				return
			}
			b.apply(n)
		}
	}
}

func (b *Bridge) apply(n ports.Notification) {
	state, ok := model.ParseClientState(n.State)
	if !ok {
		metrics.RecordStateNotificationIgnored("unrecognized_state")
		b.dropLog.Do(func() {
			b.logger.Warn().
				Str(log.FieldEvent, "bridge.notification_dropped").
				Str("raw_state", n.State).
				Msg("dropping notification with unrecognized client state")
		})
		return
	}

	prev := b.store.Current()
	b.store.Set(state)
	metrics.RecordStateNotification(sourcePush, string(state))

	b.logger.Debug().
		Str(log.FieldEvent, "bridge.state_applied").
		Str(log.FieldOldState, string(prev)).
		Str(log.FieldNewState, string(state)).
		Msg("client state updated")
}

// Refresh queries the client state explicitly and writes the result to the store.
// Concurrent callers share one in-flight query.
func (b *Bridge) Refresh(ctx context.Context) (model.ClientState, error) {
	if b.querier == nil {
		return "", ErrNoQuerier
	}

	v, err, shared := b.sf.Do("refresh", func() (interface{}, error) {
		state, err := b.querier.QueryState(ctx)
		if err != nil {
			return nil, err
		}
		if !state.Valid() {
			return nil, fmt.Errorf("query returned unknown client state %q", state)
		}
		b.store.Set(state)
		metrics.RecordStateNotification(sourceQuery, string(state))
		return state, nil
	})
	if err != nil {
		return "", fmt.Errorf("refresh client state: %w", err)
	}

	state := v.(model.ClientState)
	b.logger.Debug().
		Str(log.FieldEvent, "bridge.refreshed").
		Str(log.FieldNewState, string(state)).
		Bool("singleflight_shared", shared).
		Msg("client state refreshed")
	return state, nil
}
