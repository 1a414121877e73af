// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/clientauth/internal/api"
	"github.com/ManuGH/clientauth/internal/config"
	"github.com/ManuGH/clientauth/internal/daemon"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/bridge"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/guard"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/manager"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/statestore"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/store"
	"github.com/ManuGH/clientauth/internal/health"
	"github.com/ManuGH/clientauth/internal/infra/bus"
	"github.com/ManuGH/clientauth/internal/infra/clientrpc"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/resilience"
	"github.com/ManuGH/clientauth/internal/telemetry"
)

// WriteTimeout must outlive the longest login request.
const writeTimeoutGrace = 30 * time.Second

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// runtime holds the wired components of a running daemon.
type runtime struct {
	orch    *manager.Orchestrator
	handler http.Handler
	closers []closer // in open order
	logger  zerolog.Logger
}

func (rt *runtime) onClose(name string, fn func(ctx context.Context) error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// closeAll releases everything opened so far, newest first.
func (rt *runtime) closeAll(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(ctx); err != nil {
			rt.logger.Warn().Err(err).Str("resource", c.name).Msg("close failed")
		}
	}
	rt.closers = nil
}

// registerHooks hands the closers to the manager, which runs them LIFO.
func (rt *runtime) registerHooks(mgr daemon.Manager) {
	for _, c := range rt.closers {
		mgr.RegisterShutdownHook(c.name, c.fn)
	}
	rt.closers = nil
}

func (rt *runtime) cancelActiveFlows() {
	for _, f := range rt.orch.ActiveFlows() {
		if rt.orch.Cancel(f.AccountID) {
			rt.logger.Info().
				Str(log.FieldAccountID, string(f.AccountID)).
				Str(log.FieldFlowID, f.FlowID).
				Msg("cancelled flow for shutdown")
		}
	}
}

// applyConfig pushes hot-reloadable settings into running components.
func (rt *runtime) applyConfig(cfg config.AppConfig) {
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	if err := rt.orch.SetTimeouts(timeoutsFrom(cfg.Auth)); err != nil {
		rt.logger.Warn().Err(err).Str(log.FieldEvent, "config.apply_failed").Msg("auth timeouts not applied")
		return
	}
	rt.logger.Info().Str(log.FieldEvent, "config.applied").Msg("auth timeouts updated for new flows")
}

func timeoutsFrom(a config.AuthConfig) manager.Timeouts {
	return manager.Timeouts{
		Ready:        a.ReadyTimeout,
		Challenge:    a.ChallengeTimeout,
		Submit:       a.SubmitTimeout,
		Confirmation: a.ConfirmationTimeout,
		Flow:         a.FlowTimeout,
	}
}

func serverConfig(cfg config.AppConfig) daemon.ServerConfig {
	return daemon.ServerConfig{
		ListenAddr:      cfg.API.ListenAddr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    cfg.Auth.FlowTimeout + writeTimeoutGrace,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	}
}

// buildRuntime opens every backend named by cfg. On error, whatever was
// already opened is closed again.
func buildRuntime(ctx context.Context, cfg config.AppConfig) (_ *runtime, err error) {
	rt := &runtime{logger: log.WithComponent("daemon")}
	defer func() {
		if err != nil {
			rt.closeAll(context.WithoutCancel(ctx))
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", tp.Shutdown)

	hm := health.NewManager(cfg.Version)

	var leases guard.LeaseStore
	switch cfg.Guard.Backend {
	case config.GuardRedis:
		rl, err := guard.OpenRedisLeases(ctx, guard.RedisConfig{
			Addr:     cfg.Guard.Redis.Addr,
			Password: cfg.Guard.Redis.Password,
			DB:       cfg.Guard.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("guard: %w", err)
		}
		rt.onClose("redis", func(context.Context) error { return rl.Close() })
		hm.RegisterChecker(health.NewFuncChecker("guard", func(ctx context.Context) error {
			_, err := rl.Held(ctx, cfg.Guard.KeyPrefix+"healthz")
			return err
		}))
		leases = rl
	default:
		leases = guard.NewMemoryLeases()
	}
	flowGuard := guard.New(leases,
		guard.WithLeaseTTL(cfg.Guard.LeaseTTL),
		guard.WithKeyPrefix(cfg.Guard.KeyPrefix),
	)

	if err := config.PrepareStorePath(cfg.Store); err != nil {
		return nil, fmt.Errorf("store path: %w", err)
	}
	records, err := store.OpenFlowStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("flow store: %w", err)
	}
	rt.onClose("store", func(context.Context) error { return records.Close() })
	hm.RegisterChecker(health.NewFuncChecker("store", func(ctx context.Context) error {
		_, _, err := records.LastFlow(ctx, "healthz")
		return err
	}))

	client, err := clientrpc.New(clientrpc.Config{
		BaseURL:          cfg.Client.BaseURL,
		RequestTimeout:   cfg.Client.RequestTimeout,
		RateLimit:        cfg.Client.RateLimit,
		Burst:            cfg.Client.Burst,
		BreakerThreshold: cfg.Client.BreakerThreshold,
		BreakerReset:     cfg.Client.BreakerReset,
	})
	if err != nil {
		return nil, fmt.Errorf("client rpc: %w", err)
	}
	// An open breaker degrades the daemon without taking it out of rotation.
	hm.RegisterChecker(health.NewSoftChecker("client", func(context.Context) error {
		if st := client.Breaker(); st == resilience.StateOpen {
			return fmt.Errorf("circuit breaker %s", st)
		}
		return nil
	}))

	var (
		notifications ports.NotificationSource
		sink          api.NotificationSink
	)
	switch cfg.Client.Notifications {
	case config.NotifyWebhook:
		b := bus.NewMemoryBus[ports.Notification]()
		rt.onClose("bus", func(context.Context) error { return b.Close() })
		src := bus.NewNotificationSource(b, bus.TopicClientState)
		notifications, sink = src, src
	default:
		notifications = clientrpc.NewNotificationStream(cfg.Client.NotificationsURL, nil)
	}

	states := statestore.New()
	br := bridge.New(notifications, states, bridge.WithQuerier(client))
	// The client is usually not running yet, so the push channel is established
	// in the background and re-established whenever the client exits.
	sup := br.Supervise(ctx)
	rt.onClose("bridge", func(context.Context) error { return sup.Stop() })
	hm.RegisterChecker(health.NewSoftChecker("push", func(context.Context) error {
		if !sup.Connected() {
			return errors.New("push channel not connected")
		}
		return nil
	}))

	orch, err := manager.New(manager.Deps{
		Control: client,
		State:   states,
		Guard:   flowGuard,
		Records: records,
	},
		manager.WithTimeouts(timeoutsFrom(cfg.Auth)),
		manager.WithReadinessSource(manager.ReadinessSource(cfg.Auth.Readiness)),
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	rt.orch = orch

	srv, err := api.NewServer(api.Config{
		Version:         cfg.Version,
		LoginRateLimit:  cfg.API.LoginRateLimit,
		LoginRateWindow: cfg.API.LoginRateWindow,
	}, api.Deps{
		Auth:          orch,
		Records:       records,
		Refresher:     br,
		Notifications: sink,
		Health:        hm,
	})
	if err != nil {
		return nil, err
	}
	rt.handler = srv.Handler()
	return rt, nil
}
