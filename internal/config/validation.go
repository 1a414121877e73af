// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"github.com/ManuGH/clientauth/internal/validate"
)

// Validate checks a fully merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("logLevel", cfg.LogLevel, validate.LogLevels)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.Positive("api.loginRateLimit", cfg.API.LoginRateLimit)
	v.PositiveDuration("api.loginRateWindow", cfg.API.LoginRateWindow)
	v.PositiveDuration("api.shutdownTimeout", cfg.API.ShutdownTimeout)

	v.URL("client.baseURL", cfg.Client.BaseURL, []string{"http", "https"})
	v.OneOf("client.notifications", cfg.Client.Notifications, []string{NotifyWebsocket, NotifyWebhook})
	if cfg.Client.Notifications == NotifyWebsocket {
		v.URL("client.notificationsURL", cfg.Client.NotificationsURL, []string{"ws", "wss"})
	}
	v.PositiveDuration("client.requestTimeout", cfg.Client.RequestTimeout)
	if cfg.Client.RateLimit < 0 {
		v.AddError("client.rateLimit", "value cannot be negative", cfg.Client.RateLimit)
	}
	v.NonNegative("client.burst", cfg.Client.Burst)
	v.Positive("client.breakerThreshold", cfg.Client.BreakerThreshold)
	v.PositiveDuration("client.breakerReset", cfg.Client.BreakerReset)

	validateAuth(v, cfg.Auth)

	v.OneOf("guard.backend", cfg.Guard.Backend, []string{GuardMemory, GuardRedis})
	v.NotEmpty("guard.keyPrefix", cfg.Guard.KeyPrefix)
	if cfg.Guard.Backend == GuardRedis {
		v.NotEmpty("guard.redis.addr", cfg.Guard.Redis.Addr)
		v.NonNegative("guard.redis.db", cfg.Guard.Redis.DB)
		// A lease that expires while its flow still runs would admit a duplicate.
		v.DurationExceeds("guard.leaseTTL", cfg.Guard.LeaseTTL, "auth.flowTimeout", cfg.Auth.FlowTimeout)
	}

	v.OneOf("store.backend", cfg.Store.Backend, []string{StoreMemory, StoreSQLite, StoreBadger})
	if cfg.Store.Backend != StoreMemory {
		v.NotEmpty("store.path", cfg.Store.Path)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Ratio("telemetry.samplingRate", cfg.Telemetry.SamplingRate)
	}

	return v.Err()
}

func validateAuth(v *validate.Validator, a AuthConfig) {
	v.PositiveDuration("auth.readyTimeout", a.ReadyTimeout)
	v.PositiveDuration("auth.challengeTimeout", a.ChallengeTimeout)
	v.PositiveDuration("auth.submitTimeout", a.SubmitTimeout)
	v.PositiveDuration("auth.confirmationTimeout", a.ConfirmationTimeout)
	v.PositiveDuration("auth.flowTimeout", a.FlowTimeout)
	v.OneOf("auth.readiness", a.Readiness, []string{ReadinessPush, ReadinessRPC})
}

// PrepareStorePath ensures the directory of a file-backed store exists.
func PrepareStorePath(cfg StoreConfig) error {
	if cfg.Backend == StoreMemory {
		return nil
	}
	v := validate.New()
	v.ParentDirectory("store.path", cfg.Path)
	return v.Err()
}
