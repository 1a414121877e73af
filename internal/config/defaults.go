// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Defaults returns the baseline configuration before file and ENV overrides.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "clientauthd",
		API: APIConfig{
			ListenAddr:      ":8088",
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Client: ClientConfig{
			BaseURL:          "http://127.0.0.1:7700",
			Notifications:    NotifyWebsocket,
			NotificationsURL: "ws://127.0.0.1:7700/v1/notifications",
			RequestTimeout:   10 * time.Second,
			RateLimit:        5,
			Burst:            5,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Auth: AuthConfig{
			ReadyTimeout:        45 * time.Second,
			ChallengeTimeout:    5 * time.Minute,
			SubmitTimeout:       30 * time.Second,
			ConfirmationTimeout: 15 * time.Second,
			FlowTimeout:         10 * time.Minute,
			Readiness:           ReadinessPush,
		},
		Guard: GuardConfig{
			Backend:   GuardMemory,
			LeaseTTL:  15 * time.Minute,
			KeyPrefix: "clientauth:flow:",
			Redis:     RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
			Path:    "data/flows.db",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
