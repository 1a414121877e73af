// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/clientauth/internal/log"
)

// EnvPrefix prefixes every environment key the loader reads.
const EnvPrefix = "CLIENTAUTH_"

// ParseString reads a string from environment variable or returns default value.
// Values of sensitive keys are never logged.
func ParseString(key, defaultValue string) string {
	return parseEnv(log.WithComponent("config"), key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from environment variable or returns default value.
// It falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(log.WithComponent("config"), key, defaultValue, strconv.Atoi)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(log.WithComponent("config"), key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBool reads a boolean (strconv.ParseBool spellings) from environment variable.
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(log.WithComponent("config"), key, defaultValue, strconv.ParseBool)
}

// ParseDuration reads a duration in Go duration format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(log.WithComponent("config"), key, defaultValue, time.ParseDuration)
}

func parseEnv[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		ev := logger.Warn().Str("key", key).Interface("default", defaultValue)
		if !isSensitive(key) {
			ev = ev.Str("value", raw)
		}
		ev.Msg("invalid value in environment variable, using default")
		return defaultValue
	}

	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

// mergeEnvConfig applies CLIENTAUTH_* overrides on top of cfg.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)

	cfg.API.ListenAddr = l.envString("LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.LoginRateLimit = l.envInt("LOGIN_RATE_LIMIT", cfg.API.LoginRateLimit)
	cfg.API.LoginRateWindow = l.envDuration("LOGIN_RATE_WINDOW", cfg.API.LoginRateWindow)
	cfg.API.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Client.BaseURL = l.envString("CLIENT_BASE_URL", cfg.Client.BaseURL)
	cfg.Client.Notifications = l.envString("CLIENT_NOTIFICATIONS", cfg.Client.Notifications)
	cfg.Client.NotificationsURL = l.envString("CLIENT_NOTIFICATIONS_URL", cfg.Client.NotificationsURL)
	cfg.Client.RequestTimeout = l.envDuration("CLIENT_REQUEST_TIMEOUT", cfg.Client.RequestTimeout)
	cfg.Client.RateLimit = l.envFloat("CLIENT_RATE_LIMIT", cfg.Client.RateLimit)
	cfg.Client.Burst = l.envInt("CLIENT_BURST", cfg.Client.Burst)
	cfg.Client.BreakerThreshold = l.envInt("CLIENT_BREAKER_THRESHOLD", cfg.Client.BreakerThreshold)
	cfg.Client.BreakerReset = l.envDuration("CLIENT_BREAKER_RESET", cfg.Client.BreakerReset)

	cfg.Auth.ReadyTimeout = l.envDuration("READY_TIMEOUT", cfg.Auth.ReadyTimeout)
	cfg.Auth.ChallengeTimeout = l.envDuration("CHALLENGE_TIMEOUT", cfg.Auth.ChallengeTimeout)
	cfg.Auth.SubmitTimeout = l.envDuration("SUBMIT_TIMEOUT", cfg.Auth.SubmitTimeout)
	cfg.Auth.ConfirmationTimeout = l.envDuration("CONFIRMATION_TIMEOUT", cfg.Auth.ConfirmationTimeout)
	cfg.Auth.FlowTimeout = l.envDuration("FLOW_TIMEOUT", cfg.Auth.FlowTimeout)
	cfg.Auth.Readiness = l.envString("READINESS", cfg.Auth.Readiness)

	cfg.Guard.Backend = l.envString("GUARD_BACKEND", cfg.Guard.Backend)
	cfg.Guard.LeaseTTL = l.envDuration("GUARD_LEASE_TTL", cfg.Guard.LeaseTTL)
	cfg.Guard.KeyPrefix = l.envString("GUARD_KEY_PREFIX", cfg.Guard.KeyPrefix)
	cfg.Guard.Redis.Addr = l.envString("REDIS_ADDR", cfg.Guard.Redis.Addr)
	cfg.Guard.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Guard.Redis.Password)
	cfg.Guard.Redis.DB = l.envInt("REDIS_DB", cfg.Guard.Redis.DB)

	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("STORE_PATH", cfg.Store.Path)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
}
