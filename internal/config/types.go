// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Backends and modes accepted by the loader.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBadger = "badger"

	GuardMemory = "memory"
	GuardRedis  = "redis"

	NotifyWebsocket = "websocket"
	NotifyWebhook   = "webhook"

	ReadinessPush = "push"
	ReadinessRPC  = "rpc"
)

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	API       APIConfig       `yaml:"api"`
	Client    ClientConfig    `yaml:"client"`
	Auth      AuthConfig      `yaml:"auth"`
	Guard     GuardConfig     `yaml:"guard"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	LoginRateLimit  int           `yaml:"loginRateLimit"` // login attempts per window and client IP
	LoginRateWindow time.Duration `yaml:"loginRateWindow"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ClientConfig locates the external game client.
type ClientConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	Notifications    string        `yaml:"notifications"` // websocket | webhook
	NotificationsURL string        `yaml:"notificationsURL"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	RateLimit        float64       `yaml:"rateLimit"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// AuthConfig holds the flow step bounds. It is hot-reloadable.
type AuthConfig struct {
	ReadyTimeout        time.Duration `yaml:"readyTimeout"`
	ChallengeTimeout    time.Duration `yaml:"challengeTimeout"`
	SubmitTimeout       time.Duration `yaml:"submitTimeout"`
	ConfirmationTimeout time.Duration `yaml:"confirmationTimeout"`
	FlowTimeout         time.Duration `yaml:"flowTimeout"`
	Readiness           string        `yaml:"readiness"` // push | rpc
}

// GuardConfig selects the admission lease backend.
type GuardConfig struct {
	Backend   string        `yaml:"backend"`
	LeaseTTL  time.Duration `yaml:"leaseTTL"`
	KeyPrefix string        `yaml:"keyPrefix"`
	Redis     RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects the flow history backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc | http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
