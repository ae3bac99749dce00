package config

import "time"

// DashboardConfig is the root configuration for a dashboard sync daemon.
type DashboardConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Backend  BackendConfig  `yaml:"backend"`
	Stream   StreamConfig   `yaml:"stream"`
	Pollers  PollersConfig  `yaml:"pollers"`
	Limits   LimitsConfig   `yaml:"limits"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this daemon instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// BackendConfig holds research backend API settings.
type BackendConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"` // Bearer token (for Authorization header)
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // Requests per second, 0 = unlimited
	RateBurst  int           `yaml:"rate_burst"`
}

// StreamConfig holds push-channel (WebSocket) settings.
type StreamConfig struct {
	PingInterval       time.Duration `yaml:"ping_interval"`
	PongTimeout        time.Duration `yaml:"pong_timeout"` // Max silence before the connection is considered stale
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// PollPolicy is one retrying-poll backoff policy.
type PollPolicy struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxAttempts  int           `yaml:"max_attempts"` // 0 = unbounded
}

// PollersConfig holds the backoff policies for the three polling purposes.
type PollersConfig struct {
	Quotes   PollPolicy `yaml:"quotes"`
	Overview PollPolicy `yaml:"overview"`
	Analysis PollPolicy `yaml:"analysis"`
}

// LimitsConfig holds the caps for the bounded log lists.
type LimitsConfig struct {
	News           int `yaml:"news"`
	Signals        int `yaml:"signals"`
	Notifications  int `yaml:"notifications"`
	RecentSearches int `yaml:"recent_searches"`
	Alerts         int `yaml:"alerts"`
}

// SamplerConfig holds observability sampler settings.
type SamplerConfig struct {
	ReservoirSize  int           `yaml:"reservoir_size"`  // Samples retained per timing key
	ReportInterval time.Duration `yaml:"report_interval"` // 0 disables periodic reporting
}

// ServerConfig holds the UI-facing HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	OnboardingFile string `yaml:"onboarding_file"` // Path for the persisted onboarding flag
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
