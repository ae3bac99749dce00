package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL        = "http://localhost:9000/api/v1"
	DefaultWSURL          = "ws://localhost:9000/ws"
	DefaultAPITimeout     = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRateBurst      = 5
	DefaultPingInterval   = 15 * time.Second
	DefaultPongTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReconnectBase  = 1 * time.Second
	DefaultReconnectMax   = 60 * time.Second
	DefaultQuotesInitial  = 5 * time.Second
	DefaultQuotesMax      = 30 * time.Second
	DefaultOverviewInit   = 30 * time.Second
	DefaultOverviewMax    = 5 * time.Minute
	DefaultAnalysisInit   = 1 * time.Second
	DefaultAnalysisMax    = 8 * time.Second
	DefaultMultiplier     = 2.0
	DefaultNewsCap        = 50
	DefaultSignalsCap     = 50
	DefaultNoticesCap     = 100
	DefaultSearchesCap    = 10
	DefaultAlertsCap      = 50
	DefaultReservoirSize  = 256
	DefaultReportInterval = 60 * time.Second
	DefaultServerAddr     = ":8080"
	DefaultOnboardingFile = "data/onboarding.json"
	DefaultLogLevel       = "info"
)

func (c *DashboardConfig) applyDefaults() {
	// Backend defaults
	if c.Backend.RestURL == "" {
		c.Backend.RestURL = DefaultRestURL
	}
	if c.Backend.WSURL == "" {
		c.Backend.WSURL = DefaultWSURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultAPITimeout
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = DefaultMaxRetries
	}
	if c.Backend.RateBurst == 0 {
		c.Backend.RateBurst = DefaultRateBurst
	}

	// Stream defaults
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PongTimeout == 0 {
		c.Stream.PongTimeout = DefaultPongTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBase
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMax
	}

	// Poller defaults
	applyPollDefaults(&c.Pollers.Quotes, DefaultQuotesInitial, DefaultQuotesMax)
	applyPollDefaults(&c.Pollers.Overview, DefaultOverviewInit, DefaultOverviewMax)
	applyPollDefaults(&c.Pollers.Analysis, DefaultAnalysisInit, DefaultAnalysisMax)

	// Bounded list caps
	if c.Limits.News == 0 {
		c.Limits.News = DefaultNewsCap
	}
	if c.Limits.Signals == 0 {
		c.Limits.Signals = DefaultSignalsCap
	}
	if c.Limits.Notifications == 0 {
		c.Limits.Notifications = DefaultNoticesCap
	}
	if c.Limits.RecentSearches == 0 {
		c.Limits.RecentSearches = DefaultSearchesCap
	}
	if c.Limits.Alerts == 0 {
		c.Limits.Alerts = DefaultAlertsCap
	}

	// Sampler defaults
	if c.Sampler.ReservoirSize == 0 {
		c.Sampler.ReservoirSize = DefaultReservoirSize
	}
	if c.Sampler.ReportInterval == 0 {
		c.Sampler.ReportInterval = DefaultReportInterval
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.OnboardingFile == "" {
		c.Server.OnboardingFile = DefaultOnboardingFile
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

func applyPollDefaults(p *PollPolicy, initial, max time.Duration) {
	if p.InitialDelay == 0 {
		p.InitialDelay = initial
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = max
	}
	if p.Multiplier == 0 {
		p.Multiplier = DefaultMultiplier
	}
}
