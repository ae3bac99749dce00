package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *DashboardConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Backend.RestURL == "" {
		return errors.New("backend.rest_url is required")
	}
	if c.Backend.WSURL == "" {
		return errors.New("backend.ws_url is required")
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend.rate_limit must be >= 0, got %v", c.Backend.RateLimit)
	}

	if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return errors.New("stream.reconnect_base_delay must be <= stream.reconnect_max_delay")
	}

	if err := c.Pollers.Quotes.validate("pollers.quotes"); err != nil {
		return err
	}
	if err := c.Pollers.Overview.validate("pollers.overview"); err != nil {
		return err
	}
	if err := c.Pollers.Analysis.validate("pollers.analysis"); err != nil {
		return err
	}

	if c.Limits.News < 1 {
		return errors.New("limits.news must be >= 1")
	}
	if c.Limits.Signals < 1 {
		return errors.New("limits.signals must be >= 1")
	}
	if c.Limits.Notifications < 1 {
		return errors.New("limits.notifications must be >= 1")
	}
	if c.Limits.RecentSearches < 1 {
		return errors.New("limits.recent_searches must be >= 1")
	}
	if c.Limits.Alerts < 1 {
		return errors.New("limits.alerts must be >= 1")
	}

	if c.Sampler.ReservoirSize < 1 {
		return errors.New("sampler.reservoir_size must be >= 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	return nil
}

func (p *PollPolicy) validate(prefix string) error {
	if p.InitialDelay <= 0 {
		return fmt.Errorf("%s.initial_delay must be > 0", prefix)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("%s.max_delay must be >= initial_delay", prefix)
	}
	if p.Multiplier <= 1 {
		return fmt.Errorf("%s.multiplier must be > 1, got %v", prefix, p.Multiplier)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >= 0, got %d", prefix, p.MaxAttempts)
	}
	return nil
}
