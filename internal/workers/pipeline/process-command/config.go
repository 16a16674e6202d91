package processcommand

import (
	"fmt"
	"time"

	"command-pipeline/internal/common/config"
)

type Config struct {
	// WaitTimeout bounds how long a duplicate request waits for an
	// in-progress original before answering "still working".
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	DefaultActor string        `mapstructure:"default_actor"`
	// LeaseTTL is the ledger's in-progress lease. Effects must finish
	// before it lapses, so the gateway stage runs under a deadline of
	// claim time plus LeaseTTL. Zero disables the deadline.
	LeaseTTL     time.Duration `mapstructure:"in_progress_ttl"`
}

func DefaultConfig() *Config {
	return &Config{
		WaitTimeout:  5 * time.Second,
		PollInterval: 100 * time.Millisecond,
		DefaultActor: "anonymous",
		LeaseTTL:     2 * time.Minute,
	}
}

func ConfigFrom(cfg config.LedgerConfig) *Config {
	c := DefaultConfig()
	if cfg.WaitTimeout > 0 {
		c.WaitTimeout = config.GetDuration(cfg.WaitTimeout)
	}
	if cfg.PollInterval > 0 {
		c.PollInterval = config.GetDuration(cfg.PollInterval)
	}
	if cfg.InProgressTTL > 0 {
		c.LeaseTTL = config.GetDuration(cfg.InProgressTTL)
	}
	return c
}

func (c *Config) Validate() error {
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait_timeout must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.LeaseTTL < 0 {
		return fmt.Errorf("in_progress_ttl must not be negative")
	}
	return nil
}
