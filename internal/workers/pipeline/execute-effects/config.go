package executeeffects

import (
	"fmt"
	"time"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/retry"
)

type Config struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

func DefaultConfig() *Config {
	return &Config{
		CallTimeout: 5 * time.Second,
		MaxRetries:  2,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

func ConfigFrom(cfg config.GatewayConfig) *Config {
	return &Config{
		CallTimeout: config.GetDuration(cfg.CallTimeout),
		MaxRetries:  cfg.MaxRetries,
		BaseDelay:   config.GetDuration(cfg.BaseDelay),
		MaxDelay:    config.GetDuration(cfg.MaxDelay),
	}
}

func (c *Config) Validate() error {
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.BaseDelay < 0 || c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("max_delay must be at least base_delay")
	}
	return nil
}

func (c *Config) retryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: c.MaxRetries, BaseDelay: c.BaseDelay, MaxDelay: c.MaxDelay}
}
