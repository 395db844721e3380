package reconcile

import (
	"time"

	"github.com/smallbiznis/fotoyou/internal/config"
)

// Config controls how often stale purchases are swept and when they expire.
type Config struct {
	Enabled     bool
	Interval    time.Duration
	StaleAfter  time.Duration
	ExpireAfter time.Duration
	BatchSize   int
	RunTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Interval:    time.Minute,
		StaleAfter:  15 * time.Minute,
		ExpireAfter: 24 * time.Hour,
		BatchSize:   50,
		RunTimeout:  30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	rc := cfg.Reconcile
	return Config{
		Enabled:     rc.Enabled,
		Interval:    seconds(rc.IntervalSeconds),
		StaleAfter:  seconds(rc.StaleAfterSeconds),
		ExpireAfter: seconds(rc.ExpireAfterSeconds),
		BatchSize:   rc.BatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.ExpireAfter <= 0 {
		c.ExpireAfter = defaults.ExpireAfter
	}
	// An order the gateway never saw cannot expire before it is swept.
	if c.ExpireAfter < c.StaleAfter {
		c.ExpireAfter = c.StaleAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	return c
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
