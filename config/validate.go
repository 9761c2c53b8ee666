package config

import (
	"fmt"
	"strings"
)

var pausableModules = map[string]struct{}{"settlement": {}, "sales": {}}

// Validate rejects settings the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "leveldb", "bolt", "mem":
	default:
		return fmt.Errorf("storage: unsupported backend %q", c.Storage.Backend)
	}
	for _, module := range c.Market.PausedModules {
		if _, ok := pausableModules[strings.TrimSpace(module)]; !ok {
			return fmt.Errorf("market: unknown module %q in PausedModules", module)
		}
	}
	if strings.TrimSpace(c.HTTP.ListenAddress) == "" {
		return fmt.Errorf("http: ListenAddress must be set")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http: MaxBodyBytes <= 0")
	}
	for name, limit := range c.RateLimits {
		if limit.RequestsPerMinute <= 0 || limit.Burst <= 0 {
			return fmt.Errorf("rate limit %q: RequestsPerMinute and Burst must be positive", name)
		}
	}
	switch c.Idempotency.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("idempotency: unsupported driver %q", c.Idempotency.Driver)
	}
	if c.Idempotency.Driver == "postgres" && strings.TrimSpace(c.Idempotency.DSN) == "" {
		return fmt.Errorf("idempotency: postgres requires DSN")
	}
	return nil
}
