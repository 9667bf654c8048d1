package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}
	if c.Socket == "" {
		errs = append(errs, fmt.Errorf("socket is required"))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, fmt.Errorf("health_interval must be positive, got %s", c.HealthInterval))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store (%s): dsn is required", c.Store.Driver))
		}
	case "":
		errs = append(errs, fmt.Errorf("store: driver is required"))
	default:
		errs = append(errs, fmt.Errorf("store: unknown driver %q", c.Store.Driver))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log: level must be debug, info, warn, or error; got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json", "journald":
	default:
		errs = append(errs, fmt.Errorf("log: format must be text, json, or journald; got %q", c.Log.Format))
	}

	switch c.Assist.Provider {
	case ProviderNone, "":
	case ProviderHTTP:
		if c.Assist.Endpoint == "" {
			errs = append(errs, fmt.Errorf("assist (http): endpoint is required"))
		} else if u, err := url.Parse(c.Assist.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("assist (http): endpoint %q is not an absolute URL", c.Assist.Endpoint))
		}
	case ProviderOpenAI:
		if c.Assist.APIKey == "" {
			errs = append(errs, fmt.Errorf("assist (openai): api_key or OPENAI_API_KEY is required"))
		}
		if c.Assist.Model == "" {
			errs = append(errs, fmt.Errorf("assist (openai): model is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("assist: unknown provider %q", c.Assist.Provider))
	}
	if c.Assist.Timeout < 0 {
		errs = append(errs, fmt.Errorf("assist: timeout must not be negative"))
	}

	for i, b := range c.Events.Brokers {
		if !strings.Contains(b, ":") {
			errs = append(errs, fmt.Errorf("events: broker %d (%q) must be host:port", i, b))
		}
	}

	return errs
}
