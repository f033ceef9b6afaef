package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	SessionConfig
	TrackingConfig
	MapConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetAPIBaseURL() string
	GetTokenStore() string
	GetTokenFile() string
	GetStoreSecret() string
	GetRedisURL() string
	GetRedisKey() string
	GetMetricsAddr() string
}

type mainConfig struct {
	EnvVars
	Session
	Tracking
	Maps
}

// New parses the process environment into a Config, applying defaults for anything unset.
func New() (Config, error) {
	c := mainConfig{}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return c, nil
}

// Default returns a Config populated with defaults only; used by tests and embedders
// that don't read the environment.
func Default() Config {
	c, _ := FromMap(nil)
	return c
}

// FromMap parses vars as if they were the whole environment
func FromMap(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	c := mainConfig{}
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("config: failed to parse variables: %w", err)
	}
	return c, nil
}
