package config

import "time"

type TrackingConfig interface {
	GetPollInterval() time.Duration
	GetFailureThreshold() int
	GetDegradedInterval() time.Duration
	GetRouteCacheSize() int
	GetRouteCacheTTL() time.Duration
}

type Tracking struct {
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	FailureThreshold int           `env:"POLL_FAILURE_THRESHOLD" envDefault:"10"`
	DegradedInterval time.Duration `env:"POLL_DEGRADED_INTERVAL" envDefault:"5m"`
	RouteCacheSize   int           `env:"ROUTE_CACHE_SIZE" envDefault:"64"`
	RouteCacheTTL    time.Duration `env:"ROUTE_CACHE_TTL" envDefault:"5m"`
}

var _ TrackingConfig = Tracking{}

func (t Tracking) GetPollInterval() time.Duration {
	return t.PollInterval
}

// GetFailureThreshold is the number of consecutive failed fetches before a subscription
// drops to the degraded cadence
func (t Tracking) GetFailureThreshold() int {
	return t.FailureThreshold
}

func (t Tracking) GetDegradedInterval() time.Duration {
	return t.DegradedInterval
}

func (t Tracking) GetRouteCacheSize() int {
	return t.RouteCacheSize
}

func (t Tracking) GetRouteCacheTTL() time.Duration {
	return t.RouteCacheTTL
}
