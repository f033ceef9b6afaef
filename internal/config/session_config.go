package config

import "time"

type SessionConfig interface {
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetRequestsPerSecond() float64
	GetRequestBurst() int
	GetGoogleClientID() string
	GetGoogleIssuer() string
}

type Session struct {
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RefreshTimeout    time.Duration `env:"REFRESH_TIMEOUT" envDefault:"10s"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"20"`
	RequestBurst      int           `env:"REQUEST_BURST" envDefault:"10"`
	GoogleClientID    string        `env:"GOOGLE_CLIENT_ID"`
	GoogleIssuer      string        `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
}

var _ SessionConfig = Session{}

func (s Session) GetRequestTimeout() time.Duration {
	return s.RequestTimeout
}

// GetRefreshTimeout bounds the shared refresh call, which runs detached from any one caller
func (s Session) GetRefreshTimeout() time.Duration {
	return s.RefreshTimeout
}

func (s Session) GetRequestsPerSecond() float64 {
	return s.RequestsPerSecond
}

func (s Session) GetRequestBurst() int {
	return s.RequestBurst
}

// GetGoogleClientID is the audience for external identity tokens. Empty disables local verification.
func (s Session) GetGoogleClientID() string {
	return s.GoogleClientID
}

func (s Session) GetGoogleIssuer() string {
	return s.GoogleIssuer
}
