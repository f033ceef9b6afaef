package config

import (
	"os"
	"path/filepath"
)

const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type EnvVars struct {
	AppName     string `env:"APP_NAME" envDefault:"Kiddie Bus"`
	Env         string `env:"ENV" envDefault:"DEV"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	APIBaseURL  string `env:"API_URL" envDefault:"http://localhost:5000/api"`
	TokenStore  string `env:"TOKEN_STORE" envDefault:"file"`
	TokenFile   string `env:"TOKEN_FILE"`
	StoreSecret string `env:"TOKEN_STORE_SECRET"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisKey    string `env:"REDIS_TOKEN_KEY" envDefault:"kiddiebus:tokens"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetAPIBaseURL returns the REST service root (e.g., "https://api.kiddiebus.example/api").
// Every endpoint path is resolved against it.
func (e EnvVars) GetAPIBaseURL() string {
	return e.APIBaseURL
}

// GetTokenStore returns one of TokenStoreFile, TokenStoreRedis or TokenStoreMemory
func (e EnvVars) GetTokenStore() string {
	return e.TokenStore
}

func (e EnvVars) GetTokenFile() string {
	if e.TokenFile != "" {
		return e.TokenFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".kiddiebus-tokens.json"
	}
	return filepath.Join(dir, "kiddiebus", "tokens.json")
}

func (e EnvVars) GetStoreSecret() string {
	return e.StoreSecret
}

func (e EnvVars) GetRedisURL() string {
	return e.RedisURL
}

func (e EnvVars) GetRedisKey() string {
	return e.RedisKey
}

func (e EnvVars) GetMetricsAddr() string {
	return e.MetricsAddr
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
