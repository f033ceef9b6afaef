package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/kiddiebus/kiddiebus-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	for _, name := range []string{"POLL_INTERVAL", "API_URL", "TOKEN_STORE"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000/api", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Second, c.GetPollInterval())
	require.Equal(t, 10, c.GetFailureThreshold())
	require.Equal(t, config.TokenStoreFile, c.GetTokenStore())

	lat, lng := c.GetDefaultCenter()
	require.InDelta(t, 18.0426, lat, 1e-9)
	require.InDelta(t, -77.5054, lng, 1e-9)
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com/api")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("TOKEN_STORE", config.TokenStoreRedis)
	t.Setenv("GOOGLE_CLIENT_ID", "client-123")

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Second, c.GetPollInterval())
	require.Equal(t, config.TokenStoreRedis, c.GetTokenStore())
	require.Equal(t, "client-123", c.GetGoogleClientID())
}

func TestNew_InvalidDuration(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := config.New()
	require.Error(t, err)
}

func TestDefault_IgnoresEnvironment(t *testing.T) {
	t.Setenv("API_URL", "https://elsewhere.example.com")

	c := config.Default()
	require.Equal(t, "http://localhost:5000/api", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Minute, c.GetDegradedInterval())
}

func TestFromMap(t *testing.T) {
	c, err := config.FromMap(map[string]string{
		"API_URL":                "http://127.0.0.1:9999/api",
		"POLL_FAILURE_THRESHOLD": "3",
	})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9999/api", c.GetAPIBaseURL())
	require.Equal(t, 3, c.GetFailureThreshold())
	require.Equal(t, 30*time.Second, c.GetPollInterval())

	_, err = config.FromMap(map[string]string{"MAP_ZOOM": "close"})
	require.Error(t, err)
}
