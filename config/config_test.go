package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresBrokerID(t *testing.T) {
	os.Unsetenv("TT_BROKER_ID")
	_, err := Load("TT")
	require.Error(t, err)
}

func TestLoad_DefaultsAuthModeAndCacheDir(t *testing.T) {
	os.Setenv("TT_BROKER_ID", "zerodha")
	defer os.Unsetenv("TT_BROKER_ID")

	cfg, err := Load("TT")
	require.NoError(t, err)
	require.Equal(t, "zerodha", cfg.BrokerID)
	require.Equal(t, "MANUAL", cfg.AuthMode)
	require.Equal(t, "cache", cfg.CacheDir)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	os.Setenv("TT_BROKER_ID", "angelone")
	os.Setenv("TT_AUTH_MODE", "AUTO")
	os.Setenv("TT_CACHE_DIR", "/tmp/ttconnect-cache")
	defer func() {
		os.Unsetenv("TT_BROKER_ID")
		os.Unsetenv("TT_AUTH_MODE")
		os.Unsetenv("TT_CACHE_DIR")
	}()

	cfg, err := Load("TT")
	require.NoError(t, err)
	require.Equal(t, "AUTO", cfg.AuthMode)
	require.Equal(t, "/tmp/ttconnect-cache", cfg.CacheDir)
}

func TestBoolEnv_DefaultsFalseOnAbsenceOrGarbage(t *testing.T) {
	os.Unsetenv("TT_FLAG")
	require.False(t, BoolEnv("TT_FLAG"))

	os.Setenv("TT_FLAG", "not-a-bool")
	defer os.Unsetenv("TT_FLAG")
	require.False(t, BoolEnv("TT_FLAG"))
}
