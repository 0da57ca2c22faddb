package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_AllFieldsPopulated(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg.Profiles)
	assert.Empty(t, cfg.Profiles)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, "30s", cfg.Timeout)
	assert.Zero(t, cfg.RateLimit)
	assert.Empty(t, cfg.UserAgent)
}

func TestDefaultConfig_PassesValidation(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestConfig_EmbeddedStructPromotion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.RateLimit = 5

	assert.Equal(t, "debug", cfg.LoggingConfig.LogLevel)
	assert.InDelta(t, 5.0, cfg.NetworkConfig.RateLimit, 0)
}

func TestResolvedProfile_TimeoutDuration(t *testing.T) {
	rp := &ResolvedProfile{Network: NetworkConfig{Timeout: "90s"}}
	assert.Equal(t, 90*time.Second, rp.TimeoutDuration())

	rp.Network.Timeout = "bogus"
	assert.Equal(t, 30*time.Second, rp.TimeoutDuration())
}
