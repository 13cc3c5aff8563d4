package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOperatorDefaults(t *testing.T) {
	cfg, err := LoadOperator()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Origin)
	assert.Equal(t, 50, cfg.LogCapacity)
	assert.Equal(t, 5*time.Second, cfg.StatePoll)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOperatorFromEnv(t *testing.T) {
	t.Setenv("COMMUTER_ORIGIN", "https://agent.example.com")
	t.Setenv("COMMUTER_LOG_CAPACITY", "10")
	t.Setenv("COMMUTER_STATE_POLL", "250ms")
	t.Setenv("LOG_FILE", "/tmp/operator.log")

	cfg, err := LoadOperator()
	require.NoError(t, err)

	assert.Equal(t, "https://agent.example.com", cfg.Origin)
	assert.Equal(t, 10, cfg.LogCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.StatePoll)
	assert.Equal(t, "/tmp/operator.log", cfg.Logging.File)
}

func TestLoadOperatorRejectsBadValues(t *testing.T) {
	t.Setenv("COMMUTER_LOG_CAPACITY", "0")
	_, err := LoadOperator()
	assert.Error(t, err)

	t.Setenv("COMMUTER_LOG_CAPACITY", "many")
	_, err = LoadOperator()
	assert.Error(t, err)
}

func TestLoadAgent(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("AGENTD_VIEWPORT_WIDTH", "1600")

	cfg, err := LoadAgent()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8123", cfg.Addr())
	assert.Equal(t, 1600, cfg.ViewportWidth)
	assert.Equal(t, 800, cfg.ViewportHeight)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 2*time.Second, cfg.ScreenshotInterval)
}

func TestLoadAgentRejectsPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := LoadAgent()
	assert.Error(t, err)
}
