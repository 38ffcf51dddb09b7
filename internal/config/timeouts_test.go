package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	for _, env := range []string{
		"SPLUNKCTL_TIMEOUT_INSTANCE_RUNNING", "SPLUNKCTL_TIMEOUT_BOOTSTRAP", "SPLUNKCTL_TIMEOUT_HEALTH",
		"SPLUNKCTL_TIMEOUT_AGENT_ONLINE", "SPLUNKCTL_POLL_INTERVAL", "SPLUNKCTL_RETRY_MAX_ATTEMPTS", "SPLUNKCTL_RETRY_INITIAL_DELAY",
		"SPLUNKCTL_STALE_GRACE",
	} {
		t.Setenv(env, "")
	}

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Minute, timeouts.InstanceRunning)
	assert.Equal(t, 20*time.Minute, timeouts.Bootstrap)
	assert.Equal(t, 5*time.Minute, timeouts.Health)
	assert.Equal(t, 5*time.Minute, timeouts.AgentOnline)
	assert.Equal(t, 10*time.Second, timeouts.PollInterval)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
	assert.Equal(t, time.Second, timeouts.RetryInitialDelay)
	assert.Equal(t, 30*time.Minute, timeouts.StaleGrace)
}

func TestLoadTimeouts_EnvOverrides(t *testing.T) {
	t.Setenv("SPLUNKCTL_TIMEOUT_INSTANCE_RUNNING", "2m")
	t.Setenv("SPLUNKCTL_POLL_INTERVAL", "500ms")
	t.Setenv("SPLUNKCTL_RETRY_MAX_ATTEMPTS", "9")

	timeouts := LoadTimeouts()

	assert.Equal(t, 2*time.Minute, timeouts.InstanceRunning)
	assert.Equal(t, 500*time.Millisecond, timeouts.PollInterval)
	assert.Equal(t, 9, timeouts.RetryMaxAttempts)
}

func TestLoadTimeouts_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SPLUNKCTL_TIMEOUT_BOOTSTRAP", "soon")
	t.Setenv("SPLUNKCTL_RETRY_MAX_ATTEMPTS", "-3")

	timeouts := LoadTimeouts()

	assert.Equal(t, 20*time.Minute, timeouts.Bootstrap)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
}
