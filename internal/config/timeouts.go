package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	InstanceRunning   time.Duration // Timeout for an instance to report running with an address
	Bootstrap         time.Duration // Timeout for the node bootstrap command
	Health            time.Duration // Timeout for the post-bootstrap health check
	AgentOnline       time.Duration // Timeout for the SSM agent of a new instance to report online
	PollInterval      time.Duration // Interval between backend readiness polls
	RetryMaxAttempts  int           // Maximum number of retry attempts for transient errors
	RetryInitialDelay time.Duration // Initial delay between retries
	StaleGrace        time.Duration // Age after which a non-terminal node is reported stale
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - SPLUNKCTL_TIMEOUT_INSTANCE_RUNNING (default: 10m)
//   - SPLUNKCTL_TIMEOUT_BOOTSTRAP (default: 20m)
//   - SPLUNKCTL_TIMEOUT_HEALTH (default: 5m)
//   - SPLUNKCTL_TIMEOUT_AGENT_ONLINE (default: 5m)
//   - SPLUNKCTL_POLL_INTERVAL (default: 10s)
//   - SPLUNKCTL_RETRY_MAX_ATTEMPTS (default: 5)
//   - SPLUNKCTL_RETRY_INITIAL_DELAY (default: 1s)
//   - SPLUNKCTL_STALE_GRACE (default: 30m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		InstanceRunning:   parseDuration("SPLUNKCTL_TIMEOUT_INSTANCE_RUNNING", 10*time.Minute),
		Bootstrap:         parseDuration("SPLUNKCTL_TIMEOUT_BOOTSTRAP", 20*time.Minute),
		Health:            parseDuration("SPLUNKCTL_TIMEOUT_HEALTH", 5*time.Minute),
		AgentOnline:       parseDuration("SPLUNKCTL_TIMEOUT_AGENT_ONLINE", 5*time.Minute),
		PollInterval:      parseDuration("SPLUNKCTL_POLL_INTERVAL", 10*time.Second),
		RetryMaxAttempts:  parseInt("SPLUNKCTL_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("SPLUNKCTL_RETRY_INITIAL_DELAY", 1*time.Second),
		StaleGrace:        parseDuration("SPLUNKCTL_STALE_GRACE", 30*time.Minute),
	}
}

// parseDuration returns the duration in envVar, or defaultVal when unset or invalid.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt returns the integer in envVar, or defaultVal when unset or invalid.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return defaultVal
	}

	return i
}
