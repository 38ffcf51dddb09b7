package testing

import (
	"context"
	"testing"
	"time"

	"github.com/imamik/splunkctl/internal/config"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FastTimeouts returns timeouts suited to in-memory backends.
func FastTimeouts() *config.Timeouts {
	return &config.Timeouts{
		InstanceRunning:   2 * time.Second,
		Bootstrap:         2 * time.Second,
		Health:            time.Second,
		AgentOnline:       time.Second,
		PollInterval:      time.Millisecond,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Millisecond,
		StaleGrace:        30 * time.Minute,
	}
}
