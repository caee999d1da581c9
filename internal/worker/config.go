// Package worker provides background jobs for commutekit: keeping the route table warm
// and persisting plan events delivered over Pub/Sub.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the route table refresh job.
type RefreshConfig struct {
	// Interval between reloads. Zero disables the periodic job.
	// Default: 15 minutes
	Interval time.Duration

	// Timeout bounds each reload.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval: 15 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// ReceiveConfig holds flow control settings for the event subscription.
type ReceiveConfig struct {
	// MaxOutstandingMessages caps unacknowledged messages held at once.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension is how long a message lease is extended while it is processed.
	// Default: 10 minutes
	MaxExtension time.Duration

	// ProcessTimeout bounds storing one event.
	// Default: 10 seconds
	ProcessTimeout time.Duration
}

// DefaultReceiveConfig returns the default receive settings.
func DefaultReceiveConfig() ReceiveConfig {
	return ReceiveConfig{
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
		ProcessTimeout:         10 * time.Second,
	}
}

func (c ReceiveConfig) withDefaults() ReceiveConfig {
	d := DefaultReceiveConfig()
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = d.ProcessTimeout
	}
	return c
}
