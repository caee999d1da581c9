package plan

import (
	"context"
	"time"
)

// Analytics event names.
const (
	EventFoundRoute      = "Found Route"
	EventFailedFindRoute = "Failed to Find Route"
)

// Event is the analytics record of one completed run.
type Event struct {
	Name      string    `json:"event"`
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`
	Query     *Query    `json:"plan"`

	// Success fields.
	Distance float64  `json:"distance,omitempty"` // meters between origin and destination
	Results  int      `json:"results,omitempty"`
	Profile  *Summary `json:"profile,omitempty"`

	// Failure field.
	Error string `json:"error,omitempty"`
}

// Tracker receives run events.
type Tracker interface {
	Track(ctx context.Context, e *Event) error
}

// NopTracker discards events.
type NopTracker struct{}

// Track implements Tracker.
func (NopTracker) Track(context.Context, *Event) error { return nil }
