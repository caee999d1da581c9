// Package analytics delivers plan run events to logging, Pub/Sub and PostgreSQL sinks.
package analytics

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/plan"
)

// LogTracker writes each event as one structured log line.
type LogTracker struct {
	logger zerolog.Logger
}

// NewLogTracker creates a tracker that logs events.
func NewLogTracker(logger zerolog.Logger) *LogTracker {
	return &LogTracker{logger: logger.With().Str("component", "analytics").Logger()}
}

// Track implements plan.Tracker.
func (t *LogTracker) Track(_ context.Context, e *plan.Event) error {
	ev := t.logger.Info().
		Str("event", e.Name).
		Str("run_id", e.RunID).
		Time("timestamp", e.Timestamp)

	if e.Query != nil {
		ev = ev.Str("date", e.Query.Date).
			Int("start_hour", e.Query.StartHour).
			Int("end_hour", e.Query.EndHour).
			Str("days", string(e.Query.Days))
	}

	if e.Error != "" {
		ev.Str("error", e.Error).Msg("plan event")
		return nil
	}

	ev = ev.Float64("distance", e.Distance).Int("results", e.Results)
	if e.Profile != nil {
		ev = ev.Str("all_modes", e.Profile.AllModes)
		if e.Profile.Best != nil {
			ev = ev.Str("best_modes", e.Profile.Best.Modes).
				Float64("best_time", e.Profile.Best.Time).
				Float64("best_cost", e.Profile.Best.Cost)
		}
	}
	ev.Msg("plan event")
	return nil
}
