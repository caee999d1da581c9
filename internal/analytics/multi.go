package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/commutekit/commutekit/internal/plan"
)

// MultiTracker fans each event out to several trackers concurrently.
type MultiTracker struct {
	trackers []plan.Tracker
}

// NewMultiTracker creates a tracker that forwards to every tracker in trackers.
func NewMultiTracker(trackers ...plan.Tracker) *MultiTracker {
	return &MultiTracker{trackers: trackers}
}

// Track implements plan.Tracker. Every sink is attempted and all failures are joined.
func (m *MultiTracker) Track(ctx context.Context, e *plan.Event) error {
	p := pool.New().WithErrors()
	for _, t := range m.trackers {
		p.Go(func() error {
			return t.Track(ctx, e)
		})
	}
	return p.Wait()
}

// Len returns the number of sinks.
func (m *MultiTracker) Len() int {
	return len(m.trackers)
}

// Sink names.
const (
	SinkLog      = "log"
	SinkPubSub   = "pubsub"
	SinkPostgres = "postgres"
)

// ErrUnknownSink is returned for an unsupported sink name.
var ErrUnknownSink = errors.New("unknown analytics sink")

// ParseSinks parses a comma separated sink list, dropping blanks and repeats.
func ParseSinks(s string) ([]string, error) {
	var sinks []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		switch name {
		case SinkLog, SinkPubSub, SinkPostgres:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSink, name)
		}
		seen[name] = true
		sinks = append(sinks, name)
	}
	return sinks, nil
}
