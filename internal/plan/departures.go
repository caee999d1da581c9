package plan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// DepartureConfig holds configuration for the departure populator.
type DepartureConfig struct {
	Gateway Gateway
	Logger  zerolog.Logger

	// Location is the agency time zone used for the hour window (default: America/New_York).
	Location *time.Location

	// MaxConcurrency bounds concurrent schedule fetches. Zero means unbounded.
	MaxConcurrency int
}

// Departures attaches scheduled departure instants to the boarding pattern of every transit leg.
type Departures struct {
	gateway        Gateway
	logger         zerolog.Logger
	location       *time.Location
	maxConcurrency int
}

// NewDepartures creates a new departure populator.
func NewDepartures(cfg DepartureConfig) *Departures {
	loc := cfg.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
	}

	return &Departures{
		gateway:        cfg.Gateway,
		logger:         cfg.Logger,
		location:       loc,
		maxConcurrency: cfg.MaxConcurrency,
	}
}

// Populate queries the schedule of every leg's first segment pattern and assigns the departures
// inside q's hour window. Either every segment is populated or none is.
func (d *Departures) Populate(ctx context.Context, q *Query, options []*Option) error {
	var segments []*SegmentPattern
	for _, o := range options {
		for _, leg := range o.Transit {
			if len(leg.SegmentPatterns) == 0 {
				continue
			}
			segments = append(segments, leg.SegmentPatterns[0])
		}
	}
	if len(segments) == 0 {
		return nil
	}

	date := q.StopTimesDate()
	results := make([][]time.Time, len(segments))

	p := pool.New().WithErrors().WithFirstError()
	if d.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(d.maxConcurrency)
	}
	for i, sp := range segments {
		p.Go(func() error {
			schedule, err := d.gateway.StopTimes(ctx, sp.StopID, date)
			if err != nil {
				return err
			}
			times, err := d.filter(schedule, sp, q.StartHour, q.EndHour)
			if err != nil {
				return err
			}
			results[i] = times
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	for i, sp := range segments {
		sp.DepartureTimes = results[i]
	}

	d.logger.Debug().
		Int("segments", len(segments)).
		Str("date", date).
		Msg("populated departure times")

	return nil
}

// filter returns the departures of sp's pattern whose local hour is in [start, end), ascending and distinct.
func (d *Departures) filter(schedule []*PatternTimes, sp *SegmentPattern, start, end int) ([]time.Time, error) {
	var entry *PatternTimes
	for _, pt := range schedule {
		if pt != nil && pt.PatternID == sp.PatternID {
			entry = pt
			break
		}
	}
	if entry == nil {
		return nil, &Error{
			Op:      "departures",
			Code:    "SCHEDULE_NOT_FOUND",
			Message: fmt.Sprintf("stop %s has no schedule for pattern %s", sp.StopID, sp.PatternID),
			Err:     ErrResolution,
		}
	}

	instants := make([]int64, 0, len(entry.Times))
	for _, st := range entry.Times {
		ms := st.Instant()
		hour := time.UnixMilli(ms).In(d.location).Hour()
		if hour >= start && hour < end {
			instants = append(instants, ms)
		}
	}
	sort.Slice(instants, func(i, j int) bool { return instants[i] < instants[j] })

	out := make([]time.Time, 0, len(instants))
	for i, ms := range instants {
		if i > 0 && ms == instants[i-1] {
			continue
		}
		out = append(out, time.UnixMilli(ms).In(d.location))
	}
	return out, nil
}
