package plan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testLocation = time.FixedZone("EST", -5*60*60)

// mockGateway is a mock trip planner gateway for testing.
type mockGateway struct {
	profile    *Profile
	profileErr error

	routes    []*Route
	routesErr error

	patterns   map[string]*Pattern
	patternErr error

	stopTimes    map[string][]*PatternTimes
	stopTimesErr error

	delay time.Duration

	profileCalls   atomic.Int32
	routesCalls    atomic.Int32
	patternCalls   atomic.Int32
	stopTimesCalls atomic.Int32

	mu             sync.Mutex
	patternIDs     []string
	stopTimesDates []string
}

func (m *mockGateway) Profile(ctx context.Context, q *Query) (*Profile, error) {
	m.profileCalls.Add(1)
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profile, nil
}

func (m *mockGateway) Routes(ctx context.Context) ([]*Route, error) {
	m.routesCalls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.routesErr != nil {
		return nil, m.routesErr
	}
	return m.routes, nil
}

func (m *mockGateway) Pattern(ctx context.Context, id string) (*Pattern, error) {
	m.patternCalls.Add(1)
	m.mu.Lock()
	m.patternIDs = append(m.patternIDs, id)
	m.mu.Unlock()
	if m.patternErr != nil {
		return nil, m.patternErr
	}
	return m.patterns[id], nil
}

func (m *mockGateway) StopTimes(ctx context.Context, stopID, date string) ([]*PatternTimes, error) {
	m.stopTimesCalls.Add(1)
	m.mu.Lock()
	m.stopTimesDates = append(m.stopTimesDates, date)
	m.mu.Unlock()
	if m.stopTimesErr != nil {
		return nil, m.stopTimesErr
	}
	return m.stopTimes[stopID], nil
}

func (m *mockGateway) Name() string {
	return "mock"
}

// recordingTracker records tracked events.
type recordingTracker struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (r *recordingTracker) Track(ctx context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingTracker) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

func testQuery() *Query {
	return &Query{
		From:      &Place{Address: "1600 Pennsylvania Ave", Lat: 38.8977, Lon: -77.0365},
		To:        &Place{Address: "Pentagon", Lat: 38.8719, Lon: -77.0563},
		Date:      "2024-03-04",
		StartHour: 7,
		EndHour:   10,
		Modes:     ModeSet{Bus: true, Train: true, Bike: true, Car: true, Walk: true},
		Days:      DaysWeekdays,
	}
}

// at returns the scheduled time of hh:mm on the test service day.
func at(hour, minute int) ScheduledTime {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, testLocation).Unix()
	return ScheduledTime{ServiceDay: day, ScheduledDeparture: int64(hour*3600 + minute*60)}
}

func busOption(avg int, segments ...*SegmentPattern) *Option {
	return &Option{
		Summary: "bus",
		Stats:   Stats{Min: avg - 60, Avg: avg, Max: avg + 60},
		Access:  []StreetLeg{{Mode: ModeWalk, Time: 300, Distance: 400}},
		Transit: []*TransitLeg{{Mode: ModeBus, SegmentPatterns: segments, RideStats: Stats{Avg: avg / 2}}},
		Egress:  []StreetLeg{{Mode: ModeWalk, Time: 200, Distance: 250}},
		Fare:    2,
	}
}

func carOption(avg int, distance float64) *Option {
	return &Option{
		Summary: "drive",
		Stats:   Stats{Min: avg, Avg: avg, Max: avg},
		Access:  []StreetLeg{{Mode: ModeCar, Time: avg, Distance: distance}},
	}
}

// testBatch returns a fresh raw batch referencing P1 twice and P2 once.
func testBatch() []*Option {
	transfer := busOption(2400, &SegmentPattern{PatternID: "P1", FromIndex: 1, ToIndex: 2})
	transfer.Transit = append(transfer.Transit, &TransitLeg{
		Mode: ModeSubway,
		SegmentPatterns: []*SegmentPattern{
			{PatternID: "P2", FromIndex: 0, ToIndex: 1},
			{PatternID: "P1", FromIndex: 0, ToIndex: 2},
		},
		RideStats: Stats{Avg: 600},
	})

	return []*Option{
		transfer,
		carOption(1500, 15000),
		busOption(3000, &SegmentPattern{PatternID: "P1", FromIndex: 1, ToIndex: 2}),
		carOption(1600, 16000),
	}
}

func newTestGateway() *mockGateway {
	return &mockGateway{
		profile: &Profile{
			Options:         testBatch(),
			ExternalMatches: 2,
		},
		routes: []*Route{
			{ID: "ART:45", ShortName: "45", LongName: "Columbia Pike", Mode: ModeBus},
			{ID: "DC:RED", ShortName: "RD", LongName: "Red Line", Mode: ModeSubway},
			{ID: "MCRO:1", ShortName: "1", Mode: ModeBus},
		},
		patterns: map[string]*Pattern{
			"P1": {ID: "P1", RouteID: "ART:45", Stops: []*Stop{{ID: "s0"}, {ID: "s1"}, {ID: "s2"}}},
			"P2": {ID: "P2", RouteID: "DC:RED", Stops: []*Stop{{ID: "r0"}, {ID: "r1"}}},
		},
		stopTimes: map[string][]*PatternTimes{
			"s1": {
				{PatternID: "P9", Times: []ScheduledTime{at(8, 0)}},
				{PatternID: "P1", Times: []ScheduledTime{at(9, 59), at(6, 50), at(7, 0), at(10, 0), at(8, 15), at(8, 15), at(12, 0)}},
			},
			"r0": {
				{PatternID: "P2", Times: []ScheduledTime{at(7, 30), at(9, 10)}},
			},
		},
	}
}
