package plan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, gw *mockGateway, tracker Tracker) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Gateway:  gw,
		Tracker:  tracker,
		Logger:   zerolog.Nop(),
		Location: testLocation,
		Scorer:   NewDurationScorer(10),
	})
	require.NoError(t, err)
	return svc
}

func TestService_Plan_Success(t *testing.T) {
	gw := newTestGateway()
	gw.profile.InternalMatches = nil
	tracker := &recordingTracker{}
	svc := newTestService(t, gw, tracker)

	q := testQuery()
	res, err := svc.Plan(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Options, 4)
	require.NotNil(t, res.Baseline)
	assert.Same(t, res.Baseline.Option(), res.Options[0])
	assert.Same(t, res.Baseline.Option(), res.Options[1])
	assert.Empty(t, res.Message)

	for _, o := range res.Options {
		require.NotNil(t, o.CarData)
		assert.Same(t, q, o.Query)
	}

	bus := res.Options[2].Transit[0].SegmentPatterns[0]
	assert.Equal(t, "s1", bus.StopID)
	assert.Equal(t, []string{"07:00", "08:15", "09:59"}, hoursMinutes(bus.DepartureTimes))

	require.NotNil(t, res.Journey)
	require.Len(t, res.Journey.Patterns, 2)
	assert.Equal(t, "P1", res.Journey.Patterns[0].PatternID)
	assert.Equal(t, "M", res.Journey.Patterns[1].Shield)

	require.NotNil(t, res.Summary)
	assert.Equal(t, "CAR", res.Summary.Best.Modes)

	assert.Equal(t, int32(1), gw.profileCalls.Load())
	assert.Equal(t, int32(2), gw.patternCalls.Load())

	events := tracker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventFoundRoute, events[0].Name)
	assert.Equal(t, res.RunID, events[0].RunID)
	assert.Equal(t, 4, events[0].Results)
	assert.Greater(t, events[0].Distance, 3000.0)
	assert.Less(t, events[0].Distance, 4000.0)
	assert.Same(t, res.Summary, events[0].Profile)
}

func TestService_Plan_InvalidQuerySkipsGateway(t *testing.T) {
	tests := []struct {
		name  string
		query func(q *Query)
		want  string
	}{
		{"missing endpoints", func(q *Query) { q.From, q.To = nil, nil }, MsgSpecifyBoth},
		{"missing to", func(q *Query) { q.To = nil }, MsgSpecifyTo},
		{"unlocated origin", func(q *Query) { q.From.Lat, q.From.Lon = 0, 0 }, MsgFromNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway()
			tracker := &recordingTracker{}
			svc := newTestService(t, gw, tracker)

			q := testQuery()
			tt.query(q)
			res, err := svc.Plan(context.Background(), q)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery))
			assert.Equal(t, StatusFailure, res.Status)
			assert.Equal(t, tt.want, res.Message)
			assert.Nil(t, res.Options)
			assert.Equal(t, int32(0), gw.profileCalls.Load())

			events := tracker.Events()
			require.Len(t, events, 1)
			assert.Equal(t, EventFailedFindRoute, events[0].Name)
			assert.Equal(t, tt.want, events[0].Error)
		})
	}
}

func TestService_Plan_EmptyResult(t *testing.T) {
	gw := newTestGateway()
	gw.profile = &Profile{}
	svc := newTestService(t, gw, nil)

	q := testQuery()
	q.Modes.Bike = false
	res, err := svc.Plan(context.Background(), q)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResult))
	assert.Equal(t, MsgEnableBike, res.Message)
	assert.Equal(t, int32(0), gw.patternCalls.Load())
}

func TestService_Plan_VertexNotFound(t *testing.T) {
	gw := newTestGateway()
	body := `{"error":"org.opentripplanner.routing.error.VertexNotFoundException: [from]"}`
	gw.profileErr = &Error{Op: "profile", Code: "VERTEX_NOT_FOUND", Message: "trip planner returned status 400", Body: body, Err: ErrTransport}
	svc := newTestService(t, gw, nil)

	res, err := svc.Plan(context.Background(), testQuery())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, MsgFromOutsideRegion, res.Message)
	assert.Equal(t, body, res.RawResponse)
}

func TestService_Plan_ResolutionFailureClearsResult(t *testing.T) {
	gw := newTestGateway()
	gw.stopTimes["r0"] = nil
	svc := newTestService(t, gw, nil)

	res, err := svc.Plan(context.Background(), testQuery())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolution))
	assert.Equal(t, StatusFailure, res.Status)
	assert.Nil(t, res.Options)
	assert.Nil(t, res.Journey)
	assert.Nil(t, res.Summary)
	assert.Nil(t, res.Baseline)
	assert.Equal(t, MsgNoResults, res.Message)
}

func TestService_Plan_AllOptionsFiltered(t *testing.T) {
	gw := newTestGateway()
	gw.profile.Options = []*Option{carOption(1500, 15000)}
	svc := newTestService(t, gw, nil)

	q := testQuery()
	q.Modes.Car = false
	res, err := svc.Plan(context.Background(), q)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResult))
	assert.Equal(t, MsgEnableCar, res.Message)
}

func TestService_Plan_TrackerErrorDoesNotFailRun(t *testing.T) {
	gw := newTestGateway()
	tracker := &recordingTracker{err: errors.New("sink down")}
	svc := newTestService(t, gw, tracker)

	res, err := svc.Plan(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestService_Plan_IgnoresCallerCancellation(t *testing.T) {
	gw := newTestGateway()
	svc := newTestService(t, gw, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Plan(ctx, testQuery())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestService_Start_CallbackOnce(t *testing.T) {
	gw := newTestGateway()
	svc := newTestService(t, gw, nil)

	var calls atomic.Int32
	c := svc.Start(context.Background(), testQuery(), func(*Result) { calls.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	// A late duplicate from the transport is ignored.
	assert.False(t, c.Resolve(&Result{Status: StatusFailure}))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StatusSuccess, c.Status())
}
