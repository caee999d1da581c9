// Package plan enriches and ranks the itineraries a trip planner returns for one commute query.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/commutekit/commutekit/pkg/geo"
)

// Sentinel errors for planning runs.
var (
	// ErrTransport indicates the trip planner could not be reached or answered with a non-200 status.
	ErrTransport = errors.New("trip planner request failed")
	// ErrDecode indicates the trip planner answered with a body that is not valid JSON.
	ErrDecode = errors.New("trip planner response could not be decoded")
	// ErrResolution indicates an itinerary references a pattern, route or stop missing from fetched metadata.
	ErrResolution = errors.New("itinerary references unknown transit metadata")
	// ErrEmptyResult indicates the trip planner returned no itineraries.
	ErrEmptyResult = errors.New("no itineraries found")
	// ErrInvalidQuery indicates the query is missing an endpoint or has unusable coordinates.
	ErrInvalidQuery = errors.New("invalid query")
)

// Gateway is the trip-planning backend the pipeline reads from.
type Gateway interface {
	// Profile runs a profile routing query and returns the raw itinerary batch.
	Profile(ctx context.Context, q *Query) (*Profile, error)
	// Routes returns the full route table.
	Routes(ctx context.Context) ([]*Route, error)
	// Pattern returns one pattern by id.
	Pattern(ctx context.Context, id string) (*Pattern, error)
	// StopTimes returns the full-day schedule of a stop, grouped by pattern.
	// The date is formatted YYYYMMDD.
	StopTimes(ctx context.Context, stopID, date string) ([]*PatternTimes, error)
	// Name returns the gateway identifier for logging.
	Name() string
}

// Mode is a trip planner travel mode.
type Mode string

const (
	ModeWalk    Mode = "WALK"
	ModeBicycle Mode = "BICYCLE"
	ModeCar     Mode = "CAR"
	ModeBus     Mode = "BUS"
	ModeSubway  Mode = "SUBWAY"
	ModeRail    Mode = "RAIL"
	ModeTram    Mode = "TRAM"
	ModeFerry   Mode = "FERRY"
)

// IsTrain reports whether the mode is served by the "train" toggle.
func (m Mode) IsTrain() bool {
	return m == ModeSubway || m == ModeRail || m == ModeTram
}

// Days selects which kind of day the commute happens on.
type Days string

const (
	DaysWeekdays Days = "M—F"
	DaysSaturday Days = "Sat"
	DaysSunday   Days = "Sun"
)

// ModeSet holds the travel modes a query enables.
type ModeSet struct {
	Bus   bool `json:"bus"`
	Train bool `json:"train"`
	Bike  bool `json:"bike"`
	Car   bool `json:"car"`
	Walk  bool `json:"walk"`
}

// Place is one end of a commute.
type Place struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Coordinate returns the place location.
func (p *Place) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// Query is one planning request. It is not modified by a run.
type Query struct {
	From      *Place  `json:"from"`
	To        *Place  `json:"to"`
	Date      string  `json:"date"` // YYYY-MM-DD
	StartHour int     `json:"startHour"`
	EndHour   int     `json:"endHour"`
	Modes     ModeSet `json:"modes"`
	Days      Days    `json:"days"`
}

// CoordinateIsValid reports whether a place has a usable location.
func CoordinateIsValid(p *Place) bool {
	return p != nil && p.Coordinate().IsValid()
}

// ValidCoordinates reports whether both endpoints have usable locations.
func (q *Query) ValidCoordinates() bool {
	return CoordinateIsValid(q.From) && CoordinateIsValid(q.To)
}

// HasFrom reports whether the origin was specified.
func (q *Query) HasFrom() bool {
	return q.From != nil && (q.From.Address != "" || q.From.Lat != 0 || q.From.Lon != 0)
}

// HasTo reports whether the destination was specified.
func (q *Query) HasTo() bool {
	return q.To != nil && (q.To.Address != "" || q.To.Lat != 0 || q.To.Lon != 0)
}

// StopTimesDate returns the travel date in the YYYYMMDD form schedule lookups use.
func (q *Query) StopTimesDate() string {
	out := make([]byte, 0, len(q.Date))
	for i := 0; i < len(q.Date); i++ {
		if q.Date[i] != '-' {
			out = append(out, q.Date[i])
		}
	}
	return string(out)
}

// Stats summarizes a duration distribution in seconds.
type Stats struct {
	Min int `json:"min"`
	Avg int `json:"avg"`
	Max int `json:"max"`
}

// StreetLeg is an access, egress or direct street segment.
type StreetLeg struct {
	Mode     Mode    `json:"mode"`
	Time     int     `json:"time"`     // seconds
	Distance float64 `json:"distance"` // meters
}

// SegmentPattern is the part of a pattern one transit leg rides.
type SegmentPattern struct {
	PatternID string `json:"patternId"`
	FromIndex int    `json:"fromIndex"`
	ToIndex   int    `json:"toIndex"`
	NTrips    int    `json:"nTrips,omitempty"`

	// Filled by the metadata resolver.
	StopID    string `json:"stopId,omitempty"`
	RouteID   string `json:"routeId,omitempty"`
	ShortName string `json:"shortName,omitempty"`
	LongName  string `json:"longName,omitempty"`
	Color     string `json:"color,omitempty"`
	Shield    string `json:"shield,omitempty"`

	// Filled by the departure populator, ascending.
	DepartureTimes []time.Time `json:"departureTimes,omitempty"`
}

// TransitLeg is one ride between boarding and alighting.
type TransitLeg struct {
	Mode            Mode              `json:"mode"`
	FromName        string            `json:"fromName"`
	ToName          string            `json:"toName"`
	SegmentPatterns []*SegmentPattern `json:"segmentPatterns"`
	RideStats       Stats             `json:"rideStats"`
	WaitStats       Stats             `json:"waitStats"`
}

// CarData compares an option with the driving baseline.
type CarData struct {
	Cost      float64 `json:"cost"`
	Emissions float64 `json:"emissions"`
	Time      float64 `json:"time"`
}

// Rideshare holds the carpool matches attached to the driving baseline.
type Rideshare struct {
	ExternalCarpoolMatches      int               `json:"externalCarpoolMatches"`
	HasRideshareMatches         bool              `json:"hasRideshareMatches"`
	InternalCarpoolMatches      []json.RawMessage `json:"internalCarpoolMatches"`
	InternalCarpoolMatchesCount int               `json:"internalCarpoolMatchesCount"`
}

// Option is one candidate itinerary.
type Option struct {
	Summary string        `json:"summary"`
	Stats   Stats         `json:"stats"`
	Access  []StreetLeg   `json:"access"`
	Transit []*TransitLeg `json:"transit,omitempty"`
	Egress  []StreetLeg   `json:"egress,omitempty"`
	Fare    float64       `json:"fare,omitempty"`

	// Aggregate metrics set by the scorer. Times are minutes, distances meters.
	Modes         []string `json:"modes"`
	Time          float64  `json:"time"`
	TimeInTransit float64  `json:"timeInTransit"`
	Cost          float64  `json:"cost"`
	Emissions     float64  `json:"emissions"`
	Calories      float64  `json:"calories"`
	WalkDistance  float64  `json:"walkDistance"`
	BikeDistance  float64  `json:"bikeDistance"`
	DriveDistance float64  `json:"driveDistance"`

	// Set by the baseline injector.
	CarData   *CarData   `json:"carData,omitempty"`
	Rideshare *Rideshare `json:"rideshare,omitempty"`
	Query     *Query     `json:"-"`
}

// AccessMode returns the mode of the first access leg, or "" if there is none.
func (o *Option) AccessMode() Mode {
	if len(o.Access) == 0 {
		return ""
	}
	return o.Access[0].Mode
}

// HasTransit reports whether the option rides any transit.
func (o *Option) HasTransit() bool {
	return len(o.Transit) > 0
}

// Average returns the average travel time in minutes.
func (o *Option) Average() float64 {
	return o.Time
}

// Profile is the raw result of a profile query.
type Profile struct {
	Options []*Option
	// ExternalMatches counts carpool matches from outside providers.
	ExternalMatches int
	// RidepoolMatches holds the internal ridepool matches as returned by the gateway.
	RidepoolMatches []json.RawMessage
	// InternalMatches holds commuter matches reported alongside the options.
	InternalMatches []json.RawMessage
}

// Stop is a transit stop on a pattern.
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Pattern is an ordered stop sequence served by a route.
type Pattern struct {
	ID      string  `json:"id"`
	RouteID string  `json:"routeId"`
	Desc    string  `json:"desc,omitempty"`
	Stops   []*Stop `json:"stops"`
}

// Route is a transit route.
type Route struct {
	ID         string `json:"id"`
	ShortName  string `json:"shortName,omitempty"`
	LongName   string `json:"longName,omitempty"`
	Mode       Mode   `json:"mode"`
	Color      string `json:"color,omitempty"`
	AgencyName string `json:"agencyName,omitempty"`
}

// ScheduledTime is one scheduled call at a stop.
type ScheduledTime struct {
	TripID             string
	ServiceDay         int64 // epoch seconds of local midnight
	ScheduledDeparture int64 // seconds after ServiceDay
}

// Instant returns the departure instant in milliseconds since the epoch.
func (t ScheduledTime) Instant() int64 {
	return (t.ServiceDay + t.ScheduledDeparture) * 1000
}

// PatternTimes is a stop's schedule for one pattern.
type PatternTimes struct {
	PatternID string
	Times     []ScheduledTime
}

// Status is the state of a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Status  Status
	Options []*Option
	// Baseline is nil when no driving option exists.
	Baseline *DriveBaseline
	Journey  *Journey
	Summary  *Summary
	Matches  []json.RawMessage

	// Set on failure.
	Message     string
	Err         error
	RawResponse string
}

// Error provides detailed error information for a failed run stage.
type Error struct {
	Op      string // Stage or gateway operation that failed
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Body    string // Raw gateway response body, if any
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ResponseText returns the raw gateway body carried by err, if any.
func ResponseText(err error) string {
	var planErr *Error
	if errors.As(err, &planErr) {
		return planErr.Body
	}
	return ""
}

func resolutionError(code, message string) *Error {
	return &Error{
		Op:      "resolve",
		Code:    code,
		Message: message,
		Err:     ErrResolution,
	}
}
