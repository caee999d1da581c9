package models

import (
	"encoding/json"

	"github.com/commutekit/commutekit/internal/plan"
)

// Request mode names.
const (
	ModeBus   = "bus"
	ModeTrain = "train"
	ModeBike  = "bike"
	ModeCar   = "car"
	ModeWalk  = "walk"
)

// Request day names.
const (
	DaysWeekdays = "weekdays"
	DaysSaturday = "saturday"
	DaysSunday   = "sunday"
)

// Endpoint is an origin or destination. Either the address or the coordinates may be set;
// a missing endpoint is reported as a plan failure, not a validation error.
type Endpoint struct {
	Address string  `json:"address,omitempty" validate:"max=512"`
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// PlanRequest is the body of POST /v1/plans.
type PlanRequest struct {
	Origin      *Endpoint `json:"origin"`
	Destination *Endpoint `json:"destination"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	StartHour   int       `json:"startHour" validate:"min=0,max=23"`
	EndHour     int       `json:"endHour" validate:"min=1,max=24,gtfield=StartHour"`
	// Modes lists enabled modes. Empty enables all of them.
	Modes []string `json:"modes" validate:"dive,oneof=bus train bike car walk"`
	Days  string   `json:"days,omitempty" validate:"omitempty,oneof=weekdays saturday sunday"`
}

// Query converts the request into a pipeline query.
func (r *PlanRequest) Query() *plan.Query {
	q := &plan.Query{
		From:      r.Origin.place(),
		To:        r.Destination.place(),
		Date:      r.Date,
		StartHour: r.StartHour,
		EndHour:   r.EndHour,
		Days:      days(r.Days),
	}

	if len(r.Modes) == 0 {
		q.Modes = plan.ModeSet{Bus: true, Train: true, Bike: true, Car: true, Walk: true}
		return q
	}
	for _, m := range r.Modes {
		switch m {
		case ModeBus:
			q.Modes.Bus = true
		case ModeTrain:
			q.Modes.Train = true
		case ModeBike:
			q.Modes.Bike = true
		case ModeCar:
			q.Modes.Car = true
		case ModeWalk:
			q.Modes.Walk = true
		}
	}
	return q
}

func (e *Endpoint) place() *plan.Place {
	if e == nil {
		return nil
	}
	return &plan.Place{Address: e.Address, Lat: e.Lat, Lon: e.Lon}
}

func days(s string) plan.Days {
	switch s {
	case DaysSaturday:
		return plan.DaysSaturday
	case DaysSunday:
		return plan.DaysSunday
	case DaysWeekdays:
		return plan.DaysWeekdays
	default:
		return ""
	}
}

// PlanResponse is the body of a completed plan run. Failed runs carry only the message.
type PlanResponse struct {
	RunID    string            `json:"runId"`
	Status   plan.Status       `json:"status"`
	Options  []*plan.Option    `json:"options,omitempty"`
	Baseline *plan.Option      `json:"baseline,omitempty"`
	CarData  *plan.CarData     `json:"carData,omitempty"`
	Journey  *plan.Journey     `json:"journey,omitempty"`
	Summary  *plan.Summary     `json:"summary,omitempty"`
	Matches  []json.RawMessage `json:"matches,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// NewPlanResponse builds the response body for a run result.
func NewPlanResponse(res *plan.Result) *PlanResponse {
	resp := &PlanResponse{
		RunID:   res.RunID,
		Status:  res.Status,
		Message: res.Message,
	}
	if res.Status != plan.StatusSuccess {
		return resp
	}

	resp.Options = res.Options
	resp.Journey = res.Journey
	resp.Summary = res.Summary
	resp.Matches = res.Matches
	if res.Baseline != nil {
		resp.Baseline = res.Baseline.Option()
		resp.CarData = res.Baseline.CarData()
	}
	return resp
}
