package otp

import (
	"encoding/json"

	"github.com/commutekit/commutekit/internal/plan"
)

// profileResponse is the body of GET /profile.
type profileResponse struct {
	// Profile holds the options. Some deployments name the field "options".
	Profile         []otpOption       `json:"profile"`
	Options         []otpOption       `json:"options"`
	ExternalMatches int               `json:"externalMatches"`
	RidepoolMatches []json.RawMessage `json:"ridepoolMatches"`
	InternalMatches []json.RawMessage `json:"internalMatches"`
}

type otpStats struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	Max float64 `json:"max"`
}

type otpStreetSegment struct {
	Mode     string  `json:"mode"`
	Time     float64 `json:"time"`
	Distance float64 `json:"distance"`
}

type otpPlace struct {
	Name string `json:"name"`
}

type otpSegmentPattern struct {
	PatternID string `json:"patternId"`
	FromIndex int    `json:"fromIndex"`
	ToIndex   int    `json:"toIndex"`
	NTrips    int    `json:"nTrips"`
}

type otpTransitSegment struct {
	Mode            string              `json:"mode"`
	From            otpPlace            `json:"from"`
	To              otpPlace            `json:"to"`
	SegmentPatterns []otpSegmentPattern `json:"segmentPatterns"`
	RideStats       otpStats            `json:"rideStats"`
	WaitStats       otpStats            `json:"waitStats"`
}

type otpFare struct {
	Peak float64 `json:"peak"`
}

type otpOption struct {
	Summary string              `json:"summary"`
	Stats   otpStats            `json:"stats"`
	Access  []otpStreetSegment  `json:"access"`
	Transit []otpTransitSegment `json:"transit"`
	Egress  []otpStreetSegment  `json:"egress"`
	Fares   []otpFare           `json:"fares"`
}

// otpPattern is the body of GET /index/patterns/{id}.
type otpPattern struct {
	ID      string    `json:"id"`
	Desc    string    `json:"desc"`
	RouteID string    `json:"routeId"`
	Stops   []otpStop `json:"stops"`
}

type otpStop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// otpRoute is one element of GET /index/routes.
type otpRoute struct {
	ID         string `json:"id"`
	ShortName  string `json:"shortName"`
	LongName   string `json:"longName"`
	Mode       string `json:"mode"`
	Color      string `json:"color"`
	AgencyName string `json:"agencyName"`
}

// otpStopTimes is one element of GET /index/stops/{id}/stoptimes/{date}.
type otpStopTimes struct {
	Pattern struct {
		ID   string `json:"id"`
		Desc string `json:"desc"`
	} `json:"pattern"`
	Times []otpTripTime `json:"times"`
}

type otpTripTime struct {
	StopID             string `json:"stopId"`
	TripID             string `json:"tripId"`
	ServiceDay         int64  `json:"serviceDay"`
	ScheduledDeparture int64  `json:"scheduledDeparture"`
}

func (r *profileResponse) toProfile() *plan.Profile {
	raw := r.Profile
	if len(raw) == 0 {
		raw = r.Options
	}

	options := make([]*plan.Option, 0, len(raw))
	for i := range raw {
		options = append(options, raw[i].toOption())
	}

	return &plan.Profile{
		Options:         options,
		ExternalMatches: r.ExternalMatches,
		RidepoolMatches: r.RidepoolMatches,
		InternalMatches: r.InternalMatches,
	}
}

func (s otpStats) toStats() plan.Stats {
	return plan.Stats{Min: int(s.Min), Avg: int(s.Avg), Max: int(s.Max)}
}

func toStreetLegs(segments []otpStreetSegment) []plan.StreetLeg {
	if len(segments) == 0 {
		return nil
	}
	legs := make([]plan.StreetLeg, 0, len(segments))
	for _, s := range segments {
		legs = append(legs, plan.StreetLeg{
			Mode:     plan.Mode(s.Mode),
			Time:     int(s.Time),
			Distance: s.Distance,
		})
	}
	return legs
}

func (o *otpOption) toOption() *plan.Option {
	opt := &plan.Option{
		Summary: o.Summary,
		Stats:   o.Stats.toStats(),
		Access:  toStreetLegs(o.Access),
		Egress:  toStreetLegs(o.Egress),
	}

	for _, f := range o.Fares {
		opt.Fare += f.Peak
	}

	for _, t := range o.Transit {
		leg := &plan.TransitLeg{
			Mode:      plan.Mode(t.Mode),
			FromName:  t.From.Name,
			ToName:    t.To.Name,
			RideStats: t.RideStats.toStats(),
			WaitStats: t.WaitStats.toStats(),
		}
		for _, sp := range t.SegmentPatterns {
			leg.SegmentPatterns = append(leg.SegmentPatterns, &plan.SegmentPattern{
				PatternID: sp.PatternID,
				FromIndex: sp.FromIndex,
				ToIndex:   sp.ToIndex,
				NTrips:    sp.NTrips,
			})
		}
		opt.Transit = append(opt.Transit, leg)
	}

	return opt
}

func (p *otpPattern) toPattern() *plan.Pattern {
	stops := make([]*plan.Stop, 0, len(p.Stops))
	for _, s := range p.Stops {
		stops = append(stops, &plan.Stop{ID: s.ID, Name: s.Name, Lat: s.Lat, Lon: s.Lon})
	}
	return &plan.Pattern{
		ID:      p.ID,
		RouteID: p.RouteID,
		Desc:    p.Desc,
		Stops:   stops,
	}
}

func (r *otpRoute) toRoute() *plan.Route {
	return &plan.Route{
		ID:         r.ID,
		ShortName:  r.ShortName,
		LongName:   r.LongName,
		Mode:       plan.Mode(r.Mode),
		Color:      r.Color,
		AgencyName: r.AgencyName,
	}
}

func toPatternTimes(entries []otpStopTimes) []*plan.PatternTimes {
	out := make([]*plan.PatternTimes, 0, len(entries))
	for _, e := range entries {
		pt := &plan.PatternTimes{
			PatternID: e.Pattern.ID,
			Times:     make([]plan.ScheduledTime, 0, len(e.Times)),
		}
		for _, t := range e.Times {
			pt.Times = append(pt.Times, plan.ScheduledTime{
				TripID:             t.TripID,
				ServiceDay:         t.ServiceDay,
				ScheduledDeparture: t.ScheduledDeparture,
			})
		}
		out = append(out, pt)
	}
	return out
}
