package plan

import "sort"

// Scorer selects and orders the options of a raw batch.
type Scorer interface {
	Score(q *Query, options []*Option) []*Option
}

const metersPerMile = 1609.344

// DurationScorer derives option metrics, drops options that use a disabled mode
// and ranks the rest by average travel time.
type DurationScorer struct {
	// Limit caps the number of options kept (default: 4).
	Limit int

	CarCostPerMile      float64 // default: 0.56
	CarParkingCost      float64 // default: 10
	EmissionsPerCarMile float64 // kg CO2, default: 0.404
	WalkCaloriesPerMile float64 // default: 90
	BikeCaloriesPerMile float64 // default: 45
}

// NewDurationScorer creates a scorer with default costs.
func NewDurationScorer(limit int) *DurationScorer {
	if limit <= 0 {
		limit = 4
	}
	return &DurationScorer{
		Limit:               limit,
		CarCostPerMile:      0.56,
		CarParkingCost:      10,
		EmissionsPerCarMile: 0.404,
		WalkCaloriesPerMile: 90,
		BikeCaloriesPerMile: 45,
	}
}

// Score implements Scorer. The input slice is not modified.
func (s *DurationScorer) Score(q *Query, options []*Option) []*Option {
	kept := make([]*Option, 0, len(options))
	for _, o := range options {
		if o == nil {
			continue
		}
		s.measure(o)
		if allowed(q, o) {
			kept = append(kept, o)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Time < kept[j].Time
	})

	if s.Limit > 0 && len(kept) > s.Limit {
		kept = kept[:s.Limit]
	}
	return kept
}

func (s *DurationScorer) measure(o *Option) {
	o.WalkDistance, o.BikeDistance, o.DriveDistance = 0, 0, 0
	for _, legs := range [][]StreetLeg{o.Access, o.Egress} {
		for _, leg := range legs {
			switch leg.Mode {
			case ModeWalk:
				o.WalkDistance += leg.Distance
			case ModeBicycle:
				o.BikeDistance += leg.Distance
			case ModeCar:
				o.DriveDistance += leg.Distance
			}
		}
	}

	o.Time = float64(o.Stats.Avg) / 60
	o.TimeInTransit = 0
	for _, leg := range o.Transit {
		o.TimeInTransit += float64(leg.RideStats.Avg) / 60
	}

	driveMiles := o.DriveDistance / metersPerMile
	o.Cost = o.Fare
	if driveMiles > 0 {
		o.Cost += driveMiles*s.CarCostPerMile + s.CarParkingCost
	}
	o.Emissions = driveMiles * s.EmissionsPerCarMile
	o.Calories = o.WalkDistance/metersPerMile*s.WalkCaloriesPerMile +
		o.BikeDistance/metersPerMile*s.BikeCaloriesPerMile

	o.Modes = optionModes(o)
}

// optionModes lists the distinct modes of an option in travel order.
func optionModes(o *Option) []string {
	var modes []string
	seen := make(map[Mode]struct{})
	add := func(m Mode) {
		if m == "" {
			return
		}
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		modes = append(modes, string(m))
	}

	for _, leg := range o.Access {
		add(leg.Mode)
	}
	for _, leg := range o.Transit {
		add(leg.Mode)
	}
	for _, leg := range o.Egress {
		add(leg.Mode)
	}
	return modes
}

func allowed(q *Query, o *Option) bool {
	for _, m := range o.Modes {
		switch mode := Mode(m); {
		case mode == ModeBus && !q.Modes.Bus:
			return false
		case mode.IsTrain() && !q.Modes.Train:
			return false
		case mode == ModeBicycle && !q.Modes.Bike:
			return false
		case mode == ModeCar && !q.Modes.Car:
			return false
		}
	}
	return true
}
