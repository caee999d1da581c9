package plan

import "encoding/json"

// DrivingPredicate reports whether an option is equivalent to driving under q.
type DrivingPredicate func(o *Option, q *Query) bool

// IsDirectCar treats an option as driving when it starts by car and rides no transit.
func IsDirectCar(o *Option, _ *Query) bool {
	return o.AccessMode() == ModeCar && !o.HasTransit()
}

// DriveBaseline is the single driving option of a run. Every option that is
// equivalent to driving refers to the same *Option; it is never copied.
type DriveBaseline struct {
	option *Option
}

// FindBaseline returns the first option that starts by car and rides no transit, or nil.
func FindBaseline(options []*Option) *DriveBaseline {
	for _, o := range options {
		if o != nil && o.AccessMode() == ModeCar && !o.HasTransit() {
			return &DriveBaseline{option: o}
		}
	}
	return nil
}

// Option returns the baseline option.
func (b *DriveBaseline) Option() *Option {
	return b.option
}

// CarData returns the comparison values every option carries.
func (b *DriveBaseline) CarData() *CarData {
	return &CarData{
		Cost:      b.option.Cost,
		Emissions: b.option.Emissions,
		Time:      b.option.Average(),
	}
}

// AttachRideshare records carpool matches on the baseline.
func (b *DriveBaseline) AttachRideshare(external int, ridepool []json.RawMessage) {
	if ridepool == nil {
		ridepool = []json.RawMessage{}
	}
	b.option.Rideshare = &Rideshare{
		ExternalCarpoolMatches:      external,
		HasRideshareMatches:         external > 0 || len(ridepool) > 0,
		InternalCarpoolMatches:      ridepool,
		InternalCarpoolMatchesCount: len(ridepool),
	}
}

// InjectBaseline establishes the driving baseline of a ranked batch and attaches comparison data
// to every option, in place. Order is preserved. When car is enabled, every option isDriving
// accepts is replaced by the baseline option. Without a baseline no comparison data is attached.
func InjectBaseline(q *Query, options []*Option, profile *Profile, isDriving DrivingPredicate) *DriveBaseline {
	if isDriving == nil {
		isDriving = IsDirectCar
	}

	baseline := FindBaseline(options)
	if baseline != nil && profile != nil {
		baseline.AttachRideshare(profile.ExternalMatches, profile.RidepoolMatches)
	}

	var carData *CarData
	if baseline != nil {
		carData = baseline.CarData()
	}

	for i, o := range options {
		if baseline != nil && q.Modes.Car && isDriving(o, q) {
			o = baseline.option
			options[i] = o
		}
		o.Query = q
		if carData != nil {
			o.CarData = carData
		}
	}

	return baseline
}
