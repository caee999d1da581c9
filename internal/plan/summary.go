package plan

import "strings"

// Summary describes a successful batch for analytics.
type Summary struct {
	// AllModes concatenates every option's modes. Repeats are kept.
	AllModes string       `json:"allModes"`
	Best     *BestSummary `json:"best,omitempty"`
}

// BestSummary is a snapshot of the top-ranked option.
type BestSummary struct {
	Modes         string  `json:"modes"`
	Time          float64 `json:"time"`
	TimeInTransit float64 `json:"timeInTransit"`
	Calories      float64 `json:"calories"`
	Cost          float64 `json:"cost"`
	BikeDistance  float64 `json:"bikeDistance"`
	DriveDistance float64 `json:"driveDistance"`
	Emissions     float64 `json:"emissions"`
	WalkDistance  float64 `json:"walkDistance"`
}

// Summarize builds the summary of a ranked batch.
func Summarize(options []*Option) *Summary {
	s := &Summary{}
	if len(options) == 0 {
		return s
	}

	parts := make([]string, 0, len(options))
	for _, o := range options {
		if modes := strings.Join(o.Modes, ","); modes != "" {
			parts = append(parts, modes)
		}
	}
	s.AllModes = strings.Join(parts, ",")

	best := options[0]
	s.Best = &BestSummary{
		Modes:         strings.Join(best.Modes, ","),
		Time:          best.Time,
		TimeInTransit: best.TimeInTransit,
		Calories:      best.Calories,
		Cost:          best.Cost,
		BikeDistance:  best.BikeDistance,
		DriveDistance: best.DriveDistance,
		Emissions:     best.Emissions,
		WalkDistance:  best.WalkDistance,
	}
	return s
}
