package plan

// Journey is the display summary of a ranked batch: endpoints plus the transit patterns it rides.
type Journey struct {
	From     *Place           `json:"from"`
	To       *Place           `json:"to"`
	Patterns []JourneyPattern `json:"patterns"`
}

// JourneyPattern is one ridden pattern with its route display data.
type JourneyPattern struct {
	PatternID string  `json:"patternId"`
	RouteID   string  `json:"routeId"`
	ShortName string  `json:"shortName,omitempty"`
	LongName  string  `json:"longName,omitempty"`
	Mode      Mode    `json:"mode"`
	Color     string  `json:"color"`
	Shield    string  `json:"shield"`
	Stops     []*Stop `json:"stops"`
}

// JourneyFormatter builds the journey summary of a ranked batch.
type JourneyFormatter interface {
	Journey(q *Query, md *Metadata, options []*Option) *Journey
}

// DefaultJourneyFormatter lists the patterns ridden by the ranked options in first-seen order.
type DefaultJourneyFormatter struct {
	Palette *Palette
}

// Journey implements JourneyFormatter.
func (f DefaultJourneyFormatter) Journey(q *Query, md *Metadata, options []*Option) *Journey {
	palette := f.Palette
	if palette == nil {
		palette = DefaultPalette()
	}

	j := &Journey{From: q.From, To: q.To, Patterns: []JourneyPattern{}}
	if md == nil {
		return j
	}

	for _, id := range PatternIDs(options) {
		pattern, ok := md.Patterns[id]
		if !ok {
			continue
		}
		route, ok := md.Routes[pattern.RouteID]
		if !ok {
			continue
		}
		j.Patterns = append(j.Patterns, JourneyPattern{
			PatternID: id,
			RouteID:   route.ID,
			ShortName: route.ShortName,
			LongName:  route.LongName,
			Mode:      route.Mode,
			Color:     palette.Color(route),
			Shield:    Shield(route),
			Stops:     pattern.Stops,
		})
	}
	return j
}
