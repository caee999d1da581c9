package plan

import "strings"

// DefaultColorKey is the palette entry used when no other key matches.
const DefaultColorKey = "METROBUS"

// Palette maps agency codes, line numbers and modes to route colors.
// A Palette is read-only after construction and safe for concurrent use.
type Palette struct {
	colors map[string]string
}

// NewPalette copies colors into a new palette. Colors are hex values without the leading '#'.
func NewPalette(colors map[string]string) *Palette {
	p := &Palette{colors: make(map[string]string, len(colors))}
	for k, v := range colors {
		p.colors[strings.ToUpper(k)] = strings.TrimPrefix(v, "#")
	}
	return p
}

// DefaultPalette returns the Washington DC area palette.
func DefaultPalette() *Palette {
	return NewPalette(map[string]string{
		"1":                 "55b848",
		"AGENCY#1":          "55b848",
		"AGENCY#3":          "2c9f4b",
		"ART":               "55b848",
		"BLUE":              "0076bf",
		"CABI":              "d02228",
		"FAIRFAX CONNECTOR": "ffff43",
		"GREEN":             "00a84f",
		"MCRO":              "355997",
		"METROBUS":          "173964",
		"ORANGE":            "f7931d",
		"PRTC":              "5398a0",
		"RED":               "e21836",
		"SILVER":            "a0a2a0",
		"YELLOW":            "ffd200",
	})
}

func (p *Palette) lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	c, ok := p.colors[strings.ToUpper(key)]
	return c, ok
}

// Color returns the display color for a route as "#rrggbb".
// An explicit route color wins, then the agency code, the line, the mode and finally the default entry.
func (p *Palette) Color(r *Route) string {
	if r.Color != "" {
		return "#" + strings.TrimPrefix(r.Color, "#")
	}

	agency, line := splitRouteID(r.ID)
	for _, key := range []string{agency, line, string(r.Mode)} {
		if c, ok := p.lookup(key); ok {
			return "#" + c
		}
	}

	c, _ := p.lookup(DefaultColorKey)
	return "#" + c
}

// Shield returns the short label drawn on the route badge.
func Shield(r *Route) string {
	agency, _ := splitRouteID(r.ID)
	if agency == "DC" && r.Mode == ModeSubway {
		return "M"
	}
	if r.ShortName != "" {
		return r.ShortName
	}
	return r.LongName
}

// splitRouteID splits a gateway route id of the form "AGENCY:LINE".
func splitRouteID(id string) (agency, line string) {
	agency, line, _ = strings.Cut(id, ":")
	return agency, line
}
