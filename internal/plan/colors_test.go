package plan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPalette_Color(t *testing.T) {
	palette := DefaultPalette()

	tests := []struct {
		name  string
		route *Route
		want  string
	}{
		{
			name:  "explicit color wins",
			route: &Route{ID: "ART:1", Mode: ModeBus, Color: "123456"},
			want:  "#123456",
		},
		{
			name:  "explicit color with hash",
			route: &Route{ID: "ART:1", Mode: ModeBus, Color: "#abcdef"},
			want:  "#abcdef",
		},
		{
			name:  "agency beats line",
			route: &Route{ID: "MCRO:RED", Mode: ModeBus},
			want:  "#355997",
		},
		{
			name:  "line beats mode",
			route: &Route{ID: "DC:ORANGE", Mode: Mode("METROBUS")},
			want:  "#f7931d",
		},
		{
			name:  "line lookup is case insensitive",
			route: &Route{ID: "DC:silver", Mode: ModeSubway},
			want:  "#a0a2a0",
		},
		{
			name:  "default when nothing matches",
			route: &Route{ID: "XX:99", Mode: ModeFerry},
			want:  "#173964",
		},
		{
			name:  "id without line",
			route: &Route{ID: "CABI", Mode: ModeBicycle},
			want:  "#d02228",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, palette.Color(tt.route))
		})
	}
}

func TestPalette_ModeBeatsDefault(t *testing.T) {
	palette := NewPalette(map[string]string{
		"ART":      "55b848",
		"BUS":      "bb0000",
		"METROBUS": "173964",
	})

	assert.Equal(t, "#bb0000", palette.Color(&Route{ID: "XX:99", Mode: ModeBus}))
	assert.Equal(t, "#55b848", palette.Color(&Route{ID: "ART:99", Mode: ModeBus}), "agency beats mode")
	assert.Equal(t, "#173964", palette.Color(&Route{ID: "XX:99", Mode: ModeFerry}))
}

func TestPalette_CopiesInput(t *testing.T) {
	colors := map[string]string{"METROBUS": "000000", "blue": "#0000ff"}
	palette := NewPalette(colors)
	colors["METROBUS"] = "ffffff"

	assert.Equal(t, "#000000", palette.Color(&Route{ID: "X:Y"}))
	assert.Equal(t, "#0000ff", palette.Color(&Route{ID: "DC:BLUE"}))
}

func TestPalette_ConcurrentReads(t *testing.T) {
	palette := DefaultPalette()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "#e21836", palette.Color(&Route{ID: "DC:RED", Mode: ModeSubway}))
		}()
	}
	wg.Wait()
}

func TestShield(t *testing.T) {
	tests := []struct {
		name  string
		route *Route
		want  string
	}{
		{"DC subway is M", &Route{ID: "DC:RED", Mode: ModeSubway, ShortName: "RD", LongName: "Red Line"}, "M"},
		{"DC bus uses short name", &Route{ID: "DC:X2", Mode: ModeBus, ShortName: "X2", LongName: "Benning Road"}, "X2"},
		{"non DC subway uses short name", &Route{ID: "MTA:1", Mode: ModeSubway, ShortName: "1"}, "1"},
		{"long name fallback", &Route{ID: "ART:45", Mode: ModeBus, LongName: "Columbia Pike"}, "Columbia Pike"},
		{"no names", &Route{ID: "ART:45", Mode: ModeBus}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Shield(tt.route))
		})
	}
}
