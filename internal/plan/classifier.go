package plan

import "strings"

// VertexNotFoundMarker appears in the gateway response when an endpoint cannot be snapped to the street network.
const VertexNotFoundMarker = "VertexNotFoundException"

// Diagnostic messages reported for failed runs.
const (
	MsgSpecifyBoth       = "Please specify the from and to locations."
	MsgSpecifyFrom       = "Please specify the from location."
	MsgSpecifyTo         = "Please specify the to location."
	MsgNoResults         = "No results! "
	MsgFromOutsideRegion = MsgNoResults + "The from address entered is outside the supported region."
	MsgToOutsideRegion   = MsgNoResults + "The to address entered is outside the supported region."
	MsgFromNotFound      = MsgNoResults + "From address could not be found. Please enter a valid address."
	MsgToNotFound        = MsgNoResults + "To address could not be found. Please enter a valid address."
	MsgEnableTransit     = MsgNoResults + "Try turning all transit modes on."
	MsgEnableBike        = MsgNoResults + "Add biking to see bike-to-transit results."
	MsgEnableCar         = MsgNoResults + "Unfortunately we were unable to find non-driving results. Try turning on driving."
	MsgWidenWindow       = MsgNoResults + "Make sure the hours you specified are large enough to encompass the length of the journey."
	MsgTryWeekday        = MsgNoResults + "Transit runs less often on the weekends. Try switching to a weekday."
)

// Outcome is the input of failure classification.
type Outcome struct {
	Query *Query
	// Results is the number of itineraries the gateway returned.
	Results int
	// ResponseText is the raw gateway body, if any.
	ResponseText string
	// Code is the structured gateway error code, if any.
	Code string
}

// Classify turns a failed run into one diagnostic message. Rules are checked in priority order
// and the first match wins.
func Classify(o Outcome) string {
	q := o.Query
	if q == nil {
		return MsgSpecifyBoth
	}

	switch {
	case !q.HasFrom() && !q.HasTo():
		return MsgSpecifyBoth
	case !q.HasFrom():
		return MsgSpecifyFrom
	case !q.HasTo():
		return MsgSpecifyTo
	}

	if o.Results == 0 {
		if o.Code == "VERTEX_NOT_FOUND" || strings.Contains(o.ResponseText, VertexNotFoundMarker) {
			if strings.Contains(o.ResponseText, "[from]") {
				return MsgFromOutsideRegion
			}
			return MsgToOutsideRegion
		}
		if !q.ValidCoordinates() {
			if CoordinateIsValid(q.From) {
				return MsgToNotFound
			}
			return MsgFromNotFound
		}
		if !q.Modes.Bus || !q.Modes.Train {
			return MsgEnableTransit
		}
		if !q.Modes.Bike {
			return MsgEnableBike
		}
		if !q.Modes.Car {
			return MsgEnableCar
		}
	}

	if q.EndHour-q.StartHour < 2 {
		return MsgWidenWindow
	}
	if q.Days != "" && q.Days != DaysWeekdays {
		return MsgTryWeekday
	}

	return MsgNoResults
}
