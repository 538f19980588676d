package path

import "math"

// NotSet marks an absent time or cost. Times are seconds since the service day midnight.
const NotSet = math.MinInt32

// StreetMode is the mode used on an access, egress or direct street sub-path.
type StreetMode uint8

const (
	Walk StreetMode = iota
	Bicycle
	BikeRental
	BikeToPark
	CarToPark
	Car
	Flex
)

var streetModeNames = [...]string{"WALK", "BICYCLE", "BIKE_RENTAL", "BIKE_TO_PARK", "CAR_TO_PARK", "CAR", "FLEX"}

func (m StreetMode) String() string {
	if int(m) < len(streetModeNames) {
		return streetModeNames[m]
	}
	return "UNKNOWN"
}

// ParseStreetMode accepts the names returned by String; unknown values map to Walk.
func ParseStreetMode(s string) StreetMode {
	for i, n := range streetModeNames {
		if n == s {
			return StreetMode(i)
		}
	}
	return Walk
}

// OpeningHours restricts when a sub-path may depart, e.g. a flex service.
type OpeningHours struct {
	Open  int
	Close int
}

// AccessEgress is a street or flex sub-path between the origin/destination and a stop.
type AccessEgress struct {
	Stop          int
	DurationSec   int
	C1            int
	NumberOfRides int
	TimePenalty   int
	Opening       *OpeningHours
	Mode          StreetMode
	Distance      float64
}

// HasRides reports whether the sub-path contains boardings, as flex does.
func (a AccessEgress) HasRides() bool { return a.NumberOfRides > 0 }

// EarliestDepartureTime returns the first legal departure at or after t, or NotSet.
func (a AccessEgress) EarliestDepartureTime(t int) int {
	if a.Opening == nil {
		return t
	}
	if t < a.Opening.Open {
		return a.Opening.Open
	}
	if t > a.Opening.Close {
		return NotSet
	}
	return t
}

// LatestArrivalTime returns the latest legal arrival at or before t, or NotSet.
func (a AccessEgress) LatestArrivalTime(t int) int {
	if a.Opening == nil {
		return t
	}
	dep := t - a.DurationSec
	if dep > a.Opening.Close {
		return a.Opening.Close + a.DurationSec
	}
	if dep < a.Opening.Open {
		return NotSet
	}
	return t
}

// Transfer is a walk between two stops.
type Transfer struct {
	ToStop      int
	DurationSec int
	C1          int
	Distance    float64
}

// TransferConstraint overrides the default slack and cost rules between two trips.
type TransferConstraint uint8

const (
	Regular TransferConstraint = iota
	Guaranteed
	StaySeated
)

func (c TransferConstraint) String() string {
	switch c {
	case Guaranteed:
		return "GUARANTEED"
	case StaySeated:
		return "STAY_SEATED"
	default:
		return "REGULAR"
	}
}

// TripSchedule is the timetable of one trip as seen by the path assembler.
// Positions index the stops of the trip pattern.
type TripSchedule interface {
	TripID() string
	DepartureTime(stopPos int) int
	ArrivalTime(stopPos int) int
	StopIndex(stopPos int) int
	NumberOfStops() int
	SlackIndex() int
	TransitReluctanceIndex() int
}
