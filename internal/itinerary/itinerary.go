package itinerary

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode is the travel mode of a leg.
type Mode uint8

const (
	Walk Mode = iota
	Bicycle
	Car
	Flex
	Bus
	Tram
	Rail
	Subway
	Ferry
	CableCar
	Gondola
	Funicular
	Trolleybus
	Monorail
	Airplane
	Coach
)

var modeNames = [...]string{
	"WALK", "BICYCLE", "CAR", "FLEX", "BUS", "TRAM", "RAIL", "SUBWAY", "FERRY",
	"CABLE_CAR", "GONDOLA", "FUNICULAR", "TROLLEYBUS", "MONORAIL", "AIRPLANE", "COACH",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "UNKNOWN"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func ParseMode(s string) (Mode, error) {
	for i, n := range modeNames {
		if strings.EqualFold(n, s) {
			return Mode(i), nil
		}
	}
	return Walk, fmt.Errorf("unknown mode %q", s)
}

// IsTransit reports whether the mode is scheduled public transport.
func (m Mode) IsTransit() bool { return m >= Bus }

// ModeFromRouteType maps a GTFS route_type, basic or extended, to a Mode.
func ModeFromRouteType(routeType int) Mode {
	switch {
	case routeType == 0 || (routeType >= 900 && routeType < 1000):
		return Tram
	case routeType == 1 || (routeType >= 400 && routeType < 500):
		return Subway
	case routeType == 2 || (routeType >= 100 && routeType < 200):
		return Rail
	case routeType == 4 || (routeType >= 1000 && routeType < 1100) || routeType == 1200:
		return Ferry
	case routeType == 5:
		return CableCar
	case routeType == 6 || routeType == 1300:
		return Gondola
	case routeType == 7 || routeType == 1400:
		return Funicular
	case routeType == 11 || routeType == 800:
		return Trolleybus
	case routeType == 12 || routeType == 405:
		return Monorail
	case routeType >= 1100 && routeType < 1200:
		return Airplane
	case routeType >= 200 && routeType < 300:
		return Coach
	}
	return Bus
}

// Accessibility follows the GTFS wheelchair values.
type Accessibility uint8

const (
	NoInformation Accessibility = iota
	Possible
	NotPossible
)

type Place struct {
	Name       string        `json:"name"`
	StopID     string        `json:"stopId,omitempty"`
	Station    string        `json:"-"`
	Lat        float64       `json:"lat,omitempty"`
	Lon        float64       `json:"lon,omitempty"`
	Wheelchair Accessibility `json:"-"`
}

type Alert struct {
	ID          string    `json:"id"`
	Header      string    `json:"header,omitempty"`
	Description string    `json:"description,omitempty"`
	Cause       string    `json:"cause,omitempty"`
	Effect      string    `json:"effect,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Start       time.Time `json:"start,omitzero"`
	End         time.Time `json:"end,omitzero"`
}

type Leg struct {
	Mode            Mode      `json:"mode"`
	From            Place     `json:"from"`
	To              Place     `json:"to"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Distance        float64   `json:"distanceMeters"`
	GeneralizedCost int       `json:"generalizedCost"`
	Rental          bool      `json:"rentedVehicle,omitempty"`

	TripID             string        `json:"tripId,omitempty"`
	RouteID            string        `json:"routeId,omitempty"`
	RouteShortName     string        `json:"routeShortName,omitempty"`
	TripWheelchair     Accessibility `json:"-"`
	StaySeated         bool          `json:"interlineWithPreviousLeg,omitempty"`
	AccessibilityScore *float64      `json:"accessibilityScore,omitempty"`
	Alerts             []Alert       `json:"alerts,omitempty"`
}

func (l Leg) IsTransit() bool { return l.Mode.IsTransit() }

// IsStreet reports whether the leg is a walk, bicycle or car leg.
func (l Leg) IsStreet() bool { return l.Mode == Walk || l.Mode == Bicycle || l.Mode == Car }

func (l Leg) Duration() time.Duration { return l.EndTime.Sub(l.StartTime) }

type SystemNotice struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	// set for notices added by a removal stage
	Removal bool `json:"-"`
}

type Fare struct {
	Currency string `json:"currency"`
	Cents    int    `json:"cents"`
}

type Emissions struct {
	CO2Grams float64 `json:"co2Grams"`
}

type RideHailingEstimate struct {
	Provider      string `json:"provider"`
	ArrivalSec    int    `json:"arrivalSec"`
	MinPriceCents int    `json:"minPriceCents"`
	MaxPriceCents int    `json:"maxPriceCents"`
}

// Itinerary is a journey offered to the client. It is immutable once mapped,
// apart from decorations and notices added by the filter chain.
type Itinerary struct {
	Legs              []Leg         `json:"legs"`
	GeneralizedCost   int           `json:"generalizedCost"`
	GeneralizedCost2  *int          `json:"generalizedCost2,omitempty"`
	NumberOfTransfers int           `json:"numberOfTransfers"`
	AccessPenalty     time.Duration `json:"-"`
	EgressPenalty     time.Duration `json:"-"`
	SearchWindowAware bool          `json:"-"`

	Fare               *Fare                 `json:"fare,omitempty"`
	Emissions          *Emissions            `json:"emissions,omitempty"`
	AccessibilityScore *float64              `json:"accessibilityScore,omitempty"`
	RideHailing        []RideHailingEstimate `json:"rideHailing,omitempty"`
	SystemNotices      []SystemNotice        `json:"systemNotices,omitempty"`
}

// NewStreetOnly builds an itinerary from direct street legs.
func NewStreetOnly(legs []Leg, generalizedCost int) *Itinerary {
	return &Itinerary{Legs: legs, GeneralizedCost: generalizedCost}
}

func (it *Itinerary) StartTime() time.Time {
	if len(it.Legs) == 0 {
		return time.Time{}
	}
	return it.Legs[0].StartTime
}

func (it *Itinerary) EndTime() time.Time {
	if len(it.Legs) == 0 {
		return time.Time{}
	}
	return it.Legs[len(it.Legs)-1].EndTime
}

func (it *Itinerary) Duration() time.Duration { return it.EndTime().Sub(it.StartTime()) }

func (it *Itinerary) Distance() float64 {
	var d float64
	for _, l := range it.Legs {
		d += l.Distance
	}
	return d
}

func (it *Itinerary) HasTransit() bool {
	return slices.ContainsFunc(it.Legs, Leg.IsTransit)
}

// IsStreetOnly reports whether every leg is a street leg.
func (it *Itinerary) IsStreetOnly() bool {
	for _, l := range it.Legs {
		if !l.IsStreet() {
			return false
		}
	}
	return true
}

func (it *Itinerary) IsWalkOnly() bool {
	for _, l := range it.Legs {
		if l.Mode != Walk {
			return false
		}
	}
	return true
}

// IsDirectFlex reports whether the itinerary uses flex without scheduled transit.
func (it *Itinerary) IsDirectFlex() bool {
	flex := false
	for _, l := range it.Legs {
		if l.IsTransit() {
			return false
		}
		if l.Mode == Flex {
			flex = true
		}
	}
	return flex
}

// TransitLegs returns pointers into Legs for the transit legs.
func (it *Itinerary) TransitLegs() []*Leg {
	var res []*Leg
	for i := range it.Legs {
		if it.Legs[i].IsTransit() {
			res = append(res, &it.Legs[i])
		}
	}
	return res
}

func (it *Itinerary) TripIDs() []string {
	var ids []string
	for _, l := range it.Legs {
		if l.IsTransit() {
			ids = append(ids, l.TripID)
		}
	}
	return ids
}

// Flag marks the itinerary for deletion by the named filter.
func (it *Itinerary) Flag(tag, text string) {
	it.SystemNotices = append(it.SystemNotices, SystemNotice{Tag: tag, Text: text, Removal: true})
}

func (it *Itinerary) AddNotice(n SystemNotice) { it.SystemNotices = append(it.SystemNotices, n) }

func (it *Itinerary) IsFlagged() bool {
	for _, n := range it.SystemNotices {
		if n.Removal {
			return true
		}
	}
	return false
}

// FlagTags returns the tags of the removal notices.
func (it *Itinerary) FlagTags() []string {
	var tags []string
	for _, n := range it.SystemNotices {
		if n.Removal {
			tags = append(tags, n.Tag)
		}
	}
	return tags
}

// FlaggedOnlyBy reports whether the itinerary is flagged and every removal tag
// satisfies match.
func (it *Itinerary) FlaggedOnlyBy(match func(tag string) bool) bool {
	tags := it.FlagTags()
	if len(tags) == 0 {
		return false
	}
	for _, t := range tags {
		if !match(t) {
			return false
		}
	}
	return true
}

// HasFlag reports whether a removal notice with the tag exists.
func (it *Itinerary) HasFlag(tag string) bool {
	return slices.Contains(it.FlagTags(), tag)
}

// RemoveFlags drops removal notices whose tag is in tags.
func (it *Itinerary) RemoveFlags(tags []string) {
	it.SystemNotices = slices.DeleteFunc(it.SystemNotices, func(n SystemNotice) bool {
		return n.Removal && slices.Contains(tags, n.Tag)
	})
}

// Clone returns a copy whose notices, legs and decorations can be changed
// without touching it.
func (it *Itinerary) Clone() *Itinerary {
	c := *it
	c.Legs = slices.Clone(it.Legs)
	for i := range c.Legs {
		c.Legs[i].Alerts = slices.Clone(c.Legs[i].Alerts)
	}
	c.SystemNotices = slices.Clone(it.SystemNotices)
	c.RideHailing = slices.Clone(it.RideHailing)
	return &c
}

// String renders the itinerary compactly, e.g.
// "Origin ~ Walk 5m ~ Stop A ~ BUS 21 10:00 10:20 ~ Stop B ~ Walk 2m ~ Destination [10:00 10:27 C₁2685 Tₓ0]".
func (it *Itinerary) String() string {
	var b strings.Builder
	for i, l := range it.Legs {
		if i == 0 {
			b.WriteString(l.From.Name)
		}
		b.WriteString(" ~ ")
		if l.IsTransit() {
			fmt.Fprintf(&b, "%s %s %s %s", l.Mode, l.RouteShortName, clock(l.StartTime), clock(l.EndTime))
		} else {
			m := l.Mode.String()
			fmt.Fprintf(&b, "%s%s %s", m[:1], strings.ToLower(m[1:]), shortDuration(l.Duration()))
		}
		fmt.Fprintf(&b, " ~ %s", l.To.Name)
	}
	fmt.Fprintf(&b, " [%s %s C₁%d Tₓ%d]", clock(it.StartTime()), clock(it.EndTime()), it.GeneralizedCost, it.NumberOfTransfers)
	return b.String()
}

func clock(t time.Time) string { return t.Format("15:04") }

func shortDuration(d time.Duration) string {
	if d%time.Minute != 0 {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
