package filterchain

import (
	"time"

	"itinerary-shaper/internal/itinerary"
)

// AlertService looks up service alerts active at a given instant.
type AlertService interface {
	TripAlerts(tripID string, at time.Time) []itinerary.Alert
	RouteAlerts(routeID string, at time.Time) []itinerary.Alert
	StopAlerts(stopID string, at time.Time) []itinerary.Alert
}

// AlertDecorator attaches the alerts of each transit leg's trip, route and
// board and alight stops.
type AlertDecorator struct {
	Service AlertService
}

func (d AlertDecorator) Decorate(it *itinerary.Itinerary) {
	for _, l := range it.TransitLegs() {
		var alerts []itinerary.Alert
		alerts = append(alerts, d.Service.TripAlerts(l.TripID, l.StartTime)...)
		alerts = append(alerts, d.Service.RouteAlerts(l.RouteID, l.StartTime)...)
		alerts = append(alerts, d.Service.StopAlerts(l.From.StopID, l.StartTime)...)
		alerts = append(alerts, d.Service.StopAlerts(l.To.StopID, l.EndTime)...)
		l.Alerts = dedupAlerts(append(l.Alerts, alerts...))
	}
}

func dedupAlerts(alerts []itinerary.Alert) []itinerary.Alert {
	if len(alerts) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(alerts))
	res := alerts[:0]
	for _, a := range alerts {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		res = append(res, a)
	}
	return res
}

// AccessibilityScoreDecorator scores transit legs by the wheelchair
// accessibility of the trip and both stops: 1 when possible, 0.5 when
// unknown, 0 when not possible. The itinerary gets the mean of its leg scores.
type AccessibilityScoreDecorator struct{}

func (AccessibilityScoreDecorator) Decorate(it *itinerary.Itinerary) {
	legs := it.TransitLegs()
	if len(legs) == 0 {
		return
	}
	var sum float64
	for _, l := range legs {
		s := (accessibilityValue(l.TripWheelchair) + accessibilityValue(l.From.Wheelchair) + accessibilityValue(l.To.Wheelchair)) / 3
		l.AccessibilityScore = &s
		sum += s
	}
	mean := sum / float64(len(legs))
	it.AccessibilityScore = &mean
}

func accessibilityValue(a itinerary.Accessibility) float64 {
	switch a {
	case itinerary.Possible:
		return 1
	case itinerary.NotPossible:
		return 0
	}
	return 0.5
}

type EmissionsService interface {
	Emissions(it *itinerary.Itinerary) (itinerary.Emissions, bool)
}

type EmissionsDecorator struct {
	Service EmissionsService
}

func (d EmissionsDecorator) Decorate(it *itinerary.Itinerary) {
	if e, ok := d.Service.Emissions(it); ok {
		it.Emissions = &e
	}
}

// ModeEmissions is an EmissionsService with a fixed CO2 rate in grams per
// kilometer for each mode. Modes without a rate emit nothing.
type ModeEmissions map[itinerary.Mode]float64

func (m ModeEmissions) Emissions(it *itinerary.Itinerary) (itinerary.Emissions, bool) {
	var grams float64
	found := false
	for _, l := range it.Legs {
		rate, ok := m[l.Mode]
		if !ok {
			continue
		}
		grams += rate * l.Distance / 1000
		found = true
	}
	return itinerary.Emissions{CO2Grams: grams}, found
}

type FareService interface {
	Fare(it *itinerary.Itinerary) (itinerary.Fare, bool)
}

type FareDecorator struct {
	Service FareService
}

func (d FareDecorator) Decorate(it *itinerary.Itinerary) {
	if f, ok := d.Service.Fare(it); ok {
		it.Fare = &f
	}
}

// FlatFare charges a fixed price per boarding. Stay-seated continuations are free.
type FlatFare struct {
	Currency         string
	CentsPerBoarding int
}

func (f FlatFare) Fare(it *itinerary.Itinerary) (itinerary.Fare, bool) {
	boardings := 0
	for _, l := range it.TransitLegs() {
		if !l.StaySeated {
			boardings++
		}
	}
	if boardings == 0 {
		return itinerary.Fare{}, false
	}
	return itinerary.Fare{Currency: f.Currency, Cents: boardings * f.CentsPerBoarding}, true
}

type RideHailingService interface {
	Estimates(from itinerary.Place, at time.Time) []itinerary.RideHailingEstimate
}

// RideHailingDecorator attaches ride hailing estimates to itineraries with a
// car leg, for a pickup where the first car leg starts.
type RideHailingDecorator struct {
	Service RideHailingService
}

func (d RideHailingDecorator) Decorate(it *itinerary.Itinerary) {
	for _, l := range it.Legs {
		if l.Mode == itinerary.Car {
			it.RideHailing = d.Service.Estimates(l.From, l.StartTime)
			return
		}
	}
}

// StopConsolidationService maps stops that are consolidated into one stop to
// the name shown to clients.
type StopConsolidationService interface {
	ConsolidatedName(stopID string) (string, bool)
}

type StopConsolidationDecorator struct {
	Service StopConsolidationService
}

func (d StopConsolidationDecorator) Decorate(it *itinerary.Itinerary) {
	for i := range it.Legs {
		l := &it.Legs[i]
		if name, ok := d.Service.ConsolidatedName(l.From.StopID); ok {
			l.From.Name = name
		}
		if name, ok := d.Service.ConsolidatedName(l.To.StopID); ok {
			l.To.Name = name
		}
	}
}

// StopNames is a StopConsolidationService backed by a map of stop id to name.
type StopNames map[string]string

func (m StopNames) ConsolidatedName(stopID string) (string, bool) {
	if stopID == "" {
		return "", false
	}
	name, ok := m[stopID]
	return name, ok
}
