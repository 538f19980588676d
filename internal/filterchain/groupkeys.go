package filterchain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"itinerary-shaper/internal/itinerary"
)

// GroupByDistanceKey groups itineraries by the trips of their longest transit
// legs, taking legs until they cover at least p of the transit distance.
// Street-only itineraries are grouped by their mode sequence.
func GroupByDistanceKey(p float64) func(*itinerary.Itinerary) string {
	return func(it *itinerary.Itinerary) string {
		transit := it.TransitLegs()
		if len(transit) == 0 {
			return "street:" + modes(it)
		}
		legs := slices.Clone(transit)
		slices.SortStableFunc(legs, func(a, b *itinerary.Leg) int { return cmp.Compare(b.Distance, a.Distance) })

		var total float64
		for _, l := range legs {
			total += l.Distance
		}
		var ids []string
		var sum float64
		for _, l := range legs {
			ids = append(ids, l.TripID)
			sum += l.Distance
			if total > 0 && sum >= p*total {
				break
			}
		}
		slices.Sort(ids)
		return "trips:" + strings.Join(ids, ",")
	}
}

// GroupByAllSameStationsKey groups transit itineraries passing through the same
// sequence of stations. Street-only itineraries are never grouped together.
func GroupByAllSameStationsKey(it *itinerary.Itinerary) string {
	transit := it.TransitLegs()
	if len(transit) == 0 {
		return fmt.Sprintf("unique:%p", it)
	}
	var b strings.Builder
	for _, l := range transit {
		fmt.Fprintf(&b, "%s>%s;", station(l.From), station(l.To))
	}
	return b.String()
}

// GroupBySameRoutesAndStopsKey groups transit itineraries riding the same
// routes between the same stops.
func GroupBySameRoutesAndStopsKey(it *itinerary.Itinerary) string {
	transit := it.TransitLegs()
	if len(transit) == 0 {
		return fmt.Sprintf("unique:%p", it)
	}
	var b strings.Builder
	for _, l := range transit {
		fmt.Fprintf(&b, "%s:%s>%s;", l.RouteID, l.From.StopID, l.To.StopID)
	}
	return b.String()
}

func station(p itinerary.Place) string {
	if p.Station != "" {
		return p.Station
	}
	return p.StopID
}

func modes(it *itinerary.Itinerary) string {
	names := make([]string, len(it.Legs))
	for i, l := range it.Legs {
		names[i] = l.Mode.String()
	}
	return strings.Join(names, ",")
}
