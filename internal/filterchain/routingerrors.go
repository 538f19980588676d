package filterchain

import "itinerary-shaper/internal/itinerary"

type RoutingErrorCode string

const (
	NoTransitConnectionInSearchWindow RoutingErrorCode = "NO_TRANSIT_CONNECTION_IN_SEARCH_WINDOW"
	WalkingBetterThanTransit          RoutingErrorCode = "WALKING_BETTER_THAN_TRANSIT"
	NumItinerariesCapped              RoutingErrorCode = "NUM_ITINERARIES_CAPPED"
	WalkOnlyFiltered                  RoutingErrorCode = "WALK_ONLY_FILTERED"
	TransitCostLimitExceeded          RoutingErrorCode = "TRANSIT_COST_LIMIT_EXCEEDED"
)

type RoutingError struct {
	Code   RoutingErrorCode `json:"code"`
	Detail string           `json:"detail,omitempty"`
}

// routingErrors derives the client facing errors from the flags set during
// one chain run. It must see the itineraries before deletion.
func routingErrors(itineraries []*itinerary.Itinerary) []RoutingError {
	var errs []RoutingError
	if len(itineraries) > 0 && allOf(itineraries, (*itinerary.Itinerary).IsFlagged) {
		if allOf(itineraries, func(it *itinerary.Itinerary) bool {
			return it.HasFlag(TagOutsideSearchWindow) || it.HasFlag(TagFlexSearchWindow)
		}) {
			errs = append(errs, RoutingError{Code: NoTransitConnectionInSearchWindow,
				Detail: "no transit connection departs within the search window"})
		}

		var transit []*itinerary.Itinerary
		for _, it := range itineraries {
			if it.HasTransit() {
				transit = append(transit, it)
			}
		}
		if len(transit) > 0 && allOf(transit, func(it *itinerary.Itinerary) bool {
			return it.HasFlag(TagTransitVsWalk) || it.HasFlag(TagTransitVsStreet)
		}) {
			errs = append(errs, RoutingError{Code: WalkingBetterThanTransit,
				Detail: "a street only itinerary is better than any transit option"})
		}
		if anyOf(itineraries, func(it *itinerary.Itinerary) bool { return it.HasFlag(TagWalkOnly) }) {
			errs = append(errs, RoutingError{Code: WalkOnlyFiltered,
				Detail: "walking all the way was removed by request"})
		}
		if len(transit) > 0 && allOf(transit, func(it *itinerary.Itinerary) bool { return it.HasFlag(TagTransitCost) }) {
			errs = append(errs, RoutingError{Code: TransitCostLimitExceeded,
				Detail: "all transit itineraries exceeded the cost limit"})
		}
	}
	if anyOf(itineraries, func(it *itinerary.Itinerary) bool { return it.HasFlag(TagNumItineraries) }) {
		errs = append(errs, RoutingError{Code: NumItinerariesCapped,
			Detail: "more itineraries are available on the next page"})
	}
	return errs
}

func allOf(itineraries []*itinerary.Itinerary, ok func(*itinerary.Itinerary) bool) bool {
	for _, it := range itineraries {
		if !ok(it) {
			return false
		}
	}
	return true
}

func anyOf(itineraries []*itinerary.Itinerary, ok func(*itinerary.Itinerary) bool) bool {
	for _, it := range itineraries {
		if ok(it) {
			return true
		}
	}
	return false
}
