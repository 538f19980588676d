package filterchain

import (
	"fmt"
	"slices"

	"itinerary-shaper/internal/itinerary"
)

// DebugProfile decides which flagged itineraries stay in the response with
// their removal notices instead of being deleted.
type DebugProfile uint8

const (
	DebugOff DebugProfile = iota
	DebugListAll
	DebugLimitToSearchWindow
	DebugLimitToNumOfItineraries
)

var debugProfileNames = [...]string{"off", "list-all", "limit-to-search-window", "limit-to-num-of-itineraries"}

func (p DebugProfile) String() string {
	if int(p) < len(debugProfileNames) {
		return debugProfileNames[p]
	}
	return "unknown"
}

func ParseDebugProfile(s string) (DebugProfile, error) {
	if s == "" {
		return DebugOff, nil
	}
	for i, n := range debugProfileNames {
		if n == s {
			return DebugProfile(i), nil
		}
	}
	return DebugOff, fmt.Errorf("unknown debug profile %q", s)
}

// DeleteResultHandler removes flagged itineraries according to the debug profile.
type DeleteResultHandler struct {
	profile DebugProfile
	max     int
}

func NewDeleteResultHandler(profile DebugProfile, maxNumberOfItineraries int) *DeleteResultHandler {
	return &DeleteResultHandler{profile: profile, max: maxNumberOfItineraries}
}

func (h *DeleteResultHandler) Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	switch h.profile {
	case DebugListAll:
		return slices.Clone(itineraries)
	case DebugLimitToSearchWindow:
		return keep(itineraries, func(it *itinerary.Itinerary) bool {
			return !it.IsFlagged() || it.FlaggedOnlyBy(isSearchWindowTag)
		})
	case DebugLimitToNumOfItineraries:
		tagged := 0
		return keep(itineraries, func(it *itinerary.Itinerary) bool {
			if !it.IsFlagged() {
				return true
			}
			if !it.FlaggedOnlyBy(func(tag string) bool { return tag == TagNumItineraries }) {
				return false
			}
			if h.max > 0 && tagged >= h.max {
				return false
			}
			tagged++
			return true
		})
	default:
		return keep(itineraries, func(it *itinerary.Itinerary) bool { return !it.IsFlagged() })
	}
}

func isSearchWindowTag(tag string) bool {
	return tag == TagOutsideSearchWindow || tag == TagFlexSearchWindow
}

func keep(itineraries []*itinerary.Itinerary, ok func(*itinerary.Itinerary) bool) []*itinerary.Itinerary {
	res := make([]*itinerary.Itinerary, 0, len(itineraries))
	for _, it := range itineraries {
		if ok(it) {
			res = append(res, it)
		}
	}
	return res
}
