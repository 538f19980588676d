package filterchain

import (
	"slices"
	"time"

	"itinerary-shaper/internal/itinerary"
)

// Tags of the removal notices. The same strings are used as filter names.
const (
	TagOtherThanSameLegs   = "other-than-same-legs-max-generalized-cost-filter"
	TagSameRoutesAndStops  = "group-by-same-routes-and-stops"
	TagSameFirstOrLastTrip = "remove-itinerary-if-first-or-last-trip-is-the-same"
	TagShortStreetLeg      = "remove-itineraries-with-short-street-leg"
	TagTransitCost         = "transit-cost-filter"
	TagNonTransitCost      = "non-transit-cost-filter"
	TagTransitVsStreet     = "transit-vs-street-filter"
	TagTransitVsWalk       = "transit-vs-walk-filter"
	TagWalkOnly            = "remove-walk-only-filter"
	TagBikeRental          = "bike-rental-traveled-distance-ratio-filter"
	TagParkAndRide         = "park-and-ride-vs-car-filter"
	TagOutsideSearchWindow = "outside-search-window"
	TagFlexSearchWindow    = "flex-outside-search-window"
	TagPaging              = "paging-filter"
	TagNumItineraries      = "number-of-itineraries-filter"
)

// predicate flags every itinerary the function matches.
type predicate struct {
	name  string
	match func(*itinerary.Itinerary) bool
}

func (p predicate) Name() string { return p.name }

func (p predicate) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	var res []*itinerary.Itinerary
	for _, it := range itineraries {
		if p.match(it) {
			res = append(res, it)
		}
	}
	return res
}

// RemoveOtherThanSameLegsMaxGeneralizedCost flags itineraries whose cost
// outside the trips shared by the whole group exceeds factor times the lowest
// such cost.
type RemoveOtherThanSameLegsMaxGeneralizedCost struct {
	Factor float64
}

func (f RemoveOtherThanSameLegsMaxGeneralizedCost) Name() string { return TagOtherThanSameLegs }

func (f RemoveOtherThanSameLegsMaxGeneralizedCost) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	if len(itineraries) < 2 {
		return nil
	}
	common := itineraries[0].TripIDs()
	for _, it := range itineraries[1:] {
		ids := it.TripIDs()
		common = slices.DeleteFunc(common, func(id string) bool { return !slices.Contains(ids, id) })
	}
	if len(common) == 0 {
		return nil
	}

	other := make([]int, len(itineraries))
	minOther := -1
	for i, it := range itineraries {
		c := it.GeneralizedCost
		for _, l := range it.TransitLegs() {
			if slices.Contains(common, l.TripID) {
				c -= l.GeneralizedCost
			}
		}
		other[i] = c
		if minOther < 0 || c < minOther {
			minOther = c
		}
	}
	limit := float64(minOther) * f.Factor

	var res []*itinerary.Itinerary
	for i, it := range itineraries {
		if float64(other[i]) > limit {
			res = append(res, it)
		}
	}
	return res
}

// KeepItinerariesWithFewestTransfers clears the group-by flags of the first
// itinerary with the fewest transfers among those not removed by any other
// filter, so grouping never removes the option with fewest transfers.
type KeepItinerariesWithFewestTransfers struct {
	tags []string
}

func NewKeepItinerariesWithFewestTransfers(tags []string) *KeepItinerariesWithFewestTransfers {
	return &KeepItinerariesWithFewestTransfers{tags: tags}
}

func (f *KeepItinerariesWithFewestTransfers) Filter(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	grouped := func(tag string) bool { return slices.Contains(f.tags, tag) }
	var best *itinerary.Itinerary
	for _, it := range itineraries {
		if it.IsFlagged() && !it.FlaggedOnlyBy(grouped) {
			continue
		}
		if best == nil || it.NumberOfTransfers < best.NumberOfTransfers {
			best = it
		}
	}
	if best != nil {
		best.RemoveFlags(f.tags)
	}
	return slices.Clone(itineraries)
}

// RemoveIfFirstOrLastTripIsTheSame keeps only the first itinerary for each
// first and each last trip. The input must be sorted by cost.
type RemoveIfFirstOrLastTripIsTheSame struct{}

func (RemoveIfFirstOrLastTripIsTheSame) Name() string { return TagSameFirstOrLastTrip }

func (RemoveIfFirstOrLastTripIsTheSame) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	firsts := map[string]bool{}
	lasts := map[string]bool{}
	var res []*itinerary.Itinerary
	for _, it := range itineraries {
		ids := it.TripIDs()
		if len(ids) == 0 {
			continue
		}
		first, last := ids[0], ids[len(ids)-1]
		if firsts[first] || lasts[last] {
			res = append(res, it)
			continue
		}
		firsts[first], lasts[last] = true, true
	}
	return res
}

// NewRemoveItinerariesWithShortStreetLeg flags transit itineraries with an
// owned bicycle leg no longer than minDistance meters.
func NewRemoveItinerariesWithShortStreetLeg(minDistance float64) Flagger {
	return predicate{name: TagShortStreetLeg, match: func(it *itinerary.Itinerary) bool {
		if !it.HasTransit() {
			return false
		}
		return slices.ContainsFunc(it.Legs, func(l itinerary.Leg) bool {
			return l.Mode == itinerary.Bicycle && !l.Rental && l.Distance <= minDistance
		})
	}}
}

// TransitGeneralizedCostFilter flags a transit itinerary b when some other
// transit itinerary a gives limit = f(a.cost) + relax * wait(a, b) < b.cost,
// where wait is the gap between the two when they do not overlap.
type TransitGeneralizedCostFilter struct {
	Limit TransitGeneralizedCostLimit
}

func (f TransitGeneralizedCostFilter) Name() string { return TagTransitCost }

func (f TransitGeneralizedCostFilter) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	var transit []*itinerary.Itinerary
	for _, it := range itineraries {
		if it.HasTransit() {
			transit = append(transit, it)
		}
	}
	var res []*itinerary.Itinerary
	for _, b := range transit {
		for _, a := range transit {
			if a == b {
				continue
			}
			limit := float64(f.Limit.CostLimitFunction.Calculate(a.GeneralizedCost)) +
				f.Limit.IntervalRelaxFactor*waitBetween(a, b).Seconds()
			if limit < float64(b.GeneralizedCost) {
				res = append(res, b)
				break
			}
		}
	}
	return res
}

func waitBetween(a, b *itinerary.Itinerary) time.Duration {
	switch {
	case a.StartTime().After(b.EndTime()):
		return a.StartTime().Sub(b.EndTime())
	case b.StartTime().After(a.EndTime()):
		return b.StartTime().Sub(a.EndTime())
	}
	return 0
}

// RemoveNonTransitItinerariesBasedOnGeneralizedCost flags itineraries without
// transit costing more than f applied to the lowest cost of all itineraries.
type RemoveNonTransitItinerariesBasedOnGeneralizedCost struct {
	CostLimit CostLinearFunction
}

func (f RemoveNonTransitItinerariesBasedOnGeneralizedCost) Name() string { return TagNonTransitCost }

func (f RemoveNonTransitItinerariesBasedOnGeneralizedCost) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	if len(itineraries) == 0 {
		return nil
	}
	lowest := itineraries[0].GeneralizedCost
	for _, it := range itineraries[1:] {
		lowest = min(lowest, it.GeneralizedCost)
	}
	limit := f.CostLimit.Calculate(lowest)
	return predicate{match: func(it *itinerary.Itinerary) bool {
		return !it.HasTransit() && it.GeneralizedCost > limit
	}}.FlagForRemoval(itineraries)
}

// RemoveTransitIfStreetOnlyIsBetter flags itineraries that are not street-only
// and cost at least f applied to the best street-only cost. A limit carried
// over from a previous page replaces the computed one. The limit used is
// reported through OnLimit.
type RemoveTransitIfStreetOnlyIsBetter struct {
	CostLimit           CostLinearFunction
	CostLimitFromCursor *int
	OnLimit             func(limit int)
}

func (f RemoveTransitIfStreetOnlyIsBetter) Name() string { return TagTransitVsStreet }

func (f RemoveTransitIfStreetOnlyIsBetter) SkipAlreadyFlagged() bool { return false }

func (f RemoveTransitIfStreetOnlyIsBetter) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	var limit int
	switch best, ok := minCost(itineraries, (*itinerary.Itinerary).IsStreetOnly); {
	case f.CostLimitFromCursor != nil:
		limit = *f.CostLimitFromCursor
	case ok:
		limit = f.CostLimit.Calculate(best)
	default:
		return nil
	}
	if f.OnLimit != nil {
		f.OnLimit(limit)
	}
	return predicate{match: func(it *itinerary.Itinerary) bool {
		return !it.IsStreetOnly() && it.GeneralizedCost >= limit
	}}.FlagForRemoval(itineraries)
}

// RemoveTransitIfWalkingIsBetter flags transit itineraries costing at least
// as much as the best walk-only itinerary.
type RemoveTransitIfWalkingIsBetter struct{}

func (RemoveTransitIfWalkingIsBetter) Name() string { return TagTransitVsWalk }

func (RemoveTransitIfWalkingIsBetter) SkipAlreadyFlagged() bool { return false }

func (RemoveTransitIfWalkingIsBetter) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	best, ok := minCost(itineraries, (*itinerary.Itinerary).IsWalkOnly)
	if !ok {
		return nil
	}
	return predicate{match: func(it *itinerary.Itinerary) bool {
		return it.HasTransit() && it.GeneralizedCost >= best
	}}.FlagForRemoval(itineraries)
}

func minCost(itineraries []*itinerary.Itinerary, match func(*itinerary.Itinerary) bool) (int, bool) {
	best, found := 0, false
	for _, it := range itineraries {
		if match(it) && (!found || it.GeneralizedCost < best) {
			best, found = it.GeneralizedCost, true
		}
	}
	return best, found
}

func NewRemoveWalkOnly() Flagger {
	return predicate{name: TagWalkOnly, match: (*itinerary.Itinerary).IsWalkOnly}
}

// NewRemoveBikeRentalWithMostlyWalking flags itineraries without transit where
// the rented bike covers at most ratio of the distance.
func NewRemoveBikeRentalWithMostlyWalking(ratio float64) Flagger {
	return predicate{name: TagBikeRental, match: func(it *itinerary.Itinerary) bool {
		if it.HasTransit() {
			return false
		}
		var rental float64
		for _, l := range it.Legs {
			if l.Rental {
				rental += l.Distance
			}
		}
		total := it.Distance()
		return rental > 0 && total > 0 && rental/total <= ratio
	}}
}

// NewRemoveParkAndRideWithMostlyWalking flags itineraries without transit
// where driving takes at most ratio of the travel time.
func NewRemoveParkAndRideWithMostlyWalking(ratio float64) Flagger {
	return predicate{name: TagParkAndRide, match: func(it *itinerary.Itinerary) bool {
		if it.HasTransit() {
			return false
		}
		var car, total time.Duration
		for _, l := range it.Legs {
			if l.Mode == itinerary.Car {
				car += l.Duration()
			}
			total += l.Duration()
		}
		return car > 0 && total > 0 && car.Seconds()/total.Seconds() <= ratio
	}}
}
