package filterchain

import (
	"cmp"
	"fmt"
	"log"
	"slices"
	"time"

	"itinerary-shaper/internal/itinerary"
)

// Chain is a built filter chain. A Chain keeps page cursor state for the run
// in progress, so one Chain must not filter concurrently.
type Chain struct {
	filters    []Filter
	deleter    *DeleteResultHandler
	aggregator *PageCursorAggregator
	observer   Observer
}

type Result struct {
	Itineraries     []*itinerary.Itinerary
	RoutingErrors   []RoutingError
	PageCursorInput PageCursorInput
}

// Build validates the options and assembles the stages in their fixed order.
func Build(opts Options) (*Chain, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Chain{
		deleter:    NewDeleteResultHandler(opts.DebugProfile, opts.MaxNumberOfItineraries),
		aggregator: NewPageCursorAggregator(opts.PageCursorSubscriber),
		observer:   opts.Observer,
	}
	remove := func(f Flagger) Filter { return NewRemoveFilter(f, opts.Observer) }
	costSort := NewSortingFilter(itinerary.CompareGeneralizedCost)
	finalSort := NewSortingFilter(opts.SortOrder.Comparator())

	var filters []Filter
	filters = append(filters, groupBySimilarity(opts, remove, costSort)...)

	if opts.RemoveItinerariesWithSameRoutesAndStops {
		filters = append(filters, NewGroupByFilter(GroupBySameRoutesAndStopsKey,
			[]Filter{finalSort, remove(NewMaxLimit(TagSameRoutesAndStops, 1))}, nil, opts.ConcurrentGroupBy))
	}
	if opts.SameFirstOrLastTripFilter {
		filters = append(filters, costSort, remove(RemoveIfFirstOrLastTripIsTheSame{}))
	}
	if opts.MinBikeParkingDistance > 0 {
		filters = append(filters, remove(NewRemoveItinerariesWithShortStreetLeg(opts.MinBikeParkingDistance)))
	}
	if opts.TransitGeneralizedCostLimit != nil {
		filters = append(filters, remove(TransitGeneralizedCostFilter{Limit: *opts.TransitGeneralizedCostLimit}))
	}
	if opts.NonTransitGeneralizedCostLimit != nil {
		filters = append(filters, remove(RemoveNonTransitItinerariesBasedOnGeneralizedCost{CostLimit: *opts.NonTransitGeneralizedCostLimit}))
	}

	if opts.RemoveTransitWithHigherCostThanBestOnStreetOnly != nil {
		filters = append(filters, remove(RemoveTransitIfStreetOnlyIsBetter{
			CostLimit:           *opts.RemoveTransitWithHigherCostThanBestOnStreetOnly,
			CostLimitFromCursor: opts.GeneralizedCostMaxLimit,
			OnLimit:             c.aggregator.acceptCostLimit,
		}))
	}
	if opts.RemoveTransitIfWalkingIsBetter {
		filters = append(filters, remove(RemoveTransitIfWalkingIsBetter{}))
	}
	if opts.RemoveWalkAllTheWay {
		filters = append(filters, remove(NewRemoveWalkOnly()))
	}
	if opts.BikeRentalDistanceRatio > 0 {
		filters = append(filters, remove(NewRemoveBikeRentalWithMostlyWalking(opts.BikeRentalDistanceRatio)))
	}
	if opts.ParkAndRideDurationRatio > 0 {
		filters = append(filters, remove(NewRemoveParkAndRideWithMostlyWalking(opts.ParkAndRideDurationRatio)))
	}

	if opts.hasSearchWindow() {
		filters = append(filters, remove(NewOutsideSearchWindowFilter(opts.EarliestDepartureTime, opts.SearchWindow)))
		if opts.FilterDirectFlexBySearchWindow {
			filters = append(filters, remove(NewFlexSearchWindowFilter(opts.EarliestDepartureTime, opts.SearchWindow, opts.ArriveBy)))
		}
	}
	if opts.PagingDeduplicationKey != nil {
		if opts.hasCap() {
			filters = append(filters, finalSort,
				remove(NewPagingFilter(opts.SortOrder, opts.CropSection.Invert(), *opts.PagingDeduplicationKey)))
		} else {
			log.Printf("paging deduplication key ignored: no max number of itineraries")
		}
	}
	if opts.hasCap() {
		filters = append(filters, finalSort,
			remove(NewNumItinerariesFilter(opts.MaxNumberOfItineraries, opts.CropSection, c.aggregator.acceptNumItineraries)))
	}
	filters = append(filters, finalSort)

	for _, d := range decorators(opts) {
		filters = append(filters, NewDecorateFilter(d))
	}
	c.filters = filters
	return c, nil
}

func groupBySimilarity(opts Options, remove func(Flagger) Filter, costSort Filter) []Filter {
	groups := slices.Clone(opts.GroupBySimilarity)
	slices.SortStableFunc(groups, func(a, b GroupBySimilarity) int { return cmp.Compare(a.GroupByP, b.GroupByP) })

	criteria := []Criterion{LowerGeneralizedCost, FewerTransfers}
	if opts.TransitGroupPriority {
		criteria = append(criteria, BetterTransitGroupPriority)
	}

	capTo := func(tag string, n int) Filter {
		if opts.MultiCriteriaGroupMax {
			return remove(NewMcMaxLimit(tag, n, criteria...))
		}
		return remove(NewMaxLimit(tag, n))
	}

	var tags []string
	var filters []Filter
	for _, g := range groups {
		tag := fmt.Sprintf("similar-legs-filter-%.0fp-%dx", g.GroupByP*100, g.MaxNumOfItinerariesPerGroup)
		tags = append(tags, tag)

		var nested []Filter
		if g.NestedGroupingByAllSameStations {
			stationTag := tag + "-group-by-all-same-stations"
			tags = append(tags, stationTag)
			nested = append(nested, NewGroupByFilter(GroupByAllSameStationsKey,
				[]Filter{costSort, capTo(stationTag, 1)}, nil, 0))
		}
		if g.MaxCostOtherLegsFactor > 1 {
			if !slices.Contains(tags, TagOtherThanSameLegs) {
				tags = append(tags, TagOtherThanSameLegs)
			}
			nested = append(nested, remove(RemoveOtherThanSameLegsMaxGeneralizedCost{Factor: g.MaxCostOtherLegsFactor}))
		}
		nested = append(nested, costSort, capTo(tag, g.MaxNumOfItinerariesPerGroup))
		filters = append(filters, NewGroupByFilter(GroupByDistanceKey(g.GroupByP), nested,
			NewKeepItinerariesWithFewestTransfers(slices.Clone(tags)), opts.ConcurrentGroupBy))
	}
	return filters
}

func decorators(opts Options) []Decorator {
	var res []Decorator
	if opts.Alerts != nil {
		res = append(res, AlertDecorator{Service: opts.Alerts})
	}
	if opts.AccessibilityScore {
		res = append(res, AccessibilityScoreDecorator{})
	}
	if opts.Emissions != nil {
		res = append(res, EmissionsDecorator{Service: opts.Emissions})
	}
	if opts.Fares != nil {
		res = append(res, FareDecorator{Service: opts.Fares})
	}
	if opts.RideHailing != nil {
		res = append(res, RideHailingDecorator{Service: opts.RideHailing})
	}
	if opts.StopConsolidation != nil {
		res = append(res, StopConsolidationDecorator{Service: opts.StopConsolidation})
	}
	return res
}

// Filter runs every stage, derives routing errors from the removal flags and
// deletes flagged itineraries according to the debug profile. Stages work on
// copies, so the input slice and its itineraries are left untouched.
func (c *Chain) Filter(itineraries []*itinerary.Itinerary) Result {
	start := time.Now()
	c.aggregator.reset()

	list := make([]*itinerary.Itinerary, len(itineraries))
	for i, it := range itineraries {
		list[i] = it.Clone()
	}
	for _, f := range c.filters {
		list = f.Filter(list)
	}
	errs := routingErrors(list)
	out := c.deleter.Filter(list)
	cursor := c.aggregator.Provide()

	if c.observer != nil {
		for _, e := range errs {
			c.observer.RoutingErrorRaised(string(e.Code))
		}
		c.observer.ChainFinished(len(itineraries), len(out), time.Since(start))
	}
	return Result{Itineraries: out, RoutingErrors: errs, PageCursorInput: cursor}
}
