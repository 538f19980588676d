package filterchain

import (
	"time"

	"itinerary-shaper/internal/itinerary"
)

// NewOutsideSearchWindowFilter flags search window aware itineraries departing
// before edt or at or after edt+sw.
func NewOutsideSearchWindowFilter(edt time.Time, sw time.Duration) Flagger {
	end := edt.Add(sw)
	return predicate{name: TagOutsideSearchWindow, match: func(it *itinerary.Itinerary) bool {
		if !it.SearchWindowAware {
			return false
		}
		start := it.StartTime()
		return start.Before(edt) || !start.Before(end)
	}}
}

// NewFlexSearchWindowFilter flags direct flex itineraries departing before edt,
// or for arrive-by searches arriving after edt+sw.
func NewFlexSearchWindowFilter(edt time.Time, sw time.Duration, arriveBy bool) Flagger {
	end := edt.Add(sw)
	return predicate{name: TagFlexSearchWindow, match: func(it *itinerary.Itinerary) bool {
		if !it.IsDirectFlex() {
			return false
		}
		if arriveBy {
			return it.EndTime().After(end)
		}
		return it.StartTime().Before(edt)
	}}
}

// PagingFilter flags itineraries already returned on the previous page, that
// is every itinerary on the deduplication side of the page cut.
type PagingFilter struct {
	order   itinerary.SortOrder
	section itinerary.ListSection
	cut     itinerary.SortKey
}

func NewPagingFilter(order itinerary.SortOrder, section itinerary.ListSection, cut itinerary.SortKey) *PagingFilter {
	return &PagingFilter{order: order, section: section, cut: cut}
}

func (f *PagingFilter) Name() string { return TagPaging }

func (f *PagingFilter) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	var res []*itinerary.Itinerary
	for _, it := range itineraries {
		c := f.order.Compare(it.SortKey(), f.cut)
		if (f.section == itinerary.Head && c <= 0) || (f.section == itinerary.Tail && c >= 0) {
			res = append(res, it)
		}
	}
	return res
}

// NumItinerariesFilterResults describes what the final cap removed.
type NumItinerariesFilterResults struct {
	EarliestRemovedDeparture time.Time
	LatestRemovedDeparture   time.Time
	// PageCut is the sort key of the kept itinerary next to the cropped section.
	PageCut     itinerary.SortKey
	CropSection itinerary.ListSection
}

// NumItinerariesFilter flags itineraries above max on the crop side. The input
// must be sorted in the final sort order.
type NumItinerariesFilter struct {
	max      int
	crop     itinerary.ListSection
	onResult func(NumItinerariesFilterResults)
}

func NewNumItinerariesFilter(max int, crop itinerary.ListSection, onResult func(NumItinerariesFilterResults)) *NumItinerariesFilter {
	return &NumItinerariesFilter{max: max, crop: crop, onResult: onResult}
}

func (f *NumItinerariesFilter) Name() string { return TagNumItineraries }

func (f *NumItinerariesFilter) FlagForRemoval(itineraries []*itinerary.Itinerary) []*itinerary.Itinerary {
	if f.max <= 0 || len(itineraries) <= f.max {
		return nil
	}
	var removed []*itinerary.Itinerary
	var cut *itinerary.Itinerary
	if f.crop == itinerary.Head {
		n := len(itineraries) - f.max
		removed, cut = itineraries[:n], itineraries[n]
	} else {
		removed, cut = itineraries[f.max:], itineraries[f.max-1]
	}

	res := NumItinerariesFilterResults{PageCut: cut.SortKey(), CropSection: f.crop}
	for i, it := range removed {
		dep := it.StartTime()
		if i == 0 || dep.Before(res.EarliestRemovedDeparture) {
			res.EarliestRemovedDeparture = dep
		}
		if i == 0 || dep.After(res.LatestRemovedDeparture) {
			res.LatestRemovedDeparture = dep
		}
	}
	if f.onResult != nil {
		f.onResult(res)
	}
	return removed
}
