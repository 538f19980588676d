package paging

import (
	"time"

	"itinerary-shaper/internal/filterchain"
	"itinerary-shaper/internal/itinerary"
)

// Factory builds the cursors of the pages around the one just computed.
type Factory struct {
	SortOrder             itinerary.SortOrder
	EarliestDepartureTime time.Time
	LatestArrivalTime     *time.Time
	SearchWindow          time.Duration
	Input                 filterchain.PageCursorInput
}

func (f Factory) base(t PageType, edt time.Time) PageCursor {
	return PageCursor{
		Type:                    t,
		OriginalSortOrder:       f.SortOrder,
		EarliestDepartureTime:   edt,
		LatestArrivalTime:       f.LatestArrivalTime,
		SearchWindow:            f.SearchWindow,
		GeneralizedCostMaxLimit: f.Input.GeneralizedCostMaxLimit,
	}
}

func (f Factory) cropped(section itinerary.ListSection) bool {
	return f.Input.PageCut != nil && f.Input.CropSection != nil && *f.Input.CropSection == section
}

// Next continues after the current page. When the tail was cropped the next
// window starts at the earliest removed departure and skips what was shown.
func (f Factory) Next() PageCursor {
	if f.cropped(itinerary.Tail) && f.Input.EarliestRemovedDeparture != nil {
		c := f.base(NextPage, *f.Input.EarliestRemovedDeparture)
		c.PageCut = f.Input.PageCut
		return c
	}
	return f.base(NextPage, f.EarliestDepartureTime.Add(f.SearchWindow))
}

// Previous goes back before the current page. When the head was cropped the
// previous window ends just after the latest removed departure.
func (f Factory) Previous() PageCursor {
	if f.cropped(itinerary.Head) && f.Input.LatestRemovedDeparture != nil {
		c := f.base(PreviousPage, f.Input.LatestRemovedDeparture.Add(-f.SearchWindow).Add(time.Minute))
		c.PageCut = f.Input.PageCut
		return c
	}
	return f.base(PreviousPage, f.EarliestDepartureTime.Add(-f.SearchWindow))
}
