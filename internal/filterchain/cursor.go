package filterchain

import (
	"time"

	"itinerary-shaper/internal/itinerary"
)

// PageCursorInput is what the chain learned that the next page request needs.
// A nil field means the stage producing it did not run or removed nothing.
type PageCursorInput struct {
	EarliestRemovedDeparture *time.Time             `json:"earliestRemovedDeparture,omitempty"`
	LatestRemovedDeparture   *time.Time             `json:"latestRemovedDeparture,omitempty"`
	PageCut                  *itinerary.SortKey     `json:"pageCut,omitempty"`
	CropSection              *itinerary.ListSection `json:"-"`
	GeneralizedCostMaxLimit  *int                   `json:"generalizedCostMaxLimit,omitempty"`
}

// PageCursorAggregator collects results from the final cap and the street-only
// cost filter during one chain run.
type PageCursorAggregator struct {
	numItineraries *NumItinerariesFilterResults
	costLimit      *int
	subscriber     func(PageCursorInput)
}

func NewPageCursorAggregator(subscriber func(PageCursorInput)) *PageCursorAggregator {
	return &PageCursorAggregator{subscriber: subscriber}
}

func (a *PageCursorAggregator) reset() {
	a.numItineraries = nil
	a.costLimit = nil
}

func (a *PageCursorAggregator) acceptNumItineraries(r NumItinerariesFilterResults) {
	a.numItineraries = &r
}

func (a *PageCursorAggregator) acceptCostLimit(limit int) {
	a.costLimit = &limit
}

// Provide builds the input and hands it to the subscriber, if any.
func (a *PageCursorAggregator) Provide() PageCursorInput {
	var in PageCursorInput
	if r := a.numItineraries; r != nil {
		earliest, latest, cut, crop := r.EarliestRemovedDeparture, r.LatestRemovedDeparture, r.PageCut, r.CropSection
		in.EarliestRemovedDeparture = &earliest
		in.LatestRemovedDeparture = &latest
		in.PageCut = &cut
		in.CropSection = &crop
	}
	if a.costLimit != nil {
		limit := *a.costLimit
		in.GeneralizedCostMaxLimit = &limit
	}
	if a.subscriber != nil {
		a.subscriber(in)
	}
	return in
}
