package itinerary

import (
	"cmp"
	"fmt"
	"time"
)

// SortKey holds the values an itinerary is ordered by. It doubles as the page
// cut stored in page cursors.
type SortKey struct {
	StartTime         time.Time `json:"startTime" msgpack:"s"`
	EndTime           time.Time `json:"endTime" msgpack:"e"`
	GeneralizedCost   int       `json:"generalizedCost" msgpack:"c"`
	NumberOfTransfers int       `json:"numberOfTransfers" msgpack:"t"`
	OnStreetAllTheWay bool      `json:"onStreetAllTheWay" msgpack:"o"`
}

func (it *Itinerary) SortKey() SortKey {
	return SortKey{
		StartTime:         it.StartTime(),
		EndTime:           it.EndTime(),
		GeneralizedCost:   it.GeneralizedCost,
		NumberOfTransfers: it.NumberOfTransfers,
		OnStreetAllTheWay: it.IsStreetOnly(),
	}
}

// SortOrder is the final order of the returned itineraries.
type SortOrder uint8

const (
	// StreetAndArrivalTime puts street-only first, then earliest arrival. Used
	// for depart-after searches.
	StreetAndArrivalTime SortOrder = iota
	// StreetAndDepartureTime puts street-only first, then latest departure.
	// Used for arrive-by searches.
	StreetAndDepartureTime
	// GeneralizedCost orders by cost, then transfers, then arrival.
	GeneralizedCost
)

var sortOrderNames = [...]string{"street-and-arrival-time", "street-and-departure-time", "generalized-cost"}

func (o SortOrder) String() string {
	if int(o) < len(sortOrderNames) {
		return sortOrderNames[o]
	}
	return "unknown"
}

func ParseSortOrder(s string) (SortOrder, error) {
	for i, n := range sortOrderNames {
		if n == s {
			return SortOrder(i), nil
		}
	}
	return StreetAndArrivalTime, fmt.Errorf("unknown sort order %q", s)
}

// IsDepartureTimeSorted reports whether the order ranks by departure, as for arrive-by searches.
func (o SortOrder) IsDepartureTimeSorted() bool { return o == StreetAndDepartureTime }

// Compare returns a negative value when a sorts before b.
func (o SortOrder) Compare(a, b SortKey) int {
	switch o {
	case StreetAndDepartureTime:
		return cmpFirst(
			streetFirst(a, b),
			b.StartTime.Compare(a.StartTime),
			cmp.Compare(a.GeneralizedCost, b.GeneralizedCost),
			cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers),
			a.EndTime.Compare(b.EndTime),
		)
	case GeneralizedCost:
		return cmpFirst(
			cmp.Compare(a.GeneralizedCost, b.GeneralizedCost),
			cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers),
			a.EndTime.Compare(b.EndTime),
			b.StartTime.Compare(a.StartTime),
		)
	default:
		return cmpFirst(
			streetFirst(a, b),
			a.EndTime.Compare(b.EndTime),
			cmp.Compare(a.GeneralizedCost, b.GeneralizedCost),
			cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers),
			b.StartTime.Compare(a.StartTime),
		)
	}
}

// Comparator returns a comparison function over itineraries for slices.SortStableFunc.
func (o SortOrder) Comparator() func(a, b *Itinerary) int {
	return func(a, b *Itinerary) int { return o.Compare(a.SortKey(), b.SortKey()) }
}

// CompareGeneralizedCost orders by cost with fewest transfers as tie-break.
func CompareGeneralizedCost(a, b *Itinerary) int {
	return cmpFirst(
		cmp.Compare(a.GeneralizedCost, b.GeneralizedCost),
		cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers),
	)
}

func CompareNumberOfTransfers(a, b *Itinerary) int {
	return cmp.Compare(a.NumberOfTransfers, b.NumberOfTransfers)
}

func streetFirst(a, b SortKey) int {
	switch {
	case a.OnStreetAllTheWay == b.OnStreetAllTheWay:
		return 0
	case a.OnStreetAllTheWay:
		return -1
	}
	return 1
}

func cmpFirst(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// ListSection names one end of a sorted list.
type ListSection uint8

const (
	Tail ListSection = iota
	Head
)

func (s ListSection) Invert() ListSection {
	if s == Head {
		return Tail
	}
	return Head
}

func (s ListSection) String() string {
	if s == Head {
		return "head"
	}
	return "tail"
}

func ParseListSection(s string) (ListSection, error) {
	switch s {
	case "", "tail":
		return Tail, nil
	case "head":
		return Head, nil
	}
	return Tail, fmt.Errorf("unknown list section %q", s)
}
