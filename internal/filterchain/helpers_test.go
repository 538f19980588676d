package filterchain

import (
	"fmt"
	"time"

	"itinerary-shaper/internal/itinerary"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

// transit builds an itinerary riding the trips back to back from dep, each leg
// ten minutes and one kilometer long. The first stop is named after the itinerary.
func transit(name string, dep time.Time, cost, transfers int, trips ...string) *itinerary.Itinerary {
	it := &itinerary.Itinerary{GeneralizedCost: cost, NumberOfTransfers: transfers, SearchWindowAware: true}
	t := dep
	for i, trip := range trips {
		from := itinerary.Place{Name: fmt.Sprintf("%s/%d", name, i), StopID: trip + "-a"}
		if i == 0 {
			from.Name = name
		}
		it.Legs = append(it.Legs, itinerary.Leg{
			Mode:            itinerary.Bus,
			From:            from,
			To:              itinerary.Place{Name: trip + " end", StopID: trip + "-b"},
			StartTime:       t,
			EndTime:         t.Add(10 * time.Minute),
			Distance:        1000,
			GeneralizedCost: cost / len(trips),
			TripID:          trip,
			RouteID:         "R" + trip,
		})
		t = t.Add(10 * time.Minute)
	}
	return it
}

func street(name string, mode itinerary.Mode, dep time.Time, d time.Duration, cost int) *itinerary.Itinerary {
	return itinerary.NewStreetOnly([]itinerary.Leg{{
		Mode:      mode,
		From:      itinerary.Place{Name: name},
		To:        itinerary.Place{Name: "destination"},
		StartTime: dep,
		EndTime:   dep.Add(d),
		Distance:  d.Seconds(),
	}}, cost)
}

func names(its []*itinerary.Itinerary) []string {
	res := make([]string, len(its))
	for i, it := range its {
		res[i] = it.Legs[0].From.Name
	}
	return res
}

func unflaggedNames(its []*itinerary.Itinerary) []string {
	return names(unflagged(its))
}

type countingObserver struct {
	flagged  map[string]int
	errors   []string
	finished int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{flagged: map[string]int{}}
}

func (o *countingObserver) ItineraryFlagged(filter string) { o.flagged[filter]++ }

func (o *countingObserver) ChainFinished(in, out int, elapsed time.Duration) { o.finished++ }

func (o *countingObserver) RoutingErrorRaised(code string) { o.errors = append(o.errors, code) }
