package filterchain

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"itinerary-shaper/internal/itinerary"
)

func TestRemoveFilterSkipsFlaggedAndKeepsInput(t *testing.T) {
	a := transit("a", at(8, 0), 100, 0, "T1")
	b := transit("b", at(8, 5), 100, 0, "T2")
	b.Flag("earlier", "flagged before")
	input := []*itinerary.Itinerary{a, b}

	var seen []string
	f := NewRemoveFilter(predicate{name: "all", match: func(it *itinerary.Itinerary) bool {
		seen = append(seen, it.Legs[0].From.Name)
		return true
	}}, nil)
	out := f.Filter(input)

	if !slices.Equal(seen, []string{"a"}) {
		t.Fatalf("flagger saw %v, want only unflagged", seen)
	}
	if len(out) != 2 || &out[0] == &input[0] {
		t.Fatalf("output must be a new slice with every itinerary")
	}
	if !a.HasFlag("all") || b.HasFlag("all") {
		t.Fatalf("flags a=%v b=%v", a.FlagTags(), b.FlagTags())
	}
}

func TestRemoveFilterFlagsOnce(t *testing.T) {
	a := street("walk", itinerary.Walk, at(8, 0), 10*time.Minute, 100)
	b := transit("bus", at(8, 0), 200, 0, "T1")
	obs := newCountingObserver()
	f := NewRemoveFilter(RemoveTransitIfWalkingIsBetter{}, obs)
	f.Filter([]*itinerary.Itinerary{a, b})
	f.Filter([]*itinerary.Itinerary{a, b})

	if got := len(b.FlagTags()); got != 1 {
		t.Fatalf("flag count = %d, want 1", got)
	}
	if obs.flagged[TagTransitVsWalk] != 1 {
		t.Fatalf("observer = %v", obs.flagged)
	}
}

func TestSortingFilterIsStable(t *testing.T) {
	a := transit("a", at(8, 0), 100, 0, "T1")
	b := transit("b", at(8, 5), 50, 0, "T2")
	c := transit("c", at(8, 10), 100, 0, "T3")
	input := []*itinerary.Itinerary{a, b, c}
	out := NewSortingFilter(itinerary.CompareGeneralizedCost).Filter(input)
	if got := names(out); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Fatalf("order = %v", got)
	}
	if got := names(input); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("input modified: %v", got)
	}
}

func TestGroupByFilterOrderAndAfter(t *testing.T) {
	var its []*itinerary.Itinerary
	for i := range 12 {
		trip := fmt.Sprintf("T%d", i%4)
		its = append(its, transit(fmt.Sprintf("i%02d", i), at(8, i), 100+i, 0, trip))
	}
	var afterSaw int
	after := filterFunc(func(list []*itinerary.Itinerary) []*itinerary.Itinerary {
		afterSaw = len(list)
		return slices.Clone(list)
	})

	for _, concurrency := range []int{0, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			g := NewGroupByFilter(GroupByDistanceKey(0.85), []Filter{NewSortingFilter(func(a, b *itinerary.Itinerary) int {
				return b.GeneralizedCost - a.GeneralizedCost
			})}, after, concurrency)
			out := g.Filter(its)
			want := []string{"i08", "i04", "i00", "i09", "i05", "i01", "i10", "i06", "i02", "i11", "i07", "i03"}
			if got := names(out); !slices.Equal(got, want) {
				t.Fatalf("order = %v, want %v", got, want)
			}
			if afterSaw != len(its) {
				t.Fatalf("after filter saw %d itineraries", afterSaw)
			}
		})
	}
}

type filterFunc func([]*itinerary.Itinerary) []*itinerary.Itinerary

func (f filterFunc) Filter(list []*itinerary.Itinerary) []*itinerary.Itinerary { return f(list) }

func TestMaxLimit(t *testing.T) {
	its := []*itinerary.Itinerary{
		transit("a", at(8, 0), 1, 0, "T1"),
		transit("b", at(8, 0), 2, 0, "T1"),
		transit("c", at(8, 0), 3, 0, "T1"),
	}
	tests := []struct {
		max  int
		want int
	}{
		{max: 0, want: 2},
		{max: 1, want: 2},
		{max: 2, want: 1},
		{max: 5, want: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d", tt.max), func(t *testing.T) {
			if got := len(NewMaxLimit("cap", tt.max).FlagForRemoval(its)); got != tt.want {
				t.Fatalf("flagged %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMcMaxLimit(t *testing.T) {
	a := transit("a", at(8, 0), 100, 2, "T1")
	b := transit("b", at(8, 0), 150, 0, "T2")
	c := transit("c", at(8, 0), 120, 1, "T3")
	d := transit("d", at(8, 0), 200, 2, "T4")
	its := []*itinerary.Itinerary{d, c, b, a}

	tests := []struct {
		max  int
		want []string
	}{
		{max: 1, want: []string{"d", "c", "b"}},
		{max: 2, want: []string{"d", "c"}},
		{max: 3, want: []string{"d"}},
		{max: 4, want: nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d", tt.max), func(t *testing.T) {
			got := NewMcMaxLimit("mc", tt.max, LowerGeneralizedCost, FewerTransfers).FlagForRemoval(its)
			if tt.want == nil && len(got) == 0 {
				return
			}
			if !slices.Equal(names(got), tt.want) {
				t.Fatalf("flagged %v, want %v", names(got), tt.want)
			}
		})
	}
}

func TestBetterTransitGroupPriority(t *testing.T) {
	g := func(v int) *itinerary.Itinerary { return &itinerary.Itinerary{GeneralizedCost2: &v} }
	if !BetterTransitGroupPriority(g(0b01), g(0b11)) {
		t.Fatalf("subset should be better")
	}
	if BetterTransitGroupPriority(g(0b01), g(0b10)) || BetterTransitGroupPriority(g(0b11), g(0b11)) {
		t.Fatalf("disjoint or equal sets are not better")
	}
	if BetterTransitGroupPriority(&itinerary.Itinerary{}, g(1)) {
		t.Fatalf("unset c2 is never better")
	}
}

func TestGroupKeys(t *testing.T) {
	long := func(name string, trips []string, dist []float64) *itinerary.Itinerary {
		it := transit(name, at(8, 0), 100, len(trips)-1, trips...)
		for i := range dist {
			it.Legs[i].Distance = dist[i]
		}
		return it
	}
	a := long("a", []string{"T1", "T2"}, []float64{5000, 500})
	b := long("b", []string{"T3", "T1"}, []float64{300, 5000})

	if GroupByDistanceKey(0.85)(a) != GroupByDistanceKey(0.85)(b) {
		t.Fatalf("main leg T1 should group a and b at 85%%")
	}
	if GroupByDistanceKey(0.95)(a) == GroupByDistanceKey(0.95)(b) {
		t.Fatalf("a and b differ at 95%%")
	}

	w1 := street("w1", itinerary.Walk, at(8, 0), 10*time.Minute, 10)
	w2 := street("w2", itinerary.Walk, at(8, 5), 15*time.Minute, 20)
	if GroupByDistanceKey(0.85)(w1) != GroupByDistanceKey(0.85)(w2) {
		t.Fatalf("walk-only itineraries share a key")
	}
	if GroupByAllSameStationsKey(w1) == GroupByAllSameStationsKey(w2) {
		t.Fatalf("street-only itineraries must not share a station key")
	}

	c := transit("c", at(9, 0), 100, 0, "T9")
	d := transit("d", at(9, 30), 100, 0, "T9")
	if GroupBySameRoutesAndStopsKey(c) != GroupBySameRoutesAndStopsKey(d) {
		t.Fatalf("same route and stops must share a key")
	}
	d.Legs[0].To.StopID = "elsewhere"
	if GroupBySameRoutesAndStopsKey(c) == GroupBySameRoutesAndStopsKey(d) {
		t.Fatalf("different alight stop must not share a key")
	}
	d.Legs[0].To.Station = c.Legs[0].To.StopID
	if GroupByAllSameStationsKey(c) != GroupByAllSameStationsKey(d) {
		t.Fatalf("stops of the same station share a station key")
	}
}
