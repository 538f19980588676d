package filterchain

import (
	"slices"
	"testing"
	"time"

	"itinerary-shaper/internal/itinerary"
)

func TestFlaggers(t *testing.T) {
	walk := func(name string, cost int) *itinerary.Itinerary {
		return street(name, itinerary.Walk, at(8, 0), 20*time.Minute, cost)
	}
	rental := func(name string, rentalMeters, walkMeters float64) *itinerary.Itinerary {
		it := street(name, itinerary.Walk, at(8, 0), 10*time.Minute, 100)
		it.Legs[0].Distance = walkMeters
		it.Legs = append(it.Legs, itinerary.Leg{Mode: itinerary.Bicycle, Rental: true, Distance: rentalMeters,
			StartTime: at(8, 10), EndTime: at(8, 20)})
		return it
	}
	parkAndRide := func(name string, car time.Duration) *itinerary.Itinerary {
		it := street(name, itinerary.Walk, at(8, 0), 30*time.Minute, 100)
		it.Legs = append(it.Legs, itinerary.Leg{Mode: itinerary.Car, StartTime: at(8, 30), EndTime: at(8, 30).Add(car)})
		return it
	}
	bikeAndRide := func(name string, meters float64) *itinerary.Itinerary {
		it := transit(name, at(8, 10), 100, 0, "T1")
		it.Legs = append([]itinerary.Leg{{Mode: itinerary.Bicycle, From: itinerary.Place{Name: name},
			Distance: meters, StartTime: at(8, 0), EndTime: at(8, 10)}}, it.Legs...)
		return it
	}

	tests := []struct {
		name    string
		flagger Flagger
		input   []*itinerary.Itinerary
		want    []string
	}{
		{
			name:    "transit cost limit",
			flagger: TransitGeneralizedCostFilter{Limit: TransitGeneralizedCostLimit{CostLimitFunction: CostLinearFunction{Constant: 60, Coefficient: 1.5}}},
			input:   []*itinerary.Itinerary{transit("cheap", at(8, 0), 100, 0, "T1"), transit("ok", at(8, 0), 210, 0, "T2"), transit("dear", at(8, 0), 211, 0, "T3")},
			want:    []string{"dear"},
		},
		{
			name: "transit cost limit relaxed by wait",
			flagger: TransitGeneralizedCostFilter{Limit: TransitGeneralizedCostLimit{
				CostLimitFunction: CostLinearFunction{Constant: 60, Coefficient: 1.5}, IntervalRelaxFactor: 0.5}},
			// one hour apart relaxes the limit by 1800
			input: []*itinerary.Itinerary{transit("cheap", at(8, 0), 100, 0, "T1"), transit("later", at(9, 10), 2000, 0, "T2")},
			want:  nil,
		},
		{
			name:    "non transit cost limit",
			flagger: RemoveNonTransitItinerariesBasedOnGeneralizedCost{CostLimit: CostLinearFunction{Constant: 0, Coefficient: 2}},
			input:   []*itinerary.Itinerary{transit("bus", at(8, 0), 100, 0, "T1"), walk("short", 200), walk("long", 201)},
			want:    []string{"long"},
		},
		{
			name:    "street only better",
			flagger: RemoveTransitIfStreetOnlyIsBetter{CostLimit: CostLinearFunction{Constant: 0, Coefficient: 1}},
			input:   []*itinerary.Itinerary{walk("walk", 150), transit("cheap", at(8, 0), 149, 0, "T1"), transit("equal", at(8, 0), 150, 0, "T2")},
			want:    []string{"equal"},
		},
		{
			name:    "street only better without street",
			flagger: RemoveTransitIfStreetOnlyIsBetter{CostLimit: CostLinearFunction{Coefficient: 1}},
			input:   []*itinerary.Itinerary{transit("bus", at(8, 0), 10000, 0, "T1")},
			want:    nil,
		},
		{
			name:    "walking better",
			flagger: RemoveTransitIfWalkingIsBetter{},
			input:   []*itinerary.Itinerary{walk("walk", 100), transit("bus", at(8, 0), 120, 0, "T1"), transit("cheap", at(8, 0), 90, 0, "T2")},
			want:    []string{"bus"},
		},
		{
			name:    "walk only",
			flagger: NewRemoveWalkOnly(),
			input:   []*itinerary.Itinerary{walk("walk", 100), street("bike", itinerary.Bicycle, at(8, 0), time.Minute, 10)},
			want:    []string{"walk"},
		},
		{
			name:    "bike rental mostly walking",
			flagger: NewRemoveBikeRentalWithMostlyWalking(0.3),
			input:   []*itinerary.Itinerary{rental("mostly-walk", 200, 800), rental("mostly-bike", 800, 200), walk("walk", 10)},
			want:    []string{"mostly-walk"},
		},
		{
			name:    "park and ride mostly walking",
			flagger: NewRemoveParkAndRideWithMostlyWalking(0.3),
			input:   []*itinerary.Itinerary{parkAndRide("short-drive", 10*time.Minute), parkAndRide("long-drive", time.Hour)},
			want:    []string{"short-drive"},
		},
		{
			name:    "short bike leg before transit",
			flagger: NewRemoveItinerariesWithShortStreetLeg(50),
			input:   []*itinerary.Itinerary{bikeAndRide("short", 40), bikeAndRide("long", 800), street("bike", itinerary.Bicycle, at(8, 0), time.Minute, 10)},
			want:    []string{"short"},
		},
		{
			name:    "same first or last trip",
			flagger: RemoveIfFirstOrLastTripIsTheSame{},
			input: []*itinerary.Itinerary{
				transit("a", at(8, 0), 100, 1, "T1", "T2"),
				transit("same-first", at(8, 0), 110, 1, "T1", "T3"),
				transit("same-last", at(8, 0), 120, 1, "T4", "T2"),
				transit("other", at(8, 0), 130, 1, "T4x", "T5"),
				walk("walk", 10),
			},
			want: []string{"same-first", "same-last"},
		},
		{
			name:    "outside search window",
			flagger: NewOutsideSearchWindowFilter(at(8, 0), time.Hour),
			input: []*itinerary.Itinerary{transit("early", at(7, 59), 100, 0, "T1"), transit("first", at(8, 0), 100, 0, "T2"),
				transit("last", at(8, 59), 100, 0, "T3"), transit("end", at(9, 0), 100, 0, "T4"), walk("walk", 10)},
			want: []string{"early", "end"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(tt.flagger.FlagForRemoval(tt.input))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("flagged %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlexSearchWindowFilter(t *testing.T) {
	flex := func(name string, dep time.Time) *itinerary.Itinerary {
		it := street(name, itinerary.Walk, dep, 5*time.Minute, 100)
		it.Legs[0].Mode = itinerary.Flex
		return it
	}
	its := []*itinerary.Itinerary{flex("early", at(7, 50)), flex("inside", at(8, 30)), flex("late", at(8, 58))}

	if got := names(NewFlexSearchWindowFilter(at(8, 0), time.Hour, false).FlagForRemoval(its)); !slices.Equal(got, []string{"early"}) {
		t.Fatalf("depart after flagged %v", got)
	}
	if got := names(NewFlexSearchWindowFilter(at(8, 0), time.Hour, true).FlagForRemoval(its)); !slices.Equal(got, []string{"late"}) {
		t.Fatalf("arrive by flagged %v", got)
	}
}

func TestStreetOnlyBetterUsesCursorLimit(t *testing.T) {
	var reported []int
	f := RemoveTransitIfStreetOnlyIsBetter{
		CostLimit:           CostLinearFunction{Coefficient: 1},
		CostLimitFromCursor: ptr(500),
		OnLimit:             func(limit int) { reported = append(reported, limit) },
	}
	its := []*itinerary.Itinerary{street("walk", itinerary.Walk, at(8, 0), time.Hour, 300),
		transit("a", at(8, 0), 400, 0, "T1"), transit("b", at(8, 0), 500, 0, "T2")}
	if got := names(f.FlagForRemoval(its)); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("flagged %v", got)
	}
	if !slices.Equal(reported, []int{500}) {
		t.Fatalf("reported %v", reported)
	}
}

func ptr[T any](v T) *T { return &v }

func TestRemoveOtherThanSameLegsMaxGeneralizedCost(t *testing.T) {
	// all share T1 (cost 100 each); the rest costs 50, 70 and 120
	a := transit("a", at(8, 0), 300, 1, "T1", "A")
	b := transit("b", at(8, 0), 300, 1, "T1", "B")
	c := transit("c", at(8, 0), 300, 1, "T1", "C")
	for _, it := range []*itinerary.Itinerary{a, b, c} {
		it.Legs[0].GeneralizedCost = 100
	}
	a.GeneralizedCost, b.GeneralizedCost, c.GeneralizedCost = 150, 170, 220

	got := names(RemoveOtherThanSameLegsMaxGeneralizedCost{Factor: 2}.FlagForRemoval([]*itinerary.Itinerary{a, b, c}))
	if !slices.Equal(got, []string{"c"}) {
		t.Fatalf("flagged %v, want [c]", got)
	}
	d := transit("d", at(8, 0), 1000, 0, "D")
	if got := (RemoveOtherThanSameLegsMaxGeneralizedCost{Factor: 2}).FlagForRemoval([]*itinerary.Itinerary{a, d}); len(got) != 0 {
		t.Fatalf("nothing in common, flagged %v", names(got))
	}
}

func TestKeepItinerariesWithFewestTransfers(t *testing.T) {
	direct := transit("direct", at(8, 0), 300, 0, "T1")
	direct.Flag("group", "removed by group")
	other := transit("other", at(8, 0), 300, 0, "T2")
	other.Flag("group", "removed by group")
	transfer := transit("transfer", at(8, 0), 100, 1, "T3", "T4")

	NewKeepItinerariesWithFewestTransfers([]string{"group"}).Filter([]*itinerary.Itinerary{transfer, direct, other})
	if direct.IsFlagged() {
		t.Fatalf("first itinerary with fewest transfers must be kept")
	}
	if !other.IsFlagged() {
		t.Fatalf("only the first one is kept")
	}

	cost := transit("cost", at(8, 0), 300, 0, "T1")
	cost.Flag(TagTransitCost, "removed by cost")
	cost.Flag("group", "removed by group")
	NewKeepItinerariesWithFewestTransfers([]string{"group"}).Filter([]*itinerary.Itinerary{cost})
	if !cost.HasFlag("group") {
		t.Fatalf("itineraries flagged by other filters stay flagged")
	}
}

func TestKeepFewestTransfersSkipsItinerariesRemovedElsewhere(t *testing.T) {
	blocked := transit("blocked", at(8, 0), 300, 0, "T1")
	blocked.Flag(TagTransitCost, "removed by cost")
	blocked.Flag("group", "removed by group")
	grouped := transit("grouped", at(8, 0), 200, 1, "T2", "T3")
	grouped.Flag("group", "removed by group")

	NewKeepItinerariesWithFewestTransfers([]string{"group"}).Filter([]*itinerary.Itinerary{blocked, grouped})
	if grouped.IsFlagged() {
		t.Fatalf("fewest transfers among the group-only flagged must be kept, flags %v", grouped.FlagTags())
	}
	if !blocked.HasFlag("group") {
		t.Fatalf("blocked flags = %v", blocked.FlagTags())
	}
}

func TestPagingFilter(t *testing.T) {
	its := []*itinerary.Itinerary{
		transit("a", at(8, 0), 100, 0, "T1"),
		transit("b", at(8, 10), 100, 0, "T2"),
		transit("c", at(8, 20), 100, 0, "T3"),
	}
	cut := its[1].SortKey()

	head := NewPagingFilter(itinerary.StreetAndArrivalTime, itinerary.Head, cut)
	if got := names(head.FlagForRemoval(its)); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("head dedup flagged %v", got)
	}
	tail := NewPagingFilter(itinerary.StreetAndArrivalTime, itinerary.Tail, cut)
	if got := names(tail.FlagForRemoval(its)); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("tail dedup flagged %v", got)
	}
}

func TestNumItinerariesFilter(t *testing.T) {
	its := []*itinerary.Itinerary{
		transit("a", at(8, 20), 100, 0, "T1"),
		transit("b", at(8, 0), 100, 0, "T2"),
		transit("c", at(8, 40), 100, 0, "T3"),
		transit("d", at(8, 10), 100, 0, "T4"),
	}
	tests := []struct {
		crop             itinerary.ListSection
		want             []string
		earliest, latest time.Time
		cut              string
	}{
		{crop: itinerary.Tail, want: []string{"c", "d"}, earliest: at(8, 10), latest: at(8, 40), cut: "b"},
		{crop: itinerary.Head, want: []string{"a", "b"}, earliest: at(8, 0), latest: at(8, 20), cut: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.crop.String(), func(t *testing.T) {
			var res NumItinerariesFilterResults
			f := NewNumItinerariesFilter(2, tt.crop, func(r NumItinerariesFilterResults) { res = r })
			got := f.FlagForRemoval(its)
			if !slices.Equal(names(got), tt.want) {
				t.Fatalf("flagged %v, want %v", names(got), tt.want)
			}
			if !res.EarliestRemovedDeparture.Equal(tt.earliest) || !res.LatestRemovedDeparture.Equal(tt.latest) {
				t.Fatalf("removed departures %s..%s", res.EarliestRemovedDeparture, res.LatestRemovedDeparture)
			}
			var cut *itinerary.Itinerary
			for _, it := range its {
				if it.Legs[0].From.Name == tt.cut {
					cut = it
				}
			}
			if res.PageCut != cut.SortKey() || res.CropSection != tt.crop {
				t.Fatalf("page cut %+v", res.PageCut)
			}
		})
	}

	called := false
	f := NewNumItinerariesFilter(4, itinerary.Tail, func(NumItinerariesFilterResults) { called = true })
	if got := f.FlagForRemoval(its); len(got) != 0 || called {
		t.Fatalf("nothing to crop, flagged %d called %v", len(got), called)
	}
}
