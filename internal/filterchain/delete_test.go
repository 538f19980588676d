package filterchain

import (
	"slices"
	"testing"

	"itinerary-shaper/internal/itinerary"
)

func TestDeleteResultHandler(t *testing.T) {
	build := func() []*itinerary.Itinerary {
		a := transit("kept", at(8, 0), 100, 0, "T1")
		b := transit("window", at(8, 0), 100, 0, "T2")
		b.Flag(TagOutsideSearchWindow, "outside")
		c := transit("cap1", at(8, 0), 100, 0, "T3")
		c.Flag(TagNumItineraries, "capped")
		d := transit("cap2", at(8, 0), 100, 0, "T4")
		d.Flag(TagNumItineraries, "capped")
		e := transit("walk-better", at(8, 0), 100, 0, "T5")
		e.Flag(TagTransitVsWalk, "walk is better")
		f := transit("window-and-walk", at(8, 0), 100, 0, "T6")
		f.Flag(TagOutsideSearchWindow, "outside")
		f.Flag(TagTransitVsWalk, "walk is better")
		return []*itinerary.Itinerary{a, b, c, d, e, f}
	}
	tests := []struct {
		profile DebugProfile
		max     int
		want    []string
	}{
		{DebugOff, 2, []string{"kept"}},
		{DebugListAll, 2, []string{"kept", "window", "cap1", "cap2", "walk-better", "window-and-walk"}},
		{DebugLimitToSearchWindow, 2, []string{"kept", "window"}},
		{DebugLimitToNumOfItineraries, 1, []string{"kept", "cap1"}},
		{DebugLimitToNumOfItineraries, 5, []string{"kept", "cap1", "cap2"}},
	}
	for _, tt := range tests {
		t.Run(tt.profile.String(), func(t *testing.T) {
			got := names(NewDeleteResultHandler(tt.profile, tt.max).Filter(build()))
			if !slices.Equal(got, tt.want) {
				t.Fatalf("kept %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChainDebugProfileKeepsCappedItineraries(t *testing.T) {
	its := []*itinerary.Itinerary{
		transit("a", at(8, 0), 100, 0, "T1"),
		transit("b", at(8, 10), 100, 0, "T2"),
		transit("c", at(8, 20), 100, 0, "T3"),
	}
	opts := DefaultOptions()
	opts.MaxNumberOfItineraries = 1
	opts.DebugProfile = DebugLimitToNumOfItineraries

	res := mustBuild(t, opts).Filter(its)
	if got := names(res.Itineraries); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("itineraries = %v", got)
	}
	if !res.Itineraries[1].HasFlag(TagNumItineraries) {
		t.Fatalf("capped itinerary must carry its notice")
	}
}

func TestParseDebugProfile(t *testing.T) {
	for _, p := range []DebugProfile{DebugOff, DebugListAll, DebugLimitToSearchWindow, DebugLimitToNumOfItineraries} {
		got, err := ParseDebugProfile(p.String())
		if err != nil || got != p {
			t.Fatalf("ParseDebugProfile(%q) = %v, %v", p, got, err)
		}
	}
	if p, err := ParseDebugProfile(""); err != nil || p != DebugOff {
		t.Fatalf("empty profile = %v, %v", p, err)
	}
	if _, err := ParseDebugProfile("verbose"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPageCursorAggregator(t *testing.T) {
	var got []PageCursorInput
	a := NewPageCursorAggregator(func(in PageCursorInput) { got = append(got, in) })

	empty := a.Provide()
	if empty.EarliestRemovedDeparture != nil || empty.LatestRemovedDeparture != nil ||
		empty.PageCut != nil || empty.GeneralizedCostMaxLimit != nil || empty.CropSection != nil {
		t.Fatalf("nothing accepted, got %+v", empty)
	}

	a.acceptCostLimit(0)
	in := a.Provide()
	if in.GeneralizedCostMaxLimit == nil || *in.GeneralizedCostMaxLimit != 0 {
		t.Fatalf("a zero limit must be distinguishable from no limit: %+v", in)
	}
	if in.PageCut != nil {
		t.Fatalf("cap results not accepted, got %+v", in.PageCut)
	}

	a.acceptNumItineraries(NumItinerariesFilterResults{EarliestRemovedDeparture: at(8, 0), LatestRemovedDeparture: at(9, 0), CropSection: itinerary.Head})
	in = a.Provide()
	if in.EarliestRemovedDeparture == nil || !in.LatestRemovedDeparture.Equal(at(9, 0)) || *in.CropSection != itinerary.Head {
		t.Fatalf("cap results = %+v", in)
	}

	a.reset()
	if in := a.Provide(); in.GeneralizedCostMaxLimit != nil || in.PageCut != nil {
		t.Fatalf("reset kept state: %+v", in)
	}
	if len(got) != 4 {
		t.Fatalf("subscriber called %d times", len(got))
	}
}
