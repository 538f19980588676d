package gtfs

import (
	"math"
	"testing"
)

func TestStopRegistryKeepsIndexes(t *testing.T) {
	r := NewStopRegistry()
	a := r.Add(Stop{StopID: "A", Name: "Alpha"})
	b := r.Add(Stop{StopID: "B"})
	again := r.Add(Stop{StopID: "A", Name: "Alpha Square"})
	if a != 0 || b != 1 || again != a {
		t.Fatalf("indexes = %d %d %d", a, b, again)
	}
	s, ok := r.Stop(a)
	if !ok || s.Name != "Alpha Square" || s.Index != a {
		t.Fatalf("stop = %+v", s)
	}
	if _, ok := r.Stop(5); ok {
		t.Fatalf("unknown index found")
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestStopRegistryKeepsDetailsOnBareAdd(t *testing.T) {
	r := NewStopRegistry()
	a := r.Add(Stop{StopID: "A", Name: "Alpha", Lat: 60.39, Lon: 5.32})
	if again := r.Add(Stop{StopID: "A"}); again != a {
		t.Fatalf("index = %d, want %d", again, a)
	}
	s, _ := r.Stop(a)
	if s.Name != "Alpha" || s.Lat != 60.39 {
		t.Fatalf("details lost: %+v", s)
	}
}

func TestStopRegistryIndexedCosts(t *testing.T) {
	r := NewStopRegistry()
	r.Add(Stop{StopID: "A", Name: "Alpha"})
	b := r.Add(Stop{StopID: "B", Name: "Bravo"})

	costs := r.IndexedCosts(map[string]int{"B": 60, "C": 30})
	c, ok := r.Index("C")
	if !ok {
		t.Fatalf("configured stop C not registered")
	}
	if len(costs) != 3 || costs[0] != 0 || costs[b] != 60 || costs[c] != 30 {
		t.Fatalf("costs = %v", costs)
	}
	if r.IndexedCosts(nil) != nil {
		t.Fatalf("no costs must give nil")
	}
}

func TestTripScheduleModeIndex(t *testing.T) {
	sts := []StopTime{{StopID: "A"}, {StopID: "B"}}
	ts, err := NewTripSchedule(Trip{TripID: "T"}, Route{RouteType: 2}, sts, NewStopRegistry())
	if err != nil {
		t.Fatalf("NewTripSchedule: %v", err)
	}
	if ts.TransitReluctanceIndex() != 0 {
		t.Fatalf("reluctance index = %d before SetModeIndex", ts.TransitReluctanceIndex())
	}
	ts.SetModeIndex(6)
	if ts.SlackIndex() != 6 || ts.TransitReluctanceIndex() != 6 {
		t.Fatalf("indexes = %d %d, want 6", ts.SlackIndex(), ts.TransitReluctanceIndex())
	}
}

func TestTripScheduleDistances(t *testing.T) {
	reg := NewStopRegistry()
	sts := []StopTime{
		{StopSequence: 1, ArrivalSec: 100, DepartureSec: 110, StopID: "A", ShapeDistTraveled: 0},
		{StopSequence: 2, ArrivalSec: 200, DepartureSec: 210, StopID: "B", ShapeDistTraveled: 400},
		{StopSequence: 3, ArrivalSec: 300, DepartureSec: 300, StopID: "C", ShapeDistTraveled: 1000},
	}
	ts, err := NewTripSchedule(Trip{TripID: "T1"}, Route{RouteID: "R1", RouteType: 3}, sts, reg)
	if err != nil {
		t.Fatalf("NewTripSchedule: %v", err)
	}
	if ts.DepartureTime(0) != 110 || ts.ArrivalTime(1) != 200 {
		t.Fatalf("times not taken from stop times")
	}
	if got := ts.Distance(0, 2); got != 1000 {
		t.Fatalf("distance = %v, want 1000", got)
	}
	if got := ts.Distance(1, 2); got != 600 {
		t.Fatalf("distance = %v, want 600", got)
	}
	idx, _ := reg.Index("C")
	if ts.StopIndex(2) != idx || ts.NumberOfStops() != 3 {
		t.Fatalf("stop index = %d, want %d", ts.StopIndex(2), idx)
	}
	if ts.SlackIndex() != 3 {
		t.Fatalf("slack index = %d, want route type", ts.SlackIndex())
	}
}

func TestTripScheduleHaversineFallback(t *testing.T) {
	sts := []StopTime{
		{StopID: "A", StopLat: 60.0, StopLon: 10.0},
		{StopID: "B", StopLat: 60.01, StopLon: 10.0},
	}
	ts, err := NewTripSchedule(Trip{TripID: "T"}, Route{}, sts, NewStopRegistry())
	if err != nil {
		t.Fatalf("NewTripSchedule: %v", err)
	}
	if d := ts.Distance(0, 1); math.Abs(d-1112) > 2 {
		t.Fatalf("distance = %v, want about 1112", d)
	}
}

func TestNewTripScheduleNeedsTwoStops(t *testing.T) {
	if _, err := NewTripSchedule(Trip{TripID: "T"}, Route{}, []StopTime{{StopID: "A"}}, NewStopRegistry()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStationFallsBackToStop(t *testing.T) {
	if got := (Stop{StopID: "s1"}).Station(); got != "s1" {
		t.Fatalf("station = %q", got)
	}
	if got := (Stop{StopID: "s1", ParentStation: "P"}).Station(); got != "P" {
		t.Fatalf("station = %q", got)
	}
}
